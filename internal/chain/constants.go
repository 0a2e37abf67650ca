package chain

import "time"

const (
	// ReceiptPollInterval is how often AwaitConfirmation asks for a receipt.
	ReceiptPollInterval = 2 * time.Second

	// MaxNameLength is the contract's limit on setPlayerName.
	MaxNameLength = 31

	// BottleCount is the board size the contract deals.
	BottleCount = 5

	// PointsPerWin is what a correct submitResult earns.
	PointsPerWin = 10
)

// Mode selects the gateway implementation.
type Mode string

const (
	ModeRPC Mode = "rpc"
	ModeSim Mode = "sim"
)

// Contract method names
const (
	MethodSetPlayerName       = "setPlayerName"
	MethodStartGame           = "startGame"
	MethodSubmitResult        = "submitResult"
	MethodEndGame             = "endGame"
	MethodGetPlayerName       = "getPlayerName"
	MethodGetPlayerPoints     = "getPlayerPoints"
	MethodGetPlayerActiveGame = "getPlayerActiveGame"
	MethodGetGameState        = "getGameState"
)
