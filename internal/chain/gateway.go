package chain

import (
	"context"
	"errors"

	"colorsnap/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrReverted is returned by AwaitConfirmation when the write was mined
	// but the contract rejected it.
	ErrReverted = errors.New("transaction reverted")

	// ErrNotFound is returned for a handle the gateway never issued.
	ErrNotFound = errors.New("transaction not found")
)

// Reader is the polled, possibly stale, side of the contract.
type Reader interface {
	PlayerName(ctx context.Context, player common.Address) (string, error)
	PlayerPoints(ctx context.Context, player common.Address) (uint64, error)
	ActiveGameID(ctx context.Context, player common.Address) (uint64, error)
	GameState(ctx context.Context, gameID uint64) (*domain.RawGameState, error)
}

// Writer submits contract calls on behalf of one identity. A returned handle
// only means the call was accepted for submission; AwaitConfirmation reports
// the final outcome.
type Writer interface {
	SetPlayerName(ctx context.Context, name string) (domain.Handle, error)
	StartGame(ctx context.Context) (domain.Handle, error)
	SubmitResult(ctx context.Context, gameID uint64, bottles []uint8, moves uint64) (domain.Handle, error)
	EndGame(ctx context.Context, gameID uint64) (domain.Handle, error)
	AwaitConfirmation(ctx context.Context, h domain.Handle) error
}

// Gateway is the full remote contract bound to one identity.
type Gateway interface {
	Reader
	Writer
	Identity() common.Address
}
