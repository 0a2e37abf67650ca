package session

import (
	"time"

	"colorsnap/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventState     EventType = "state"
	EventTx        EventType = "tx"
	EventCompleted EventType = "completed"
)

// Event is what subscribers receive. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type      EventType        `json:"type"`
	View      *View            `json:"view,omitempty"`
	Tx        *domain.TxRecord `json:"tx,omitempty"`
	Completed *Completion      `json:"completed,omitempty"`
}

// Completion is fired once per game id when the game is seen inactive.
type Completion struct {
	Game    *domain.GameState `json:"game"`
	Outcome domain.Outcome    `json:"outcome"`
	At      time.Time         `json:"at"`
}

// View is a snapshot of everything the player can see.
type View struct {
	Address common.Address `json:"address"`
	Player  domain.Player  `json:"player"`

	GameID   uint64         `json:"game_id"`
	Active   bool           `json:"active"`
	Bottles  []domain.Color `json:"bottles"`
	Target   []domain.Color `json:"target,omitempty"`
	Moves    int            `json:"moves"`
	Selected int            `json:"selected"`
	Correct  int            `json:"correct"`

	CanSubmit         bool       `json:"can_submit"`
	CanReveal         bool       `json:"can_reveal"`
	TargetVisible     bool       `json:"target_visible"`
	RevealLocked      bool       `json:"reveal_locked"`
	RevealCountdown   int        `json:"reveal_countdown"`
	RevealLockedUntil *time.Time `json:"reveal_locked_until,omitempty"`

	Transactions []domain.TxRecord `json:"transactions"`
	LastTx       domain.LastTx     `json:"last_tx,omitempty"`
	Busy         bool              `json:"busy"`
}

// outcomeFor maps the last game-ending write to how the completion is shown.
func outcomeFor(last domain.LastTx) domain.Outcome {
	switch last {
	case domain.LastTxSubmit:
		return domain.OutcomeWin
	case domain.LastTxEnd:
		return domain.OutcomeForfeit
	}
	return domain.OutcomeUnknown
}
