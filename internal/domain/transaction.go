package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind identifies one of the four contract writes.
type TxKind int

const (
	TxNameRegistration TxKind = iota
	TxStartGame
	TxSubmitResult
	TxEndGame
)

// TxKinds lists every kind in index order.
var TxKinds = [...]TxKind{TxNameRegistration, TxStartGame, TxSubmitResult, TxEndGame}

func (k TxKind) String() string {
	switch k {
	case TxNameRegistration:
		return "name_registration"
	case TxStartGame:
		return "start_game"
	case TxSubmitResult:
		return "submit_result"
	case TxEndGame:
		return "end_game"
	default:
		return "unknown"
	}
}

func (k TxKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *TxKind) UnmarshalText(b []byte) error {
	parsed, ok := ParseTxKind(string(b))
	if !ok {
		return fmt.Errorf("unknown transaction kind %q", b)
	}
	*k = parsed
	return nil
}

// ParseTxKind is the inverse of TxKind.String
func ParseTxKind(s string) (TxKind, bool) {
	for _, k := range TxKinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// TxStatus - lifecycle state of a TxRecord
type TxStatus string

const (
	TxIdle    TxStatus = "idle"
	TxPending TxStatus = "pending"
	TxSuccess TxStatus = "success"
	TxError   TxStatus = "error"
)

// Terminal reports whether the status auto-expires back to idle.
func (s TxStatus) Terminal() bool {
	return s == TxSuccess || s == TxError
}

// Handle is the opaque submission token returned by a write (a tx hash).
type Handle string

// TxRecord is the per-kind transaction state shown to the player.
type TxRecord struct {
	Kind         TxKind    `json:"kind"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Status       TxStatus  `json:"status"`
	ErrorMessage string    `json:"error,omitempty"`
	Handle       Handle    `json:"handle,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LastTx marks which game-ending write the player invoked last.
type LastTx string

const (
	LastTxNone   LastTx = ""
	LastTxSubmit LastTx = "submit"
	LastTxEnd    LastTx = "end"
)

// Call carries the arguments of a write. Only the fields of its Kind are used.
type Call struct {
	Kind    TxKind
	Name    string
	GameID  uint64
	Bottles []Color
	Moves   int
}

// JournalEntry - one tracker transition as stored in tx_journal
type JournalEntry struct {
	ID           int64          `db:"id" json:"id"`
	SubmissionID string         `db:"submission_id" json:"submission_id"`
	Address      common.Address `db:"address" json:"address"`
	Kind         TxKind         `db:"kind" json:"kind"`
	Status       TxStatus       `db:"status" json:"status"`
	Handle       Handle         `db:"handle" json:"handle,omitempty"`
	ErrorMessage string         `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
