package domain

import (
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NoGame is the sentinel returned by getPlayerActiveGame when the player has
// no game in progress.
const NoGame uint64 = 0

// Outcome - how a completed game is presented to the player
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeForfeit Outcome = "forfeit"
	OutcomeUnknown Outcome = "unknown"
)

// RawGameState is getGameState as returned by the contract, colours still
// encoded.
type RawGameState struct {
	Owner     common.Address
	Bottles   []uint8
	Target    []uint8
	MoveCount uint64
	Active    bool
}

// GameState is a decoded RawGameState.
type GameState struct {
	ID        uint64         `json:"id"`
	Owner     common.Address `json:"owner"`
	Bottles   []Color        `json:"bottles"`
	Target    []Color        `json:"target"`
	MoveCount uint64         `json:"move_count"`
	Active    bool           `json:"active"`
}

// Equal reports whether two reads returned the same tuple.
func (r *RawGameState) Equal(o *RawGameState) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Owner == o.Owner &&
		r.MoveCount == o.MoveCount &&
		r.Active == o.Active &&
		slices.Equal(r.Bottles, o.Bottles) &&
		slices.Equal(r.Target, o.Target)
}

// Decode converts the raw contract tuple into colours.
func (r *RawGameState) Decode(id uint64) *GameState {
	return &GameState{
		ID:        id,
		Owner:     r.Owner,
		Bottles:   DecodeColors(r.Bottles),
		Target:    DecodeColors(r.Target),
		MoveCount: r.MoveCount,
		Active:    r.Active,
	}
}

// CompletedGame - a completion event as recorded in the journal
type CompletedGame struct {
	ID        int64          `db:"id" json:"id"`
	Address   common.Address `db:"address" json:"address"`
	GameID    uint64         `db:"game_id" json:"game_id"`
	Outcome   Outcome        `db:"outcome" json:"outcome"`
	Bottles   []Color        `db:"bottles" json:"bottles"`
	Target    []Color        `db:"target" json:"target"`
	MoveCount uint64         `db:"move_count" json:"move_count"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Player is the identity-bound profile kept by a session.
type Player struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name"`
	Points  uint64         `json:"points"`
}
