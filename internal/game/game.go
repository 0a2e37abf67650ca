package game

import (
	"errors"
	"slices"

	"colorsnap/internal/domain"
)

// NoSelection means no bottle is waiting for a swap partner.
const NoSelection = -1

var ErrIndexOutOfRange = errors.New("bottle index out of range")

// Board is the locally mutable puzzle state between remote round-trips.
type Board struct {
	Bottles  []domain.Color
	Target   []domain.Color
	Moves    int
	Selected int
}

func NewBoard() *Board {
	return &Board{Selected: NoSelection}
}

// Click applies one bottle click: select, deselect, or swap with the
// selected bottle. It reports whether a swap happened.
func (b *Board) Click(index int) (bool, error) {
	if index < 0 || index >= len(b.Bottles) {
		return false, ErrIndexOutOfRange
	}

	switch b.Selected {
	case NoSelection:
		b.Selected = index
		return false, nil
	case index:
		b.Selected = NoSelection
		return false, nil
	}

	b.Bottles[b.Selected], b.Bottles[index] = b.Bottles[index], b.Bottles[b.Selected]
	b.Moves++
	b.Selected = NoSelection
	return true, nil
}

// Adopt overwrites the board with authoritative values. Any unsynced swaps and
// the pending selection are discarded.
func (b *Board) Adopt(bottles, target []domain.Color) {
	b.Bottles = slices.Clone(bottles)
	b.Target = slices.Clone(target)
	b.Moves = 0
	b.Selected = NoSelection
}

// Clear empties the board after a game ends
func (b *Board) Clear() {
	b.Bottles = nil
	b.Target = nil
	b.Moves = 0
	b.Selected = NoSelection
}

// Solved reports whether the current arrangement can be submitted.
func (b *Board) Solved() bool {
	return MatchesTarget(b.Bottles, b.Target)
}

// Clone returns a deep copy safe to hand out of a session lock.
func (b *Board) Clone() Board {
	return Board{
		Bottles:  slices.Clone(b.Bottles),
		Target:   slices.Clone(b.Target),
		Moves:    b.Moves,
		Selected: b.Selected,
	}
}

// MatchesTarget is true iff both rows are non-empty, of equal length, and
// equal at every position.
func MatchesTarget(bottles, target []domain.Color) bool {
	if len(bottles) == 0 || len(bottles) != len(target) {
		return false
	}
	return slices.Equal(bottles, target)
}

// CountCorrect counts positions already holding the target colour
func CountCorrect(bottles, target []domain.Color) int {
	n := 0
	for i := 0; i < len(bottles) && i < len(target); i++ {
		if bottles[i] == target[i] {
			n++
		}
	}
	return n
}
