package game

import (
	"testing"

	"colorsnap/internal/domain"

	"github.com/stretchr/testify/require"
)

var (
	target  = []domain.Color{domain.Red, domain.Blue, domain.Green, domain.Yellow, domain.Purple}
	shuffle = []domain.Color{domain.Purple, domain.Yellow, domain.Green, domain.Blue, domain.Red}
)

func newBoard() *Board {
	b := NewBoard()
	b.Adopt(shuffle, target)
	return b
}

func TestClickSelectDeselect(t *testing.T) {
	b := newBoard()

	swapped, err := b.Click(1)
	require.NoError(t, err)
	require.False(t, swapped)
	require.Equal(t, 1, b.Selected)

	swapped, err = b.Click(1)
	require.NoError(t, err)
	require.False(t, swapped)
	require.Equal(t, NoSelection, b.Selected)
	require.Zero(t, b.Moves)
}

func TestClickOutOfRange(t *testing.T) {
	b := newBoard()
	_, err := b.Click(5)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = b.Click(-1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	require.Equal(t, NoSelection, b.Selected)
}

func TestMovesCountOnlyDistinctSwaps(t *testing.T) {
	b := newBoard()
	clicks := []int{0, 0, 2, 2, 0, 4, 3, 3, 1, 3, 2}
	for _, i := range clicks {
		_, err := b.Click(i)
		require.NoError(t, err)
	}
	// swaps: (0,4) and (1,3); 2 is left selected
	require.Equal(t, 2, b.Moves)
	require.Equal(t, 2, b.Selected)
}

func TestSolvedAfterFifthSwap(t *testing.T) {
	b := NewBoard()
	b.Adopt([]domain.Color{domain.Blue, domain.Green, domain.Yellow, domain.Red, domain.Purple}, target)

	// a wasted pair, then the three swaps that undo the 4-cycle
	swaps := [][2]int{{0, 1}, {0, 1}, {0, 3}, {1, 3}, {2, 3}}

	for i, s := range swaps {
		require.False(t, b.Solved(), "solved before swap %d", i+1)
		_, err := b.Click(s[0])
		require.NoError(t, err)
		swapped, err := b.Click(s[1])
		require.NoError(t, err)
		require.True(t, swapped)
	}
	require.True(t, b.Solved())
	require.Equal(t, 5, b.Moves)
}

func TestAdoptResetsMovesAndSelection(t *testing.T) {
	b := newBoard()
	_, _ = b.Click(0)
	_, _ = b.Click(1)
	_, _ = b.Click(2)
	require.Equal(t, 1, b.Moves)

	b.Adopt(shuffle, target)
	require.Zero(t, b.Moves)
	require.Equal(t, NoSelection, b.Selected)
	require.Equal(t, shuffle, b.Bottles)

	b.Bottles[0] = domain.Green
	require.Equal(t, domain.Purple, shuffle[0], "adopt must copy")
}

func TestMatchesTarget(t *testing.T) {
	require.True(t, MatchesTarget(target, target))
	require.False(t, MatchesTarget(shuffle, target))
	require.False(t, MatchesTarget(target[:4], target))
	require.False(t, MatchesTarget(nil, nil))
	require.Equal(t, 1, CountCorrect(shuffle, target))
	require.Equal(t, 4, CountCorrect(target, target[:4]))
}
