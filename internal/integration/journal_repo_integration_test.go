package integration

import (
	"context"
	"testing"

	"colorsnap/internal/domain"
	"colorsnap/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomAddress() common.Address {
	id := uuid.New()
	return common.BytesToAddress(id[:])
}

func TestTransactionRepository_CreateAndQuery(t *testing.T) {
	pool := openDB(t)
	repo := repository.NewTransactionRepository(pool)
	ctx := context.Background()

	addr := randomAddress()
	sub := uuid.NewString()

	pending := &domain.JournalEntry{
		SubmissionID: sub,
		Address:      addr,
		Kind:         domain.TxStartGame,
		Status:       domain.TxPending,
	}
	require.NoError(t, repo.Create(ctx, pending))
	assert.NotZero(t, pending.ID)
	assert.False(t, pending.CreatedAt.IsZero())

	failed := &domain.JournalEntry{
		SubmissionID: sub,
		Address:      addr,
		Kind:         domain.TxStartGame,
		Status:       domain.TxError,
		Handle:       "0xabc",
		ErrorMessage: "execution reverted: active game exists",
	}
	require.NoError(t, repo.Create(ctx, failed))

	other := &domain.JournalEntry{
		SubmissionID: uuid.NewString(),
		Address:      randomAddress(),
		Kind:         domain.TxNameRegistration,
		Status:       domain.TxPending,
	}
	require.NoError(t, repo.Create(ctx, other))

	byAddr, err := repo.GetByAddress(ctx, addr, 10)
	require.NoError(t, err)
	require.Len(t, byAddr, 2)
	for _, e := range byAddr {
		assert.Equal(t, addr, e.Address)
		assert.Equal(t, domain.TxStartGame, e.Kind)
	}

	bySub, err := repo.GetBySubmission(ctx, sub)
	require.NoError(t, err)
	require.Len(t, bySub, 2)
	assert.Equal(t, domain.TxPending, bySub[0].Status)
	assert.Equal(t, domain.TxError, bySub[1].Status)
	assert.Equal(t, domain.Handle("0xabc"), bySub[1].Handle)
	assert.Equal(t, "execution reverted: active game exists", bySub[1].ErrorMessage)

	limited, err := repo.GetByAddress(ctx, addr, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGameRepository_CreateIsIdempotent(t *testing.T) {
	pool := openDB(t)
	repo := repository.NewGameRepository(pool)
	ctx := context.Background()

	addr := randomAddress()
	g := &domain.CompletedGame{
		Address:   addr,
		GameID:    7,
		Outcome:   domain.OutcomeWin,
		Bottles:   []domain.Color{domain.Red, domain.Blue, domain.Green, domain.Yellow, domain.Purple},
		Target:    []domain.Color{domain.Red, domain.Blue, domain.Green, domain.Yellow, domain.Purple},
		MoveCount: 4,
	}
	require.NoError(t, repo.Create(ctx, g))
	firstID := g.ID
	require.NotZero(t, firstID)

	again := *g
	again.Outcome = domain.OutcomeForfeit
	require.NoError(t, repo.Create(ctx, &again))
	assert.Equal(t, firstID, again.ID)

	games, err := repo.GetByAddress(ctx, addr, 10)
	require.NoError(t, err)
	require.Len(t, games, 1)
	got := games[0]
	assert.Equal(t, uint64(7), got.GameID)
	assert.Equal(t, domain.OutcomeWin, got.Outcome)
	assert.Equal(t, g.Bottles, got.Bottles)
	assert.Equal(t, g.Target, got.Target)
	assert.Equal(t, uint64(4), got.MoveCount)
}
