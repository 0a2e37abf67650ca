package repository

import (
	"context"
	"encoding/json"
	"time"

	"colorsnap/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GameRepository struct {
	db *pgxpool.Pool
}

func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

// Create records a completed game. Recording the same game twice is a no-op.
func (r *GameRepository) Create(ctx context.Context, g *domain.CompletedGame) error {
	bottlesJSON, err := json.Marshal(g.Bottles)
	if err != nil {
		return err
	}
	targetJSON, err := json.Marshal(g.Target)
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO completed_games (address, game_id, outcome, bottles, target, move_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (address, game_id) DO UPDATE SET outcome = completed_games.outcome
		 RETURNING id, created_at`,
		g.Address.Hex(),
		int64(g.GameID),
		string(g.Outcome),
		bottlesJSON,
		targetJSON,
		int64(g.MoveCount),
	).Scan(&g.ID, &g.CreatedAt)
}

func (r *GameRepository) GetByAddress(ctx context.Context, addr common.Address, limit int) ([]*domain.CompletedGame, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, address, game_id, outcome, bottles, target, move_count, created_at
		 FROM completed_games
		 WHERE address = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		addr.Hex(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.CompletedGame
	for rows.Next() {
		var (
			id          int64
			address     string
			gameID      int64
			outcome     string
			bottlesJSON []byte
			targetJSON  []byte
			moveCount   int64
			createdAt   time.Time
		)

		if err := rows.Scan(&id, &address, &gameID, &outcome, &bottlesJSON, &targetJSON, &moveCount, &createdAt); err != nil {
			return nil, err
		}

		g := &domain.CompletedGame{
			ID:        id,
			Address:   common.HexToAddress(address),
			GameID:    uint64(gameID),
			Outcome:   domain.Outcome(outcome),
			MoveCount: uint64(moveCount),
			CreatedAt: createdAt,
		}
		_ = json.Unmarshal(bottlesJSON, &g.Bottles)
		_ = json.Unmarshal(targetJSON, &g.Target)

		res = append(res, g)
	}

	return res, rows.Err()
}
