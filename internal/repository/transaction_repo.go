package repository

import (
	"context"
	"time"

	"colorsnap/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends one tracker transition
func (r *TransactionRepository) Create(ctx context.Context, e *domain.JournalEntry) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO tx_journal (submission_id, address, kind, status, handle, error)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.SubmissionID, e.Address.Hex(), e.Kind.String(), string(e.Status), string(e.Handle), e.ErrorMessage,
	).Scan(&e.ID, &e.CreatedAt)
}

// GetByAddress returns recent transitions for a player
func (r *TransactionRepository) GetByAddress(ctx context.Context, addr common.Address, limit int) ([]*domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, submission_id, address, kind, status, handle, error, created_at
		 FROM tx_journal
		 WHERE address = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		addr.Hex(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetBySubmission returns every transition of one submission, oldest first
func (r *TransactionRepository) GetBySubmission(ctx context.Context, submissionID string) ([]*domain.JournalEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, submission_id, address, kind, status, handle, error, created_at
		 FROM tx_journal
		 WHERE submission_id = $1
		 ORDER BY id`,
		submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *TransactionRepository) scanRows(rows pgx.Rows) ([]*domain.JournalEntry, error) {
	var result []*domain.JournalEntry

	for rows.Next() {
		var (
			e         domain.JournalEntry
			address   string
			kind      string
			status    string
			handle    string
			createdAt time.Time
		)

		if err := rows.Scan(&e.ID, &e.SubmissionID, &address, &kind, &status, &handle, &e.ErrorMessage, &createdAt); err != nil {
			return nil, err
		}

		e.Address = common.HexToAddress(address)
		e.Kind, _ = domain.ParseTxKind(kind)
		e.Status = domain.TxStatus(status)
		e.Handle = domain.Handle(handle)
		e.CreatedAt = createdAt

		result = append(result, &e)
	}

	return result, rows.Err()
}
