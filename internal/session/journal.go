package session

import (
	"context"
	"sync"
	"time"

	"colorsnap/internal/domain"
	"colorsnap/internal/logger"
	"colorsnap/internal/repository"
)

const (
	journalQueueSize = 64
	journalTimeout   = 5 * time.Second
)

// Journal receives tracker transitions and completion events.
type Journal interface {
	RecordTx(ctx context.Context, e *domain.JournalEntry) error
	RecordCompletion(ctx context.Context, g *domain.CompletedGame) error
}

// RepoJournal writes to the postgres journal tables
type RepoJournal struct {
	Txs   *repository.TransactionRepository
	Games *repository.GameRepository
}

func (j *RepoJournal) RecordTx(ctx context.Context, e *domain.JournalEntry) error {
	return j.Txs.Create(ctx, e)
}

func (j *RepoJournal) RecordCompletion(ctx context.Context, g *domain.CompletedGame) error {
	return j.Games.Create(ctx, g)
}

// journalWorker drains journal writes on its own goroutine so the session
// never waits on the database. A full queue drops the write.
type journalWorker struct {
	journal Journal
	queue   chan func(context.Context) error
	once    sync.Once
	done    chan struct{}
}

func newJournalWorker(j Journal) *journalWorker {
	w := &journalWorker{
		journal: j,
		queue:   make(chan func(context.Context) error, journalQueueSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *journalWorker) run() {
	defer close(w.done)
	for job := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		if err := job(ctx); err != nil {
			logger.Warn("journal write failed", "error", err)
		}
		cancel()
	}
}

func (w *journalWorker) enqueue(job func(context.Context) error) {
	select {
	case w.queue <- job:
	default:
		logger.Warn("journal queue full, dropping write")
	}
}

func (w *journalWorker) tx(e *domain.JournalEntry) {
	w.enqueue(func(ctx context.Context) error { return w.journal.RecordTx(ctx, e) })
}

func (w *journalWorker) completion(g *domain.CompletedGame) {
	w.enqueue(func(ctx context.Context) error { return w.journal.RecordCompletion(ctx, g) })
}

// close flushes queued writes and waits for them.
func (w *journalWorker) close() {
	w.once.Do(func() { close(w.queue) })
	<-w.done
}
