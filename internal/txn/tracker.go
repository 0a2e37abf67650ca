// Package txn tracks the lifecycle of the four contract writes.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"colorsnap/internal/chain"
	"colorsnap/internal/domain"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

const (
	DefaultDisplayWindow = 5 * time.Second
	DefaultNameSettle    = 1 * time.Second
	DefaultGameSettle    = 2 * time.Second

	// FallbackError is shown when the gateway gives no message.
	FallbackError = "Transaction failed"
)

var (
	ErrPending     = errors.New("transaction already pending")
	ErrClosed      = errors.New("tracker closed")
	ErrUnknownKind = errors.New("unknown transaction kind")
)

const kindCount = len(domain.TxKinds)

// Config holds the tracker timings
type Config struct {
	DisplayWindow time.Duration
	NameSettle    time.Duration
	GameSettle    time.Duration
}

// Hooks are called without the tracker lock held.
type Hooks struct {
	// OnChange sees every record transition.
	OnChange func(rec domain.TxRecord)
	// OnSuccess runs as soon as a write is confirmed.
	OnSuccess func(call domain.Call)
	// OnSettled runs one settle delay after OnSuccess, once read replicas
	// are expected to reflect the write.
	OnSettled func(call domain.Call)
}

// Tracker is one state machine per TxKind: Idle -> Pending -> Success|Error
// -> Idle. Terminal records expire after the display window.
type Tracker struct {
	clock  clock.Clock
	writer chain.Writer
	cfg    Config
	hooks  Hooks

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	records    [kindCount]domain.TxRecord
	gen        [kindCount]uint64
	submission [kindCount]string
	expiry     [kindCount]*clock.Timer
	settles    map[uint64]*clock.Timer
	settleSeq  uint64
	lastTx     domain.LastTx
	closed     bool
}

func New(clk clock.Clock, writer chain.Writer, cfg Config, hooks Hooks) *Tracker {
	if cfg.DisplayWindow <= 0 {
		cfg.DisplayWindow = DefaultDisplayWindow
	}
	if cfg.NameSettle <= 0 {
		cfg.NameSettle = DefaultNameSettle
	}
	if cfg.GameSettle <= 0 {
		cfg.GameSettle = DefaultGameSettle
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		clock:   clk,
		writer:  writer,
		cfg:     cfg,
		hooks:   hooks,
		ctx:     ctx,
		cancel:  cancel,
		settles: make(map[uint64]*clock.Timer),
	}
	for _, k := range domain.TxKinds {
		t.records[k] = domain.TxRecord{Kind: k, Status: domain.TxIdle, UpdatedAt: clk.Now()}
	}
	return t
}

func validKind(k domain.TxKind) bool {
	return k >= 0 && int(k) < kindCount
}

// Submit starts a write. The caller is expected not to submit a kind that is
// already pending; if it does, ErrPending is returned and nothing changes.
func (t *Tracker) Submit(call domain.Call) error {
	k := call.Kind
	if !validKind(k) {
		return fmt.Errorf("%d: %w", k, ErrUnknownKind)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.records[k].Status == domain.TxPending {
		t.mu.Unlock()
		return fmt.Errorf("%s: %w", k, ErrPending)
	}

	t.stopExpiryLocked(k)
	t.gen[k]++
	gen := t.gen[k]
	t.submission[k] = uuid.NewString()
	rec := t.setLocked(k, domain.TxPending, "", "")

	switch k {
	case domain.TxSubmitResult:
		t.lastTx = domain.LastTxSubmit
	case domain.TxEndGame:
		t.lastTx = domain.LastTxEnd
	}

	t.wg.Add(1)
	t.mu.Unlock()

	t.changed(rec)
	go t.run(gen, call)
	return nil
}

func (t *Tracker) run(gen uint64, call domain.Call) {
	defer t.wg.Done()

	h, err := t.dispatch(t.ctx, call)
	if err != nil {
		t.resolve(gen, call, err)
		return
	}

	t.mu.Lock()
	if t.closed || t.gen[call.Kind] != gen {
		t.mu.Unlock()
		return
	}
	rec := t.setLocked(call.Kind, domain.TxPending, "", h)
	t.mu.Unlock()
	t.changed(rec)

	t.resolve(gen, call, t.writer.AwaitConfirmation(t.ctx, h))
}

func (t *Tracker) dispatch(ctx context.Context, call domain.Call) (domain.Handle, error) {
	switch call.Kind {
	case domain.TxNameRegistration:
		return t.writer.SetPlayerName(ctx, call.Name)
	case domain.TxStartGame:
		return t.writer.StartGame(ctx)
	case domain.TxSubmitResult:
		return t.writer.SubmitResult(ctx, call.GameID, domain.EncodeColors(call.Bottles), uint64(call.Moves))
	case domain.TxEndGame:
		return t.writer.EndGame(ctx, call.GameID)
	}
	return "", ErrUnknownKind
}

func (t *Tracker) resolve(gen uint64, call domain.Call, err error) {
	k := call.Kind

	t.mu.Lock()
	if t.closed || t.gen[k] != gen {
		t.mu.Unlock()
		return
	}

	h := t.records[k].Handle
	var rec domain.TxRecord
	if err != nil {
		rec = t.setLocked(k, domain.TxError, errorMessage(err), h)
	} else {
		rec = t.setLocked(k, domain.TxSuccess, "", h)
		t.scheduleSettleLocked(call)
	}
	t.expiry[k] = t.clock.AfterFunc(t.cfg.DisplayWindow, func() { t.expire(k, gen) })
	t.mu.Unlock()

	t.changed(rec)
	if err == nil && t.hooks.OnSuccess != nil {
		t.hooks.OnSuccess(call)
	}
}

func (t *Tracker) scheduleSettleLocked(call domain.Call) {
	delay := t.cfg.GameSettle
	if call.Kind == domain.TxNameRegistration {
		delay = t.cfg.NameSettle
	}

	t.settleSeq++
	id := t.settleSeq
	t.settles[id] = t.clock.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.settles[id]
		delete(t.settles, id)
		t.mu.Unlock()

		if live && t.hooks.OnSettled != nil {
			t.hooks.OnSettled(call)
		}
	})
}

func (t *Tracker) expire(k domain.TxKind, gen uint64) {
	t.mu.Lock()
	if t.closed || t.gen[k] != gen || !t.records[k].Status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.expiry[k] = nil
	rec := t.setLocked(k, domain.TxIdle, "", "")
	t.mu.Unlock()

	t.changed(rec)
}

func (t *Tracker) setLocked(k domain.TxKind, status domain.TxStatus, msg string, h domain.Handle) domain.TxRecord {
	t.records[k] = domain.TxRecord{
		Kind:         k,
		SubmissionID: t.submission[k],
		Status:       status,
		ErrorMessage: msg,
		Handle:       h,
		UpdatedAt:    t.clock.Now(),
	}
	return t.records[k]
}

func (t *Tracker) stopExpiryLocked(k domain.TxKind) {
	if t.expiry[k] != nil {
		t.expiry[k].Stop()
		t.expiry[k] = nil
	}
}

func (t *Tracker) changed(rec domain.TxRecord) {
	if t.hooks.OnChange != nil {
		t.hooks.OnChange(rec)
	}
}

func errorMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return FallbackError
	}
	return msg
}

// Record returns the current record of kind k
func (t *Tracker) Record(k domain.TxKind) domain.TxRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records[k]
}

// Records returns every record in kind order
func (t *Tracker) Records() []domain.TxRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.TxRecord(nil), t.records[:]...)
}

// AnyPending reports whether any kind awaits confirmation.
func (t *Tracker) AnyPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		if r.Status == domain.TxPending {
			return true
		}
	}
	return false
}

// LastTx returns the last game-ending write the player invoked
func (t *Tracker) LastTx() domain.LastTx {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTx
}

// Close stops all timers and abandons in-flight confirmations. Pending
// records stay pending; nothing is reported after Close returns.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for _, k := range domain.TxKinds {
		t.stopExpiryLocked(k)
	}
	for id, timer := range t.settles {
		timer.Stop()
		delete(t.settles, id)
	}
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}
