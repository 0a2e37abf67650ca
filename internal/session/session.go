// Package session reconciles one player's local view with the contract:
// it owns the board, the transaction tracker, the reveal lockout and the
// polling loops, and serializes every mutation behind one mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"colorsnap/internal/cache"
	"colorsnap/internal/chain"
	"colorsnap/internal/domain"
	"colorsnap/internal/game"
	"colorsnap/internal/logger"
	"colorsnap/internal/reveal"
	"colorsnap/internal/txn"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultPollInterval = 3 * time.Second

	subscriberBuffer = 32
	readTimeout      = 10 * time.Second
	cacheTimeout     = 2 * time.Second
)

var (
	ErrClosed       = errors.New("session closed")
	ErrInvalidName  = errors.New("name must be 1 to 31 characters")
	ErrPrecondition = errors.New("action not allowed in current state")
)

// Config holds every timing the session and its parts use.
type Config struct {
	PollInterval time.Duration
	Tracker      txn.Config
	RevealLock   time.Duration
	RevealTick   time.Duration
}

// Options are the collaborators shared between sessions. Nil fields get
// in-process defaults.
type Options struct {
	Clock   clock.Clock
	Store   cache.Store
	Journal Journal
	Logger  *slog.Logger
}

type Session struct {
	addr  common.Address
	gw    chain.Gateway
	clock clock.Clock
	cfg   Config
	store cache.Store
	log   *slog.Logger

	journal *journalWorker
	tracker *txn.Tracker
	lockout *reveal.Lockout

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	activeRefetch  chan struct{}
	gameRefetch    chan struct{}
	profileRefetch chan struct{}

	mu            sync.Mutex
	board         *game.Board
	gameID        uint64
	active        bool
	adopted       *domain.RawGameState
	player        domain.Player
	lastCompleted uint64
	gameCancel    context.CancelFunc
	timers        map[uint64]*clock.Timer
	timerSeq      uint64
	subs          map[uint64]chan Event
	subSeq        uint64
	lastSeen      time.Time
	started       bool
	closed        bool
}

// New builds a session for the gateway's identity. Nothing runs until Start.
func New(gw chain.Gateway, cfg Config, opts Options) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Tracker.NameSettle <= 0 {
		cfg.Tracker.NameSettle = txn.DefaultNameSettle
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Store == nil {
		opts.Store = cache.NewMemoryStore()
	}

	addr := gw.Identity()
	log := opts.Logger
	if log == nil {
		log = logger.With("address", addr.Hex())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		addr:           addr,
		gw:             gw,
		clock:          opts.Clock,
		cfg:            cfg,
		store:          opts.Store,
		log:            log,
		ctx:            ctx,
		cancel:         cancel,
		activeRefetch:  make(chan struct{}, 1),
		gameRefetch:    make(chan struct{}, 1),
		profileRefetch: make(chan struct{}, 1),
		board:          game.NewBoard(),
		player:         domain.Player{Address: addr},
		timers:         make(map[uint64]*clock.Timer),
		subs:           make(map[uint64]chan Event),
		lastSeen:       opts.Clock.Now(),
	}
	if opts.Journal != nil {
		s.journal = newJournalWorker(opts.Journal)
	}

	s.tracker = txn.New(opts.Clock, gw, cfg.Tracker, txn.Hooks{
		OnChange:  s.onTxChange,
		OnSuccess: s.onTxSuccess,
		OnSettled: s.onTxSettled,
	})
	s.lockout = reveal.New(opts.Clock, cfg.RevealLock, cfg.RevealTick, s.publishState)
	return s
}

func (s *Session) Address() common.Address { return s.addr }

// Start seeds the session from the cache and starts the polling loops.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, cacheTimeout)
	p, err := cache.Load(ctx, s.store, s.addr)
	cancel()
	if err != nil {
		s.log.Warn("cache load failed", "error", err)
	}

	s.mu.Lock()
	s.player.Name = p.Name
	if p.HasPoints {
		s.player.Points = p.Points
	}
	if p.GameID != domain.NoGame {
		s.setGameIDLocked(p.GameID)
	}
	s.mu.Unlock()

	ActiveSessions.Inc()
	s.wg.Add(2)
	go s.activeLoop()
	go s.profileLoop()

	s.log.Info("session started", "cached_game", p.GameID)
}

// Close stops the loops and every timer. disconnect also forgets the cached
// player data.
func (s *Session) Close(disconnect bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	if s.gameCancel != nil {
		s.gameCancel()
		s.gameCancel = nil
	}
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.tracker.Close()
	s.lockout.Close()
	s.wg.Wait()
	if s.journal != nil {
		s.journal.close()
	}

	if disconnect {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		if err := cache.Forget(ctx, s.store, s.addr); err != nil {
			s.log.Warn("cache forget failed", "error", err)
		}
		cancel()
	}

	if started {
		ActiveSessions.Dec()
	}
	s.log.Info("session closed", "disconnect", disconnect)
}

// Touch marks API or websocket activity.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()
}

// IdleSince reports the last activity and whether anyone is subscribed.
func (s *Session) IdleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen, len(s.subs) > 0
}

// Subscribe returns a channel of events and a function that ends the
// subscription. The channel is closed when either happens or the session
// closes. Slow subscribers lose events rather than block the session.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	s.subSeq++
	id := s.subSeq
	s.subs[id] = ch
	s.lastSeen = s.clock.Now()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
			s.lastSeen = s.clock.Now()
			s.mu.Unlock()
		})
	}
}

func (s *Session) publishLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Debug("subscriber slow, event dropped", "type", ev.Type)
		}
	}
}

func (s *Session) publishState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.publishStateLocked()
}

func (s *Session) publishStateLocked() {
	if len(s.subs) == 0 {
		return
	}
	v := s.viewLocked()
	s.publishLocked(Event{Type: EventState, View: &v})
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	b := s.board
	records := s.tracker.Records()
	submitPending := records[domain.TxSubmitResult].Status == domain.TxPending

	v := View{
		Address:       s.addr,
		Player:        s.player,
		GameID:        s.gameID,
		Active:        s.active,
		Bottles:       slices.Clone(b.Bottles),
		Moves:         b.Moves,
		Selected:      b.Selected,
		Correct:       game.CountCorrect(b.Bottles, b.Target),
		CanSubmit:     s.active && b.Solved() && !submitPending,
		CanReveal:     reveal.CanReveal(b.Moves),
		TargetVisible: s.lockout.Revealed(),
		RevealLocked:  s.lockout.Locked(),
		Transactions:  records,
		LastTx:        s.tracker.LastTx(),
	}
	if v.Bottles == nil {
		v.Bottles = []domain.Color{}
	}
	if v.TargetVisible {
		v.Target = slices.Clone(b.Target)
	}
	if v.RevealLocked {
		v.RevealCountdown = s.lockout.Countdown()
		until := s.lockout.LockedUntil()
		v.RevealLockedUntil = &until
	}
	for _, r := range records {
		if r.Status == domain.TxPending {
			v.Busy = true
			break
		}
	}
	return v
}

// SetName registers a display name. The name is trimmed first.
func (s *Session) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > chain.MaxNameLength {
		return ErrInvalidName
	}
	return s.submit(domain.Call{Kind: domain.TxNameRegistration, Name: name})
}

// StartGame asks the contract for a new game. The new id is picked up by the
// active-game poll after the settle delay.
func (s *Session) StartGame() error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return fmt.Errorf("game %d still active: %w", s.gameID, ErrPrecondition)
	}
	s.mu.Unlock()
	return s.submit(domain.Call{Kind: domain.TxStartGame})
}

// SubmitResult submits the current arrangement of a solved board.
func (s *Session) SubmitResult() error {
	s.mu.Lock()
	if s.gameID == domain.NoGame || !s.active {
		s.mu.Unlock()
		return fmt.Errorf("no active game: %w", ErrPrecondition)
	}
	if !s.board.Solved() {
		s.mu.Unlock()
		return fmt.Errorf("bottles do not match target: %w", ErrPrecondition)
	}
	call := domain.Call{
		Kind:    domain.TxSubmitResult,
		GameID:  s.gameID,
		Bottles: slices.Clone(s.board.Bottles),
		Moves:   s.board.Moves,
	}
	s.mu.Unlock()
	return s.submit(call)
}

// EndGame forfeits the tracked game.
func (s *Session) EndGame() error {
	s.mu.Lock()
	if s.gameID == domain.NoGame || !s.active {
		s.mu.Unlock()
		return fmt.Errorf("no active game: %w", ErrPrecondition)
	}
	id := s.gameID
	s.mu.Unlock()
	return s.submit(domain.Call{Kind: domain.TxEndGame, GameID: id})
}

// submit hands a write to the tracker. The tracker reports the Pending
// transition through onTxChange, which takes s.mu, so s.mu must not be held.
func (s *Session) submit(call domain.Call) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()

	if err := s.tracker.Submit(call); err != nil {
		return err
	}
	s.log.Info("transaction submitted", "kind", call.Kind.String(), "game_id", call.GameID)
	return nil
}

// ClickBottle applies a click on bottle i. It reports false without touching
// the board while any write is pending or no game is active.
func (s *Session) ClickBottle(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	s.lastSeen = s.clock.Now()
	if !s.active || s.tracker.AnyPending() {
		return false, nil
	}
	if _, err := s.board.Click(i); err != nil {
		return false, err
	}
	s.publishStateLocked()
	return true, nil
}

// ShowTarget toggles the target reveal. It reports false if the lockout
// refused.
func (s *Session) ShowTarget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.lastSeen = s.clock.Now()
	ok := s.lockout.HandleShowTarget(s.board.Moves)
	if ok {
		s.publishStateLocked()
	}
	return ok
}

func (s *Session) onTxChange(rec domain.TxRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if rec.Status != domain.TxIdle {
		TxTotal.WithLabelValues(rec.Kind.String(), string(rec.Status)).Inc()
		if s.journal != nil {
			s.journal.tx(&domain.JournalEntry{
				SubmissionID: rec.SubmissionID,
				Address:      s.addr,
				Kind:         rec.Kind,
				Status:       rec.Status,
				Handle:       rec.Handle,
				ErrorMessage: rec.ErrorMessage,
			})
		}
	}
	if rec.Status == domain.TxError {
		s.log.Warn("transaction failed", "kind", rec.Kind.String(), "error", rec.ErrorMessage)
	}

	r := rec
	s.publishLocked(Event{Type: EventTx, Tx: &r})
	s.publishStateLocked()
}

func (s *Session) onTxSuccess(call domain.Call) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	var cacheOp func(context.Context) error
	switch call.Kind {
	case domain.TxNameRegistration:
		s.player.Name = call.Name
		cacheOp = func(ctx context.Context) error {
			return s.store.Set(ctx, cache.PlayerNameKey(s.addr), call.Name)
		}
	case domain.TxSubmitResult:
		s.lockout.Reset()
	}
	s.publishStateLocked()
	s.mu.Unlock()

	s.writeCache(cacheOp)
}

func (s *Session) onTxSettled(call domain.Call) {
	switch call.Kind {
	case domain.TxNameRegistration:
		s.requestRefetch(s.profileRefetch)
	default:
		s.requestRefetch(s.activeRefetch)
		s.requestRefetch(s.gameRefetch)
		if call.Kind == domain.TxSubmitResult {
			s.requestRefetch(s.profileRefetch)
		}
	}
}

func (s *Session) requestRefetch(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// scheduleLocked runs fn after d unless the session closes first.
func (s *Session) scheduleLocked(d time.Duration, fn func()) {
	s.timerSeq++
	id := s.timerSeq
	s.timers[id] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if live {
			fn()
		}
	})
}

func (s *Session) writeCache(op func(context.Context) error) {
	if op == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, cacheTimeout)
	defer cancel()
	if err := op(ctx); err != nil {
		s.log.Debug("cache write failed", "error", err)
	}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
