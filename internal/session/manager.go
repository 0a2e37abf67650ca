package session

import (
	"context"
	"sync"
	"time"

	"colorsnap/internal/chain"
	"colorsnap/internal/logger"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	cleanupInterval    = time.Minute
)

// GatewayFactory returns a gateway acting for addr.
type GatewayFactory func(addr common.Address) (chain.Gateway, error)

// Manager keeps at most one session per identity.
type Manager struct {
	factory     GatewayFactory
	cfg         Config
	opts        Options
	idleTimeout time.Duration
	clock       clock.Clock

	mu       sync.Mutex
	sessions map[common.Address]*Session
}

func NewManager(factory GatewayFactory, cfg Config, opts Options, idleTimeout time.Duration) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		factory:     factory,
		cfg:         cfg,
		opts:        opts,
		idleTimeout: idleTimeout,
		clock:       opts.Clock,
		sessions:    make(map[common.Address]*Session),
	}
}

// Connect returns the running session for addr, starting one if needed.
// The session is built and started outside the registry lock; if another
// caller won the race, its session is kept and ours is closed.
func (m *Manager) Connect(addr common.Address) (*Session, error) {
	if s, ok := m.Get(addr); ok {
		s.Touch()
		return s, nil
	}

	gw, err := m.factory(addr)
	if err != nil {
		return nil, err
	}

	opts := m.opts
	opts.Logger = logger.With("address", addr.Hex())
	fresh := New(gw, m.cfg, opts)
	fresh.Start()

	m.mu.Lock()
	if s, ok := m.sessions[addr]; ok {
		m.mu.Unlock()
		fresh.Close(false)
		s.Touch()
		return s, nil
	}
	m.sessions[addr] = fresh
	n := len(m.sessions)
	m.mu.Unlock()

	logger.Info("session connected", "address", addr.Hex(), "sessions", n)
	return fresh, nil
}

func (m *Manager) Get(addr common.Address) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[addr]
	return s, ok
}

// Disconnect closes addr's session and clears its cached data.
func (m *Manager) Disconnect(addr common.Address) bool {
	m.mu.Lock()
	s, ok := m.sessions[addr]
	delete(m.sessions, addr)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close(true)
	return true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every session, keeping cached data for the next start.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for addr, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, addr)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close(false)
		}()
	}
	wg.Wait()
}

// StartCleanup periodically closes sessions that have been idle for longer
// than the idle timeout and have no subscribers.
func (m *Manager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := m.clock.Ticker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanupIdle()
			}
		}
	}()
}

func (m *Manager) cleanupIdle() {
	now := m.clock.Now()

	var stale []*Session
	m.mu.Lock()
	for addr, s := range m.sessions {
		lastSeen, watched := s.IdleSince()
		if watched || now.Sub(lastSeen) < m.idleTimeout {
			continue
		}
		stale = append(stale, s)
		delete(m.sessions, addr)
	}
	m.mu.Unlock()

	for _, s := range stale {
		logger.Info("closing idle session", "address", s.Address().Hex())
		s.Close(false)
	}
}
