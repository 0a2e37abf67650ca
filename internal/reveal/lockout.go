// Package reveal gates how often the target pattern may be shown.
package reveal

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// EligibleMoveThreshold is the number of local moves before the first reveal.
	EligibleMoveThreshold = 5

	DefaultLockDuration = 180 * time.Second
	DefaultTick         = 3 * time.Second
)

// Lockout is a timed gate over the "show target" toggle. The unlock instant is
// lockedUntil; the ticker only refreshes what the player sees.
type Lockout struct {
	clock        clock.Clock
	lockDuration time.Duration
	tick         time.Duration
	onTick       func()

	mu          sync.Mutex
	revealed    bool
	lockedUntil time.Time
	ticker      *clock.Ticker
	stop        chan struct{}
}

// New creates a Lockout. onTick, if non-nil, is called on every display tick
// and once when the lock expires; it runs without the Lockout's lock held.
func New(clk clock.Clock, lockDuration, tick time.Duration, onTick func()) *Lockout {
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Lockout{
		clock:        clk,
		lockDuration: lockDuration,
		tick:         tick,
		onTick:       onTick,
	}
}

// CanReveal is independent of the lock state.
func CanReveal(moves int) bool {
	return moves >= EligibleMoveThreshold
}

func (l *Lockout) Revealed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revealed
}

// Locked reports whether a lock covers now
func (l *Lockout) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lockedLocked()
}

func (l *Lockout) lockedLocked() bool {
	return !l.lockedUntil.IsZero() && l.clock.Now().Before(l.lockedUntil)
}

// LockedUntil returns the unlock instant, zero if never armed
func (l *Lockout) LockedUntil() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lockedUntil
}

// Countdown returns the whole seconds left on the lock, rounded up.
func (l *Lockout) Countdown() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.lockedLocked() {
		return 0
	}
	left := l.lockedUntil.Sub(l.clock.Now())
	return int((left + time.Second - 1) / time.Second)
}

// HandleShowTarget toggles the reveal. It returns false and changes nothing
// when the lock is active or moves are below the threshold.
func (l *Lockout) HandleShowTarget(moves int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lockedLocked() || !CanReveal(moves) {
		return false
	}

	l.revealed = !l.revealed
	if l.revealed {
		l.lockedUntil = l.clock.Now().Add(l.lockDuration)
		l.startTickerLocked()
	}
	return true
}

// Reset clears the reveal, the lock and the display ticker.
func (l *Lockout) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revealed = false
	l.lockedUntil = time.Time{}
	l.stopTickerLocked()
}

// Close stops the display ticker; the Lockout must not be used afterwards.
func (l *Lockout) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTickerLocked()
}

func (l *Lockout) startTickerLocked() {
	l.stopTickerLocked()

	ticker := l.clock.Ticker(l.tick)
	stop := make(chan struct{})
	l.ticker = ticker
	l.stop = stop

	go l.run(ticker, stop)
}

func (l *Lockout) stopTickerLocked() {
	if l.ticker == nil {
		return
	}
	l.ticker.Stop()
	close(l.stop)
	l.ticker = nil
	l.stop = nil
}

func (l *Lockout) run(ticker *clock.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		l.mu.Lock()
		if l.stop != stop {
			l.mu.Unlock()
			return
		}
		expired := !l.lockedLocked()
		if expired {
			l.stopTickerLocked()
		}
		l.mu.Unlock()

		if l.onTick != nil {
			l.onTick()
		}
		if expired {
			return
		}
	}
}
