package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"colorsnap/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Simulator is an in-process ColorSnap contract. Writes are queued and take
// effect when AwaitConfirmation is called for their handle, which mirrors a
// transaction being mined.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	names  map[common.Address]string
	points map[common.Address]uint64
	active map[common.Address]uint64
	games  map[uint64]*simGame
	nextID uint64
	txs    map[domain.Handle]*simTx

	readErr  error
	writeErr error
	held     chan struct{}
}

type simGame struct {
	owner   common.Address
	bottles []uint8
	target  []uint8
	moves   uint64
	active  bool
}

type simTx struct {
	apply func() error
	done  bool
	err   error
}

// NewSimulator creates an empty contract. seed makes dealing reproducible.
func NewSimulator(seed uint64) *Simulator {
	return &Simulator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		names:  make(map[common.Address]string),
		points: make(map[common.Address]uint64),
		active: make(map[common.Address]uint64),
		games:  make(map[uint64]*simGame),
		txs:    make(map[domain.Handle]*simTx),
	}
}

// As returns a Gateway acting for addr
func (s *Simulator) As(addr common.Address) *SimAccount {
	return &SimAccount{sim: s, addr: addr}
}

// FailReads makes every read return err until called with nil
func (s *Simulator) FailReads(err error) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

// FailWrites makes every write submission return err until called with nil
func (s *Simulator) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// Hold blocks confirmations until Release.
func (s *Simulator) Hold() {
	s.mu.Lock()
	if s.held == nil {
		s.held = make(chan struct{})
	}
	s.mu.Unlock()
}

// Release lets held confirmations proceed
func (s *Simulator) Release() {
	s.mu.Lock()
	if s.held != nil {
		close(s.held)
		s.held = nil
	}
	s.mu.Unlock()
}

// Game returns a copy of a game's raw state
func (s *Simulator) Game(id uint64) (domain.RawGameState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return domain.RawGameState{}, false
	}
	return g.raw(), true
}

func (g *simGame) raw() domain.RawGameState {
	return domain.RawGameState{
		Owner:     g.owner,
		Bottles:   slices.Clone(g.bottles),
		Target:    slices.Clone(g.target),
		MoveCount: g.moves,
		Active:    g.active,
	}
}

func (s *Simulator) read() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

func (s *Simulator) submit(apply func() error) (domain.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return "", s.writeErr
	}
	h := domain.Handle("0x" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	s.txs[h] = &simTx{apply: apply}
	return h, nil
}

func (s *Simulator) await(ctx context.Context, h domain.Handle) error {
	s.mu.Lock()
	tx, ok := s.txs[h]
	held := s.held
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if held != nil {
		select {
		case <-held:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !tx.done {
		tx.err = tx.apply()
		tx.done = true
	}
	if tx.err != nil {
		return fmt.Errorf("%w: %s", ErrReverted, tx.err)
	}
	return nil
}

// deal must be called with mu held
func (s *Simulator) deal(owner common.Address) uint64 {
	target := make([]uint8, BottleCount)
	for i := range target {
		target[i] = uint8(i % 5)
	}
	s.rng.Shuffle(len(target), func(i, j int) { target[i], target[j] = target[j], target[i] })

	bottles := slices.Clone(target)
	for slices.Equal(bottles, target) {
		s.rng.Shuffle(len(bottles), func(i, j int) { bottles[i], bottles[j] = bottles[j], bottles[i] })
	}

	s.nextID++
	s.games[s.nextID] = &simGame{owner: owner, bottles: bottles, target: target, active: true}
	s.active[owner] = s.nextID
	return s.nextID
}

// ownedActive must be called with mu held
func (s *Simulator) ownedActive(owner common.Address, id uint64) (*simGame, error) {
	g, ok := s.games[id]
	if !ok {
		return nil, errors.New("game does not exist")
	}
	if g.owner != owner {
		return nil, errors.New("not your game")
	}
	if !g.active {
		return nil, errors.New("game is not active")
	}
	return g, nil
}

// SimAccount is the Simulator seen by one identity
type SimAccount struct {
	sim  *Simulator
	addr common.Address
}

func (a *SimAccount) Identity() common.Address { return a.addr }

func (a *SimAccount) PlayerName(ctx context.Context, player common.Address) (string, error) {
	if err := a.sim.read(); err != nil {
		return "", err
	}
	a.sim.mu.Lock()
	defer a.sim.mu.Unlock()
	return a.sim.names[player], nil
}

func (a *SimAccount) PlayerPoints(ctx context.Context, player common.Address) (uint64, error) {
	if err := a.sim.read(); err != nil {
		return 0, err
	}
	a.sim.mu.Lock()
	defer a.sim.mu.Unlock()
	return a.sim.points[player], nil
}

func (a *SimAccount) ActiveGameID(ctx context.Context, player common.Address) (uint64, error) {
	if err := a.sim.read(); err != nil {
		return 0, err
	}
	a.sim.mu.Lock()
	defer a.sim.mu.Unlock()
	return a.sim.active[player], nil
}

func (a *SimAccount) GameState(ctx context.Context, gameID uint64) (*domain.RawGameState, error) {
	if err := a.sim.read(); err != nil {
		return nil, err
	}
	st, ok := a.sim.Game(gameID)
	if !ok {
		return &domain.RawGameState{}, nil
	}
	return &st, nil
}

func (a *SimAccount) SetPlayerName(ctx context.Context, name string) (domain.Handle, error) {
	return a.sim.submit(func() error {
		if len(name) == 0 || len(name) > MaxNameLength {
			return errors.New("invalid name length")
		}
		a.sim.names[a.addr] = name
		return nil
	})
}

func (a *SimAccount) StartGame(ctx context.Context) (domain.Handle, error) {
	return a.sim.submit(func() error {
		if a.sim.active[a.addr] != domain.NoGame {
			return errors.New("active game exists")
		}
		a.sim.deal(a.addr)
		return nil
	})
}

func (a *SimAccount) SubmitResult(ctx context.Context, gameID uint64, bottles []uint8, moves uint64) (domain.Handle, error) {
	final := slices.Clone(bottles)
	return a.sim.submit(func() error {
		g, err := a.sim.ownedActive(a.addr, gameID)
		if err != nil {
			return err
		}
		if !slices.Equal(final, g.target) {
			return errors.New("bottles do not match target")
		}
		g.bottles = final
		g.moves = moves
		g.active = false
		a.sim.points[a.addr] += PointsPerWin
		delete(a.sim.active, a.addr)
		return nil
	})
}

func (a *SimAccount) EndGame(ctx context.Context, gameID uint64) (domain.Handle, error) {
	return a.sim.submit(func() error {
		g, err := a.sim.ownedActive(a.addr, gameID)
		if err != nil {
			return err
		}
		g.active = false
		delete(a.sim.active, a.addr)
		return nil
	})
}

func (a *SimAccount) AwaitConfirmation(ctx context.Context, h domain.Handle) error {
	return a.sim.await(ctx, h)
}
