package session

import (
	"context"
	"errors"

	"colorsnap/internal/cache"
	"colorsnap/internal/domain"

	"golang.org/x/sync/errgroup"
)

// activeLoop polls the player's active game id for the life of the session.
func (s *Session) activeLoop() {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.pollActiveGame()

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		case <-s.activeRefetch:
		}
	}
}

// gameLoop polls one game's state until its context is cancelled, which
// happens whenever the tracked id changes.
func (s *Session) gameLoop(ctx context.Context, id uint64) {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.pollGameState(ctx, id)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.gameRefetch:
		}
	}
}

// profileLoop reads name and points once at start and again on request.
func (s *Session) profileLoop() {
	defer s.wg.Done()

	for {
		s.refreshProfile()

		select {
		case <-s.ctx.Done():
			return
		case <-s.profileRefetch:
		}
	}
}

func (s *Session) readFailed(query string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	PollErrors.WithLabelValues(query).Inc()
	s.log.Debug("remote read failed", "query", query, "error", err)
}

func (s *Session) pollActiveGame() {
	ctx, cancel := context.WithTimeout(s.ctx, readTimeout)
	id, err := s.gw.ActiveGameID(ctx, s.addr)
	cancel()
	if err != nil {
		s.readFailed("active_game", err)
		return
	}

	// A game can end between two state polls. Read it once more so its
	// completion is not lost when the id disappears first.
	if id == domain.NoGame {
		s.mu.Lock()
		prev := s.gameID
		pending := prev != domain.NoGame && prev != s.lastCompleted
		s.mu.Unlock()
		if pending {
			s.pollGameState(s.ctx, prev)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	op := s.applyActiveIDLocked(id)
	s.mu.Unlock()

	s.writeCache(op)
}

func (s *Session) applyActiveIDLocked(id uint64) func(context.Context) error {
	if id == domain.NoGame {
		if s.gameID == domain.NoGame && !s.active && len(s.board.Bottles) == 0 {
			return nil
		}
		s.clearGameLocked()
		s.publishStateLocked()
		return s.forgetGameOp()
	}

	if id == s.gameID {
		return nil
	}
	// A lagging replica can still report a game we saw end.
	if id == s.lastCompleted {
		DiscardedReads.WithLabelValues("completed_id").Inc()
		return nil
	}

	s.log.Info("active game adopted", "game_id", id, "previous", s.gameID)
	s.setGameIDLocked(id)
	s.active = false
	s.board.Clear()
	s.publishStateLocked()
	return func(ctx context.Context) error {
		return s.store.Set(ctx, cache.ActiveGameKey(s.addr), formatUint(id))
	}
}

// setGameIDLocked switches the tracked game. The old game loop is cancelled,
// the reveal lockout reset and, for a real id, a new loop started.
func (s *Session) setGameIDLocked(id uint64) {
	if s.gameCancel != nil {
		s.gameCancel()
		s.gameCancel = nil
	}
	if s.gameID != id {
		s.lockout.Reset()
		s.adopted = nil
	}
	s.gameID = id
	if id == domain.NoGame || s.closed {
		return
	}

	// The new loop reads immediately; a refetch queued for the old id is moot.
	select {
	case <-s.gameRefetch:
	default:
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.gameCancel = cancel
	s.wg.Add(1)
	go s.gameLoop(ctx, id)
}

func (s *Session) clearGameLocked() {
	s.setGameIDLocked(domain.NoGame)
	s.active = false
	s.board.Clear()
}

func (s *Session) forgetGameOp() func(context.Context) error {
	return func(ctx context.Context) error {
		return s.store.Delete(ctx, cache.ActiveGameKey(s.addr))
	}
}

func (s *Session) pollGameState(ctx context.Context, id uint64) {
	rctx, cancel := context.WithTimeout(ctx, readTimeout)
	raw, err := s.gw.GameState(rctx, id)
	cancel()
	if err != nil {
		s.readFailed("game_state", err)
		return
	}

	s.mu.Lock()
	if s.closed || s.gameID != id {
		s.mu.Unlock()
		DiscardedReads.WithLabelValues("stale_id").Inc()
		return
	}
	if raw.Owner != s.addr {
		s.mu.Unlock()
		DiscardedReads.WithLabelValues("owner_mismatch").Inc()
		s.log.Debug("game state owner mismatch", "game_id", id, "owner", raw.Owner.Hex())
		return
	}

	// Local swaps stand until the remote tuple actually changes.
	if raw.Equal(s.adopted) {
		s.mu.Unlock()
		return
	}
	s.adopted = raw
	st := raw.Decode(id)
	s.board.Adopt(st.Bottles, st.Target)
	s.active = st.Active

	if st.Active || s.lastCompleted == id {
		s.publishStateLocked()
		s.mu.Unlock()
		return
	}

	s.lastCompleted = id
	c := &Completion{
		Game:    st,
		Outcome: outcomeFor(s.tracker.LastTx()),
		At:      s.clock.Now(),
	}
	s.publishLocked(Event{Type: EventCompleted, Completed: c})
	Completions.WithLabelValues(string(c.Outcome)).Inc()
	if s.journal != nil {
		s.journal.completion(&domain.CompletedGame{
			Address:   s.addr,
			GameID:    id,
			Outcome:   c.Outcome,
			Bottles:   st.Bottles,
			Target:    st.Target,
			MoveCount: st.MoveCount,
		})
	}

	s.clearGameLocked()
	s.scheduleLocked(s.cfg.Tracker.NameSettle, func() { s.requestRefetch(s.profileRefetch) })
	s.publishStateLocked()
	s.mu.Unlock()

	s.log.Info("game completed", "game_id", id, "outcome", c.Outcome)
	s.writeCache(s.forgetGameOp())
}

func (s *Session) refreshProfile() {
	g, ctx := errgroup.WithContext(s.ctx)

	var (
		name   string
		points uint64
	)
	g.Go(func() error {
		rctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		var err error
		name, err = s.gw.PlayerName(rctx, s.addr)
		return err
	})
	g.Go(func() error {
		rctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		var err error
		points, err = s.gw.PlayerPoints(rctx, s.addr)
		return err
	})
	if err := g.Wait(); err != nil {
		s.readFailed("profile", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	changed := s.player.Name != name || s.player.Points != points
	s.player.Name = name
	s.player.Points = points
	if changed {
		s.publishStateLocked()
	}
	s.mu.Unlock()

	s.writeCache(func(ctx context.Context) error {
		if err := s.store.Set(ctx, cache.PlayerNameKey(s.addr), name); err != nil {
			return err
		}
		return s.store.Set(ctx, cache.PlayerPointsKey(s.addr), formatUint(points))
	})
}
