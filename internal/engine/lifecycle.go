package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/quiztour/internal/i18n"
	"github.com/lox/quiztour/internal/timers"
	"github.com/lox/quiztour/internal/tournament"
)

// Start begins the match: pending players become Active and the first
// question of tour 1 is asked. Without players or questions nothing changes.
func (e *Engine) Start(ctx context.Context, chatID string) error {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if errors.Is(err, tournament.ErrSessionNotFound) {
		return ErrNotConfigured
	}
	if err != nil {
		return err
	}
	switch s.Status {
	case tournament.StatusAwaitingPlayers, tournament.StatusReadyToStart:
	case tournament.StatusNotConfigured:
		return ErrNotConfigured
	default:
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidTransition, s.Status)
	}

	candidates := 0
	for _, p := range s.Players {
		if p.Status == tournament.PlayerPending || p.Status == tournament.PlayerActive {
			candidates++
		}
	}
	if candidates == 0 {
		e.say(ctx, s, i18n.NotEnoughPlayers)
		return ErrNotEnoughPlayers
	}
	if s.PoolSize() == 0 {
		e.say(ctx, s, i18n.NoQuestionPool)
		return ErrNoQuestionPool
	}

	now := e.clock.Now()
	for i := range s.Players {
		p := &s.Players[i]
		if p.Status == tournament.PlayerPending {
			p.Status = tournament.PlayerActive
		}
		p.TieBreak = 0
	}
	s.StartedAt = &now
	s.Status = tournament.StatusInProgress
	s.CurrentTour = 1
	e.logger.Info("Tournament started", "chat", chatID, "players", candidates, "tours", s.Tours)
	e.say(ctx, s, i18n.TourStart, 1, s.Tours, s.Topic(1))
	return e.beginTour(ctx, s)
}

// Pause freezes the match, remembering how much of the answer window or
// inter-tour break is left.
func (e *Engine) Pause(ctx context.Context, chatID string) error {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if err != nil {
		return err
	}
	if !s.Status.IsPlaying() {
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidTransition, s.Status)
	}

	now := e.clock.Now()
	snap := &tournament.PauseSnapshot{PreviousStatus: s.Status, PausedAt: now}
	if s.HasQuestionInFlight() {
		askedAt := *s.CurrentQuestionAskedAt
		e.cancelAnswerTimer(s)
		remaining := max(s.AnswerTimeout()-now.Sub(askedAt), 0)
		snap.RemainingTimeout = &remaining
	}
	if s.BreakUntil != nil {
		e.timers.Cancel(timers.KeyFor(chatID, *s.BreakUntil))
		remaining := max(s.BreakUntil.Sub(now), 0)
		snap.RemainingBreak = &remaining
	}
	s.PausedState = snap
	s.Status = tournament.StatusPaused
	if err := e.save(ctx, s); err != nil {
		return err
	}
	e.logger.Info("Tournament paused", "chat", chatID)
	e.say(ctx, s, i18n.Paused)
	return nil
}

// Resume continues a paused match. A question in flight gets exactly the
// time that was left when the match was paused.
func (e *Engine) Resume(ctx context.Context, chatID string) error {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if err != nil {
		return err
	}
	if s.Status != tournament.StatusPaused || s.PausedState == nil {
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidTransition, s.Status)
	}

	snap := s.PausedState
	now := e.clock.Now()
	s.Status = snap.PreviousStatus
	s.PausedState = nil
	e.logger.Info("Tournament resumed", "chat", chatID)

	switch {
	case s.HasQuestionInFlight() && snap.RemainingTimeout != nil:
		remaining := *snap.RemainingTimeout
		askedAt := now.Add(remaining - s.AnswerTimeout())
		s.CurrentQuestionAskedAt = &askedAt
		if err := e.save(ctx, s); err != nil {
			return err
		}
		e.say(ctx, s, i18n.Resumed)
		e.armAnswerTimer(chatID, askedAt, s.QuestionSeq, remaining)
		return nil

	case s.BreakUntil != nil && snap.RemainingBreak != nil:
		until := now.Add(*snap.RemainingBreak)
		s.BreakUntil = &until
		if err := e.save(ctx, s); err != nil {
			return err
		}
		e.say(ctx, s, i18n.Resumed)
		e.armBreakTimer(chatID, until, *snap.RemainingBreak)
		return nil
	}

	s.ClearCurrentQuestion()
	s.BreakUntil = nil
	e.say(ctx, s, i18n.Resumed)
	return e.advance(ctx, s)
}

// Stop cancels the match. A result is still archived.
func (e *Engine) Stop(ctx context.Context, chatID string) error {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if err != nil {
		return err
	}
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: match already %s", ErrInvalidTransition, s.Status)
	}
	e.logger.Info("Tournament stopped", "chat", chatID)
	return e.finish(ctx, s, tournament.StatusCancelled)
}

// finish terminates the session exactly once: no question or timer is left
// behind, the result is archived and final standings are posted. Archive
// failures are logged and do not undo completion.
func (e *Engine) finish(ctx context.Context, s *tournament.Session, status tournament.Status) error {
	e.timers.CancelChat(s.ChatID)

	now := e.clock.Now()
	s.Status = status
	s.CompletedAt = &now
	s.ClearCurrentQuestion()
	s.TurnQueue = nil
	s.BreakUntil = nil
	s.PausedState = nil
	s.SuddenDeath = nil
	for i := range s.Players {
		s.Players[i].SuddenDeathScore = 0
	}
	s.ResultID = e.newID()
	result := tournament.BuildResult(s.ResultID, s, now)

	if err := e.save(ctx, s); err != nil {
		return err
	}
	e.logger.Info("Tournament finished", "chat", s.ChatID, "status", status, "result", s.ResultID)

	if status == tournament.StatusCancelled {
		e.say(ctx, s, i18n.Cancelled)
	} else {
		e.say(ctx, s, i18n.GameOver)
	}
	if s.StartedAt != nil {
		e.announceStandings(ctx, s, e.printer(s).Sprintf(i18n.FinalStandings))
		if w, ok := result.Winner(); ok && status == tournament.StatusCompleted {
			e.say(ctx, s, i18n.Winner, w.Name, w.Score)
		}
	}

	if e.deps.Results != nil {
		if err := e.deps.Results.Archive(ctx, result); err != nil {
			e.logger.Error("Failed to archive result", "chat", s.ChatID, "error", err)
		}
	}
	if e.deps.Archive != nil && len(s.AskedQuestions) > 0 {
		if err := e.deps.Archive.MoveToArchive(ctx, s.AskedQuestions); err != nil {
			e.logger.Error("Failed to archive questions", "chat", s.ChatID, "error", err)
		}
	}
	return nil
}

// Recover re-arms timers for sessions persisted by a previous process.
// Deadlines that passed while the process was down fire immediately.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	lister, ok := e.deps.Store.(Lister)
	if !ok {
		return 0, nil
	}
	chats, err := lister.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	recovered := 0
	for _, chatID := range chats {
		ok, err := e.recoverChat(ctx, chatID)
		if err != nil {
			e.logger.Error("Failed to recover session", "chat", chatID, "error", err)
			continue
		}
		if ok {
			recovered++
		}
	}
	return recovered, nil
}

func (e *Engine) recoverChat(ctx context.Context, chatID string) (bool, error) {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if err != nil {
		return false, err
	}
	if !s.Status.IsPlaying() {
		return false, nil
	}

	now := e.clock.Now()
	switch {
	case s.HasQuestionInFlight():
		askedAt := *s.CurrentQuestionAskedAt
		e.armAnswerTimer(chatID, askedAt, s.QuestionSeq, max(askedAt.Add(s.AnswerTimeout()).Sub(now), 0))
	case s.BreakUntil != nil:
		e.armBreakTimer(chatID, *s.BreakUntil, max(s.BreakUntil.Sub(now), 0))
	default:
		if err := e.advance(ctx, s); err != nil {
			return false, err
		}
	}
	e.logger.Info("Session recovered", "chat", chatID, "status", s.Status)
	return true, nil
}
