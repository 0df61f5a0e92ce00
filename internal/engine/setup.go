package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lox/quiztour/internal/i18n"
	"github.com/lox/quiztour/internal/tournament"
)

// Settings are the match parameters chosen during setup.
type Settings struct {
	Topics               []string
	Tours                int
	RoundsPerTour        int
	AnswerTimeoutSeconds int
	Language             string
	SourceMode           tournament.SourceMode
	EliminateLowest      bool
}

// Validate checks the settings are playable.
func (st Settings) Validate() error {
	switch {
	case st.Tours < 1:
		return fmt.Errorf("%w: tours must be at least 1", ErrInvalidSettings)
	case st.RoundsPerTour < 1:
		return fmt.Errorf("%w: rounds per tour must be at least 1", ErrInvalidSettings)
	case st.AnswerTimeoutSeconds < 1:
		return fmt.Errorf("%w: answer timeout must be at least 1 second", ErrInvalidSettings)
	case len(st.Topics) == 0:
		return fmt.Errorf("%w: at least one topic is required", ErrInvalidSettings)
	}
	switch st.SourceMode {
	case "", tournament.SourceBank, tournament.SourceAI:
	default:
		return fmt.Errorf("%w: unknown question source %q", ErrInvalidSettings, st.SourceMode)
	}
	return nil
}

// tourTopics returns exactly one topic per tour, cycling the given list.
func tourTopics(topics []string, tours int) []string {
	out := make([]string, tours)
	for i := range out {
		out[i] = strings.TrimSpace(topics[i%len(topics)])
	}
	return out
}

// loadOrNew returns the chat's session, creating an unconfigured one when
// none exists yet.
func (e *Engine) loadOrNew(ctx context.Context, chatID string) (*tournament.Session, error) {
	s, err := e.load(ctx, chatID)
	if errors.Is(err, tournament.ErrSessionNotFound) {
		return tournament.NewSession(chatID, e.clock.Now()), nil
	}
	return s, err
}

// Configure applies match settings. A finished session is replaced by a
// fresh match; players who already joined an unstarted match are kept.
func (e *Engine) Configure(ctx context.Context, chatID string, st Settings) (*tournament.Session, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.loadOrNew(ctx, chatID)
	if err != nil {
		return nil, err
	}
	switch {
	case s.Status.IsTerminal():
		s = tournament.NewSession(chatID, e.clock.Now())
	case s.Status.IsPlaying(), s.Status == tournament.StatusPaused, s.Status == tournament.StatusPreparingQuestionPool:
		return nil, fmt.Errorf("%w: cannot configure while %s", ErrInvalidTransition, s.Status)
	}

	if st.SourceMode == "" {
		st.SourceMode = tournament.SourceBank
	}
	if st.Language == "" {
		st.Language = "en"
	}
	s.Topics = tourTopics(st.Topics, st.Tours)
	s.Tours = st.Tours
	s.RoundsPerTour = st.RoundsPerTour
	s.AnswerTimeoutSeconds = st.AnswerTimeoutSeconds
	s.Language = st.Language
	s.SourceMode = st.SourceMode
	s.EliminateLowest = st.EliminateLowest
	s.QuestionsByTour = make(map[int]tournament.QuestionQueue)
	s.Status = tournament.StatusAwaitingPlayers

	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	e.logger.Info("Tournament configured", "chat", chatID, "tours", s.Tours, "rounds", s.RoundsPerTour)
	e.say(ctx, s, i18n.Configured, s.Tours, s.RoundsPerTour, s.AnswerTimeoutSeconds)
	return s, nil
}

// NewMatch discards the chat's session so setup can start over.
func (e *Engine) NewMatch(ctx context.Context, chatID string) error {
	unlock := e.lock(chatID)
	defer unlock()

	e.timers.CancelChat(chatID)
	if err := e.deps.Store.Remove(ctx, chatID); err != nil && !errors.Is(err, tournament.ErrSessionNotFound) {
		return fmt.Errorf("remove session %s: %w", chatID, err)
	}
	e.logger.Info("Session discarded", "chat", chatID)
	return nil
}

// Join registers a player. Before the start they wait as Pending; once the
// match is running they can only watch.
func (e *Engine) Join(ctx context.Context, chatID, playerID, name string) (tournament.Player, error) {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if errors.Is(err, tournament.ErrSessionNotFound) {
		return tournament.Player{}, ErrNotConfigured
	}
	if err != nil {
		return tournament.Player{}, err
	}
	if s.Status == tournament.StatusNotConfigured {
		return tournament.Player{}, ErrNotConfigured
	}
	if s.Status.IsTerminal() {
		return tournament.Player{}, fmt.Errorf("%w: match is %s", ErrInvalidTransition, s.Status)
	}
	if p := s.Player(playerID); p != nil {
		return *p, ErrAlreadyJoined
	}

	status := tournament.PlayerPending
	if s.StartedAt != nil {
		status = tournament.PlayerSpectator
	}
	p := tournament.Player{
		ID:       playerID,
		Name:     name,
		Status:   status,
		JoinedAt: e.clock.Now(),
	}
	s.Players = append(s.Players, p)
	if err := e.save(ctx, s); err != nil {
		return tournament.Player{}, err
	}
	e.logger.Info("Player joined", "chat", chatID, "player", playerID, "status", status)
	e.say(ctx, s, i18n.Joined, name)
	return p, nil
}

// Leave withdraws a player. Before the start the registration is dropped;
// during play the player is eliminated and the turn moves on.
func (e *Engine) Leave(ctx context.Context, chatID, playerID string) error {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if err != nil {
		return err
	}
	p := s.Player(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	name := p.Name

	if s.StartedAt == nil {
		players := s.Players[:0]
		for _, other := range s.Players {
			if other.ID != playerID {
				players = append(players, other)
			}
		}
		s.Players = players
		if err := e.save(ctx, s); err != nil {
			return err
		}
		e.say(ctx, s, i18n.Left, name)
		return nil
	}

	if s.Status.IsTerminal() || !p.IsActive() {
		return nil
	}
	p.Status = tournament.PlayerEliminated
	p.EliminatedInTour = s.CurrentTour
	s.TurnQueue = without(s.TurnQueue, playerID)
	e.logger.Info("Player left", "chat", chatID, "player", playerID)
	e.say(ctx, s, i18n.Left, name)

	if s.ActiveCount() == 0 {
		return e.finish(ctx, s, tournament.StatusCancelled)
	}

	onTurn := s.CurrentPlayerID != nil && *s.CurrentPlayerID == playerID
	if onTurn {
		e.cancelAnswerTimer(s)
		// The dealt question still counts against the leaver.
		recordAnswer(s, p, false)
		s.ClearCurrentQuestion()
		if s.PausedState != nil {
			s.PausedState.RemainingTimeout = nil
		}
	}
	if s.Status.IsPlaying() && !s.HasQuestionInFlight() {
		return e.advance(ctx, s)
	}
	return e.save(ctx, s)
}

// Standings returns the players in display order.
func (e *Engine) Standings(ctx context.Context, chatID string) ([]tournament.Player, error) {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return tournament.Standings(s), nil
}

// Session returns a snapshot of the chat's session.
func (e *Engine) Session(ctx context.Context, chatID string) (*tournament.Session, error) {
	unlock := e.lock(chatID)
	defer unlock()
	return e.load(ctx, chatID)
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, other := range ids {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}
