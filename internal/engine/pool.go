package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/quiztour/internal/i18n"
	"github.com/lox/quiztour/internal/tournament"
)

// PreparePool asks the question provider for every tour's questions plus the
// sudden-death reserve. The chat is not blocked while the provider works;
// players may keep joining and the pool is sized for everyone registered
// when preparation began.
func (e *Engine) PreparePool(ctx context.Context, chatID string) (int, error) {
	if e.deps.Questions == nil {
		return 0, errors.New("engine: no question provider configured")
	}

	req, err := e.beginPrepare(ctx, chatID)
	if err != nil {
		return 0, err
	}

	pool, prepErr := e.deps.Questions.Prepare(ctx, req)

	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if s.Status != tournament.StatusPreparingQuestionPool {
		e.logger.Warn("Discarding question pool for changed session", "chat", chatID, "status", s.Status)
		return 0, fmt.Errorf("%w: session became %s during preparation", ErrInvalidTransition, s.Status)
	}

	if prepErr == nil && countQuestions(pool) == 0 {
		prepErr = ErrNoQuestionPool
	}
	if prepErr != nil {
		s.Status = tournament.StatusAwaitingPlayers
		if err := e.save(ctx, s); err != nil {
			return 0, err
		}
		e.logger.Error("Question pool preparation failed", "chat", chatID, "error", prepErr)
		e.say(ctx, s, i18n.PoolFailed)
		return 0, fmt.Errorf("prepare question pool: %w", prepErr)
	}

	s.QuestionsByTour = make(map[int]tournament.QuestionQueue, len(pool))
	for tour, qs := range pool {
		s.QuestionsByTour[tour] = append(tournament.QuestionQueue(nil), qs...)
	}
	s.Status = tournament.StatusReadyToStart
	if err := e.save(ctx, s); err != nil {
		return 0, err
	}
	size := s.PoolSize()
	e.logger.Info("Question pool ready", "chat", chatID, "questions", size)
	e.say(ctx, s, i18n.PoolReady, size)
	return size, nil
}

func (e *Engine) beginPrepare(ctx context.Context, chatID string) (tournament.PoolRequest, error) {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if errors.Is(err, tournament.ErrSessionNotFound) {
		return tournament.PoolRequest{}, ErrNotConfigured
	}
	if err != nil {
		return tournament.PoolRequest{}, err
	}
	switch s.Status {
	case tournament.StatusAwaitingPlayers, tournament.StatusReadyToStart:
	case tournament.StatusNotConfigured:
		return tournament.PoolRequest{}, ErrNotConfigured
	default:
		return tournament.PoolRequest{}, fmt.Errorf("%w: cannot prepare questions while %s", ErrInvalidTransition, s.Status)
	}

	var names []string
	for _, p := range s.Players {
		if p.Status == tournament.PlayerPending || p.Status == tournament.PlayerActive {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		e.say(ctx, s, i18n.NotEnoughPlayers)
		return tournament.PoolRequest{}, ErrNotEnoughPlayers
	}

	s.Status = tournament.StatusPreparingQuestionPool
	if err := e.save(ctx, s); err != nil {
		return tournament.PoolRequest{}, err
	}
	e.say(ctx, s, i18n.PoolPreparing)

	return tournament.PoolRequest{
		ChatID:        s.ChatID,
		Topics:        append([]string(nil), s.Topics...),
		Tours:         s.Tours,
		RoundsPerTour: s.RoundsPerTour,
		Players:       names,
		Language:      s.Language,
		Mode:          s.SourceMode,
		Reserve:       e.cfg.ReserveSize,
		ReserveTopic:  s.Topic(s.Tours),
	}, nil
}

func countQuestions(pool map[int][]tournament.Question) int {
	n := 0
	for _, qs := range pool {
		n += len(qs)
	}
	return n
}

// ensureReserve starts a background refill when the sudden-death reserve
// cannot cover another round for the given number of participants.
func (e *Engine) ensureReserve(s *tournament.Session, participants int) {
	if e.deps.Questions == nil || e.cfg.ReserveSize <= 0 {
		return
	}
	if len(s.QuestionsByTour[tournament.ReserveTour]) >= participants {
		return
	}

	exclude := make([]string, 0, len(s.AskedQuestions))
	for _, q := range s.AskedQuestions {
		exclude = append(exclude, q.Text)
	}
	names := make([]string, 0, participants)
	for _, p := range s.ActivePlayers() {
		names = append(names, p.Name)
	}
	req := tournament.PoolRequest{
		ChatID:       s.ChatID,
		Players:      names,
		Language:     s.Language,
		Mode:         s.SourceMode,
		Reserve:      max(e.cfg.ReserveSize, participants),
		ReserveTopic: s.Topic(s.CurrentTour),
		Exclude:      exclude,
	}

	e.refillMu.Lock()
	if e.refilling[s.ChatID] {
		e.refillMu.Unlock()
		return
	}
	e.refilling[s.ChatID] = true
	e.refillMu.Unlock()

	e.refills.Add(1)
	go func() {
		defer e.refills.Done()
		defer func() {
			e.refillMu.Lock()
			delete(e.refilling, req.ChatID)
			e.refillMu.Unlock()
		}()
		e.refill(req)
	}()
}

// refill fetches reserve questions and merges them into the session if it
// is still running. Only the reserve and tours not yet begun are touched.
func (e *Engine) refill(req tournament.PoolRequest) {
	ctx, cancel := e.callbackContext(context.Background())
	defer cancel()

	pool, err := e.deps.Questions.Prepare(ctx, req)
	if err != nil {
		e.logger.Warn("Reserve refill failed", "chat", req.ChatID, "error", err)
		return
	}

	unlock := e.lock(req.ChatID)
	defer unlock()

	s, err := e.load(ctx, req.ChatID)
	if err != nil {
		e.logger.Warn("Reserve refill could not load session", "chat", req.ChatID, "error", err)
		return
	}
	if !s.Status.IsPlaying() && s.Status != tournament.StatusPaused {
		e.logger.Debug("Discarding reserve refill", "chat", req.ChatID, "status", s.Status)
		return
	}

	added := 0
	for tour, qs := range pool {
		if tour != tournament.ReserveTour && tour <= s.CurrentTour {
			continue
		}
		s.QuestionsByTour[tour] = append(s.QuestionsByTour[tour], qs...)
		added += len(qs)
	}
	if added == 0 {
		return
	}
	if err := e.save(ctx, s); err != nil {
		e.logger.Error("Failed to save reserve refill", "chat", req.ChatID, "error", err)
		return
	}
	e.logger.Debug("Reserve refilled", "chat", req.ChatID, "questions", added)
}
