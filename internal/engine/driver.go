package engine

import (
	"context"
	"time"

	"github.com/lox/quiztour/internal/i18n"
	"github.com/lox/quiztour/internal/timers"
	"github.com/lox/quiztour/internal/tournament"
)

// advance asks the next question, or hands over to tour completion or
// sudden-death resolution when the rotation is exhausted. It always leaves
// the session persisted.
func (e *Engine) advance(ctx context.Context, s *tournament.Session) error {
	for {
		if !s.Status.IsPlaying() || s.HasQuestionInFlight() || s.BreakUntil != nil {
			return e.save(ctx, s)
		}
		suddenDeath := s.Status == tournament.StatusSuddenDeath

		if !suddenDeath && len(s.QuestionsByTour[s.CurrentTour]) == 0 {
			return e.completeTour(ctx, s)
		}

		if len(s.TurnQueue) == 0 {
			if suddenDeath {
				if suddenDeathResolved(s) {
					return e.resolveSuddenDeath(ctx, s)
				}
				e.say(ctx, s, i18n.SuddenDeathContinue)
				s.TurnQueue = s.ParticipantIDs()
			} else {
				if s.CurrentRound >= s.RoundsPerTour {
					return e.completeTour(ctx, s)
				}
				s.TurnQueue = s.ActivePlayerIDs()
			}
			s.CurrentRound++
			if len(s.TurnQueue) == 0 {
				return e.finish(ctx, s, tournament.StatusCompleted)
			}
		}

		playerID := s.TurnQueue[0]
		s.TurnQueue = s.TurnQueue[1:]
		p := s.Player(playerID)
		if p == nil || !p.IsActive() {
			e.logger.Debug("Skipping inactive player", "chat", s.ChatID, "player", playerID)
			continue
		}

		q, ok := nextQuestion(s, suddenDeath)
		if !ok {
			if suddenDeath {
				e.logger.Warn("No questions left for sudden death", "chat", s.ChatID)
				return e.resolveSuddenDeath(ctx, s)
			}
			return e.completeTour(ctx, s)
		}
		return e.ask(ctx, s, p, q)
	}
}

// nextQuestion pops from the current tour. Sudden-death rounds fall back to
// the reserve and then to later tours.
func nextQuestion(s *tournament.Session, suddenDeath bool) (tournament.Question, bool) {
	order := []int{s.CurrentTour}
	if suddenDeath {
		order = append(order, tournament.ReserveTour)
		for tour := s.CurrentTour + 1; tour <= s.Tours; tour++ {
			order = append(order, tour)
		}
	}
	for _, tour := range order {
		queue := s.QuestionsByTour[tour]
		if q, ok := queue.Pop(); ok {
			s.QuestionsByTour[tour] = queue
			return q, true
		}
	}
	return tournament.Question{}, false
}

// ask puts q in flight for p: persist, announce, then arm the deadline.
func (e *Engine) ask(ctx context.Context, s *tournament.Session, p *tournament.Player, q tournament.Question) error {
	askedAt := e.clock.Now()
	s.SetCurrentQuestion(q, p.ID, askedAt)
	s.AskedQuestions = append(s.AskedQuestions, q)
	if err := e.save(ctx, s); err != nil {
		return err
	}

	topic := q.Topic
	if topic == "" {
		topic = s.Topic(s.CurrentTour)
	}
	e.say(ctx, s, i18n.Prompt, s.CurrentTour, s.CurrentRound, p.Name, topic, q.Text, s.AnswerTimeoutSeconds)
	e.armAnswerTimer(s.ChatID, askedAt, s.QuestionSeq, s.AnswerTimeout())
	e.logger.Debug("Question asked", "chat", s.ChatID, "player", p.ID, "tour", s.CurrentTour, "round", s.CurrentRound)
	return nil
}

func (e *Engine) armAnswerTimer(chatID string, askedAt time.Time, seq int64, d time.Duration) {
	e.timers.Schedule(timers.QuestionKey(chatID, askedAt, seq), d, func(ctx context.Context, _ timers.Key) {
		e.onTimeout(ctx, chatID, askedAt, seq)
	})
}

// cancelAnswerTimer disposes the deadline of the question in flight.
func (e *Engine) cancelAnswerTimer(s *tournament.Session) {
	if s.CurrentQuestionAskedAt == nil {
		return
	}
	e.timers.Cancel(timers.QuestionKey(s.ChatID, *s.CurrentQuestionAskedAt, s.QuestionSeq))
}

func (e *Engine) armBreakTimer(chatID string, until time.Time, d time.Duration) {
	e.timers.Schedule(timers.KeyFor(chatID, until), d, func(ctx context.Context, _ timers.Key) {
		e.onBreakElapsed(ctx, chatID, until)
	})
}

// beginTour enqueues every Active player for the first round of the
// current tour.
func (e *Engine) beginTour(ctx context.Context, s *tournament.Session) error {
	s.BreakUntil = nil
	s.TurnQueue = s.ActivePlayerIDs()
	s.CurrentRound = 1
	return e.advance(ctx, s)
}

func (e *Engine) onBreakElapsed(ctx context.Context, chatID string, until time.Time) {
	ctx, cancel := e.callbackContext(ctx)
	defer cancel()

	unlock := e.lock(chatID)
	defer unlock()
	if ctx.Err() != nil {
		return
	}

	s, err := e.load(ctx, chatID)
	if err != nil {
		e.logger.Error("Break timer could not load session", "chat", chatID, "error", err)
		return
	}
	if !s.Status.IsPlaying() || s.BreakUntil == nil || !s.BreakUntil.Equal(until) {
		e.logger.Debug("Ignoring stale break timer", "chat", chatID)
		return
	}
	if err := e.beginTour(ctx, s); err != nil {
		e.logger.Error("Failed to begin tour", "chat", chatID, "error", err)
	}
}
