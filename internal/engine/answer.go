package engine

import (
	"context"
	"errors"
	"time"

	"github.com/lox/quiztour/internal/i18n"
	"github.com/lox/quiztour/internal/tournament"
	"github.com/lox/quiztour/internal/validator"
)

// Outcome describes what happened to a submitted answer.
type Outcome string

const (
	OutcomeCorrect     Outcome = "correct"
	OutcomeIncorrect   Outcome = "incorrect"
	OutcomeNotYourTurn Outcome = "not_your_turn"
	OutcomeIgnored     Outcome = "ignored"
)

// SubmitAnswer judges a message from playerID against the question in
// flight. Messages outside a live question are ignored; off-turn messages
// never change state.
func (e *Engine) SubmitAnswer(ctx context.Context, chatID, playerID, text string) (Outcome, error) {
	unlock := e.lock(chatID)
	defer unlock()

	s, err := e.load(ctx, chatID)
	if errors.Is(err, tournament.ErrSessionNotFound) {
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeIgnored, err
	}
	if !s.Status.IsPlaying() || !s.HasQuestionInFlight() {
		return OutcomeIgnored, nil
	}
	if *s.CurrentPlayerID != playerID {
		if p := s.Player(playerID); p != nil && e.cfg.NotifyNotYourTurn {
			e.say(ctx, s, i18n.NotYourTurn, p.Name)
		}
		return OutcomeNotYourTurn, nil
	}

	e.cancelAnswerTimer(s)

	q := *s.CurrentQuestion
	p := s.Player(playerID)
	correct := e.judge(ctx, s, text, q)
	recordAnswer(s, p, correct)
	s.ClearCurrentQuestion()

	outcome := OutcomeIncorrect
	if correct {
		outcome = OutcomeCorrect
		e.say(ctx, s, i18n.Correct, p.Name)
	} else {
		e.say(ctx, s, i18n.Incorrect, p.Name, q.Answer)
	}
	e.logger.Debug("Answer judged", "chat", chatID, "player", playerID, "outcome", outcome)

	return outcome, e.advance(ctx, s)
}

// judge consults the configured validator and falls back to exact matching
// when it fails.
func (e *Engine) judge(ctx context.Context, s *tournament.Session, answer string, q tournament.Question) bool {
	ok, err := e.deps.Validator.Validate(ctx, answer, q.Answer, q.Text, s.Language)
	if err != nil {
		e.logger.Warn("Validator failed, using exact match", "chat", s.ChatID, "error", err)
		return validator.Matches(answer, q.Answer)
	}
	return ok
}

func recordAnswer(s *tournament.Session, p *tournament.Player, correct bool) {
	if !correct {
		p.IncorrectAnswers++
		return
	}
	p.CorrectAnswers++
	if s.Status == tournament.StatusSuddenDeath {
		p.SuddenDeathScore++
	} else {
		p.Score++
	}
}

// onTimeout scores question seq, asked at askedAt, as incorrect unless it
// has already been answered, paused or superseded.
func (e *Engine) onTimeout(ctx context.Context, chatID string, askedAt time.Time, seq int64) {
	ctx, cancel := e.callbackContext(ctx)
	defer cancel()

	unlock := e.lock(chatID)
	defer unlock()
	if ctx.Err() != nil {
		return
	}

	s, err := e.load(ctx, chatID)
	if err != nil {
		e.logger.Error("Timeout could not load session", "chat", chatID, "error", err)
		return
	}
	if !s.Status.IsPlaying() || s.CurrentQuestionAskedAt == nil ||
		s.QuestionSeq != seq || !s.CurrentQuestionAskedAt.Equal(askedAt) {
		e.logger.Debug("Ignoring stale answer timeout", "chat", chatID)
		return
	}

	q := *s.CurrentQuestion
	playerID := *s.CurrentPlayerID
	p := s.Player(playerID)
	s.ClearCurrentQuestion()
	if p != nil {
		recordAnswer(s, p, false)
		e.say(ctx, s, i18n.TimeUp, p.Name, q.Answer)
	}
	e.logger.Debug("Answer timed out", "chat", chatID, "player", playerID)

	if err := e.advance(ctx, s); err != nil {
		e.logger.Error("Failed to advance after timeout", "chat", chatID, "error", err)
	}
}
