package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrJudgeUnavailable is returned when the semantic judge is not configured.
var ErrJudgeUnavailable = errors.New("validator: semantic judge not configured")

// Completer sends a prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Semantic asks an external language model whether an answer means the same
// thing as the canonical one. Exact matches short-circuit the remote call.
type Semantic struct {
	judge  Completer
	logger *log.Logger
}

// NewSemantic builds a semantic validator around judge.
func NewSemantic(judge Completer, logger *log.Logger) *Semantic {
	return &Semantic{judge: judge, logger: logger.WithPrefix("judge")}
}

// Validate implements the engine's Validator contract.
func (s *Semantic) Validate(ctx context.Context, userAnswer, correctAnswer, questionText, language string) (bool, error) {
	if Matches(userAnswer, correctAnswer) {
		return true, nil
	}
	if Normalize(userAnswer) == "" {
		return false, nil
	}
	if s.judge == nil {
		return false, ErrJudgeUnavailable
	}

	verdict, err := s.judge.Complete(ctx, judgePrompt(userAnswer, correctAnswer, questionText, language))
	if err != nil {
		return false, fmt.Errorf("judge answer: %w", err)
	}
	ok, err := parseVerdict(verdict)
	if err != nil {
		return false, err
	}
	s.logger.Debug("Judged answer", "answer", userAnswer, "correct", correctAnswer, "verdict", ok)
	return ok, nil
}

func judgePrompt(userAnswer, correctAnswer, questionText, language string) string {
	var b strings.Builder
	b.WriteString("You are the referee of a trivia game. Decide whether the player's answer is correct.\n")
	b.WriteString("Accept synonyms, transliterations, minor typos and equivalent forms; reject answers that name something else.\n")
	fmt.Fprintf(&b, "Language: %s\n", language)
	fmt.Fprintf(&b, "Question: %s\n", questionText)
	fmt.Fprintf(&b, "Correct answer: %s\n", correctAnswer)
	fmt.Fprintf(&b, "Player answer: %s\n", userAnswer)
	b.WriteString("Reply with exactly one word: YES or NO.")
	return b.String()
}

func parseVerdict(text string) (bool, error) {
	word := strings.ToUpper(strings.Trim(strings.TrimSpace(text), ".!\"' "))
	switch {
	case strings.HasPrefix(word, "YES"):
		return true, nil
	case strings.HasPrefix(word, "NO"):
		return false, nil
	default:
		return false, fmt.Errorf("validator: unexpected judge verdict %q", text)
	}
}
