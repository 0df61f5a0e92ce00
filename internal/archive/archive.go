// Package archive keeps finished game results and the questions already
// asked, so later matches can avoid repeats.
package archive

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/lox/quiztour/internal/tournament"
	"github.com/lox/quiztour/internal/validator"
)

var (
	ErrResultExists   = errors.New("archive: result already archived")
	ErrResultNotFound = errors.New("archive: result not found")
)

// Memory is an in-process archive.
type Memory struct {
	mu        sync.RWMutex
	results   []tournament.GameResult
	questions map[string]tournament.Question
}

// NewMemory returns an empty archive.
func NewMemory() *Memory {
	return &Memory{questions: make(map[string]tournament.Question)}
}

func (m *Memory) Archive(ctx context.Context, result tournament.GameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.ID == result.ID {
			return ErrResultExists
		}
	}
	m.results = append(m.results, result)
	return nil
}

func (m *Memory) MoveToArchive(ctx context.Context, questions []tournament.Question) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range questions {
		m.questions[validator.Normalize(q.Text)] = q
	}
	return nil
}

// ArchivedTexts returns the text of every archived question.
func (m *Memory) ArchivedTexts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	texts := make([]string, 0, len(m.questions))
	for _, q := range m.questions {
		texts = append(texts, q.Text)
	}
	sort.Strings(texts)
	return texts, nil
}

// ListResults returns results newest first, optionally for one chat only.
// A non-positive limit returns everything.
func (m *Memory) ListResults(ctx context.Context, chatID string, limit int) ([]tournament.GameResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []tournament.GameResult
	for i := len(m.results) - 1; i >= 0; i-- {
		r := m.results[i]
		if chatID != "" && r.ChatID != chatID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Result returns one archived result.
func (m *Memory) Result(ctx context.Context, id string) (tournament.GameResult, error) {
	if err := ctx.Err(); err != nil {
		return tournament.GameResult{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results {
		if r.ID == id {
			return r, nil
		}
	}
	return tournament.GameResult{}, ErrResultNotFound
}
