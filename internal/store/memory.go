// Package store persists tournament sessions, one per chat.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lox/quiztour/internal/tournament"
)

// Memory keeps sessions in process memory. Sessions are copied on the way
// in and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*tournament.Session
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*tournament.Session)}
}

func (m *Memory) Save(ctx context.Context, s *tournament.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clone := s.Clone()
	m.mu.Lock()
	m.sessions[s.ChatID] = clone
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(ctx context.Context, chatID string) (*tournament.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	s, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if !ok {
		return nil, tournament.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) Remove(ctx context.Context, chatID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[chatID]; !ok {
		return tournament.ErrSessionNotFound
	}
	delete(m.sessions, chatID)
	return nil
}

// List returns the stored chat IDs in sorted order.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}
