package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/quiztour/internal/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionStore interface {
	Save(ctx context.Context, s *tournament.Session) error
	Load(ctx context.Context, chatID string) (*tournament.Session, error)
	Remove(ctx context.Context, chatID string) error
	List(ctx context.Context) ([]string, error)
}

func stores(t *testing.T) map[string]sessionStore {
	t.Helper()
	file, err := NewFile(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	return map[string]sessionStore{
		"memory": NewMemory(),
		"file":   file,
	}
}

func sampleSession(chatID string) *tournament.Session {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := tournament.NewSession(chatID, now)
	s.Status = tournament.StatusInProgress
	s.Tours = 2
	s.Topics = []string{"Space", "Rivers"}
	s.Players = []tournament.Player{
		{ID: "p1", Name: "Ann", Status: tournament.PlayerActive, Score: 2, JoinedAt: now},
	}
	s.QuestionsByTour[1] = tournament.QuestionQueue{{Text: "q1", Answer: "a1"}}
	s.QuestionsByTour[tournament.ReserveTour] = tournament.QuestionQueue{{Text: "r1", Answer: "a"}}
	s.SetCurrentQuestion(tournament.Question{Text: "q0", Answer: "a0"}, "p1", now.Add(time.Second))
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := sampleSession("-100/42")
			require.NoError(t, st.Save(ctx, s))

			got, err := st.Load(ctx, "-100/42")
			require.NoError(t, err)
			assert.Equal(t, s.Players, got.Players)
			assert.Equal(t, s.QuestionsByTour, got.QuestionsByTour)
			require.NotNil(t, got.CurrentQuestionAskedAt)
			assert.True(t, s.CurrentQuestionAskedAt.Equal(*got.CurrentQuestionAskedAt))
			assert.Equal(t, "p1", *got.CurrentPlayerID)
		})
	}
}

func TestStoreMissingSession(t *testing.T) {
	t.Parallel()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := st.Load(ctx, "nope")
			assert.ErrorIs(t, err, tournament.ErrSessionNotFound)
			assert.ErrorIs(t, st.Remove(ctx, "nope"), tournament.ErrSessionNotFound)
		})
	}
}

func TestStoreIsolation(t *testing.T) {
	t.Parallel()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := sampleSession("c1")
			require.NoError(t, st.Save(ctx, s))

			s.Players[0].Score = 99
			loaded, err := st.Load(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, 2, loaded.Players[0].Score)

			loaded.Players[0].Score = 50
			again, err := st.Load(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, 2, again.Players[0].Score)
		})
	}
}

func TestStoreListAndRemove(t *testing.T) {
	t.Parallel()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Save(ctx, sampleSession("b")))
			require.NoError(t, st.Save(ctx, sampleSession("a")))

			ids, err := st.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids)

			require.NoError(t, st.Remove(ctx, "a"))
			ids, err = st.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids)
		})
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	t.Parallel()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			assert.ErrorIs(t, st.Save(ctx, sampleSession("c")), context.Canceled)
		})
	}
}

func TestFileStoreIgnoresForeignFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	ids, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
