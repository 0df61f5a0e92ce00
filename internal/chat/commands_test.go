package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/quiztour/internal/engine"
	"github.com/lox/quiztour/internal/questions"
	"github.com/lox/quiztour/internal/store"
	"github.com/lox/quiztour/internal/tournament"
	"github.com/lox/quiztour/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transcript struct {
	mu    sync.Mutex
	lines []string
}

func (tr *transcript) Send(_ context.Context, _ string, text string) (string, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.lines = append(tr.lines, text)
	return fmt.Sprintf("m%d", len(tr.lines)), nil
}

func (tr *transcript) contains(sub string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, l := range tr.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func (tr *transcript) last() string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.lines) == 0 {
		return ""
	}
	return tr.lines[len(tr.lines)-1]
}

func defaultSettings() engine.Settings {
	return engine.Settings{
		Topics:               []string{"general"},
		Tours:                3,
		RoundsPerTour:        2,
		AnswerTimeoutSeconds: 30,
		Language:             "en",
		SourceMode:           tournament.SourceBank,
		EliminateLowest:      true,
	}
}

func newDispatcher(t *testing.T) (*Dispatcher, *engine.Engine, *transcript) {
	t.Helper()
	logger := log.New(io.Discard)

	bank := questions.NewBank()
	for i := range 6 {
		bank.Add("numbers", "", tournament.Question{
			Topic:  "numbers",
			Text:   fmt.Sprintf("What is 40 + %d - %d + 2?", i, i),
			Answer: "42",
		})
	}

	out := &transcript{}
	cfg := engine.DefaultConfig()
	cfg.ReserveSize = 2
	cfg.TourBreak = 0
	eng := engine.New(engine.Deps{
		Store:     store.NewMemory(),
		Messenger: out,
		Validator: validator.Exact{},
		Questions: questions.NewProvider(bank, logger),
	}, cfg, quartz.NewMock(t), logger)
	t.Cleanup(eng.Close)

	return NewDispatcher(eng, out, defaultSettings(), logger), eng, out
}

func say(d *Dispatcher, chatID, playerID, name, text string) {
	d.HandleText(context.Background(), Inbound{ChatID: chatID, PlayerID: playerID, Name: name, Text: text})
}

func TestCommandsPlayAMatch(t *testing.T) {
	d, eng, out := newDispatcher(t)
	ctx := context.Background()

	say(d, "room", "ann", "Ann", "/configure topics=numbers tours=1 rounds=1 timeout=20")
	assert.True(t, out.contains("Tournament set up: 1 tours, 1 rounds each, 20 seconds per answer."))

	say(d, "room", "ann", "Ann", "/join@quizbot")
	assert.True(t, out.contains("Ann joined the game."))

	say(d, "room", "ann", "Ann", "/prepare")
	d.Wait()
	assert.True(t, out.contains("Question pool ready"))

	say(d, "room", "ann", "Ann", "/start")
	s, err := eng.Session(ctx, "room")
	require.NoError(t, err)
	require.True(t, s.HasQuestionInFlight())
	assert.Equal(t, "ann", *s.CurrentPlayerID)

	say(d, "room", "ann", "Ann", "42")
	assert.True(t, out.contains("Correct, Ann!"))
	assert.True(t, out.contains("Winner: Ann"))

	s, err = eng.Session(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, tournament.StatusCompleted, s.Status)

	say(d, "room", "ann", "Ann", "/standings")
	assert.Contains(t, out.last(), "Standings:")
	assert.Contains(t, out.last(), "1. Ann: 1")

	say(d, "room", "ann", "Ann", "/pause")
	assert.Contains(t, out.last(), "/pause failed")
}

func TestCommandErrors(t *testing.T) {
	d, _, out := newDispatcher(t)

	say(d, "empty", "ann", "Ann", "/start")
	assert.Equal(t, "There is no game in this chat. Use /configure to set one up.", out.last())

	say(d, "empty", "ann", "Ann", "/dance")
	assert.Equal(t, "Unknown command /dance. Try /help.", out.last())

	say(d, "empty", "ann", "Ann", "/configure tours=zero")
	assert.Contains(t, out.last(), "/configure failed")

	say(d, "empty", "ann", "Ann", "/help")
	assert.Contains(t, out.last(), "/newmatch")

	say(d, "empty", "ann", "Ann", "/prepare")
	d.Wait()
	assert.Equal(t, "There is no game in this chat. Use /configure to set one up.", out.last())
}

func TestStartWithoutPlayersIsAnnouncedOnce(t *testing.T) {
	d, _, out := newDispatcher(t)
	say(d, "room", "ann", "Ann", "/configure topics=numbers")
	say(d, "room", "ann", "Ann", "/start")

	assert.True(t, out.contains("At least one player"))
	assert.NotContains(t, out.last(), "/start failed")
}

func TestAnswersOutsideAGameAreIgnored(t *testing.T) {
	d, _, out := newDispatcher(t)
	say(d, "room", "ann", "Ann", "hello everyone")
	assert.Empty(t, out.last())
}

func TestParseSettings(t *testing.T) {
	defaults := defaultSettings()

	st, err := parseSettings(defaults, []string{
		"topics=space,world_history", "tours=2", "rounds=3", "timeout=15",
		"lang=ru", "mode=AI", "eliminate=false",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"space", "world history"}, st.Topics)
	assert.Equal(t, 2, st.Tours)
	assert.Equal(t, 3, st.RoundsPerTour)
	assert.Equal(t, 15, st.AnswerTimeoutSeconds)
	assert.Equal(t, "ru", st.Language)
	assert.Equal(t, tournament.SourceAI, st.SourceMode)
	assert.False(t, st.EliminateLowest)

	st, err = parseSettings(defaults, nil)
	require.NoError(t, err)
	assert.Equal(t, defaults, st)

	for _, args := range [][]string{
		{"tours"},
		{"colour=red"},
		{"rounds=many"},
		{"eliminate=maybe"},
		{"topics=,"},
		{"mode=web"},
	} {
		_, err := parseSettings(defaults, args)
		assert.ErrorIs(t, err, engine.ErrInvalidSettings, "%v", args)
	}
}
