package questions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/quiztour/internal/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spaceBank = `
bank "Space" {
  language = "en"
  question {
    id     = "space-1"
    text   = "Which planet is known as the Red Planet?"
    answer = "Mars"
  }
  question {
    text   = "What is the largest planet in the Solar System?"
    answer = "Jupiter"
  }
  question {
    text   = "What galaxy contains our Solar System?"
    answer = "Milky Way"
  }
}

bank "Space" {
  language = "ru"
  question {
    text   = "Какая планета ближе всего к Солнцу?"
    answer = "Меркурий"
  }
}
`

func writeBank(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// numberedBank returns a bank with n questions on each topic.
func numberedBank(n int, topics ...string) *Bank {
	b := NewBank()
	for _, topic := range topics {
		for i := range n {
			b.Add(topic, "", tournament.Question{
				Topic:  topic,
				Text:   fmt.Sprintf("%s question %d", topic, i+1),
				Answer: "answer",
			})
		}
	}
	return b
}

func testProvider(bank *Bank, opts ...ProviderOption) *Provider {
	opts = append([]ProviderOption{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return NewProvider(bank, log.New(io.Discard), opts...)
}

func TestLoadBank(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeBank(t, dir, "space.hcl", spaceBank)
	writeBank(t, dir, "rivers.hcl", `
bank "Rivers" {
  question {
    text   = "Longest river in Africa?"
    answer = "Nile"
  }
}`)
	writeBank(t, dir, "README.md", "ignored")

	bank, err := LoadBank(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rivers", "Space"}, bank.Topics())
	assert.Equal(t, 5, bank.Size())
	assert.True(t, bank.Has("  space "))

	qs, err := bank.Draw("Space", "en", 10, nil, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	require.Len(t, qs, 3)
	ids := map[string]bool{}
	for _, q := range qs {
		ids[q.SourceIDs[0]] = true
		assert.Equal(t, "Space", q.Topic)
	}
	assert.True(t, ids["space-1"])
	assert.True(t, ids["space.hcl#2"])
}

func TestLoadBankErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := LoadBank(filepath.Join(dir, "missing.hcl"))
	assert.Error(t, err)

	bad := writeBank(t, dir, "bad.hcl", `
bank "Space" {
  question {
    text = "no answer"
  }
}`)
	_, err = LoadBank(bad)
	assert.ErrorContains(t, err, "decode question bank")
}

func TestDrawFiltersLanguageAndExclusions(t *testing.T) {
	t.Parallel()
	path := writeBank(t, t.TempDir(), "space.hcl", spaceBank)
	bank, err := LoadBank(path)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(1, 2))

	ru, err := bank.Draw("space", "ru", 10, nil, rng)
	require.NoError(t, err)
	require.Len(t, ru, 1)
	assert.Equal(t, "Меркурий", ru[0].Answer)

	exclude := map[string]bool{"which planet is known as the red planet": true}
	en, err := bank.Draw("Space", "en", 10, exclude, rng)
	require.NoError(t, err)
	assert.Len(t, en, 2)

	_, err = bank.Draw("Opera", "en", 1, nil, rng)
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestPrepareFillsToursAndReserve(t *testing.T) {
	t.Parallel()
	p := testProvider(numberedBank(20, "Space", "Rivers"))

	pool, err := p.Prepare(context.Background(), tournament.PoolRequest{
		Topics:        []string{"Space", "Rivers", "Space"},
		Tours:         3,
		RoundsPerTour: 2,
		Players:       []string{"Ann", "Bob"},
		Reserve:       5,
		ReserveTopic:  "Space",
	})
	require.NoError(t, err)
	assert.Len(t, pool[1], 4)
	assert.Len(t, pool[2], 4)
	assert.Len(t, pool[3], 4)
	assert.Len(t, pool[tournament.ReserveTour], 5)

	seen := map[string]bool{}
	for tour, qs := range pool {
		for _, q := range qs {
			assert.False(t, seen[q.Text], "duplicate %q in tour %d", q.Text, tour)
			seen[q.Text] = true
		}
	}
	for _, q := range pool[2] {
		assert.Equal(t, "Rivers", q.Topic)
	}
}

func TestPrepareShortBankFillsEarlyToursFirst(t *testing.T) {
	t.Parallel()
	p := testProvider(numberedBank(5, "Space"))

	pool, err := p.Prepare(context.Background(), tournament.PoolRequest{
		Topics:        []string{"Space", "Space"},
		Tours:         2,
		RoundsPerTour: 1,
		Players:       []string{"Ann", "Bob", "Cid"},
		Reserve:       4,
	})
	require.NoError(t, err)
	assert.Len(t, pool[1], 3)
	assert.Len(t, pool[2], 2)
	assert.Empty(t, pool[tournament.ReserveTour])
}

type staticHistory []string

func (h staticHistory) ArchivedTexts(context.Context) ([]string, error) {
	return h, nil
}

func TestPrepareSkipsArchivedAndExcluded(t *testing.T) {
	t.Parallel()
	p := testProvider(numberedBank(4, "Space"), WithHistory(staticHistory{"Space question 1", "SPACE QUESTION 2"}))

	pool, err := p.Prepare(context.Background(), tournament.PoolRequest{
		Reserve:      4,
		ReserveTopic: "Space",
		Exclude:      []string{"space question 3"},
	})
	require.NoError(t, err)
	require.Len(t, pool[tournament.ReserveTour], 1)
	assert.Equal(t, "Space question 4", pool[tournament.ReserveTour][0].Text)
}

func TestPrepareUnknownTopic(t *testing.T) {
	t.Parallel()
	p := testProvider(numberedBank(4, "Space"))

	_, err := p.Prepare(context.Background(), tournament.PoolRequest{
		Topics:        []string{"Opera"},
		Tours:         1,
		RoundsPerTour: 1,
		Players:       []string{"Ann"},
	})
	assert.ErrorIs(t, err, ErrUnknownTopic)
}

type scriptedModel struct {
	reply string
	err   error
}

func (m scriptedModel) Complete(_ context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func TestPrepareWithGenerator(t *testing.T) {
	t.Parallel()
	model := scriptedModel{reply: "Sure!\n```json\n" + `[
		{"question": "Red planet?", "answer": "Mars"},
		{"question": "Red planet?", "answer": "Mars"},
		{"question": "Ringed planet?", "answer": "Saturn"},
		{"question": "", "answer": "x"}
	]` + "\n```"}
	p := testProvider(nil, WithGenerator(NewGenerator(model)))

	pool, err := p.Prepare(context.Background(), tournament.PoolRequest{
		Topics:        []string{"Planets"},
		Tours:         1,
		RoundsPerTour: 2,
		Players:       []string{"Ann"},
		Mode:          tournament.SourceAI,
	})
	require.NoError(t, err)
	require.Len(t, pool[1], 2)
	assert.Equal(t, "Red planet?", pool[1][0].Text)
	assert.Equal(t, "Saturn", pool[1][1].Answer)
	assert.Equal(t, "Planets", pool[1][1].Topic)
}

func TestGeneratorFailureFallsBackToBank(t *testing.T) {
	t.Parallel()
	model := scriptedModel{err: errors.New("quota exceeded")}
	p := testProvider(numberedBank(3, "Space"), WithGenerator(NewGenerator(model)))

	pool, err := p.Prepare(context.Background(), tournament.PoolRequest{
		Topics:        []string{"Space"},
		Tours:         1,
		RoundsPerTour: 1,
		Players:       []string{"Ann", "Bob"},
		Mode:          tournament.SourceAI,
	})
	require.NoError(t, err)
	assert.Len(t, pool[1], 2)

	_, err = p.Prepare(context.Background(), tournament.PoolRequest{
		Topics:        []string{"Opera"},
		Tours:         1,
		RoundsPerTour: 1,
		Players:       []string{"Ann"},
		Mode:          tournament.SourceAI,
	})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestGeneratorPromptAndParse(t *testing.T) {
	t.Parallel()
	prompt := generatorPrompt("Rivers", "ru", 3)
	assert.Contains(t, prompt, `Write 3 trivia questions about "Rivers" in language "ru"`)

	_, err := parseGenerated("no json here")
	assert.Error(t, err)
	items, err := parseGenerated(`[{"question":"q","answer":"a"}]`)
	require.NoError(t, err)
	assert.Equal(t, []generated{{Question: "q", Answer: "a"}}, items)
	assert.False(t, strings.Contains(prompt, "%!"))
}
