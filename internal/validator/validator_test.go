package validator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/quiztour/internal/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"  Paris ", "paris"},
		{"Écoute!", "ecoute"},
		{"New   York-City", "new york city"},
		{"Ёлка", "елка"},
		{"STRASSE", "strasse"},
		{"...", ""},
		{"H2O", "h2o"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()
	assert.True(t, Matches("paris", "Paris"))
	assert.True(t, Matches("saint petersburg", "Leningrad|Saint-Petersburg"))
	assert.False(t, Matches("moscow", "Leningrad|Saint-Petersburg"))
	assert.False(t, Matches("   ", "Paris"))
	assert.False(t, Matches("", ""))
}

func TestExactValidator(t *testing.T) {
	t.Parallel()
	ok, err := Exact{}.Validate(context.Background(), "MARS", "Mars", "Red planet?", "en")
	require.NoError(t, err)
	assert.True(t, ok)
}

func newJudgeServer(t *testing.T, verdict string, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "judge-model", body["model"])
		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []any{
				map[string]any{"content": []any{map[string]any{"type": "output_text", "text": verdict}}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSemantic(url string) *Semantic {
	client := responses.New(responses.Config{URL: url, APIKey: "secret", Model: "judge-model"})
	return NewSemantic(client, log.New(io.Discard))
}

type promptRecorder struct {
	prompt string
	reply  string
}

func (p *promptRecorder) Complete(_ context.Context, prompt string) (string, error) {
	p.prompt = prompt
	return p.reply, nil
}

func TestSemanticAcceptsJudgeVerdict(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newJudgeServer(t, "Yes.", http.StatusOK, &calls)

	ok, err := testSemantic(srv.URL).Validate(context.Background(), "the red planet", "Mars", "Which planet?", "en")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSemanticRejectsJudgeVerdict(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newJudgeServer(t, "NO", http.StatusOK, &calls)

	ok, err := testSemantic(srv.URL).Validate(context.Background(), "Venus", "Mars", "Which planet?", "en")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSemanticShortCircuitsExactMatch(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newJudgeServer(t, "NO", http.StatusOK, &calls)

	ok, err := testSemantic(srv.URL).Validate(context.Background(), "mars", "Mars", "Which planet?", "en")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, calls.Load())
}

func TestSemanticErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	failing := newJudgeServer(t, "", http.StatusInternalServerError, &calls)
	_, err := testSemantic(failing.URL).Validate(context.Background(), "venus", "Mars", "q", "en")
	require.Error(t, err)

	garbled := newJudgeServer(t, "maybe", http.StatusOK, &calls)
	_, err = testSemantic(garbled.URL).Validate(context.Background(), "venus", "Mars", "q", "en")
	require.Error(t, err)

	unconfigured := NewSemantic(nil, log.New(io.Discard))
	_, err = unconfigured.Validate(context.Background(), "venus", "Mars", "q", "en")
	require.ErrorIs(t, err, ErrJudgeUnavailable)

	noKey := NewSemantic(responses.New(responses.Config{}), log.New(io.Discard))
	_, err = noKey.Validate(context.Background(), "venus", "Mars", "q", "en")
	require.ErrorIs(t, err, responses.ErrNotConfigured)
}

func TestSemanticPrompt(t *testing.T) {
	t.Parallel()
	judge := &promptRecorder{reply: "no"}
	ok, err := NewSemantic(judge, log.New(io.Discard)).Validate(context.Background(), "Venus", "Mars", "Which planet is red?", "ru")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, judge.prompt, "Question: Which planet is red?")
	assert.Contains(t, judge.prompt, "Correct answer: Mars")
	assert.Contains(t, judge.prompt, "Player answer: Venus")
	assert.Contains(t, judge.prompt, "Language: ru")
}
