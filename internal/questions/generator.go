package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lox/quiztour/internal/tournament"
	"github.com/lox/quiztour/internal/validator"
)

// Generator writes fresh questions with a language model.
type Generator struct {
	model validator.Completer
}

// NewGenerator returns a generator backed by model.
func NewGenerator(model validator.Completer) *Generator {
	return &Generator{model: model}
}

type generated struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Generate asks for n questions on topic. Questions whose text appears in
// exclude are dropped, so fewer than n may be returned.
func (g *Generator) Generate(ctx context.Context, topic, language string, n int, exclude map[string]bool) ([]tournament.Question, error) {
	if n <= 0 {
		return nil, nil
	}
	reply, err := g.model.Complete(ctx, generatorPrompt(topic, language, n))
	if err != nil {
		return nil, fmt.Errorf("generate questions for %q: %w", topic, err)
	}
	items, err := parseGenerated(reply)
	if err != nil {
		return nil, fmt.Errorf("generate questions for %q: %w", topic, err)
	}

	var out []tournament.Question
	seen := make(map[string]bool)
	for _, item := range items {
		key := validator.Normalize(item.Question)
		if key == "" || strings.TrimSpace(item.Answer) == "" || exclude[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tournament.Question{
			Topic:     topic,
			Text:      strings.TrimSpace(item.Question),
			Answer:    strings.TrimSpace(item.Answer),
			SourceIDs: []string{"ai"},
		})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func generatorPrompt(topic, language string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d trivia questions about %q in language %q.\n", n, topic, language)
	b.WriteString("Each answer must be short: a name, a number or a few words. ")
	b.WriteString("List accepted alternative answers separated by \"|\".\n")
	b.WriteString(`Reply with a JSON array only, like [{"question":"...","answer":"..."}].`)
	return b.String()
}

// parseGenerated extracts the JSON array from a model reply, tolerating
// prose or code fences around it.
func parseGenerated(reply string) ([]generated, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	var items []generated
	if err := json.Unmarshal([]byte(reply[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}
	return items, nil
}
