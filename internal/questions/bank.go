// Package questions builds question pools from HCL question banks or a
// language model.
package questions

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/quiztour/internal/tournament"
	"github.com/lox/quiztour/internal/validator"
)

// ErrUnknownTopic is returned when no source has questions for a topic.
var ErrUnknownTopic = errors.New("questions: unknown topic")

type bankFile struct {
	Banks  []bankBlock `hcl:"bank,block"`
	Remain hcl.Body    `hcl:",remain"`
}

type bankBlock struct {
	Topic     string          `hcl:"topic,label"`
	Language  string          `hcl:"language,optional"`
	Questions []questionBlock `hcl:"question,block"`
}

type questionBlock struct {
	ID     string `hcl:"id,optional"`
	Text   string `hcl:"text"`
	Answer string `hcl:"answer"`
}

type entry struct {
	question tournament.Question
	language string
}

// Bank is an immutable set of questions grouped by topic.
type Bank struct {
	topics map[string][]entry
	names  map[string]string
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{topics: make(map[string][]entry), names: make(map[string]string)}
}

// LoadBank parses every *.hcl file matched by the given paths. A path may
// name a file or a directory.
func LoadBank(paths ...string) (*Bank, error) {
	bank := NewBank()
	parser := hclparse.NewParser()
	for _, path := range paths {
		files, err := bankFiles(path)
		if err != nil {
			return nil, err
		}
		for _, name := range files {
			file, diags := parser.ParseHCLFile(name)
			if diags.HasErrors() {
				return nil, fmt.Errorf("parse question bank %s: %s", name, diags.Error())
			}
			var bf bankFile
			if diags := gohcl.DecodeBody(file.Body, nil, &bf); diags.HasErrors() {
				return nil, fmt.Errorf("decode question bank %s: %s", name, diags.Error())
			}
			for _, b := range bf.Banks {
				for i, q := range b.Questions {
					id := q.ID
					if id == "" {
						id = fmt.Sprintf("%s#%d", filepath.Base(name), i+1)
					}
					bank.Add(b.Topic, b.Language, tournament.Question{
						Topic:     b.Topic,
						Text:      q.Text,
						Answer:    q.Answer,
						SourceIDs: []string{id},
					})
				}
			}
		}
	}
	return bank, nil
}

func bankFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("question bank: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*.hcl"))
	if err != nil {
		return nil, fmt.Errorf("question bank: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Add registers a question under topic. An empty language matches any.
func (b *Bank) Add(topic, language string, q tournament.Question) {
	key := validator.Normalize(topic)
	if _, ok := b.names[key]; !ok {
		b.names[key] = topic
	}
	b.topics[key] = append(b.topics[key], entry{question: q, language: language})
}

// Topics lists the bank's topics in sorted order.
func (b *Bank) Topics() []string {
	out := make([]string, 0, len(b.names))
	for _, name := range b.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the bank knows topic.
func (b *Bank) Has(topic string) bool {
	_, ok := b.topics[validator.Normalize(topic)]
	return ok
}

// Size returns the number of questions in the bank.
func (b *Bank) Size() int {
	n := 0
	for _, entries := range b.topics {
		n += len(entries)
	}
	return n
}

// Draw returns up to n shuffled questions on topic in the given language,
// skipping any whose normalized text is in exclude.
func (b *Bank) Draw(topic, language string, n int, exclude map[string]bool, rng *rand.Rand) ([]tournament.Question, error) {
	entries, ok := b.topics[validator.Normalize(topic)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	var candidates []tournament.Question
	for _, e := range entries {
		if e.language != "" && language != "" && e.language != language {
			continue
		}
		if exclude[validator.Normalize(e.question.Text)] {
			continue
		}
		candidates = append(candidates, e.question)
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}
