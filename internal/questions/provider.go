package questions

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/quiztour/internal/tournament"
	"github.com/lox/quiztour/internal/validator"
	"golang.org/x/sync/errgroup"
)

// History reports question texts used by earlier matches.
type History interface {
	ArchivedTexts(ctx context.Context) ([]string, error)
}

// Provider prepares question pools. Topics are drawn concurrently; a topic
// shared by several tours is drawn once so tours never repeat a question.
type Provider struct {
	bank        *Bank
	generator   *Generator
	history     History
	logger      *log.Logger
	concurrency int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// ProviderOption customizes a Provider.
type ProviderOption func(*Provider)

// WithGenerator enables the "ai" source mode.
func WithGenerator(g *Generator) ProviderOption {
	return func(p *Provider) { p.generator = g }
}

// WithHistory skips questions already asked in archived matches.
func WithHistory(h History) ProviderOption {
	return func(p *Provider) { p.history = h }
}

// WithRand sets the shuffle source.
func WithRand(rng *rand.Rand) ProviderOption {
	return func(p *Provider) { p.rng = rng }
}

// WithConcurrency bounds how many topics are prepared at once.
func WithConcurrency(n int) ProviderOption {
	return func(p *Provider) { p.concurrency = n }
}

// NewProvider returns a provider drawing from bank.
func NewProvider(bank *Bank, logger *log.Logger, opts ...ProviderOption) *Provider {
	p := &Provider{
		bank:        bank,
		logger:      logger.WithPrefix("questions"),
		concurrency: 4,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type slot struct {
	tour  int
	count int
}

type topicJob struct {
	topic string
	slots []slot
}

// Prepare implements the engine's QuestionProvider contract.
func (p *Provider) Prepare(ctx context.Context, req tournament.PoolRequest) (map[int][]tournament.Question, error) {
	exclude, err := p.exclusions(ctx, req)
	if err != nil {
		return nil, err
	}

	jobs := planJobs(req)
	results := make([][]tournament.Question, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.concurrency, 1))
	for i, job := range jobs {
		g.Go(func() error {
			need := 0
			for _, s := range job.slots {
				need += s.count
			}
			qs, err := p.draw(gctx, req, job.topic, need, exclude)
			if err != nil {
				return err
			}
			if len(qs) < need {
				p.logger.Warn("Not enough questions", "topic", job.topic, "need", need, "got", len(qs))
			}
			results[i] = qs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool := make(map[int][]tournament.Question)
	for i, job := range jobs {
		qs := results[i]
		for _, s := range job.slots {
			n := min(s.count, len(qs))
			if n > 0 {
				pool[s.tour] = append(pool[s.tour], qs[:n]...)
			}
			qs = qs[n:]
		}
	}
	return pool, nil
}

// planJobs groups tour and reserve slots by topic, preserving tour order
// with the reserve last.
func planJobs(req tournament.PoolRequest) []topicJob {
	var jobs []topicJob
	index := make(map[string]int)
	add := func(topic string, s slot) {
		if s.count <= 0 {
			return
		}
		key := validator.Normalize(topic)
		i, ok := index[key]
		if !ok {
			i = len(jobs)
			index[key] = i
			jobs = append(jobs, topicJob{topic: topic})
		}
		jobs[i].slots = append(jobs[i].slots, s)
	}
	for tour := 1; tour <= req.Tours && tour <= len(req.Topics); tour++ {
		add(req.Topics[tour-1], slot{tour: tour, count: req.PerTour()})
	}
	reserveTopic := req.ReserveTopic
	if reserveTopic == "" && len(req.Topics) > 0 {
		reserveTopic = req.Topics[len(req.Topics)-1]
	}
	add(reserveTopic, slot{tour: tournament.ReserveTour, count: req.Reserve})
	return jobs
}

func (p *Provider) exclusions(ctx context.Context, req tournament.PoolRequest) (map[string]bool, error) {
	exclude := make(map[string]bool, len(req.Exclude))
	for _, text := range req.Exclude {
		exclude[validator.Normalize(text)] = true
	}
	if p.history == nil {
		return exclude, nil
	}
	texts, err := p.history.ArchivedTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load question history: %w", err)
	}
	for _, text := range texts {
		exclude[validator.Normalize(text)] = true
	}
	return exclude, nil
}

func (p *Provider) draw(ctx context.Context, req tournament.PoolRequest, topic string, n int, exclude map[string]bool) ([]tournament.Question, error) {
	if req.Mode == tournament.SourceAI && p.generator != nil {
		qs, err := p.generator.Generate(ctx, topic, req.Language, n, exclude)
		if err == nil {
			return qs, nil
		}
		if p.bank == nil || !p.bank.Has(topic) {
			return nil, err
		}
		p.logger.Warn("Question generation failed, using bank", "topic", topic, "error", err)
	}
	if p.bank == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.bank.Draw(topic, req.Language, n, exclude, p.rng)
}
