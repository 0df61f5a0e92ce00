package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/quiztour/cmd/quiztour/shared"
	"github.com/lox/quiztour/internal/archive"
	"github.com/lox/quiztour/internal/chat"
	"github.com/lox/quiztour/internal/config"
	"github.com/lox/quiztour/internal/engine"
	"github.com/lox/quiztour/internal/questions"
	"github.com/lox/quiztour/internal/randutil"
	"github.com/lox/quiztour/internal/responses"
	"github.com/lox/quiztour/internal/store"
	"github.com/lox/quiztour/internal/tournament"
	"github.com/lox/quiztour/internal/validator"
	"golang.org/x/sync/errgroup"
)

// ServeCmd runs the chat gateway and the tournament engine.
type ServeCmd struct {
	Addr string `help:"Override the listen address from the config file"`
	Seed *int64 `help:"Deterministic seed for question draws (optional)"`
}

// resultStore is what both archive backends provide.
type resultStore interface {
	engine.ResultArchive
	engine.QuestionArchive
	questions.History
	ListResults(ctx context.Context, chatID string, limit int) ([]tournament.GameResult, error)
	Result(ctx context.Context, id string) (tournament.GameResult, error)
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}

	logger := newLogger(g, cfg)
	ctx := shared.SetupSignalHandler(logger)

	sessions, err := openSessions(cfg)
	if err != nil {
		return err
	}
	results, closeResults, err := openResults(cfg)
	if err != nil {
		return err
	}
	defer closeResults()

	bank, err := loadBanks(cfg, logger)
	if err != nil {
		return err
	}

	judge := responses.New(cfg.Responses())
	var check engine.Validator = validator.Exact{}
	seed := randutil.Seed(c.Seed)
	logger.Info("Using question seed", "seed", seed)
	opts := []questions.ProviderOption{
		questions.WithRand(randutil.New(seed)),
		questions.WithHistory(results),
		questions.WithConcurrency(cfg.Questions.Concurrency),
	}
	if judge.Configured() {
		check = validator.NewSemantic(judge, logger)
		opts = append(opts, questions.WithGenerator(questions.NewGenerator(judge)))
	} else {
		logger.Warn("No judge model configured; answers are matched exactly and AI questions are unavailable")
	}

	gateway := chat.NewGateway(logger)
	eng := engine.New(engine.Deps{
		Store:     sessions,
		Messenger: gateway,
		Validator: check,
		Questions: questions.NewProvider(bank, logger, opts...),
		Results:   results,
		Archive:   results,
	}, cfg.Engine(), quartz.NewReal(), logger)
	defer eng.Close()

	topics := bank.Topics()
	if len(topics) == 0 {
		topics = []string{"general knowledge"}
	}
	dispatcher := chat.NewDispatcher(eng, gateway, cfg.Settings(topics[:1]), logger)
	gateway.SetHandler(dispatcher)

	recovered, err := eng.Recover(ctx)
	if err != nil {
		logger.Error("Failed to recover sessions", "error", err)
	} else if recovered > 0 {
		logger.Info("Recovered running sessions", "count", recovered)
	}

	logger.Info("Starting quiztour",
		"address", cfg.Server.Address,
		"topics", len(bank.Topics()),
		"questions", bank.Size(),
		"sessions", cfg.Storage.SessionDir,
		"archive", cfg.Storage.ArchivePath,
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return gateway.Serve(gctx, cfg.Server.Address)
	})
	err = group.Wait()
	dispatcher.Wait()
	logger.Info("Server stopped")
	return err
}

func loadConfig(g *Globals) (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(g *Globals, cfg *config.Config) *log.Logger {
	logger := shared.SetupLogger(g.Debug, cfg.Server.JSONLogs)
	if !g.Debug {
		if level, err := log.ParseLevel(cfg.Server.LogLevel); err == nil {
			logger.SetLevel(level)
		}
	}
	return logger
}

func openSessions(cfg *config.Config) (engine.Store, error) {
	if cfg.Storage.SessionDir == "" {
		return store.NewMemory(), nil
	}
	return store.NewFile(cfg.Storage.SessionDir)
}

func openResults(cfg *config.Config) (resultStore, func(), error) {
	if cfg.Storage.ArchivePath == "" {
		return archive.NewMemory(), func() {}, nil
	}
	db, err := archive.OpenSQLite(cfg.Storage.ArchivePath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

// loadBanks loads the configured question banks, skipping paths that do
// not exist.
func loadBanks(cfg *config.Config, logger *log.Logger) (*questions.Bank, error) {
	var paths []string
	for _, path := range cfg.Questions.Banks {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			logger.Warn("Question bank not found", "path", path)
			continue
		}
		paths = append(paths, path)
	}
	return questions.LoadBank(paths...)
}
