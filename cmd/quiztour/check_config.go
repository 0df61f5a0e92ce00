package main

import (
	"fmt"
	"os"

	"github.com/lox/quiztour/internal/responses"
)

// CheckConfigCmd loads the configuration and question banks and reports
// what the server would run with.
type CheckConfigCmd struct{}

func (c *CheckConfigCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	logger := newLogger(g, cfg)
	bank, err := loadBanks(cfg, logger)
	if err != nil {
		return err
	}

	t := cfg.Tournament
	fmt.Fprintf(os.Stdout, "address:     %s\n", cfg.Server.Address)
	fmt.Fprintf(os.Stdout, "tournament:  %d tours x %d rounds, %ds answers, %ds breaks, lang %s, source %s, eliminate %t\n",
		t.Tours, t.RoundsPerTour, t.AnswerTimeoutSeconds, t.TourBreakSeconds, t.Language, t.SourceMode, t.EliminateLowest)
	fmt.Fprintf(os.Stdout, "sessions:    %s\n", orMemory(cfg.Storage.SessionDir))
	fmt.Fprintf(os.Stdout, "archive:     %s\n", orMemory(cfg.Storage.ArchivePath))
	fmt.Fprintf(os.Stdout, "judge:       %t (%s)\n", responses.New(cfg.Responses()).Configured(), cfg.Judge.URL)
	fmt.Fprintf(os.Stdout, "questions:   %d in %d topics\n", bank.Size(), len(bank.Topics()))
	for _, topic := range bank.Topics() {
		fmt.Fprintf(os.Stdout, "  - %s\n", topic)
	}
	return nil
}

func orMemory(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}
