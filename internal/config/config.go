// Package config loads quiztour settings from an HCL file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/quiztour/internal/engine"
	"github.com/lox/quiztour/internal/responses"
	"github.com/lox/quiztour/internal/tournament"
)

// Config is the complete runtime configuration.
type Config struct {
	Server     ServerSettings
	Tournament TournamentSettings
	Storage    StorageSettings
	Judge      JudgeSettings
	Questions  QuestionSettings
}

// ServerSettings controls the chat gateway and logging.
type ServerSettings struct {
	Address  string `env:"QUIZTOUR_ADDR"`
	LogLevel string `env:"QUIZTOUR_LOG_LEVEL"`
	JSONLogs bool   `env:"QUIZTOUR_JSON_LOGS"`
}

// TournamentSettings are the defaults applied to new matches.
type TournamentSettings struct {
	Tours                int    `env:"QUIZTOUR_TOURS"`
	RoundsPerTour        int    `env:"QUIZTOUR_ROUNDS_PER_TOUR"`
	AnswerTimeoutSeconds int    `env:"QUIZTOUR_ANSWER_TIMEOUT"`
	TourBreakSeconds     int    `env:"QUIZTOUR_TOUR_BREAK"`
	Language             string `env:"QUIZTOUR_LANGUAGE"`
	SourceMode           string `env:"QUIZTOUR_SOURCE_MODE"`
	EliminateLowest      bool   `env:"QUIZTOUR_ELIMINATE_LOWEST"`
	ReserveSize          int    `env:"QUIZTOUR_RESERVE_SIZE"`
	NotifyNotYourTurn    bool   `env:"QUIZTOUR_NOTIFY_NOT_YOUR_TURN"`
}

// StorageSettings locate session snapshots and the results archive. An
// empty path keeps that data in memory.
type StorageSettings struct {
	SessionDir  string `env:"QUIZTOUR_SESSION_DIR"`
	ArchivePath string `env:"QUIZTOUR_ARCHIVE"`
}

// JudgeSettings configure the model used for semantic answer checks and
// question generation.
type JudgeSettings struct {
	URL            string `env:"QUIZTOUR_JUDGE_URL"`
	APIKey         string `env:"QUIZTOUR_JUDGE_API_KEY"`
	Model          string `env:"QUIZTOUR_JUDGE_MODEL"`
	TimeoutSeconds int    `env:"QUIZTOUR_JUDGE_TIMEOUT"`
}

// QuestionSettings point at question bank files or directories.
type QuestionSettings struct {
	Banks       []string `env:"QUIZTOUR_BANKS" envSeparator:","`
	Concurrency int      `env:"QUIZTOUR_QUESTION_CONCURRENCY"`
}

type fileConfig struct {
	Server     *serverBlock     `hcl:"server,block"`
	Tournament *tournamentBlock `hcl:"tournament,block"`
	Storage    *storageBlock    `hcl:"storage,block"`
	Judge      *judgeBlock      `hcl:"judge,block"`
	Questions  *questionsBlock  `hcl:"questions,block"`
}

type serverBlock struct {
	Address  string `hcl:"address,optional"`
	LogLevel string `hcl:"log_level,optional"`
	JSONLogs *bool  `hcl:"json_logs,optional"`
}

type tournamentBlock struct {
	Tours             int    `hcl:"tours,optional"`
	RoundsPerTour     int    `hcl:"rounds_per_tour,optional"`
	AnswerTimeout     int    `hcl:"answer_timeout,optional"`
	TourBreak         *int   `hcl:"tour_break,optional"`
	Language          string `hcl:"language,optional"`
	SourceMode        string `hcl:"source_mode,optional"`
	EliminateLowest   *bool  `hcl:"eliminate_lowest,optional"`
	ReserveSize       *int   `hcl:"reserve_size,optional"`
	NotifyNotYourTurn *bool  `hcl:"notify_not_your_turn,optional"`
}

type storageBlock struct {
	SessionDir  *string `hcl:"session_dir,optional"`
	ArchivePath *string `hcl:"archive,optional"`
}

type judgeBlock struct {
	URL     string `hcl:"url,optional"`
	APIKey  string `hcl:"api_key,optional"`
	Model   string `hcl:"model,optional"`
	Timeout int    `hcl:"timeout,optional"`
}

type questionsBlock struct {
	Banks       []string `hcl:"banks,optional"`
	Concurrency int      `hcl:"concurrency,optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost:8080",
			LogLevel: "info",
		},
		Tournament: TournamentSettings{
			Tours:                3,
			RoundsPerTour:        2,
			AnswerTimeoutSeconds: 30,
			TourBreakSeconds:     5,
			Language:             "en",
			SourceMode:           string(tournament.SourceBank),
			EliminateLowest:      true,
			ReserveSize:          6,
			NotifyNotYourTurn:    true,
		},
		Storage: StorageSettings{
			SessionDir:  "sessions",
			ArchivePath: "quiztour.db",
		},
		Judge: JudgeSettings{
			URL:            responses.DefaultURL,
			TimeoutSeconds: 10,
		},
		Questions: QuestionSettings{
			Banks:       []string{"banks"},
			Concurrency: 4,
		},
	}
}

// Load reads filename, falling back to defaults when it does not exist,
// then applies QUIZTOUR_* environment overrides.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			if err := cfg.decodeFile(filename); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) decodeFile(filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if s := fc.Server; s != nil {
		setString(&c.Server.Address, s.Address)
		setString(&c.Server.LogLevel, s.LogLevel)
		setBool(&c.Server.JSONLogs, s.JSONLogs)
	}
	if t := fc.Tournament; t != nil {
		setInt(&c.Tournament.Tours, t.Tours)
		setInt(&c.Tournament.RoundsPerTour, t.RoundsPerTour)
		setInt(&c.Tournament.AnswerTimeoutSeconds, t.AnswerTimeout)
		if t.TourBreak != nil {
			c.Tournament.TourBreakSeconds = *t.TourBreak
		}
		setString(&c.Tournament.Language, t.Language)
		setString(&c.Tournament.SourceMode, t.SourceMode)
		setBool(&c.Tournament.EliminateLowest, t.EliminateLowest)
		if t.ReserveSize != nil {
			c.Tournament.ReserveSize = *t.ReserveSize
		}
		setBool(&c.Tournament.NotifyNotYourTurn, t.NotifyNotYourTurn)
	}
	if s := fc.Storage; s != nil {
		if s.SessionDir != nil {
			c.Storage.SessionDir = *s.SessionDir
		}
		if s.ArchivePath != nil {
			c.Storage.ArchivePath = *s.ArchivePath
		}
	}
	if j := fc.Judge; j != nil {
		setString(&c.Judge.URL, j.URL)
		setString(&c.Judge.APIKey, j.APIKey)
		setString(&c.Judge.Model, j.Model)
		setInt(&c.Judge.TimeoutSeconds, j.Timeout)
	}
	if q := fc.Questions; q != nil {
		if q.Banks != nil {
			c.Questions.Banks = q.Banks
		}
		setInt(&c.Questions.Concurrency, q.Concurrency)
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("server address is required")
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Server.LogLevel)
	}

	t := c.Tournament
	if t.Tours < 1 || t.Tours > 20 {
		return fmt.Errorf("invalid tours: %d", t.Tours)
	}
	if t.RoundsPerTour < 1 || t.RoundsPerTour > 20 {
		return fmt.Errorf("invalid rounds per tour: %d", t.RoundsPerTour)
	}
	if t.AnswerTimeoutSeconds < 5 || t.AnswerTimeoutSeconds > 600 {
		return fmt.Errorf("invalid answer timeout: %d", t.AnswerTimeoutSeconds)
	}
	if t.TourBreakSeconds < 0 {
		return fmt.Errorf("invalid tour break: %d", t.TourBreakSeconds)
	}
	if t.ReserveSize < 0 {
		return fmt.Errorf("invalid reserve size: %d", t.ReserveSize)
	}
	switch tournament.SourceMode(t.SourceMode) {
	case tournament.SourceBank, tournament.SourceAI:
	default:
		return fmt.Errorf("invalid source mode: %q", t.SourceMode)
	}

	if c.Judge.TimeoutSeconds < 1 {
		return fmt.Errorf("invalid judge timeout: %d", c.Judge.TimeoutSeconds)
	}
	if c.Questions.Concurrency < 1 {
		return fmt.Errorf("invalid question concurrency: %d", c.Questions.Concurrency)
	}
	return nil
}

// Engine returns the engine configuration.
func (c *Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.TourBreak = time.Duration(c.Tournament.TourBreakSeconds) * time.Second
	cfg.ReserveSize = c.Tournament.ReserveSize
	cfg.NotifyNotYourTurn = c.Tournament.NotifyNotYourTurn
	return cfg
}

// Settings returns the default match settings for topics.
func (c *Config) Settings(topics []string) engine.Settings {
	t := c.Tournament
	return engine.Settings{
		Topics:               topics,
		Tours:                t.Tours,
		RoundsPerTour:        t.RoundsPerTour,
		AnswerTimeoutSeconds: t.AnswerTimeoutSeconds,
		Language:             t.Language,
		SourceMode:           tournament.SourceMode(t.SourceMode),
		EliminateLowest:      t.EliminateLowest,
	}
}

// Responses returns the judge client configuration.
func (c *Config) Responses() responses.Config {
	return responses.Config{
		URL:     c.Judge.URL,
		APIKey:  c.Judge.APIKey,
		Model:   c.Judge.Model,
		Timeout: time.Duration(c.Judge.TimeoutSeconds) * time.Second,
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
