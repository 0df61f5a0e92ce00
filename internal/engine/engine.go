// Package engine drives elimination trivia tournaments: turn rotation,
// scoring, tour-end eliminations, sudden-death tie-breaks, answer timeouts
// and pause/resume. Every state change is persisted through a Store and
// announced through a Messenger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/quiztour/internal/i18n"
	"github.com/lox/quiztour/internal/timers"
	"github.com/lox/quiztour/internal/tournament"
	"golang.org/x/text/message"
)

var (
	ErrNotEnoughPlayers  = errors.New("engine: not enough players")
	ErrNoQuestionPool    = errors.New("engine: question pool is empty")
	ErrInvalidTransition = errors.New("engine: invalid state transition")
	ErrNotConfigured     = errors.New("engine: tournament is not configured")
	ErrInvalidSettings   = errors.New("engine: invalid settings")
	ErrAlreadyJoined     = errors.New("engine: player already joined")
	ErrUnknownPlayer     = errors.New("engine: unknown player")
)

// Messenger delivers announcements to a chat.
type Messenger interface {
	Send(ctx context.Context, chatID, text string) (string, error)
}

// Store persists sessions keyed by chat.
type Store interface {
	Save(ctx context.Context, s *tournament.Session) error
	Load(ctx context.Context, chatID string) (*tournament.Session, error)
	Remove(ctx context.Context, chatID string) error
}

// Lister is implemented by stores that can enumerate their sessions.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// QuestionProvider builds question pools.
type QuestionProvider interface {
	Prepare(ctx context.Context, req tournament.PoolRequest) (map[int][]tournament.Question, error)
}

// Validator judges a free-text answer.
type Validator interface {
	Validate(ctx context.Context, userAnswer, correctAnswer, questionText, language string) (bool, error)
}

// ResultArchive stores finished game results.
type ResultArchive interface {
	Archive(ctx context.Context, result tournament.GameResult) error
}

// QuestionArchive records asked questions so they are not reused.
type QuestionArchive interface {
	MoveToArchive(ctx context.Context, questions []tournament.Question) error
}

// Deps bundles the collaborators of an Engine. Store, Messenger and Validator
// are required; the rest may be nil.
type Deps struct {
	Store     Store
	Messenger Messenger
	Validator Validator
	Questions QuestionProvider
	Results   ResultArchive
	Archive   QuestionArchive
}

// Config tunes engine behaviour.
type Config struct {
	// TourBreak is the pause between tours. Zero starts the next tour at once.
	TourBreak time.Duration
	// ReserveSize is how many spare questions back sudden-death rounds.
	ReserveSize int
	// NotifyNotYourTurn answers off-turn messages from known players.
	NotifyNotYourTurn bool
	// OperationTimeout bounds work started from timer callbacks.
	OperationTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TourBreak:         5 * time.Second,
		ReserveSize:       6,
		NotifyNotYourTurn: true,
		OperationTimeout:  30 * time.Second,
	}
}

// Engine runs tournaments for any number of chats. Events for one chat are
// applied one at a time; different chats proceed independently.
type Engine struct {
	deps   Deps
	cfg    Config
	clock  quartz.Clock
	logger *log.Logger
	timers *timers.Registry
	newID  func() string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	refillMu  sync.Mutex
	refilling map[string]bool
	refills   sync.WaitGroup
}

// New creates an engine.
func New(deps Deps, cfg Config, clock quartz.Clock, logger *log.Logger) *Engine {
	logger = logger.WithPrefix("engine")
	return &Engine{
		deps:      deps,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		timers:    timers.NewRegistry(clock, logger),
		newID:     newResultID,
		locks:     make(map[string]*sync.Mutex),
		refilling: make(map[string]bool),
	}
}

// newResultID returns a time-ordered ID so archived results sort by
// creation.
func newResultID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Close cancels every pending timer and waits for background work.
func (e *Engine) Close() {
	e.timers.Stop()
	e.refills.Wait()
}

// Wait blocks until background question refills have finished.
func (e *Engine) Wait() {
	e.refills.Wait()
}

func (e *Engine) lock(chatID string) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[chatID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[chatID] = mu
	}
	e.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) load(ctx context.Context, chatID string) (*tournament.Session, error) {
	s, err := e.deps.Store.Load(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", chatID, err)
	}
	if s.QuestionsByTour == nil {
		s.QuestionsByTour = make(map[int]tournament.QuestionQueue)
	}
	return s, nil
}

func (e *Engine) save(ctx context.Context, s *tournament.Session) error {
	s.UpdatedAt = e.clock.Now()
	if err := e.deps.Store.Save(ctx, s); err != nil {
		return fmt.Errorf("save session %s: %w", s.ChatID, err)
	}
	return nil
}

func (e *Engine) printer(s *tournament.Session) *message.Printer {
	return i18n.Printer(s.Language)
}

// say sends a localized announcement. Delivery failures are logged and
// never abort a state transition.
func (e *Engine) say(ctx context.Context, s *tournament.Session, key string, args ...any) {
	e.send(ctx, s.ChatID, e.printer(s).Sprintf(key, args...))
}

func (e *Engine) send(ctx context.Context, chatID, text string) {
	if _, err := e.deps.Messenger.Send(ctx, chatID, text); err != nil {
		e.logger.Error("Failed to send message", "chat", chatID, "error", err)
	}
}

// callbackContext bounds work triggered by a timer rather than a caller.
func (e *Engine) callbackContext(parent context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.OperationTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, e.cfg.OperationTimeout)
}
