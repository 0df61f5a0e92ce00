package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/quiztour/internal/engine"
	"github.com/lox/quiztour/internal/i18n"
	"github.com/lox/quiztour/internal/tournament"
)

// Tournaments is the engine surface driven by chat commands.
type Tournaments interface {
	Configure(ctx context.Context, chatID string, st engine.Settings) (*tournament.Session, error)
	NewMatch(ctx context.Context, chatID string) error
	Join(ctx context.Context, chatID, playerID, name string) (tournament.Player, error)
	Leave(ctx context.Context, chatID, playerID string) error
	PreparePool(ctx context.Context, chatID string) (int, error)
	Start(ctx context.Context, chatID string) error
	Pause(ctx context.Context, chatID string) error
	Resume(ctx context.Context, chatID string) error
	Stop(ctx context.Context, chatID string) error
	Standings(ctx context.Context, chatID string) ([]tournament.Player, error)
	Session(ctx context.Context, chatID string) (*tournament.Session, error)
	SubmitAnswer(ctx context.Context, chatID, playerID, text string) (engine.Outcome, error)
}

// Dispatcher turns chat lines into tournament operations. Lines starting
// with "/" are commands; anything else is an answer attempt.
type Dispatcher struct {
	games    Tournaments
	out      engine.Messenger
	defaults engine.Settings
	logger   *log.Logger
	wg       sync.WaitGroup
}

// NewDispatcher returns a dispatcher. defaults seed /configure.
func NewDispatcher(games Tournaments, out engine.Messenger, defaults engine.Settings, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		games:    games,
		out:      out,
		defaults: defaults,
		logger:   logger.WithPrefix("commands"),
	}
}

// Wait blocks until background preparations finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) HandleText(ctx context.Context, in Inbound) {
	if !strings.HasPrefix(in.Text, "/") {
		if _, err := d.games.SubmitAnswer(ctx, in.ChatID, in.PlayerID, in.Text); err != nil {
			d.logger.Error("Answer failed", "chat", in.ChatID, "player", in.PlayerID, "error", err)
		}
		return
	}

	fields := strings.Fields(strings.TrimPrefix(in.Text, "/"))
	if len(fields) == 0 {
		return
	}
	// Telegram-style addressing: /start@quizbot
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])
	args := fields[1:]
	d.logger.Debug("Command", "chat", in.ChatID, "player", in.PlayerID, "command", cmd)

	var err error
	switch cmd {
	case "configure":
		var st engine.Settings
		st, err = parseSettings(d.defaults, args)
		if err == nil {
			_, err = d.games.Configure(ctx, in.ChatID, st)
		}
	case "join":
		_, err = d.games.Join(ctx, in.ChatID, in.PlayerID, in.Name)
	case "leave":
		err = d.games.Leave(ctx, in.ChatID, in.PlayerID)
	case "prepare":
		d.prepare(ctx, in.ChatID)
	case "start":
		err = d.games.Start(ctx, in.ChatID)
	case "pause":
		err = d.games.Pause(ctx, in.ChatID)
	case "resume":
		err = d.games.Resume(ctx, in.ChatID)
	case "stop":
		err = d.games.Stop(ctx, in.ChatID)
	case "newmatch":
		err = d.games.NewMatch(ctx, in.ChatID)
	case "standings":
		err = d.standings(ctx, in.ChatID)
	case "help":
		d.reply(ctx, in.ChatID, i18n.Help)
	default:
		d.reply(ctx, in.ChatID, i18n.UnknownCommand, cmd)
	}
	if err != nil {
		d.report(ctx, in.ChatID, cmd, err)
	}
}

// prepare runs pool preparation in the background; providers can take
// longer than a websocket read deadline.
func (d *Dispatcher) prepare(ctx context.Context, chatID string) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_, err := d.games.PreparePool(ctx, chatID)
		switch {
		case err == nil:
		case errors.Is(err, engine.ErrNotConfigured), errors.Is(err, engine.ErrInvalidTransition):
			d.report(ctx, chatID, "prepare", err)
		default:
			d.logger.Warn("Question preparation failed", "chat", chatID, "error", err)
		}
	}()
}

func (d *Dispatcher) standings(ctx context.Context, chatID string) error {
	s, err := d.games.Session(ctx, chatID)
	if err != nil {
		return err
	}
	p := i18n.Printer(s.Language)
	var b strings.Builder
	b.WriteString(p.Sprintf(i18n.Standings))
	place := 0
	for _, player := range tournament.Standings(s) {
		switch player.Status {
		case tournament.PlayerActive, tournament.PlayerPending:
			place++
			b.WriteString("\n" + p.Sprintf(i18n.StandingsRow, place, player.Name, player.Score, player.CorrectAnswers, player.IncorrectAnswers))
		case tournament.PlayerEliminated:
			b.WriteString("\n" + p.Sprintf(i18n.StandingsRowOut, player.Name, player.Score))
		}
	}
	_, err = d.out.Send(ctx, chatID, b.String())
	return err
}

func (d *Dispatcher) report(ctx context.Context, chatID, cmd string, err error) {
	switch {
	case errors.Is(err, engine.ErrNotEnoughPlayers), errors.Is(err, engine.ErrNoQuestionPool):
		// already announced
	case errors.Is(err, engine.ErrNotConfigured), errors.Is(err, tournament.ErrSessionNotFound):
		d.reply(ctx, chatID, i18n.NoGame)
	default:
		d.logger.Info("Command rejected", "chat", chatID, "command", cmd, "error", err)
		d.reply(ctx, chatID, i18n.CommandFailed, cmd, err.Error())
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID, key string, args ...any) {
	lang := d.defaults.Language
	if s, err := d.games.Session(ctx, chatID); err == nil && s.Language != "" {
		lang = s.Language
	}
	if _, err := d.out.Send(ctx, chatID, i18n.Printer(lang).Sprintf(key, args...)); err != nil {
		d.logger.Error("Reply failed", "chat", chatID, "error", err)
	}
}

// parseSettings reads key=value arguments on top of defaults.
func parseSettings(defaults engine.Settings, args []string) (engine.Settings, error) {
	st := defaults
	st.Topics = append([]string(nil), defaults.Topics...)
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return st, fmt.Errorf("%w: expected key=value, got %q", engine.ErrInvalidSettings, arg)
		}
		var err error
		switch strings.ToLower(key) {
		case "topics", "topic":
			st.Topics = nil
			for _, t := range strings.Split(value, ",") {
				if t = strings.TrimSpace(strings.ReplaceAll(t, "_", " ")); t != "" {
					st.Topics = append(st.Topics, t)
				}
			}
		case "tours":
			st.Tours, err = strconv.Atoi(value)
		case "rounds":
			st.RoundsPerTour, err = strconv.Atoi(value)
		case "timeout":
			st.AnswerTimeoutSeconds, err = strconv.Atoi(value)
		case "lang", "language":
			st.Language = value
		case "mode", "source":
			st.SourceMode = tournament.SourceMode(strings.ToLower(value))
		case "eliminate":
			st.EliminateLowest, err = strconv.ParseBool(value)
		default:
			return st, fmt.Errorf("%w: unknown option %q", engine.ErrInvalidSettings, key)
		}
		if err != nil {
			return st, fmt.Errorf("%w: bad value for %s: %q", engine.ErrInvalidSettings, key, value)
		}
	}
	return st, st.Validate()
}
