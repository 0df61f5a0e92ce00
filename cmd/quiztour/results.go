package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lox/quiztour/internal/archive"
	"github.com/lox/quiztour/internal/tournament"
)

// ResultsCmd prints archived games from the SQLite archive.
type ResultsCmd struct {
	Archive string `help:"Archive database (defaults to storage.archive from the config)"`
	Chat    string `help:"Only show games from this chat"`
	Limit   int    `default:"20" help:"Maximum games to list"`
	ID      string `arg:"" optional:"" help:"Show the final standings of one game"`
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func (c *ResultsCmd) Run(g *Globals) error {
	path := c.Archive
	if path == "" {
		cfg, err := loadConfig(g)
		if err != nil {
			return err
		}
		path = cfg.Storage.ArchivePath
	}
	if path == "" {
		return fmt.Errorf("no archive configured")
	}

	db, err := archive.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if c.ID != "" {
		result, err := db.Result(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, standingsTable(result))
		return nil
	}

	results, err := db.ListResults(ctx, c.Chat, c.Limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "No archived games.")
		return nil
	}
	fmt.Fprintln(os.Stdout, resultsTable(results))
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func resultsTable(results []tournament.GameResult) string {
	t := newTable("ID", "Chat", "Status", "Finished", "Tours", "Questions", "Winner")
	for _, r := range results {
		winner := "-"
		if w, ok := r.Winner(); ok {
			winner = fmt.Sprintf("%s (%d)", w.Name, w.Score)
		}
		t.Row(
			r.ID,
			r.ChatID,
			string(r.Status),
			r.CompletedAt.Local().Format(time.DateTime),
			strconv.Itoa(r.Statistics.ToursPlayed),
			strconv.Itoa(r.Statistics.QuestionsAsked),
			winner,
		)
	}
	return t.String()
}

func standingsTable(r tournament.GameResult) string {
	t := newTable("Place", "Player", "Score", "Correct", "Wrong", "Out in tour")
	for _, p := range r.Players {
		place, out := "-", "-"
		if p.Placement > 0 {
			place = strconv.Itoa(p.Placement)
		}
		if p.EliminatedInTour > 0 {
			out = strconv.Itoa(p.EliminatedInTour)
		}
		t.Row(place, p.Name, strconv.Itoa(p.Score), strconv.Itoa(p.CorrectAnswers), strconv.Itoa(p.IncorrectAnswers), out)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s  %s\n", r.ID, r.ChatID, r.Status, strings.Join(r.Topics, ", "))
	fmt.Fprintf(&b, "%d questions, %d sudden-death episodes, %s\n",
		r.Statistics.QuestionsAsked, r.Statistics.SuddenDeathEpisodes, r.Statistics.Duration.Round(time.Second))
	b.WriteString(t.String())
	return b.String()
}
