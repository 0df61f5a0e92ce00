package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lox/quiztour/internal/tournament"
	"github.com/lox/quiztour/internal/validator"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

// SQLite persists results and archived questions in a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (or creates) the archive database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Archive(ctx context.Context, result tournament.GameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topics, err := json.Marshal(result.Topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats := result.Statistics
	_, err = tx.ExecContext(ctx,
		`INSERT INTO game_results (
		   id, chat_id, status, language, topics, started_at, completed_at,
		   tours_played, questions_asked, correct_answers, incorrect_answers,
		   sudden_death_episodes, duration_ms
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.ChatID,
		string(result.Status),
		result.Language,
		string(topics),
		toMillis(result.StartedAt),
		toMillis(result.CompletedAt),
		stats.ToursPlayed,
		stats.QuestionsAsked,
		stats.CorrectAnswers,
		stats.IncorrectAnswers,
		stats.SuddenDeathEpisodes,
		stats.Duration.Milliseconds(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrResultExists
		}
		return fmt.Errorf("insert result: %w", err)
	}

	for i, p := range result.Players {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO game_result_players (
			   result_id, position, player_id, name, status, placement,
			   score, correct_answers, incorrect_answers, eliminated_in_tour
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ID, i, p.PlayerID, p.Name, string(p.Status), p.Placement,
			p.Score, p.CorrectAnswers, p.IncorrectAnswers, p.EliminatedInTour,
		)
		if err != nil {
			return fmt.Errorf("insert result player: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

func (s *SQLite) MoveToArchive(ctx context.Context, questions []tournament.Question) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin question archive: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := toMillis(s.now())
	for _, q := range questions {
		key := validator.Normalize(q.Text)
		if key == "" {
			continue
		}
		sourceIDs, err := json.Marshal(q.SourceIDs)
		if err != nil {
			return fmt.Errorf("encode source ids: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO archived_questions (text_key, topic, text, answer, source_ids, archived_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (text_key) DO UPDATE SET
			   times_asked = times_asked + 1,
			   archived_at = excluded.archived_at`,
			key, q.Topic, q.Text, q.Answer, string(sourceIDs), now,
		)
		if err != nil {
			return fmt.Errorf("archive question: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question archive: %w", err)
	}
	return nil
}

// ArchivedTexts returns the text of every archived question.
func (s *SQLite) ArchivedTexts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text FROM archived_questions ORDER BY text`)
	if err != nil {
		return nil, fmt.Errorf("list archived questions: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan archived question: %w", err)
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// ListResults returns results newest first, optionally for one chat only.
// A non-positive limit returns everything.
func (s *SQLite) ListResults(ctx context.Context, chatID string, limit int) ([]tournament.GameResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM game_results
		  WHERE ? = '' OR chat_id = ?
		  ORDER BY completed_at DESC, rowid DESC
		  LIMIT ?`,
		chatID, chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan result id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]tournament.GameResult, 0, len(ids))
	for _, id := range ids {
		r, err := s.Result(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Result returns one archived result with its player rows.
func (s *SQLite) Result(ctx context.Context, id string) (tournament.GameResult, error) {
	if err := ctx.Err(); err != nil {
		return tournament.GameResult{}, err
	}
	var (
		r                      tournament.GameResult
		status, topics         string
		startedAt, completedAt int64
		durationMillis         int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, status, language, topics, started_at, completed_at,
		        tours_played, questions_asked, correct_answers, incorrect_answers,
		        sudden_death_episodes, duration_ms
		   FROM game_results
		  WHERE id = ?`,
		id,
	).Scan(
		&r.ID, &r.ChatID, &status, &r.Language, &topics, &startedAt, &completedAt,
		&r.Statistics.ToursPlayed, &r.Statistics.QuestionsAsked,
		&r.Statistics.CorrectAnswers, &r.Statistics.IncorrectAnswers,
		&r.Statistics.SuddenDeathEpisodes, &durationMillis,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tournament.GameResult{}, ErrResultNotFound
		}
		return tournament.GameResult{}, fmt.Errorf("get result: %w", err)
	}
	r.Status = tournament.Status(status)
	r.StartedAt = fromMillis(startedAt)
	r.CompletedAt = fromMillis(completedAt)
	r.Statistics.Duration = time.Duration(durationMillis) * time.Millisecond
	if err := json.Unmarshal([]byte(topics), &r.Topics); err != nil {
		return tournament.GameResult{}, fmt.Errorf("decode topics: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, name, status, placement, score, correct_answers,
		        incorrect_answers, eliminated_in_tour
		   FROM game_result_players
		  WHERE result_id = ?
		  ORDER BY position`,
		id,
	)
	if err != nil {
		return tournament.GameResult{}, fmt.Errorf("get result players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p            tournament.PlayerResult
			playerStatus string
		)
		if err := rows.Scan(&p.PlayerID, &p.Name, &playerStatus, &p.Placement, &p.Score,
			&p.CorrectAnswers, &p.IncorrectAnswers, &p.EliminatedInTour); err != nil {
			return tournament.GameResult{}, fmt.Errorf("scan result player: %w", err)
		}
		p.Status = tournament.PlayerStatus(playerStatus)
		r.Players = append(r.Players, p)
	}
	return r, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
