package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lox/quiztour/internal/fileutil"
	"github.com/lox/quiztour/internal/tournament"
)

const sessionExt = ".json"

// File stores each session as a JSON document under a directory. Writes
// are atomic, so a crash leaves either the previous or the new state.
type File struct {
	dir string
}

// NewFile returns a store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(chatID string) string {
	return filepath.Join(f.dir, url.PathEscape(chatID)+sessionExt)
}

func (f *File) Save(ctx context.Context, s *tournament.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fileutil.WriteJSON(f.path(s.ChatID), s, 0o644); err != nil {
		return fmt.Errorf("save session %s: %w", s.ChatID, err)
	}
	return nil
}

func (f *File) Load(ctx context.Context, chatID string) (*tournament.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var s tournament.Session
	if err := fileutil.ReadJSON(f.path(chatID), &s); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, tournament.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", chatID, err)
	}
	return &s, nil
}

func (f *File) Remove(ctx context.Context, chatID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path(chatID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tournament.ErrSessionNotFound
		}
		return fmt.Errorf("remove session %s: %w", chatID, err)
	}
	return nil
}

// List returns the chat IDs of every stored session in sorted order.
func (f *File) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, sessionExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, sessionExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
