package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS page_context (
	source     TEXT    NOT NULL,
	page       INTEGER NOT NULL,
	page_image BLOB,
	summary    TEXT,
	output     TEXT,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (source, page)
);`

// SQLite is a Store backed by one SQLite file, one row per page.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the cache database at path. Use
// ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("cache: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range append(pragmas, schema) {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: %s: %w", strings.TrimSpace(firstLine(p)), err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (s *SQLite) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	var (
		image           []byte
		summary, output sql.NullString
		updated         int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT page_image, summary, output, updated_at FROM page_context WHERE source = ? AND page = ?`,
		key.Source, key.Page,
	).Scan(&image, &summary, &output, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	e, err := decodeParts(image, []byte(summary.String), []byte(output.String), time.UnixMilli(updated).UTC())
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (s *SQLite) Put(ctx context.Context, key Key, e *Entry) error {
	summary, output, err := encodeParts(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO page_context (source, page, page_image, summary, output, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key.Source, key.Page, e.PageImage, nullable(summary), nullable(output), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Invalidate(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM page_context WHERE source = ? AND page = ?`, key.Source, key.Page); err != nil {
		return fmt.Errorf("cache: invalidate %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func nullable(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
