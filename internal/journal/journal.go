// Package journal keeps a SQLite history of the emitted events so past
// captures, promotions and restores can be reviewed after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"SaveGuard/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	at_ms      INTEGER NOT NULL,
	profile    INTEGER NOT NULL,
	summary    TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_at ON events(at_ms);
`

type Entry struct {
	ID      string
	Type    events.Type
	At      time.Time
	Profile int
	Summary string
	Payload string
}

type Journal struct {
	db *sql.DB
}

func toMillis(v time.Time) int64 { return v.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := clean + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
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
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append stores ev. Appending the same event id twice is a no-op.
func (j *Journal) Append(ctx context.Context, profile int, ev events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (id, type, at_ms, profile, summary, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), toMillis(ev.At), profile, ev.Summary(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. Types filters when set.
func (j *Journal) Recent(ctx context.Context, limit int, types ...events.Type) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, type, at_ms, profile, summary, payload FROM events`
	args := []any{}
	if len(types) > 0 {
		marks := make([]string, len(types))
		for i, t := range types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		query += ` WHERE type IN (` + strings.Join(marks, ",") + `)`
	}
	query += ` ORDER BY at_ms DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e   Entry
			typ string
			at  int64
		)
		if err := rows.Scan(&e.ID, &typ, &at, &e.Profile, &e.Summary, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = events.Type(typ)
		e.At = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}
