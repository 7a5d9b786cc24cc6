// Package history keeps a sqlite journal of applied presets and restored
// baselines.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS applies (
	id         TEXT PRIMARY KEY,
	at_unix_ms INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	source     TEXT NOT NULL,
	preset_id  TEXT NOT NULL DEFAULT '',
	display    INTEGER NOT NULL,
	gamma      INTEGER NOT NULL DEFAULT 0,
	vibrance   INTEGER NOT NULL DEFAULT 0,
	mode       TEXT NOT NULL DEFAULT '',
	commands   TEXT NOT NULL DEFAULT '',
	skipped    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS applies_at ON applies (at_unix_ms);
`

// Entry is one journal row.
type Entry struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Kind     string    `json:"kind"`   // "apply" or "restore"
	Source   string    `json:"source"` // "hotkey", "cli", "api", "tui"
	PresetID string    `json:"preset_id,omitempty"`
	Display  int       `json:"display"`
	Gamma    int       `json:"gamma"`
	Vibrance int       `json:"vibrance"`
	Mode     string    `json:"mode,omitempty"`
	Commands []string  `json:"commands,omitempty"` // one argv per command, space-joined
	Skipped  []string  `json:"skipped,omitempty"`
}

// Journal is an open history database.
type Journal struct {
	db    *sql.DB
	path  string
	now   func() time.Time
	newID func() string
}

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// One writer; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Journal{db: db, path: path, now: time.Now, newID: uuid.NewString}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record inserts e, filling ID and At when they are zero. It returns the
// stored entry.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = j.newID()
	}
	if e.At.IsZero() {
		e.At = j.now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO applies (id, at_unix_ms, kind, source, preset_id, display, gamma, vibrance, mode, commands, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.UnixMilli(), e.Kind, e.Source, e.PresetID, e.Display, e.Gamma, e.Vibrance, e.Mode,
		strings.Join(e.Commands, "\n"), strings.Join(e.Skipped, ","),
	)
	if err != nil {
		return e, fmt.Errorf("history: insert: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at_unix_ms, kind, source, preset_id, display, gamma, vibrance, mode, commands, skipped
		 FROM applies ORDER BY at_unix_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			atMillis int64
			commands string
			skipped  string
		)
		if err := rows.Scan(&e.ID, &atMillis, &e.Kind, &e.Source, &e.PresetID, &e.Display,
			&e.Gamma, &e.Vibrance, &e.Mode, &commands, &skipped); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.At = time.UnixMilli(atMillis)
		e.Commands = splitNonEmpty(commands, "\n")
		e.Skipped = splitNonEmpty(skipped, ",")
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}

// Prune deletes entries older than cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM applies WHERE at_unix_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
