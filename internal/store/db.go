// Package store persists items, warranties, transfers and reminders in a
// single SQLite file.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"invcal/internal/calendar"
	appLog "invcal/internal/log"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

const fileName = "invcal.db"

// DB wraps the SQLite handle.
type DB struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

// Open opens (creating if needed) the database under dir and applies
// migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, fileName)
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB, loc: time.UTC, now: time.Now}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	appLog.Debug("store opened", "path", path)
	return db, nil
}

// SetLocation sets the zone dates are reported in when read back.
func (db *DB) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	db.loc = loc
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Migrations returns the schema statements. Each string is a single SQL
// statement.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS items (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			category      TEXT NOT NULL DEFAULT '',
			purchase_date TEXT,
			price         TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_purchase ON items(purchase_date)`,

		`CREATE TABLE IF NOT EXISTS warranties (
			id         TEXT PRIMARY KEY,
			item_id    TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			type       TEXT NOT NULL,
			provider   TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date   TEXT NOT NULL,
			extended   INTEGER NOT NULL DEFAULT 0,
			cost       TEXT,
			notes      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_warranties_item ON warranties(item_id)`,

		`CREATE TABLE IF NOT EXISTS transfers (
			id           TEXT PRIMARY KEY,
			warranty_id  TEXT NOT NULL REFERENCES warranties(id) ON DELETE CASCADE,
			date         TEXT NOT NULL,
			kind         TEXT NOT NULL,
			status       TEXT NOT NULL,
			from_owner   TEXT NOT NULL DEFAULT '',
			to_owner     TEXT NOT NULL DEFAULT '',
			original_end TEXT NOT NULL,
			adjusted_end TEXT NOT NULL,
			fee          TEXT,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_warranty ON transfers(warranty_id)`,

		`CREATE TABLE IF NOT EXISTS reminders (
			id            TEXT PRIMARY KEY,
			item_id       TEXT REFERENCES items(id) ON DELETE SET NULL,
			title         TEXT NOT NULL,
			notes         TEXT NOT NULL DEFAULT '',
			anchor        TEXT NOT NULL,
			frequency     TEXT NOT NULL,
			normalization TEXT NOT NULL,
			days_before   TEXT NOT NULL DEFAULT '[]',
			enabled       INTEGER NOT NULL DEFAULT 1,
			source        TEXT NOT NULL DEFAULT '',
			external_uid  TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_external
			ON reminders(source, external_uid) WHERE source != ''`,
	}
}

func (db *DB) migrate() error {
	for i, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// ─── encoding helpers ───────────────────────────────────────────────────────

func encodeDate(d calendar.Date) string {
	return d.String()
}

func encodeDatePtr(d *calendar.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func (db *DB) decodeDate(s string) (calendar.Date, error) {
	d, err := calendar.Parse(s)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("decode date %q: %w", s, err)
	}
	// Restore the configured zone when the stored offset matches it; other
	// offsets keep their own wall clock.
	t := d.Time()
	_, stored := t.Zone()
	if _, local := t.In(db.loc).Zone(); stored == local {
		return d.In(db.loc), nil
	}
	return d, nil
}

func (db *DB) decodeDatePtr(ns sql.NullString) (*calendar.Date, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := db.decodeDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func affected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
