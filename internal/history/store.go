// File: internal/history/store.go
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forumsign/forumsign/internal/checkin"
)

const timeFormat = time.RFC3339

// DayFormat is the calendar-day key used for fire tracking.
const DayFormat = "2006-01-02"

// Store persists attempt records and the last fire day in a local SQLite
// file (modernc.org/sqlite, pure Go). The fire table is what keeps the
// scheduler to at most one fire per calendar day across process restarts.
type Store struct {
	db *sql.DB
}

var _ checkin.Recorder = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema. The
// file is created with 0600 permissions, its directory with 0700.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("creating history file: %w", err)
		}
		_ = f.Close()
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS attempts (
			id          TEXT PRIMARY KEY,
			started_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			succeeded   INTEGER NOT NULL,
			basis       TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS fires (
			day      TEXT PRIMARY KEY,
			fired_at TEXT NOT NULL
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordAttempt implements checkin.Recorder.
func (s *Store) RecordAttempt(rec checkin.AttemptRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (id, started_at, finished_at, succeeded, basis, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.Format(timeFormat),
		rec.FinishedAt.Format(timeFormat),
		boolToInt(rec.Succeeded),
		rec.Basis,
		rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("recording attempt %s: %w", rec.ID, err)
	}
	return nil
}

// RecordFire marks a calendar day as fired. Re-recording the same day is not
// an error.
func (s *Store) RecordFire(day time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO fires (day, fired_at) VALUES (?, ?)
		 ON CONFLICT(day) DO UPDATE SET fired_at = excluded.fired_at`,
		day.Format(DayFormat),
		time.Now().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("recording fire for %s: %w", day.Format(DayFormat), err)
	}
	return nil
}

// FiredOn reports whether an attempt was already fired on the given
// calendar day.
func (s *Store) FiredOn(day time.Time) (bool, error) {
	var got string
	err := s.db.QueryRow(`SELECT day FROM fires WHERE day = ?`, day.Format(DayFormat)).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading fire record: %w", err)
	}
	return true, nil
}

// RecentAttempts returns up to limit attempts, newest first.
func (s *Store) RecentAttempts(limit int) ([]checkin.AttemptRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, succeeded, basis, reason
		 FROM attempts ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var recs []checkin.AttemptRecord
	for rows.Next() {
		var rec checkin.AttemptRecord
		var started, finished string
		var succeeded int
		if err := rows.Scan(&rec.ID, &started, &finished, &succeeded, &rec.Basis, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scanning attempt row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(timeFormat, started)
		rec.FinishedAt, _ = time.Parse(timeFormat, finished)
		rec.Succeeded = succeeded != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
