package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists closed usage sessions to SQLite so daily totals survive
// restarts. Writes are best-effort; the in-memory ledger stays authoritative
// for the running process.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the usage database under statePath
func Open(statePath string) (*Store, error) {
	dbPath := filepath.Join(statePath, "system", "usage.db")

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_sessions (
		id TEXT PRIMARY KEY,
		app TEXT NOT NULL,
		day TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		seconds INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_sessions_day ON usage_sessions(day);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores one closed session
func (s *Store) Record(sess Session) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO usage_sessions (id, app, day, started_at, ended_at, seconds) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.App,
		sess.Start.Format("2006-01-02"),
		sess.Start.Format(time.RFC3339),
		sess.End.Format(time.RFC3339),
		sess.Seconds,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// DailyTotals returns per-app seconds for day (YYYY-MM-DD), largest first
func (s *Store) DailyTotals(day string) ([]AppTotal, error) {
	rows, err := s.db.Query(
		`SELECT app, SUM(seconds) AS total FROM usage_sessions WHERE day = ? GROUP BY app HAVING total > 0 ORDER BY total DESC, app ASC`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []AppTotal
	for rows.Next() {
		var t AppTotal
		if err := rows.Scan(&t.App, &t.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Sessions returns the sessions recorded for day in start order
func (s *Store) Sessions(day string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, app, started_at, ended_at, seconds FROM usage_sessions WHERE day = ? ORDER BY started_at ASC`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var start, end string
		if err := rows.Scan(&sess.ID, &sess.App, &start, &end, &sess.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if sess.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("failed to scan session %s start: %w", sess.ID, err)
		}
		if sess.End, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("failed to scan session %s end: %w", sess.ID, err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
