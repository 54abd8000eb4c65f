// Package history provides the durable per-account dedup store.
//
// Each account identity owns one SQLite database holding the set of
// task IDs already delivered by that account. Isolation is physical:
// one account's records can never suppress another account's work.
//
// Failure policy: reads fail open (callers log and treat the record as
// absent, so a lost read only means a task may repeat), writes fail
// closed (a failed insert surfaces as an error, because a silently
// lost dedup write is unrecoverable).
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is one account's delivery history.
type Store struct {
	db *sql.DB
}

// PathFor derives the database path for an account identity inside the
// state directory.
func PathFor(stateDir, account string) string {
	return filepath.Join(stateDir, account+".db")
}

// Open creates or opens the history database at the given path and
// ensures the schema exists. Idempotent - safe to call every run.
//
// The database is configured with:
//   - WAL mode for concurrent read access
//   - NORMAL synchronous mode
//   - 5-second busy timeout
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history db: %w", err)
	}

	// SQLite supports one writer at a time; the scheduler is
	// single-threaded anyway, so a single connection avoids
	// SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Exists reports whether a task ID has already been delivered.
// "Not found" is the false case, not an error.
func (s *Store) Exists(ctx context.Context, taskID string) (bool, error) {
	if taskID == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM delivered WHERE task_id = ? LIMIT 1`, taskID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check task %s: %w", taskID, err)
	}
	return true, nil
}

// Insert records a delivered task ID. Idempotent: inserting a duplicate
// key is a silent no-op, so retries and out-of-order completions never
// crash the scheduler.
func (s *Store) Insert(ctx context.Context, taskID, kind string) error {
	if taskID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivered (task_id, kind)
		VALUES (?, ?)
		ON CONFLICT(task_id) DO NOTHING
	`, taskID, kind)
	if err != nil {
		return fmt.Errorf("record task %s: %w", taskID, err)
	}
	return nil
}

// ListAll returns every delivered task ID as a set. Used once per run
// at backlog construction time instead of one Exists round-trip per
// catalog entry.
func (s *Store) ListAll(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id FROM delivered`)
	if err != nil {
		return nil, fmt.Errorf("list delivered tasks: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan delivered task: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list delivered tasks: %w", err)
	}
	return ids, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
