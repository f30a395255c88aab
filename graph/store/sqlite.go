package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It keeps checkpoints in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments
//   - Local runs that must survive a restart
//
// The database runs in WAL mode with a single connection, so writes are
// serialized and CompareAndSwap is atomic per thread.
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore opens (and creates if needed) a SQLite checkpoint database.
//
// The path parameter specifies the database file location:
//   - "./agents.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// Example:
//
//	st, err := store.NewSQLiteStore("./agents.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite supports one writer at a time
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{
		sqlStore: sqlStore{
			db:  db,
			now: time.Now,
			insertIfAbsent: `INSERT INTO checkpoints
				(thread_id, graph_name, status, version, data, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(thread_id) DO NOTHING`,
		},
		path: path,
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL PRIMARY KEY,
			graph_name TEXT NOT NULL,
			status TEXT NOT NULL,
			version INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON checkpoints(status, updated_at)"); err != nil {
		return fmt.Errorf("failed to create idx_checkpoints_status: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_graph ON checkpoints(graph_name, updated_at)"); err != nil {
		return fmt.Errorf("failed to create idx_checkpoints_graph: %w", err)
	}
	return nil
}

// Load returns the stored checkpoint for threadID.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	return s.load(ctx, threadID)
}

// CompareAndSwap writes cp when the stored version equals expected.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, cp *Checkpoint, expected int64) error {
	return s.compareAndSwap(ctx, cp, expected)
}

// Delete removes a thread's checkpoint.
func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	return s.delete(ctx, threadID)
}

// List returns the checkpoints matching opts, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Checkpoint, error) {
	return s.list(ctx, opts)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}
