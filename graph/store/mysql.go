package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL implementation of Store for deployments where several
// processes share checkpoints.
//
// CompareAndSwap relies on single-row atomicity of InnoDB: the conditional
// UPDATE and INSERT IGNORE each affect zero rows when another writer got there
// first.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore connects to MySQL and creates the checkpoints table if needed.
//
// The DSN uses the go-sql-driver format:
//
//	user:password@tcp(localhost:3306)/agents?parseTime=true
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{sqlStore: sqlStore{
		db:  db,
		now: time.Now,
		insertIfAbsent: `INSERT IGNORE INTO checkpoints
			(thread_id, graph_name, status, version, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
	}}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id VARCHAR(255) NOT NULL PRIMARY KEY,
			graph_name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			version BIGINT NOT NULL,
			data LONGBLOB NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_checkpoints_status (status, updated_at),
			INDEX idx_checkpoints_graph (graph_name, updated_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return nil
}

// Load returns the stored checkpoint for threadID.
func (m *MySQLStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	return m.load(ctx, threadID)
}

// CompareAndSwap writes cp when the stored version equals expected.
func (m *MySQLStore) CompareAndSwap(ctx context.Context, cp *Checkpoint, expected int64) error {
	return m.compareAndSwap(ctx, cp, expected)
}

// Delete removes a thread's checkpoint.
func (m *MySQLStore) Delete(ctx context.Context, threadID string) error {
	return m.delete(ctx, threadID)
}

// List returns the checkpoints matching opts, most recently updated first.
func (m *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Checkpoint, error) {
	return m.list(ctx, opts)
}

// Close closes the connection pool.
func (m *MySQLStore) Close() error {
	return m.close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore) Ping(ctx context.Context) error {
	return m.ping(ctx)
}
