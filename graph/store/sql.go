package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// sqlStore holds the query logic SQLiteStore and MySQLStore share. The
// dialects differ only in DDL and in how a create-if-absent insert is spelled.
//
// The full checkpoint is kept as a JSON document in data; thread_id, status,
// graph_name, version and updated_at are duplicated into columns so that CAS
// and List can run as plain SQL.
type sqlStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time

	// insertIfAbsent inserts a row and affects zero rows when thread_id exists.
	insertIfAbsent string
}

const (
	updateIfVersion = `UPDATE checkpoints
		SET graph_name = ?, status = ?, version = ?, data = ?, updated_at = ?
		WHERE thread_id = ? AND version = ?`
	selectByThread = `SELECT data, version FROM checkpoints WHERE thread_id = ?`
	deleteByThread = `DELETE FROM checkpoints WHERE thread_id = ?`
)

func (s *sqlStore) load(ctx context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var (
		data    []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, selectByThread, threadID).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", threadID, err)
	}
	cp, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", threadID, err)
	}
	cp.Version = version
	return cp, nil
}

func (s *sqlStore) compareAndSwap(ctx context.Context, cp *Checkpoint, expected int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	next := *cp
	stamp(&next, expected, s.now())
	data, err := encode(&next)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", cp.ThreadID, err)
	}
	updated := next.UpdatedAt.UnixNano()

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, s.insertIfAbsent,
			next.ThreadID, next.GraphName, string(next.Status), next.Version, data, next.CreatedAt.UnixNano(), updated)
	} else {
		res, err = s.db.ExecContext(ctx, updateIfVersion,
			next.GraphName, string(next.Status), next.Version, data, updated, next.ThreadID, expected)
	}
	if err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", cp.ThreadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", cp.ThreadID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	*cp = next
	return nil
}

func (s *sqlStore) delete(ctx context.Context, threadID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	res, err := s.db.ExecContext(ctx, deleteByThread, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", threadID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) list(ctx context.Context, opts ListOptions) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var (
		where []string
		args  []any
	)
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.Graph != "" {
		where = append(where, "graph_name = ?")
		args = append(args, opts.Graph)
	}
	query := "SELECT data, version FROM checkpoints"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, thread_id ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Checkpoint
	for rows.Next() {
		var (
			data    []byte
			version int64
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		cp, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
		}
		cp.Version = version
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return out, nil
}

func (s *sqlStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *sqlStore) ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}
