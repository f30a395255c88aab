package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store.
//
// Checkpoints are held as encoded JSON so callers never share memory with
// stored records. MemStore is safe for concurrent use.
//
// Data is lost when the process exits. Use SQLiteStore, MySQLStore or
// RedisStore for runs that must survive a restart.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	closed  bool
	now     func() time.Time
}

// NewMemStore creates a new in-memory store.
//
// Example:
//
//	engine, err := graph.New(store.NewMemStore())
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]byte), now: time.Now}
}

// Load returns the stored checkpoint for threadID.
func (m *MemStore) Load(_ context.Context, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	data, ok := m.records[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	cp, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", threadID, err)
	}
	return cp, nil
}

// CompareAndSwap writes cp when the stored version equals expected.
func (m *MemStore) CompareAndSwap(_ context.Context, cp *Checkpoint, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	var current int64
	if data, ok := m.records[cp.ThreadID]; ok {
		existing, err := decode(data)
		if err != nil {
			return fmt.Errorf("failed to decode checkpoint %s: %w", cp.ThreadID, err)
		}
		current = existing.Version
	}
	if current != expected {
		return ErrVersionConflict
	}

	next := *cp
	stamp(&next, expected, m.now())
	data, err := encode(&next)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", cp.ThreadID, err)
	}
	m.records[cp.ThreadID] = data
	*cp = next
	return nil
}

// Delete removes a thread's checkpoint.
func (m *MemStore) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.records[threadID]; !ok {
		return ErrNotFound
	}
	delete(m.records, threadID)
	return nil
}

// List returns the checkpoints matching opts, most recently updated first.
func (m *MemStore) List(_ context.Context, opts ListOptions) ([]*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	out := make([]*Checkpoint, 0, len(m.records))
	for id, data := range m.records {
		cp, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", id, err)
		}
		if opts.match(cp) {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ThreadID < out[j].ThreadID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Close marks the store closed. Subsequent calls return ErrClosed.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
