// Package store persists run checkpoints keyed by thread id.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no checkpoint exists for a thread id.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by CompareAndSwap when the stored
	// version differs from the expected one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store is closed")
)

// Status is the lifecycle state of a run.
type Status string

// Run statuses. A run moves RUNNING → INTERRUPTED → RUNNING → ... and ends
// COMPLETED or FAILED.
const (
	StatusRunning     Status = "RUNNING"
	StatusInterrupted Status = "INTERRUPTED"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
)

// Frame is the position of a paused embedded graph. Frames nest one level per
// embedding so that every level's pending node is known on resume.
type Frame struct {
	Graph       string          `json:"graph"`
	State       json.RawMessage `json:"state"`
	PendingNode string          `json:"pending_node"`
	Completed   []string        `json:"completed,omitempty"`
	Step        int             `json:"step"`
	Child       *Frame          `json:"child,omitempty"`
}

// Failure records where and why a run failed.
type Failure struct {
	Node  string `json:"node,omitempty"`
	Step  int    `json:"step"`
	Cause string `json:"cause"`
}

// Checkpoint is the durable record of a run.
//
// State, Interrupt, Config and UI are opaque JSON documents owned by the
// engine. Version increases by one on every successful CompareAndSwap.
type Checkpoint struct {
	ThreadID    string          `json:"thread_id"`
	GraphName   string          `json:"graph_name"`
	Status      Status          `json:"status"`
	State       json.RawMessage `json:"state"`
	PendingNode string          `json:"pending_node,omitempty"`
	Completed   []string        `json:"completed,omitempty"`
	Active      []string        `json:"active,omitempty"`
	StepCount   int             `json:"step_count"`
	Interrupt   json.RawMessage `json:"interrupt,omitempty"`
	Child       *Frame          `json:"child,omitempty"`
	Failure     *Failure        `json:"failure,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	UI          json.RawMessage `json:"ui,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ListOptions filters List results. Zero values match everything.
type ListOptions struct {
	Status Status
	Graph  string
	Limit  int
}

func (o ListOptions) match(cp *Checkpoint) bool {
	if o.Status != "" && cp.Status != o.Status {
		return false
	}
	if o.Graph != "" && cp.GraphName != o.Graph {
		return false
	}
	return true
}

// Store persists checkpoints keyed by thread id.
//
// Implementations must make CompareAndSwap atomic per thread id: of two
// writers presenting the same expected version, exactly one succeeds.
// That is what keeps two concurrent resumes from both applying a response.
//
// Implementations:
//   - MemStore: in-process, for tests and single-run tools
//   - SQLiteStore: single-file database
//   - MySQLStore: shared relational database
//   - RedisStore: shared key-value store
type Store interface {
	// Load returns the current checkpoint for a thread, or ErrNotFound.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// CompareAndSwap writes cp if the stored version equals expected.
	// expected == 0 means the thread must not exist yet. On success
	// cp.Version is set to the new version and cp.UpdatedAt to the write
	// time; on mismatch ErrVersionConflict is returned and nothing changes.
	CompareAndSwap(ctx context.Context, cp *Checkpoint, expected int64) error

	// Delete removes a thread's checkpoint. Deleting a missing thread
	// returns ErrNotFound.
	Delete(ctx context.Context, threadID string) error

	// List returns checkpoints ordered by most recent update first.
	List(ctx context.Context, opts ListOptions) ([]*Checkpoint, error)

	// Close releases the store's resources.
	Close() error
}

// stamp prepares cp for a write that replaces version expected.
func stamp(cp *Checkpoint, expected int64, now time.Time) {
	cp.Version = expected + 1
	cp.UpdatedAt = now.UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
}

func encode(cp *Checkpoint) ([]byte, error) {
	return json.Marshal(cp)
}

func decode(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
