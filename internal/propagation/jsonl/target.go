// Package jsonl provides a propagation target that appends tasks to a
// JSON-lines file, one object per line.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Name is the target type.
const Name = "jsonl"

// Ensure Target implements the interface.
var _ driven.PropagationTarget = (*Target)(nil)

// Record is the line written for each task.
type Record struct {
	Time       time.Time           `json:"time"`
	RunID      string              `json:"run_id"`
	Resource   string              `json:"resource"`
	Operation  string              `json:"operation"`
	Key        string              `json:"key"`
	Username   string              `json:"username"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// Target appends tasks to a file.
type Target struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	enc   *json.Encoder
	fsync bool
}

// Option configures the target.
type Option func(*Target)

// WithFsync syncs the file after every task.
func WithFsync() Option {
	return func(t *Target) {
		t.fsync = true
	}
}

// New opens path for appending, creating parent directories as needed.
func New(path string, opts ...Option) (*Target, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: jsonl target requires a path", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	t := &Target{path: path, file: f, enc: json.NewEncoder(f)}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Name returns the target type.
func (t *Target) Name() string { return Name }

// Push appends one record.
func (t *Target) Push(ctx context.Context, task domain.PropagationTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return domain.ErrConnectorClosed
	}
	rec := Record{
		Time:       time.Now().UTC(),
		RunID:      task.RunID,
		Resource:   task.Resource,
		Operation:  string(task.Operation),
		Key:        task.IdentityKey,
		Username:   task.Username,
		Attributes: task.Attributes,
	}
	if err := t.enc.Encode(rec); err != nil {
		return fmt.Errorf("write %s: %w", t.path, err)
	}
	if t.fsync {
		if err := t.file.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", t.path, err)
		}
	}
	return nil
}

// Close closes the file.
func (t *Target) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
