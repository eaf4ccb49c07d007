package propagation

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/logger"
)

// LogTargetName is the target type of LogTarget.
const LogTargetName = "log"

// Ensure LogTarget implements the interface.
var _ driven.PropagationTarget = (*LogTarget)(nil)

// LogTarget writes tasks to the log instead of an external system.
type LogTarget struct {
	resource string
}

// NewLogTarget creates a log target for a resource.
func NewLogTarget(resource string) *LogTarget {
	return &LogTarget{resource: resource}
}

// Name returns the target type.
func (t *LogTarget) Name() string { return LogTargetName }

// Push logs the task.
func (t *LogTarget) Push(_ context.Context, task domain.PropagationTask) error {
	logger.Info("Propagate %s", task)
	return nil
}

// Close is a no-op.
func (t *LogTarget) Close() error { return nil }
