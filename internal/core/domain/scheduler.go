package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskKind is what a scheduled task does when it fires.
type TaskKind string

const (
	// TaskSync runs an incremental sync of one resource.
	TaskSync TaskKind = "sync"

	// TaskReconcile runs a full reconciliation of one resource.
	TaskReconcile TaskKind = "reconcile"

	// TaskPrune trims run and task history.
	TaskPrune TaskKind = "prune"
)

// PruneTaskID is the ID of the single history pruning task.
const PruneTaskID = "prune"

// TaskID returns the ID of a per-resource task, e.g. "sync:hr".
func TaskID(kind TaskKind, resource string) string {
	if resource == "" {
		return string(kind)
	}
	return string(kind) + ":" + resource
}

// ParseTaskID splits a task ID into its kind and resource.
func ParseTaskID(id string) (TaskKind, string, error) {
	kind, resource, _ := strings.Cut(id, ":")
	switch TaskKind(kind) {
	case TaskSync, TaskReconcile:
		if resource == "" {
			return "", "", fmt.Errorf("%w: task %q has no resource", ErrInvalidInput, id)
		}
		return TaskKind(kind), resource, nil
	case TaskPrune:
		return TaskPrune, "", nil
	default:
		return "", "", fmt.Errorf("%w: task %q", ErrUnsupportedType, id)
	}
}

// ScheduledTask is a recurring job whose state survives restarts.
type ScheduledTask struct {
	ID       string
	Kind     TaskKind
	Resource string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is the error of the most recent run, empty after a success.
	LastError string
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// TaskResult is one execution of a scheduled task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// DeltasProcessed and Failures are copied from the sync run.
	// Both are zero for pruning.
	DeltasProcessed int
	Failures        int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// SyncInterval is the default incremental sync interval.
	SyncInterval time.Duration

	// ReconcileInterval schedules full reconciliations. Zero disables them.
	ReconcileInterval time.Duration

	// PruneInterval schedules history pruning. Zero disables it.
	PruneInterval time.Duration

	// HistoryKeep is how many runs are kept per resource when pruning.
	HistoryKeep int

	// ResourceIntervals overrides SyncInterval per resource.
	ResourceIntervals map[string]time.Duration
}

// Default scheduler settings.
const (
	DefaultSyncInterval  = 15 * time.Minute
	DefaultPruneInterval = 24 * time.Hour
	DefaultHistoryKeep   = 50
)

// DefaultSchedulerConfig returns the scheduler defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:       true,
		SyncInterval:  DefaultSyncInterval,
		PruneInterval: DefaultPruneInterval,
		HistoryKeep:   DefaultHistoryKeep,
	}
}

// SyncIntervalFor returns the incremental sync interval of a resource.
// A zero result disables scheduled syncs of that resource.
func (c SchedulerConfig) SyncIntervalFor(resource string) time.Duration {
	if d, ok := c.ResourceIntervals[resource]; ok {
		return d
	}
	return c.SyncInterval
}
