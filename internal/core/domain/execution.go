package domain

import "time"

// ExecutionStatus is the final state of a sync run.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailure ExecutionStatus = "FAILURE"
)

// Execution is the persisted history record of one sync run.
type Execution struct {
	ID                 string
	Resource           string
	StartedAt          time.Time
	EndedAt            time.Time
	Status             ExecutionStatus
	DryRun             bool
	FullReconciliation bool
	DeltasProcessed    int
	Outcomes           int
	Failures           int

	// Message is the rendered report, or the fatal error for failed runs.
	Message string
}

// Duration returns how long the run took.
func (e *Execution) Duration() time.Duration {
	if e.EndedAt.IsZero() {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}
