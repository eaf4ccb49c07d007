package domain

import "time"

// Operation is the change applied to a local identity.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// Operations lists operations in report order.
var Operations = []Operation{OperationCreate, OperationUpdate, OperationDelete}

// OutcomeStatus is the result of applying one delta to one identity.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "SUCCESS"
	OutcomeFailure OutcomeStatus = "FAILURE"
)

// SyncOutcome is the immutable result of applying one delta to one identity.
type SyncOutcome struct {
	// IdentityKey is empty until creation succeeds.
	IdentityKey  string
	DisplayLabel string
	Operation    Operation
	Status       OutcomeStatus

	// Message is set only when Status is FAILURE.
	Message string
}

// SuccessOutcome builds a SUCCESS outcome.
func SuccessOutcome(op Operation, key, label string) SyncOutcome {
	return SyncOutcome{
		IdentityKey:  key,
		DisplayLabel: label,
		Operation:    op,
		Status:       OutcomeSuccess,
	}
}

// FailureOutcome builds a FAILURE outcome carrying the error message.
func FailureOutcome(op Operation, key, label string, err error) SyncOutcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return SyncOutcome{
		IdentityKey:  key,
		DisplayLabel: label,
		Operation:    op,
		Status:       OutcomeFailure,
		Message:      msg,
	}
}

// SyncOptions selects the mode of one sync run.
type SyncOptions struct {
	// DryRun reports what would change without side effects.
	DryRun bool

	// FullReconciliation enumerates every object instead of the change stream.
	FullReconciliation bool
}

// SyncRunResult aggregates every outcome of one sync invocation.
type SyncRunResult struct {
	Resource           string
	RunID              string
	Outcomes           []SyncOutcome
	DryRun             bool
	FullReconciliation bool
	TraceLevel         TraceLevel
	StartedAt          time.Time
	EndedAt            time.Time

	// DeltasProcessed counts deltas received from the connector.
	DeltasProcessed int

	// Report is the rendered trace report.
	Report string

	// Token is the token persisted at the end of the run, if any.
	Token *SyncToken
}

// Count returns how many outcomes have the given operation and status.
func (r *SyncRunResult) Count(op Operation, status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Operation == op && o.Status == status {
			n++
		}
	}
	return n
}

// Failures returns how many outcomes failed.
func (r *SyncRunResult) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailure {
			n++
		}
	}
	return n
}

// SyncStatus tracks the live state of a resource sync.
type SyncStatus struct {
	Resource        string
	Running         bool
	LastRun         time.Time
	LastError       string
	DeltasProcessed int
}
