package domain

import (
	"fmt"
	"sort"
	"time"
)

// PropagationStatus is the delivery state of a propagation task.
type PropagationStatus string

const (
	PropagationSuccess PropagationStatus = "SUCCESS"
	PropagationFailure PropagationStatus = "FAILURE"
)

// PropagationTask pushes one identity change to one external resource.
type PropagationTask struct {
	ID          string
	RunID       string
	Resource    string
	IdentityKey string
	Username    string
	Operation   Operation

	// Attributes is a snapshot of the identity at task creation.
	// Empty for deletes.
	Attributes map[string][]string

	Status    PropagationStatus
	Error     string
	CreatedAt time.Time
}

// NewPropagationTasks builds one task per target resource, skipping the
// origin resource so a change is never echoed back to where it came from.
// Targets are de-duplicated and returned in name order.
func NewPropagationTasks(runID string, identity *Identity, op Operation, targets []string, origin string) []PropagationTask {
	seen := make(map[string]struct{}, len(targets))
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" || t == origin {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		names = append(names, t)
	}
	sort.Strings(names)

	var attrs map[string][]string
	if op != OperationDelete && identity.Attributes != nil {
		attrs = make(map[string][]string, len(identity.Attributes))
		for k, v := range identity.Attributes {
			attrs[k] = append([]string(nil), v...)
		}
	}

	tasks := make([]PropagationTask, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, PropagationTask{
			RunID:       runID,
			Resource:    name,
			IdentityKey: identity.Key,
			Username:    identity.Username,
			Operation:   op,
			Attributes:  attrs,
		})
	}
	return tasks
}

// String identifies the task in logs.
func (t PropagationTask) String() string {
	return fmt.Sprintf("%s %s -> %s", t.Operation, t.Username, t.Resource)
}
