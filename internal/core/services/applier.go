package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/logger"
)

// ApplierDeps holds the collaborators a DeltaApplier calls.
// Propagation and Notifications may be nil.
type ApplierDeps struct {
	Repository    driven.IdentityRepository
	Workflow      driven.WorkflowAdapter
	Propagation   driven.PropagationManager
	Notifications driven.NotificationSink
	Mapper        driven.AttributeMapper
}

// DeltaApplier performs the create, update or delete branch for one delta
// against one resource. It is built once per run.
type DeltaApplier struct {
	resource *domain.Resource
	rc       domain.RunContext
	deps     ApplierDeps
}

// NewDeltaApplier creates an applier bound to a resource and run context.
func NewDeltaApplier(resource *domain.Resource, rc domain.RunContext, deps ApplierDeps) *DeltaApplier {
	if deps.Mapper == nil {
		deps.Mapper = NewDefaultAttributeMapper()
	}
	return &DeltaApplier{resource: resource, rc: rc, deps: deps}
}

// Apply applies the delta to the resolved keys and returns one outcome per
// identity acted on. Per-identity errors become FAILURE outcomes and never
// stop sibling keys.
func (a *DeltaApplier) Apply(
	ctx context.Context,
	delta domain.Delta,
	keys []string,
	op domain.Operation,
	dryRun bool,
) []domain.SyncOutcome {
	switch op {
	case domain.OperationCreate:
		return a.create(ctx, delta, dryRun)
	case domain.OperationUpdate:
		return a.update(ctx, delta, keys, dryRun)
	case domain.OperationDelete:
		return a.delete(ctx, keys, dryRun)
	default:
		logger.Error("Unknown operation %q for %s", op, delta.UID)
		return nil
	}
}

func (a *DeltaApplier) create(ctx context.Context, delta domain.Delta, dryRun bool) []domain.SyncOutcome {
	if !a.resource.PerformCreate {
		logger.Debug("Create disabled on %s, skipping %s", a.resource.Name, delta.UID)
		return nil
	}

	candidate, err := a.deps.Mapper.ToCandidate(delta, a.resource)
	if err != nil {
		return []domain.SyncOutcome{domain.FailureOutcome(domain.OperationCreate, "", delta.UID, err)}
	}

	var enabled *bool
	if a.resource.SyncStatus {
		enabled = delta.Enabled()
	}

	if dryRun {
		return []domain.SyncOutcome{domain.SuccessOutcome(domain.OperationCreate, "", candidate.DisplayLabel())}
	}

	result, err := a.deps.Workflow.Create(ctx, a.rc, *candidate, enabled)
	if err != nil {
		logger.Debug("Create %s failed: %v", candidate.Username, err)
		// No key exists yet, so the failure is filed under the username.
		a.notify(ctx, candidate.Username, nil, domain.EventCreate, false)
		return []domain.SyncOutcome{domain.FailureOutcome(domain.OperationCreate, "", candidate.DisplayLabel(), err)}
	}

	a.propagateResult(ctx, result, domain.OperationCreate)
	a.notify(ctx, result.Key, result.Events, domain.EventCreate, true)

	return []domain.SyncOutcome{domain.SuccessOutcome(domain.OperationCreate, result.Key, candidate.DisplayLabel())}
}

func (a *DeltaApplier) update(ctx context.Context, delta domain.Delta, keys []string, dryRun bool) []domain.SyncOutcome {
	if !a.resource.PerformUpdate {
		logger.Debug("Update disabled on %s, skipping %s", a.resource.Name, delta.UID)
		return nil
	}

	outcomes := make([]domain.SyncOutcome, 0, len(keys))
	for _, key := range keys {
		outcomes = append(outcomes, a.updateOne(ctx, delta, key, dryRun))
	}
	return outcomes
}

func (a *DeltaApplier) updateOne(ctx context.Context, delta domain.Delta, key string, dryRun bool) domain.SyncOutcome {
	identity, err := a.deps.Repository.FindByKey(ctx, a.rc, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.FailureOutcome(domain.OperationUpdate, key, key, domain.ErrNotFound)
		}
		return domain.FailureOutcome(domain.OperationUpdate, key, key, err)
	}
	label := identity.DisplayLabel()

	if dryRun {
		return domain.SuccessOutcome(domain.OperationUpdate, key, label)
	}

	mod, err := a.deps.Mapper.ToModification(delta, identity, a.resource)
	if err != nil {
		return domain.FailureOutcome(domain.OperationUpdate, key, label, err)
	}

	result, err := a.deps.Workflow.Update(ctx, a.rc, *mod)
	if err != nil {
		logger.Debug("Update %s failed: %v", label, err)
		a.notify(ctx, key, nil, domain.EventUpdate, false)
		return domain.FailureOutcome(domain.OperationUpdate, key, label, err)
	}
	if mod.Username != "" {
		label = mod.Username
	}

	var statusErr error
	if a.resource.SyncStatus {
		statusResult, err := a.syncStatus(ctx, delta, identity)
		if err != nil {
			logger.Debug("Status change for %s failed: %v", label, err)
			statusErr = err
		} else if statusResult != nil {
			result = mergeResults(result, statusResult)
		}
	}

	// The attribute update is committed even when the status change failed.
	a.propagateResult(ctx, result, domain.OperationUpdate)
	a.notify(ctx, key, result.Events, domain.EventUpdate, true)

	if statusErr != nil {
		return domain.FailureOutcome(domain.OperationUpdate, key, label, statusErr)
	}
	return domain.SuccessOutcome(domain.OperationUpdate, key, label)
}

// syncStatus suspends or reactivates the identity when the delta's enabled
// flag disagrees with its current status. Pending identities are left alone.
func (a *DeltaApplier) syncStatus(ctx context.Context, delta domain.Delta, identity *domain.Identity) (*domain.WorkflowResult, error) {
	enabled := delta.Enabled()
	if enabled == nil || identity.Status == domain.StatusPending {
		return nil, nil
	}
	if *enabled == identity.Status.Enabled() {
		return nil, nil
	}
	if *enabled {
		result, err := a.deps.Workflow.Reactivate(ctx, a.rc, identity.Key)
		if err != nil {
			return nil, fmt.Errorf("reactivate: %w", err)
		}
		return result, nil
	}
	result, err := a.deps.Workflow.Suspend(ctx, a.rc, identity.Key)
	if err != nil {
		return nil, fmt.Errorf("suspend: %w", err)
	}
	return result, nil
}

func (a *DeltaApplier) delete(ctx context.Context, keys []string, dryRun bool) []domain.SyncOutcome {
	if !a.resource.PerformDelete {
		logger.Debug("Delete disabled on %s, skipping %v", a.resource.Name, keys)
		return nil
	}

	outcomes := make([]domain.SyncOutcome, 0, len(keys))
	for _, key := range keys {
		identity, err := a.deps.Repository.FindByKey(ctx, a.rc, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Identity %s not found, skipping delete", key)
			} else {
				logger.Error("Could not read identity %s for delete: %v", key, err)
			}
			continue
		}
		label := identity.DisplayLabel()

		if dryRun {
			outcomes = append(outcomes, domain.SuccessOutcome(domain.OperationDelete, key, label))
			continue
		}

		// Push the delete out while the identity still exists locally.
		tasks := domain.NewPropagationTasks(a.rc.RunID, identity, domain.OperationDelete, identity.Resources, a.resource.Name)
		a.propagate(ctx, tasks)

		if err := a.deps.Workflow.Delete(ctx, a.rc, key); err != nil {
			logger.Debug("Delete %s failed: %v", label, err)
			a.notify(ctx, key, nil, domain.EventDelete, false)
			outcomes = append(outcomes, domain.FailureOutcome(domain.OperationDelete, key, label, err))
			continue
		}

		a.notify(ctx, key, nil, domain.EventDelete, true)
		outcomes = append(outcomes, domain.SuccessOutcome(domain.OperationDelete, key, label))
	}
	return outcomes
}

// propagateResult pushes a workflow result to its affected resources when
// the workflow marked it eligible.
func (a *DeltaApplier) propagateResult(ctx context.Context, result *domain.WorkflowResult, op domain.Operation) {
	if a.deps.Propagation == nil || !result.PropagationEligible || len(result.AffectedResources) == 0 {
		return
	}
	identity, err := a.deps.Repository.FindByKey(ctx, a.rc, result.Key)
	if err != nil {
		logger.Error("Could not load %s for propagation: %v", result.Key, err)
		return
	}
	tasks := domain.NewPropagationTasks(a.rc.RunID, identity, op, result.AffectedResources, a.resource.Name)
	a.propagate(ctx, tasks)
}

func (a *DeltaApplier) propagate(ctx context.Context, tasks []domain.PropagationTask) {
	if a.deps.Propagation == nil || len(tasks) == 0 {
		return
	}
	if err := a.deps.Propagation.Execute(ctx, a.rc, tasks); err != nil {
		logger.Error("Propagation from %s failed: %v", a.resource.Name, err)
	}
}

func (a *DeltaApplier) notify(ctx context.Context, key string, events []string, event string, success bool) {
	if a.deps.Notifications == nil || key == "" {
		return
	}
	all := append(append([]string(nil), events...), domain.SyncEvent(a.resource.Name, event, success))
	if err := a.deps.Notifications.CreateTasks(ctx, a.rc, key, all); err != nil {
		logger.Error("Could not create notification tasks for %s: %v", key, err)
	}
}

func mergeResults(base, extra *domain.WorkflowResult) *domain.WorkflowResult {
	return &domain.WorkflowResult{
		Key:                 base.Key,
		PropagationEligible: base.PropagationEligible || extra.PropagationEligible,
		AffectedResources:   domain.MergeResources(base.AffectedResources, extra.AffectedResources),
		Events:              append(append([]string(nil), base.Events...), extra.Events...),
	}
}
