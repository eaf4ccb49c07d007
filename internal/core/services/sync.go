package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/core/ports/driving"
	"github.com/custodia-labs/idsync/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// DefaultSyncConcurrency bounds how many resources SyncAll runs at once.
const DefaultSyncConcurrency = 4

// EngineDeps holds the collaborators of a SyncEngine.
// Propagation, Notifications, Executions and Mapper may be nil.
type EngineDeps struct {
	Resources     driven.ResourceStore
	Tokens        driven.SyncTokenStore
	Factory       driven.ConnectorFactory
	Repository    driven.IdentityRepository
	Workflow      driven.WorkflowAdapter
	Propagation   driven.PropagationManager
	Notifications driven.NotificationSink
	Executions    driven.ExecutionStore
	Mapper        driven.AttributeMapper

	// Concurrency bounds SyncAll. Zero uses DefaultSyncConcurrency.
	Concurrency int
}

// SyncEngine reconciles external resources with local identities.
type SyncEngine struct {
	deps     EngineDeps
	resolver *AccountIDResolver

	// Status tracking
	mu       sync.RWMutex
	statuses map[string]*domain.SyncStatus
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(deps EngineDeps) *SyncEngine {
	if deps.Mapper == nil {
		deps.Mapper = NewDefaultAttributeMapper()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultSyncConcurrency
	}
	return &SyncEngine{
		deps:     deps,
		resolver: NewAccountIDResolver(deps.Repository),
		statuses: make(map[string]*domain.SyncStatus),
	}
}

// Sync runs one sync of a resource: INIT, STREAMING, FINALIZING, DONE.
// Connector failures, a missing account-id mapping, token persistence
// failures and cancellation are returned as errors and leave the stored
// token untouched. Everything else is reported in the result.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (e *SyncEngine) Sync(ctx context.Context, name string, opts domain.SyncOptions) (*domain.SyncRunResult, error) {
	// INIT
	resource, err := e.deps.Resources.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if resource.AccountID == nil {
		return nil, fmt.Errorf("resource %q: %w", name, domain.ErrMissingAccountIDMapping)
	}
	if err := resource.AccountID.Validate(); err != nil {
		return nil, fmt.Errorf("resource %q: %w", name, err)
	}
	if e.deps.Factory == nil {
		return nil, fmt.Errorf("create connector: connector factory not configured")
	}

	if err := e.begin(name); err != nil {
		return nil, err
	}

	result := &domain.SyncRunResult{
		Resource:           name,
		RunID:              uuid.NewString(),
		DryRun:             opts.DryRun,
		FullReconciliation: opts.FullReconciliation,
		TraceLevel:         resource.TraceLevel,
		StartedAt:          time.Now(),
	}
	if result.TraceLevel == "" {
		result.TraceLevel = domain.TraceAll
	}

	err = e.run(ctx, resource, opts, result)
	result.EndedAt = time.Now()
	e.finish(name, result, err)
	e.recordExecution(ctx, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *SyncEngine) run(
	ctx context.Context,
	resource *domain.Resource,
	opts domain.SyncOptions,
	result *domain.SyncRunResult,
) error {
	connector, err := e.deps.Factory.Create(ctx, *resource)
	if err != nil {
		return fmt.Errorf("create connector: %w", err)
	}
	defer connector.Close()

	caps := connector.Capabilities()
	if caps.SupportsValidation {
		if err := connector.Validate(ctx); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrConnectorUnavailable, err)
		}
	}

	var token *domain.SyncToken
	if !opts.FullReconciliation {
		state, err := e.deps.Tokens.Get(ctx, resource.Name)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get sync token: %w", err)
		}
		if state != nil {
			token = state.Token
		}
	}

	rc := domain.SystemRunContext(result.RunID)
	applier := NewDeltaApplier(resource, rc, ApplierDeps{
		Repository:    e.deps.Repository,
		Workflow:      e.deps.Workflow,
		Propagation:   e.deps.Propagation,
		Notifications: e.deps.Notifications,
		Mapper:        e.deps.Mapper,
	})

	// STREAMING
	logger.Section("Sync " + resource.Name)
	logger.Info("Starting sync for %s (dry run: %t, full: %t, token: %s)",
		resource.Name, opts.DryRun, opts.FullReconciliation, token)

	handler := func(delta domain.Delta) bool {
		if ctx.Err() != nil {
			return false
		}
		result.DeltasProcessed++
		e.progress(resource.Name, result.DeltasProcessed)
		result.Outcomes = append(result.Outcomes, e.handleDelta(ctx, rc, resource, applier, delta, opts.DryRun)...)
		return true
	}

	if opts.FullReconciliation {
		if !caps.SupportsFullReconciliation {
			return fmt.Errorf("%w: %s connector cannot enumerate objects", domain.ErrUnsupportedType, connector.Type())
		}
		err = connector.GetAllObjects(ctx, resource.ObjectClass, handler)
	} else {
		if !caps.SupportsIncremental {
			return fmt.Errorf("%w: %s connector has no change stream", domain.ErrUnsupportedType, connector.Type())
		}
		err = connector.Sync(ctx, resource.ObjectClass, token, handler)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("sync %s cancelled: %w", resource.Name, ctxErr)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectorUnavailable, err)
	}

	// FINALIZING
	if !opts.DryRun && !opts.FullReconciliation {
		latest, err := connector.LatestSyncToken(ctx, resource.ObjectClass)
		if err != nil {
			return fmt.Errorf("%w: latest sync token: %w", domain.ErrConnectorUnavailable, err)
		}
		state := domain.SyncState{Resource: resource.Name, Token: latest, LastSync: time.Now()}
		if err := e.deps.Tokens.Save(ctx, state); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTokenPersistence, err)
		}
		result.Token = latest
	}

	// DONE
	result.Report = BuildReport(result.Outcomes, result.TraceLevel, opts.DryRun)
	logger.Info("Sync complete: %d deltas, %d outcomes, %d failures",
		result.DeltasProcessed, len(result.Outcomes), result.Failures())
	return nil
}

// handleDelta resolves, selects and applies one delta. It never fails the
// run: resolution problems and ambiguous matches are logged and the delta
// is skipped.
func (e *SyncEngine) handleDelta(
	ctx context.Context,
	rc domain.RunContext,
	resource *domain.Resource,
	applier *DeltaApplier,
	delta domain.Delta,
	dryRun bool,
) []domain.SyncOutcome {
	if !delta.Type.IsValid() {
		logger.Error("Skipping %s: unknown delta type %q", delta.UID, delta.Type)
		return nil
	}

	keys, err := e.resolver.Resolve(ctx, rc, delta, resource)
	if err != nil {
		logger.Error("Could not match %s on %s: %v", delta.MatchUID(), resource.Name, err)
		return nil
	}
	logger.Debug("%s %s matched %d identities", delta.Type, delta.MatchUID(), len(keys))

	var op domain.Operation
	switch {
	case delta.Type == domain.DeltaDelete:
		if len(keys) == 0 {
			logger.Debug("No match for deleted %s, nothing to do", delta.MatchUID())
			return nil
		}
		op = domain.OperationDelete
	case len(keys) == 0:
		op = domain.OperationCreate
	default:
		op = domain.OperationUpdate
	}

	selected, err := SelectMatches(keys, resource.ConflictPolicy(), op)
	if err != nil {
		logger.Error("Skipping %s on %s: %v", delta.MatchUID(), resource.Name, err)
		return nil
	}
	return applier.Apply(ctx, delta, selected, op, dryRun)
}

// SyncAll syncs every resource concurrently, bounded by the configured
// concurrency. One resource failing does not stop the others.
func (e *SyncEngine) SyncAll(ctx context.Context, opts domain.SyncOptions) ([]*domain.SyncRunResult, error) {
	resources, err := e.deps.Resources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	results := make([]*domain.SyncRunResult, len(resources))
	errs := make([]error, len(resources))

	var g errgroup.Group
	g.SetLimit(e.deps.Concurrency)
	for i := range resources {
		i := i
		name := resources[i].Name
		g.Go(func() error {
			res, err := e.Sync(ctx, name, opts)
			if err != nil {
				errs[i] = fmt.Errorf("sync %s: %w", name, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	done := make([]*domain.SyncRunResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			done = append(done, r)
		}
	}
	return done, errors.Join(errs...)
}

// Watch runs an incremental sync every time the resource's connector
// signals new changes, until ctx is cancelled. Each result is passed to
// onResult. Fatal run errors are logged and watching continues.
func (e *SyncEngine) Watch(
	ctx context.Context,
	name string,
	opts domain.SyncOptions,
	onResult func(*domain.SyncRunResult),
) error {
	resource, err := e.deps.Resources.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("get resource: %w", err)
	}
	connector, err := e.deps.Factory.Create(ctx, *resource)
	if err != nil {
		return fmt.Errorf("create connector: %w", err)
	}
	defer connector.Close()

	if !connector.Capabilities().SupportsWatch {
		return fmt.Errorf("%w: %s connector cannot watch", domain.ErrUnsupportedType, connector.Type())
	}
	signals, err := connector.Watch(ctx)
	if err != nil {
		return fmt.Errorf("%w: watch: %w", domain.ErrConnectorUnavailable, err)
	}

	opts.FullReconciliation = false
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			res, err := e.Sync(ctx, name, opts)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("Watch sync of %s failed: %v", name, err)
				continue
			}
			if onResult != nil {
				onResult(res)
			}
		}
	}
}

// Status returns sync status for a resource.
func (e *SyncEngine) Status(_ context.Context, name string) (*domain.SyncStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if status, ok := e.statuses[name]; ok {
		// Return a copy to avoid race conditions
		cp := *status
		return &cp, nil
	}

	return &domain.SyncStatus{Resource: name}, nil
}

func (e *SyncEngine) begin(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if status, ok := e.statuses[name]; ok && status.Running {
		return fmt.Errorf("resource %q: %w", name, domain.ErrSyncInProgress)
	}
	e.statuses[name] = &domain.SyncStatus{Resource: name, Running: true}
	return nil
}

func (e *SyncEngine) progress(name string, processed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if status, ok := e.statuses[name]; ok {
		status.DeltasProcessed = processed
	}
}

func (e *SyncEngine) finish(name string, result *domain.SyncRunResult, runErr error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	status := &domain.SyncStatus{
		Resource:        name,
		LastRun:         result.EndedAt,
		DeltasProcessed: result.DeltasProcessed,
	}
	if runErr != nil {
		status.LastError = runErr.Error()
	}
	e.statuses[name] = status
}

func (e *SyncEngine) recordExecution(ctx context.Context, result *domain.SyncRunResult, runErr error) {
	if e.deps.Executions == nil {
		return
	}
	exec := domain.Execution{
		ID:                 result.RunID,
		Resource:           result.Resource,
		StartedAt:          result.StartedAt,
		EndedAt:            result.EndedAt,
		Status:             domain.ExecutionSuccess,
		DryRun:             result.DryRun,
		FullReconciliation: result.FullReconciliation,
		DeltasProcessed:    result.DeltasProcessed,
		Outcomes:           len(result.Outcomes),
		Failures:           result.Failures(),
		Message:            result.Report,
	}
	if runErr != nil {
		exec.Status = domain.ExecutionFailure
		exec.Message = runErr.Error()
	}
	// Record even when the run was cancelled.
	if err := e.deps.Executions.Save(context.WithoutCancel(ctx), exec); err != nil {
		logger.Error("Could not record execution of %s: %v", result.Resource, err)
	}
}
