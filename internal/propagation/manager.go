// Package propagation pushes confirmed identity changes to external resources.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/logger"
)

// Ensure Manager implements the interface.
var _ driven.PropagationManager = (*Manager)(nil)

// Manager resolves each task's resource to a target, throttles pushes and
// records every attempt.
type Manager struct {
	resources driven.ResourceStore
	registry  *Registry
	store     driven.PropagationTaskStore
	limiter   *rate.Limiter

	mu      sync.Mutex
	targets map[string]driven.PropagationTarget
}

// Option configures the manager.
type Option func(*Manager)

// WithTaskStore records every task attempt in store.
func WithTaskStore(store driven.PropagationTaskStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithRateLimit allows at most perSecond pushes per second with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(m *Manager) {
		if perSecond <= 0 {
			m.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewManager creates a propagation manager.
func NewManager(resources driven.ResourceStore, registry *Registry, opts ...Option) *Manager {
	m := &Manager{
		resources: resources,
		registry:  registry,
		targets:   make(map[string]driven.PropagationTarget),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute pushes every task in order. A failing task does not stop the
// rest; the errors of all failed tasks are joined.
func (m *Manager) Execute(ctx context.Context, rc domain.RunContext, tasks []domain.PropagationTask) error {
	if !rc.HasAuthority(domain.AuthorityPropagate) {
		return fmt.Errorf("%w: %s lacks %s", domain.ErrUnauthorized, rc.Principal, domain.AuthorityPropagate)
	}

	var errs []error
	for _, task := range tasks {
		err := m.push(ctx, task)
		m.record(ctx, task, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) push(ctx context.Context, task domain.PropagationTask) error {
	target, err := m.target(ctx, task.Resource)
	if err != nil {
		return err
	}
	if target == nil {
		logger.Debug("Resource %s has no propagation target, skipping %s", task.Resource, task)
		return nil
	}
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	return target.Push(ctx, task)
}

// target returns the cached target for a resource, building it on first use.
// A resource without a configured target yields nil.
func (m *Manager) target(ctx context.Context, name string) (driven.PropagationTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.targets[name]; ok {
		return t, nil
	}
	resource, err := m.resources.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if resource.PropagationTarget == "" {
		m.targets[name] = nil
		return nil, nil
	}
	t, err := m.registry.Build(*resource)
	if err != nil {
		return nil, fmt.Errorf("build target: %w", err)
	}
	m.targets[name] = t
	return t, nil
}

func (m *Manager) record(ctx context.Context, task domain.PropagationTask, pushErr error) {
	if m.store == nil {
		return
	}
	task.CreatedAt = time.Now()
	task.Status = domain.PropagationSuccess
	if pushErr != nil {
		task.Status = domain.PropagationFailure
		task.Error = pushErr.Error()
	}
	if err := m.store.Record(ctx, task); err != nil {
		logger.Warn("Could not record propagation task %s: %v", task, err)
	}
}

// Close releases every built target.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for name, t := range m.targets {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	m.targets = make(map[string]driven.PropagationTarget)
	return errors.Join(errs...)
}
