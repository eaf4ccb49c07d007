package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/core/ports/driving"
	"github.com/custodia-labs/idsync/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler runs per-resource sync and reconcile tasks and history pruning.
// Task state lives in the scheduler store so intervals survive restarts.
type Scheduler struct {
	config     domain.SchedulerConfig
	store      driven.SchedulerStore
	engine     driving.SyncEngine
	resources  driven.ResourceStore
	executions driven.ExecutionStore

	tick time.Duration
	now  func() time.Time

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. executions may be nil, in which case
// run history is never pruned.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	engine driving.SyncEngine,
	resources driven.ResourceStore,
	executions driven.ExecutionStore,
) *Scheduler {
	return &Scheduler{
		config:     config,
		store:      store,
		engine:     engine,
		resources:  resources,
		executions: executions,
		tick:       time.Minute,
		now:        time.Now,
		inflight:   make(map[string]struct{}),
	}
}

// Start registers tasks and blocks running due tasks until ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.registerTasks(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("register tasks: %w", err)
	}

	s.runDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// Stop ends the loop and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Tasks returns the persisted tasks.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

// History returns recent results of a task.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if _, _, err := domain.ParseTaskID(taskID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.store.GetTaskHistory(ctx, taskID, limit)
}

// desiredTasks computes the task set from configuration and resources.
func (s *Scheduler) desiredTasks(ctx context.Context) (map[string]time.Duration, error) {
	want := make(map[string]time.Duration)
	if !s.config.Enabled {
		return want, nil
	}

	resources, err := s.resources.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range resources {
		if d := s.config.SyncIntervalFor(r.Name); d > 0 {
			want[domain.TaskID(domain.TaskSync, r.Name)] = d
		}
		if d := s.config.ReconcileInterval; d > 0 {
			want[domain.TaskID(domain.TaskReconcile, r.Name)] = d
		}
	}
	if s.config.PruneInterval > 0 && s.config.HistoryKeep > 0 {
		want[domain.PruneTaskID] = s.config.PruneInterval
	}
	return want, nil
}

// registerTasks creates missing tasks, applies interval changes and removes
// tasks of resources that are no longer configured.
func (s *Scheduler) registerTasks(ctx context.Context) error {
	want, err := s.desiredTasks(ctx)
	if err != nil {
		return err
	}

	existing, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	for _, t := range existing {
		if _, ok := want[t.ID]; ok {
			continue
		}
		logger.Debug("scheduler: removing task %s", t.ID)
		if err := s.store.DeleteTask(ctx, t.ID); err != nil {
			return err
		}
	}

	now := s.now()
	for id, interval := range want {
		task, err := s.store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if task == nil {
			kind, resource, err := domain.ParseTaskID(id)
			if err != nil {
				return err
			}
			task = &domain.ScheduledTask{ID: id, Kind: kind, Resource: resource, NextRun: now}
		} else if task.Interval == interval && task.Enabled {
			continue
		} else if task.Interval != interval {
			task.NextRun = now.Add(interval)
		}
		task.Interval = interval
		task.Enabled = true
		if err := s.store.SaveTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// runDue starts every due task that is not already running.
func (s *Scheduler) runDue(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Due(now) || !s.claim(task.ID) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(task.ID)
			s.runTask(ctx, &task)
		}()
	}
}

func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// runTask executes one task and persists its result and next run.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	result := &domain.TaskResult{TaskID: task.ID, StartedAt: s.now()}

	var err error
	switch task.Kind {
	case domain.TaskSync:
		err = s.runSync(ctx, task.Resource, domain.SyncOptions{}, result)
	case domain.TaskReconcile:
		err = s.runSync(ctx, task.Resource, domain.SyncOptions{FullReconciliation: true}, result)
	case domain.TaskPrune:
		err = s.runPrune(ctx)
	default:
		err = fmt.Errorf("%w: task kind %q", domain.ErrUnsupportedType, task.Kind)
	}

	if errors.Is(err, domain.ErrSyncInProgress) {
		logger.Debug("scheduler: %s skipped, sync already running", task.ID)
		return
	}

	result.EndedAt = s.now()
	if err != nil {
		logger.Warn("scheduler: %s failed: %v", task.ID, err)
		result.Error = err.Error()
		task.LastError = err.Error()
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	}
	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)

	// Persist even when ctx was cancelled mid-run.
	saveCtx := context.WithoutCancel(ctx)
	if err := s.store.SaveTask(saveCtx, task); err != nil {
		logger.Error("scheduler: save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(saveCtx, result); err != nil {
		logger.Error("scheduler: record result for %s: %v", task.ID, err)
	}
}

func (s *Scheduler) runSync(ctx context.Context, resource string, opts domain.SyncOptions, result *domain.TaskResult) error {
	if s.engine == nil {
		return nil
	}
	res, err := s.engine.Sync(ctx, resource, opts)
	if res != nil {
		result.DeltasProcessed = res.DeltasProcessed
		result.Failures = res.Failures()
		if res.Report != "" {
			logger.Info("%s:\n%s", resource, res.Report)
		}
	}
	return err
}

// runPrune trims run history and task results to HistoryKeep entries.
func (s *Scheduler) runPrune(ctx context.Context) error {
	keep := s.config.HistoryKeep
	if s.executions != nil {
		if err := s.executions.Prune(ctx, keep); err != nil {
			return fmt.Errorf("prune executions: %w", err)
		}
	}
	if err := s.store.PruneHistory(ctx, keep); err != nil {
		return fmt.Errorf("prune task history: %w", err)
	}
	return nil
}
