package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/idsync/internal/core/domain"
)

// mockEngine implements driving.SyncEngine for testing.
type mockEngine struct {
	mu       sync.Mutex
	calls    []string
	opts     []domain.SyncOptions
	result   *domain.SyncRunResult
	results  []*domain.SyncRunResult
	err      error
	watchErr error
	watched  int
}

func (m *mockEngine) record(name string, opts domain.SyncOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	m.opts = append(m.opts, opts)
}

func (m *mockEngine) Sync(_ context.Context, name string, opts domain.SyncOptions) (*domain.SyncRunResult, error) {
	m.record(name, opts)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.SyncRunResult{Resource: name, DryRun: opts.DryRun}, nil
}

func (m *mockEngine) SyncAll(_ context.Context, opts domain.SyncOptions) ([]*domain.SyncRunResult, error) {
	m.record("*", opts)
	return m.results, m.err
}

func (m *mockEngine) Watch(ctx context.Context, name string, opts domain.SyncOptions, onResult func(*domain.SyncRunResult)) error {
	m.record(name, opts)
	if m.watchErr != nil {
		return m.watchErr
	}
	for _, r := range m.results {
		m.watched++
		onResult(r)
	}
	return nil
}

func (m *mockEngine) Status(_ context.Context, name string) (*domain.SyncStatus, error) {
	return &domain.SyncStatus{Resource: name}, nil
}

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	startErr error
	started  chan struct{}
	stopped  bool
	tasks    []domain.ScheduledTask
	history  map[string][]domain.TaskResult
}

func (m *mockScheduler) Start(ctx context.Context) error {
	if m.started != nil {
		close(m.started)
	}
	if m.startErr != nil {
		return m.startErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockScheduler) Tasks(context.Context) ([]domain.ScheduledTask, error) {
	return m.tasks, nil
}

func (m *mockScheduler) History(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if _, _, err := domain.ParseTaskID(taskID); err != nil {
		return nil, err
	}
	out := m.history[taskID]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type testEnv struct {
	engine     *mockEngine
	resources  *memory.ResourceStore
	tokens     *memory.SyncTokenStore
	executions *memory.ExecutionStore
}

// setupTestServices installs test services and resets command flags.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		engine: &mockEngine{},
		resources: memory.NewResourceStore(
			domain.Resource{Name: "hr", ConnectorType: "csvfile"},
			domain.Resource{Name: "ldap", ConnectorType: "csvfile"},
		),
		tokens:     memory.NewSyncTokenStore(),
		executions: memory.NewExecutionStore(),
	}

	old := services
	services = &Services{
		Engine:     env.engine,
		Resources:  env.resources,
		Tokens:     env.tokens,
		Executions: env.executions,
	}
	t.Cleanup(func() { services = old })
	resetFlags()
	return env
}

func resetFlags() {
	syncDryRun, syncFull, syncWatch = false, false, false
	historyLimit, historyReports = 20, false
	initForce = false
	scheduleHistoryLimit = 10
	configPath = ""
	verbose = false
	logLevel = ""
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

// executeContext runs the root command under ctx. Cobra keeps the context a
// subcommand last ran with, so every command is cleared first to inherit ctx.
func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	resetContexts(rootCmd)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetContexts(rootCmd)
		resetFlags()
	})
	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

func resetContexts(cmd *cobra.Command) {
	cmd.SetContext(nil) //nolint:staticcheck // nil restores inheritance from the parent
	for _, sub := range cmd.Commands() {
		resetContexts(sub)
	}
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
