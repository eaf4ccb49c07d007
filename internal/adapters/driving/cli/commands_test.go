package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

func TestStatusCmd(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	require.NoError(t, env.tokens.Save(ctx, domain.SyncState{Resource: "hr", Token: domain.NumberToken(12), LastSync: testTime}))
	require.NoError(t, env.executions.Save(ctx, domain.Execution{
		ID: "run-1", Resource: "hr", StartedAt: testTime, EndedAt: testTime.Add(time.Second), Status: domain.ExecutionSuccess,
	}))

	out, err := execute(t, "status")
	require.NoError(t, err)

	assert.Contains(t, out, "RESOURCE")
	assert.Contains(t, out, "number:12")
	assert.Contains(t, out, "SUCCESS")
	assert.Regexp(t, `ldap\s+csvfile\s+-\s+never\s+-`, out)
}

func TestStatusCmd_NoResources(t *testing.T) {
	setupTestServices(t)
	services.Resources = emptyResources{}

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No resources configured.")
}

type emptyResources struct{}

func (emptyResources) Get(context.Context, string) (*domain.Resource, error) {
	return nil, domain.ErrNotFound
}

func (emptyResources) List(context.Context) ([]domain.Resource, error) { return nil, nil }

func TestHistoryCmd(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	for i, res := range []string{"hr", "ldap", "hr"} {
		require.NoError(t, env.executions.Save(ctx, domain.Execution{
			ID:                 res + string(rune('a'+i)),
			Resource:           res,
			StartedAt:          testTime.Add(time.Duration(i) * time.Minute),
			EndedAt:            testTime.Add(time.Duration(i)*time.Minute + time.Second),
			Status:             domain.ExecutionSuccess,
			FullReconciliation: i == 2,
			DryRun:             i == 2,
			DeltasProcessed:    i + 1,
			Message:            "report " + res,
		}))
	}

	t.Run("table for one resource", func(t *testing.T) {
		out, err := execute(t, "history", "hr")
		require.NoError(t, err)
		assert.Contains(t, out, "full (dry run)")
		assert.Contains(t, out, "incremental")
		assert.NotContains(t, out, "ldap")
	})

	t.Run("limit", func(t *testing.T) {
		out, err := execute(t, "history", "-n", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "full (dry run)")
		assert.NotContains(t, out, "ldap")
	})

	t.Run("reports", func(t *testing.T) {
		out, err := execute(t, "history", "ldap", "--reports")
		require.NoError(t, err)
		assert.Contains(t, out, "report ldap")
	})

	t.Run("empty", func(t *testing.T) {
		out, err := execute(t, "history", "crm")
		require.NoError(t, err)
		assert.Contains(t, out, "No runs recorded.")
	})
}

func TestTokenCmd(t *testing.T) {
	env := setupTestServices(t)
	ctx := context.Background()
	require.NoError(t, env.tokens.Save(ctx, domain.SyncState{Resource: "hr", Token: domain.NumberToken(5), LastSync: testTime}))

	t.Run("show", func(t *testing.T) {
		out, err := execute(t, "token", "show", "hr")
		require.NoError(t, err)
		assert.Contains(t, out, "Token:     number:5")
		encoded, err := domain.NumberToken(5).Encode()
		require.NoError(t, err)
		assert.Contains(t, out, encoded)
	})

	t.Run("show missing", func(t *testing.T) {
		out, err := execute(t, "token", "show", "ldap")
		require.NoError(t, err)
		assert.Contains(t, out, "No sync token stored for ldap.")
	})

	t.Run("reset", func(t *testing.T) {
		out, err := execute(t, "token", "reset", "hr")
		require.NoError(t, err)
		assert.Contains(t, out, "Sync token for hr reset.")

		_, err = env.tokens.Get(ctx, "hr")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("reset unknown resource", func(t *testing.T) {
		_, err := execute(t, "token", "reset", "crm")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestScheduleCmd(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		setupTestServices(t)
		_, err := execute(t, "schedule")
		assert.EqualError(t, err, "scheduler is disabled")
	})

	t.Run("start error", func(t *testing.T) {
		setupTestServices(t)
		services.Scheduler = &mockScheduler{startErr: errors.New("store unavailable")}
		_, err := execute(t, "schedule")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store unavailable")
	})

	t.Run("stops on cancel", func(t *testing.T) {
		setupTestServices(t)
		sched := &mockScheduler{started: make(chan struct{})}
		services.Scheduler = sched

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-sched.started
			cancel()
		}()

		// Left behind by an earlier run of the subcommand.
		scheduleCmd.SetContext(context.Background())

		done := make(chan error, 1)
		go func() {
			_, err := executeContext(t, ctx, "schedule")
			done <- err
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("schedule did not stop after cancel")
		}
	})
}

func TestScheduleTasksCmd(t *testing.T) {
	setupTestServices(t)
	services.Scheduler = &mockScheduler{tasks: []domain.ScheduledTask{
		{ID: "prune", Kind: domain.TaskPrune, Interval: 24 * time.Hour},
		{ID: "sync:hr", Kind: domain.TaskSync, Resource: "hr", Interval: 15 * time.Minute, LastRun: testTime, LastError: "connector unavailable"},
	}}

	out, err := execute(t, "schedule", "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "TASK")
	assert.Contains(t, out, "sync:hr")
	assert.Contains(t, out, "15m0s")
	assert.Contains(t, out, "connector unavailable")
	assert.Contains(t, out, "never")
}

func TestScheduleTasksCmd_Empty(t *testing.T) {
	setupTestServices(t)
	services.Scheduler = &mockScheduler{}

	out, err := execute(t, "schedule", "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "No scheduled tasks")
}

func TestScheduleHistoryCmd(t *testing.T) {
	setupTestServices(t)
	services.Scheduler = &mockScheduler{history: map[string][]domain.TaskResult{
		"sync:hr": {
			{TaskID: "sync:hr", StartedAt: testTime, EndedAt: testTime.Add(2 * time.Second), Success: true, DeltasProcessed: 4},
			{TaskID: "sync:hr", StartedAt: testTime.Add(-time.Hour), EndedAt: testTime.Add(-time.Hour), Error: "timeout", Failures: 1},
		},
	}}

	out, err := execute(t, "schedule", "history", "sync:hr", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "2s")
	assert.Contains(t, out, "error: timeout")

	out, err = execute(t, "schedule", "history", "sync:ldap")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded for sync:ldap")

	_, err = execute(t, "schedule", "history", "backup:hr")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestInitCmd(t *testing.T) {
	oldInit := initConfig
	defer func() { initConfig = oldInit }()

	var gotPath string
	var gotForce bool
	SetInitConfig(func(path string, force bool) (string, error) {
		gotPath, gotForce = path, force
		return "/tmp/idsync.toml", nil
	})

	out, err := execute(t, "init", "--config", "/tmp/idsync.toml", "--force")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/idsync.toml", gotPath)
	assert.True(t, gotForce)
	assert.Contains(t, out, "Config written to /tmp/idsync.toml")
}

func TestInitCmd_NotConfigured(t *testing.T) {
	oldInit := initConfig
	initConfig = nil
	defer func() { initConfig = oldInit }()

	_, err := execute(t, "init")
	assert.EqualError(t, err, "init not configured")
}
