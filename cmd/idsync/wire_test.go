package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/idsync/internal/connectors/csvfile"
	"github.com/custodia-labs/idsync/internal/core/domain"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), file.ConfigFileName)

	got, err := writeDefaultConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := file.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Resources, 1)
	assert.Equal(t, "csvfile", cfg.Resources[0].Connector)

	_, err = writeDefaultConfig(path, false)
	assert.ErrorContains(t, err, "already exists")

	_, err = writeDefaultConfig(path, true)
	assert.NoError(t, err)
}

func TestBootstrap_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	changelog := filepath.Join(dir, "changes.jsonl")
	outbox := filepath.Join(dir, "out", "crm.jsonl")

	config := `
[propagation]
rate = 0

[scheduler]
enabled = false

[[resources]]
name = "hr"
connector = "csvfile"
default_resources = ["crm"]
[resources.connector_config]
changelog = "` + filepath.ToSlash(changelog) + `"
[resources.account_id]
kind = "username"

[[resources]]
name = "crm"
connector = "csvfile"
propagation_target = "jsonl"
[resources.connector_config]
changelog = "` + filepath.ToSlash(filepath.Join(dir, "crm.jsonl")) + `"
[resources.propagation_config]
path = "` + filepath.ToSlash(outbox) + `"
`
	configPath := filepath.Join(dir, file.ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0600))
	require.NoError(t, csvfile.AppendEntries(changelog,
		csvfile.Entry{Seq: 1, Type: domain.DeltaCreateOrUpdate, UID: "alice"},
		csvfile.Entry{Seq: 2, Type: domain.DeltaCreateOrUpdate, UID: "bob"},
	))

	svc, err := bootstrap(configPath)
	require.NoError(t, err)
	defer svc.Close()
	assert.Nil(t, svc.Scheduler)

	ctx := context.Background()
	result, err := svc.Engine.Sync(ctx, "hr", domain.SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.DeltasProcessed)
	assert.Equal(t, 2, result.Count(domain.OperationCreate, domain.OutcomeSuccess))
	assert.True(t, domain.NumberToken(2).Equal(result.Token))

	state, err := svc.Tokens.Get(ctx, "hr")
	require.NoError(t, err)
	assert.True(t, domain.NumberToken(2).Equal(state.Token))

	execs, err := svc.Executions.List(ctx, "hr", 0)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExecutionSuccess, execs[0].Status)

	data, err := os.ReadFile(outbox)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"username":"alice"`)

	// Nothing new in the change log.
	result, err = svc.Engine.Sync(ctx, "hr", domain.SyncOptions{})
	require.NoError(t, err)
	assert.Zero(t, result.DeltasProcessed)
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), file.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("[workflow]\nkind = \"manual\"\n"), 0600))

	_, err := bootstrap(path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBootstrap_Scheduler(t *testing.T) {
	dir := t.TempDir()
	changelog := filepath.Join(dir, "changes.jsonl")
	config := `
[scheduler]
enabled = true
sync_interval = "1h"
history_keep = 5

[[resources]]
name = "hr"
connector = "csvfile"
[resources.connector_config]
changelog = "` + filepath.ToSlash(changelog) + `"
[resources.account_id]
kind = "username"
`
	configPath := filepath.Join(dir, file.ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0600))
	require.NoError(t, csvfile.AppendEntries(changelog,
		csvfile.Entry{Seq: 1, Type: domain.DeltaCreateOrUpdate, UID: "carol"},
	))

	svc, err := bootstrap(configPath)
	require.NoError(t, err)
	defer svc.Close()
	require.NotNil(t, svc.Scheduler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Scheduler.Start(ctx) }()

	require.Eventually(t, func() bool {
		history, err := svc.Scheduler.History(ctx, "sync:hr", 1)
		return err == nil && len(history) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done

	tasks, err := svc.Scheduler.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "prune", tasks[0].ID)
	assert.Equal(t, "sync:hr", tasks[1].ID)
	assert.Equal(t, time.Hour, tasks[1].Interval)

	history, err := svc.Scheduler.History(context.Background(), "sync:hr", 1)
	require.NoError(t, err)
	assert.True(t, history[0].Success)
	assert.Equal(t, 1, history[0].DeltasProcessed)
}
