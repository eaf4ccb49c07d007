package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/idsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/idsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/idsync/internal/adapters/driven/workflow"
	"github.com/custodia-labs/idsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/idsync/internal/connectors"
	"github.com/custodia-labs/idsync/internal/core/services"
	"github.com/custodia-labs/idsync/internal/logger"
	"github.com/custodia-labs/idsync/internal/propagation"
)

// resolveConfigPath returns path, or the default config file when empty.
func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := file.DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, file.ConfigFileName), nil
}

// bootstrap wires storage, connectors, propagation and the engine from
// the config file.
func bootstrap(configPath string) (*cli.Services, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := file.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded config %s (%d resources)", path, len(cfg.Resources))

	derived, err := cfg.DerivedSchemas()
	if err != nil {
		return nil, err
	}
	resources, err := file.NewResourceStore(cfg)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(cfg.DataDir, sqlite.WithDerivedSchemas(derived))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	repo := store.IdentityRepository()
	wf, err := workflow.New(cfg.Workflow.Kind, repo)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := propagation.NewRegistry()
	propagation.RegisterDefaults(registry)
	manager := propagation.NewManager(resources, registry,
		propagation.WithTaskStore(store.PropagationTaskStore()),
		propagation.WithRateLimit(cfg.Propagation.Rate, cfg.Propagation.Burst),
	)

	engine := services.NewSyncEngine(services.EngineDeps{
		Resources:     resources,
		Tokens:        store.SyncTokenStore(),
		Factory:       connectors.NewDefaultFactory(),
		Repository:    repo,
		Workflow:      wf,
		Propagation:   manager,
		Notifications: store.NotificationSink(),
		Executions:    store.ExecutionStore(),
		Concurrency:   cfg.Concurrency,
	})

	svc := &cli.Services{
		Engine:     engine,
		Resources:  resources,
		Tokens:     store.SyncTokenStore(),
		Executions: store.ExecutionStore(),
		Close: func() error {
			return errors.Join(manager.Close(), store.Close())
		},
	}

	schedCfg, err := cfg.DomainSchedulerConfig()
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	if schedCfg.Enabled {
		svc.Scheduler = services.NewScheduler(schedCfg, store.SchedulerStore(), engine, resources, store.ExecutionStore())
	}
	return svc, nil
}

// writeDefaultConfig writes a starter config file with one example resource.
func writeDefaultConfig(configPath string, force bool) (string, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return "", err
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	cfg := file.DefaultConfig()
	cfg.Resources = []file.ResourceConfig{{
		Name:      "hr",
		Connector: "csvfile",
		ConnectorConfig: map[string]string{
			"accounts":  filepath.Join(filepath.Dir(path), "hr", "accounts.csv"),
			"changelog": filepath.Join(filepath.Dir(path), "hr", "changes.jsonl"),
		},
		AccountID:  &file.AccountIDConfig{Kind: "username"},
		SyncPolicy: &file.SyncPolicyConfig{ConflictResolution: "IGNORE"},
		TraceLevel: "ALL",
	}}
	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}
