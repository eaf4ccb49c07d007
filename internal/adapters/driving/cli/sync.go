package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/logger"
)

var (
	syncDryRun bool
	syncFull   bool
	syncWatch  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [resource]",
	Short: "Synchronise identities from resources",
	Long: `Reads account changes from a resource and applies them to local identities.
If a resource name is provided, only that resource is synchronised.
Otherwise, all resources are synchronised concurrently.

With --full every account is read instead of the change stream and the
stored sync token is left untouched. With --dry-run nothing is written.
With --watch the command keeps running and syncs whenever the resource
reports new changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <resource>",
	Short: "Run a full reconciliation of a resource",
	Long: `Reads every account of a resource and reconciles it with local identities.
Equivalent to sync --full for one resource.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncOne(cmd, args[0], domain.SyncOptions{DryRun: syncDryRun, FullReconciliation: true})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report what would change without writing")
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "reconcile every account instead of reading the change stream")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep syncing as the resource reports changes")
	reconcileCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report what would change without writing")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	opts := domain.SyncOptions{DryRun: syncDryRun, FullReconciliation: syncFull}

	if syncWatch {
		if len(args) == 0 {
			return errors.New("--watch requires a resource")
		}
		if syncFull {
			return errors.New("--watch cannot be combined with --full")
		}
		return watchOne(cmd, args[0], opts)
	}
	if len(args) > 0 {
		return syncOne(cmd, args[0], opts)
	}
	return syncAll(cmd, opts)
}

func syncOne(cmd *cobra.Command, resource string, opts domain.SyncOptions) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	cmd.Printf("Synchronising %s...\n", resource)
	result, err := s.Engine.Sync(commandContext(cmd), resource, opts)
	if err != nil {
		return fmt.Errorf("sync %s failed: %w", resource, err)
	}
	printResult(cmd, result)
	return nil
}

func syncAll(cmd *cobra.Command, opts domain.SyncOptions) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	cmd.Println("Synchronising all resources...")
	results, err := s.Engine.SyncAll(commandContext(cmd), opts)
	for _, r := range results {
		printResult(cmd, r)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	cmd.Printf("%d resources synchronised.\n", len(results))
	return nil
}

func watchOne(cmd *cobra.Command, resource string, opts domain.SyncOptions) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.SetTimestamps(true)
	defer logger.SetTimestamps(false)

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)...\n", resource)
	err = s.Engine.Watch(ctx, resource, opts, func(r *domain.SyncRunResult) {
		printResult(cmd, r)
	})
	if err != nil {
		return fmt.Errorf("watch %s failed: %w", resource, err)
	}
	return nil
}

func printResult(cmd *cobra.Command, r *domain.SyncRunResult) {
	cmd.Printf("\n== %s (%d deltas, %s) ==\n", r.Resource, r.DeltasProcessed, r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Report != "" {
		cmd.Println(r.Report)
	}
	if r.Token != nil {
		cmd.Printf("Token: %s\n", r.Token)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
