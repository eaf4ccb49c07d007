package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idsync/internal/logger"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scheduled syncs in the foreground",
	Long: `Runs the scheduler until interrupted. Each resource gets an incremental
sync task and, when reconcile_interval is set, a full reconciliation task.
Run history is pruned on the prune interval.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var scheduleTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List scheduled tasks and their state",
	Args:  cobra.NoArgs,
	RunE:  runScheduleTasks,
}

var scheduleHistoryLimit int

var scheduleHistoryCmd = &cobra.Command{
	Use:   "history <task-id>",
	Short: "Show recent results of a scheduled task",
	Long:  `Shows recent results of a task such as "sync:hr", "reconcile:hr" or "prune".`,
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleHistory,
}

func init() {
	scheduleHistoryCmd.Flags().IntVarP(&scheduleHistoryLimit, "limit", "n", 10, "Number of results to show")
	scheduleCmd.AddCommand(scheduleTasksCmd, scheduleHistoryCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func requireScheduler() (*Services, error) {
	s, err := requireServices()
	if err != nil {
		return nil, err
	}
	if s.Scheduler == nil {
		return nil, errors.New("scheduler is disabled")
	}
	return s, nil
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	s, err := requireScheduler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.SetTimestamps(true)
	defer logger.SetTimestamps(false)

	cmd.Println("Scheduler running (Ctrl+C to stop)...")
	done := make(chan error, 1)
	go func() {
		done <- s.Scheduler.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, ctx.Err()) {
			return fmt.Errorf("scheduler: %w", err)
		}
	case <-ctx.Done():
		if err := s.Scheduler.Stop(); err != nil {
			return fmt.Errorf("stop scheduler: %w", err)
		}
		<-done
	}
	cmd.Println("Scheduler stopped.")
	return nil
}

func runScheduleTasks(cmd *cobra.Command, _ []string) error {
	s, err := requireScheduler()
	if err != nil {
		return err
	}
	tasks, err := s.Scheduler.Tasks(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No scheduled tasks. Run 'idsync schedule' to register them.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tINTERVAL\tLAST RUN\tNEXT RUN\tLAST ERROR")
	for _, t := range tasks {
		lastErr := t.LastError
		if lastErr == "" {
			lastErr = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Interval, formatTime(t.LastRun), formatTime(t.NextRun), lastErr)
	}
	return w.Flush()
}

func runScheduleHistory(cmd *cobra.Command, args []string) error {
	s, err := requireScheduler()
	if err != nil {
		return err
	}
	results, err := s.Scheduler.History(commandContext(cmd), args[0], scheduleHistoryLimit)
	if err != nil {
		return fmt.Errorf("task history: %w", err)
	}
	if len(results) == 0 {
		cmd.Printf("No runs recorded for %s.\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tRESULT\tDELTAS\tFAILURES")
	for _, r := range results {
		outcome := "ok"
		if !r.Success {
			outcome = "error: " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", formatTime(r.StartedAt), r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond),
			outcome, r.DeltasProcessed, r.Failures)
	}
	return w.Flush()
}
