package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state of every resource",
	Long: `Lists every configured resource with its connector, stored sync token,
last sync time and the outcome of its most recent run.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Resources == nil || s.Tokens == nil {
		return errNoServices
	}
	ctx := commandContext(cmd)

	resources, err := s.Resources.List(ctx)
	if err != nil {
		return fmt.Errorf("list resources: %w", err)
	}
	if len(resources) == 0 {
		cmd.Println("No resources configured.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tCONNECTOR\tTOKEN\tLAST SYNC\tLAST RUN")
	for _, r := range resources {
		token, lastSync := "-", "never"
		state, err := s.Tokens.Get(ctx, r.Name)
		switch {
		case err == nil:
			token = state.Token.String()
			lastSync = formatTime(state.LastSync)
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("get token for %s: %w", r.Name, err)
		}

		lastRun := "-"
		if s.Executions != nil {
			execs, err := s.Executions.List(ctx, r.Name, 1)
			if err != nil {
				return fmt.Errorf("list history for %s: %w", r.Name, err)
			}
			if len(execs) > 0 {
				lastRun = fmt.Sprintf("%s %s", execs[0].Status, formatTime(execs[0].StartedAt))
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.ConnectorType, token, lastSync, lastRun)
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
