package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyReports bool
)

var historyCmd = &cobra.Command{
	Use:   "history [resource]",
	Short: "Show recent sync runs",
	Long: `Lists recent sync runs, most recent first. If a resource name is provided,
only runs of that resource are shown. With --reports the stored report of
each run is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to show")
	historyCmd.Flags().BoolVar(&historyReports, "reports", false, "print each run's report")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Executions == nil {
		return errNoServices
	}

	var resource string
	if len(args) > 0 {
		resource = args[0]
	}
	execs, err := s.Executions.List(commandContext(cmd), resource, historyLimit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(execs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	if historyReports {
		for _, e := range execs {
			cmd.Printf("== %s %s %s ==\n%s\n\n", e.Resource, formatTime(e.StartedAt), e.Status, e.Message)
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRESOURCE\tMODE\tSTATUS\tDELTAS\tOUTCOMES\tFAILURES\tDURATION")
	for _, e := range execs {
		mode := "incremental"
		if e.FullReconciliation {
			mode = "full"
		}
		if e.DryRun {
			mode += " (dry run)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			formatTime(e.StartedAt), e.Resource, mode, e.Status,
			e.DeltasProcessed, e.Outcomes, e.Failures, e.Duration().Round(time.Millisecond))
	}
	return w.Flush()
}
