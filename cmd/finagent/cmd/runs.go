package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/D0nald-Chump/Finagent-v1/internal/report"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List archived runs or show one run",
	Long: `Without arguments, list archived runs newest first. With a run ID,
print that run's report and cost ledger.`,
	Args: cobra.MaximumNArgs(1),
	RunE: showRuns,
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list")
}

func showRuns(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	if len(args) == 1 {
		stored, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		if stored.State.FinalReport != "" {
			width := 100
			if term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Print(report.Render(stored.State.FinalReport, width))
			} else {
				fmt.Print(stored.State.FinalReport)
			}
		} else {
			fmt.Printf("run %s produced no report (failed: %v)\n", args[0], stored.Failed)
		}
		fmt.Println()
		fmt.Println(report.CostTable(&stored.State.Ledger))
		return nil
	}

	summaries, err := store.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no archived runs")
		return nil
	}

	fmt.Printf("%-42s %-20s %8s %6s %6s %10s\n", "RUN", "CREATED", "SECTIONS", "CALLS", "FAIL", "COST")
	for _, summary := range summaries {
		failed := ""
		if summary.Failed {
			failed = "yes"
		}
		fmt.Printf("%-42s %-20s %8d %6d %6s %10s\n",
			summary.RunID,
			summary.CreatedAt.Format("2006-01-02 15:04:05"),
			summary.Sections,
			summary.Calls,
			failed,
			fmt.Sprintf("$%.4f", summary.TotalCostUSD),
		)
	}
	return nil
}
