package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/document"
	"github.com/D0nald-Chump/Finagent-v1/internal/export"
	"github.com/D0nald-Chump/Finagent-v1/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze a document and generate the sectioned report",
	Long: `Run the full pipeline against a financial document: draft every
configured section concurrently, validate each draft in a bounded retry
loop, and assemble the final markdown report with a cost breakdown.

With no --file the embedded sample filing is analyzed, and without an
OPENAI_API_KEY the run uses a deterministic offline stub.`,
	RunE: runReport,
}

var (
	runFile       string
	runSections   []string
	runModel      string
	runMaxRetries int
	runPlan       bool
	runReview     bool
	runOut        string
	runNotebook   string
	runNoSave     bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Document to analyze (.txt, .md, .html)")
	runCmd.Flags().StringSliceVarP(&runSections, "sections", "s", nil, "Report sections to generate")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to route all roles to (default from config)")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", -1, "Maximum checker rejections per section")
	runCmd.Flags().BoolVar(&runPlan, "plan", false, "Let the model narrow the section set first")
	runCmd.Flags().BoolVar(&runReview, "review", false, "Run the cross-section consistency check")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Write the report to this markdown file")
	runCmd.Flags().StringVar(&runNotebook, "notebook", "", "Write a notebook documenting the run to this .ipynb file")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Skip archiving the run")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runModel != "" {
		cfg.Model.Name = runModel
	}
	if runMaxRetries >= 0 {
		cfg.Pipeline.MaxRetries = runMaxRetries
	}
	if cmd.Flags().Changed("plan") {
		cfg.Pipeline.Plan = runPlan
	}
	if cmd.Flags().Changed("review") {
		cfg.Pipeline.Review = runReview
	}
	sections := cfg.Pipeline.Sections
	if len(runSections) > 0 {
		sections = runSections
	}

	logger := newLogger(cfg)

	p, err := buildPipeline(cfg, logger, cfg.Pipeline.Plan, cfg.Pipeline.Review)
	if err != nil {
		return err
	}
	checkSections(p.Registry(), sections, logger)

	sourceText, err := document.Load(runFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt, stopping...")
		cancel()
	}()

	result, runErr := p.Run(ctx, sourceText, sections)
	if runErr != nil && result == nil {
		return runErr
	}

	if !runNoSave {
		store, storeErr := openStore(cfg)
		if storeErr != nil {
			logger.Error("opening run archive failed", "error", storeErr)
		} else {
			defer store.Close()
			if saveErr := store.SaveRun(ctx, result.State, result.Failed()); saveErr != nil {
				logger.Error("archiving run failed", "error", saveErr)
			}
		}
	}

	printRunOutput(result.State, result.Report)

	if runErr != nil {
		return runErr
	}

	if reportPath := pickPath(runOut, cfg.Export.ReportPath); reportPath != "" {
		if err := export.WriteReport(reportPath, result.Report); err != nil {
			return err
		}
		logger.Info("report written", "path", reportPath)
	}
	if notebookPath := pickPath(runNotebook, cfg.Export.NotebookPath); notebookPath != "" {
		if err := export.WriteNotebook(notebookPath, result.State, reproduceCommand(sections)); err != nil {
			return err
		}
		logger.Info("notebook written", "path", notebookPath)
	}

	return nil
}

func pickPath(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func reproduceCommand(sections []string) string {
	cmdline := "finagent run"
	if runFile != "" {
		cmdline += " --file " + runFile
	}
	if len(sections) > 0 {
		cmdline += " --sections " + strings.Join(sections, ",")
	}
	return cmdline
}

// printRunOutput writes the report (rendered when stdout is a terminal) and
// the cost table. On a failed run the partial drafts stay in the archive; the
// terminal gets the cost table and per-section statuses only.
func printRunOutput(state *core.RunState, markdown string) {
	width := 100
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
		if markdown != "" {
			fmt.Print(report.Render(markdown, width))
		}
	} else if markdown != "" {
		fmt.Print(markdown)
	}

	forced := 0
	for _, id := range state.SectionOrder {
		section := state.Sections[id]
		if section.ForcedPass {
			forced++
		}
		if section.Status == core.SectionStatusFailed {
			fmt.Printf("section %s: failed after %d retries\n", id, section.Retries)
		}
	}

	fmt.Println()
	fmt.Println(report.CostTable(&state.Ledger))

	promptTokens, completionTokens := state.Ledger.TotalTokens()
	fmt.Println(report.Summary(report.RunSummary{
		Sections:         len(state.SectionOrder),
		Calls:            state.Ledger.Len(),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalCostUSD:     state.Ledger.TotalCostUSD(),
		ForcedSections:   forced,
	}))
}
