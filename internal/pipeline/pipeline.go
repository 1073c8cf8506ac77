// Package pipeline implements the fan-out/fan-in report generation pipeline:
// one worker/checker retry loop per section running concurrently, a join
// barrier, and an aggregator that assembles the final report and totals the
// cost ledger.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/D0nald-Chump/Finagent-v1/internal/adapters/llm"
	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
	"github.com/D0nald-Chump/Finagent-v1/internal/pricing"
	"github.com/D0nald-Chump/Finagent-v1/internal/rules"
)

// Config holds the run-level knobs of a pipeline.
type Config struct {
	Model       string
	Temperature float32
	MaxRetries  int
	Plan        bool // ask the model to narrow the section set before fan-out
	Review      bool // run the cross-section consistency check after the join
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return core.ErrValidation("missing_model", "model name is required")
	}
	if c.MaxRetries < 0 {
		return core.ErrValidation("negative_retries", "max retries must be >= 0")
	}
	return nil
}

// Result is what one run hands back to the caller. On a failed run the
// report is empty but the partial section states and the full cost ledger
// remain inspectable.
type Result struct {
	State            *core.RunState
	Report           string
	TotalCostUSD     float64
	PromptTokens     int
	CompletionTokens int
	SectionErrors    map[string]error
}

// Failed reports whether any section subgraph failed.
func (r *Result) Failed() bool {
	return len(r.SectionErrors) > 0
}

// Pipeline wires the steps together. One Pipeline value may serve many runs;
// each run gets its own RunState.
type Pipeline struct {
	cfg        Config
	registry   *Registry
	worker     *Worker
	checker    *Checker
	planner    *Planner
	reviewer   *Reviewer
	aggregator Aggregator
	logger     *logging.Logger
}

// New assembles a pipeline from its collaborators.
func New(caller llm.Caller, pricer *pricing.Table, rulebook *rules.Rulebook, cfg Config, logger *logging.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if rulebook == nil {
		rulebook = rules.Empty()
	}

	registry := NewRegistry()
	return &Pipeline{
		cfg:      cfg,
		registry: registry,
		worker:   NewWorker(caller, pricer, registry, cfg.Model, cfg.Temperature, logger),
		checker:  NewChecker(caller, pricer, registry, rulebook, cfg.Model, cfg.Temperature, cfg.MaxRetries, logger),
		planner:  NewPlanner(caller, pricer, cfg.Model, cfg.Temperature, logger),
		reviewer: NewReviewer(caller, pricer, cfg.Model, cfg.Temperature, logger),
		logger:   logger,
	}, nil
}

// Registry exposes the section registry, e.g. for CLI section resolution.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Run executes the pipeline: optional planning, concurrent section
// subgraphs, the join barrier, optional review, aggregation.
//
// Per-section failures do not abort sibling subgraphs. When any section
// fails, Run returns a non-nil Result carrying the partial states and the
// accumulated ledger alongside a section-failure error; completed sibling
// drafts stay available as diagnostics.
func (p *Pipeline) Run(ctx context.Context, sourceText string, sectionIDs []string) (*Result, error) {
	if len(sectionIDs) == 0 {
		return nil, core.ErrValidation("no_sections", "at least one section is required")
	}

	var runLedger core.Ledger

	if p.cfg.Plan {
		planned, record := p.planner.Plan(ctx, sourceText, sectionIDs)
		if record != nil {
			runLedger.Append(*record)
		}
		sectionIDs = planned
	}

	state, err := core.NewRunState(sourceText, sectionIDs, p.registry.Titles(sectionIDs))
	if err != nil {
		return nil, err
	}
	logger := p.logger.WithRun(state.RunID)
	logger.Info("starting run",
		"sections", strings.Join(state.SectionOrder, ","),
		"max_retries", p.cfg.MaxRetries,
		"model", p.cfg.Model,
	)

	// Fan out: one subgraph per section. Each branch owns its section state
	// and a branch-local ledger; nothing is shared until the join below.
	branchLedgers := make([]core.Ledger, len(state.SectionOrder))
	branchErrors := make([]error, len(state.SectionOrder))

	var group errgroup.Group
	for i, id := range state.SectionOrder {
		runner := newSectionRunner(p.worker, p.checker, logger)
		section := state.Sections[id]
		group.Go(func() error {
			branchLedgers[i], branchErrors[i] = runner.run(ctx, sourceText, section)
			return nil
		})
	}
	// Join barrier: every subgraph has terminated past this point.
	_ = group.Wait()

	sectionErrors := make(map[string]error)
	for i, id := range state.SectionOrder {
		runLedger.Merge(branchLedgers[i])
		if branchErrors[i] != nil {
			sectionErrors[id] = branchErrors[i]
		}
	}
	state.Ledger = runLedger

	result := &Result{
		State:         state,
		SectionErrors: sectionErrors,
	}
	result.TotalCostUSD = state.Ledger.TotalCostUSD()
	result.PromptTokens, result.CompletionTokens = state.Ledger.TotalTokens()

	if len(sectionErrors) > 0 {
		failed := state.FailedSections()
		logger.Error("run failed",
			"failed_sections", strings.Join(failed, ","),
			"total_cost_usd", result.TotalCostUSD,
		)
		return result, core.ErrSectionFailure(strings.Join(failed, ","),
			fmt.Sprintf("%d of %d sections failed", len(failed), len(state.SectionOrder)))
	}

	if p.cfg.Review {
		suggestions, record := p.reviewer.Review(ctx, state)
		if record != nil {
			state.Ledger.Append(*record)
		}
		state.Suggestions = suggestions
		result.TotalCostUSD = state.Ledger.TotalCostUSD()
		result.PromptTokens, result.CompletionTokens = state.Ledger.TotalTokens()
	}

	report, err := p.aggregator.Aggregate(state)
	if err != nil {
		return result, err
	}
	result.Report = report

	logger.Info("run complete",
		"sections", len(state.SectionOrder),
		"calls", state.Ledger.Len(),
		"total_cost_usd", result.TotalCostUSD,
	)
	return result, nil
}
