package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/D0nald-Chump/Finagent-v1/internal/adapters/llm"
	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
	"github.com/D0nald-Chump/Finagent-v1/internal/pricing"
	"github.com/D0nald-Chump/Finagent-v1/internal/rules"
)

// FeedbackItem is one actionable issue from a checker verdict.
type FeedbackItem struct {
	Issue      string `json:"issue"`
	RuleID     string `json:"rule_id"`
	Suggestion string `json:"suggestion"`
}

// String renders the item for the section's feedback history.
func (f FeedbackItem) String() string {
	var sb strings.Builder
	sb.WriteString(f.Issue)
	if f.RuleID != "" {
		fmt.Fprintf(&sb, " [%s]", f.RuleID)
	}
	if f.Suggestion != "" {
		fmt.Fprintf(&sb, ": %s", f.Suggestion)
	}
	return sb.String()
}

// Verdict is a checker's judgment of one draft.
type Verdict struct {
	Passed   bool           `json:"passed"`
	Feedback []FeedbackItem `json:"feedback"`
	// Forced marks a pass granted by the retry ceiling rather than the model.
	Forced bool `json:"-"`
}

// FeedbackText joins all feedback items into one history entry.
func (v Verdict) FeedbackText() string {
	if len(v.Feedback) == 0 {
		return ""
	}
	lines := make([]string, 0, len(v.Feedback))
	for _, item := range v.Feedback {
		lines = append(lines, item.String())
	}
	return strings.Join(lines, "\n")
}

// Checker evaluates drafts against the section rubric and the rulebook, and
// enforces the forced-pass guard at the retry ceiling.
type Checker struct {
	caller      llm.Caller
	pricer      *pricing.Table
	registry    *Registry
	rulebook    *rules.Rulebook
	model       string
	temperature float32
	maxRetries  int
	logger      *logging.Logger
}

// NewChecker creates a checker step.
func NewChecker(caller llm.Caller, pricer *pricing.Table, registry *Registry, rulebook *rules.Rulebook, model string, temperature float32, maxRetries int, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if rulebook == nil {
		rulebook = rules.Empty()
	}
	return &Checker{
		caller:      caller,
		pricer:      pricer,
		registry:    registry,
		rulebook:    rulebook,
		model:       model,
		temperature: temperature,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}

// Evaluate judges the section's current draft.
//
// Forced-pass guard: when the section has already burned its whole retry
// budget (retries >= maxRetries at entry), the draft is accepted without
// soliciting another evaluation and without a cost record. The guard trades
// content quality for liveness: without it a never-satisfied section would
// keep the parent's join barrier waiting forever. Stored feedback is
// preserved for auditability.
//
// Otherwise exactly one evaluation call is made and exactly one cost record
// is returned (record != nil), even when the verdict cannot be parsed and the
// section fails.
func (c *Checker) Evaluate(ctx context.Context, section *core.SectionState) (Verdict, *core.CostRecord, error) {
	if section.Retries >= c.maxRetries {
		c.logger.Info("retry ceiling reached, forcing pass",
			"section", section.ID,
			"retries", section.Retries,
			"max_retries", c.maxRetries,
		)
		return Verdict{Passed: true, Forced: true}, nil, nil
	}

	spec := c.registry.Resolve(section.ID)
	node := "checker:" + section.ID

	comp, err := c.caller.Complete(ctx, llm.Request{
		Model:       c.model,
		System:      spec.CheckerSystem,
		User:        checkerUserPrompt(c.rulebook, section),
		Temperature: c.temperature,
	})
	if err != nil {
		return Verdict{}, nil, core.ErrSectionFailure(section.ID, "checker evaluation call failed").WithCause(err)
	}

	record := priceRecord(c.pricer, c.logger, node, roleChecker, c.model, comp)

	verdict, err := parseVerdict(comp.Text)
	if err != nil {
		return Verdict{}, &record, core.ErrSectionFailure(section.ID, "checker returned an unparseable verdict").WithCause(err)
	}
	return verdict, &record, nil
}

func checkerUserPrompt(rulebook *rules.Rulebook, section *core.SectionState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rules for this section:\n%s\n", rulebook.Render(section.ID))
	fmt.Fprintf(&sb, "\nDraft to validate:\n%s\n", section.Draft)
	return sb.String()
}

// parseVerdict decodes a checker response, repairing almost-JSON (markdown
// fences, single quotes, trailing commas) before giving up.
func parseVerdict(text string) (Verdict, error) {
	var verdict Verdict
	trimmed := strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(trimmed), &verdict); err == nil {
		return verdict, nil
	}

	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return Verdict{}, fmt.Errorf("repairing verdict JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("decoding verdict JSON: %w", err)
	}
	return verdict, nil
}
