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
)

// plannerSampleLimit bounds how much of the document the planner sees; it
// only needs enough to recognize which statements are present.
const plannerSampleLimit = 4000

// Planner optionally asks the model which of the allowed sections to work
// on. It narrows the configured section set, never widens it, and degrades
// to the configured set on any parse problem.
type Planner struct {
	caller      llm.Caller
	pricer      *pricing.Table
	model       string
	temperature float32
	logger      *logging.Logger
}

// NewPlanner creates a planner step.
func NewPlanner(caller llm.Caller, pricer *pricing.Table, model string, temperature float32, logger *logging.Logger) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{caller: caller, pricer: pricer, model: model, temperature: temperature, logger: logger}
}

type plannerResponse struct {
	Tasks []string `json:"tasks"`
}

// Plan returns the section IDs to run, in allowed order, plus the cost
// record for the planning call (nil when the call itself failed).
func (p *Planner) Plan(ctx context.Context, sourceText string, allowed []string) ([]string, *core.CostRecord) {
	sample := sourceText
	if len(sample) > plannerSampleLimit {
		sample = sample[:plannerSampleLimit]
	}

	comp, err := p.caller.Complete(ctx, llm.Request{
		Model:       p.model,
		System:      plannerSystem,
		User:        fmt.Sprintf(plannerUser, quotedList(allowed), sample),
		Temperature: p.temperature,
	})
	if err != nil {
		p.logger.Warn("planner call failed, using configured sections", "error", err)
		return allowed, nil
	}

	record := priceRecord(p.pricer, p.logger, "planner", rolePlanner, p.model, comp)

	proposed, err := parsePlan(comp.Text)
	if err != nil {
		p.logger.Warn("planner returned an unparseable plan, using configured sections", "error", err)
		return allowed, &record
	}

	// Keep allowed order; drop anything the planner invented.
	selected := make([]string, 0, len(allowed))
	proposedSet := make(map[string]bool, len(proposed))
	for _, id := range proposed {
		proposedSet[id] = true
	}
	for _, id := range allowed {
		if proposedSet[id] {
			selected = append(selected, id)
		}
	}
	if len(selected) == 0 {
		p.logger.Warn("planner proposed no usable sections, using configured sections")
		return allowed, &record
	}

	p.logger.Info("planner selected sections", "sections", strings.Join(selected, ","))
	return selected, &record
}

func parsePlan(text string) ([]string, error) {
	var resp plannerResponse
	trimmed := strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(trimmed), &resp); err == nil {
		return resp.Tasks, nil
	}
	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return nil, fmt.Errorf("repairing plan JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
		return nil, fmt.Errorf("decoding plan JSON: %w", err)
	}
	return resp.Tasks, nil
}

func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
