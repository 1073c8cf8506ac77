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

// Reviewer runs one cross-section consistency check after the join barrier.
// Its suggestions are advisory: they are appended to the report, and any
// failure degrades to an empty suggestion list rather than failing the run.
type Reviewer struct {
	caller      llm.Caller
	pricer      *pricing.Table
	model       string
	temperature float32
	logger      *logging.Logger
}

// NewReviewer creates a reviewer step.
func NewReviewer(caller llm.Caller, pricer *pricing.Table, model string, temperature float32, logger *logging.Logger) *Reviewer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reviewer{caller: caller, pricer: pricer, model: model, temperature: temperature, logger: logger}
}

type reviewerResponse struct {
	Suggestions []struct {
		Area   string `json:"area"`
		Action string `json:"action"`
	} `json:"suggestions"`
}

// Review inspects all completed drafts for cross-section inconsistencies.
func (r *Reviewer) Review(ctx context.Context, state *core.RunState) ([]string, *core.CostRecord) {
	var sb strings.Builder
	sb.WriteString("Drafts summary:\n")
	for _, id := range state.SectionOrder {
		section := state.Sections[id]
		fmt.Fprintf(&sb, "%s:\n%s\n\n", section.Title, section.Draft)
	}

	comp, err := r.caller.Complete(ctx, llm.Request{
		Model:       r.model,
		System:      reviewerSystem,
		User:        sb.String(),
		Temperature: r.temperature,
	})
	if err != nil {
		r.logger.Warn("review call failed, continuing without suggestions", "error", err)
		return nil, nil
	}

	record := priceRecord(r.pricer, r.logger, "reviewer", roleReviewer, r.model, comp)

	suggestions, err := parseSuggestions(comp.Text)
	if err != nil {
		r.logger.Warn("review verdict unparseable, continuing without suggestions", "error", err)
		return nil, &record
	}
	return suggestions, &record
}

func parseSuggestions(text string) ([]string, error) {
	var resp reviewerResponse
	trimmed := strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(trimmed)
		if repairErr != nil {
			return nil, fmt.Errorf("repairing suggestions JSON: %w", repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
			return nil, fmt.Errorf("decoding suggestions JSON: %w", err)
		}
	}

	suggestions := make([]string, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		switch {
		case s.Area != "" && s.Action != "":
			suggestions = append(suggestions, fmt.Sprintf("%s: %s", s.Area, s.Action))
		case s.Action != "":
			suggestions = append(suggestions, s.Action)
		case s.Area != "":
			suggestions = append(suggestions, s.Area)
		}
	}
	return suggestions, nil
}
