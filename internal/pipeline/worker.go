package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/D0nald-Chump/Finagent-v1/internal/adapters/llm"
	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
	"github.com/D0nald-Chump/Finagent-v1/internal/pricing"
)

// Worker produces or revises a section draft. Each invocation makes exactly
// one generation call and emits exactly one cost record.
type Worker struct {
	caller      llm.Caller
	pricer      *pricing.Table
	registry    *Registry
	model       string
	temperature float32
	logger      *logging.Logger
}

// NewWorker creates a worker step.
func NewWorker(caller llm.Caller, pricer *pricing.Table, registry *Registry, model string, temperature float32, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		caller:      caller,
		pricer:      pricer,
		registry:    registry,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// Produce drafts (or redrafts) the section from the source document and the
// most recent checker feedback, writing the result into section.Draft. The
// worker is agnostic to whether the completion came from a real provider or
// the stub.
func (w *Worker) Produce(ctx context.Context, sourceText string, section *core.SectionState) (*core.CostRecord, error) {
	spec := w.registry.Resolve(section.ID)
	node := "worker:" + section.ID

	comp, err := w.caller.Complete(ctx, llm.Request{
		Model:       w.model,
		System:      spec.WorkerSystem,
		User:        workerUserPrompt(sourceText, section),
		Temperature: w.temperature,
	})
	if err != nil {
		return nil, core.ErrSectionFailure(section.ID, "worker generation call failed").WithCause(err)
	}

	record := priceRecord(w.pricer, w.logger, node, roleWorker, w.model, comp)

	draft := strings.TrimSpace(comp.Text)
	if draft == "" {
		// The call happened, so its cost stays on the books even though the
		// section fails.
		return &record, core.ErrSectionFailure(section.ID, "worker returned an empty draft")
	}

	section.Draft = draft
	w.logger.Debug("worker produced draft",
		"section", section.ID,
		"retries", section.Retries,
		"stubbed", comp.Stubbed,
	)
	return &record, nil
}

// workerUserPrompt assembles the user message: the source document, and on
// retries the rejected draft plus the most recent feedback so a revision is
// informed, not a blind resample.
func workerUserPrompt(sourceText string, section *core.SectionState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source document:\n%s\n", sourceText)

	if feedback := section.LastFeedback(); feedback != "" {
		fmt.Fprintf(&sb, "\nYour previous draft was rejected (attempt %d).\n", section.Retries)
		fmt.Fprintf(&sb, "Previous draft:\n%s\n", section.Draft)
		fmt.Fprintf(&sb, "\nChecker feedback to address:\n%s\n", feedback)
	}
	return sb.String()
}
