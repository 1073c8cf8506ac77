package pipeline

import (
	"context"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
)

// sectionRunner drives one section through its retry loop:
//
//	DRAFTING -> CHECKING -> DONE            (pass, organic or forced)
//	DRAFTING -> CHECKING -> DRAFTING        (reject, retries incremented)
//
// Retries count completed rejected worker->checker round trips; the checker's
// forced-pass guard fires at entry once retries reach the ceiling, so the
// loop runs at most maxRetries+1 worker invocations.
//
// The runner appends every cost record to a branch-local ledger. The section
// state it mutates is exclusively owned by this runner until a terminal
// status, and the parent merges the ledger at the join barrier.
type sectionRunner struct {
	worker  *Worker
	checker *Checker
	logger  *logging.Logger
}

func newSectionRunner(worker *Worker, checker *Checker, logger *logging.Logger) *sectionRunner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &sectionRunner{worker: worker, checker: checker, logger: logger}
}

// run executes the state machine to a terminal status. On error the section
// is marked failed; records emitted before the failure stay in the returned
// ledger so cost accounting is never dropped.
func (r *sectionRunner) run(ctx context.Context, sourceText string, section *core.SectionState) (core.Ledger, error) {
	var ledger core.Ledger
	logger := r.logger.WithSection(section.ID)

	for {
		if err := ctx.Err(); err != nil {
			section.Status = core.SectionStatusFailed
			return ledger, core.ErrSectionFailure(section.ID, "section cancelled").WithCause(err)
		}

		section.Status = core.SectionStatusDrafting
		workerRecord, err := r.worker.Produce(ctx, sourceText, section)
		if workerRecord != nil {
			ledger.Append(*workerRecord)
		}
		if err != nil {
			section.Status = core.SectionStatusFailed
			return ledger, err
		}

		section.Status = core.SectionStatusChecking
		verdict, checkerRecord, err := r.checker.Evaluate(ctx, section)
		if checkerRecord != nil {
			ledger.Append(*checkerRecord)
		}
		if err != nil {
			section.Status = core.SectionStatusFailed
			return ledger, err
		}

		if verdict.Passed {
			section.Passed = true
			section.ForcedPass = verdict.Forced
			section.Status = core.SectionStatusDone
			logger.Info("section done",
				"retries", section.Retries,
				"forced_pass", verdict.Forced,
			)
			return ledger, nil
		}

		section.RecordFeedback(verdict.FeedbackText())
		section.Retries++
		logger.Info("section rejected, retrying", "retries", section.Retries)
	}
}
