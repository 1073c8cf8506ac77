package pipeline

import (
	"github.com/D0nald-Chump/Finagent-v1/internal/adapters/llm"
	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
	"github.com/D0nald-Chump/Finagent-v1/internal/pricing"
)

// Node roles recorded in the cost ledger.
const (
	roleWorker   = "worker"
	roleChecker  = "checker"
	rolePlanner  = "planner"
	roleReviewer = "reviewer"
)

// priceRecord turns a completion into a cost record. An unpriced model is
// recorded at zero cost and logged, never escalated: cost accounting must not
// be able to fail a run.
func priceRecord(pricer *pricing.Table, logger *logging.Logger, node, role, model string, comp llm.Completion) core.CostRecord {
	costUSD, err := pricer.Price(model, comp.PromptTokens, comp.CompletionTokens)
	if err != nil {
		logger.Warn("recording call at zero cost", "node", node, "model", model, "error", err)
		costUSD = 0
	}
	return core.NewCostRecord(node, role, model, comp.PromptTokens, comp.CompletionTokens, costUSD)
}
