// Package pricing provides the static per-model pricing table used to derive
// the dollar cost of every LLM call.
package pricing

import (
	"github.com/D0nald-Chump/Finagent-v1/internal/core"
)

// Model name constants for the models the pipeline routes to by default.
const (
	ModelGPT5Mini = "gpt-5-mini"
	ModelGPT5     = "gpt-5"
	ModelGPT4o    = "gpt-4o"
	ModelGPT4oMin = "gpt-4o-mini"
)

// ModelPrice holds USD prices per 1K tokens for one model.
type ModelPrice struct {
	InputPer1K  float64 `json:"input_per_1k" mapstructure:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k" mapstructure:"output_per_1k"`
}

// Cost computes the dollar cost of a call under this price.
func (p ModelPrice) Cost(promptTokens, completionTokens int) float64 {
	return (float64(promptTokens)/1000.0)*p.InputPer1K +
		(float64(completionTokens)/1000.0)*p.OutputPer1K
}

// defaultPrices is the built-in pricing table, USD per 1K tokens.
var defaultPrices = map[string]ModelPrice{
	ModelGPT5Mini: {InputPer1K: 0.05, OutputPer1K: 0.15},
	ModelGPT5:     {InputPer1K: 0.25, OutputPer1K: 1.00},
	ModelGPT4o:    {InputPer1K: 0.25, OutputPer1K: 1.00},
	ModelGPT4oMin: {InputPer1K: 0.015, OutputPer1K: 0.06},
}

// Table is a static pricing lookup. Entries never change during a run.
type Table struct {
	prices map[string]ModelPrice
}

// NewTable returns the built-in pricing table with optional per-model
// overrides (typically from configuration) applied on top.
func NewTable(overrides map[string]ModelPrice) *Table {
	prices := make(map[string]ModelPrice, len(defaultPrices)+len(overrides))
	for model, price := range defaultPrices {
		prices[model] = price
	}
	for model, price := range overrides {
		prices[model] = price
	}
	return &Table{prices: prices}
}

// Price computes the USD cost of a call. An unpriced model yields zero cost
// and an ErrUnknownModel the caller is expected to log, not fail on.
func (t *Table) Price(model string, promptTokens, completionTokens int) (float64, error) {
	price, ok := t.prices[model]
	if !ok {
		return 0, core.ErrUnknownModel(model)
	}
	return price.Cost(promptTokens, completionTokens), nil
}

// Known reports whether the model has a pricing entry.
func (t *Table) Known(model string) bool {
	_, ok := t.prices[model]
	return ok
}
