package core

import (
	"time"

	"github.com/google/uuid"
)

// CostRecord captures the token usage and dollar cost of a single LLM call.
// Records are immutable once created.
type CostRecord struct {
	ID               string    `json:"id"`
	Node             string    `json:"node"`
	Role             string    `json:"role"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewCostRecord creates a cost record with a fresh identity and timestamp.
func NewCostRecord(node, role, model string, promptTokens, completionTokens int, costUSD float64) CostRecord {
	return CostRecord{
		ID:               uuid.NewString(),
		Node:             node,
		Role:             role,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          costUSD,
		CreatedAt:        time.Now().UTC(),
	}
}

// Ledger is an append-only collection of cost records. Append order is kept
// for auditability but carries no meaning: totals are commutative, and
// ledgers produced by concurrent branches combine via Merge, which is
// associative and commutative up to ordering.
//
// A Ledger value is owned by exactly one goroutine. Concurrent branches each
// append to their own ledger and the parent merges them at the join barrier,
// so no locking is needed.
type Ledger struct {
	records []CostRecord
}

// Append adds a record to the ledger.
func (l *Ledger) Append(record CostRecord) {
	l.records = append(l.records, record)
}

// Merge folds another ledger into this one. Every record from both inputs
// appears exactly once in the result: records carry unique IDs and each
// branch appends only records it created.
func (l *Ledger) Merge(other Ledger) {
	l.records = append(l.records, other.records...)
}

// Records returns a copy of the recorded entries.
func (l *Ledger) Records() []CostRecord {
	out := make([]CostRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	return len(l.records)
}

// TotalCostUSD sums the dollar cost over all records.
func (l *Ledger) TotalCostUSD() float64 {
	var total float64
	for _, record := range l.records {
		total += record.CostUSD
	}
	return total
}

// TotalTokens sums prompt and completion tokens over all records.
func (l *Ledger) TotalTokens() (promptTokens, completionTokens int) {
	for _, record := range l.records {
		promptTokens += record.PromptTokens
		completionTokens += record.CompletionTokens
	}
	return promptTokens, completionTokens
}
