// Package llm adapts LLM providers behind a narrow completion interface.
// The pipeline never talks to a provider SDK directly: it sees a Caller that
// either reaches a real provider or degrades to a deterministic stub with the
// same response shape.
package llm

import (
	"context"
)

// Request is a single system+user completion request.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float32
}

// Completion is the provider-agnostic result of one call.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	// Stubbed marks completions produced by the fallback stub. Downstream
	// steps must not branch on it; it exists for logging and diagnostics.
	Stubbed bool
}

// Caller executes one completion request.
type Caller interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
