package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
)

// Fallback routes requests to a primary provider and degrades to the stub
// when the provider is unavailable. Provider unavailability never surfaces
// as a run failure.
type Fallback struct {
	primary  Caller
	stub     Stub
	logger   *logging.Logger
	warnOnce sync.Once
}

// NewFallback wraps primary with stub degradation. A nil primary routes
// everything to the stub.
func NewFallback(primary Caller, logger *logging.Logger) *Fallback {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fallback{primary: primary, logger: logger}
}

// FromEnv builds the default caller chain: OpenAI when a key is configured,
// stub otherwise.
func FromEnv(logger *logging.Logger) *Fallback {
	if logger == nil {
		logger = logging.NewNop()
	}
	primary, err := OpenAICallerFromEnv()
	if err != nil {
		logger.Warn("no LLM provider configured, using deterministic stub", "reason", err)
		return NewFallback(nil, logger)
	}
	return NewFallback(primary, logger)
}

// Complete executes the request, falling back to the stub on
// provider-unavailable errors. Other errors propagate.
func (f *Fallback) Complete(ctx context.Context, req Request) (Completion, error) {
	if f.primary == nil {
		return f.stub.Complete(ctx, req)
	}

	completion, err := f.primary.Complete(ctx, req)
	if err == nil {
		return completion, nil
	}

	var domainErr *core.DomainError
	if errors.As(err, &domainErr) && domainErr.Category == core.ErrCatProvider {
		f.warnOnce.Do(func() {
			f.logger.Warn("provider unavailable, degrading to stub for the rest of the run", "error", err)
		})
		return f.stub.Complete(ctx, req)
	}
	return Completion{}, err
}
