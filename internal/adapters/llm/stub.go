package llm

import (
	"context"
	"strings"

	"github.com/D0nald-Chump/Finagent-v1/internal/tokens"
)

// stubDraft is the deterministic placeholder emitted for generation prompts.
const stubDraft = "[stub] Placeholder section draft produced without a model provider. " +
	"Figures and commentary are illustrative only."

// Stub is a deterministic offline Caller. It mirrors the response shape the
// pipeline expects for each prompt family so a keyless run behaves
// identically in structure to a real one.
type Stub struct{}

// Complete returns a canned completion. Prompts that embed a JSON schema in
// the system message (checker, planner, reviewer) get a minimal valid
// document for that schema; everything else gets a placeholder draft.
func (Stub) Complete(_ context.Context, req Request) (Completion, error) {
	text := stubDraft
	switch {
	case strings.Contains(req.System, `"passed"`):
		text = `{"passed": true, "feedback": []}`
	case strings.Contains(req.System, `"tasks"`):
		text = `{"tasks": []}`
	case strings.Contains(req.System, `"suggestions"`):
		text = `{"suggestions": []}`
	}

	return Completion{
		Text:             text,
		PromptTokens:     tokens.Count(req.System + "\n" + req.User),
		CompletionTokens: tokens.Count(text),
		Stubbed:          true,
	}, nil
}
