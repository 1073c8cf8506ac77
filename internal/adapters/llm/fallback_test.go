package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
)

type scriptedCaller struct {
	completion Completion
	err        error
	calls      int
}

func (s *scriptedCaller) Complete(context.Context, Request) (Completion, error) {
	s.calls++
	return s.completion, s.err
}

func TestFallback_NilPrimaryUsesStub(t *testing.T) {
	f := NewFallback(nil, logging.NewNop())

	comp, err := f.Complete(context.Background(), Request{System: "draft the section", User: "doc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !comp.Stubbed {
		t.Fatal("expected stubbed completion")
	}
	if !strings.Contains(comp.Text, "[stub]") {
		t.Fatalf("expected placeholder draft, got %q", comp.Text)
	}
}

func TestFallback_DegradesOnProviderError(t *testing.T) {
	primary := &scriptedCaller{err: core.ErrProviderUnavailable("connection refused")}
	f := NewFallback(primary, logging.NewNop())

	comp, err := f.Complete(context.Background(), Request{System: "draft", User: "doc"})
	if err != nil {
		t.Fatalf("provider unavailability must not surface: %v", err)
	}
	if !comp.Stubbed {
		t.Fatal("expected stub degradation")
	}
	if primary.calls != 1 {
		t.Fatalf("expected one primary attempt, got %d", primary.calls)
	}
}

func TestFallback_PropagatesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	primary := &scriptedCaller{err: boom}
	f := NewFallback(primary, logging.NewNop())

	_, err := f.Complete(context.Background(), Request{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom to propagate, got %v", err)
	}
}

func TestFallback_PrimarySuccessPassesThrough(t *testing.T) {
	primary := &scriptedCaller{completion: Completion{Text: "real draft", PromptTokens: 10, CompletionTokens: 20}}
	f := NewFallback(primary, logging.NewNop())

	comp, err := f.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.Stubbed || comp.Text != "real draft" {
		t.Fatalf("unexpected completion: %+v", comp)
	}
}

func TestStub_SchemaAwareResponses(t *testing.T) {
	tests := []struct {
		name   string
		system string
		want   string
	}{
		{"verdict schema", `Validate. Return JSON: {"passed": bool}`, `"passed": true`},
		{"plan schema", `Plan. Only output JSON with keys: tasks[]. {"tasks": []}`, `"tasks"`},
		{"suggestions schema", `Review. Return JSON: {"suggestions": []}`, `"suggestions"`},
		{"draft prompt", "You are an analyst. Draft the section.", "[stub]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp, err := Stub{}.Complete(context.Background(), Request{System: tt.system, User: "doc"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(comp.Text, tt.want) {
				t.Fatalf("response %q missing %q", comp.Text, tt.want)
			}
			if comp.PromptTokens <= 0 || comp.CompletionTokens <= 0 {
				t.Fatalf("token usage must be estimated, got %+v", comp)
			}
		})
	}
}
