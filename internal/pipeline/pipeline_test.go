package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/D0nald-Chump/Finagent-v1/internal/adapters/llm"
	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
	"github.com/D0nald-Chump/Finagent-v1/internal/pricing"
)

// fakeCaller scripts per-section checker behavior and counts invocations.
// Requests are classified by comparing system prompts against the registry.
type fakeCaller struct {
	mu       sync.Mutex
	registry *Registry
	sections []string

	// rejections[section] is how many times the checker rejects before
	// accepting. A large value means "always reject".
	rejections map[string]int

	// badVerdict sections get a non-JSON checker response.
	badVerdict map[string]bool

	// workerDelay slows a section's worker to force completion reordering.
	workerDelay map[string]time.Duration

	plannerText  string
	reviewerText string

	workerCalls  map[string]int
	checkerCalls map[string]int
	plannerCalls int
}

func newFakeCaller(sections []string) *fakeCaller {
	return &fakeCaller{
		registry:     NewRegistry(),
		sections:     sections,
		rejections:   map[string]int{},
		badVerdict:   map[string]bool{},
		workerDelay:  map[string]time.Duration{},
		workerCalls:  map[string]int{},
		checkerCalls: map[string]int{},
	}
}

const (
	kindWorker   = "worker"
	kindChecker  = "checker"
	kindPlanner  = "planner"
	kindReviewer = "reviewer"
)

func (f *fakeCaller) classify(req llm.Request) (string, string) {
	for _, id := range f.sections {
		spec := f.registry.Resolve(id)
		if req.System == spec.WorkerSystem {
			return kindWorker, id
		}
		if req.System == spec.CheckerSystem {
			return kindChecker, id
		}
	}
	if req.System == plannerSystem {
		return kindPlanner, ""
	}
	if req.System == reviewerSystem {
		return kindReviewer, ""
	}
	return "", ""
}

func (f *fakeCaller) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	f.mu.Lock()
	kind, section := f.classify(req)

	var text string
	switch kind {
	case kindWorker:
		f.workerCalls[section]++
		delay := f.workerDelay[section]
		text = fmt.Sprintf("draft for %s (attempt %d)", section, f.workerCalls[section])
		f.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		return llm.Completion{Text: text, PromptTokens: 100, CompletionTokens: 50}, nil

	case kindChecker:
		f.checkerCalls[section]++
		switch {
		case f.badVerdict[section]:
			text = "this is not a verdict"
		case f.checkerCalls[section] <= f.rejections[section]:
			text = `{"passed": false, "feedback": [{"issue": "too vague", "rule_id": "R1", "suggestion": "add figures"}]}`
		default:
			text = `{"passed": true, "feedback": []}`
		}

	case kindPlanner:
		f.plannerCalls++
		text = f.plannerText
		if text == "" {
			text = `{"tasks": []}`
		}

	case kindReviewer:
		text = f.reviewerText
		if text == "" {
			text = `{"suggestions": []}`
		}

	default:
		f.mu.Unlock()
		return llm.Completion{}, fmt.Errorf("unclassifiable request: %q", req.System)
	}

	f.mu.Unlock()
	return llm.Completion{Text: text, PromptTokens: 100, CompletionTokens: 50}, nil
}

func newTestPipeline(t *testing.T, caller llm.Caller, maxRetries int) *Pipeline {
	t.Helper()
	p, err := New(caller, pricing.NewTable(nil), nil, Config{
		Model:      pricing.ModelGPT5Mini,
		MaxRetries: maxRetries,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("building pipeline: %v", err)
	}
	return p
}

func TestPipeline_ScenarioA(t *testing.T) {
	// summary passes immediately; risks is rejected twice, then the retry
	// ceiling forces acceptance.
	sections := []string{"summary", "risks"}
	caller := newFakeCaller(sections)
	caller.rejections["risks"] = 1000

	p := newTestPipeline(t, caller, 2)
	result, err := p.Run(context.Background(), "source document", sections)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := result.State.Sections["summary"]
	risks := result.State.Sections["risks"]

	if summary.Retries != 0 || !summary.Passed || summary.ForcedPass {
		t.Fatalf("summary state wrong: retries=%d passed=%v forced=%v", summary.Retries, summary.Passed, summary.ForcedPass)
	}
	if risks.Retries != 2 || !risks.Passed || !risks.ForcedPass {
		t.Fatalf("risks state wrong: retries=%d passed=%v forced=%v", risks.Retries, risks.Passed, risks.ForcedPass)
	}
	if caller.workerCalls["risks"] != 3 {
		t.Fatalf("expected 3 worker invocations for risks, got %d", caller.workerCalls["risks"])
	}
	if caller.checkerCalls["risks"] != 2 {
		t.Fatalf("expected 2 organic checker evaluations for risks, got %d", caller.checkerCalls["risks"])
	}
	if len(risks.FeedbackHistory) != 2 {
		t.Fatalf("expected rejecting feedback preserved, got %v", risks.FeedbackHistory)
	}

	summaryIdx := strings.Index(result.Report, summary.Draft)
	risksIdx := strings.Index(result.Report, risks.Draft)
	if summaryIdx < 0 || risksIdx < 0 || summaryIdx > risksIdx {
		t.Fatalf("report does not list summary before risks (idx %d vs %d)", summaryIdx, risksIdx)
	}
	if result.TotalCostUSD <= 0 {
		t.Fatalf("expected positive total cost, got %f", result.TotalCostUSD)
	}
}

func TestPipeline_ForcedPassNeverHangs(t *testing.T) {
	// With an always-rejecting checker and MAX_RETRIES = N, a section
	// terminates passed after exactly N retries and N+1 worker invocations.
	for _, maxRetries := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("max_retries_%d", maxRetries), func(t *testing.T) {
			sections := []string{"summary"}
			caller := newFakeCaller(sections)
			caller.rejections["summary"] = 1000

			p := newTestPipeline(t, caller, maxRetries)

			done := make(chan *Result, 1)
			go func() {
				result, err := p.Run(context.Background(), "doc", sections)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				done <- result
			}()

			var result *Result
			select {
			case result = <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("pipeline hung instead of forcing a pass")
			}

			section := result.State.Sections["summary"]
			if !section.Passed || section.Retries != maxRetries {
				t.Fatalf("expected forced pass after %d retries, got passed=%v retries=%d",
					maxRetries, section.Passed, section.Retries)
			}
			if got := caller.workerCalls["summary"]; got != maxRetries+1 {
				t.Fatalf("expected %d worker invocations, got %d", maxRetries+1, got)
			}
			if got := caller.checkerCalls["summary"]; got != maxRetries {
				t.Fatalf("expected %d organic checker evaluations, got %d", maxRetries, got)
			}
		})
	}
}

func TestPipeline_RetriesNeverExceedCeiling(t *testing.T) {
	sections := []string{"balance_sheet", "income_statement", "cash_flows"}
	caller := newFakeCaller(sections)
	caller.rejections["balance_sheet"] = 1
	caller.rejections["income_statement"] = 1000
	const maxRetries = 2

	p := newTestPipeline(t, caller, maxRetries)
	result, err := p.Run(context.Background(), "doc", sections)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for id, section := range result.State.Sections {
		if section.Retries > maxRetries {
			t.Fatalf("section %s exceeded retry ceiling: %d", id, section.Retries)
		}
		if !section.Passed {
			t.Fatalf("section %s did not pass", id)
		}
	}
}

func TestPipeline_CostAdditivityAcrossOrderings(t *testing.T) {
	run := func(sections []string) (*Result, *fakeCaller) {
		caller := newFakeCaller(sections)
		caller.rejections["risks"] = 1
		p := newTestPipeline(t, caller, 2)
		result, err := p.Run(context.Background(), "doc", sections)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return result, caller
	}

	resultA, _ := run([]string{"summary", "risks", "cash_flows"})
	resultB, _ := run([]string{"cash_flows", "risks", "summary"})

	if math.Abs(resultA.TotalCostUSD-resultB.TotalCostUSD) > 1e-12 {
		t.Fatalf("total cost depends on section ordering: %f vs %f",
			resultA.TotalCostUSD, resultB.TotalCostUSD)
	}

	// The total equals the sum over every emitted record.
	var sum float64
	for _, record := range resultA.State.Ledger.Records() {
		sum += record.CostUSD
	}
	if math.Abs(sum-resultA.TotalCostUSD) > 1e-12 {
		t.Fatalf("ledger total %f != record sum %f", resultA.TotalCostUSD, sum)
	}
}

func TestPipeline_AggregationOrderIgnoresCompletionOrder(t *testing.T) {
	sections := []string{"summary", "risks"}
	caller := newFakeCaller(sections)
	// Slow the first section so the second finishes first.
	caller.workerDelay["summary"] = 150 * time.Millisecond

	p := newTestPipeline(t, caller, 2)
	result, err := p.Run(context.Background(), "doc", sections)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summaryIdx := strings.Index(result.Report, "## Executive Summary")
	risksIdx := strings.Index(result.Report, "## Risk Flags")
	if summaryIdx < 0 || risksIdx < 0 || summaryIdx > risksIdx {
		t.Fatalf("sections out of order in report:\n%s", result.Report)
	}
}

func TestPipeline_SectionFailurePreservesSiblings(t *testing.T) {
	sections := []string{"summary", "risks"}
	caller := newFakeCaller(sections)
	caller.badVerdict["risks"] = true

	p := newTestPipeline(t, caller, 2)
	result, err := p.Run(context.Background(), "doc", sections)
	if err == nil {
		t.Fatal("expected run failure")
	}
	var domainErr *core.DomainError
	if !errors.As(err, &domainErr) || domainErr.Category != core.ErrCatSection {
		t.Fatalf("expected section failure, got %v", err)
	}
	if result == nil {
		t.Fatal("failed run must still return partial results")
	}

	if !result.Failed() {
		t.Fatal("result should be marked failed")
	}
	if _, ok := result.SectionErrors["risks"]; !ok {
		t.Fatalf("expected risks in section errors, got %v", result.SectionErrors)
	}

	summary := result.State.Sections["summary"]
	if summary.Status != core.SectionStatusDone || summary.Draft == "" {
		t.Fatalf("sibling section lost: status=%s draft=%q", summary.Status, summary.Draft)
	}
	if result.State.Sections["risks"].Status != core.SectionStatusFailed {
		t.Fatalf("failed section not marked: %s", result.State.Sections["risks"].Status)
	}

	// Cost accounting up to the failure point is never dropped: summary
	// worker+checker plus the risks worker and its unparseable evaluation.
	if result.State.Ledger.Len() != 4 {
		t.Fatalf("expected 4 cost records, got %d", result.State.Ledger.Len())
	}
	if result.TotalCostUSD <= 0 {
		t.Fatal("expected accumulated cost on failed run")
	}
	if result.Report != "" {
		t.Fatal("failed run must not produce a final report")
	}
}

func TestPipeline_StubProviderRunCompletes(t *testing.T) {
	// Scenario: no provider at all. The stub keeps the run shape identical.
	caller := llm.NewFallback(nil, logging.NewNop())

	p := newTestPipeline(t, caller, 2)
	result, err := p.Run(context.Background(), "doc", []string{"balance_sheet", "income_statement"})
	if err != nil {
		t.Fatalf("stub run must not fail: %v", err)
	}

	for id, section := range result.State.Sections {
		if !strings.Contains(section.Draft, "[stub]") {
			t.Fatalf("section %s draft is not a stub placeholder: %q", id, section.Draft)
		}
		if !section.Passed || section.Retries != 0 {
			t.Fatalf("section %s should pass immediately under stub checker", id)
		}
	}
	if result.TotalCostUSD < 0 {
		t.Fatalf("negative cost: %f", result.TotalCostUSD)
	}
	if result.State.Ledger.Len() != 4 {
		t.Fatalf("expected one worker and one checker record per section, got %d", result.State.Ledger.Len())
	}
}

func TestPipeline_PlannerNarrowsSections(t *testing.T) {
	sections := []string{"summary", "risks"}
	caller := newFakeCaller(sections)
	caller.plannerText = `{"tasks": ["risks", "made_up_section"]}`

	p, err := New(caller, pricing.NewTable(nil), nil, Config{
		Model:      pricing.ModelGPT5Mini,
		MaxRetries: 2,
		Plan:       true,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("building pipeline: %v", err)
	}

	result, err := p.Run(context.Background(), "doc", sections)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.State.SectionOrder) != 1 || result.State.SectionOrder[0] != "risks" {
		t.Fatalf("planner narrowing failed: %v", result.State.SectionOrder)
	}
	if caller.plannerCalls != 1 {
		t.Fatalf("expected 1 planner call, got %d", caller.plannerCalls)
	}
	// The planning call itself is on the ledger.
	foundPlanner := false
	for _, record := range result.State.Ledger.Records() {
		if record.Role == rolePlanner {
			foundPlanner = true
		}
	}
	if !foundPlanner {
		t.Fatal("planner cost record missing from ledger")
	}
}

func TestPipeline_ReviewSuggestionsAppended(t *testing.T) {
	sections := []string{"summary"}
	caller := newFakeCaller(sections)
	caller.reviewerText = `{"suggestions": [{"area": "normalization", "action": "state all figures in USD millions"}]}`

	p, err := New(caller, pricing.NewTable(nil), nil, Config{
		Model:      pricing.ModelGPT5Mini,
		MaxRetries: 2,
		Review:     true,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("building pipeline: %v", err)
	}

	result, err := p.Run(context.Background(), "doc", sections)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Report, "## Review Notes") {
		t.Fatalf("review notes missing from report:\n%s", result.Report)
	}
	if !strings.Contains(result.Report, "normalization: state all figures in USD millions") {
		t.Fatalf("suggestion missing from report:\n%s", result.Report)
	}
}

func TestPipeline_ValidatesConfig(t *testing.T) {
	if _, err := New(newFakeCaller(nil), pricing.NewTable(nil), nil, Config{MaxRetries: 1}, nil); err == nil {
		t.Fatal("expected error for missing model")
	}
	if _, err := New(newFakeCaller(nil), pricing.NewTable(nil), nil, Config{Model: "m", MaxRetries: -1}, nil); err == nil {
		t.Fatal("expected error for negative retries")
	}
	p := newTestPipeline(t, newFakeCaller(nil), 1)
	if _, err := p.Run(context.Background(), "doc", nil); err == nil {
		t.Fatal("expected error for empty section list")
	}
}
