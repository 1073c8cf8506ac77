package core

import (
	"errors"
	"testing"
)

func TestNewRunState_FixedSectionOrder(t *testing.T) {
	state, err := NewRunState("doc", []string{"summary", "risks"}, map[string]string{"summary": "Summary"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.SectionOrder) != 2 || state.SectionOrder[0] != "summary" || state.SectionOrder[1] != "risks" {
		t.Fatalf("unexpected section order: %v", state.SectionOrder)
	}
	if state.Sections["summary"].Title != "Summary" {
		t.Fatalf("expected explicit title, got %q", state.Sections["summary"].Title)
	}
	if state.Sections["risks"].Title != "risks" {
		t.Fatalf("expected ID fallback title, got %q", state.Sections["risks"].Title)
	}
	for _, section := range state.Sections {
		if section.Status != SectionStatusDrafting {
			t.Fatalf("section %s should start drafting, got %s", section.ID, section.Status)
		}
	}
}

func TestNewRunState_RejectsEmptyAndDuplicates(t *testing.T) {
	if _, err := NewRunState("doc", nil, nil); err == nil {
		t.Fatal("expected error for empty section set")
	}
	if _, err := NewRunState("doc", []string{"a", "a"}, nil); err == nil {
		t.Fatal("expected error for duplicate section")
	}
}

func TestRunState_SetFinalReportWriteOnce(t *testing.T) {
	state, err := NewRunState("doc", []string{"summary"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := state.SetFinalReport("report"); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	// Idempotent with identical content.
	if err := state.SetFinalReport("report"); err != nil {
		t.Fatalf("idempotent set failed: %v", err)
	}
	// Different content is a programming error.
	err = state.SetFinalReport("other")
	if err == nil {
		t.Fatal("expected overwrite error")
	}
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Category != ErrCatAggregation {
		t.Fatalf("expected aggregation error, got %v", err)
	}
}

func TestRunState_AllDoneAndFailedSections(t *testing.T) {
	state, _ := NewRunState("doc", []string{"a", "b", "c"}, nil)
	if state.AllDone() {
		t.Fatal("fresh run should not be done")
	}

	state.Sections["a"].Status = SectionStatusDone
	state.Sections["b"].Status = SectionStatusFailed
	state.Sections["c"].Status = SectionStatusDone

	if state.AllDone() {
		t.Fatal("run with failed section should not be all done")
	}
	failed := state.FailedSections()
	if len(failed) != 1 || failed[0] != "b" {
		t.Fatalf("unexpected failed sections: %v", failed)
	}
}

func TestDomainError_IsMatchesCategoryAndCode(t *testing.T) {
	err := ErrUnknownModel("nope")
	if !errors.Is(err, ErrUnknownModel("other")) {
		t.Fatal("expected Is to match on category and code")
	}
	if errors.Is(err, ErrProviderUnavailable("x")) {
		t.Fatal("expected Is to distinguish categories")
	}
}
