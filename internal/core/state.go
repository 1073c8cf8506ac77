package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SectionStatus represents the position of a section in its retry loop.
type SectionStatus string

const (
	SectionStatusDrafting SectionStatus = "drafting" // Worker about to run
	SectionStatusChecking SectionStatus = "checking" // Checker about to run
	SectionStatusDone     SectionStatus = "done"     // Terminal: passed organically or forced
	SectionStatusFailed   SectionStatus = "failed"   // Terminal: collaborator failure
)

// Terminal reports whether the status admits no further transitions.
func (s SectionStatus) Terminal() bool {
	return s == SectionStatusDone || s == SectionStatusFailed
}

// SectionState holds the per-section record mutated exclusively by that
// section's subgraph until it reaches a terminal status.
type SectionState struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Status          SectionStatus `json:"status"`
	Draft           string        `json:"draft"`
	FeedbackHistory []string      `json:"feedback_history,omitempty"`
	Retries         int           `json:"retries"`
	Passed          bool          `json:"passed"`
	ForcedPass      bool          `json:"forced_pass"`
}

// RecordFeedback appends checker feedback, oldest first.
func (s *SectionState) RecordFeedback(feedback string) {
	if feedback == "" {
		return
	}
	s.FeedbackHistory = append(s.FeedbackHistory, feedback)
}

// LastFeedback returns the most recent checker feedback, or "" when the
// section has never been rejected.
func (s *SectionState) LastFeedback() string {
	if len(s.FeedbackHistory) == 0 {
		return ""
	}
	return s.FeedbackHistory[len(s.FeedbackHistory)-1]
}

// RunState is the shared state of one pipeline run. The sections map is
// partitioned by key: each entry is owned by its subgraph until terminal.
// The ledger is assembled from branch-local ledgers at the join barrier.
type RunState struct {
	RunID        string                   `json:"run_id"`
	SourceText   string                   `json:"-"`
	SectionOrder []string                 `json:"section_order"`
	Sections     map[string]*SectionState `json:"sections"`
	Ledger       Ledger                   `json:"-"`
	Suggestions  []string                 `json:"suggestions,omitempty"`
	FinalReport  string                   `json:"final_report,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`

	reportSet bool
}

// NewRunState creates a run state with the section set fixed up front.
// Insertion order of sectionIDs is the presentation order of the final
// report. Duplicate section IDs are rejected.
func NewRunState(sourceText string, sectionIDs []string, titles map[string]string) (*RunState, error) {
	if len(sectionIDs) == 0 {
		return nil, ErrValidation("no_sections", "at least one section is required")
	}

	state := &RunState{
		RunID:        "run-" + uuid.NewString(),
		SourceText:   sourceText,
		SectionOrder: make([]string, 0, len(sectionIDs)),
		Sections:     make(map[string]*SectionState, len(sectionIDs)),
		CreatedAt:    time.Now().UTC(),
	}

	for _, id := range sectionIDs {
		if _, exists := state.Sections[id]; exists {
			return nil, ErrValidation("duplicate_section", fmt.Sprintf("section %q listed twice", id))
		}
		title := titles[id]
		if title == "" {
			title = id
		}
		state.SectionOrder = append(state.SectionOrder, id)
		state.Sections[id] = &SectionState{
			ID:     id,
			Title:  title,
			Status: SectionStatusDrafting,
		}
	}

	return state, nil
}

// SetFinalReport populates the final report exactly once. Setting the same
// content again is a no-op so aggregation stays idempotent; setting different
// content is a programming error.
func (r *RunState) SetFinalReport(report string) error {
	if r.reportSet {
		if r.FinalReport == report {
			return nil
		}
		return ErrReportOverwrite()
	}
	r.FinalReport = report
	r.reportSet = true
	return nil
}

// AllDone reports whether every section reached SectionStatusDone.
func (r *RunState) AllDone() bool {
	for _, section := range r.Sections {
		if section.Status != SectionStatusDone {
			return false
		}
	}
	return true
}

// FailedSections returns the IDs of sections in SectionStatusFailed, in
// presentation order.
func (r *RunState) FailedSections() []string {
	var failed []string
	for _, id := range r.SectionOrder {
		if r.Sections[id].Status == SectionStatusFailed {
			failed = append(failed, id)
		}
	}
	return failed
}
