package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/document"
)

// createRunRequest triggers one synchronous pipeline run.
type createRunRequest struct {
	SourceText string   `json:"source_text"`
	SourcePath string   `json:"source_path"`
	Sections   []string `json:"sections"`
}

type sectionDTO struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Status          string   `json:"status"`
	Draft           string   `json:"draft,omitempty"`
	Retries         int      `json:"retries"`
	Passed          bool     `json:"passed"`
	ForcedPass      bool     `json:"forced_pass"`
	FeedbackHistory []string `json:"feedback_history,omitempty"`
}

type runResponse struct {
	RunID            string       `json:"run_id"`
	Failed           bool         `json:"failed"`
	FailedSections   []string     `json:"failed_sections,omitempty"`
	Report           string       `json:"report,omitempty"`
	Sections         []sectionDTO `json:"sections"`
	Suggestions      []string     `json:"suggestions,omitempty"`
	TotalCostUSD     float64      `json:"total_cost_usd"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
}

func runResponseFromState(runState *core.RunState, failed bool) runResponse {
	resp := runResponse{
		RunID:          runState.RunID,
		Failed:         failed,
		FailedSections: runState.FailedSections(),
		Report:         runState.FinalReport,
		Suggestions:    runState.Suggestions,
		TotalCostUSD:   runState.Ledger.TotalCostUSD(),
	}
	resp.PromptTokens, resp.CompletionTokens = runState.Ledger.TotalTokens()
	for _, id := range runState.SectionOrder {
		section := runState.Sections[id]
		resp.Sections = append(resp.Sections, sectionDTO{
			ID:              section.ID,
			Title:           section.Title,
			Status:          string(section.Status),
			Draft:           section.Draft,
			Retries:         section.Retries,
			Passed:          section.Passed,
			ForcedPass:      section.ForcedPass,
			FeedbackHistory: section.FeedbackHistory,
		})
	}
	return resp
}

// handleCreateRun runs the pipeline synchronously and archives the result.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SourceText != "" && req.SourcePath != "" {
		respondError(w, http.StatusBadRequest, "source_text and source_path are mutually exclusive")
		return
	}

	sourceText := req.SourceText
	if sourceText == "" {
		loaded, err := document.Load(req.SourcePath)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		sourceText = loaded
	}

	sections := req.Sections
	if len(sections) == 0 {
		sections = s.defaultSections
	}

	result, err := s.runner.Run(r.Context(), sourceText, sections)
	if err != nil && result == nil {
		respondDomainError(w, err)
		return
	}

	if s.archive != nil {
		if saveErr := s.archive.SaveRun(r.Context(), result.State, result.Failed()); saveErr != nil {
			s.logger.Error("archiving run failed", "run_id", result.State.RunID, "error", saveErr)
		}
	}

	respondJSON(w, http.StatusCreated, runResponseFromState(result.State, result.Failed()))
}

// handleListRuns lists archived runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusServiceUnavailable, "run archive not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	summaries, err := s.archive.ListRuns(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": summaries})
}

// handleGetRun returns one archived run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusServiceUnavailable, "run archive not configured")
		return
	}

	runID := chi.URLParam(r, "runID")
	stored, err := s.archive.GetRun(r.Context(), runID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, runResponseFromState(stored.State, stored.Failed))
}
