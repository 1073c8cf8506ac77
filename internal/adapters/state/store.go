// Package state persists completed runs to SQLite so they can be listed and
// inspected after the process exits. The store is an exporter on the side of
// the pipeline: the run itself never reads from it.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// Store is a SQLite-backed run archive.
type Store struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex
}

// NewStore opens (and if needed creates) the run database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, core.ErrState("store_dir", fmt.Sprintf("creating state directory %q", dir)).WithCause(err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, core.ErrState("store_open", fmt.Sprintf("opening database %q", dbPath)).WithCause(err)
	}

	s := &Store{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table does not exist yet.
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return core.ErrState("store_migrate", "applying initial schema").WithCause(err)
		}
	}
	return nil
}

// RunSummary is one row in a run listing.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	CreatedAt        time.Time `json:"created_at"`
	Sections         int       `json:"sections"`
	Failed           bool      `json:"failed"`
	Calls            int       `json:"calls"`
	TotalCostUSD     float64   `json:"total_cost_usd"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
}

// StoredRun is a fully rehydrated archived run.
type StoredRun struct {
	State  *core.RunState `json:"state"`
	Failed bool           `json:"failed"`
}

// SaveRun archives a run, failed or not. Saving the same run ID again
// replaces the previous snapshot.
func (s *Store) SaveRun(ctx context.Context, state *core.RunState, failed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ErrState("store_tx", "beginning transaction").WithCause(err)
	}
	defer func() { _ = tx.Rollback() }()

	orderJSON, err := json.Marshal(state.SectionOrder)
	if err != nil {
		return core.ErrState("store_encode", "marshaling section order").WithCause(err)
	}
	suggestionsJSON, err := json.Marshal(state.Suggestions)
	if err != nil {
		return core.ErrState("store_encode", "marshaling suggestions").WithCause(err)
	}

	promptTokens, completionTokens := state.Ledger.TotalTokens()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, section_order, suggestions, final_report,
			failed, total_cost_usd, prompt_tokens, completion_tokens
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			section_order = excluded.section_order,
			suggestions = excluded.suggestions,
			final_report = excluded.final_report,
			failed = excluded.failed,
			total_cost_usd = excluded.total_cost_usd,
			prompt_tokens = excluded.prompt_tokens,
			completion_tokens = excluded.completion_tokens
	`,
		state.RunID, state.CreatedAt, string(orderJSON), string(suggestionsJSON),
		state.FinalReport, boolToInt(failed), state.Ledger.TotalCostUSD(),
		promptTokens, completionTokens,
	)
	if err != nil {
		return core.ErrState("store_upsert", "upserting run").WithCause(err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE run_id = ?", state.RunID); err != nil {
		return core.ErrState("store_replace", "clearing sections").WithCause(err)
	}
	for _, id := range state.SectionOrder {
		section := state.Sections[id]
		feedbackJSON, err := json.Marshal(section.FeedbackHistory)
		if err != nil {
			return core.ErrState("store_encode", "marshaling feedback history").WithCause(err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sections (
				run_id, id, title, status, draft, feedback, retries, passed, forced_pass
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			state.RunID, section.ID, section.Title, string(section.Status),
			section.Draft, string(feedbackJSON), section.Retries,
			boolToInt(section.Passed), boolToInt(section.ForcedPass),
		)
		if err != nil {
			return core.ErrState("store_insert", fmt.Sprintf("inserting section %q", id)).WithCause(err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cost_records WHERE run_id = ?", state.RunID); err != nil {
		return core.ErrState("store_replace", "clearing cost records").WithCause(err)
	}
	for _, record := range state.Ledger.Records() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cost_records (
				id, run_id, node, role, model, prompt_tokens, completion_tokens, cost_usd, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			record.ID, state.RunID, record.Node, record.Role, record.Model,
			record.PromptTokens, record.CompletionTokens, record.CostUSD, record.CreatedAt,
		)
		if err != nil {
			return core.ErrState("store_insert", "inserting cost record").WithCause(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.ErrState("store_commit", "committing run").WithCause(err)
	}
	return nil
}

// ListRuns returns run summaries, newest first, up to limit (0 means all).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.created_at, r.failed, r.total_cost_usd,
		       r.prompt_tokens, r.completion_tokens,
		       (SELECT COUNT(*) FROM sections sec WHERE sec.run_id = r.id),
		       (SELECT COUNT(*) FROM cost_records cr WHERE cr.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.ErrState("store_query", "listing runs").WithCause(err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var summary RunSummary
		var failed int
		if err := rows.Scan(
			&summary.RunID, &summary.CreatedAt, &failed, &summary.TotalCostUSD,
			&summary.PromptTokens, &summary.CompletionTokens,
			&summary.Sections, &summary.Calls,
		); err != nil {
			return nil, core.ErrState("store_scan", "scanning run row").WithCause(err)
		}
		summary.Failed = failed != 0
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrState("store_scan", "iterating run rows").WithCause(err)
	}
	return summaries, nil
}

// GetRun rehydrates one archived run. A missing ID yields a not_found state
// error.
func (s *Store) GetRun(ctx context.Context, runID string) (*StoredRun, error) {
	var (
		orderJSON, suggestionsJSON, finalReport string
		failed                                  int
		createdAt                               time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, section_order, suggestions, final_report, failed
		FROM runs WHERE id = ?
	`, runID).Scan(&createdAt, &orderJSON, &suggestionsJSON, &finalReport, &failed)
	if err == sql.ErrNoRows {
		return nil, core.ErrState("not_found", fmt.Sprintf("run %q not found", runID))
	}
	if err != nil {
		return nil, core.ErrState("store_query", "loading run").WithCause(err)
	}

	state := &core.RunState{
		RunID:     runID,
		CreatedAt: createdAt,
		Sections:  make(map[string]*core.SectionState),
	}
	if err := json.Unmarshal([]byte(orderJSON), &state.SectionOrder); err != nil {
		return nil, core.ErrState("store_decode", "decoding section order").WithCause(err)
	}
	if suggestionsJSON != "" {
		if err := json.Unmarshal([]byte(suggestionsJSON), &state.Suggestions); err != nil {
			return nil, core.ErrState("store_decode", "decoding suggestions").WithCause(err)
		}
	}
	if finalReport != "" {
		if err := state.SetFinalReport(finalReport); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, status, draft, feedback, retries, passed, forced_pass
		FROM sections WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, core.ErrState("store_query", "loading sections").WithCause(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			section      core.SectionState
			status       string
			feedbackJSON string
			passed       int
			forcedPass   int
		)
		if err := rows.Scan(&section.ID, &section.Title, &status, &section.Draft,
			&feedbackJSON, &section.Retries, &passed, &forcedPass); err != nil {
			return nil, core.ErrState("store_scan", "scanning section row").WithCause(err)
		}
		section.Status = core.SectionStatus(status)
		section.Passed = passed != 0
		section.ForcedPass = forcedPass != 0
		if feedbackJSON != "" {
			if err := json.Unmarshal([]byte(feedbackJSON), &section.FeedbackHistory); err != nil {
				return nil, core.ErrState("store_decode", "decoding feedback history").WithCause(err)
			}
		}
		state.Sections[section.ID] = &section
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrState("store_scan", "iterating section rows").WithCause(err)
	}

	costRows, err := s.db.QueryContext(ctx, `
		SELECT id, node, role, model, prompt_tokens, completion_tokens, cost_usd, created_at
		FROM cost_records WHERE run_id = ? ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, core.ErrState("store_query", "loading cost records").WithCause(err)
	}
	defer costRows.Close()
	for costRows.Next() {
		var record core.CostRecord
		if err := costRows.Scan(&record.ID, &record.Node, &record.Role, &record.Model,
			&record.PromptTokens, &record.CompletionTokens, &record.CostUSD, &record.CreatedAt); err != nil {
			return nil, core.ErrState("store_scan", "scanning cost record").WithCause(err)
		}
		state.Ledger.Append(record)
	}
	if err := costRows.Err(); err != nil {
		return nil, core.ErrState("store_scan", "iterating cost records").WithCause(err)
	}

	return &StoredRun{State: state, Failed: failed != 0}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
