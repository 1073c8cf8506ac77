package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
)

func exportableState(t *testing.T) *core.RunState {
	t.Helper()
	state, err := core.NewRunState("doc", []string{"summary"}, map[string]string{"summary": "Executive Summary"})
	if err != nil {
		t.Fatal(err)
	}
	section := state.Sections["summary"]
	section.Draft = "All good."
	section.Status = core.SectionStatusDone
	section.Passed = true
	state.Ledger.Append(core.NewCostRecord("worker:summary", "worker", "gpt-5-mini", 100, 50, 0.0125))
	if err := state.SetFinalReport("# Financial Analysis Report\n\n## Executive Summary\n\nAll good.\n"); err != nil {
		t.Fatal(err)
	}
	return state
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := WriteReport(path, "# Report\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# Report\n" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestWriteNotebook(t *testing.T) {
	state := exportableState(t)
	path := filepath.Join(t.TempDir(), "run.ipynb")

	if err := WriteNotebook(path, state, "finagent run --sections summary"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var nb struct {
		Cells []struct {
			CellType string   `json:"cell_type"`
			Source   []string `json:"source"`
		} `json:"cells"`
		NBFormat int `json:"nbformat"`
	}
	if err := json.Unmarshal(data, &nb); err != nil {
		t.Fatalf("notebook is not valid JSON: %v", err)
	}
	if nb.NBFormat != 4 {
		t.Fatalf("expected nbformat 4, got %d", nb.NBFormat)
	}
	if len(nb.Cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(nb.Cells))
	}

	joined := func(i int) string { return strings.Join(nb.Cells[i].Source, "") }
	if !strings.Contains(joined(0), state.RunID) {
		t.Fatal("header cell missing run ID")
	}
	if !strings.Contains(joined(1), "Executive Summary") {
		t.Fatal("report cell missing report content")
	}
	if !strings.Contains(joined(2), "$0.0125") {
		t.Fatal("cost cell missing ledger entry")
	}
	if nb.Cells[3].CellType != "code" || !strings.Contains(joined(3), "finagent run") {
		t.Fatal("reproduce cell missing command")
	}
}

func TestSourceLines(t *testing.T) {
	lines := sourceLines("a\nb\nc")
	if len(lines) != 3 || lines[0] != "a\n" || lines[2] != "c" {
		t.Fatalf("unexpected split: %q", lines)
	}
	if got := sourceLines("trailing\n"); len(got) != 1 || got[0] != "trailing\n" {
		t.Fatalf("unexpected split: %q", got)
	}
}
