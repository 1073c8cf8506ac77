package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_EmptyPathYieldsEmptyRulebook(t *testing.T) {
	book, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := book.Render("balance_sheet"); got != "(no section-specific rules)" {
		t.Fatalf("unexpected render for empty rulebook: %q", got)
	}
}

func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `sections:
  balance_sheet:
    - id: BS-1
      description: totals must balance
    - id: BS-2
      description: units must be stated
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	book, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(book.For("balance_sheet")) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(book.For("balance_sheet")))
	}
	rendered := book.Render("balance_sheet")
	if !strings.Contains(rendered, "[BS-1] totals must balance") {
		t.Fatalf("unexpected rendering: %q", rendered)
	}
	if book.For("cash_flows") != nil {
		t.Fatal("expected no rules for unlisted section")
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing rulebook")
	}
}
