package report

import (
	"strings"
	"testing"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
)

func TestRender_NeverLosesContent(t *testing.T) {
	out := Render("# Title\n\nSome body text.", 80)
	if !strings.Contains(out, "Title") || !strings.Contains(out, "Some body text") {
		t.Fatalf("rendered output lost content:\n%s", out)
	}
}

func TestRender_ZeroWidthDefaults(t *testing.T) {
	if out := Render("plain", 0); !strings.Contains(out, "plain") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCostTable(t *testing.T) {
	var ledger core.Ledger
	ledger.Append(core.NewCostRecord("worker:summary", "worker", "gpt-5-mini", 100, 50, 0.0125))
	ledger.Append(core.NewCostRecord("checker:summary", "checker", "gpt-5-mini", 200, 20, 0.013))

	out := CostTable(&ledger)
	for _, want := range []string{"worker:summary", "checker:summary", "gpt-5-mini", "$0.0125", "total", "$0.0255", "300", "70"} {
		if !strings.Contains(out, want) {
			t.Fatalf("cost table missing %q:\n%s", want, out)
		}
	}
}

func TestSummary(t *testing.T) {
	got := Summary(RunSummary{
		Sections:         3,
		Calls:            7,
		PromptTokens:     1200,
		CompletionTokens: 800,
		TotalCostUSD:     0.18,
		ForcedSections:   1,
	})
	if !strings.Contains(got, "3 sections") || !strings.Contains(got, "$0.1800") || !strings.Contains(got, "1 forced pass") {
		t.Fatalf("unexpected summary: %q", got)
	}

	clean := Summary(RunSummary{Sections: 1, Calls: 2})
	if strings.Contains(clean, "forced") {
		t.Fatalf("forced note should be omitted: %q", clean)
	}
}
