// Package export writes run artifacts to disk: the final markdown report and
// a Jupyter notebook (nbformat v4) that documents one complete run. All
// writes are atomic so a crash never leaves a half-written artifact.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
)

// WriteReport writes the final markdown report to path.
func WriteReport(path, report string) error {
	if err := atomicWriteFile(path, []byte(report), 0o644); err != nil {
		return core.ErrState("report_write", fmt.Sprintf("writing report to %q", path)).WithCause(err)
	}
	return nil
}

// notebook is a minimal nbformat v4 document.
type notebook struct {
	Cells         []cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

type cell struct {
	CellType       string         `json:"cell_type"`
	ID             string         `json:"id"`
	Metadata       map[string]any `json:"metadata"`
	Source         []string       `json:"source"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	Outputs        []any          `json:"outputs,omitempty"`
}

// sourceLines splits text the way nbformat stores cell sources: one entry
// per line, newlines retained on all but the last.
func sourceLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func markdownCell(text string) cell {
	return cell{
		CellType: "markdown",
		ID:       uuid.NewString()[:8],
		Metadata: map[string]any{},
		Source:   sourceLines(text),
	}
}

func codeCell(text string) cell {
	return cell{
		CellType: "code",
		ID:       uuid.NewString()[:8],
		Metadata: map[string]any{},
		Source:   sourceLines(text),
		Outputs:  []any{},
	}
}

// WriteNotebook writes a notebook documenting the run: a header, the final
// report, the per-call cost breakdown and a shell cell that reproduces the
// run.
func WriteNotebook(path string, state *core.RunState, reproduceCommand string) error {
	var costs strings.Builder
	costs.WriteString("## Cost Ledger\n\n")
	costs.WriteString("| node | role | model | in | out | cost |\n")
	costs.WriteString("|------|------|-------|---:|----:|-----:|\n")
	for _, record := range state.Ledger.Records() {
		fmt.Fprintf(&costs, "| %s | %s | %s | %d | %d | $%.4f |\n",
			record.Node, record.Role, record.Model,
			record.PromptTokens, record.CompletionTokens, record.CostUSD)
	}
	promptTokens, completionTokens := state.Ledger.TotalTokens()
	fmt.Fprintf(&costs, "| **total** | | | %d | %d | $%.4f |\n",
		promptTokens, completionTokens, state.Ledger.TotalCostUSD())

	nb := notebook{
		Cells: []cell{
			markdownCell(fmt.Sprintf("# Finagent Run %s\n\nGenerated %s. Sections: %s.\n",
				state.RunID,
				state.CreatedAt.Format("2006-01-02 15:04:05 UTC"),
				strings.Join(state.SectionOrder, ", "))),
			markdownCell(state.FinalReport),
			markdownCell(costs.String()),
			codeCell("# Reproduce this run:\n!" + reproduceCommand),
		},
		Metadata: map[string]any{
			"language_info": map[string]any{"name": "markdown"},
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}

	data, err := json.MarshalIndent(nb, "", " ")
	if err != nil {
		return core.ErrInternal("notebook_encode", "encoding notebook").WithCause(err)
	}
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return core.ErrState("notebook_write", fmt.Sprintf("writing notebook to %q", path)).WithCause(err)
	}
	return nil
}
