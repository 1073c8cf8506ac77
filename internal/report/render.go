// Package report renders run output for the terminal: the final markdown
// report and the per-call cost breakdown.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
)

// Render pretty-prints markdown for the terminal at the given width. On any
// renderer failure the raw markdown is returned so output is never lost.
func Render(markdown string, width int) string {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// CostTable renders the cost ledger as a bordered table, one row per LLM
// call plus a totals row.
func CostTable(ledger *core.Ledger) string {
	rows := make([][]string, 0, ledger.Len()+1)
	for _, record := range ledger.Records() {
		rows = append(rows, []string{
			record.Node,
			record.Role,
			record.Model,
			fmt.Sprintf("%d", record.PromptTokens),
			fmt.Sprintf("%d", record.CompletionTokens),
			fmt.Sprintf("$%.4f", record.CostUSD),
		})
	}
	promptTokens, completionTokens := ledger.TotalTokens()
	rows = append(rows, []string{
		"total", "", "",
		fmt.Sprintf("%d", promptTokens),
		fmt.Sprintf("%d", completionTokens),
		fmt.Sprintf("$%.4f", ledger.TotalCostUSD()),
	})

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers("NODE", "ROLE", "MODEL", "IN", "OUT", "COST").
		Rows(rows...)

	return t.Render()
}

// Summary is the one-line run footer printed after the report.
func Summary(result RunSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d sections, %d calls, %d prompt + %d completion tokens, $%.4f total",
		result.Sections, result.Calls, result.PromptTokens, result.CompletionTokens, result.TotalCostUSD)
	if result.ForcedSections > 0 {
		fmt.Fprintf(&sb, " (%d forced pass)", result.ForcedSections)
	}
	return sb.String()
}

// RunSummary carries the figures the Summary footer prints.
type RunSummary struct {
	Sections         int
	Calls            int
	PromptTokens     int
	CompletionTokens int
	TotalCostUSD     float64
	ForcedSections   int
}
