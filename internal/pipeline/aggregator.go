package pipeline

import (
	"fmt"
	"strings"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
)

// Aggregator assembles the final report from terminal section states. It
// must only run once the join barrier has confirmed every section is done,
// and it is idempotent: aggregating the same terminal state twice yields
// byte-identical output.
type Aggregator struct{}

// Aggregate concatenates section drafts in the fixed presentation order and
// appends review suggestions, then populates the run's write-once report.
func (Aggregator) Aggregate(state *core.RunState) (string, error) {
	for _, id := range state.SectionOrder {
		if state.Sections[id].Status != core.SectionStatusDone {
			return "", core.ErrAggregationPrecondition(id)
		}
	}

	var sb strings.Builder
	sb.WriteString("# Financial Analysis Report\n")

	for _, id := range state.SectionOrder {
		section := state.Sections[id]
		fmt.Fprintf(&sb, "\n## %s\n\n%s\n", section.Title, section.Draft)
	}

	if len(state.Suggestions) > 0 {
		sb.WriteString("\n## Review Notes\n\n")
		for _, suggestion := range state.Suggestions {
			fmt.Fprintf(&sb, "- %s\n", suggestion)
		}
	}

	report := sb.String()
	if err := state.SetFinalReport(report); err != nil {
		return "", err
	}
	return report, nil
}
