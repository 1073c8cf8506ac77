// Package rules loads the optional validation rulebook that checkers hold
// drafts against. Rules are keyed by section so each checker only sees the
// rubric for its own section.
package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one checkable statement, e.g. "totals must balance".
type Rule struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Rulebook maps section IDs to their rules. The empty rulebook is valid and
// means checkers judge on general quality alone.
type Rulebook struct {
	Sections map[string][]Rule `yaml:"sections"`
}

// Empty returns a rulebook with no rules.
func Empty() *Rulebook {
	return &Rulebook{Sections: map[string][]Rule{}}
}

// Load reads a YAML rulebook from path. An empty path yields the empty
// rulebook.
func Load(path string) (*Rulebook, error) {
	if path == "" {
		return Empty(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rulebook: %w", err)
	}

	var book Rulebook
	if err := yaml.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("parsing rulebook: %w", err)
	}
	if book.Sections == nil {
		book.Sections = map[string][]Rule{}
	}
	return &book, nil
}

// For returns the rules for a section, or nil when none are defined.
func (b *Rulebook) For(sectionID string) []Rule {
	return b.Sections[sectionID]
}

// Render formats a section's rules for inclusion in a checker prompt.
func (b *Rulebook) Render(sectionID string) string {
	sectionRules := b.For(sectionID)
	if len(sectionRules) == 0 {
		return "(no section-specific rules)"
	}

	var sb strings.Builder
	for _, rule := range sectionRules {
		fmt.Fprintf(&sb, "- [%s] %s\n", rule.ID, rule.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}
