// Package document loads the source text a run analyzes. It reads plain text
// or markdown directly, converts HTML filings to markdown, and falls back to
// an embedded sample filing so the pipeline can run with no input at all.
package document

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
)

//go:embed sample_report.md
var sampleReport string

// Sample returns the embedded sample filing.
func Sample() string {
	return sampleReport
}

// Load reads the document at path. An empty path yields the embedded sample.
// Files ending in .html or .htm are converted to markdown so the prompts see
// prose instead of tag soup.
func Load(path string) (string, error) {
	if path == "" {
		return sampleReport, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", core.ErrValidation("unreadable_document",
			fmt.Sprintf("cannot read document %q", path)).WithCause(err)
	}

	text := string(raw)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		converted, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return "", core.ErrValidation("html_conversion",
				fmt.Sprintf("cannot convert %q to markdown", path)).WithCause(err)
		}
		text = converted
	}

	if strings.TrimSpace(text) == "" {
		return "", core.ErrValidation("empty_document",
			fmt.Sprintf("document %q is empty", path))
	}
	return text, nil
}
