package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
	"github.com/D0nald-Chump/Finagent-v1/internal/pipeline"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2024-01-15")

	t.Run("version command output", func(t *testing.T) {
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		versionCmd.Run(versionCmd, []string{})

		w.Close()
		os.Stdout = oldStdout

		var buf bytes.Buffer
		_, err := buf.ReadFrom(r)
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "v1.2.3")
		assert.Contains(t, output, "abc123def")
		assert.Contains(t, output, "2024-01-15")
		assert.Contains(t, output, "finagent")
	})

	t.Run("GetVersion", func(t *testing.T) {
		SetVersion("v9.9.9", "c", "d")
		assert.Equal(t, "v9.9.9", GetVersion())
	})
}

func TestRootCommandStructure(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"run", "runs", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-format"))
}

func TestRunCommandFlags(t *testing.T) {
	for _, flag := range []string{"file", "sections", "model", "max-retries", "plan", "review", "out", "notebook", "no-save"} {
		assert.NotNil(t, runCmd.Flags().Lookup(flag), "missing flag %q", flag)
	}
}

func TestCheckSectionsDoesNotReject(t *testing.T) {
	// Unknown sections fall back to the generic analyst; checkSections only
	// warns and must never panic or filter.
	registry := pipeline.NewRegistry()
	assert.NotPanics(t, func() {
		checkSections(registry, []string{"summary", "balanse_sheet", "made_up"}, logging.NewNop())
	})
}

func TestPickPath(t *testing.T) {
	assert.Equal(t, "flag.md", pickPath("flag.md", "config.md"))
	assert.Equal(t, "config.md", pickPath("", "config.md"))
	assert.Equal(t, "", pickPath("", ""))
}

func TestReproduceCommand(t *testing.T) {
	runFile = "filing.html"
	defer func() { runFile = "" }()

	got := reproduceCommand([]string{"summary", "risks"})
	assert.Equal(t, "finagent run --file filing.html --sections summary,risks", got)
}
