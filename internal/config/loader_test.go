package config

import (
	"os"
	"path/filepath"
	"testing"
)

// emptyConfigFile gives the loader an explicit, empty config file so tests
// never pick up a developer's real ~/.config/finagent/config.yaml.
func emptyConfigFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".finagent.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigFile(emptyConfigFile(t)).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "auto" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Model.Name != "gpt-5-mini" {
		t.Fatalf("unexpected model default: %q", cfg.Model.Name)
	}
	if cfg.Pipeline.MaxRetries != 2 {
		t.Fatalf("unexpected retry default: %d", cfg.Pipeline.MaxRetries)
	}
	want := []string{"balance_sheet", "income_statement", "cash_flows"}
	if len(cfg.Pipeline.Sections) != len(want) {
		t.Fatalf("unexpected section defaults: %v", cfg.Pipeline.Sections)
	}
	for i := range want {
		if cfg.Pipeline.Sections[i] != want[i] {
			t.Fatalf("unexpected section defaults: %v", cfg.Pipeline.Sections)
		}
	}
	if cfg.State.Path != ".finagent/runs.db" {
		t.Fatalf("unexpected state default: %q", cfg.State.Path)
	}
}

func TestLoader_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: debug
  format: json
model:
  name: gpt-4o
  temperature: 0.3
pipeline:
  sections: [summary, risks]
  max_retries: 1
  review: true
pricing:
  gpt-4o:
    input_per_1k: 0.30
    output_per_1k: 1.20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log config not loaded: %+v", cfg.Log)
	}
	if cfg.Model.Name != "gpt-4o" || cfg.Model.Temperature != 0.3 {
		t.Fatalf("model config not loaded: %+v", cfg.Model)
	}
	if len(cfg.Pipeline.Sections) != 2 || !cfg.Pipeline.Review {
		t.Fatalf("pipeline config not loaded: %+v", cfg.Pipeline)
	}
	if cfg.Pricing["gpt-4o"].OutputPer1K != 1.20 {
		t.Fatalf("pricing override not loaded: %+v", cfg.Pricing)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("FINAGENT_MODEL_NAME", "gpt-5")
	t.Setenv("FINAGENT_PIPELINE_MAX_RETRIES", "5")

	cfg, err := NewLoader().WithConfigFile(emptyConfigFile(t)).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.Name != "gpt-5" {
		t.Fatalf("env override ignored: %q", cfg.Model.Name)
	}
	if cfg.Pipeline.MaxRetries != 5 {
		t.Fatalf("env override ignored: %d", cfg.Pipeline.MaxRetries)
	}
}

func TestLoader_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log:
  level: loud
pipeline:
  max_retries: -1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Log:      LogConfig{Level: "info", Format: "auto"},
		Model:    ModelConfig{Name: "gpt-5-mini"},
		Pipeline: PipelineConfig{Sections: []string{"summary"}, MaxRetries: 2},
		State:    StateConfig{Path: "runs.db"},
		Server:   ServerConfig{Addr: ":8080"},
	}
	if err := Validate(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	dup := *valid
	dup.Pipeline = PipelineConfig{Sections: []string{"summary", "summary"}}
	if err := Validate(&dup); err == nil {
		t.Fatal("duplicate sections accepted")
	}

	hot := *valid
	hot.Model = ModelConfig{Name: "m", Temperature: 3}
	if err := Validate(&hot); err == nil {
		t.Fatal("out-of-range temperature accepted")
	}
}
