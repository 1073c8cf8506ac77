// Package config loads and validates application configuration from files,
// environment variables and CLI flags.
package config

import (
	"github.com/D0nald-Chump/Finagent-v1/internal/pricing"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig                     `mapstructure:"log"`
	Model    ModelConfig                   `mapstructure:"model"`
	Pipeline PipelineConfig                `mapstructure:"pipeline"`
	Pricing  map[string]pricing.ModelPrice `mapstructure:"pricing"`
	Rules    RulesConfig                   `mapstructure:"rules"`
	State    StateConfig                   `mapstructure:"state"`
	Export   ExportConfig                  `mapstructure:"export"`
	Server   ServerConfig                  `mapstructure:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModelConfig configures the LLM routing for all pipeline roles.
type ModelConfig struct {
	Name        string  `mapstructure:"name"`
	Temperature float32 `mapstructure:"temperature"`
}

// PipelineConfig configures run behavior.
type PipelineConfig struct {
	Sections   []string `mapstructure:"sections"`
	MaxRetries int      `mapstructure:"max_retries"`
	Plan       bool     `mapstructure:"plan"`
	Review     bool     `mapstructure:"review"`
}

// RulesConfig points at the optional section rulebook.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// StateConfig configures the run archive.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// ExportConfig configures where run artifacts land.
type ExportConfig struct {
	ReportPath   string `mapstructure:"report_path"`
	NotebookPath string `mapstructure:"notebook_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}
