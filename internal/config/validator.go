package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"auto": true, "json": true, "text": true}

// Validate checks the configuration for inconsistent or impossible values.
func Validate(cfg *Config) error {
	var errs ValidationErrors
	add := func(field string, value interface{}, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if !validLogLevels[cfg.Log.Level] {
		add("log.level", cfg.Log.Level, "must be one of debug, info, warn, error")
	}
	if !validLogFormats[cfg.Log.Format] {
		add("log.format", cfg.Log.Format, "must be one of auto, json, text")
	}

	if cfg.Model.Name == "" {
		add("model.name", cfg.Model.Name, "must not be empty")
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		add("model.temperature", cfg.Model.Temperature, "must be between 0 and 2")
	}

	if len(cfg.Pipeline.Sections) == 0 {
		add("pipeline.sections", cfg.Pipeline.Sections, "at least one section is required")
	}
	seen := make(map[string]bool, len(cfg.Pipeline.Sections))
	for _, id := range cfg.Pipeline.Sections {
		if seen[id] {
			add("pipeline.sections", id, "section listed twice")
		}
		seen[id] = true
	}
	if cfg.Pipeline.MaxRetries < 0 {
		add("pipeline.max_retries", cfg.Pipeline.MaxRetries, "must be >= 0")
	}

	for model, price := range cfg.Pricing {
		if price.InputPer1K < 0 || price.OutputPer1K < 0 {
			add("pricing."+model, price, "prices must be >= 0")
		}
	}

	if cfg.State.Path == "" {
		add("state.path", cfg.State.Path, "must not be empty")
	}
	if cfg.Server.Addr == "" {
		add("server.addr", cfg.Server.Addr, "must not be empty")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
