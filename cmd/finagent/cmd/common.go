package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/D0nald-Chump/Finagent-v1/internal/adapters/llm"
	"github.com/D0nald-Chump/Finagent-v1/internal/adapters/state"
	"github.com/D0nald-Chump/Finagent-v1/internal/config"
	"github.com/D0nald-Chump/Finagent-v1/internal/logging"
	"github.com/D0nald-Chump/Finagent-v1/internal/pipeline"
	"github.com/D0nald-Chump/Finagent-v1/internal/pricing"
	"github.com/D0nald-Chump/Finagent-v1/internal/rules"
)

// loadConfig loads configuration with CLI flag bindings applied.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	return loader.Load()
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// buildPipeline wires the full run pipeline from config: provider chain,
// pricing table, rulebook, worker/checker registry.
func buildPipeline(cfg *config.Config, logger *logging.Logger, plan, review bool) (*pipeline.Pipeline, error) {
	rulebook, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		llm.FromEnv(logger),
		pricing.NewTable(cfg.Pricing),
		rulebook,
		pipeline.Config{
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			MaxRetries:  cfg.Pipeline.MaxRetries,
			Plan:        plan,
			Review:      review,
		},
		logger,
	)
}

// openStore opens the run archive named in config.
func openStore(cfg *config.Config) (*state.Store, error) {
	return state.NewStore(cfg.State.Path)
}

// checkSections warns about section IDs without a dedicated analyst prompt,
// with a fuzzy "did you mean" hint on likely typos. Unknown sections still
// run through the generic analyst.
func checkSections(registry *pipeline.Registry, sectionIDs []string, logger *logging.Logger) {
	for _, id := range sectionIDs {
		if registry.Known(id) {
			continue
		}
		msg := fmt.Sprintf("section %q has no dedicated analyst, using the generic one", id)
		if suggestions := registry.Suggest(id); len(suggestions) > 0 {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestions[0])
		}
		logger.Warn(msg, "known_sections", strings.Join(registry.KnownIDs(), ","))
	}
}
