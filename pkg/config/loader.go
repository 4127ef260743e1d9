package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read the YAML file
//  2. Expand {{.ENV_VAR}} templates
//  3. Parse YAML into structs
//  4. Merge per-source defaults under user values
//  5. Validate all configuration
func Initialize(ctx context.Context, path string) (*AppConfig, error) {
	log := slog.With("config_file", path)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"sources", stats.Sources,
		"enabled_plugins", stats.EnabledPlugins)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewLoadError(path, ErrConfigNotFound)
		}
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(raw)

	var cfg AppConfig
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	// Merge defaults under each source (user values win).
	defaults := defaultSourceConfig()
	for id, src := range cfg.Sources {
		if err := mergo.Merge(&src, defaults); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("merge defaults for source %q: %w", id, err))
		}
		cfg.Sources[id] = src
	}

	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{}
	}
	if cfg.EnabledPlugins == nil {
		cfg.EnabledPlugins = map[string]bool{}
	}

	return &cfg, nil
}

// validate collects every configuration problem instead of failing on the
// first so a bad deploy surfaces the full list at once.
func validate(cfg *AppConfig) error {
	var problems []string

	for id, src := range cfg.Sources {
		if src.Endpoint == "" {
			problems = append(problems,
				NewValidationError("source", id, "endpoint", ErrMissingRequiredField).Error())
		}
		if !IsHTTPType(src.Type) && !IsStdioType(src.Type) && !IsElasticsearchType(src.Type) {
			problems = append(problems,
				NewValidationError("source", id, "type",
					fmt.Errorf("%w: unknown source type %q", ErrInvalidValue, src.Type)).Error())
		}
		if src.TimeoutSeconds < 1 {
			problems = append(problems,
				NewValidationError("source", id, "timeout_seconds",
					fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, src.TimeoutSeconds)).Error())
		}
		if src.MaxRetries < 0 {
			problems = append(problems,
				NewValidationError("source", id, "max_retries",
					fmt.Errorf("%w: must be >= 0, got %d", ErrInvalidValue, src.MaxRetries)).Error())
		}
		if src.BackoffMultiplier < 1.0 {
			problems = append(problems,
				NewValidationError("source", id, "backoff_multiplier",
					fmt.Errorf("%w: must be >= 1.0, got %v", ErrInvalidValue, src.BackoffMultiplier)).Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrValidationFailed, strings.Join(problems, "\n  - "))
	}
	return nil
}
