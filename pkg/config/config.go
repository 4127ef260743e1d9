// Package config loads and validates domain-mcp configuration.
//
// Two inputs exist: the YAML config file (sources and plugin flags) and
// DOMAIN_MCP_-prefixed environment variables (logging, HTTP auth, LLM and
// rate-limit settings). The loader expands {{.ENV_VAR}} templates in the YAML,
// merges per-source defaults, and validates everything up front so failures
// surface at startup instead of on the first request.
package config

import "fmt"

// Source type identifiers accepted in the config file. Aliases map several
// spellings onto the two adapter families (HTTP and stdio bridge).
const (
	SourceTypeHorreumHTTP   = "horreum-mcp-http"
	SourceTypeHorreumStdio  = "horreum-mcp-stdio"
	SourceTypeElasticsearch = "elasticsearch-stdio"
)

// httpTypeAliases and stdioTypeAliases accept the spellings older deployments
// used before the type names were settled.
var (
	httpTypeAliases  = map[string]bool{"horreum": true, "horreum-mcp-http": true, "http": true}
	stdioTypeAliases = map[string]bool{"horreum-stdio": true, "horreum-mcp-stdio": true, "stdio": true}
	esTypeAliases    = map[string]bool{"elasticsearch": true, "elasticsearch-stdio": true, "es-stdio": true}
)

// IsHTTPType reports whether a source type string selects the HTTP adapter.
func IsHTTPType(t string) bool { return httpTypeAliases[t] }

// IsStdioType reports whether a source type string selects the stdio bridge.
func IsStdioType(t string) bool { return stdioTypeAliases[t] }

// IsElasticsearchType reports whether a source type string selects the
// Elasticsearch stdio adapter.
func IsElasticsearchType(t string) bool { return esTypeAliases[t] }

// SourceConfig is the connection and retry configuration for one Source MCP.
type SourceConfig struct {
	// Endpoint is the HTTP base URL, or the executable to spawn in stdio mode.
	Endpoint          string            `yaml:"endpoint"`
	APIKey            string            `yaml:"api_key,omitempty"`
	Type              string            `yaml:"type,omitempty"`
	TimeoutSeconds    int               `yaml:"timeout_seconds,omitempty"`
	MaxRetries        int               `yaml:"max_retries,omitempty"`
	BackoffInitialMS  int               `yaml:"backoff_initial_ms,omitempty"`
	BackoffMultiplier float64           `yaml:"backoff_multiplier,omitempty"`
	// StdioArgs and Env only apply to stdio bridge sources.
	StdioArgs []string          `yaml:"stdio_args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// AppConfig is the top-level YAML config file structure.
type AppConfig struct {
	// Sources maps logical source_id to connection settings.
	Sources map[string]SourceConfig `yaml:"sources"`
	// EnabledPlugins holds feature flags for dataset-type plugins.
	// Empty means all registered plugins stay enabled.
	EnabledPlugins map[string]bool `yaml:"enabled_plugins,omitempty"`
}

// defaultSourceConfig carries the per-source defaults merged under user input.
func defaultSourceConfig() SourceConfig {
	return SourceConfig{
		Type:              SourceTypeHorreumHTTP,
		TimeoutSeconds:    30,
		MaxRetries:        1,
		BackoffInitialMS:  200,
		BackoffMultiplier: 2.0,
	}
}

// Stats summarizes loaded config for startup logging.
type Stats struct {
	Sources        int
	EnabledPlugins int
}

// Stats returns summary counts for startup logging.
func (c *AppConfig) Stats() Stats {
	enabled := 0
	for _, on := range c.EnabledPlugins {
		if on {
			enabled++
		}
	}
	return Stats{Sources: len(c.Sources), EnabledPlugins: enabled}
}

// SourceIDs returns the configured source identifiers.
func (c *AppConfig) SourceIDs() []string {
	ids := make([]string, 0, len(c.Sources))
	for id := range c.Sources {
		ids = append(ids, id)
	}
	return ids
}

// Source looks up a source by id.
func (c *AppConfig) Source(id string) (SourceConfig, error) {
	src, ok := c.Sources[id]
	if !ok {
		return SourceConfig{}, fmt.Errorf("source %q: %w", id, ErrSourceNotFound)
	}
	return src, nil
}
