package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	s, warnings := LoadEnv()
	require.Empty(t, warnings)

	assert.Equal(t, "info", s.LogLevel)
	assert.Empty(t, s.HTTPAuthToken)
	assert.Empty(t, s.CORSOrigins)
	assert.Equal(t, 0.1, s.LLMTemperature)
	assert.Equal(t, 4096, s.LLMMaxTokens)
	assert.Equal(t, 10, s.LLMMaxIterations)
	assert.True(t, s.RateLimitEnabled)
	assert.Equal(t, 100, s.RateLimitRequestsPerHour)
	assert.Equal(t, 100000, s.RateLimitTokensPerHour)
	assert.Equal(t, 2000, s.QueryMaxLength)
	assert.False(t, s.LLMConfigured())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOMAIN_MCP_LOG_LEVEL", "debug")
	t.Setenv("DOMAIN_MCP_HTTP_TOKEN", "secret")
	t.Setenv("DOMAIN_MCP_CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("DOMAIN_MCP_LLM_PROVIDER", "gemini")
	t.Setenv("DOMAIN_MCP_LLM_API_KEY", "key")
	t.Setenv("DOMAIN_MCP_LLM_MODEL", "gemini-1.5-pro")
	t.Setenv("DOMAIN_MCP_LLM_MAX_ITERATIONS", "5")
	t.Setenv("DOMAIN_MCP_RATE_LIMIT_ENABLED", "false")

	s, warnings := LoadEnv()
	require.Empty(t, warnings)

	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "secret", s.HTTPAuthToken)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, s.CORSOrigins)
	assert.Equal(t, 5, s.LLMMaxIterations)
	assert.False(t, s.RateLimitEnabled)
	assert.True(t, s.LLMConfigured())
}

func TestLoadEnvWarnsOnBadValuesAndKeepsDefaults(t *testing.T) {
	t.Setenv("DOMAIN_MCP_LLM_MAX_TOKENS", "not-a-number")
	t.Setenv("DOMAIN_MCP_LLM_TEMPERATURE", "3.5")
	t.Setenv("DOMAIN_MCP_QUERY_MAX_LENGTH", "50")

	s, warnings := LoadEnv()
	require.Len(t, warnings, 3)

	assert.Equal(t, 4096, s.LLMMaxTokens)
	assert.Equal(t, 0.1, s.LLMTemperature)
	assert.Equal(t, 2000, s.QueryMaxLength)
	assert.ErrorContains(t, warnings[0], "out of range")
}
