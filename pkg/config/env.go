package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envPrefix is prepended to every environment variable this process reads.
const envPrefix = "DOMAIN_MCP_"

// EnvSettings holds environment-driven settings. Everything here has a safe
// default so the server starts with no environment at all; the LLM block
// stays disabled until provider, key, and model are all present.
type EnvSettings struct {
	LogLevel string

	// HTTP surface
	HTTPAuthToken string
	CORSOrigins   []string

	// LLM configuration
	LLMProvider       string
	LLMAPIKey         string
	LLMModel          string
	LLMGeminiEndpoint string
	LLMGeminiProject  string
	LLMTemperature    float64
	LLMMaxTokens      int
	LLMMaxIterations  int

	// Rate limiting for /api/query
	RateLimitEnabled         bool
	RateLimitRequestsPerHour int
	RateLimitTokensPerHour   int
	RateLimitAdminKey        string

	// Query input validation
	QueryMaxLength int
}

// LoadEnv reads EnvSettings from the process environment.
// Malformed numeric values fall back to defaults with an error noted in the
// returned slice so callers can log them without failing startup.
func LoadEnv() (EnvSettings, []error) {
	var warnings []error

	s := EnvSettings{
		LogLevel:                 envString("LOG_LEVEL", "info"),
		HTTPAuthToken:            envString("HTTP_TOKEN", ""),
		LLMProvider:              envString("LLM_PROVIDER", ""),
		LLMAPIKey:                envString("LLM_API_KEY", ""),
		LLMModel:                 envString("LLM_MODEL", ""),
		LLMGeminiEndpoint:        envString("LLM_GEMINI_ENDPOINT", ""),
		LLMGeminiProject:         envString("LLM_GEMINI_PROJECT", ""),
		RateLimitAdminKey:        envString("RATE_LIMIT_ADMIN_KEY", ""),
		LLMTemperature:           0.1,
		LLMMaxTokens:             4096,
		LLMMaxIterations:         10,
		RateLimitEnabled:         true,
		RateLimitRequestsPerHour: 100,
		RateLimitTokensPerHour:   100000,
		QueryMaxLength:           2000,
	}

	if raw := envString("CORS_ORIGINS", ""); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				s.CORSOrigins = append(s.CORSOrigins, o)
			}
		}
	}

	warnings = appendFloat(warnings, "LLM_TEMPERATURE", &s.LLMTemperature, 0, 1)
	warnings = appendInt(warnings, "LLM_MAX_TOKENS", &s.LLMMaxTokens, 1, 32768)
	warnings = appendInt(warnings, "LLM_MAX_ITERATIONS", &s.LLMMaxIterations, 1, 100)
	warnings = appendBool(warnings, "RATE_LIMIT_ENABLED", &s.RateLimitEnabled)
	warnings = appendInt(warnings, "RATE_LIMIT_REQUESTS_PER_HOUR", &s.RateLimitRequestsPerHour, 1, 1<<31-1)
	warnings = appendInt(warnings, "RATE_LIMIT_TOKENS_PER_HOUR", &s.RateLimitTokensPerHour, 1000, 1<<31-1)
	warnings = appendInt(warnings, "QUERY_MAX_LENGTH", &s.QueryMaxLength, 100, 10000)

	return s, warnings
}

// LLMConfigured reports whether all three LLM settings are present.
func (s EnvSettings) LLMConfigured() bool {
	return s.LLMProvider != "" && s.LLMAPIKey != "" && s.LLMModel != ""
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return def
}

func appendInt(warnings []error, key string, dst *int, min, max int) []error {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok || raw == "" {
		return warnings
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return append(warnings, fmt.Errorf("%s%s: %w", envPrefix, key, err))
	}
	if v < min || v > max {
		return append(warnings, fmt.Errorf("%s%s: value %d out of range [%d, %d]", envPrefix, key, v, min, max))
	}
	*dst = v
	return warnings
}

func appendFloat(warnings []error, key string, dst *float64, min, max float64) []error {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok || raw == "" {
		return warnings
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return append(warnings, fmt.Errorf("%s%s: %w", envPrefix, key, err))
	}
	if v < min || v > max {
		return append(warnings, fmt.Errorf("%s%s: value %v out of range [%v, %v]", envPrefix, key, v, min, max))
	}
	*dst = v
	return warnings
}

func appendBool(warnings []error, key string, dst *bool) []error {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok || raw == "" {
		return warnings
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return append(warnings, fmt.Errorf("%s%s: %w", envPrefix, key, err))
	}
	*dst = v
	return warnings
}
