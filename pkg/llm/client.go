// Package llm provides the natural-language query surface: a Gemini client,
// the tool-calling orchestration loop, and per-client rate limiting.
//
// The LLM is just another consumer of the same tools and resources the MCP
// surface exposes; no domain knowledge lives in this package.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/perfscale/domain-mcp/pkg/config"
)

// defaultGeminiEndpoint is the public Gemini API base. Corporate Vertex AI
// deployments override it via LLM_GEMINI_ENDPOINT.
const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in an LLM conversation.
type Message struct {
	Role    string
	Content string
}

// Request is a completion request.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a completion result.
type Response struct {
	Content string
	Usage   *Usage
}

// Client generates completions.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Model() string
}

// safetyBlockedAnswer replaces the completion when Gemini's safety filters
// reject the response. Performance queries occasionally trip the filters on
// very long structured prompts.
const safetyBlockedAnswer = "I apologize, but I cannot complete this query due to " +
	"content safety restrictions. This can happen with very long or complex queries. " +
	"Please try:\n" +
	"1. Simplifying your query (fewer requirements/rules)\n" +
	"2. Breaking it into smaller queries\n" +
	"3. Rephrasing with less structured output requirements\n"

// Gemini request/response wire shapes (REST generateContent).

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []geminiSafetySetting   `json:"safetySettings,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Technical queries are not harmful content; only block the highest-severity
// matches in every category.
var geminiSafetySettings = []geminiSafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
}

// Gemini calls the Gemini generateContent REST API.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGemini builds a Gemini client. endpoint defaults to the public API when
// empty.
func NewGemini(apiKey, model, endpoint string) *Gemini {
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	slog.Info("Initialized Gemini client", "model", model, "endpoint", endpoint)
	return &Gemini{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

// Complete generates a completion. A safety-filter block returns a helpful
// fallback answer instead of an error.
func (g *Gemini) Complete(ctx context.Context, req Request) (Response, error) {
	body := geminiRequest{SafetySettings: geminiSafetySettings}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			// Gemini takes the system prompt out of band.
			body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
		case RoleAssistant:
			body.Contents = append(body.Contents, geminiContent{
				Role: "model", Parts: []geminiPart{{Text: msg.Content}},
			})
		default:
			body.Contents = append(body.Contents, geminiContent{
				Role: "user", Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}

	genCfg := &geminiGenerationConfig{}
	if req.Temperature > 0 {
		genCfg.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = req.MaxTokens
	}
	if genCfg.Temperature != nil || genCfg.MaxOutputTokens > 0 {
		body.GenerationConfig = genCfg
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	slog.Debug("Sending request to Gemini",
		"model", g.model,
		"messages", len(req.Messages),
		"temperature", req.Temperature,
		"max_tokens", req.MaxTokens)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("gemini request: %w", err)
	}
	defer httpResp.Body.Close()

	var decoded geminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("decoding gemini response (status %d): %w", httpResp.StatusCode, err)
	}
	if decoded.Error != nil {
		return Response{}, fmt.Errorf("gemini API error %d (%s): %s",
			decoded.Error.Code, decoded.Error.Status, decoded.Error.Message)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("gemini returned status %d", httpResp.StatusCode)
	}

	resp := Response{}
	if decoded.UsageMetadata != nil {
		resp.Usage = &Usage{
			PromptTokens:     decoded.UsageMetadata.PromptTokenCount,
			CompletionTokens: decoded.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      decoded.UsageMetadata.TotalTokenCount,
		}
	}

	if len(decoded.Candidates) == 0 {
		return Response{}, fmt.Errorf("gemini returned no candidates")
	}
	candidate := decoded.Candidates[0]

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	resp.Content = sb.String()

	if resp.Content == "" && candidate.FinishReason == "SAFETY" {
		slog.Warn("Gemini response blocked by safety filters", "finish_reason", candidate.FinishReason)
		resp.Content = safetyBlockedAnswer +
			fmt.Sprintf("\nTechnical details: finish_reason=%s", candidate.FinishReason)
	}

	slog.Info("Received response from Gemini",
		"content_length", len(resp.Content), "finish_reason", candidate.FinishReason)
	return resp, nil
}

// NewFromEnv builds an LLM client from environment settings. Returns
// (nil, nil) when the LLM block is absent or incomplete, so callers can treat
// natural-language queries as an optional feature.
func NewFromEnv(env config.EnvSettings) (Client, error) {
	if env.LLMProvider == "" {
		slog.Info("LLM provider not configured, LLM features disabled")
		return nil, nil
	}
	if env.LLMAPIKey == "" {
		slog.Warn("LLM_PROVIDER set but LLM_API_KEY missing, LLM features disabled")
		return nil, nil
	}
	if env.LLMModel == "" {
		slog.Warn("LLM_PROVIDER set but LLM_MODEL missing, LLM features disabled")
		return nil, nil
	}

	switch strings.ToLower(env.LLMProvider) {
	case "gemini":
		return NewGemini(env.LLMAPIKey, env.LLMModel, env.LLMGeminiEndpoint), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q, supported: gemini", env.LLMProvider)
	}
}
