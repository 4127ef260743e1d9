package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// ToolHandler executes one tool call on behalf of the LLM.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// Tool is an LLM-callable tool: handler plus the schema text injected into
// the system prompt.
type Tool struct {
	Name    string
	Schema  string
	Handler ToolHandler
}

// ToolCall is a tool invocation parsed from an LLM response.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// toolResult is the outcome of executing one tool call.
type toolResult struct {
	tool    string
	success bool
	result  any
	err     string
}

// TraceEntry records one executed tool call for the response trace.
type TraceEntry struct {
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Result     any            `json:"result"`
	DurationMS int64          `json:"duration_ms"`
}

// OrchestrationResult is the outcome of a natural-language query.
type OrchestrationResult struct {
	Answer          string       `json:"answer"`
	ToolCalls       []TraceEntry `json:"tool_calls"`
	TotalDurationMS int64        `json:"total_duration_ms"`
	LLMCalls        int          `json:"llm_calls"`
	TotalTokens     int          `json:"total_tokens"`
}

// QueryOrchestrator runs the LLM tool-calling loop: send conversation, parse
// tool calls out of the response, execute them, feed results back, repeat
// until the LLM answers without calling tools or the iteration cap is hit.
//
// Not safe for concurrent use; the HTTP layer creates one per request.
type QueryOrchestrator struct {
	client        Client
	tools         map[string]Tool
	maxIterations int
	temperature   float64
	maxTokens     int
	history       []Message
}

// NewQueryOrchestrator builds an orchestrator over the given tools.
func NewQueryOrchestrator(client Client, tools []Tool, maxIterations int, temperature float64, maxTokens int) *QueryOrchestrator {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	if temperature <= 0 {
		temperature = 0.1
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	byName := make(map[string]Tool, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
		names = append(names, t.Name)
	}

	o := &QueryOrchestrator{
		client:        client,
		tools:         byName,
		maxIterations: maxIterations,
		temperature:   temperature,
		maxTokens:     maxTokens,
	}
	o.history = []Message{{Role: RoleSystem, Content: systemPrompt(tools)}}

	slog.Info("Query orchestrator initialized",
		"max_iterations", maxIterations,
		"temperature", temperature,
		"available_tools", names)
	return o
}

// ExecuteQuery runs a natural language query to completion.
func (o *QueryOrchestrator) ExecuteQuery(ctx context.Context, query string) (OrchestrationResult, error) {
	start := time.Now()
	var trace []TraceEntry
	llmCalls := 0
	totalTokens := 0

	o.history = append(o.history, Message{Role: RoleUser, Content: userPrompt(query)})
	slog.Info("Starting query execution", "query", query, "conversation_length", len(o.history))

	finalAnswer := ""
	for iteration := 1; iteration <= o.maxIterations && finalAnswer == ""; iteration++ {
		llmCalls++

		llmStart := time.Now()
		resp, err := o.client.Complete(ctx, Request{
			Messages:    o.history,
			Temperature: o.temperature,
			MaxTokens:   o.maxTokens,
		})
		if err != nil {
			return OrchestrationResult{}, fmt.Errorf("LLM call %d: %w", llmCalls, err)
		}
		if resp.Usage != nil {
			totalTokens += resp.Usage.TotalTokens
		}

		content := strings.TrimSpace(resp.Content)
		slog.Debug("LLM response received",
			"iteration", iteration,
			"content_length", len(content),
			"duration", time.Since(llmStart).Round(time.Millisecond),
			"total_tokens", totalTokens)

		o.history = append(o.history, Message{Role: RoleAssistant, Content: content})

		calls := ParseToolCalls(content)
		if len(calls) == 0 {
			finalAnswer = content
			slog.Info("Final answer received", "iteration", iteration, "answer_length", len(content))
			break
		}

		names := make([]string, len(calls))
		for i, c := range calls {
			names[i] = c.Name
		}
		slog.Info("Tool calls requested", "iteration", iteration, "tools", names)

		results := make([]toolResult, 0, len(calls))
		for _, call := range calls {
			toolStart := time.Now()
			value, err := o.executeTool(ctx, call)
			durationMS := time.Since(toolStart).Milliseconds()

			if err != nil {
				results = append(results, toolResult{tool: call.Name, err: err.Error()})
				trace = append(trace, TraceEntry{
					Tool: call.Name, Arguments: call.Arguments,
					Result: map[string]any{"error": err.Error()}, DurationMS: durationMS,
				})
				slog.Error("Tool execution failed",
					"tool", call.Name, "error", err, "duration_ms", durationMS)
				continue
			}

			results = append(results, toolResult{tool: call.Name, success: true, result: value})
			trace = append(trace, TraceEntry{
				Tool: call.Name, Arguments: call.Arguments, Result: value, DurationMS: durationMS,
			})
			slog.Info("Tool executed", "tool", call.Name, "duration_ms", durationMS)
		}

		o.history = append(o.history, Message{Role: RoleUser, Content: formatToolResults(results)})

		if allFailed(results) {
			var lines []string
			for _, r := range results {
				lines = append(lines, fmt.Sprintf("- %s: %s", r.tool, r.err))
			}
			finalAnswer = "I encountered errors while trying to query the data:\n\n" +
				strings.Join(lines, "\n") +
				"\n\nPlease check the query parameters or try a different query."
			slog.Warn("All tools failed, terminating iteration", "iteration", iteration)
		}
	}

	if finalAnswer == "" {
		finalAnswer = fmt.Sprintf(
			"I reached the maximum number of iterations (%d) without completing the query. "+
				"Please try a simpler or more specific query.", o.maxIterations)
		slog.Warn("Max iterations reached without final answer", "iterations", o.maxIterations)
	}

	result := OrchestrationResult{
		Answer:          finalAnswer,
		ToolCalls:       trace,
		TotalDurationMS: time.Since(start).Milliseconds(),
		LLMCalls:        llmCalls,
		TotalTokens:     totalTokens,
	}
	if result.ToolCalls == nil {
		result.ToolCalls = []TraceEntry{}
	}
	slog.Info("Query execution complete",
		"total_duration_ms", result.TotalDurationMS,
		"llm_calls", result.LLMCalls,
		"tool_calls", len(result.ToolCalls),
		"total_tokens", result.TotalTokens)
	return result, nil
}

func (o *QueryOrchestrator) executeTool(ctx context.Context, call ToolCall) (any, error) {
	tool, ok := o.tools[call.Name]
	if !ok {
		return nil, fmt.Errorf("tool %q not found", call.Name)
	}
	return tool.Handler(ctx, call.Arguments)
}

func allFailed(results []toolResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.success {
			return false
		}
	}
	return true
}

// jsonBlockPattern matches fenced ```json blocks holding a single object.
var jsonBlockPattern = regexp.MustCompile("(?s)```json\\s*\\n(\\{.*?\\})\\s*\\n```")

// ParseToolCalls extracts tool calls from an LLM response. Two formats are
// accepted:
//
//	TOOL_CALL: {"name": "tool_name", "arguments": {...}}
//	```json
//	{"tool": "tool_name", "parameters": {...}}
//	```
func ParseToolCalls(content string) []ToolCall {
	var calls []ToolCall

	rest := content
	for {
		idx := strings.Index(rest, "TOOL_CALL:")
		if idx == -1 {
			break
		}
		rest = rest[idx+len("TOOL_CALL:"):]
		jsonStr := extractJSONObject(rest)
		if jsonStr == "" {
			continue
		}
		if call, ok := decodeToolCall(jsonStr); ok {
			calls = append(calls, call)
		} else {
			slog.Warn("Failed to parse TOOL_CALL JSON", "raw", truncate(jsonStr, 200))
		}
	}

	for _, match := range jsonBlockPattern.FindAllStringSubmatch(content, -1) {
		if call, ok := decodeToolCall(match[1]); ok {
			calls = append(calls, call)
		} else {
			slog.Warn("Failed to parse JSON block", "raw", truncate(match[1], 100))
		}
	}
	return calls
}

// decodeToolCall accepts both name/arguments and tool/parameters key pairs.
func decodeToolCall(jsonStr string) (ToolCall, bool) {
	var parsed struct {
		Name       string         `json:"name"`
		Tool       string         `json:"tool"`
		Arguments  map[string]any `json:"arguments"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return ToolCall{}, false
	}
	name := parsed.Name
	if name == "" {
		name = parsed.Tool
	}
	if name == "" {
		return ToolCall{}, false
	}
	args := parsed.Arguments
	if args == nil {
		args = parsed.Parameters
	}
	if args == nil {
		args = map[string]any{}
	}
	return ToolCall{Name: name, Arguments: args}, true
}

// extractJSONObject returns the first complete top-level JSON object in text,
// using brace counting that is string- and escape-aware so nested multiline
// objects survive.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// formatToolResults renders execution results back into the conversation.
func formatToolResults(results []toolResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if !r.success {
			parts = append(parts, fmt.Sprintf("TOOL_ERROR [%s]: %s", r.tool, r.err))
			continue
		}
		encoded, err := json.MarshalIndent(r.result, "", "  ")
		if err != nil {
			encoded = []byte(fmt.Sprintf("%v", r.result))
		}
		parts = append(parts, fmt.Sprintf("TOOL_RESULT [%s]:\n%s", r.tool, encoded))
	}
	return "Tool execution results:\n\n" + strings.Join(parts, "\n\n") + "\n\n" +
		"Based on these results, please provide your analysis or make additional " +
		"tool calls if needed."
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
