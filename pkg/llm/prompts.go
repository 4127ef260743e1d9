package llm

import (
	"fmt"
	"strings"
)

// Prompt construction. Domain knowledge is not duplicated here: the tool
// schema blocks come from the Tool definitions the surfaces register, so the
// LLM sees the same interface as any other MCP client.

func systemPrompt(tools []Tool) string {
	schemas := make([]string, 0, len(tools))
	for _, t := range tools {
		schema := t.Schema
		if schema == "" {
			schema = fmt.Sprintf("### %s\nNo documentation available.", t.Name)
		}
		schemas = append(schemas, schema)
	}

	return `You are an assistant for querying performance data.

## Tool Call Format

Execute tools using this exact syntax:
` + "```" + `
TOOL_CALL: {"name": "tool_name", "arguments": {"param1": "value1"}}
` + "```" + `

**DO NOT** just describe what you would do. **ACTUALLY EXECUTE** the tool calls.

## Available Tools

` + strings.Join(schemas, "\n\n") + `

## Workflow

1. Read MCP resources to understand the domain (use resources/read tool)
2. Execute data queries (use get_key_metrics tool)
3. Format responses according to templates from resources

Start by reading domain://examples/boot-time-report-template to understand how to structure your response.
`
}

func userPrompt(query string) string {
	return fmt.Sprintf(`User Query: %s

IMPORTANT: You must EXECUTE the necessary tool calls using the TOOL_CALL: format specified in the system prompt.

DO NOT just explain what you would do. ACTUALLY call the tools by outputting:
TOOL_CALL: {"name": "tool_name", "arguments": {...}}

Think step-by-step:
1. Determine which tool(s) to call and what parameters to use
2. Output the TOOL_CALL: line(s) for each tool
3. Wait for results
4. Provide your final answer based on the actual data

Start by making your first tool call now.`, query)
}

// GetKeyMetricsToolSchema documents the primary metrics tool for the system
// prompt.
const GetKeyMetricsToolSchema = `### get_key_metrics
Fetch canonical metric points from the configured performance data source.

**PRIMARY TOOL** for boot time and performance analysis queries.

**Parameters (all optional):**
- ` + "`run_id`" + ` (string): Fetch metrics for a specific run ID
  - Example: "123456"
  - When provided, fetches only that run (ignores time filters)
  - **Use this for "analyze run ID X" queries**
- ` + "`from_timestamp`" + ` (string): Start time filter. Accepts:
  - Relative: "30 days ago", "7d", "now"
  - ISO 8601: "2025-01-01T00:00:00Z"
- ` + "`to_timestamp`" + ` (string): End time filter (same formats as from_timestamp)
- ` + "`os_id`" + ` (string): OS filter. Examples: "rhel", "autosd"
- ` + "`run_type`" + ` (string): Filter by test run type
  - Values: "nightly", "ci", "release", "manual"
  - **Use this when the query specifies run type** (e.g., "nightly results only")
- ` + "`limit`" + ` (integer): Page size for fetching (default: 100)
  - The server automatically paginates to fetch ALL results

**DO NOT use these parameters** (they are auto-configured):
- test_id (auto-discovered for boot time queries)
- source_id (auto-selected)
- dataset_types (defaults to ["boot-time-verbose"])

**Returns:**
- ` + "`metric_points`" + `: List of metric measurements
  - Each point has: metric_id, timestamp, value, dimensions (os_id, mode, target), source
- ` + "`domain_model_version`" + `: "1.0.0"

**Examples:**
` + "```" + `
TOOL_CALL: {"name": "get_key_metrics", "arguments": {"from_timestamp": "90 days ago", "os_id": "rhel"}}
TOOL_CALL: {"name": "get_key_metrics", "arguments": {"from_timestamp": "30 days ago", "run_type": "nightly"}}
` + "```" + `
`

// ResourcesReadToolSchema documents the resource reader tool for the system
// prompt.
const ResourcesReadToolSchema = `### resources/read
Read an MCP resource containing domain knowledge or templates.

**Parameters:**
- ` + "`uri`" + ` (string, required): Resource URI to read
  - Format: "domain://<category>/<resource-name>"
  - Examples:
    - "domain://examples/boot-time-report-template"
    - "domain://glossary/boot-time"

**Returns:**
Resource content (JSON, markdown, or plain text)

**Example:**
` + "```" + `
TOOL_CALL: {"name": "resources/read", "arguments": {"uri": "domain://examples/boot-time-report-template"}}
` + "```" + `
`
