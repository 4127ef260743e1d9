package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/perfscale/domain-mcp/pkg/config"
	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/version"
)

// bridgeInitTimeout bounds the MCP handshake with a spawned child process.
const bridgeInitTimeout = 30 * time.Second

// toolCaller abstracts a raw MCP tool call returning the decoded JSON text
// content. StdioBridge implements it; adapters built on top of a bridge
// (Elasticsearch) accept the interface so tests can swap in a fake.
type toolCaller interface {
	CallTool(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error)
}

// StdioBridge speaks the Source MCP Contract to an MCP server spawned as a
// child process over stdio. Contract-compliant servers expose tools named
// after the contract operations (tests.list, datasets.search, ...), so the
// bridge is a thin translation layer: encode the request as tool arguments,
// decode the first text content block as the JSON response.
//
// The child process and its session are created lazily on first use and kept
// for the lifetime of the bridge; a transport failure drops the session so
// the next call reconnects.
type StdioBridge struct {
	sourceType contract.SourceType
	command    string
	args       []string
	env        map[string]string
	timeout    time.Duration
	breaker    *CircuitBreaker
	queue      *RequestQueue

	mu      sync.Mutex
	session *mcpsdk.ClientSession
}

var _ Source = (*StdioBridge)(nil)

// NewStdioBridge builds a stdio bridge from source configuration. The
// endpoint is the executable to spawn.
func NewStdioBridge(sourceType contract.SourceType, cfg config.SourceConfig) *StdioBridge {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := &StdioBridge{
		sourceType: sourceType,
		command:    cfg.Endpoint,
		args:       cfg.StdioArgs,
		env:        cfg.Env,
		timeout:    timeout,
		breaker:    NewCircuitBreaker(cfg.Endpoint, BreakerConfig{}),
		queue:      NewRequestQueue(cfg.Endpoint, 0, 0),
	}
	slog.Info("Stdio bridge adapter configured",
		"command", b.command, "source_type", sourceType, "timeout", timeout)
	return b
}

// CallTool invokes a tool on the child server and returns the first text
// content block, which contract-compliant servers fill with the JSON
// response body. Calls run inside a bounded request queue and behind a
// circuit breaker; only transport-level failures trip the breaker, a tool
// result flagged IsError does not.
func (b *StdioBridge) CallTool(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	var raw json.RawMessage
	err := b.queue.Do(ctx, func() error {
		return b.breaker.Do(func() error {
			var callErr error
			raw, callErr = b.callTool(ctx, tool, args)
			return callErr
		})
	})
	return raw, err
}

func (b *StdioBridge) callTool(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	session, err := b.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	result, err := session.CallTool(opCtx, &mcpsdk.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		// Drop the session so the next call respawns the child.
		b.dropSession()
		return nil, fmt.Errorf("calling %s on %s: %w", tool, b.command, err)
	}

	text := firstTextContent(result)
	if result.IsError {
		return nil, fmt.Errorf("tool %s returned an error: %s", tool, text)
	}
	if text == "" {
		return nil, fmt.Errorf("tool %s returned no text content", tool)
	}
	return json.RawMessage(text), nil
}

// ensureSession connects to the child process on first use.
func (b *StdioBridge) ensureSession(ctx context.Context) (*mcpsdk.ClientSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		return b.session, nil
	}

	cmd := exec.Command(b.command, b.args...)
	env := os.Environ()
	for k, v := range b.env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	initCtx, cancel := context.WithTimeout(ctx, bridgeInitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.Version,
	}, nil)

	session, err := client.Connect(initCtx, &mcpsdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", b.command, err)
	}

	b.session = session
	slog.Info("Stdio MCP server connected", "command", b.command)
	return session, nil
}

func (b *StdioBridge) dropSession() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		_ = b.session.Close()
		b.session = nil
	}
}

// Close terminates the child process session.
func (b *StdioBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	b.session = nil
	return err
}

// SourceDescribe is answered locally from the configured source type; the
// capabilities of a contract-compliant bridge target are fixed.
func (b *StdioBridge) SourceDescribe(_ context.Context, _ contract.SourceDescribeRequest) (contract.SourceDescribeResponse, error) {
	maxPage := horreumMaxPageSize
	return contract.SourceDescribeResponse{
		SourceType:      b.sourceType,
		Version:         version.Version,
		ContractVersion: contract.ContractVersion,
		Capabilities:    contract.SourceCapabilities{Pagination: true, Caching: true},
		Limits:          &contract.SourceLimits{MaxPageSize: &maxPage},
	}, nil
}

func (b *StdioBridge) TestsList(ctx context.Context, req contract.TestsListRequest) (contract.TestsListResponse, error) {
	return bridgeCall[contract.TestsListResponse](ctx, b, "tests.list", req)
}

func (b *StdioBridge) RunsList(ctx context.Context, req contract.RunsListRequest) (contract.RunsListResponse, error) {
	return bridgeCall[contract.RunsListResponse](ctx, b, "runs.list", req)
}

func (b *StdioBridge) DatasetsSearch(ctx context.Context, req contract.DatasetsSearchRequest) (contract.DatasetsSearchResponse, error) {
	return bridgeCall[contract.DatasetsSearchResponse](ctx, b, "datasets.search", req)
}

func (b *StdioBridge) DatasetsGet(ctx context.Context, req contract.DatasetsGetRequest) (contract.DatasetsGetResponse, error) {
	return bridgeCall[contract.DatasetsGetResponse](ctx, b, "datasets.get", req)
}

func (b *StdioBridge) ArtifactsGet(ctx context.Context, req contract.ArtifactsGetRequest) (contract.ArtifactsGetResponse, error) {
	return bridgeCall[contract.ArtifactsGetResponse](ctx, b, "artifacts.get", req)
}

func (b *StdioBridge) RunLabelValues(ctx context.Context, req contract.RunLabelValuesRequest) (contract.RunLabelValuesResponse, error) {
	return bridgeCall[contract.RunLabelValuesResponse](ctx, b, "run_label_values.get", req)
}

func (b *StdioBridge) TestLabelValues(ctx context.Context, req contract.TestLabelValuesRequest) (contract.TestLabelValuesResponse, error) {
	return bridgeCall[contract.TestLabelValuesResponse](ctx, b, "test_label_values.get", req)
}

func (b *StdioBridge) DatasetLabelValues(ctx context.Context, req contract.DatasetLabelValuesRequest) (contract.DatasetLabelValuesResponse, error) {
	return bridgeCall[contract.DatasetLabelValuesResponse](ctx, b, "dataset_label_values.get", req)
}

// bridgeCall encodes req as tool arguments, invokes the tool, and decodes
// the JSON result.
func bridgeCall[T any](ctx context.Context, c toolCaller, tool string, req any) (T, error) {
	var out T
	payload, err := payloadFromRequest(req)
	if err != nil {
		return out, err
	}
	raw, err := c.CallTool(ctx, tool, payload)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding %s result: %w", tool, err)
	}
	return out, nil
}

// firstTextContent returns the first text content block of a tool result.
func firstTextContent(result *mcpsdk.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
