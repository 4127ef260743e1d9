// Domain MCP server — bridges AI chat clients to performance-data backends.
// Serves the MCP tool surface over stdio (default) or HTTP together with the
// REST API and the LLM-backed natural language query endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/perfscale/domain-mcp/pkg/adapter"
	"github.com/perfscale/domain-mcp/pkg/api"
	"github.com/perfscale/domain-mcp/pkg/config"
	"github.com/perfscale/domain-mcp/pkg/contract"
	"github.com/perfscale/domain-mcp/pkg/llm"
	"github.com/perfscale/domain-mcp/pkg/mcpserver"
	"github.com/perfscale/domain-mcp/pkg/orchestrator"
	"github.com/perfscale/domain-mcp/pkg/plugin"
	"github.com/perfscale/domain-mcp/pkg/resources"
	"github.com/perfscale/domain-mcp/pkg/version"

	// Dataset-type plugins self-register at init time.
	_ "github.com/perfscale/domain-mcp/pkg/plugin/boottime"
	_ "github.com/perfscale/domain-mcp/pkg/plugin/eslogs"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML app config (sources, plugin flags)")
	httpMode := flag.Bool("http", false, "Run the HTTP server instead of the stdio MCP transport")
	host := flag.String("host", "127.0.0.1", "HTTP bind host")
	port := flag.Int("port", 8080, "HTTP port")
	logLevel := flag.String("log-level", "", "Logging level: debug, info, warn, error (overrides environment)")
	verbose := flag.Bool("v", false, "Shorthand for --log-level debug")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	env, warnings := config.LoadEnv()

	setupLogging(effectiveLogLevel(*logLevel, *verbose, env.LogLevel))
	for _, warn := range warnings {
		slog.Warn("Environment setting ignored", "error", warn)
	}

	slog.Info("Starting domain-mcp",
		"version", version.Version,
		"commit", version.GitCommit,
		"mode", mode(*httpMode),
		"config", *configPath)

	ctx := context.Background()

	sources := adapter.NewRegistry()
	plugins := plugin.Default()

	if *configPath != "" {
		cfg, err := config.Initialize(ctx, *configPath)
		if err != nil {
			slog.Error("Failed to initialize configuration", "error", err)
			os.Exit(1)
		}
		if err := registerSources(sources, cfg); err != nil {
			slog.Error("Failed to register sources", "error", err)
			os.Exit(1)
		}
		plugins.ApplyEnabled(cfg.EnabledPlugins)
	} else if !*httpMode {
		slog.Info("No config file given; source-driven tools are unavailable until one is configured")
	}
	sources.LogStatus()
	slog.Info("Plugins registered", "plugins", plugins.IDs())

	orch := orchestrator.New(sources, plugins)
	res := resources.NewRegistry()
	mcpSrv := mcpserver.New(orch, res)

	if !*httpMode {
		runStdio(ctx, mcpSrv)
		return
	}
	runHTTP(ctx, env, orch, sources, plugins, res, mcpSrv, net.JoinHostPort(*host, fmt.Sprint(*port)))
}

// runStdio serves MCP over stdin/stdout until the client disconnects or a
// signal arrives. A second signal hard-exits.
func runStdio(ctx context.Context, mcpSrv *mcpserver.Server) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("Shutting down MCP stdio server", "signal", sig)
		cancel()
		<-sigCh
		os.Exit(130)
	}()

	slog.Info("MCP stdio server ready (attach your MCP client)")
	if err := mcpSrv.RunStdio(ctx); err != nil && ctx.Err() == nil {
		slog.Error("MCP stdio server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(
	ctx context.Context,
	env config.EnvSettings,
	orch *orchestrator.Orchestrator,
	sources *adapter.Registry,
	plugins *plugin.Registry,
	res *resources.Registry,
	mcpSrv *mcpserver.Server,
	addr string,
) {
	llmClient, err := llm.NewFromEnv(env)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	query := api.NewQueryService(env, llmClient, orch, res)

	server := api.NewServer(env, orch, sources, plugins, res, query)
	server.Mount("/mcp", mcpSrv.HTTPHandler())

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
}

// registerSources builds an adapter per configured source. Source ids are
// processed in sorted order so registration (and source auto-selection) is
// deterministic.
func registerSources(sources *adapter.Registry, cfg *config.AppConfig) error {
	ids := cfg.SourceIDs()
	sort.Strings(ids)

	for _, id := range ids {
		sc := cfg.Sources[id]
		switch {
		case config.IsHTTPType(sc.Type):
			sources.Register(id, adapter.NewHorreumHTTP(sc), "HTTP")
		case config.IsStdioType(sc.Type):
			sources.Register(id, adapter.NewStdioBridge(contract.SourceTypeHorreum, sc), "stdio")
		case config.IsElasticsearchType(sc.Type):
			bridge := adapter.NewStdioBridge(contract.SourceTypeElasticsearch, sc)
			sources.Register(id, adapter.NewElasticsearch(bridge), "elasticsearch-stdio")
		default:
			return fmt.Errorf("source %q: unknown type %q", id, sc.Type)
		}
	}
	return nil
}

// effectiveLogLevel resolves the level: flag > -v > environment > info.
func effectiveLogLevel(flagLevel string, verbose bool, envLevel string) string {
	if flagLevel != "" {
		return flagLevel
	}
	if verbose {
		return "debug"
	}
	if envLevel != "" {
		return envLevel
	}
	return "info"
}

// setupLogging writes structured logs to stderr. Stdout must stay clean:
// in stdio mode it carries the MCP protocol stream.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error", "critical":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func mode(httpMode bool) string {
	if httpMode {
		return "http"
	}
	return "stdio"
}
