package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sammcj/mcp-fileconv/internal/conversion"
	"github.com/sammcj/mcp-fileconv/internal/registry"
	"github.com/sammcj/mcp-fileconv/internal/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "transport",
			Aliases: []string{"t"},
			Value:   "stdio",
			Usage:   "Transport type (stdio, sse, or http)",
		},
		&cli.StringFlag{
			Name:  "port",
			Value: "18080",
			Usage: "Port to use for HTTP transports (SSE and Streamable HTTP)",
		},
		&cli.StringFlag{
			Name:  "base-url",
			Value: "http://localhost",
			Usage: "Base URL for HTTP transports",
		},
		&cli.StringFlag{
			Name:    "auth-token",
			Usage:   "Bearer token required by the Streamable HTTP transport (optional)",
			Sources: cli.EnvVars("MCP_FILECONV_AUTH_TOKEN"),
		},
		&cli.StringFlag{
			Name:  "endpoint-path",
			Value: "/http",
			Usage: "Endpoint path for Streamable HTTP transport",
		},
		&cli.DurationFlag{
			Name:  "session-timeout",
			Value: 30 * time.Minute,
			Usage: "Session timeout for Streamable HTTP transport, also sets the heartbeat interval",
		},
	}
}

// serve starts the MCP server on the selected transport
func serve(ctx context.Context, cmd *cli.Command, logger *logrus.Logger) error {
	transport := cmd.String("transport")
	port := cmd.String("port")

	if err := bootstrap(logger, transport == "stdio"); err != nil {
		return err
	}

	initTelemetry(logger)

	if transport != "stdio" {
		logger.Infof("Starting %s version %s (commit: %s, built: %s)", appName, Version, Commit, BuildDate)
	}

	// Probe backends and sweep stale temp resources before accepting requests
	svc, err := conversion.Default()
	if err != nil {
		return fmt.Errorf("failed to initialise conversion service: %w", err)
	}
	for _, c := range svc.Capabilities() {
		logger.WithFields(logrus.Fields{
			"capability": c.Name,
			"available":  c.Available,
			"detail":     c.Detail,
		}).Debug("Capability")
	}

	mcpSrv := newMCPServer(transport, logger)

	logger.WithField("transport", transport).Debug("Starting server")
	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(mcpSrv)
	case "sse":
		sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(cmd.String("base-url")+"/sse"))
		return sseServer.Start(":" + port)
	case "http":
		return startStreamableHTTPServer(ctx, cmd, mcpSrv, logger)
	default:
		return fmt.Errorf("unsupported transport: %s", transport)
	}
}

// newMCPServer registers every enabled tool with a fresh MCP server
func newMCPServer(transport string, logger *logrus.Logger) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer(appName, "MCP File Conversion Server")

	enabledTools := registry.GetEnabledTools()
	logger.WithField("tool_count", len(enabledTools)).Debug("MCP server created, registering tools")

	for name, tool := range enabledTools {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}

		mcpSrv.AddTool(tool.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if reason, denied := toolCtx.Value(authFailureKey{}).(string); denied {
				return nil, fmt.Errorf("unauthorised: %s", reason)
			}

			args, ok := request.Params.Arguments.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
			}

			start := time.Now()
			spanCtx, span := telemetry.StartToolSpan(toolCtx, name, transport, args)
			result, err := tool.Execute(spanCtx, registry.GetLogger(), args)
			telemetry.EndToolSpan(span, err)
			telemetry.RecordToolCall(toolCtx, name, transport, err == nil, time.Since(start))
			if err != nil {
				logger.WithError(err).WithField("tool", name).Warn("Tool execution failed")
				return nil, fmt.Errorf("tool execution failed: %w", err)
			}
			return result, nil
		})
	}
	return mcpSrv
}

// startStreamableHTTPServer serves the Streamable HTTP transport until ctx
// is cancelled, then shuts down gracefully
func startStreamableHTTPServer(ctx context.Context, cmd *cli.Command, mcpServer *mcpserver.MCPServer, logger *logrus.Logger) error {
	port := cmd.String("port")
	endpointPath := cmd.String("endpoint-path")
	sessionTimeout := cmd.Duration("session-timeout")

	heartbeatInterval := 30 * time.Second
	if sessionTimeout > 0 {
		heartbeatInterval = sessionTimeout / 4
	}

	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithHeartbeatInterval(heartbeatInterval),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
	}
	if authToken := cmd.String("auth-token"); authToken != "" {
		opts = append(opts, mcpserver.WithHTTPContextFunc(createAuthMiddleware(authToken, logger)))
		logger.Info("Token authentication enabled")
	}

	mux := http.NewServeMux()
	mux.Handle(endpointPath, mcpserver.NewStreamableHTTPServer(mcpServer, opts...))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	logger.Infof("Starting Streamable HTTP server on port %s with endpoint %s", port, endpointPath)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	// In-flight conversions release their temp scopes before returning
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}
	logger.Info("HTTP server stopped gracefully")
	return nil
}

type authFailureKey struct{}

// createAuthMiddleware checks the bearer token and origin of each request.
// Failures are recorded in the context and logged.
func createAuthMiddleware(expectedToken string, logger *logrus.Logger) mcpserver.HTTPContextFunc {
	return func(ctx context.Context, req *http.Request) context.Context {
		if version := req.Header.Get("MCP-Protocol-Version"); version != "" && !isValidProtocolVersion(version) {
			logger.Warnf("Unsupported MCP Protocol Version: %s", version)
		}

		if origin := req.Header.Get("Origin"); origin != "" && !isValidOrigin(origin) {
			logger.Warnf("Invalid Origin header: %s", origin)
			return context.WithValue(ctx, authFailureKey{}, "invalid origin")
		}

		token, found := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !found || token != expectedToken {
			logger.Warn("Request with missing or invalid bearer token")
			return context.WithValue(ctx, authFailureKey{}, "invalid token")
		}
		return ctx
	}
}

// isValidProtocolVersion checks if the MCP protocol version is supported
func isValidProtocolVersion(version string) bool {
	return slices.Contains([]string{"2025-06-18", "2025-03-26", "2024-11-05"}, version)
}

// isValidOrigin allows localhost origins only (DNS rebinding protection)
func isValidOrigin(origin string) bool {
	for _, allowed := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") || strings.HasPrefix(origin, allowed+"/") {
			return true
		}
	}
	return false
}

// logrusAdapter adapts logrus.Logger to the mcp-go util.Logger interface
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Debugf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Warnf(format string, args ...any) {
	l.logger.Warnf(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
