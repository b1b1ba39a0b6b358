package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/sammcj/mcp-fileconv/internal/config"
	"github.com/sammcj/mcp-fileconv/internal/conversion"
	"github.com/sammcj/mcp-fileconv/internal/failurelog"
	"github.com/sammcj/mcp-fileconv/internal/registry"
	"github.com/sammcj/mcp-fileconv/internal/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	// Import all tool packages to register them
	_ "github.com/sammcj/mcp-fileconv/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup
// Using atomic operations to prevent race conditions between signal handlers and cleanup
var (
	debugLogFile  atomic.Pointer[os.File]
	failureLogger atomic.Pointer[failurelog.Logger]
	isStdioMode   atomic.Bool

	// telemetryShutdown flushes and stops the OTEL providers
	telemetryShutdown atomic.Pointer[func()]
)

const (
	// DefaultMemoryLimit is the default memory limit for the Go application (5GB)
	DefaultMemoryLimit = 5 * 1024 * 1024 * 1024

	appName = "mcp-fileconv"
)

// parseLogLevel parses the LOG_LEVEL environment variable and returns the appropriate logrus level.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))

	switch logLevelStr {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

// setMemoryLimit configures the Go runtime memory limit
func setMemoryLimit() {
	var memLimit int64 = DefaultMemoryLimit
	if memLimitStr := os.Getenv("MCP_FILECONV_MEMORY_LIMIT"); memLimitStr != "" {
		if parsed, err := strconv.ParseInt(memLimitStr, 10, 64); err == nil && parsed > 0 {
			memLimit = parsed
		}
	}

	// Soft limit: the runtime adjusts GC to stay under it. Rasterising large
	// PDFs is the main consumer.
	debug.SetMemoryLimit(memLimit)
}

// logDir returns ~/.mcp-fileconv/logs, or "" when there is no home directory
func logDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".mcp-fileconv", "logs")
}

// configureLogging points the logger at its final destination. stdio mode
// must never write to stdout or stderr, so it logs to a file or nowhere.
func configureLogging(logger *logrus.Logger, stdio bool) {
	isStdioMode.Store(stdio)

	logLevel := parseLogLevel()
	var out io.Writer = os.Stderr

	if stdio {
		out = io.Discard
		if dir := logDir(); dir != "" {
			if err := os.MkdirAll(dir, 0700); err == nil {
				logFile := filepath.Join(dir, appName+".log")
				if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600); err == nil {
					debugLogFile.Store(file)
					out = file
				}
			}
		}
		// Minimum warn level for stdio mode
		if logLevel > logrus.WarnLevel {
			logLevel = logrus.WarnLevel
		}
	}

	logger.SetOutput(out)
	logrus.SetOutput(out)
	logger.SetLevel(logLevel)
	logrus.SetLevel(logLevel)
	logger.WithField("level", logLevel.String()).Debug("Logging configured")
}

// bootstrap loads configuration and hands it to the conversion core. The
// service itself is built on first use.
func bootstrap(logger *logrus.Logger, stdio bool) error {
	configureLogging(logger, stdio)
	registry.Init(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	failures, err := failurelog.FromEnv(logDir(), logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to open conversion failure log")
		failures = failurelog.Disabled()
	}
	failureLogger.Store(failures)

	conversion.Configure(cfg, failures, logger)
	return nil
}

func main() {
	setMemoryLimit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Discard output until the transport mode is known
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	defer performCleanup(logger)

	app := &cli.Command{
		Name:     appName,
		Usage:    "MCP server and CLI for file format conversion and PDF operations",
		Version:  fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags:    serverFlags(),
		Commands: commands(logger),
		Action: func(cliCtx context.Context, cmd *cli.Command) error {
			return serve(cliCtx, cmd, logger)
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		// stdio mode must not write to stdout or stderr
		if !isStdioMode.Load() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		performCleanup(logger)
		os.Exit(1)
	}
}

// initTelemetry starts tracing and metrics export when an OTLP endpoint is
// configured. Failures leave the server running without telemetry.
func initTelemetry(logger *logrus.Logger) {
	telemetry.SetServiceVersion(Version)

	shutdownTracer, err := telemetry.InitTracer(logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialise tracing")
	}
	shutdownMetrics, err := telemetry.InitMetrics(logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialise metrics")
	}

	shutdown := func() {
		if err := shutdownMetrics(); err != nil {
			logger.WithError(err).Warn("Failed to shut down metrics")
		}
		if err := shutdownTracer(); err != nil {
			logger.WithError(err).Warn("Failed to shut down tracing")
		}
	}
	telemetryShutdown.Store(&shutdown)
}

// performCleanup handles cleanup of resources on shutdown
func performCleanup(logger *logrus.Logger) {
	if shutdown := telemetryShutdown.Swap(nil); shutdown != nil {
		(*shutdown)()
	}

	if failures := failureLogger.Swap(nil); failures != nil {
		if err := failures.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close conversion failure log")
		}
	}

	// Close last, the failure log may still have logged to it
	if file := debugLogFile.Swap(nil); file != nil {
		_ = file.Close()
	}
}
