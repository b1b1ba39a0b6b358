// Package telemetry exports OpenTelemetry traces and metrics for tool calls
// and conversions. Nothing is exported unless OTEL_EXPORTER_OTLP_ENDPOINT is
// set; every helper is a no-op otherwise.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentationName = "mcp-fileconv"

	defaultMaxAttributeSize = 4096
	minAttributeSize        = 1024
	maxAttributeSize        = 65536
)

var (
	globalMutex          sync.RWMutex
	globalTracer         trace.Tracer
	globalTracerProvider *sdktrace.TracerProvider
	disabledTools        map[string]bool
	tracingEnabled       bool

	// serviceVersion is reported on the resource; set by SetServiceVersion
	serviceVersion = "dev"
)

// otelErrorHandler sends SDK errors to the logger. In stdio mode anything on
// stderr would corrupt the protocol stream.
type otelErrorHandler struct {
	logger *logrus.Logger
}

func (h *otelErrorHandler) Handle(err error) {
	if err == nil {
		return
	}
	h.logger.WithError(err).Debug("OTEL: SDK error occurred")
}

// SetServiceVersion records the build version for the exported resource
func SetServiceVersion(v string) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if v != "" {
		serviceVersion = v
	}
}

// InitTracer configures the tracer from the standard OTEL_* environment
// variables. It returns a shutdown function; on error the process carries on
// with a noop tracer.
func InitTracer(logger *logrus.Logger) (func() error, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	noShutdown := func() error { return nil }
	disabledTools = parseDisabledTools()
	globalTracer = noop.NewTracerProvider().Tracer(instrumentationName)
	tracingEnabled = false

	if strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true") {
		logger.Debug("OTEL: Explicitly disabled via OTEL_SDK_DISABLED")
		return noShutdown, nil
	}
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		logger.Debug("OTEL: Not configured (OTEL_EXPORTER_OTLP_ENDPOINT not set), using noop tracer")
		return noShutdown, nil
	}

	logger.WithField("endpoint", endpoint).Info("OTEL: Initialising tracer")
	otel.SetErrorHandler(&otelErrorHandler{logger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exporter *otlptrace.Exporter
	var err error
	switch protocol := getOTLPProtocol(); protocol {
	case "grpc":
		exporter, err = otlptracegrpc.New(ctx)
	case "http/protobuf", "http":
		exporter, err = otlptracehttp.New(ctx)
	default:
		logger.WithField("protocol", protocol).Warn("OTEL: Unknown protocol, defaulting to http")
		exporter, err = otlptracehttp.New(ctx)
	}
	if err != nil {
		logger.WithError(err).Warn("OTEL: Failed to create exporter, falling back to noop tracer")
		return noShutdown, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(ctx, logger)),
		sdktrace.WithSampler(createSampler(logger)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalTracer = tp.Tracer(instrumentationName)
	globalTracerProvider = tp
	tracingEnabled = true
	logger.Info("OTEL: Tracer initialised successfully")

	return func() error {
		globalMutex.Lock()
		defer globalMutex.Unlock()
		if globalTracerProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := globalTracerProvider.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		globalTracerProvider = nil
		return nil
	}, nil
}

// newResource describes this service. Caller holds globalMutex.
func newResource(ctx context.Context, logger *logrus.Logger) *resource.Resource {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(getServiceName()),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		logger.WithError(err).Warn("OTEL: Failed to create resource, using default")
		return resource.Default()
	}
	return res
}

// GetTracer returns the configured tracer, or a noop tracer
func GetTracer() trace.Tracer {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	if globalTracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return globalTracer
}

// IsEnabled reports whether spans are exported
func IsEnabled() bool {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return tracingEnabled
}

// IsToolTracingDisabled reports whether MCP_TRACING_DISABLED_TOOLS names toolName
func IsToolTracingDisabled(toolName string) bool {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return disabledTools[toolName]
}

// StartToolSpan starts a span for one MCP tool call. Arguments are recorded
// with passwords redacted. The caller ends it with EndToolSpan.
func StartToolSpan(ctx context.Context, toolName, transport string, args map[string]any) (context.Context, trace.Span) {
	if !IsEnabled() || IsToolTracingDisabled(toolName) {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := GetTracer().Start(ctx, SpanNameToolExecute,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrMCPToolName, toolName),
			attribute.String(AttrMCPTransport, transport),
		),
	)

	sanitised := SanitiseArguments(args)
	if limit := getMaxAttributeSize(); len(sanitised) > limit {
		span.SetAttributes(
			attribute.String(AttrToolArguments, TruncateString(sanitised, limit)),
			attribute.Bool(AttrArgsTruncated, true),
		)
	} else {
		span.SetAttributes(attribute.String(AttrToolArguments, sanitised))
	}
	return ctx, span
}

// EndToolSpan ends a tool span with its outcome
func EndToolSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.Bool(AttrMCPToolSuccess, false),
			attribute.String(AttrMCPToolError, err.Error()),
		)
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Bool(AttrMCPToolSuccess, true))
	}
	span.End()
}

// StartConversionSpan starts a span covering one conversion request
func StartConversionSpan(ctx context.Context, requestID, operation, outputFormat string, inputs int) (context.Context, trace.Span) {
	if !IsEnabled() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return GetTracer().Start(ctx, SpanNameConversion,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrRequestID, requestID),
			attribute.String(AttrOperation, operation),
			attribute.String(AttrOutputFormat, outputFormat),
			attribute.Int(AttrInputCount, inputs),
		),
	)
}

// EndConversionSpan ends a conversion span. A degraded result is still a
// success; the span carries the tier that produced it.
func EndConversionSpan(span trace.Span, r Conversion) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String(AttrOutcome, r.Outcome()),
		attribute.String(AttrTier, r.Tier),
		attribute.Bool(AttrDegraded, r.Degraded),
		attribute.Int(AttrArtifactCount, r.Artifacts),
	)
	if r.Err != nil {
		span.SetStatus(codes.Error, r.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func parseDisabledTools() map[string]bool {
	disabled := make(map[string]bool)
	for tool := range strings.SplitSeq(os.Getenv("MCP_TRACING_DISABLED_TOOLS"), ",") {
		if tool = strings.TrimSpace(tool); tool != "" {
			disabled[tool] = true
		}
	}
	return disabled
}

func getOTLPProtocol() string {
	if protocol := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); protocol != "" {
		return protocol
	}
	if strings.Contains(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), ":4317") {
		return "grpc"
	}
	return "http/protobuf"
}

func getServiceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return instrumentationName
}

func createSampler(logger *logrus.Logger) sdktrace.Sampler {
	arg := os.Getenv("OTEL_TRACES_SAMPLER_ARG")
	switch sampler := os.Getenv("OTEL_TRACES_SAMPLER"); sampler {
	case "", "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(parseRatio(arg, 1.0))
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(parseRatio(arg, 1.0)))
	default:
		logger.WithField("sampler", sampler).Warn("OTEL: Unknown sampler type, using always_on")
		return sdktrace.AlwaysSample()
	}
}

// parseRatio reads a sampling ratio clamped to [0, 1]
func parseRatio(s string, defaultVal float64) float64 {
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return defaultVal
	}
	return max(0, min(f, 1))
}

func getMaxAttributeSize() int {
	var size int
	if _, err := fmt.Sscanf(os.Getenv("MCP_TRACING_MAX_ATTRIBUTE_SIZE"), "%d", &size); err != nil {
		return defaultMaxAttributeSize
	}
	return max(minAttributeSize, min(size, maxAttributeSize))
}
