package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const defaultMetricExportInterval = 60 * time.Second

var (
	metricsMutex        sync.RWMutex
	globalMeterProvider *sdkmetric.MeterProvider
	metricsEnabled      bool

	toolCallsCounter       metric.Int64Counter
	toolDurationHistogram  metric.Float64Histogram
	conversionsCounter     metric.Int64Counter
	conversionDurationHist metric.Float64Histogram
	inputBytesHistogram    metric.Int64Histogram
)

// Conversion is what is recorded about one finished request
type Conversion struct {
	Operation string
	Tier      string
	Degraded  bool
	Artifacts int
	Duration  time.Duration
	Err       error
}

// Outcome classifies the request for the fileconv.outcome attribute
func (c Conversion) Outcome() string {
	switch {
	case c.Err == nil && c.Degraded:
		return OutcomeDegraded
	case c.Err == nil:
		return OutcomeOK
	case errors.Is(c.Err, job.ErrRejected):
		return OutcomeRejected
	case errors.Is(c.Err, job.ErrInvalidOptions):
		return OutcomeInvalid
	case errors.Is(c.Err, job.ErrInvalidPassword):
		return OutcomePassword
	default:
		return OutcomeFailed
	}
}

// InitMetrics configures the meter provider. It uses the same endpoint and
// protocol variables as InitTracer.
func InitMetrics(logger *logrus.Logger) (func() error, error) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	noShutdown := func() error { return nil }
	metricsEnabled = false

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" || strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true") {
		logger.Debug("OTEL Metrics: Not configured, using noop meter")
		return noShutdown, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exporter sdkmetric.Exporter
	var err error
	switch protocol := getOTLPProtocol(); protocol {
	case "grpc":
		exporter, err = otlpmetricgrpc.New(ctx)
	case "http/protobuf", "http":
		exporter, err = otlpmetrichttp.New(ctx)
	default:
		logger.WithField("protocol", protocol).Warn("OTEL Metrics: Unknown protocol, defaulting to http")
		exporter, err = otlpmetrichttp.New(ctx)
	}
	if err != nil {
		logger.WithError(err).Warn("OTEL Metrics: Failed to create exporter, falling back to noop meter")
		return noShutdown, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	globalMutex.RLock()
	res := newResource(ctx, logger)
	globalMutex.RUnlock()

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(getMetricExportInterval(logger)),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if err := initMetricInstruments(mp.Meter(instrumentationName)); err != nil {
		_ = mp.Shutdown(ctx)
		return noShutdown, fmt.Errorf("failed to create metric instruments: %w", err)
	}
	globalMeterProvider = mp
	metricsEnabled = true
	logger.WithField("endpoint", endpoint).Info("OTEL Metrics: Meter initialised successfully")

	return func() error {
		metricsMutex.Lock()
		defer metricsMutex.Unlock()
		if globalMeterProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		err := globalMeterProvider.Shutdown(shutdownCtx)
		globalMeterProvider = nil
		metricsEnabled = false
		return err
	}, nil
}

func initMetricInstruments(meter metric.Meter) error {
	var err error
	if toolCallsCounter, err = meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Total tool invocations"),
		metric.WithUnit("{call}"),
	); err != nil {
		return err
	}
	if toolDurationHistogram, err = meter.Float64Histogram("mcp.tool.duration",
		metric.WithDescription("Tool execution duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000),
	); err != nil {
		return err
	}
	if conversionsCounter, err = meter.Int64Counter("fileconv.conversions",
		metric.WithDescription("Conversion requests by operation, tier and outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if conversionDurationHist, err = meter.Float64Histogram("fileconv.conversion.duration",
		metric.WithDescription("Time from routing to collected artifacts"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000),
	); err != nil {
		return err
	}
	inputBytesHistogram, err = meter.Int64Histogram("fileconv.input.size",
		metric.WithDescription("Size of materialised inputs"),
		metric.WithUnit("By"),
	)
	return err
}

// IsMetricsEnabled reports whether metrics are exported
func IsMetricsEnabled() bool {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return metricsEnabled
}

// RecordToolCall records one MCP tool invocation
func RecordToolCall(ctx context.Context, toolName, transport string, success bool, duration time.Duration) {
	if !IsMetricsEnabled() {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	toolCallsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("transport", transport),
		attribute.String("result", result),
	))
	toolDurationHistogram.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("transport", transport),
	))
}

// RecordConversion records a finished conversion request
func RecordConversion(ctx context.Context, c Conversion) {
	if !IsMetricsEnabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrOperation, c.Operation),
		attribute.String(AttrTier, c.Tier),
		attribute.String(AttrOutcome, c.Outcome()),
	)
	conversionsCounter.Add(ctx, 1, attrs)
	conversionDurationHist.Record(ctx, float64(c.Duration.Milliseconds()), attrs)
}

// RecordInputSize records the size of one materialised input
func RecordInputSize(ctx context.Context, operation string, size int64) {
	if !IsMetricsEnabled() {
		return
	}
	inputBytesHistogram.Record(ctx, size, metric.WithAttributes(attribute.String(AttrOperation, operation)))
}

func getMetricExportInterval(logger *logrus.Logger) time.Duration {
	raw := os.Getenv("OTEL_METRIC_EXPORT_INTERVAL")
	if raw == "" {
		return defaultMetricExportInterval
	}
	// bare numbers are seconds
	d, err := time.ParseDuration(raw)
	if err != nil {
		d, err = time.ParseDuration(raw + "s")
	}
	if err != nil || d <= 0 {
		logger.WithField("interval", raw).Warn("OTEL Metrics: Invalid export interval, using default")
		return defaultMetricExportInterval
	}
	return d
}
