package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSanitiseArgumentsRedactsPasswords(t *testing.T) {
	out := SanitiseArguments(map[string]any{
		"operation":  "protect",
		"file_paths": []any{"/docs/a.pdf"},
		"options": map[string]any{
			"user_password":  "hunter2",
			"owner_password": "hunter3",
			"rotation":       90.0,
		},
		"auth_token": "abc",
	})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	opts := decoded["options"].(map[string]any)
	assert.Equal(t, redacted, opts["user_password"])
	assert.Equal(t, redacted, opts["owner_password"])
	assert.InDelta(t, 90.0, opts["rotation"], 0)
	assert.Equal(t, redacted, decoded["auth_token"])
	assert.Equal(t, []any{"/docs/a.pdf"}, decoded["file_paths"])
	assert.NotContains(t, out, "hunter")

	assert.Equal(t, "{}", SanitiseArguments(nil))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcd...", TruncateString("abcdefghij", 7))
	assert.Equal(t, "..", TruncateString("abcdef", 2))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name     string
		c        Conversion
		expected string
	}{
		{name: "ok", c: Conversion{}, expected: OutcomeOK},
		{name: "degraded", c: Conversion{Degraded: true}, expected: OutcomeDegraded},
		{name: "rejected", c: Conversion{Err: job.Rejected("mp3 to pdf")}, expected: OutcomeRejected},
		{name: "invalid", c: Conversion{Err: job.InvalidOptions("bad")}, expected: OutcomeInvalid},
		{name: "password", c: Conversion{Err: job.ErrInvalidPassword}, expected: OutcomePassword},
		{name: "failed", c: Conversion{Err: job.Unexpected(errors.New("boom"))}, expected: OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.c.Outcome())
		})
	}
}

func TestDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("MCP_TRACING_DISABLED_TOOLS", "convert_file, pdf_operation")

	shutdown, err := InitTracer(quietLogger())
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsEnabled())
	assert.True(t, IsToolTracingDisabled("pdf_operation"))

	shutdownMetrics, err := InitMetrics(quietLogger())
	require.NoError(t, err)
	assert.NoError(t, shutdownMetrics())
	assert.False(t, IsMetricsEnabled())

	ctx := context.Background()
	spanCtx, span := StartToolSpan(ctx, "convert_file", "stdio", map[string]any{"password": "x"})
	assert.Equal(t, ctx, spanCtx)
	EndToolSpan(span, nil)

	_, convSpan := StartConversionSpan(ctx, "id", "split", "", 1)
	EndConversionSpan(convSpan, Conversion{Operation: "split"})

	RecordToolCall(ctx, "convert_file", "stdio", true, time.Second)
	RecordConversion(ctx, Conversion{Operation: "split", Duration: time.Second})
	RecordInputSize(ctx, "split", 10)
}

func TestSamplerAndIntervalParsing(t *testing.T) {
	assert.InDelta(t, 0.25, parseRatio("0.25", 1), 0)
	assert.InDelta(t, 1.0, parseRatio("7", 0.5), 0)
	assert.InDelta(t, 0.5, parseRatio("half", 0.5), 0)

	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "15")
	assert.Equal(t, 15*time.Second, getMetricExportInterval(quietLogger()))
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "2m")
	assert.Equal(t, 2*time.Minute, getMetricExportInterval(quietLogger()))
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "soon")
	assert.Equal(t, defaultMetricExportInterval, getMetricExportInterval(quietLogger()))

	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4317")
	assert.Equal(t, "grpc", getOTLPProtocol())
}
