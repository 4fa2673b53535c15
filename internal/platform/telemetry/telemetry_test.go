package telemetry_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
)

var testID = telemetry.Identity{Env: "test", Version: "0.0.0-test"}

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	p, err := telemetry.Setup(context.Background(), config.TelemetryConfig{Exporter: "bogus"}, testID)
	require.NoError(t, err)
	assert.Nil(t, p.Metrics)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_RejectsBadExporters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.TelemetryConfig
		wantErr string
	}{
		{"unknown exporter", config.TelemetryConfig{Enabled: true, Exporter: "zipkin"}, `unsupported exporter "zipkin"`},
		{"otlp without endpoint", config.TelemetryConfig{Enabled: true, Exporter: telemetry.ExporterOTLP}, "requires an endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := telemetry.Setup(context.Background(), tt.cfg, testID)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// The remaining tests install otel globals and cannot run in parallel.

func TestSetup_Stdout(t *testing.T) {
	ctx := context.Background()
	p, err := telemetry.Setup(ctx, config.TelemetryConfig{
		Enabled: true, Exporter: telemetry.ExporterStdout, ServiceName: "stage-tracker-test", SampleRate: 1,
	}, testID)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, p.Shutdown(ctx)) })

	require.NotNil(t, p.Metrics)
	assert.NotNil(t, p.Metrics.FeedEventsTotal)
	assert.NotNil(t, p.Metrics.TemplateApplyTotal)
	assert.NotNil(t, p.Metrics.ServerRequestDuration)

	_, span := otel.Tracer("test").Start(ctx, "root")
	defer span.End()
	assert.True(t, span.SpanContext().IsSampled())
}

func TestSetup_InstallsPropagators(t *testing.T) {
	ctx := context.Background()
	p, err := telemetry.Setup(ctx, config.TelemetryConfig{
		Enabled: true, Exporter: telemetry.ExporterStdout, ServiceName: "stage-tracker-test", SampleRate: 1,
	}, testID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	ctx, span := otel.Tracer("test").Start(ctx, "outbound")
	defer span.End()

	header := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
	assert.NotEmpty(t, header.Get("traceparent"))
}

func TestSetup_ZeroSampleRateDropsRootSpans(t *testing.T) {
	ctx := context.Background()
	p, err := telemetry.Setup(ctx, config.TelemetryConfig{
		Enabled: true, Exporter: telemetry.ExporterStdout, ServiceName: "stage-tracker-test", SampleRate: 0,
	}, testID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	_, span := otel.Tracer("test").Start(ctx, "root")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestSetup_OTLP(t *testing.T) {
	for _, endpoint := range []string{"localhost:4318", "http://localhost:4318", "https://collector.internal:4318"} {
		t.Run(endpoint, func(t *testing.T) {
			p, err := telemetry.Setup(context.Background(), config.TelemetryConfig{
				Enabled: true, Exporter: telemetry.ExporterOTLP, Endpoint: endpoint, ServiceName: "stage-tracker-test", SampleRate: 1,
			}, testID)
			require.NoError(t, err)
			assert.NotNil(t, p.Metrics)

			// Nothing listens on the endpoint, so the final flush may fail.
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestNopMetrics(t *testing.T) {
	t.Parallel()

	m := telemetry.NopMetrics()
	m.FeedEventsTotal.Add(context.Background(), 1)
	m.ReorderResyncTotal.Add(context.Background(), 1)
}
