// Package telemetry bootstraps OpenTelemetry tracing and metrics for the
// tracker and holds the attribute keys and instruments shared by the HTTP
// layer, the row-store client and the trackers.
//
//	p, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.Identity{Env: "prod", Version: "1.4.0"})
//	defer p.Shutdown(ctx)
//	p.Metrics.FeedEventsTotal.Add(ctx, 1)
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
)

// Supported exporter names.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Attribute keys for spans and metric labels.
var (
	AttrHTTPMethod  = attribute.Key("http.method")
	AttrHTTPStatus  = attribute.Key("http.status_code")
	AttrHTTPRoute   = attribute.Key("http.route")
	AttrPeerService = attribute.Key("peer.service")
	AttrResult      = attribute.Key("result")
	AttrEntity      = attribute.Key("tracker.entity")
	AttrEventType   = attribute.Key("tracker.event_type")
	AttrOperation   = attribute.Key("tracker.operation")

	// AttrOwnerID is for spans only; owners are unbounded as a metric label.
	AttrOwnerID = attribute.Key("tracker.owner_id")
)

// Identity labels every exported span and metric.
type Identity struct {
	Env     string
	Version string
}

// Providers owns what Setup started. The zero value (telemetry disabled)
// is usable: Metrics is nil and Shutdown does nothing.
type Providers struct {
	Metrics *Metrics

	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

// Setup builds the tracer and meter providers described by cfg, installs
// them as the otel globals together with the W3C trace-context and baggage
// propagators, and registers the tracker's instruments. It returns empty
// Providers when cfg is disabled.
func Setup(ctx context.Context, cfg config.TelemetryConfig, id Identity) (*Providers, error) {
	if !cfg.Enabled {
		return &Providers{}, nil
	}

	sink, err := parseCollector(cfg.Exporter, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(id.Version),
		attribute.String("deployment.environment.name", id.Env),
	))
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	p := &Providers{}
	spans, err := sink.spanExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("span exporter: %w", err)
	}
	p.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)

	points, err := sink.metricExporter(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("metric exporter: %w", err), p.Shutdown(ctx))
	}
	p.meter = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(points)),
		sdkmetric.WithResource(res),
	)

	if p.Metrics, err = NewMetrics(p.meter, cfg.ServiceName); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	otel.SetTracerProvider(p.tracer)
	otel.SetMeterProvider(p.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracer != nil {
		if err := p.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if p.meter != nil {
		if err := p.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// collector is where spans and metric points are exported.
type collector struct {
	exporter string
	// hostPort and insecure apply to otlp only.
	hostPort string
	insecure bool
}

// parseCollector accepts an OTLP endpoint as a bare host:port (plain HTTP)
// or as an http:// or https:// URL.
func parseCollector(exporter, endpoint string) (collector, error) {
	switch exporter {
	case ExporterStdout:
		return collector{exporter: exporter}, nil
	case ExporterOTLP:
	default:
		return collector{}, fmt.Errorf("unsupported exporter %q", exporter)
	}

	if endpoint == "" {
		return collector{}, errors.New("otlp exporter requires an endpoint")
	}
	c := collector{exporter: exporter, hostPort: endpoint, insecure: true}
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		c.hostPort = u.Host
		c.insecure = u.Scheme != "https"
	}
	return c, nil
}

func (c collector) spanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if c.exporter == ExporterStdout {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.hostPort)}
	if c.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func (c collector) metricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	if c.exporter == ExporterStdout {
		return stdoutmetric.New()
	}
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.hostPort)}
	if c.insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}
