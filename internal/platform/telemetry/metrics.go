package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds pre-registered OpenTelemetry metric instruments.
type Metrics struct {
	ServerRequestDuration metric.Float64Histogram
	ServerRequestTotal    metric.Int64Counter
	ClientRequestDuration metric.Float64Histogram
	ClientRequestTotal    metric.Int64Counter

	// FeedEventsTotal counts change-feed events merged into tracker caches.
	FeedEventsTotal metric.Int64Counter
	// DedupRemovedTotal counts duplicate tasks dropped from caches.
	DedupRemovedTotal metric.Int64Counter
	// ReorderResyncTotal counts reloads triggered by a failed reorder.
	ReorderResyncTotal metric.Int64Counter
	// RevertTotal counts optimistic writes rolled back after a store error.
	RevertTotal metric.Int64Counter
	// TemplateApplyTotal counts template applications by result.
	TemplateApplyTotal metric.Int64Counter
}

// NewMetrics creates and registers all metric instruments on a meter
// scoped to name.
func NewMetrics(mp metric.MeterProvider, name string) (*Metrics, error) {
	meter := mp.Meter(name)
	m := &Metrics{}

	var err error
	histograms := []struct {
		dst               *metric.Float64Histogram
		name, desc, unit string
	}{
		{&m.ServerRequestDuration, "http.server.request.duration", "Duration of incoming HTTP requests", "s"},
		{&m.ClientRequestDuration, "http.client.request.duration", "Duration of outgoing HTTP requests", "s"},
	}
	for _, h := range histograms {
		*h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit(h.unit))
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", h.name, err)
		}
	}

	counters := []struct {
		dst               *metric.Int64Counter
		name, desc, unit string
	}{
		{&m.ServerRequestTotal, "http.server.request.total", "Total number of incoming HTTP requests", "{request}"},
		{&m.ClientRequestTotal, "http.client.request.total", "Total number of outgoing HTTP requests", "{request}"},
		{&m.FeedEventsTotal, "tracker.feed.events", "Change-feed events merged into tracker caches", "{event}"},
		{&m.DedupRemovedTotal, "tracker.dedup.removed", "Duplicate tasks removed from tracker caches", "{task}"},
		{&m.ReorderResyncTotal, "tracker.reorder.resyncs", "Reloads after a failed reorder", "{reload}"},
		{&m.RevertTotal, "tracker.optimistic.reverts", "Optimistic writes reverted after a store error", "{write}"},
		{&m.TemplateApplyTotal, "tracker.template.applies", "Template applications", "{apply}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", c.name, err)
		}
	}

	return m, nil
}

// NopMetrics returns instruments that record nothing, for tests and
// command-line tools that run without a meter provider.
func NopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider(), "noop")
	if err != nil {
		panic(fmt.Sprintf("telemetry: noop metrics: %v", err))
	}
	return m
}
