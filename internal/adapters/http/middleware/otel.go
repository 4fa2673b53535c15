package middleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
)

const instrumentationName = "stage-tracker/http"

// OpenTelemetry continues the caller's W3C trace context in a server span
// and records request duration and count. Spans and metric labels use the
// chi route pattern, never the raw path, so stage and task IDs stay out of
// both. metrics may be nil.
func OpenTelemetry(metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	tracer := otel.GetTracerProvider().Tracer(instrumentationName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			parent := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(parent, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(telemetry.AttrHTTPMethod.String(r.Method)),
			)
			defer span.End()

			rw := record(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			annotate(span, r, rw.status)
			if metrics == nil {
				return
			}
			set := metric.WithAttributeSet(requestAttrs(r, rw.status))
			metrics.ServerRequestDuration.Record(ctx, time.Since(start).Seconds(), set)
			metrics.ServerRequestTotal.Add(ctx, 1, set)
		})
	}
}

// annotate renames span after the matched route and stamps the outcome.
func annotate(span trace.Span, r *http.Request, status int) {
	route := routePattern(r)
	span.SetName(r.Method + " " + route)
	span.SetAttributes(
		telemetry.AttrHTTPRoute.String(route),
		telemetry.AttrHTTPStatus.Int(status),
	)
	if owner := ownerParam(r); owner != "" {
		span.SetAttributes(telemetry.AttrOwnerID.String(owner))
	}
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// requestAttrs labels one request for the server metrics. Requests that
// matched no route share the "unmatched" label. A feed connection counts
// once, when it closes.
func requestAttrs(r *http.Request, status int) attribute.Set {
	route := "unmatched"
	if matchedPattern(r) != "" {
		route = routePattern(r)
	}
	result := "success"
	if status >= http.StatusBadRequest {
		result = "error"
	}
	return attribute.NewSet(
		telemetry.AttrHTTPMethod.String(r.Method),
		telemetry.AttrHTTPRoute.String(route),
		telemetry.AttrHTTPStatus.Int(status),
		telemetry.AttrResult.String(result),
	)
}
