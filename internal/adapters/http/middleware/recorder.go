// Package middleware holds the inbound request pipeline of the tracker API,
// registered on the chi router in this order:
//
//	Recovery, RequestIDs, OpenTelemetry, Logging, Timeout, handler
package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// statusRecorder notes what was sent on a response. Recovery, OpenTelemetry
// and Logging all need it and share one recorder per request.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	started bool
	bytes   int64
}

// record returns the recorder already wrapping w, or wraps it.
func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.started {
		return
	}
	rec.status, rec.started = code, true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.started = true
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the connection.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Hijack hands the connection to the feed's websocket upgrader and records
// the exchange as 101 Switching Protocols.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: underlying writer cannot hijack")
	}
	conn, buf, err := hj.Hijack()
	if err == nil {
		rec.status, rec.started = http.StatusSwitchingProtocols, true
	}
	return conn, buf, err
}

// routePattern is the chi pattern r matched, like
// /api/v1/owners/{ownerID}/stages, or the raw path when nothing matched.
func routePattern(r *http.Request) string {
	if p := matchedPattern(r); p != "" {
		return p
	}
	return r.URL.Path
}

func matchedPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// ownerParam is the {ownerID} of the matched route, if any.
func ownerParam(r *http.Request) string {
	return chi.URLParam(r, "ownerID")
}
