package handlers

import (
	"net/http"
	"slices"

	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

const (
	statusOK       = "ok"
	statusFailing  = "failing"
	statusReady    = "ready"
	statusNotReady = "not_ready"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	registry   ports.HealthRegistry
	liveOwners func() int
}

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// WithLiveOwners adds the number of loaded owner trackers to the readiness
// body, as reported by count.
func WithLiveOwners(count func() int) HealthOption {
	return func(h *HealthHandler) {
		h.liveOwners = count
	}
}

// NewHealthHandler creates a HealthHandler reporting the checks in registry.
func NewHealthHandler(registry ports.HealthRegistry, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{registry: registry}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                 `json:"status"`
	Failing    []string               `json:"failing,omitempty"`
	Checks     map[string]checkResult `json:"checks"`
	LiveOwners *int                   `json:"live_owners,omitempty"`
}

// Liveness handles GET /health/live. It answers 200 while the process runs.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": statusOK})
}

// Readiness handles GET /health/ready. Any failing check, typically the
// store or the row-store breaker, turns the answer into a 503 naming the
// failing checks in sorted order.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	resp := readinessResponse{
		Status: statusReady,
		Checks: make(map[string]checkResult),
	}
	for name, err := range h.registry.CheckAll(r.Context()) {
		if err == nil {
			resp.Checks[name] = checkResult{Status: statusOK}
			continue
		}
		resp.Checks[name] = checkResult{Status: statusFailing, Error: err.Error()}
		resp.Failing = append(resp.Failing, name)
	}
	slices.Sort(resp.Failing)

	if h.liveOwners != nil {
		n := h.liveOwners()
		resp.LiveOwners = &n
	}

	code := http.StatusOK
	if len(resp.Failing) > 0 {
		resp.Status = statusNotReady
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, resp)
}
