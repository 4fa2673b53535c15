package dto

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

// problemTypePrefix namespaces the Type of every Problem; the Code follows.
const problemTypePrefix = "urn:stage-tracker:problem:"

// Problem is an RFC 9457 problem details body. Code is a stable,
// machine-readable extension member clients can switch on.
type Problem struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Code     string         `json:"code"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Errors   []ProblemField `json:"errors,omitempty"`
	// Orphans lists stage keys left behind by a partially failed operation.
	Orphans []string `json:"orphans,omitempty"`
}

// ProblemField points at one rejected input value.
type ProblemField struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// problemKind pairs a domain sentinel with its HTTP rendering.
type problemKind struct {
	target error
	status int
	code   string
}

// problemKinds is checked in order. A consistency risk outranks whatever
// caused it, and a persistence failure falls through to its cause's kind
// before being reported as a bad gateway.
var problemKinds = []problemKind{
	{domain.ErrConsistencyRisk, http.StatusInternalServerError, "consistency_risk"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	{domain.ErrValidation, http.StatusBadRequest, "validation"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
	{domain.ErrPersistence, http.StatusBadGateway, "store_failure"},
}

var internalKind = problemKind{status: http.StatusInternalServerError, code: "internal"}

func kindOf(err error) problemKind {
	for _, k := range problemKinds {
		if errors.Is(err, k.target) {
			return k
		}
	}
	return internalKind
}

// StatusFor returns the HTTP status err is reported with.
func StatusFor(err error) int {
	return kindOf(err).status
}

// NewProblem describes err for the request r.
func NewProblem(r *http.Request, err error) Problem {
	k := kindOf(err)
	p := Problem{
		Type:     problemTypePrefix + k.code,
		Title:    http.StatusText(k.status),
		Status:   k.status,
		Code:     k.code,
		Detail:   err.Error(),
		Instance: r.URL.Path,
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		p.Errors = fieldsOf(verr)
	}
	var rerr *domain.ConsistencyRiskError
	if errors.As(err, &rerr) {
		p.Orphans = rerr.Orphans
	}
	return p
}

// WriteProblem writes err as application/problem+json.
func WriteProblem(w http.ResponseWriter, r *http.Request, err error) {
	p := NewProblem(r, err)

	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(p.Status)

	if encErr := json.NewEncoder(w).Encode(p); encErr != nil {
		slog.ErrorContext(r.Context(), "encoding problem body", slog.Any("error", encErr))
	}
}

// fieldsOf lists the rejected body fields ordered by location.
func fieldsOf(verr *domain.ValidationError) []ProblemField {
	fields := make([]ProblemField, 0, len(verr.Fields))
	for name, msg := range verr.Fields {
		fields = append(fields, ProblemField{Location: "body." + name, Message: msg})
	}
	slices.SortFunc(fields, func(a, b ProblemField) int {
		return cmp.Compare(a.Location, b.Location)
	})
	return fields
}
