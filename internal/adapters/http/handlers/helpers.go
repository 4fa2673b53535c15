package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/logging"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// Path parameter names shared with the router.
const (
	ParamOwnerID    = "ownerID"
	ParamStageKey   = "stageKey"
	ParamTaskID     = "taskID"
	ParamTemplateID = "templateID"
)

// pathParam extracts a required chi URL parameter.
func pathParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", domain.NewValidationError(name, domain.MsgRequired)
	}
	return v, nil
}

// ownerTracker resolves the tracker named by the ownerID path parameter.
// On failure it writes an error response and returns false.
func ownerTracker(w http.ResponseWriter, r *http.Request, trackers ports.TrackerService) (ports.OwnerTracker, bool) {
	ownerID, err := pathParam(r, ParamOwnerID)
	if err != nil {
		dto.WriteProblem(w, r, err)
		return nil, false
	}
	tr, err := trackers.Owner(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return tr, true
}

// writeError logs err with the request-scoped logger and writes the
// problem response. Client errors are logged at debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := dto.StatusFor(err)
	level, msg := slog.LevelDebug, "request rejected"
	if status >= http.StatusInternalServerError {
		level, msg = slog.LevelError, "request failed"
	}
	logging.FromContext(r.Context()).LogAttrs(r.Context(), level, msg,
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	dto.WriteProblem(w, r, err)
}

// writeJSON sends v with status. Encoding failures can only be logged; the
// status line is already out.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).WarnContext(r.Context(), "encoding response body", slog.Any("error", err))
	}
}

// maxBodyBytes caps request bodies; template saves are the largest.
const maxBodyBytes = 1 << 20

// bodyProblem explains why a request body could not be decoded.
func bodyProblem(err error) string {
	var (
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		typ      *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return "must not be empty"
	case errors.As(err, &tooLarge):
		return fmt.Sprintf("must not exceed %d bytes", tooLarge.Limit)
	case errors.As(err, &syntax):
		return fmt.Sprintf("invalid JSON at offset %d", syntax.Offset)
	case errors.As(err, &typ) && typ.Field != "":
		return fmt.Sprintf("field %s must be %s", typ.Field, typ.Type)
	default:
		return "invalid JSON"
	}
}

// decodeAndValidate reads the JSON body into dst and validates it, writing
// a 400 problem and returning false on failure.
func decodeAndValidate[T interface{ Validate() error }](w http.ResponseWriter, r *http.Request, dst T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		dto.WriteProblem(w, r, domain.NewValidationError("body", bodyProblem(err)))
		return false
	}
	if err := dst.Validate(); err != nil {
		dto.WriteProblem(w, r, err)
		return false
	}
	return true
}
