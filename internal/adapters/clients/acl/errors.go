// Package acl is the anti-corruption layer for the hosted row store. It
// translates between the store's PostgREST-style rows, realtime frames and
// error bodies and the domain types, so nothing outside this package sees
// the wire format.
package acl

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

// maxErrorBody caps how much of an error body is read.
const maxErrorBody = 64 << 10

// sqlStateKinds maps SQLSTATE and PostgREST codes found in an error body to
// domain errors. A known code wins over the HTTP status.
var sqlStateKinds = map[string]error{
	"23505":    domain.ErrConflict, // unique_violation
	"23503":    domain.ErrNotFound, // foreign_key_violation
	"23502":    domain.ErrValidation,
	"22P02":    domain.ErrValidation, // invalid_text_representation
	"42501":    domain.ErrForbidden,  // insufficient_privilege
	"PGRST116": domain.ErrNotFound,   // single row requested, none returned
	"PGRST301": domain.ErrForbidden,  // JWT rejected
}

func statusKind(status int) error {
	switch {
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case status == http.StatusConflict:
		return domain.ErrConflict
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrForbidden
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return domain.ErrUnavailable
	default:
		return nil
	}
}

// errorBody is what can be read from a failed response: the row store's
// {code, message, details, hint} body or an RFC 9457 problem body.
type errorBody struct {
	code    string
	message string
	fields  map[string]string
}

func readErrorBody(resp *http.Response) errorBody {
	if resp.Body == nil {
		return errorBody{}
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mt != "application/json" && mt != "application/problem+json" {
		return errorBody{}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || !gjson.ValidBytes(raw) {
		return errorBody{}
	}

	doc := gjson.ParseBytes(raw)
	b := errorBody{
		code:    doc.Get("code").String(),
		message: cmp.Or(doc.Get("detail").String(), doc.Get("message").String()),
	}
	if hint := doc.Get("hint").String(); hint != "" && b.message != "" {
		b.message += " (" + hint + ")"
	}
	doc.Get("errors").ForEach(func(_, e gjson.Result) bool {
		loc := strings.TrimPrefix(e.Get("location").String(), "body.")
		if loc != "" {
			if b.fields == nil {
				b.fields = make(map[string]string)
			}
			b.fields[loc] = e.Get("message").String()
		}
		return true
	})
	return b
}

// ResponseError turns a failed row-store response into a domain error. The
// body is consumed but not closed.
func ResponseError(resp *http.Response) error {
	body := readErrorBody(resp)
	msg := cmp.Or(body.message, http.StatusText(resp.StatusCode))

	kind := sqlStateKinds[body.code]
	if kind == nil {
		kind = statusKind(resp.StatusCode)
	}
	switch {
	case kind == nil:
		return fmt.Errorf("row store answered %d: %s", resp.StatusCode, msg)
	case errors.Is(kind, domain.ErrValidation) && len(body.fields) > 0:
		return &domain.ValidationError{Fields: body.fields}
	default:
		return fmt.Errorf("%s: %w", msg, kind)
	}
}

// transportError describes a call that produced no usable response. The
// store is reported unavailable unless the caller gave up first.
func transportError(method, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrUnavailable, err)
}
