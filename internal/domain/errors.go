package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for errors.Is() checking.
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnavailable     = errors.New("unavailable")
	ErrPersistence     = errors.New("persistence failure")
	ErrConsistencyRisk = errors.New("consistency risk")
)

// Validation messages shared by entity Validate methods.
const (
	MsgRequired = "is required"
	MsgPositive = "must be positive"
)

// ValidationError provides programmatic access to field-level validation failures.
// Use errors.Is(err, ErrValidation) for simple checks, or errors.As(err, &verr) to
// access verr.Fields for per-field error details.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError returns a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// PersistenceError reports that a single repository call failed. The
// underlying cause stays reachable through errors.Is/As, so a store that
// returned ErrNotFound still matches ErrNotFound.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence.Error(), e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Persistence wraps err as a PersistenceError for op. A nil err stays nil and
// an error that is already a PersistenceError is returned unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ConsistencyRiskError reports a multi-step operation that failed partway and
// left persisted state that no later step will clean up. Orphans lists the
// stage keys written before the failure.
type ConsistencyRiskError struct {
	Op      string
	State   string
	Orphans []string
	Err     error
}

func (e *ConsistencyRiskError) Error() string {
	return fmt.Sprintf("%s: %s failed in %s leaving %d orphan stage(s): %v",
		ErrConsistencyRisk.Error(), e.Op, e.State, len(e.Orphans), e.Err)
}

func (e *ConsistencyRiskError) Unwrap() []error {
	return []error{ErrConsistencyRisk, e.Err}
}
