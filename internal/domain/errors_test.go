package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError_ErrorsIs(t *testing.T) {
	t.Parallel()

	verr := NewValidationError("name", MsgRequired)

	if !errors.Is(verr, ErrValidation) {
		t.Error("errors.Is(ValidationError, ErrValidation) = false, want true")
	}

	// Wrapped further
	wrapped := fmt.Errorf("operation failed: %w", verr)
	if !errors.Is(wrapped, ErrValidation) {
		t.Error("errors.Is(wrapped ValidationError, ErrValidation) = false, want true")
	}
}

func TestValidationError_ErrorsAs(t *testing.T) {
	t.Parallel()

	original := &ValidationError{Fields: map[string]string{
		"name":                MsgRequired,
		"target_working_days": MsgPositive,
	}}

	wrapped := fmt.Errorf("operation failed: %w", original)

	var verr *ValidationError
	if !errors.As(wrapped, &verr) {
		t.Fatal("errors.As(wrapped, *ValidationError) = false, want true")
	}

	if len(verr.Fields) != 2 {
		t.Errorf("ValidationError.Fields has %d entries, want 2", len(verr.Fields))
	}
	if verr.Fields["name"] != MsgRequired {
		t.Errorf("Fields[\"name\"] = %q, want %q", verr.Fields["name"], MsgRequired)
	}
}

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	verr := &ValidationError{Fields: map[string]string{
		"title": MsgRequired,
		"icon":  MsgRequired,
	}}

	want := "validation error: icon: is required; title: is required"
	if got := verr.Error(); got != want {
		t.Errorf("ValidationError.Error() = %q, want %q", got, want)
	}
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("stage k1: %w", ErrNotFound)

	tests := []struct {
		name     string
		err      error
		wantNil  bool
		wantOp   string
		wantCause error
	}{
		{name: "nil stays nil", err: nil, wantNil: true},
		{name: "wraps cause", err: cause, wantOp: "UpdateStage", wantCause: ErrNotFound},
		{name: "keeps innermost op", err: Persistence("InsertTasks", errors.New("timeout")), wantOp: "InsertTasks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Persistence("UpdateStage", tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Persistence(nil) = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, ErrPersistence) {
				t.Errorf("errors.Is(%v, ErrPersistence) = false, want true", got)
			}
			var perr *PersistenceError
			if !errors.As(got, &perr) {
				t.Fatalf("errors.As(%v, *PersistenceError) = false, want true", got)
			}
			if perr.Op != tt.wantOp {
				t.Errorf("PersistenceError.Op = %q, want %q", perr.Op, tt.wantOp)
			}
			if tt.wantCause != nil && !errors.Is(got, tt.wantCause) {
				t.Errorf("errors.Is(%v, %v) = false, want true", got, tt.wantCause)
			}
		})
	}
}

func TestConsistencyRiskError(t *testing.T) {
	t.Parallel()

	cause := Persistence("InsertTasks", errors.New("write timeout"))
	err := fmt.Errorf("apply: %w", &ConsistencyRiskError{
		Op:      "ApplyTemplate",
		State:   "INSERTING_TASKS",
		Orphans: []string{"k1", "k2"},
		Err:     cause,
	})

	if !errors.Is(err, ErrConsistencyRisk) {
		t.Error("errors.Is(err, ErrConsistencyRisk) = false, want true")
	}
	if !errors.Is(err, ErrPersistence) {
		t.Error("errors.Is(err, ErrPersistence) = false, want true")
	}
	var rerr *ConsistencyRiskError
	if !errors.As(err, &rerr) {
		t.Fatal("errors.As(err, *ConsistencyRiskError) = false, want true")
	}
	if len(rerr.Orphans) != 2 {
		t.Errorf("Orphans = %v, want 2 keys", rerr.Orphans)
	}
	if msg := err.Error(); !strings.Contains(msg, "INSERTING_TASKS") || !strings.Contains(msg, "2 orphan stage(s)") {
		t.Errorf("Error() = %q, want state and orphan count", msg)
	}
}

func TestSentinelErrors(t *testing.T) {
	t.Parallel()

	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrValidation", ErrValidation},
		{"ErrConflict", ErrConflict},
		{"ErrForbidden", ErrForbidden},
		{"ErrUnavailable", ErrUnavailable},
		{"ErrPersistence", ErrPersistence},
		{"ErrConsistencyRisk", ErrConsistencyRisk},
	}

	for _, tt := range sentinels {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Wrapping preserves identity
			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("errors.Is(wrapped, %s) = false", tt.name)
			}
		})
	}

	// All sentinels are distinct
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a.err, b.err) {
				t.Errorf("%s and %s should be distinct", a.name, b.name)
			}
		}
	}
}
