package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/storage/memory"
	"github.com/jsamuelsen11/stage-tracker/internal/app/tracker"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

const testOwner = "owner-1"

var testTime = time.Date(2026, 2, 12, 15, 4, 5, 0, time.UTC)

// newTrackers returns a tracker service over a fresh in-memory store.
func newTrackers(t *testing.T) (*tracker.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := tracker.NewService(store, store, slog.New(slog.DiscardHandler),
		tracker.WithClock(func() time.Time { return testTime }))
	t.Cleanup(func() {
		svc.Close()
		store.Close()
	})
	return svc, store
}

// seedStage adds a stage with the given task titles for testOwner.
func seedStage(t *testing.T, svc *tracker.Service, name string, titles ...string) (workflow.Stage, []workflow.Task) {
	t.Helper()
	ctx := context.Background()
	tr, err := svc.Owner(ctx, testOwner)
	if err != nil {
		t.Fatalf("Owner() error = %v", err)
	}
	st, err := tr.AddStage(ctx, name, "")
	if err != nil {
		t.Fatalf("AddStage() error = %v", err)
	}
	if len(titles) == 0 {
		return st, nil
	}
	tasks, err := tr.AddBulkTasks(ctx, st.StageKey, titles)
	if err != nil {
		t.Fatalf("AddBulkTasks() error = %v", err)
	}
	return st, tasks
}

// mockTemplates is a testify mock of ports.TemplateService.
type mockTemplates struct {
	mock.Mock
}

func newMockTemplates(t *testing.T) *mockTemplates {
	t.Helper()
	m := &mockTemplates{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockTemplates) ListTemplates(ctx context.Context) ([]template.Template, error) {
	args := m.Called(ctx)
	return args.Get(0).([]template.Template), args.Error(1)
}

func (m *mockTemplates) GetTemplate(ctx context.Context, id string) (template.Template, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(template.Template), args.Error(1)
}

func (m *mockTemplates) SaveAsTemplate(ctx context.Context, ownerID, name string, includeContent bool, description *string) (template.Template, error) {
	args := m.Called(ctx, ownerID, name, includeContent, description)
	return args.Get(0).(template.Template), args.Error(1)
}

func (m *mockTemplates) SaveStageAsTemplate(ctx context.Context, ownerID, stageKey, name string, description *string) (template.Template, error) {
	args := m.Called(ctx, ownerID, stageKey, name, description)
	return args.Get(0).(template.Template), args.Error(1)
}

func (m *mockTemplates) ApplyTemplate(ctx context.Context, ownerID, templateID string, opts template.ApplyOptions) (template.ApplyReport, error) {
	args := m.Called(ctx, ownerID, templateID, opts)
	return args.Get(0).(template.ApplyReport), args.Error(1)
}

func (m *mockTemplates) UpdateTemplate(ctx context.Context, id string, u template.Update) (template.Template, error) {
	args := m.Called(ctx, id, u)
	return args.Get(0).(template.Template), args.Error(1)
}

func (m *mockTemplates) DeleteTemplate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTemplates) CopyStagesFromOwner(ctx context.Context, sourceOwnerID, targetOwnerID string, stageKeys []string, folderID *string) ([]string, error) {
	args := m.Called(ctx, sourceOwnerID, targetOwnerID, stageKeys, folderID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockTemplates) ExportTemplate(ctx context.Context, id string) (template.Bundle, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(template.Bundle), args.Error(1)
}

func (m *mockTemplates) ImportTemplate(ctx context.Context, b template.Bundle) (template.Template, error) {
	args := m.Called(ctx, b)
	return args.Get(0).(template.Template), args.Error(1)
}

func withChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func newRequest(t *testing.T, method string, body any, params map[string]string) *http.Request {
	t.Helper()
	var buf *bytes.Buffer
	if body == nil {
		buf = &bytes.Buffer{}
	} else {
		buf = jsonBody(t, body)
	}
	req := httptest.NewRequest(method, "/", buf)
	return withChiParams(req, params)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("failed to encode JSON body: %v", err)
	}
	return buf
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return result
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}
