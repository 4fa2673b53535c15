package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/handlers"
	"github.com/jsamuelsen11/stage-tracker/internal/domain"
)

func TestAddStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     dto.CreateStageRequest
		want     int
		wantIcon string
	}{
		{name: "default icon", body: dto.CreateStageRequest{Name: "Intake"}, want: http.StatusCreated, wantIcon: "Phone"},
		{name: "custom icon", body: dto.CreateStageRequest{Name: "Review", Icon: "Eye"}, want: http.StatusCreated, wantIcon: "Eye"},
		{name: "blank name", body: dto.CreateStageRequest{Name: "  "}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _ := newTrackers(t)
			h := handlers.NewStageHandler(svc, newMockTemplates(t))

			req := newRequest(t, http.MethodPost, tt.body, map[string]string{handlers.ParamOwnerID: testOwner})
			rec := httptest.NewRecorder()
			h.AddStage(rec, req)

			requireStatus(t, rec, tt.want)
			if tt.want != http.StatusCreated {
				return
			}
			got := decodeJSON[dto.StageResponse](t, rec)
			if got.Icon != tt.wantIcon {
				t.Errorf("AddStage() icon = %q, want %q", got.Icon, tt.wantIcon)
			}
			assert.Equal(t, testOwner, got.OwnerID)
			assert.NotEmpty(t, got.StageKey)
		})
	}
}

func TestListStages_OrderedWithTasks(t *testing.T) {
	t.Parallel()
	svc, _ := newTrackers(t)
	first, _ := seedStage(t, svc, "Intake", "Call", "Email")
	second, _ := seedStage(t, svc, "Review")
	h := handlers.NewStageHandler(svc, newMockTemplates(t))

	rec := httptest.NewRecorder()
	h.ListStages(rec, newRequest(t, http.MethodGet, nil, map[string]string{handlers.ParamOwnerID: testOwner}))

	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[dto.PipelineResponse](t, rec)
	require.Len(t, got.Stages, 2)
	assert.Equal(t, first.StageKey, got.Stages[0].StageKey)
	assert.Equal(t, second.StageKey, got.Stages[1].StageKey)
	require.Len(t, got.Stages[0].Tasks, 2)
	assert.Equal(t, "Call", got.Stages[0].Tasks[0].Title)
	assert.Equal(t, "Email", got.Stages[0].Tasks[1].Title)
}

func TestReorderStages(t *testing.T) {
	t.Parallel()
	svc, _ := newTrackers(t)
	first, _ := seedStage(t, svc, "Intake")
	second, _ := seedStage(t, svc, "Review")
	h := handlers.NewStageHandler(svc, newMockTemplates(t))

	body := dto.StageKeysRequest{StageKeys: []string{second.StageKey, first.StageKey}}
	rec := httptest.NewRecorder()
	h.ReorderStages(rec, newRequest(t, http.MethodPost, body, map[string]string{handlers.ParamOwnerID: testOwner}))
	requireStatus(t, rec, http.StatusNoContent)

	tr, err := svc.Owner(context.Background(), testOwner)
	require.NoError(t, err)
	views := tr.Stages()
	require.Len(t, views, 2)
	assert.Equal(t, second.StageKey, views[0].StageKey)
	assert.Equal(t, first.StageKey, views[1].StageKey)
}

func TestAddTasks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body dto.CreateTasksRequest
		want int
	}{
		{name: "single", body: dto.CreateTasksRequest{Title: "Call"}, want: http.StatusCreated},
		{name: "bulk", body: dto.CreateTasksRequest{Titles: []string{"Call", "Email"}}, want: http.StatusCreated},
		{name: "both", body: dto.CreateTasksRequest{Title: "Call", Titles: []string{"Email"}}, want: http.StatusBadRequest},
		{name: "neither", body: dto.CreateTasksRequest{}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _ := newTrackers(t)
			st, _ := seedStage(t, svc, "Intake")
			h := handlers.NewStageHandler(svc, newMockTemplates(t))

			params := map[string]string{handlers.ParamOwnerID: testOwner, handlers.ParamStageKey: st.StageKey}
			rec := httptest.NewRecorder()
			h.AddTasks(rec, newRequest(t, http.MethodPost, tt.body, params))
			requireStatus(t, rec, tt.want)
		})
	}
}

func TestAddTasks_UnknownStage(t *testing.T) {
	t.Parallel()
	svc, _ := newTrackers(t)
	h := handlers.NewStageHandler(svc, newMockTemplates(t))

	params := map[string]string{handlers.ParamOwnerID: testOwner, handlers.ParamStageKey: "missing"}
	rec := httptest.NewRecorder()
	h.AddTasks(rec, newRequest(t, http.MethodPost, dto.CreateTasksRequest{Title: "Call"}, params))

	requireStatus(t, rec, http.StatusNotFound)
}

func TestCopyAndPasteStage(t *testing.T) {
	t.Parallel()
	svc, _ := newTrackers(t)
	st, _ := seedStage(t, svc, "Intake", "Call")
	h := handlers.NewStageHandler(svc, newMockTemplates(t))

	params := map[string]string{handlers.ParamOwnerID: testOwner, handlers.ParamStageKey: st.StageKey}
	rec := httptest.NewRecorder()
	h.CopyStage(rec, newRequest(t, http.MethodGet, nil, params))
	requireStatus(t, rec, http.StatusOK)
	snap := decodeJSON[dto.StageSnapshotPayload](t, rec)
	assert.Equal(t, "Intake", snap.Name)
	require.Len(t, snap.Tasks, 1)

	rec = httptest.NewRecorder()
	h.PasteStage(rec, newRequest(t, http.MethodPost, snap, map[string]string{handlers.ParamOwnerID: testOwner}))
	requireStatus(t, rec, http.StatusCreated)
	pasted := decodeJSON[dto.StageResponse](t, rec)
	assert.Equal(t, "Intake (copy)", pasted.Name)
	assert.NotEqual(t, st.StageKey, pasted.StageKey)
}

func TestCopyFromOwner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    dto.CopyFromOwnerRequest
		setup   func(m *mockTemplates)
		want    int
		wantKey []string
	}{
		{
			name: "copies",
			body: dto.CopyFromOwnerRequest{SourceOwnerID: "src", StageKeys: []string{"a"}},
			setup: func(m *mockTemplates) {
				m.On("CopyStagesFromOwner", mock.Anything, "src", testOwner, []string{"a"}, (*string)(nil)).
					Return([]string{"b"}, nil)
			},
			want:    http.StatusCreated,
			wantKey: []string{"b"},
		},
		{
			name: "missing source",
			body: dto.CopyFromOwnerRequest{},
			want: http.StatusBadRequest,
		},
		{
			name: "partial failure",
			body: dto.CopyFromOwnerRequest{SourceOwnerID: "src"},
			setup: func(m *mockTemplates) {
				m.On("CopyStagesFromOwner", mock.Anything, "src", testOwner, []string(nil), (*string)(nil)).
					Return([]string(nil), &domain.ConsistencyRiskError{
						Op: "CopyStagesFromOwner", State: "INSERTING_TASKS",
						Orphans: []string{"b"}, Err: errors.New("boom"),
					})
			},
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _ := newTrackers(t)
			m := newMockTemplates(t)
			if tt.setup != nil {
				tt.setup(m)
			}
			h := handlers.NewStageHandler(svc, m)

			rec := httptest.NewRecorder()
			h.CopyFromOwner(rec, newRequest(t, http.MethodPost, tt.body, map[string]string{handlers.ParamOwnerID: testOwner}))

			requireStatus(t, rec, tt.want)
			switch tt.want {
			case http.StatusCreated:
				got := decodeJSON[dto.StageKeysResponse](t, rec)
				assert.Equal(t, tt.wantKey, got.StageKeys)
			case http.StatusInternalServerError:
				got := decodeJSON[dto.Problem](t, rec)
				assert.Equal(t, []string{"b"}, got.Orphans)
			}
		})
	}
}

func TestDeleteStage_RemovesTasks(t *testing.T) {
	t.Parallel()
	svc, _ := newTrackers(t)
	st, _ := seedStage(t, svc, "Intake", "Call")
	h := handlers.NewStageHandler(svc, newMockTemplates(t))

	params := map[string]string{handlers.ParamOwnerID: testOwner, handlers.ParamStageKey: st.StageKey}
	rec := httptest.NewRecorder()
	h.DeleteStage(rec, newRequest(t, http.MethodDelete, nil, params))
	requireStatus(t, rec, http.StatusNoContent)

	tr, err := svc.Owner(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Empty(t, tr.Stages())
	assert.Zero(t, tr.Summary().TotalTasks)
}
