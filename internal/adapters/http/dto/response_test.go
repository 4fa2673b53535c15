package dto_test

import (
	"testing"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

var testTime = time.Date(2026, 2, 12, 15, 4, 5, 0, time.UTC)

func testStage(key string, order int) workflow.Stage {
	return workflow.Stage{
		ID: "id-" + key, OwnerID: "o1", StageKey: key, Name: key, Icon: "Inbox", SortOrder: order,
		Timer:     workflow.Timer{DisplayStyle: workflow.DisplayStyleFirst},
		CreatedAt: testTime, UpdatedAt: testTime,
	}
}

func TestToPipelineResponse(t *testing.T) {
	t.Parallel()

	views := []workflow.StageView{
		{Stage: testStage("a", 0), Tasks: []workflow.Task{{ID: "t1", StageKey: "a", Title: "Call", Completed: true}}},
		{Stage: testStage("b", 1)},
	}

	got := dto.ToPipelineResponse("o1", views)

	if got.OwnerID != "o1" || len(got.Stages) != 2 {
		t.Fatalf("ToPipelineResponse() = %+v, want 2 stages for o1", got)
	}
	if got.Stages[0].StageKey != "a" || len(got.Stages[0].Tasks) != 1 {
		t.Errorf("Stages[0] = %+v, want key a with one task", got.Stages[0])
	}
	if got.Stages[1].Tasks == nil {
		t.Error("Stages[1].Tasks = nil, want empty slice")
	}
	if got.Stages[0].Timer.DisplayStyle != 1 {
		t.Errorf("Timer.DisplayStyle = %d, want 1", got.Stages[0].Timer.DisplayStyle)
	}
	if got.Stages[0].Timer.Running {
		t.Error("Timer.Running = true for a stage that was never started")
	}
}

func TestToStageResponse_RunningTimer(t *testing.T) {
	t.Parallel()

	st := testStage("a", 0)
	started := testTime.Add(-time.Hour)
	st.StartedAt = &started

	got := dto.ToStageResponse(st)
	if !got.Timer.Running {
		t.Error("Timer.Running = false, want true once started_at is set")
	}
	if got.Timer.StartedAt == nil || !got.Timer.StartedAt.Equal(started) {
		t.Errorf("Timer.StartedAt = %v, want %v", got.Timer.StartedAt, started)
	}
}

func TestToSummaryResponse(t *testing.T) {
	t.Parallel()

	current := testStage("b", 1)
	got := dto.ToSummaryResponse(workflow.Summary{
		TotalStages: 2, CompletedStages: 1, TotalTasks: 3, CompletedTasks: 2, CurrentStage: &current,
	})

	if got.AllComplete {
		t.Error("AllComplete = true, want false")
	}
	if got.CurrentStage == nil || got.CurrentStage.StageKey != "b" {
		t.Errorf("CurrentStage = %+v, want stage b", got.CurrentStage)
	}

	empty := dto.ToSummaryResponse(workflow.Summary{})
	if empty.CurrentStage != nil {
		t.Errorf("CurrentStage = %+v, want nil for an empty owner", empty.CurrentStage)
	}
}

func TestToApplyReportResponse(t *testing.T) {
	t.Parallel()

	var r template.ApplyReport
	r.TemplateID = "tpl-1"
	r.Advance(template.StateInsertingStages)
	r.Advance(template.StateFailed)

	got := dto.ToApplyReportResponse(r)

	if got.State != "FAILED" {
		t.Errorf("State = %q, want FAILED", got.State)
	}
	want := []string{"PREPARING", "INSERTING_STAGES", "FAILED"}
	if len(got.Transitions) != len(want) {
		t.Fatalf("Transitions = %v, want %v", got.Transitions, want)
	}
	for i := range want {
		if got.Transitions[i] != want[i] {
			t.Errorf("Transitions[%d] = %q, want %q", i, got.Transitions[i], want[i])
		}
	}
	if got.StageKeys == nil {
		t.Error("StageKeys = nil, want empty slice")
	}
}

func TestToChangeEventResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		event     workflow.ChangeEvent
		wantStage bool
		wantID    string
	}{
		{name: "stage insert", event: workflow.StageInserted(testStage("a", 0)), wantStage: true, wantID: "id-a"},
		{name: "task delete", event: workflow.TaskDeleted(workflow.Task{ID: "t9", OwnerID: "o1"}), wantID: "t9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := dto.ToChangeEventResponse(tt.event)

			if got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
			if (got.Stage != nil) != tt.wantStage || (got.Task != nil) == tt.wantStage {
				t.Errorf("ToChangeEventResponse() = %+v, want stage set = %v", got, tt.wantStage)
			}
		})
	}
}

func TestToTemplateListResponse(t *testing.T) {
	t.Parallel()

	days := 4
	got := dto.ToTemplateListResponse([]template.Template{{
		ID: "tpl-1", Name: "Onboarding", MultiStage: true, TaskCount: 5,
		Stages: []template.Stage{{ID: "ts1", Name: "Intake", TargetWorkingDays: &days}},
	}})

	if got.Count != 1 {
		t.Fatalf("Count = %d, want 1", got.Count)
	}
	tpl := got.Templates[0]
	if tpl.TaskCount != 5 || len(tpl.Stages) != 1 || *tpl.Stages[0].TargetWorkingDays != 4 {
		t.Errorf("Templates[0] = %+v, want 5 tasks and one stage with target 4", tpl)
	}
}
