package acl

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/httpclient"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// Compile-time interface checks.
var (
	_ ports.Store         = (*RowStore)(nil)
	_ ports.HealthChecker = (*RowStore)(nil)
)

const (
	preferMinimal        = "return=minimal"
	preferRepresentation = "return=representation"

	rowOrder = "sort_order.asc,created_at.asc,id.asc"
)

// RowStore is the outbound adapter for the hosted row store. It implements
// every repository port over the store's REST interface and delegates
// Subscribe to a realtime feed.
//
// The underlying [httpclient.Client] provides circuit breaking, retry with
// exponential backoff, rate limiting, OpenTelemetry tracing and the api
// key headers for every call.
type RowStore struct {
	req    *Requester
	feed   ports.ChangeFeed
	logger *slog.Logger
}

// NewRowStore creates a RowStore. A nil feed yields subscriptions that
// never deliver, so trackers rely on reloads alone.
func NewRowStore(client *httpclient.Client, feed ports.ChangeFeed, logger *slog.Logger) *RowStore {
	if feed == nil {
		logger.Warn("row store has no realtime feed; remote changes arrive only on reload")
		feed = idleFeed{}
	}
	return &RowStore{
		req:    NewRequester(client, logger),
		feed:   feed,
		logger: logger,
	}
}

// Subscribe implements ports.ChangeFeed.
func (s *RowStore) Subscribe(ctx context.Context, ownerID string, entity workflow.EntityKind) (<-chan workflow.ChangeEvent, error) {
	return s.feed.Subscribe(ctx, ownerID, entity)
}

// --- stages ---

// ListStages implements ports.StageRepository.
func (s *RowStore) ListStages(ctx context.Context, ownerID string) ([]workflow.Stage, error) {
	var rows []stageRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   "/stages",
		Query:  url.Values{"owner_id": {eq(ownerID)}, "order": {rowOrder}},
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return nil, err
	}
	out := make([]workflow.Stage, len(rows))
	for i, r := range rows {
		out[i] = toDomainStage(r)
	}
	return out, nil
}

// InsertStages implements ports.StageRepository. The row store inserts a
// batch in one statement.
func (s *RowStore) InsertStages(ctx context.Context, stages []workflow.Stage) error {
	if len(stages) == 0 {
		return nil
	}
	rows := make([]stageRow, len(stages))
	for i, st := range stages {
		rows[i] = toStageRow(st)
	}
	return s.req.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   "/stages",
		Prefer: preferMinimal,
		Body:   rows,
		Want:   http.StatusCreated,
	})
}

// UpdateStage implements ports.StageRepository.
func (s *RowStore) UpdateStage(ctx context.Context, id string, patch workflow.StagePatch) error {
	var rows []stageRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodPatch,
		Path:   "/stages",
		Query:  url.Values{"id": {eq(id)}},
		Prefer: preferRepresentation,
		Body:   stagePatchBody(patch),
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("stage %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteStages implements ports.StageRepository.
func (s *RowStore) DeleteStages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.req.Do(ctx, Call{
		Method: http.MethodDelete,
		Path:   "/stages",
		Query:  url.Values{"id": {in(ids)}},
		Want:   http.StatusNoContent,
	})
}

// --- tasks ---

// ListTasks implements ports.TaskRepository.
func (s *RowStore) ListTasks(ctx context.Context, ownerID string) ([]workflow.Task, error) {
	var rows []taskRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   "/tasks",
		Query:  url.Values{"owner_id": {eq(ownerID)}, "order": {rowOrder}},
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return nil, err
	}
	out := make([]workflow.Task, len(rows))
	for i, r := range rows {
		out[i] = toDomainTask(r)
	}
	return out, nil
}

// InsertTasks implements ports.TaskRepository.
func (s *RowStore) InsertTasks(ctx context.Context, tasks []workflow.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	rows := make([]taskRow, len(tasks))
	for i, t := range tasks {
		rows[i] = toTaskRow(t)
	}
	return s.req.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   "/tasks",
		Prefer: preferMinimal,
		Body:   rows,
		Want:   http.StatusCreated,
	})
}

// UpdateTask implements ports.TaskRepository.
func (s *RowStore) UpdateTask(ctx context.Context, id string, patch workflow.TaskPatch) error {
	var rows []taskRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodPatch,
		Path:   "/tasks",
		Query:  url.Values{"id": {eq(id)}},
		Prefer: preferRepresentation,
		Body:   taskPatchBody(patch),
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteTasks implements ports.TaskRepository.
func (s *RowStore) DeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.req.Do(ctx, Call{
		Method: http.MethodDelete,
		Path:   "/tasks",
		Query:  url.Values{"id": {in(ids)}},
		Want:   http.StatusNoContent,
	})
}

// DeleteTasksByStage implements ports.TaskRepository.
func (s *RowStore) DeleteTasksByStage(ctx context.Context, ownerID string, stageKeys []string) error {
	if len(stageKeys) == 0 {
		return nil
	}
	return s.req.Do(ctx, Call{
		Method: http.MethodDelete,
		Path:   "/tasks",
		Query:  url.Values{"owner_id": {eq(ownerID)}, "stage_key": {in(stageKeys)}},
		Want:   http.StatusNoContent,
	})
}

// --- templates ---

const templateSelect = "*,template_stages(*),template_tasks(count)"

// ListTemplates implements ports.TemplateRepository.
func (s *RowStore) ListTemplates(ctx context.Context) ([]template.Template, error) {
	var rows []templateRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   "/templates",
		Query:  url.Values{"select": {templateSelect}, "order": {"created_at.desc,id.asc"}},
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return nil, err
	}
	out := make([]template.Template, len(rows))
	for i, r := range rows {
		out[i] = toDomainTemplate(r)
	}
	return out, nil
}

// GetTemplate implements ports.TemplateRepository.
func (s *RowStore) GetTemplate(ctx context.Context, id string) (template.Template, error) {
	var rows []templateRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   "/templates",
		Query:  url.Values{"select": {templateSelect}, "id": {eq(id)}},
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return template.Template{}, err
	}
	if len(rows) == 0 {
		return template.Template{}, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	return toDomainTemplate(rows[0]), nil
}

// CreateTemplate implements ports.TemplateRepository.
func (s *RowStore) CreateTemplate(ctx context.Context, t template.Template) error {
	return s.req.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   "/templates",
		Prefer: preferMinimal,
		Body:   toTemplateRow(t),
		Want:   http.StatusCreated,
	})
}

// UpdateTemplate implements ports.TemplateRepository.
func (s *RowStore) UpdateTemplate(ctx context.Context, id string, u template.Update) error {
	body := make(map[string]any)
	if u.Name != nil {
		body["name"] = *u.Name
	}
	if u.Description != nil {
		body["description"] = *u.Description
	}
	if u.Icon != nil {
		body["icon"] = *u.Icon
	}
	if u.Color != nil {
		body["color"] = *u.Color
	}

	var rows []templateRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodPatch,
		Path:   "/templates",
		Query:  url.Values{"id": {eq(id)}},
		Prefer: preferRepresentation,
		Body:   body,
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteTemplate implements ports.TemplateRepository. The row store
// cascades to the template's stages and tasks.
func (s *RowStore) DeleteTemplate(ctx context.Context, id string) error {
	var rows []templateRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodDelete,
		Path:   "/templates",
		Query:  url.Values{"id": {eq(id)}},
		Prefer: preferRepresentation,
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// InsertTemplateStages implements ports.TemplateRepository.
func (s *RowStore) InsertTemplateStages(ctx context.Context, stages []template.Stage) error {
	if len(stages) == 0 {
		return nil
	}
	rows := make([]templateStageRow, len(stages))
	for i, st := range stages {
		rows[i] = toTemplateStageRow(st)
	}
	return s.req.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   "/template_stages",
		Prefer: preferMinimal,
		Body:   rows,
		Want:   http.StatusCreated,
	})
}

// ListTemplateStages implements ports.TemplateRepository.
func (s *RowStore) ListTemplateStages(ctx context.Context, templateID string) ([]template.Stage, error) {
	var rows []templateStageRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   "/template_stages",
		Query:  url.Values{"template_id": {eq(templateID)}, "order": {"sort_order.asc,id.asc"}},
		Want:   http.StatusOK,
		Out:    &rows,
	})
	if err != nil {
		return nil, err
	}
	return toDomainTemplateStages(rows), nil
}

// InsertTemplateTasks implements ports.TemplateRepository.
func (s *RowStore) InsertTemplateTasks(ctx context.Context, tasks []template.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	rows := make([]templateTaskRow, len(tasks))
	for i, t := range tasks {
		rows[i] = toTemplateTaskRow(t)
	}
	return s.req.Do(ctx, Call{
		Method: http.MethodPost,
		Path:   "/template_tasks",
		Prefer: preferMinimal,
		Body:   rows,
		Want:   http.StatusCreated,
	})
}

// ListTemplateTasks implements ports.TemplateRepository.
func (s *RowStore) ListTemplateTasks(ctx context.Context, templateStageIDs []string) ([]template.Task, error) {
	if len(templateStageIDs) == 0 {
		return []template.Task{}, nil
	}
	var rows []templateTaskRow
	err := s.req.Do(ctx, Call{
		Method: http.MethodGet,
		Path:   "/template_tasks",
		Query: url.Values{
			"template_stage_id": {in(templateStageIDs)},
			"order":             {"template_stage_id.asc,sort_order.asc,id.asc"},
		},
		Want: http.StatusOK,
		Out:  &rows,
	})
	if err != nil {
		return nil, err
	}
	out := make([]template.Task, len(rows))
	for i, r := range rows {
		out[i] = toDomainTemplateTask(r)
	}
	return out, nil
}

// --- filters ---

func eq(v string) string {
	return "eq." + v
}

// in builds an in.(...) filter with every value double-quoted.
func in(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}

func sortTemplateStages(stages []template.Stage) {
	slices.SortFunc(stages, func(a, b template.Stage) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
	})
}

// idleFeed never delivers; its channels close when the subscriber's
// context ends.
type idleFeed struct{}

func (idleFeed) Subscribe(ctx context.Context, _ string, _ workflow.EntityKind) (<-chan workflow.ChangeEvent, error) {
	ch := make(chan workflow.ChangeEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
