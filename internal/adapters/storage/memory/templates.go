package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
)

// ListTemplates implements ports.TemplateRepository. Headers carry their
// ordered stages and a task count.
func (s *Store) ListTemplates(_ context.Context) ([]template.Template, error) {
	if err := s.faults.check("ListTemplates"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]template.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, s.withContent(t))
	}
	slices.SortFunc(out, func(a, b template.Template) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// GetTemplate implements ports.TemplateRepository.
func (s *Store) GetTemplate(_ context.Context, id string) (template.Template, error) {
	if err := s.faults.check("GetTemplate"); err != nil {
		return template.Template{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return template.Template{}, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	return s.withContent(t), nil
}

func (s *Store) withContent(t template.Template) template.Template {
	t.Stages = s.templateStagesOf(t.ID)
	t.TaskCount = 0
	for _, tt := range s.templateTasks {
		if tt.TemplateID == t.ID {
			t.TaskCount++
		}
	}
	return t
}

// CreateTemplate implements ports.TemplateRepository.
func (s *Store) CreateTemplate(_ context.Context, t template.Template) error {
	if err := s.faults.check("CreateTemplate"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[t.ID]; ok {
		return fmt.Errorf("template %s: %w", t.ID, domain.ErrConflict)
	}
	t.Stages = nil
	t.TaskCount = 0
	s.templates[t.ID] = t
	return nil
}

// UpdateTemplate implements ports.TemplateRepository.
func (s *Store) UpdateTemplate(_ context.Context, id string, u template.Update) error {
	if err := s.faults.check("UpdateTemplate"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Description != nil {
		t.Description = u.Description
	}
	if u.Icon != nil {
		t.Icon = *u.Icon
	}
	if u.Color != nil {
		t.Color = u.Color
	}
	s.templates[id] = t
	return nil
}

// DeleteTemplate implements ports.TemplateRepository and cascades to the
// template's stages and tasks.
func (s *Store) DeleteTemplate(_ context.Context, id string) error {
	if err := s.faults.check("DeleteTemplate"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	delete(s.templates, id)
	for sid, st := range s.templateStage {
		if st.TemplateID == id {
			delete(s.templateStage, sid)
		}
	}
	for tid, tt := range s.templateTasks {
		if tt.TemplateID == id {
			delete(s.templateTasks, tid)
		}
	}
	return nil
}

// InsertTemplateStages implements ports.TemplateRepository.
func (s *Store) InsertTemplateStages(_ context.Context, stages []template.Stage) error {
	if err := s.faults.check("InsertTemplateStages"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range stages {
		if _, ok := s.templates[st.TemplateID]; !ok {
			return fmt.Errorf("template %s: %w", st.TemplateID, domain.ErrNotFound)
		}
	}
	for _, st := range stages {
		s.templateStage[st.ID] = st
	}
	return nil
}

// ListTemplateStages implements ports.TemplateRepository.
func (s *Store) ListTemplateStages(_ context.Context, templateID string) ([]template.Stage, error) {
	if err := s.faults.check("ListTemplateStages"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templateStagesOf(templateID), nil
}

func (s *Store) templateStagesOf(templateID string) []template.Stage {
	out := make([]template.Stage, 0)
	for _, st := range s.templateStage {
		if st.TemplateID == templateID {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b template.Stage) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// InsertTemplateTasks implements ports.TemplateRepository.
func (s *Store) InsertTemplateTasks(_ context.Context, tasks []template.Task) error {
	if err := s.faults.check("InsertTemplateTasks"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		if _, ok := s.templateStage[t.TemplateStageID]; !ok {
			return fmt.Errorf("template stage %s: %w", t.TemplateStageID, domain.ErrNotFound)
		}
	}
	for _, t := range tasks {
		s.templateTasks[t.ID] = t
	}
	return nil
}

// ListTemplateTasks implements ports.TemplateRepository.
func (s *Store) ListTemplateTasks(_ context.Context, templateStageIDs []string) ([]template.Task, error) {
	if err := s.faults.check("ListTemplateTasks"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]template.Task, 0)
	for _, t := range s.templateTasks {
		if slices.Contains(templateStageIDs, t.TemplateStageID) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b template.Task) int {
		return cmp.Or(cmp.Compare(a.TemplateStageID, b.TemplateStageID), cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}
