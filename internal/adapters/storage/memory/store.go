// Package memory is an in-process implementation of every storage port.
// Writes publish row-level change events on an in-process broker, so the
// change feed behaves like the hosted store's realtime channel. It backs
// the local profile and the application-layer tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/template"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/pubsub"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// Compile-time interface checks.
var (
	_ ports.Store         = (*Store)(nil)
	_ ports.HealthChecker = (*Store)(nil)
)

// Store keeps all rows in maps guarded by one mutex.
type Store struct {
	mu            sync.RWMutex
	stages        map[string]workflow.Stage
	tasks         map[string]workflow.Task
	templates     map[string]template.Template
	templateStage map[string]template.Stage
	templateTasks map[string]template.Task

	feed   *pubsub.Broker[workflow.ChangeEvent]
	faults faults
}

// Option configures a Store.
type Option func(*Store)

// WithFeedBuffer sets the per-subscriber buffer of the change feed.
func WithFeedBuffer(size int) Option {
	return func(s *Store) {
		s.feed = pubsub.NewBroker[workflow.ChangeEvent](pubsub.WithBufferSize(size))
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		stages:        make(map[string]workflow.Stage),
		tasks:         make(map[string]workflow.Task),
		templates:     make(map[string]template.Template),
		templateStage: make(map[string]template.Stage),
		templateTasks: make(map[string]template.Task),
		faults:        faults{byOp: make(map[string]error)},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = pubsub.NewBroker[workflow.ChangeEvent]()
	}
	return s
}

// Close ends every feed subscription.
func (s *Store) Close() {
	s.feed.Close()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "store"
}

// HealthCheck implements ports.HealthChecker. The in-memory store is always
// available unless a fault is injected for "HealthCheck".
func (s *Store) HealthCheck(_ context.Context) error {
	return s.faults.check("HealthCheck")
}

// Subscribe implements ports.ChangeFeed.
func (s *Store) Subscribe(ctx context.Context, ownerID string, entity workflow.EntityKind) (<-chan workflow.ChangeEvent, error) {
	if err := s.faults.check("Subscribe"); err != nil {
		return nil, err
	}
	return s.feed.Subscribe(ctx, topic(ownerID, entity)), nil
}

func topic(ownerID string, entity workflow.EntityKind) string {
	return ownerID + "/" + entity.String()
}

// publish must be called with s.mu held so events leave in write order.
func (s *Store) publish(e workflow.ChangeEvent) {
	s.feed.Publish(topic(e.OwnerID, e.Entity), e)
}

// ListStages implements ports.StageRepository.
func (s *Store) ListStages(_ context.Context, ownerID string) ([]workflow.Stage, error) {
	if err := s.faults.check("ListStages"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]workflow.Stage, 0)
	for _, st := range s.stages {
		if st.OwnerID == ownerID {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b workflow.Stage) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// InsertStages implements ports.StageRepository. The batch is all or
// nothing.
func (s *Store) InsertStages(_ context.Context, stages []workflow.Stage) error {
	if err := s.faults.check("InsertStages"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(stages))
	for _, st := range stages {
		if _, ok := s.stages[st.ID]; ok {
			return fmt.Errorf("stage id %s: %w", st.ID, domain.ErrConflict)
		}
		k := st.OwnerID + "/" + st.StageKey
		if seen[k] || s.stageKeyUsed(st.OwnerID, st.StageKey) {
			return fmt.Errorf("stage key %s: %w", st.StageKey, domain.ErrConflict)
		}
		seen[k] = true
	}
	for _, st := range stages {
		s.stages[st.ID] = st
		s.publish(workflow.StageInserted(st))
	}
	return nil
}

func (s *Store) stageKeyUsed(ownerID, key string) bool {
	for _, st := range s.stages {
		if st.OwnerID == ownerID && st.StageKey == key {
			return true
		}
	}
	return false
}

// UpdateStage implements ports.StageRepository.
func (s *Store) UpdateStage(_ context.Context, id string, patch workflow.StagePatch) error {
	if err := s.faults.check("UpdateStage"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stages[id]
	if !ok {
		return fmt.Errorf("stage %s: %w", id, domain.ErrNotFound)
	}
	st.Merge(patch.Values, patch.Fields)
	s.stages[id] = st
	s.publish(workflow.StageUpdated(st, workflow.StageFieldsAll))
	return nil
}

// DeleteStages implements ports.StageRepository.
func (s *Store) DeleteStages(_ context.Context, ids []string) error {
	if err := s.faults.check("DeleteStages"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if st, ok := s.stages[id]; ok {
			delete(s.stages, id)
			s.publish(workflow.StageDeleted(st))
		}
	}
	return nil
}

// ListTasks implements ports.TaskRepository.
func (s *Store) ListTasks(_ context.Context, ownerID string) ([]workflow.Task, error) {
	if err := s.faults.check("ListTasks"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]workflow.Task, 0)
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b workflow.Task) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// InsertTasks implements ports.TaskRepository. The batch is all or nothing.
func (s *Store) InsertTasks(_ context.Context, tasks []workflow.Task) error {
	if err := s.faults.check("InsertTasks"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		if _, ok := s.tasks[t.ID]; ok {
			return fmt.Errorf("task id %s: %w", t.ID, domain.ErrConflict)
		}
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
		s.publish(workflow.TaskInserted(t))
	}
	return nil
}

// UpdateTask implements ports.TaskRepository.
func (s *Store) UpdateTask(_ context.Context, id string, patch workflow.TaskPatch) error {
	if err := s.faults.check("UpdateTask"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	t.Merge(patch.Values, patch.Fields)
	s.tasks[id] = t
	s.publish(workflow.TaskUpdated(t, workflow.TaskFieldsAll))
	return nil
}

// DeleteTasks implements ports.TaskRepository.
func (s *Store) DeleteTasks(_ context.Context, ids []string) error {
	if err := s.faults.check("DeleteTasks"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if t, ok := s.tasks[id]; ok {
			delete(s.tasks, id)
			s.publish(workflow.TaskDeleted(t))
		}
	}
	return nil
}

// DeleteTasksByStage implements ports.TaskRepository.
func (s *Store) DeleteTasksByStage(_ context.Context, ownerID string, stageKeys []string) error {
	if err := s.faults.check("DeleteTasksByStage"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tasks {
		if t.OwnerID == ownerID && slices.Contains(stageKeys, t.StageKey) {
			delete(s.tasks, id)
			s.publish(workflow.TaskDeleted(t))
		}
	}
	return nil
}
