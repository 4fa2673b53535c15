// Package tracker implements the per-owner stage and task cache. Each
// Tracker holds one owner's state in an optimistic ledger: local writes are
// visible immediately and are confirmed or reverted by the store's answer,
// while change-feed events are reconciled underneath them.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen11/stage-tracker/internal/app/fanout"
	"github.com/jsamuelsen11/stage-tracker/internal/app/optimistic"
	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/pubsub"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// Compile-time interface check.
var _ ports.OwnerTracker = (*Tracker)(nil)

// Repository is the storage a Tracker writes through.
type Repository interface {
	ports.StageRepository
	ports.TaskRepository
}

const (
	defaultMaxConcurrency = 8
	watchTopic            = "changes"
)

// Option configures a Tracker.
type Option func(*settings)

type settings struct {
	maxConcurrency int
	watchBuffer    int
	seedDefaults   bool
	metrics        *telemetry.Metrics
	now            func() time.Time
}

// WithMaxConcurrency bounds the parallel persistence calls of one bulk
// operation.
func WithMaxConcurrency(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithWatchBuffer sets the channel buffer of each Watch subscriber.
func WithWatchBuffer(n int) Option {
	return func(s *settings) {
		s.watchBuffer = n
	}
}

// WithSeedDefaults makes LoadAll insert the default stages for an owner
// that has none.
func WithSeedDefaults(on bool) Option {
	return func(s *settings) {
		s.seedDefaults = on
	}
}

// WithMetrics records tracker instruments on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		maxConcurrency: defaultMaxConcurrency,
		watchBuffer:    pubsub.DefaultBufferSize,
		metrics:        telemetry.NopMetrics(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Tracker is the in-memory authoritative cache of one owner's stages and
// tasks. It is safe for concurrent use.
type Tracker struct {
	ownerID  string
	repo     Repository
	ledger   *optimistic.Ledger[workflow.State, workflow.ChangeEvent]
	watchers *pubsub.Broker[workflow.ChangeEvent]
	logger   *slog.Logger
	cfg      settings

	stopOnce sync.Once
	stop     context.CancelFunc
	feedDone sync.WaitGroup

	cleanupMu sync.Mutex
	closed    bool
	cleanup   sync.WaitGroup
}

// New creates an empty Tracker for ownerID. Call LoadAll to fill it and
// Start to follow the change feed.
func New(ownerID string, repo Repository, logger *slog.Logger, opts ...Option) *Tracker {
	cfg := newSettings(opts)
	ledger := optimistic.NewLedger(workflow.NewState(ownerID, nil, nil), workflow.Reduce,
		optimistic.WithEchoKey[workflow.State](workflow.ChangeEvent.Key))
	return &Tracker{
		ownerID:  ownerID,
		repo:     repo,
		ledger:   ledger,
		watchers: pubsub.NewBroker[workflow.ChangeEvent](pubsub.WithBufferSize(cfg.watchBuffer)),
		logger:   logger.With(slog.String("owner_id", ownerID)),
		cfg:      cfg,
		stop:     func() {},
	}
}

// OwnerID returns the owner this tracker caches.
func (t *Tracker) OwnerID() string {
	return t.ownerID
}

// State returns the current cached state including pending writes.
func (t *Tracker) State() workflow.State {
	return t.ledger.View()
}

// Stages returns the ordered view of the cache without touching the store.
func (t *Tracker) Stages() []workflow.StageView {
	return t.ledger.View().View()
}

// Summary digests the cached view.
func (t *Tracker) Summary() workflow.Summary {
	return workflow.Summarize(t.Stages())
}

// Watch streams every change-feed event merged into the cache, including
// local duplicate removals, until ctx is done or the tracker is closed.
func (t *Tracker) Watch(ctx context.Context) <-chan workflow.ChangeEvent {
	return t.watchers.Subscribe(ctx, watchTopic)
}

// Close stops the change-feed subscriptions, waits for duplicate cleanup
// still deleting rows, and ends every Watch stream.
func (t *Tracker) Close() {
	t.stopOnce.Do(func() {
		t.stop()
		t.feedDone.Wait()

		t.cleanupMu.Lock()
		t.closed = true
		t.cleanupMu.Unlock()
		t.cleanup.Wait()

		t.watchers.Close()
	})
}

// LoadAll replaces the confirmed cache with the store's rows and returns
// the ordered view. Feed events merged while the rows were being read are
// replayed over them. Duplicate tasks are dropped from the cache and
// deleted from the store in the background. Pending local writes stay
// layered on top of the reloaded state.
func (t *Tracker) LoadAll(ctx context.Context) ([]workflow.StageView, error) {
	t.logger.InfoContext(ctx, "loading owner state")

	mark := t.ledger.Mark()
	state, err := t.read(ctx)
	if err != nil {
		t.ledger.Release(mark)
		return nil, err
	}
	return t.ledger.Reset(mark, state).View(), nil
}

func (t *Tracker) read(ctx context.Context) (workflow.State, error) {
	var (
		stages []workflow.Stage
		tasks  []workflow.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stages, err = t.repo.ListStages(gctx, t.ownerID)
		return domain.Persistence("ListStages", err)
	})
	g.Go(func() error {
		var err error
		tasks, err = t.repo.ListTasks(gctx, t.ownerID)
		return domain.Persistence("ListTasks", err)
	})
	if err := g.Wait(); err != nil {
		t.logger.ErrorContext(ctx, "failed to load owner state",
			slog.String("operation", "LoadAll"),
			slog.Any("error", err),
		)
		return workflow.State{}, err
	}

	if len(stages) == 0 && t.cfg.seedDefaults {
		seeded, err := t.seedDefaults(ctx)
		if err != nil {
			return workflow.State{}, err
		}
		stages = seeded
	}

	kept, dropped := workflow.Dedup(tasks)
	if len(dropped) > 0 {
		t.removeDuplicates(ctx, dropped)
	}
	return workflow.NewState(t.ownerID, stages, kept), nil
}

func (t *Tracker) seedDefaults(ctx context.Context) ([]workflow.Stage, error) {
	defaults := workflow.DefaultStages(t.ownerID, t.cfg.now())
	t.logger.InfoContext(ctx, "seeding default stages", slog.Int("count", len(defaults)))

	err := t.repo.InsertStages(context.WithoutCancel(ctx), defaults)
	if err == nil {
		return defaults, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.logger.ErrorContext(ctx, "failed to seed default stages",
			slog.String("operation", "LoadAll"),
			slog.Any("error", err),
		)
		return nil, domain.Persistence("InsertStages", err)
	}

	// Another client seeded first.
	stages, err := t.repo.ListStages(ctx, t.ownerID)
	return stages, domain.Persistence("ListStages", err)
}

// removeDuplicates deletes dropped tasks from the store without blocking
// the caller. Failures are logged and never surfaced. Once the tracker is
// closed the rows are left for the next load to find.
func (t *Tracker) removeDuplicates(ctx context.Context, dropped []workflow.Task) {
	ctx = context.WithoutCancel(ctx)

	t.cleanupMu.Lock()
	defer t.cleanupMu.Unlock()
	if t.closed {
		return
	}
	t.cleanup.Add(1)

	t.cfg.metrics.DedupRemovedTotal.Add(ctx, int64(len(dropped)))
	t.logger.InfoContext(ctx, "removing duplicate tasks", slog.Int("count", len(dropped)))

	go func() {
		defer t.cleanup.Done()
		err := fanout.Each(ctx, t.cfg.maxConcurrency, dropped, func(ctx context.Context, task workflow.Task) error {
			return t.repo.DeleteTasks(ctx, []string{task.ID})
		})
		if err != nil {
			t.logger.WarnContext(ctx, "duplicate task cleanup incomplete",
				slog.String("operation", "Dedup"),
				slog.Any("error", err),
			)
		}
	}()
}

// mutate stages the events built from the current view, persists them on a
// context that ignores the caller's cancellation, and confirms or reverts.
// Persistence failures come back as *domain.PersistenceError.
func (t *Tracker) mutate(ctx context.Context, op string,
	build optimistic.Builder[workflow.State, workflow.ChangeEvent],
	persist func(context.Context) error,
) error {
	err := t.ledger.Apply(ctx, op, build, func(ctx context.Context) error {
		return domain.Persistence(op, persist(context.WithoutCancel(ctx)))
	})
	if err == nil {
		return nil
	}

	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		t.cfg.metrics.RevertTotal.Add(ctx, 1, metric.WithAttributes(telemetry.AttrOperation.String(op)))
		t.logger.ErrorContext(ctx, "write rejected by store",
			slog.String("operation", op),
			slog.Any("error", err),
		)
	}
	return err
}

func (t *Tracker) now() time.Time {
	return t.cfg.now().UTC()
}

func stageNotFound(key string) error {
	return fmt.Errorf("stage %q: %w", key, domain.ErrNotFound)
}

func taskNotFound(id string) error {
	return fmt.Errorf("task %q: %w", id, domain.ErrNotFound)
}
