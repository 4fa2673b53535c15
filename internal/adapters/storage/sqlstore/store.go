// Package sqlstore implements every storage port on database/sql, with
// SQLite (modernc.org/sqlite) and PostgreSQL (pgx) dialects. On SQLite the
// store publishes its own writes on an in-process change feed; on
// PostgreSQL the feed is driven by LISTEN/NOTIFY triggers so writes from
// other processes are seen too.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/pubsub"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// Compile-time interface checks.
var (
	_ ports.Store         = (*Store)(nil)
	_ ports.HealthChecker = (*Store)(nil)
)

// Store is a SQL-backed implementation of ports.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	dsn     string
	logger  *slog.Logger
	now     func() time.Time

	// mu orders local writes with the events they publish.
	mu         sync.Mutex
	feed       *pubsub.Broker[workflow.ChangeEvent]
	feedBuffer int

	listenRetry time.Duration
	stop        context.CancelFunc
	listening   sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithFeedBuffer sets the per-subscriber buffer of the change feed.
func WithFeedBuffer(size int) Option {
	return func(s *Store) {
		s.feedBuffer = size
	}
}

// WithListenRetry sets how long the PostgreSQL listener waits before
// reconnecting after a lost connection.
func WithListenRetry(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.listenRetry = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open connects to the database and verifies the connection. Call Migrate
// before first use and Start to follow PostgreSQL notifications.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger, opts ...Option) (*Store, error) {
	db, err := openDB(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	s := &Store{
		db:          db,
		dialect:     dialect,
		dsn:         dsn,
		logger:      logger,
		now:         time.Now,
		feedBuffer:  pubsub.DefaultBufferSize,
		listenRetry: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.feed = pubsub.NewBroker[workflow.ChangeEvent](pubsub.WithBufferSize(s.feedBuffer))
	return s, nil
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Start begins following PostgreSQL notifications until Close. It is a
// no-op on SQLite.
func (s *Store) Start(ctx context.Context) {
	if s.dialect != DialectPostgres || s.stop != nil {
		return
	}
	ctx, s.stop = context.WithCancel(ctx)
	s.listening.Add(1)
	go func() {
		defer s.listening.Done()
		s.listen(ctx)
	}()
}

// Close stops the listener, ends every feed subscription and closes the
// database.
func (s *Store) Close() error {
	if s.stop != nil {
		s.stop()
		s.listening.Wait()
	}
	s.feed.Close()
	return s.db.Close()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "store"
}

// HealthCheck implements ports.HealthChecker.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Subscribe implements ports.ChangeFeed.
func (s *Store) Subscribe(ctx context.Context, ownerID string, entity workflow.EntityKind) (<-chan workflow.ChangeEvent, error) {
	return s.feed.Subscribe(ctx, topic(ownerID, entity)), nil
}

func topic(ownerID string, entity workflow.EntityKind) string {
	return ownerID + "/" + entity.String()
}

func (s *Store) publish(e workflow.ChangeEvent) {
	s.feed.Publish(topic(e.OwnerID, e.Entity), e)
}

// publishLocal announces events for a committed local write. PostgreSQL
// announces its own writes through NOTIFY.
func (s *Store) publishLocal(events []workflow.ChangeEvent) {
	if s.dialect == DialectPostgres {
		return
	}
	for _, e := range events {
		s.publish(e)
	}
}

func (s *Store) q(query string) string {
	return rebind(s.dialect, query)
}

// write runs fn in a transaction and publishes the events it returns once
// the transaction commits.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx) ([]workflow.ChangeEvent, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	events, err := fn(tx)
	if err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	s.publishLocal(events)
	return nil
}
