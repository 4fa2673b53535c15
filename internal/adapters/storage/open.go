// Package storage selects and opens the configured store backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/clients/acl"
	"github.com/jsamuelsen11/stage-tracker/internal/adapters/storage/memory"
	"github.com/jsamuelsen11/stage-tracker/internal/adapters/storage/sqlstore"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/httpclient"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// OpenTimeout bounds connecting to and migrating a SQL database.
const OpenTimeout = 30 * time.Second

// Backend is an opened store with its health checkers.
type Backend struct {
	ports.Store
	Name     string
	Checkers []ports.HealthChecker
	close    func() error
}

// Close releases the store's resources.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open builds the store named by cfg.Store.Backend. SQL stores are migrated
// before Open returns and, on PostgreSQL, follow notifications until Close.
func Open(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) (*Backend, error) {
	logger = logger.With(slog.String("backend", cfg.Store.Backend))

	switch cfg.Store.Backend {
	case config.BackendMemory:
		s := memory.New(memory.WithFeedBuffer(cfg.Store.FeedBuffer))
		return &Backend{
			Store:    s,
			Name:     cfg.Store.Backend,
			Checkers: []ports.HealthChecker{s},
			close:    func() error { s.Close(); return nil },
		}, nil

	case config.BackendSQLite, config.BackendPostgres:
		s, err := OpenSQL(ctx, cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		// The listener outlives ctx; Close stops it.
		s.Start(context.WithoutCancel(ctx))
		return &Backend{
			Store:    s,
			Name:     cfg.Store.Backend,
			Checkers: []ports.HealthChecker{s},
			close:    s.Close,
		}, nil

	case config.BackendREST:
		client := httpclient.New(&cfg.Client, "row-store", metrics, logger)
		var feed ports.ChangeFeed
		if cfg.Client.RealtimeURL != "" {
			feed = acl.NewRealtimeFeed(cfg.Client.RealtimeURL, cfg.Client.APIKey, logger,
				acl.WithFeedBuffer(cfg.Store.FeedBuffer))
		}
		s := acl.NewRowStore(client, feed, logger)
		return &Backend{
			Store:    s,
			Name:     cfg.Store.Backend,
			Checkers: []ports.HealthChecker{s},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

// OpenSQL connects to the SQL database of cfg and applies the schema.
func OpenSQL(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Backend)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, OpenTimeout)
	defer cancel()

	s, err := sqlstore.Open(ctx, dialect, cfg.DSN, logger, sqlstore.WithFeedBuffer(cfg.FeedBuffer))
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", dialect, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrating %s store: %w", dialect, err)
	}
	return s, nil
}
