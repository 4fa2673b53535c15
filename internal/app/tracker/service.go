package tracker

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// Compile-time interface check.
var _ ports.TrackerService = (*Service)(nil)

type entry struct {
	ready   chan struct{}
	tracker *Tracker
	err     error
}

// Service hands out one live Tracker per owner. The first request for an
// owner subscribes to its change feed and loads its state; later requests
// share that Tracker.
type Service struct {
	repo   Repository
	feed   ports.ChangeFeed
	logger *slog.Logger
	opts   []Option

	// ctx scopes every feed subscription; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	trackers map[string]*entry
}

// NewService creates a Service writing through repo and following feed.
// opts apply to every Tracker it creates.
func NewService(repo Repository, feed ports.ChangeFeed, logger *slog.Logger, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:     repo,
		feed:     feed,
		logger:   logger,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		trackers: make(map[string]*entry),
	}
}

// Owner returns the live tracker of ownerID, creating and loading it on
// first use. A failed load is not cached, so the next call retries.
func (s *Service) Owner(ctx context.Context, ownerID string) (ports.OwnerTracker, error) {
	t, err := s.Tracker(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Tracker is Owner with the concrete return type.
func (s *Service) Tracker(ctx context.Context, ownerID string) (*Tracker, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domain.NewValidationError("owner_id", domain.MsgRequired)
	}

	s.mu.Lock()
	if e, ok := s.trackers[ownerID]; ok {
		s.mu.Unlock()
		select {
		case <-e.ready:
			return e.tracker, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &entry{ready: make(chan struct{})}
	s.trackers[ownerID] = e
	s.mu.Unlock()

	e.tracker, e.err = s.open(ctx, ownerID)
	if e.err != nil {
		s.mu.Lock()
		delete(s.trackers, ownerID)
		s.mu.Unlock()
	}
	close(e.ready)
	return e.tracker, e.err
}

func (s *Service) open(ctx context.Context, ownerID string) (*Tracker, error) {
	s.logger.InfoContext(ctx, "opening owner tracker", slog.String("owner_id", ownerID))

	t := New(ownerID, s.repo, s.logger, s.opts...)
	if err := t.Start(s.ctx, s.feed); err != nil {
		s.logger.ErrorContext(ctx, "failed to subscribe to change feed",
			slog.String("operation", "Owner"),
			slog.String("owner_id", ownerID),
			slog.Any("error", err),
		)
		return nil, err
	}
	if _, err := t.LoadAll(ctx); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// LiveOwners reports how many owners have a loaded tracker. Loads still in
// flight are not counted.
func (s *Service) LiveOwners() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.trackers {
		select {
		case <-e.ready:
			if e.err == nil {
				n++
			}
		default:
		}
	}
	return n
}

// Close stops every tracker.
func (s *Service) Close() {
	s.cancel()

	s.mu.Lock()
	entries := make([]*entry, 0, len(s.trackers))
	for _, e := range s.trackers {
		entries = append(entries, e)
	}
	s.trackers = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.tracker != nil {
			e.tracker.Close()
		}
	}
}
