package tracker

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen11/stage-tracker/internal/domain"
	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

// Start opens the stage and task subscriptions of the owner and merges
// their events into the cache until ctx is done or Close is called. Start
// it before LoadAll so no change between the two is missed.
func (t *Tracker) Start(ctx context.Context, feed ports.ChangeFeed) error {
	ctx, cancel := context.WithCancel(ctx)

	stageEvents, err := feed.Subscribe(ctx, t.ownerID, workflow.EntityStage)
	if err != nil {
		cancel()
		return domain.Persistence("Subscribe", err)
	}
	taskEvents, err := feed.Subscribe(ctx, t.ownerID, workflow.EntityTask)
	if err != nil {
		cancel()
		return domain.Persistence("Subscribe", err)
	}

	t.stop = cancel
	t.feedDone.Add(2)
	go t.follow(ctx, stageEvents)
	go t.follow(ctx, taskEvents)
	return nil
}

func (t *Tracker) follow(ctx context.Context, events <-chan workflow.ChangeEvent) {
	defer t.feedDone.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			t.Observe(ctx, e)
		}
	}
}

// Observe merges one change-feed event into the cache and forwards it to
// watchers. A task insert also triggers duplicate removal in its stage.
func (t *Tracker) Observe(ctx context.Context, e workflow.ChangeEvent) {
	if e.OwnerID != "" && e.OwnerID != t.ownerID {
		return
	}
	t.ledger.Reconcile(e)
	t.cfg.metrics.FeedEventsTotal.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrEntity.String(e.Entity.String()),
		telemetry.AttrEventType.String(e.Type.String()),
	))
	t.watchers.Publish(watchTopic, e)

	if e.Entity == workflow.EntityTask && e.Type == workflow.EventInsert {
		t.dedupStage(ctx, e.Task.StageKey)
	}
}

func (t *Tracker) dedupStage(ctx context.Context, stageKey string) {
	_, dropped := workflow.Dedup(t.ledger.View().TasksOf(stageKey))
	if len(dropped) == 0 {
		return
	}

	t.logger.DebugContext(ctx, "duplicate tasks observed",
		slog.String("stage_key", stageKey),
		slog.Int("count", len(dropped)),
	)
	deletes := make([]workflow.ChangeEvent, len(dropped))
	for i, d := range dropped {
		deletes[i] = workflow.TaskDeleted(d)
	}
	t.ledger.Reconcile(deletes...)
	for _, e := range deletes {
		t.watchers.Publish(watchTopic, e)
	}
	t.removeDuplicates(ctx, dropped)
}
