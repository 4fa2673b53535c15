package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

var _ ports.ChangeFeed = (*RealtimeFeed)(nil)

const (
	// Time allowed to write a frame to the server.
	writeWait = 10 * time.Second

	// Heartbeat period; the server drops channels silent for 60s.
	defaultHeartbeat = 25 * time.Second

	defaultReconnect = 2 * time.Second

	defaultFeedBuffer = 64

	// Maximum frame size accepted from the server.
	maxFrameSize = 1 << 20

	protocolVersion = "1.0.0"
)

// RealtimeFeed implements ports.ChangeFeed over the row store's realtime
// websocket. Each subscription holds its own connection joined to a
// postgres_changes channel filtered by owner, and reconnects until the
// subscriber's context ends.
type RealtimeFeed struct {
	url       string
	apiKey    string
	logger    *slog.Logger
	dialer    *websocket.Dialer
	heartbeat time.Duration
	reconnect time.Duration
	buffer    int
}

// RealtimeOption configures a RealtimeFeed.
type RealtimeOption func(*RealtimeFeed)

// WithHeartbeat sets the heartbeat period.
func WithHeartbeat(d time.Duration) RealtimeOption {
	return func(f *RealtimeFeed) { f.heartbeat = d }
}

// WithReconnectDelay sets the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) RealtimeOption {
	return func(f *RealtimeFeed) { f.reconnect = d }
}

// WithFeedBuffer sets each subscription's channel capacity.
func WithFeedBuffer(n int) RealtimeOption {
	return func(f *RealtimeFeed) { f.buffer = n }
}

// NewRealtimeFeed creates a feed for the websocket endpoint at rawURL
// (e.g. wss://project.example.co/realtime/v1/websocket).
func NewRealtimeFeed(rawURL, apiKey string, logger *slog.Logger, opts ...RealtimeOption) *RealtimeFeed {
	f := &RealtimeFeed{
		url:       rawURL,
		apiKey:    apiKey,
		logger:    logger,
		dialer:    websocket.DefaultDialer,
		heartbeat: defaultHeartbeat,
		reconnect: defaultReconnect,
		buffer:    defaultFeedBuffer,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Subscribe implements ports.ChangeFeed.
func (f *RealtimeFeed) Subscribe(ctx context.Context, ownerID string, entity workflow.EntityKind) (<-chan workflow.ChangeEvent, error) {
	if !entity.IsValid() {
		return nil, fmt.Errorf("subscribe: unknown entity %q", entity)
	}
	endpoint, err := f.endpoint()
	if err != nil {
		return nil, err
	}

	out := make(chan workflow.ChangeEvent, f.buffer)
	sub := &subscription{
		feed:     f,
		endpoint: endpoint,
		ownerID:  ownerID,
		entity:   entity,
		out:      out,
		logger:   f.logger.With(slog.String("owner_id", ownerID), slog.String("entity", entity.String())),
	}
	go sub.run(ctx)
	return out, nil
}

func (f *RealtimeFeed) endpoint() (string, error) {
	u, err := url.Parse(f.url)
	if err != nil {
		return "", fmt.Errorf("parsing realtime url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", f.apiKey)
	q.Set("vsn", protocolVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type subscription struct {
	feed     *RealtimeFeed
	endpoint string
	ownerID  string
	entity   workflow.EntityKind
	out      chan workflow.ChangeEvent
	logger   *slog.Logger
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.out)
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.WarnContext(ctx, "realtime connection lost; reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", s.feed.reconnect),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.feed.reconnect):
		}
	}
}

// session runs one connection until it fails or ctx ends.
func (s *subscription) session(ctx context.Context) error {
	conn, resp, err := s.feed.dialer.DialContext(ctx, s.endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing realtime: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	w := &frameWriter{conn: conn}
	topic := channelTopic(s.entity, s.ownerID)
	if err := w.write(joinFrame(topic, s.entity, s.ownerID, s.feed.apiKey)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("joining %s: %w", topic, err)
	}
	s.logger.DebugContext(ctx, "realtime channel joined", slog.String("topic", topic))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.heartbeat(ctx, w, done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	// Unblock ReadMessage when the subscriber goes away.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		evt, ok, err := decodeFrame(msg, s.entity, s.ownerID)
		if err != nil {
			s.logger.WarnContext(ctx, "dropping undecodable realtime frame", slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		select {
		case s.out <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *subscription) heartbeat(ctx context.Context, w *frameWriter, done <-chan struct{}) {
	ticker := time.NewTicker(s.feed.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.write(heartbeatFrame()); err != nil {
				return
			}
		}
	}
}

// frameWriter serializes writes; gorilla connections allow one writer.
type frameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *frameWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

// --- frames ---

type frame struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter"`
}

func tableOf(entity workflow.EntityKind) string {
	if entity == workflow.EntityStage {
		return "stages"
	}
	return "tasks"
}

func channelTopic(entity workflow.EntityKind, ownerID string) string {
	return "realtime:tracker:" + tableOf(entity) + ":" + ownerID
}

func joinFrame(topic string, entity workflow.EntityKind, ownerID, apiKey string) frame {
	return frame{
		Topic: topic,
		Event: "phx_join",
		Payload: map[string]any{
			"config": map[string]any{
				"postgres_changes": []changeFilter{{
					Event:  "*",
					Schema: "public",
					Table:  tableOf(entity),
					Filter: "owner_id=eq." + ownerID,
				}},
			},
			"access_token": apiKey,
		},
		Ref: "1",
	}
}

func heartbeatFrame() frame {
	return frame{Topic: "phoenix", Event: "heartbeat", Payload: map[string]any{}}
}

var errUnknownChange = errors.New("unknown change type")

// decodeFrame turns a postgres_changes frame into a ChangeEvent. Replies,
// heartbeats and frames for other tables report ok=false. Delete frames
// carry only the old row's key columns, so a missing owner is filled from
// the subscription.
func decodeFrame(msg []byte, entity workflow.EntityKind, ownerID string) (workflow.ChangeEvent, bool, error) {
	if !gjson.ValidBytes(msg) {
		return workflow.ChangeEvent{}, false, errors.New("frame is not valid json")
	}
	root := gjson.ParseBytes(msg)
	if root.Get("event").String() != "postgres_changes" {
		return workflow.ChangeEvent{}, false, nil
	}
	data := root.Get("payload.data")
	if data.Get("table").String() != tableOf(entity) {
		return workflow.ChangeEvent{}, false, nil
	}

	typ := workflow.EventType(strings.ToUpper(data.Get("type").String()))
	if !typ.IsValid() {
		return workflow.ChangeEvent{}, false, fmt.Errorf("%w: %q", errUnknownChange, typ)
	}
	row := data.Get("record")
	if typ == workflow.EventDelete {
		row = data.Get("old_record")
	}

	switch entity {
	case workflow.EntityStage:
		var r stageRow
		if err := json.Unmarshal([]byte(row.Raw), &r); err != nil {
			return workflow.ChangeEvent{}, false, fmt.Errorf("decoding stage row: %w", err)
		}
		if r.OwnerID == "" {
			r.OwnerID = ownerID
		}
		st := toDomainStage(r)
		switch typ {
		case workflow.EventInsert:
			return workflow.StageInserted(st), true, nil
		case workflow.EventUpdate:
			return workflow.StageUpdated(st, workflow.StageFieldsAll), true, nil
		default:
			return workflow.StageDeleted(st), true, nil
		}
	default:
		var r taskRow
		if err := json.Unmarshal([]byte(row.Raw), &r); err != nil {
			return workflow.ChangeEvent{}, false, fmt.Errorf("decoding task row: %w", err)
		}
		if r.OwnerID == "" {
			r.OwnerID = ownerID
		}
		t := toDomainTask(r)
		switch typ {
		case workflow.EventInsert:
			return workflow.TaskInserted(t), true, nil
		case workflow.EventUpdate:
			return workflow.TaskUpdated(t, workflow.TaskFieldsAll), true, nil
		default:
			return workflow.TaskDeleted(t), true, nil
		}
	}
}
