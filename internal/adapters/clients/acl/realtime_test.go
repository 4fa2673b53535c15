package acl

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jsamuelsen11/stage-tracker/internal/domain/workflow"
)

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		frame    string
		entity   workflow.EntityKind
		wantOK   bool
		wantErr  bool
		wantType workflow.EventType
		wantID   string
	}{
		{
			name: "stage insert",
			frame: `{"topic":"realtime:tracker:stages:o","event":"postgres_changes","payload":{"data":{
				"type":"INSERT","table":"stages","record":{"id":"s1","owner_id":"o","stage_key":"a","name":"A",
				"sort_order":0,"display_style":1,"created_at":"2026-03-01T08:00:00+00:00","updated_at":"2026-03-01T08:00:00+00:00"}}}}`,
			entity:   workflow.EntityStage,
			wantOK:   true,
			wantType: workflow.EventInsert,
			wantID:   "s1",
		},
		{
			name: "task delete reads old record",
			frame: `{"event":"postgres_changes","payload":{"data":{
				"type":"DELETE","table":"tasks","record":{},"old_record":{"id":"t9"}}}}`,
			entity:   workflow.EntityTask,
			wantOK:   true,
			wantType: workflow.EventDelete,
			wantID:   "t9",
		},
		{
			name:   "join reply is skipped",
			frame:  `{"topic":"realtime:tracker:stages:o","event":"phx_reply","payload":{"status":"ok"},"ref":"1"}`,
			entity: workflow.EntityStage,
		},
		{
			name:   "other table is skipped",
			frame:  `{"event":"postgres_changes","payload":{"data":{"type":"INSERT","table":"tasks","record":{"id":"t1"}}}}`,
			entity: workflow.EntityStage,
		},
		{
			name:    "unknown change type",
			frame:   `{"event":"postgres_changes","payload":{"data":{"type":"TRUNCATE","table":"stages"}}}`,
			entity:  workflow.EntityStage,
			wantErr: true,
		},
		{
			name:    "not json",
			frame:   `garbage`,
			entity:  workflow.EntityStage,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok, err := decodeFrame([]byte(tt.frame), tt.entity, "o")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantID, got.ID())
			assert.Equal(t, "o", got.OwnerID)
		})
	}
}

func TestRealtimeFeed_Subscribe_UnknownEntity(t *testing.T) {
	t.Parallel()

	feed := NewRealtimeFeed("ws://127.0.0.1:1/realtime", testAPIKey, slog.Default())
	_, err := feed.Subscribe(context.Background(), "o", workflow.EntityKind("folder"))
	require.Error(t, err)
}

// realtimeServer accepts one join per connection and pushes a single task
// update once the client has joined.
func realtimeServer(t *testing.T, joins *atomic.Int32) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.URL.Query().Get("apikey"))
		assert.Equal(t, protocolVersion, r.URL.Query().Get("vsn"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		join := gjson.ParseBytes(msg)
		assert.Equal(t, "phx_join", join.Get("event").String())
		assert.Equal(t, "realtime:tracker:tasks:o", join.Get("topic").String())
		assert.Equal(t, "owner_id=eq.o", join.Get("payload.config.postgres_changes.0.filter").String())
		joins.Add(1)

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"phx_reply","payload":{"status":"ok"},"ref":"1"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"postgres_changes","payload":{"data":{
			"type":"UPDATE","table":"tasks","record":{"id":"t1","owner_id":"o","stage_key":"a","title":"Call",
			"completed":true,"sort_order":0,"display_style":2,
			"created_at":"2026-03-01T08:00:00+00:00","updated_at":"2026-03-02T08:00:00+00:00"}}}}`))

		// Hold the connection until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestRealtimeFeed_DeliversChanges(t *testing.T) {
	t.Parallel()

	var joins atomic.Int32
	ts := realtimeServer(t, &joins)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/realtime/v1/websocket"
	feed := NewRealtimeFeed(wsURL, testAPIKey, slog.Default(), WithHeartbeat(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := feed.Subscribe(ctx, "o", workflow.EntityTask)
	require.NoError(t, err)

	select {
	case evt := <-ch:
		assert.Equal(t, workflow.EventUpdate, evt.Type)
		assert.Equal(t, workflow.EntityTask, evt.Entity)
		assert.Equal(t, "t1", evt.Task.ID)
		assert.True(t, evt.Task.Completed)
		assert.Equal(t, workflow.TaskFieldsAll, evt.TaskFields)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event delivered")
	}
	assert.Equal(t, int32(1), joins.Load())

	cancel()
	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscription channel not closed after cancel")
	}
}

func TestRealtimeFeed_Reconnects(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"postgres_changes","payload":{"data":{
			"type":"DELETE","table":"stages","old_record":{"id":"s7"}}}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	feed := NewRealtimeFeed(wsURL, testAPIKey, slog.Default(), WithReconnectDelay(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := feed.Subscribe(ctx, "o", workflow.EntityStage)
	require.NoError(t, err)

	select {
	case evt := <-ch:
		assert.Equal(t, workflow.EventDelete, evt.Type)
		assert.Equal(t, "s7", evt.Stage.ID)
		assert.Equal(t, "o", evt.OwnerID)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event delivered after reconnect")
	}
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
}
