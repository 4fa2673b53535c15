package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/logging"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxClientMessageSize = 4096
)

// FeedHandler streams an owner's change events over a websocket.
type FeedHandler struct {
	trackers ports.TrackerService
	upgrader websocket.Upgrader
}

// FeedOption configures a FeedHandler.
type FeedOption func(*FeedHandler)

// WithAllowedOrigins restricts upgrades to the given Origin values. An
// empty list accepts any origin.
func WithAllowedOrigins(origins []string) FeedOption {
	return func(h *FeedHandler) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		}
	}
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(trackers ports.TrackerService, opts ...FeedOption) *FeedHandler {
	h := &FeedHandler{
		trackers: trackers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP handles GET /api/v1/owners/{ownerID}/feed. Each change applied
// to the owner's tracker is sent as one JSON text frame until the client
// disconnects.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tr, ok := ownerTracker(w, r, h.trackers)
	if !ok {
		return
	}
	logger := logging.FromContext(r.Context()).With(slog.String("owner_id", tr.OwnerID()))

	// Subscribe before the handshake so no change between the upgrade and
	// the first read is missed. A hijacked connection no longer cancels the
	// request context on disconnect; the read pump does it instead.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	events := tr.Watch(ctx)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	go readPump(conn, cancel)

	logger.InfoContext(ctx, "feed client connected")
	defer logger.InfoContext(ctx, "feed client disconnected")

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(dto.ToChangeEventResponse(evt)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and cancels the stream when the client
// goes away.
func readPump(conn *websocket.Conn, cancel func()) {
	defer cancel()

	conn.SetReadLimit(maxClientMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
