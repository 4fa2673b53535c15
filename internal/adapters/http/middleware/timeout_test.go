package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/middleware"
)

func TestTimeout_FastHandlerPassesThrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBody   string
	}{
		{
			name: "explicit status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Location", "/api/v1/owners/o1/stages/k1")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"stage_key":"k1"}`))
			},
			wantStatus: http.StatusCreated,
			wantBody:   `{"stage_key":"k1"}`,
		},
		{
			name: "implicit ok",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("[]"))
			},
			wantStatus: http.StatusOK,
			wantBody:   "[]",
		},
		{
			name: "no content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			middleware.Timeout(time.Second)(tt.handler).
				ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/owners/o1/stages", http.NoBody))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestTimeout_KeepsHandlerHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	middleware.Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/api/v1/templates/t1")
		w.WriteHeader(http.StatusCreated)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/templates", http.NoBody))

	assert.Equal(t, "/api/v1/templates/t1", rec.Header().Get("Location"))
}

func TestTimeout_SlowHandlerGetsProblem(t *testing.T) {
	t.Parallel()

	lateWrite := make(chan error, 1)
	handler := middleware.Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(10 * time.Millisecond)
		_, err := w.Write([]byte("too late"))
		lateWrite <- err
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/owners/o1/stages", http.NoBody))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body struct {
		Code     string `json:"code"`
		Instance string `json:"instance"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "timeout", body.Code)
	assert.Equal(t, "/api/v1/owners/o1/stages", body.Instance)

	select {
	case err := <-lateWrite:
		assert.True(t, errors.Is(err, http.ErrHandlerTimeout), "late write error = %v", err)
	case <-time.After(time.Second):
		t.Fatal("handler never attempted its late write")
	}
}

func TestTimeout_HandlerSeesDeadline(t *testing.T) {
	t.Parallel()

	var deadline time.Time
	start := time.Now()
	middleware.Timeout(time.Minute)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.WithinDuration(t, start.Add(time.Minute), deadline, 5*time.Second)
}

func TestTimeout_PanicReachesOuterRecovery(t *testing.T) {
	t.Parallel()

	handler := middleware.Recovery(testLogger(new(bytes.Buffer)))(
		middleware.Timeout(time.Second)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/templates", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTimeout_FeedUpgradeIsExempt(t *testing.T) {
	t.Parallel()

	var (
		hasDeadline bool
		unwrapped   bool
	)
	handler := middleware.Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
		_, unwrapped = w.(*httptest.ResponseRecorder)
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/owners/o1/feed", http.NoBody)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "WebSocket")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, hasDeadline)
	assert.True(t, unwrapped)
	assert.Equal(t, http.StatusSwitchingProtocols, rec.Code)
}
