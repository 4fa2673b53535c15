package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRecorder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantBytes  int64
		started    bool
	}{
		{
			name:       "nothing written",
			write:      func(http.ResponseWriter) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "implicit ok",
			write:      func(w http.ResponseWriter) { _, _ = w.Write([]byte(`{"id":"s1"}`)) },
			wantStatus: http.StatusOK,
			wantBytes:  11,
			started:    true,
		},
		{
			name: "first status wins",
			write: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusCreated)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("ab"))
				_, _ = w.Write([]byte("cde"))
			},
			wantStatus: http.StatusCreated,
			wantBytes:  5,
			started:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			sr := record(rec)
			tt.write(sr)

			assert.Equal(t, tt.wantStatus, sr.status)
			assert.Equal(t, tt.wantBytes, sr.bytes)
			assert.Equal(t, tt.started, sr.started)
			if tt.started {
				assert.Equal(t, tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRecord_SharesOneRecorder(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	outer := record(rec)
	inner := record(outer)

	assert.Same(t, outer, inner)
	assert.Equal(t, http.ResponseWriter(rec), outer.Unwrap())
}

func TestStatusRecorder_HijackUnsupported(t *testing.T) {
	t.Parallel()

	sr := record(httptest.NewRecorder())
	_, _, err := sr.Hijack()
	require.Error(t, err)
	assert.False(t, sr.started)
}

func TestRoutePatternAndOwner(t *testing.T) {
	t.Parallel()

	var pattern, owner string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern, owner = routePattern(req), ownerParam(req)
		})
	})
	r.Get("/owners/{ownerID}/stages", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/owners/o1/stages", nil))
	assert.Equal(t, "/owners/{ownerID}/stages", pattern)
	assert.Equal(t, "o1", owner)

	bare := httptest.NewRequest(http.MethodGet, "/unrouted", nil)
	assert.Equal(t, "/unrouted", routePattern(bare))
	assert.Empty(t, matchedPattern(bare))
	assert.Empty(t, ownerParam(bare))
}
