package middleware

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/dto"
)

// Timeout bounds every request by limit. The handler runs against a
// buffered writer; when the deadline passes first the client gets a 504
// problem response and later handler writes fail with
// http.ErrHandlerTimeout. The handler's context carries the deadline so
// store calls give up with it.
//
// Feed upgrades are exempt: a live feed outlives any request deadline and
// needs the hijackable writer.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()
			r = r.WithContext(ctx)

			buf := &bufferedWriter{header: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(buf, r)
				buf.finish()
				close(done)
			}()

			select {
			case p := <-panicked:
				// Recovery sits outside this middleware.
				panic(p)
			case <-done:
				buf.copyTo(w)
			case <-ctx.Done():
				if buf.expire() {
					dto.WriteProblem(w, r, fmt.Errorf("%s %s: %w", r.Method, r.URL.Path, context.DeadlineExceeded))
				} else {
					// The handler finished while the deadline fired.
					<-done
					buf.copyTo(w)
				}
			}
		})
	}
}

// bufferedWriter holds a handler's response until Timeout decides whether
// it is sent.
type bufferedWriter struct {
	mu       sync.Mutex
	header   http.Header
	body     []byte
	status   int
	finished bool
	timedOut bool
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == 0 && !b.timedOut {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.body = append(b.body, p...)
	return len(p), nil
}

func (b *bufferedWriter) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finished = true
}

// expire marks the response as abandoned. It reports false when the
// handler already finished, in which case its response wins.
func (b *bufferedWriter) expire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return false
	}
	b.timedOut = true
	return true
}

// copyTo sends the buffered response to w.
func (b *bufferedWriter) copyTo(w http.ResponseWriter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	maps.Copy(w.Header(), b.header)
	if b.status != 0 {
		w.WriteHeader(b.status)
	}
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// isUpgrade reports whether r asks to switch to the websocket protocol.
func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
