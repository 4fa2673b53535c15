package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
)

// fallbackShutdownTimeout applies when Shutdown gets a context without a
// deadline.
const fallbackShutdownTimeout = 10 * time.Second

// Server serves the tracker API and its live feeds.
//
// Feeds are hijacked websocket connections, which http.Server neither tracks
// nor waits for. Every request context instead derives from a base context
// that Shutdown cancels first, so open feeds see Done and close themselves
// while ordinary requests drain.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
	stop   context.CancelFunc

	mu sync.Mutex
	ln net.Listener
}

// NewServer creates a Server for handler using the listen address and
// timeouts in cfg. A nil logger discards output.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base, stop := context.WithCancel(context.Background())
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			BaseContext:       func(net.Listener) context.Context { return base },
		},
		logger: logger,
		stop:   stop,
	}
}

// Listen binds the configured address. It is optional; Start binds on its
// own when Listen was not called. Binding early lets a caller learn the
// real port when the configured one is 0.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	return nil
}

// Start serves until Shutdown and returns nil when the stop was graceful.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("tracker API listening", slog.String("addr", s.Addr()))

	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving tracker API: %w", err)
	}
	return nil
}

// Shutdown ends live feeds, then waits for in-flight requests until ctx
// expires. A ctx without a deadline gets fallbackShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fallbackShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("shutting down tracker API")
	s.stop()
	return s.srv.Shutdown(ctx)
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}
