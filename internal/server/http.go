package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/config"
)

// SessionCounter reports how many WebSocket sessions are live. The HTTP
// service polls it during shutdown so close frames reach clients before
// the listener goes away.
type SessionCounter interface {
	MemberCount() int
}

// HTTPService runs the lobby's HTTP listener. Every request context derives
// from a base context that Stop cancels, which in-flight WebSocket sessions
// observe as the shutdown signal.
type HTTPService struct {
	cfg      config.ServerConfig
	sessions SessionCounter
	logger   *zap.Logger

	srv    *http.Server
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	running  bool
}

// NewHTTPService creates the HTTP service around the given handler.
//
// Precondition: handler and logger must be non-nil; sessions may be nil.
// Postcondition: Returns a service ready to be started with Start.
func NewHTTPService(cfg config.ServerConfig, handler http.Handler, sessions SessionCounter, logger *zap.Logger) *HTTPService {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &HTTPService{
		cfg:      cfg,
		sessions: sessions,
		logger:   logger,
		cancel:   cancel,
	}
	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	return s
}

// Start opens the TCP listener and serves requests until Stop is called.
// This method blocks until the service is stopped.
//
// Precondition: The service must not already be running.
// Postcondition: The listener is closed when this method returns.
func (s *HTTPService) Start() error {
	start := time.Now()

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("http server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := s.srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Stop gracefully stops the service. It cancels the base context so live
// WebSocket sessions close with a going-away frame, waits for them to
// drain, then shuts the listener down. The whole sequence is bounded by
// the configured shutdown timeout.
//
// Postcondition: The listener is closed; no sessions remain unless the
// shutdown deadline elapsed first.
func (s *HTTPService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.cancel()
	s.drainSessions(ctx)

	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	s.logger.Info("http server stopped")
}

// drainSessions waits for live sessions to observe the cancelled base
// context and finish their cleanup.
func (s *HTTPService) drainSessions(ctx context.Context) {
	if s.sessions == nil {
		return
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.sessions.MemberCount() > 0 {
		select {
		case <-ctx.Done():
			s.logger.Warn("sessions still open at shutdown deadline",
				zap.Int("remaining", s.sessions.MemberCount()),
			)
			return
		case <-ticker.C:
		}
	}
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *HTTPService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the service is currently serving requests.
func (s *HTTPService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
