package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server serves the metrics endpoint over HTTP
type Server struct {
	metrics    *Metrics
	logger     *zap.Logger
	listenAddr string
	server     *http.Server
	listener   net.Listener
}

// NewServer creates a new metrics server
func NewServer(m *Metrics, logger *zap.Logger, listenAddr string) *Server {
	return &Server{
		metrics:    m,
		logger:     logger,
		listenAddr: listenAddr,
	}
}

// Start starts serving /metrics in the background
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Metrics server started", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the server is listening on
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.listenAddr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
