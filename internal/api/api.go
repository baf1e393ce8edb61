// Package api provides HTTP handlers and the main API server logic for
// Bookline.
//
// It exposes the inbound message webhook, a notification dispatch endpoint
// and a health check. Conversation work happens in the messaging pipeline;
// the API is a thin transport layer.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bookline/bookline/internal/messaging"
	"github.com/bookline/bookline/internal/notify"
)

// Server configuration constants
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds request reads.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds response writes; generous because a webhook
	// turn includes model calls.
	DefaultWriteTimeout = 60 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server routes HTTP requests into the messaging pipeline and dispatcher.
type Server struct {
	processor  *messaging.Processor
	dispatcher *notify.Dispatcher
	httpServer *http.Server
}

// NewServer creates the API server around an assembled pipeline.
func NewServer(processor *messaging.Processor, dispatcher *notify.Dispatcher, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{processor: processor, dispatcher: dispatcher}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/message", s.webhookMessageHandler)
	mux.HandleFunc("/notifications", s.notificationsHandler)
	mux.HandleFunc("/healthz", s.healthHandler)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// Run starts the server and blocks until the listener fails or the context
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	}
}
