package devserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server runs the hub behind an HTTP listener.
type Server struct {
	hub      *Hub
	router   *chi.Mux
	throttle *Throttle
}

// NewServer creates a server. Background work starts only in Start.
func NewServer(cfg Config) *Server {
	s := &Server{
		hub:      NewHub(cfg),
		throttle: NewThrottle(AdminLimits),
	}
	s.router = NewRouter(RouterConfig{
		Hub:      s.hub,
		Throttle: s.throttle,
	})
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub { return s.hub }

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the hub and serves addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	defer func() {
		allowed, rejected := s.throttle.Counts()
		log.Printf("🚦 Admin API: %d requests served, %d throttled", allowed, rejected)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("🌐 Dev server listening on %s (ws://%s/ws)", addr, addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
