// Package debug serves the client's introspection endpoints: health,
// Prometheus metrics, pprof, and JSON/PNG views of the session.
//
// CRITICAL: the server binds to localhost only unless ALLOW_DEBUG_EXTERNAL
// is set, since pprof can be used to load the process.
package debug

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Flgjfvevdk/pilot-together/internal/config"
)

// Start serves handler on cfg.ListenAddr until ctx is cancelled. It returns
// immediately when the server is disabled.
func Start(ctx context.Context, cfg config.DebugConfig, handler http.Handler) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	addr := ListenAddr(cfg.ListenAddr)
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, handler)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Printf("📊 Debug server starting on %s", ln.Addr())
		log.Printf("   - pprof:   http://%s/debug/pprof/", ln.Addr())
		log.Printf("   - metrics: http://%s/metrics", ln.Addr())
		log.Printf("   - frame:   http://%s/debug/frame.png", ln.Addr())

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()
	return nil
}

// ListenAddr forces addr onto the loopback interface unless external
// binding is explicitly allowed.
func ListenAddr(addr string) string {
	if os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true" {
		return addr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Printf("⚠️ Invalid debug address %q, using default", addr)
		return config.DefaultDebug().ListenAddr
	}
	switch host {
	case "127.0.0.1", "localhost", "::1":
		return addr
	}
	log.Println("⚠️ Debug server forced to localhost for security")
	return net.JoinHostPort("127.0.0.1", port)
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
