package devserver

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Flgjfvevdk/pilot-together/internal/protocol"
)

// RouterConfig contains the dependencies of the HTTP router.
type RouterConfig struct {
	Hub *Hub

	// Throttle guards the admin API. If nil, one is created from
	// AdminLimits.
	Throttle *Throttle

	// CORSOrigins defaults to local origins
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful in tests).
	DisableLogging bool
}

type handlers struct {
	hub *Hub
}

// NewRouter builds the HTTP router. It starts no goroutines, so it can be
// mounted on httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	throttle := cfg.Throttle
	if throttle == nil {
		throttle = NewThrottle(AdminLimits)
	}

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &handlers{hub: cfg.Hub}

	r.Get("/ws", cfg.Hub.HandleWebSocket)
	r.Get("/static/images/{name}", handleSprite)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(throttle.Middleware)

		r.Get("/state", h.handleGetState)
		r.Get("/players", h.handleGetPlayers)
		r.Get("/received", h.handleGetReceived)
		r.Get("/schema", h.handleGetSchema)

		r.Post("/cannons", h.handleSetCannons)
		r.Post("/pause", h.handlePause)
		r.Post("/resume", h.handleResume)
		r.Post("/restart", h.handleRestart)
	})

	return r
}

func (h *handlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	msg, err := h.hub.State(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, msg)
}

func (h *handlers) handleGetPlayers(w http.ResponseWriter, r *http.Request) {
	list, err := h.hub.Players(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, list)
}

func (h *handlers) handleGetReceived(w http.ResponseWriter, r *http.Request) {
	list, err := h.hub.Received(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, list)
}

func (h *handlers) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := protocol.SchemaDocument()
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

func (h *handlers) handleSetCannons(w http.ResponseWriter, r *http.Request) {
	var req protocol.CannonsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	active, err := h.hub.SetCannons(r.Context(), req.ActiveCannons)
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	log.Printf("🔫 Active cannons set to %d", active)
	writeJSON(w, protocol.CannonsUpdate{ActiveCannons: active})
}

func (h *handlers) handlePause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

func (h *handlers) handleResume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *handlers) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	if err := h.hub.SetPaused(r.Context(), paused); err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]bool{"paused": paused})
}

func (h *handlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.Restart(r.Context()); err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]bool{"restarted": true})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
