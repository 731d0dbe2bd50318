package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Flgjfvevdk/pilot-together/internal/journal"
	"github.com/Flgjfvevdk/pilot-together/internal/protocol"
	"github.com/Flgjfvevdk/pilot-together/internal/render"
	"github.com/Flgjfvevdk/pilot-together/internal/roster"
	"github.com/Flgjfvevdk/pilot-together/internal/scene"
	"github.com/Flgjfvevdk/pilot-together/internal/session"
)

// DefaultJournalLimit is the number of journal records returned by default
const DefaultJournalLimit = 100

// viewTimeout bounds how long a request waits for the session loop
const viewTimeout = time.Second

// Session is the part of the session controller the debug server reads.
type Session interface {
	Do(ctx context.Context, fn func(session.View)) error
	Status() session.Status
	Stats() session.Stats
}

// RouterConfig contains the dependencies of the debug router.
type RouterConfig struct {
	Session  Session          // required
	Renderer *render.Renderer // optional, enables /debug/frame.png
	Journal  *journal.Journal // optional, enables /debug/journal

	// DisableLogging disables the request logger middleware (useful in tests).
	DisableLogging bool
}

type handlers struct {
	session  Session
	renderer *render.Renderer
	journal  *journal.Journal
}

// StateResponse is the body of /debug/state.
type StateResponse struct {
	Status      session.Status      `json:"status"`
	Stats       session.Stats       `json:"stats"`
	Weapons     session.WeaponState `json:"weapons"`
	Aim         session.AimState    `json:"aim"`
	Pressed     []string            `json:"pressed"`
	Health      *scene.Gauge        `json:"health,omitempty"`
	Temperature *scene.Gauge        `json:"temperature,omitempty"`
	Entities    int                 `json:"entities"`
}

// JournalResponse is the body of /debug/journal.
type JournalResponse struct {
	Stats   journal.Stats    `json:"stats"`
	Records []journal.Record `json:"records"`
}

// NewRouter builds the debug router. It starts no goroutines.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &handlers{
		session:  cfg.Session,
		renderer: cfg.Renderer,
		journal:  cfg.Journal,
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/debug/pprof", func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.HandleFunc("/{profile}", pprof.Index)
	})

	r.Get("/debug/status", h.handleStatus)
	r.Get("/debug/state", h.handleState)
	r.Get("/debug/scene", h.handleScene)
	r.Get("/debug/roster", h.handleRoster)
	r.Get("/debug/frame.png", h.handleFrame)
	r.Get("/debug/protocol", h.handleProtocol)
	r.Get("/debug/journal", h.handleJournal)

	return r
}

// view runs fn on the session loop with a bounded wait.
func (h *handlers) view(w http.ResponseWriter, r *http.Request, fn func(session.View)) bool {
	ctx, cancel := context.WithTimeout(r.Context(), viewTimeout)
	defer cancel()
	if err := h.session.Do(ctx, fn); err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *handlers) handleState(w http.ResponseWriter, r *http.Request) {
	var resp StateResponse
	ok := h.view(w, r, func(v session.View) {
		resp.Status = v.Status()
		resp.Stats = v.Stats()
		resp.Weapons = v.Weapons()
		resp.Aim = v.Aim()
		resp.Pressed = v.Pressed()
		resp.Entities = len(v.Entries())
		if g, ok := v.Health(); ok {
			resp.Health = &g
		}
		if g, ok := v.Temperature(); ok {
			resp.Temperature = &g
		}
	})
	if ok {
		writeJSON(w, resp)
	}
}

// handleStatus answers without the session loop, so it works while the
// loop is busy or stopped.
func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": h.session.Status(),
		"stats":  h.session.Stats(),
	})
}

func (h *handlers) handleScene(w http.ResponseWriter, r *http.Request) {
	var entries []scene.Entry
	if h.view(w, r, func(v session.View) { entries = v.Entries() }) {
		writeJSON(w, entries)
	}
}

func (h *handlers) handleRoster(w http.ResponseWriter, r *http.Request) {
	var players []roster.Player
	if h.view(w, r, func(v session.View) { players = v.Players() }) {
		writeJSON(w, players)
	}
}

func (h *handlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "renderer disabled", http.StatusNotFound)
		return
	}
	var frame render.Frame
	if !h.view(w, r, func(v session.View) { frame = FrameFromView(v) }) {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	h.renderer.EncodePNG(w, frame)
}

// FrameFromView collects what the renderer draws from the session state.
func FrameFromView(v session.View) render.Frame {
	status, weapons := v.Status(), v.Weapons()
	f := render.Frame{
		Entries: v.Entries(),
		Status:  status.Connection,
		Notice:  status.Game,
		Weapon:  weapons.Selected,
		Weapons: weapons.Active,
	}
	if g, ok := v.Health(); ok {
		f.Health = &g
	}
	if g, ok := v.Temperature(); ok {
		f.Temperature = &g
	}
	for _, p := range v.Players() {
		f.Players = append(f.Players, p.Label())
	}
	return f
}

// Frame reads one render frame from a running session.
func Frame(ctx context.Context, s Session) (render.Frame, error) {
	var f render.Frame
	err := s.Do(ctx, func(v session.View) { f = FrameFromView(v) })
	return f, err
}

func (h *handlers) handleProtocol(w http.ResponseWriter, r *http.Request) {
	doc, err := protocol.SchemaDocument()
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

func (h *handlers) handleJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, "journal disabled", http.StatusNotFound)
		return
	}
	n := DefaultJournalLimit
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}
	writeJSON(w, JournalResponse{
		Stats:   h.journal.GetStats(),
		Records: h.journal.Recent(n),
	})
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
