package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/personaflow/internal/engine"
)

// Server is the personaflow HTTP API server.
type Server struct {
	engine      *engine.Engine
	log         *log.Logger
	router      chi.Router
	version     string
	started     time.Time
	hookTimeout time.Duration

	// background post-response work
	wg sync.WaitGroup
}

// New creates a new Server around eng.
func New(eng *engine.Engine, logger *log.Logger, version string) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		engine:      eng,
		log:         logger,
		version:     version,
		started:     time.Now(),
		hookTimeout: 120 * time.Second,
	}
	s.routes()
	return s
}

// SetHookTimeout bounds each background post-response run.
func (s *Server) SetHookTimeout(d time.Duration) {
	if d > 0 {
		s.hookTimeout = d
	}
}

// Wait blocks until background post-response work has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/hooks/request", s.handleRequestHook)
		r.Post("/hooks/response", s.handleResponseHook)

		r.Get("/impressions", s.handleListImpressions)
		r.Delete("/impressions/{userID}", s.handleDeleteImpression)

		r.Get("/personas/dynamic", s.handleDynamicPersona)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"uptime":     time.Since(s.started).Seconds(),
		"db_open":    s.engine.StoreOpened(),
		"persona_id": s.engine.PersonaID(),
		"cached":     s.engine.Cache().Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
