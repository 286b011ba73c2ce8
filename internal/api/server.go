package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/slidewise/deckd/internal/core"
	"github.com/slidewise/deckd/internal/logging"
	"github.com/slidewise/deckd/internal/service"
	"github.com/slidewise/deckd/internal/workflow"
)

// ServerConfig carries the transport tunables.
type ServerConfig struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	PingInterval    time.Duration
	PongTimeout     time.Duration
	MaxMessageBytes int64
}

// DefaultServerConfig returns sane transport defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8000,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		PingInterval:    30 * time.Second,
		PongTimeout:     75 * time.Second,
		MaxMessageBytes: 64 * 1024,
	}
}

// Server exposes the WebSocket endpoint and operational HTTP routes.
type Server struct {
	cfg      ServerConfig
	machine  *workflow.Machine
	sessions *service.Sessions
	auth     core.Authenticator
	store    core.PresentationStore // may be nil
	cp       *workflow.Checkpointer // may be nil
	log      *logging.Logger

	router   chi.Router
	upgrader websocket.Upgrader
	http     *http.Server
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithPresentationStore enables the read-only presentation route.
func WithPresentationStore(store core.PresentationStore) ServerOption {
	return func(s *Server) { s.store = store }
}

// WithWorkflowCheckpoints lets reconnecting clients resume suspended
// workflows from their checkpoints.
func WithWorkflowCheckpoints(cp *workflow.Checkpointer) ServerOption {
	return func(s *Server) { s.cp = cp }
}

// NewServer creates the API server.
func NewServer(cfg ServerConfig, machine *workflow.Machine, sessions *service.Sessions, auth core.Authenticator, log *logging.Logger, opts ...ServerOption) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		cfg.PongTimeout = cfg.PingInterval * 2
	}
	s := &Server{
		cfg:      cfg,
		machine:  machine,
		sessions: sessions,
		auth:     auth,
		log:      log,
		upgrader: newUpgrader(cfg.AllowedOrigins, log),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/presentations/{presentationID}", s.handleGetPresentation)
		r.Delete("/sessions/{sessionID}", s.handleCloseSession)
	})

	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

// ListenAndServe runs the server until ctx is canceled, then drains
// connections within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	// WebSocket connections outlive any sensible write timeout.
	s.http.WriteTimeout = 0

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetPresentation(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "presentations are not persisted"})
		return
	}
	id := chi.URLParam(r, "presentationID")
	p, err := s.store.GetPresentation(r.Context(), id)
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "presentation not found"})
			return
		}
		s.log.Error("presentation lookup failed", "id", id, "error", err.Error())
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// handleCloseSession deletes a session on client request. Closing is
// idempotent: a missing session id still returns 204.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Close(r.Context(), id, "client request"); err != nil {
		s.log.Error("session close failed", "session_id", id, "error", err.Error())
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "close failed"})
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
