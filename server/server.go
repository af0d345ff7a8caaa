// Package server exposes the tutoring service over HTTP: the per-turn
// endpoint guarded by admission control, session management endpoints,
// feedback collection, and operational probes.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wbq321/CyberCJ-multiagent/admission"
	"github.com/wbq321/CyberCJ-multiagent/feedback"
	"github.com/wbq321/CyberCJ-multiagent/metric"
	"github.com/wbq321/CyberCJ-multiagent/tutor"
)

// maxRequestBodySize limits request bodies to 1MB.
const maxRequestBodySize = 1 << 20

// Server holds handler dependencies and builds the router.
type Server struct {
	engine    *tutor.Engine
	store     *tutor.Store
	admission *admission.Controller
	feedback  *feedback.Store // nil disables feedback persistence
	metrics   *metric.Metrics
	logger    *slog.Logger
}

// New creates a server. feedbackStore and metrics may be nil.
func New(engine *tutor.Engine, store *tutor.Store, ctrl *admission.Controller, feedbackStore *feedback.Store, metrics *metric.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		store:     store,
		admission: ctrl,
		feedback:  feedbackStore,
		metrics:   metrics,
		logger:    logger,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(corsMiddleware(allowedOrigins))

	r.Post("/ask", s.handleAsk)
	r.Post("/chat_multi_agent", s.handleAsk)
	r.Post("/new_topic", s.handleNewTopic)
	r.Post("/set_profile", s.handleSetProfile)
	r.Post("/feedback", s.handleFeedback)
	r.Post("/submit_survey", s.handleSurvey)
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return r
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a size-limited JSON request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// clientKey identifies the client for rate limiting. RealIP middleware
// already resolved forwarded addresses into RemoteAddr.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
