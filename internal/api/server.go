package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jordanhubbard/cogload/internal/analytics"
	"github.com/jordanhubbard/cogload/internal/auth"
	"github.com/jordanhubbard/cogload/internal/briefing"
	"github.com/jordanhubbard/cogload/internal/cache"
	"github.com/jordanhubbard/cogload/internal/cognitive"
	"github.com/jordanhubbard/cogload/internal/database"
	"github.com/jordanhubbard/cogload/internal/events"
	"github.com/jordanhubbard/cogload/internal/github"
	"github.com/jordanhubbard/cogload/internal/logging"
	"github.com/jordanhubbard/cogload/internal/metrics"
	"github.com/jordanhubbard/cogload/internal/orchestrator"
)

// Config holds the HTTP-facing settings
type Config struct {
	EnableAuth     bool
	AllowedOrigins []string
	// DefaultUserID serves requests without X-User-ID when auth is off
	DefaultUserID string
	Version       string
	ScoreTTL      time.Duration
}

// Deps are the components the handlers drive. Syncer may be nil when
// GitHub sync is not configured; Validator is required when auth is on.
type Deps struct {
	DB           *database.Database
	Engine       *cognitive.Engine
	Orchestrator *orchestrator.Orchestrator
	Briefings    *briefing.Generator
	Syncer       *github.Syncer
	Analytics    *analytics.Roller
	Cache        *cache.Cache
	Bus          events.Bus
	Logs         *logging.Manager
	Metrics      *metrics.Metrics
	Validator    *auth.Validator
}

// Server represents the HTTP API server
type Server struct {
	Deps
	config   Config
	upgrader websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.ScoreTTL <= 0 {
		cfg.ScoreTTL = 60 * time.Second
	}
	s := &Server{Deps: deps, config: cfg}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originAllowed,
	}
	return s
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	// Cognitive load
	mux.HandleFunc("/api/v1/cognitive/score", s.handleScore)
	mux.HandleFunc("/api/v1/cognitive/history", s.handleHistory)
	mux.HandleFunc("/api/v1/cognitive/export", s.handleExport)

	// Agents
	mux.HandleFunc("/api/v1/agents/recommend", s.handleRecommend)
	mux.HandleFunc("/api/v1/recommendations", s.handleRecommendations)

	// Briefings
	mux.HandleFunc("/api/v1/ai/briefing", s.handleGenerateBriefing)
	mux.HandleFunc("/api/v1/briefings", s.handleBriefings)

	// Activity
	mux.HandleFunc("/api/v1/focus/sessions", s.handleFocusSessions)
	mux.HandleFunc("/api/v1/focus/sessions/", s.handleFocusSession)
	mux.HandleFunc("/api/v1/context-switches", s.handleContextSwitches)

	// GitHub
	mux.HandleFunc("/api/v1/github/sync", s.handleSync)

	// Analytics
	mux.HandleFunc("/api/v1/analytics/daily", s.handleDailyAnalytics)

	// Logs and live events
	mux.HandleFunc("/api/v1/logs", s.handleLogs)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Apply middleware
	handler := s.authMiddleware(mux)
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)

	return handler
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes websocket upgrades through to the real writer
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware records request metrics and a structured request entry
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		route := routeLabel(r.URL.Path)
		s.Metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), duration.Seconds())
		if s.Logs != nil && route != "/metrics" {
			s.Logs.LogRequest(r.Method, route, rec.status, duration)
		}
	})
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range s.config.AllowedOrigins {
			if allowed == "*" || allowed == origin {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				break
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the calling user. With auth on, a bearer JWT is
// required; otherwise X-User-ID (or the configured default) is trusted.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		var userID string
		if s.config.EnableAuth {
			token, err := auth.BearerToken(r)
			if err != nil {
				s.respondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			claims, err := s.Validator.Validate(token)
			if err != nil {
				s.respondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			userID = claims.User()
		} else {
			userID = strings.TrimSpace(r.Header.Get("X-User-ID"))
			if userID == "" {
				userID = s.config.DefaultUserID
			}
		}
		if userID == "" {
			s.respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return strings.HasSuffix(origin, "://"+r.Host)
}

// routeLabel collapses ids out of paths so metric labels stay bounded
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/api/v1/focus/sessions/") {
		return "/api/v1/focus/sessions/{id}/end"
	}
	return path
}

// Helper functions

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps a component error onto a status. Store outages are
// reported as retryable without leaking driver detail.
func (s *Server) respondFailure(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidTrigger), errors.Is(err, briefing.ErrInvalidTaskType):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, database.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	case errors.Is(err, database.ErrStoreUnavailable):
		log.Printf("[API] %s: %v", message, err)
		s.respondError(w, http.StatusServiceUnavailable, "Store temporarily unavailable, please retry")
		return
	case errors.Is(err, briefing.ErrAdvisory):
		log.Printf("[API] %s: %v", message, err)
		s.respondError(w, http.StatusBadGateway, message)
		return
	}
	log.Printf("[API] %s: %v", message, err)
	s.respondError(w, http.StatusInternalServerError, message)
}

// parseJSON parses JSON request body
func (s *Server) parseJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// extractID extracts ID from URL path
func (s *Server) extractID(path, prefix string) string {
	// Remove prefix and any trailing slash
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimPrefix(id, "/")
	id = strings.TrimSuffix(id, "/")

	// Handle sub-paths (e.g., /api/v1/focus/sessions/123/end)
	parts := strings.Split(id, "/")
	if len(parts) > 0 {
		return parts[0]
	}

	return id
}

// intParam reads a positive integer query parameter, def when absent
func intParam(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
