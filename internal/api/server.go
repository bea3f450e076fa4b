// Package api exposes the explorer over JSON HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/equity-explorer/internal/explorer"
	"github.com/sells-group/equity-explorer/internal/source"
)

// maxBodyBytes caps the explore request body.
const maxBodyBytes = 1 << 20

// Server serves the explorer API.
type Server struct {
	exp     *explorer.Explorer
	origins []string
	limiter *rate.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit caps /api/v1 requests at rps per second with the given
// burst. rps <= 0 leaves the API unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// New creates a Server. An empty origins list allows every origin.
func New(exp *explorer.Explorer, origins []string, opts ...Option) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{exp: exp, origins: origins}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Get("/states/{state}/counties", s.counties)
		r.Post("/explore", s.explore)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) counties(w http.ResponseWriter, r *http.Request) {
	state := chi.URLParam(r, "state")
	counties, err := s.exp.Counties(r.Context(), state)
	if err != nil && !errors.Is(err, source.ErrDataUnavailable) {
		zap.L().Error("api: list counties", zap.String("state", state), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list counties")
		return
	}
	if len(counties) == 0 {
		writeError(w, http.StatusNotFound, "no counties for state "+state)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state, "counties": counties})
}

func (s *Server) explore(w http.ResponseWriter, r *http.Request) {
	var p explorer.Params
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := p.Resolve(s.exp.Catalog()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.exp.Run(r.Context(), p)
	if err != nil {
		zap.L().Error("api: explore",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "explore failed")
		return
	}
	writeJSON(w, http.StatusOK, newReport(rep, s.exp.Catalog()))
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
