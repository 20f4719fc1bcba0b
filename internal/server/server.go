// Package server exposes the query engine as a read-only JSON API.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/discourse/discourse-releases/internal/changelog"
)

// Server routes API requests to an Engine.
type Server struct {
	router chi.Router
	engine *changelog.Engine
	logger *slog.Logger
}

// New builds a server over engine. A nil logger uses slog.Default.
func New(engine *changelog.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: chi.NewRouter(),
		engine: engine,
		logger: logger,
	}
	s.routes()
	s.logger.Info("api: server ready",
		"commits", engine.TotalCommits(),
		"tags", len(engine.SortedTags()),
		"branches", len(engine.Branches()))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.instrument)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/refs", s.handleRefs)
		r.Get("/changelog", s.handleChangelog)
		// Branch names contain slashes, so refs are taken from the wildcard.
		r.Get("/resolve/*", s.handleResolve)
		r.Get("/previous/*", s.handlePrevious)
	})
}

// instrument logs every request and records its metrics under the matched route
// pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		dur := time.Since(start)
		requestTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(route).Observe(dur.Seconds())
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "route", route, "status", status, "dur", dur)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Ref     string   `json:"ref,omitempty"`
	Matches []string `json:"matches,omitempty"`
}

// writeError maps ref errors to 404 (unknown) and 409 (ambiguous); anything else
// gets the given fallback status.
func (s *Server) writeError(w http.ResponseWriter, fallback int, err error) {
	status := fallback
	resp := errorResponse{Error: err.Error()}

	var refErr *changelog.RefError
	if errors.As(err, &refErr) {
		resp.Kind = refErr.Kind.String()
		resp.Ref = refErr.Ref
		switch refErr.Kind {
		case changelog.Ambiguous:
			status = http.StatusConflict
			resp.Matches = refErr.Matches
		default:
			status = http.StatusNotFound
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}
