// Package server implements the read-only preview API behind
// "sceneweaver serve".
//
// The spec is reloaded on every request, so the responses track edits to the
// file without a restart. Endpoints:
//
//	GET /healthz            build information
//	GET /timeline?scene=ID  resolved timeline document (see pkg/io)
//	GET /graph?scene=ID     scene tree as Graphviz DOT
//	GET /cache              cache listing, 404 when caching is disabled
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/sceneweaver/pkg/buildinfo"
	"github.com/matzehuels/sceneweaver/pkg/cache"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/io"
	"github.com/matzehuels/sceneweaver/pkg/observability"
	"github.com/matzehuels/sceneweaver/pkg/pipeline"
	"github.com/matzehuels/sceneweaver/pkg/render/nodelink"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Server serves one spec.
type Server struct {
	Runner *pipeline.Runner
	// Cache is listed by /cache. Nil disables the endpoint.
	Cache *cache.Manager
	// Options name the spec; the scene query parameter overrides SceneID.
	Options pipeline.Options
	Logger  *log.Logger
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	r.Get("/timeline", s.timeline)
	r.Get("/graph", s.graph)
	r.Get("/cache", s.cacheStats)
	return r
}

func (s *Server) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// observe reports every request to the HTTP hooks and the debug log.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		s.logger().Debug("request", "method", r.Method, "path", r.URL.Path, "status", status, "duration", elapsed)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Get()})
}

func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	v, targets, err := s.load(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := io.NewDocument(v, targets)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	_, targets, err := s.load(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	dot, err := nodelink.ToDOT(targets, nodelink.Options{Detailed: r.URL.Query().Has("detailed")})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = w.Write([]byte(dot))
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	if s.Cache == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "cache disabled"})
		return
	}
	stats, err := s.Cache.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// load reads and resolves the spec and returns the requested scenes.
func (s *Server) load(r *http.Request) (*spec.VideoSpec, []spec.Scene, error) {
	opts := s.Options
	if id := r.URL.Query().Get("scene"); id != "" {
		opts.SceneID = id
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	v, _, err := s.Runner.Timeline(r.Context(), opts)
	if err != nil {
		return nil, nil, err
	}
	targets, err := pipeline.Targets(v, opts.SceneID)
	if err != nil {
		return nil, nil, err
	}
	return v, targets, nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger().Error("request failed", "err", err)
	}
	writeJSON(w, status, errorBody{Error: errors.UserMessage(err), Code: string(errors.GetCode(err))})
}

func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound, errors.ErrCodeSceneNotFound, errors.ErrCodeTemplateNotFound:
		return http.StatusNotFound
	}
	if errors.IsUserError(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
