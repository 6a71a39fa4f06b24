// Package api implements the chainflow HTTP server: a JSON API over one
// shared factory graph plus rendered views of it.
//
// The server owns the only writer to the graph. Every mutating request
// takes the server mutex, applies the change through the interaction
// controller (which runs a full recompute pass), and releases the mutex
// before the response is written, so handlers always serve a balanced
// labeling.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/chainflow/pkg/errors"
	"github.com/matzehuels/chainflow/pkg/factory"
	"github.com/matzehuels/chainflow/pkg/factory/control"
	"github.com/matzehuels/chainflow/pkg/factory/rate"
	chainio "github.com/matzehuels/chainflow/pkg/io"
	"github.com/matzehuels/chainflow/pkg/pipeline"
	"github.com/matzehuels/chainflow/pkg/snapshot"
)

// Server serves the factory graph API.
type Server struct {
	mu         sync.Mutex
	store      *factory.Store
	engine     *rate.Engine
	controller *control.Controller
	runner     *pipeline.Runner
	snapshots  snapshot.Store
	logger     *log.Logger
}

// Config bundles the collaborators a Server needs.
type Config struct {
	Store     *factory.Store
	Runner    *pipeline.Runner
	Snapshots snapshot.Store // nil disables snapshot endpoints
	Logger    *log.Logger
}

// New creates a Server over the given store.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	engine := rate.New(cfg.Store, cfg.Logger)
	return &Server{
		store:      cfg.Store,
		engine:     engine,
		controller: control.New(cfg.Store, engine),
		runner:     cfg.Runner,
		snapshots:  cfg.Snapshots,
		logger:     cfg.Logger,
	}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", s.handleGetGraph)
		r.Post("/recompute", s.handleRecompute)
		r.Get("/search", s.handleSearch)

		r.Route("/nodes/{id}", func(r chi.Router) {
			r.Patch("/", s.handlePatchNode)
			r.Delete("/", s.handleDeleteNode)
			r.Post("/ancestors", s.handleShowOnlyAncestors)
		})

		r.Post("/visibility/reset", s.handleResetVisibility)

		r.Get("/render.svg", s.handleRender(pipeline.FormatSVG, "image/svg+xml"))
		r.Get("/render.png", s.handleRender(pipeline.FormatPNG, "image/png"))
		r.Get("/render.dot", s.handleRender(pipeline.FormatDOT, "text/vnd.graphviz"))

		if s.snapshots != nil {
			r.Route("/snapshots", func(r chi.Router) {
				r.Get("/", s.handleListSnapshots)
				r.Post("/", s.handleCreateSnapshot)
				r.Post("/{id}/restore", s.handleRestoreSnapshot)
				r.Delete("/{id}", s.handleDeleteSnapshot)
			})
		}
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, err := chainio.MarshalJSON(s.store)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.engine.Recompute()
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recomputed"})
}

// patchNodeRequest is the body for PATCH /api/nodes/{id}.
// Absent fields are left unchanged.
type patchNodeRequest struct {
	Hidden             *bool    `json:"hidden,omitempty"`
	DesiredOutput      *float64 `json:"desired_output_per_s,omitempty"`
	ClearDesiredOutput bool     `json:"clear_desired_output,omitempty"`
}

func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req patchNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Node(id); !ok {
		s.writeError(w, errors.New(errors.ErrCodeNodeNotFound, "node %s", id))
		return
	}

	if req.Hidden != nil {
		if err := s.controller.SetHidden(id, *req.Hidden); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.ClearDesiredOutput {
		if err := s.controller.ClearDesiredOutput([]string{id}); err != nil {
			s.writeError(w, err)
			return
		}
	} else if req.DesiredOutput != nil {
		if err := s.controller.SetDesiredOutput([]string{id}, *req.DesiredOutput); err != nil {
			s.writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Node(id); !ok {
		s.writeError(w, errors.New(errors.ErrCodeNodeNotFound, "node %s", id))
		return
	}
	if err := s.controller.RemoveNode(id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleShowOnlyAncestors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	err := s.controller.ShowOnlyAncestors(id)
	s.mu.Unlock()
	if err == factory.ErrUnknownNode {
		s.writeError(w, errors.New(errors.ErrCodeNodeNotFound, "node %s", id))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "narrowed"})
}

func (s *Server) handleResetVisibility(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.controller.ResetVisibility()
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	after := r.URL.Query().Get("after")
	if query == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "query parameter q is required"))
		return
	}

	s.mu.Lock()
	id, found := s.controller.Search(query, after)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "found": found})
}

func (s *Server) handleRender(format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := pipeline.Options{
			Formats:    []string{format},
			ShowHidden: r.URL.Query().Get("hidden") == "true",
			Detailed:   r.URL.Query().Get("detailed") == "true",
			Refresh:    r.URL.Query().Get("refresh") == "true",
		}

		s.mu.Lock()
		artifacts, err := s.runner.Render(r.Context(), s.store, opts)
		s.mu.Unlock()
		if err != nil {
			s.writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(artifacts[format])
	}
}

// writeError maps structured error codes to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidRate, errors.ErrCodeInvalidFormat:
		status = http.StatusBadRequest
	case errors.ErrCodeNodeNotFound, errors.ErrCodeEdgeNotFound, errors.ErrCodeSnapshotNotFound, errors.ErrCodeNotFound:
		status = http.StatusNotFound
	}
	if err == factory.ErrUnknownNode || err == factory.ErrNegativeRate {
		status = http.StatusBadRequest
	}

	s.logger.Error("request failed", "err", err)
	writeJSON(w, status, map[string]any{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
