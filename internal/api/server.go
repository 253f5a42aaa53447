// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/legacylens/legacylens/internal/catalog"
	"github.com/legacylens/legacylens/internal/chat"
	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/graph"
	"github.com/legacylens/legacylens/internal/llm"
	"github.com/legacylens/legacylens/internal/pipeline"
	"github.com/legacylens/legacylens/internal/report"
	"github.com/legacylens/legacylens/internal/vector"
)

// Deps are the collaborators the server exposes over HTTP.
type Deps struct {
	Store    *catalog.Store
	Runner   *pipeline.Runner
	Engine   *chat.Engine
	Reports  *report.Service
	Provider llm.Provider
	Vector   vector.Store
	Graph    graph.Client
}

type Server struct {
	router  chi.Router
	store   *catalog.Store
	runner  *pipeline.Runner
	engine  *chat.Engine
	reports *report.Service
	vector  vector.Store
	graph   graph.Client
}

func NewServer(deps Deps) (*Server, error) {
	logger := common.Logger()
	if deps.Store == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("pipeline runner required")
	}
	providerName := "none"
	if deps.Provider != nil {
		providerName = deps.Provider.Name()
	}
	logger.Info("api: building server",
		"provider", providerName,
		"vector_available", deps.Vector != nil && deps.Vector.Available(),
		"graph_available", deps.Graph != nil && deps.Graph.Available(),
	)
	reports := deps.Reports
	if reports == nil {
		reports = report.NewService(deps.Store)
	}
	srv := &Server{
		router:  chi.NewRouter(),
		store:   deps.Store,
		runner:  deps.Runner,
		engine:  deps.Engine,
		reports: reports,
		vector:  deps.Vector,
		graph:   deps.Graph,
	}
	srv.routes()
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path,
				"dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/v1/pipeline/run", s.handlePipelineRun)
	s.router.Post("/v1/pipeline/cancel", s.handlePipelineCancel)
	s.router.Get("/v1/pipeline/status", s.handlePipelineStatus)
	s.router.Get("/v1/programs", s.handlePrograms)
	s.router.Get("/v1/programs/{name}", s.handleProgram)
	s.router.Get("/v1/programs/{name}/callgraph", s.handleCallGraph)
	s.router.Get("/v1/reports/stories", s.handleStoriesReport)
	s.router.Get("/v1/reports/summaries", s.handleSummariesReport)
	s.router.Get("/v1/reports/callflows", s.handleCallFlowsReport)
	s.router.Post("/v1/chat", s.handleChat)
	s.router.Get("/v1/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMarkdown(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
