// File path: internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/legacylens/legacylens/internal/catalog"
	"github.com/legacylens/legacylens/internal/cobol"
	"github.com/legacylens/legacylens/internal/common"
	"github.com/legacylens/legacylens/internal/llm"
	"github.com/legacylens/legacylens/internal/pipeline"
)

type pipelineRunRequest struct {
	StartFrom string `json:"start_from,omitempty"`
	Only      string `json:"only,omitempty"`
}

type chatRequest struct {
	Question string        `json:"question"`
	History  []llm.Message `json:"history,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"vector_available": s.vector != nil && s.vector.Available(),
		"graph_available":  s.graph != nil && s.graph.Available(),
	})
}

func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req pipelineRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	opts := pipeline.Options{
		StartFrom: strings.TrimSpace(req.StartFrom),
		Only:      strings.TrimSpace(req.Only),
	}
	runID, err := s.runner.Start(r.Context(), opts)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	logger.Info("api: pipeline run accepted",
		"run_id", runID, "start_from", opts.StartFrom, "only", opts.Only)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "running"})
}

func (s *Server) handlePipelineCancel(w http.ResponseWriter, r *http.Request) {
	s.runner.Cancel()
	writeJSON(w, http.StatusAccepted, s.runner.State())
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.State())
}

func (s *Server) handlePrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.store.ListPrograms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	type programView struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Filename string `json:"filename"`
	}
	views := make([]programView, len(programs))
	for i, program := range programs {
		views[i] = programView{ID: program.ID, Name: program.Name, Filename: program.Filename}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"programs": views})
}

func (s *Server) handleProgram(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	program, err := s.store.ProgramByName(r.Context(), name)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Errorf("program %s not found", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	stories, err := s.store.StoriesForProgram(r.Context(), program.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	units, err := s.store.SummarizedUnits(r.Context(), program.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"program": program,
		"units":   units,
		"stories": stories,
	})
}

func (s *Server) handleCallGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	callGraph, err := s.store.CallGraphForProgram(r.Context(), name)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Errorf("program %s not found", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	mermaid, err := s.store.DivisionDiagram(r.Context(), name, cobol.DivisionProcedure)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"program": name,
		"graph":   callGraph,
		"mermaid": mermaid,
	})
}

func (s *Server) handleStoriesReport(w http.ResponseWriter, r *http.Request) {
	body, err := s.reports.UserStories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeMarkdown(w, http.StatusOK, body)
}

func (s *Server) handleSummariesReport(w http.ResponseWriter, r *http.Request) {
	body, err := s.reports.Summaries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeMarkdown(w, http.StatusOK, body)
}

func (s *Server) handleCallFlowsReport(w http.ResponseWriter, r *http.Request) {
	body, err := s.reports.CallFlows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeMarkdown(w, http.StatusOK, body)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("chat engine not configured"))
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, errors.New("question required"))
		return
	}
	answer, err := s.engine.Ask(r.Context(), req.Question, req.History)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": common.LogEntries()})
}
