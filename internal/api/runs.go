package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/argmaster/cssfinder/internal/store"
)

// runResponse is the JSON report of one run.
type runResponse struct {
	RunID      string                   `json:"run_id"`
	Executions []*store.ExecutionRecord `json:"executions"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	records, err := s.index.ListRun(r.Context(), runID)
	if err != nil {
		s.logger.Error("list run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list run")
		return
	}
	if len(records) == 0 {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, runResponse{RunID: runID, Executions: records})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	runID, err := s.index.LatestRunID(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	if err != nil {
		s.logger.Error("latest run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to find latest run")
		return
	}

	records, err := s.index.ListRun(r.Context(), runID)
	if err != nil {
		s.logger.Error("list run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list run")
		return
	}

	s.writeJSON(w, http.StatusOK, runResponse{RunID: runID, Executions: records})
}

// taskHistoryResponse lists a task's executions across runs, newest first.
type taskHistoryResponse struct {
	TaskName   string                   `json:"task_name"`
	Executions []*store.ExecutionRecord `json:"executions"`
}

func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, ok := s.project.Task(name); !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	records, err := s.index.ListTask(r.Context(), name)
	if err != nil {
		s.logger.Error("list task history", "task", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list task history")
		return
	}
	if records == nil {
		records = []*store.ExecutionRecord{}
	}

	s.writeJSON(w, http.StatusOK, taskHistoryResponse{TaskName: name, Executions: records})
}
