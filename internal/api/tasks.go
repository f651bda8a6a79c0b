package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/argmaster/cssfinder/internal/model"
	"github.com/argmaster/cssfinder/internal/project"
	"github.com/argmaster/cssfinder/internal/store"
)

// taskResponse is the JSON shape of one project task.
type taskResponse struct {
	Name          string          `json:"name"`
	Mode          model.Mode      `json:"mode"`
	Backend       string          `json:"backend,omitempty"`
	Precision     model.Precision `json:"precision"`
	StateFile     string          `json:"state_file"`
	MaxIterations int             `json:"max_iterations"`
	Threshold     float64         `json:"threshold"`
	OutputDir     string          `json:"output_dir"`
}

// getTaskResponse is the detail view: the task plus its finalized result, if
// one exists on disk.
type getTaskResponse struct {
	taskResponse
	Result *model.ExecutionResult `json:"result,omitempty"`
}

type projectResponse struct {
	Meta       project.Meta `json:"meta"`
	Directory  string       `json:"directory"`
	OutputRoot string       `json:"output_root"`
	TaskCount  int          `json:"task_count"`
}

func (s *Server) handleGetProject(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, projectResponse{
		Meta:       s.project.Meta,
		Directory:  s.project.Directory(),
		OutputRoot: s.project.OutputRoot(),
		TaskCount:  len(s.project.Tasks()),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.project.Tasks()
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = newTaskResponse(t)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	task, ok := s.project.Task(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	resp := getTaskResponse{taskResponse: newTaskResponse(task)}
	res, err := s.results.Read(task.OutputDir())
	switch {
	case err == nil:
		resp.Result = res
	case errors.Is(err, store.ErrNotFound):
		// Task has not produced a finalized result yet.
	default:
		s.logger.Error("read task result", "task", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read task result")
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func newTaskResponse(t *project.Task) taskResponse {
	return taskResponse{
		Name:          t.Name,
		Mode:          t.Mode,
		Backend:       t.BackendName,
		Precision:     t.Precision,
		StateFile:     t.StateFile,
		MaxIterations: t.MaxIterations,
		Threshold:     t.Threshold,
		OutputDir:     t.OutputDir(),
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
