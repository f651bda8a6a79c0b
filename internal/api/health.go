package api

import "net/http"

type healthResponse struct {
	Status   string `json:"status"`
	Project  string `json:"project"`
	Backends int    `json:"backends"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Project:  s.project.Meta.Name,
		Backends: len(s.registry.List()),
	})
}
