package api

import (
	"net/http"

	"github.com/argmaster/cssfinder/internal/backend"
)

// listBackendsResponse wraps the discovered backend listing.
type listBackendsResponse struct {
	Backends []backend.Info `json:"backends"`
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listBackendsResponse{Backends: s.registry.List()})
}
