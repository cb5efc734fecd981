package server

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	Authenticated bool   `json:"authenticated"`
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := s.auth.ProfileStatus(r.Context(), SessionIDFromContext(r.Context()))
		writeJSON(w, http.StatusOK, healthResponse{
			Status:        "ok",
			Timestamp:     s.nowTime().UTC().Format(time.RFC3339),
			Authenticated: status.IsAuthenticated(),
		})
	}
}
