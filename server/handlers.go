package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/jrsteele09/marketplace-auth-server/internal/metrics"
	"github.com/jrsteele09/marketplace-auth-server/users"
	"github.com/rs/zerolog/log"
)

const maxRequestBodyBytes = 1 << 16

type userResponse struct {
	User          users.User          `json:"user"`
	ProfileStatus users.ProfileStatus `json:"profile_status"`
}

type completeProfileRequest struct {
	Role string `json:"role"`
}

type completeProfileResponse struct {
	User users.User `json:"user"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// UserHandler returns the signed-in user and their profile status.
func (s *Server) UserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := SessionIDFromContext(r.Context())
		if sessionID == "" {
			writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		user, err := s.auth.CurrentUser(r.Context(), sessionID)
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrSessionNotFound) {
				log.Err(err).Msg("failed to load session")
			}
			writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		writeJSON(w, http.StatusOK, userResponse{User: user, ProfileStatus: users.StatusOf(&user)})
	}
}

// CompleteProfileHandler records the marketplace role chosen after first sign-in.
func (s *Server) CompleteProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := SessionIDFromContext(r.Context())
		if sessionID == "" {
			writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		// A body that does not decode is treated as an absent role.
		var req completeProfileRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
			req.Role = ""
		}

		user, err := s.auth.CompleteProfile(r.Context(), sessionID, req.Role)
		switch {
		case err == nil:
			s.metrics.AuthEvent("complete_profile", metrics.OutcomeSuccess)
			writeJSON(w, http.StatusOK, completeProfileResponse{User: user})
		case apperrors.Is(err, apperrors.ErrSessionNotFound):
			writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
		case apperrors.Is(err, apperrors.ErrInvalidRole):
			s.metrics.AuthEvent("complete_profile", "invalid_role")
			writeJSONError(w, http.StatusBadRequest, "Invalid role")
		default:
			log.Err(err).Msg("failed to save role")
			s.metrics.AuthEvent("complete_profile", metrics.OutcomeError)
			writeJSONError(w, http.StatusInternalServerError, "Failed to save role")
		}
	}
}

// RefreshHandler exchanges the session's refresh token for a new access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.auth.Refresh(r.Context(), SessionIDFromContext(r.Context()))
		switch {
		case err == nil:
			s.metrics.AuthEvent("refresh", metrics.OutcomeSuccess)
			writeJSON(w, http.StatusOK, successResponse{Success: true})
		case apperrors.Is(err, apperrors.ErrSessionNotFound), apperrors.Is(err, apperrors.ErrNoRefreshToken):
			writeJSONError(w, http.StatusUnauthorized, "No refresh token available")
		case apperrors.Is(err, apperrors.ErrTokenRefresh):
			log.Warn().Err(err).Msg("token refresh rejected")
			s.metrics.AuthEvent("refresh", "refresh_failed")
			writeJSONError(w, http.StatusUnauthorized, "Token refresh failed")
		default:
			log.Err(err).Msg("failed to save refreshed tokens")
			s.metrics.AuthEvent("refresh", metrics.OutcomeError)
			writeJSONError(w, http.StatusInternalServerError, "Failed to save tokens")
		}
	}
}

// LogoutHandler ends the session. It succeeds even when there is nothing to end.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Context(), SessionIDFromContext(r.Context())); err != nil {
			log.Err(err).Msg("logout failed")
			s.metrics.AuthEvent("logout", metrics.OutcomeError)
			writeJSONError(w, http.StatusInternalServerError, "Logout failed")
			return
		}
		s.clearSessionCookie(w)
		s.metrics.AuthEvent("logout", metrics.OutcomeSuccess)
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}
