package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionID stores the session ID carried by a valid session cookie
	ContextKeySessionID ContextKey = "session_id"
)

// SessionMiddleware resolves the session cookie into a session ID on the
// request context. A missing, tampered or expired cookie leaves the context
// empty; handlers decide what an absent session means for them.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionID := s.sessionIDFromCookie(r); sessionID != "" {
			r = r.WithContext(context.WithValue(r.Context(), ContextKeySessionID, sessionID))
		}
		next(w, r)
	}
}

// SessionIDFromContext returns the session ID set by SessionMiddleware, or "".
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(ContextKeySessionID).(string)
	return sessionID
}

func (s *Server) sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil {
		return ""
	}
	sessionID, err := s.cookies.Decode(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring invalid session cookie")
		return ""
	}
	return sessionID
}
