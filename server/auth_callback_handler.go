package server

import (
	"net/http"

	"github.com/jrsteele09/marketplace-auth-server/auth"
	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/jrsteele09/marketplace-auth-server/internal/logging"
	"github.com/jrsteele09/marketplace-auth-server/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Provider-supplied error codes are free text; metrics get a fixed label instead.
const providerErrorOutcome = "provider_error"

var flowErrorOutcomes = map[string]struct{}{
	auth.CodeInvalidCallback:     {},
	auth.CodeInvalidState:        {},
	auth.CodeTokenExchangeFailed: {},
	auth.CodeSessionError:        {},
}

// GoogleLoginHandler starts the sign-in flow by redirecting to Google.
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := s.auth.BeginAuthorization(r.Context())
		if err != nil {
			log.Err(err).Msg("failed to start authorization")
			s.metrics.AuthEvent("init", auth.CodeAuthInitFailed)
			s.redirectToApp(w, r, queryError, auth.CodeAuthInitFailed)
			return
		}
		s.metrics.AuthEvent("init", metrics.OutcomeSuccess)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// GoogleCallbackHandler completes the flow, issues the session cookie and
// sends the browser back to the storefront with the outcome.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		params := auth.CallbackParams{
			Code:  query.Get("code"),
			State: query.Get("state"),
			Error: query.Get("error"),
		}

		session, err := s.auth.CompleteAuthorization(r.Context(), params)
		if err != nil {
			code := auth.CodeSessionError
			var flowErr *auth.FlowError
			if apperrors.As(err, &flowErr) {
				code = flowErr.Code
			}
			s.callbackFailed(w, r, params, code, err)
			return
		}

		value, err := s.cookies.Encode(session.ID, session.ExpiresAt)
		if err != nil {
			if discardErr := s.auth.DiscardSession(r.Context(), session.ID); discardErr != nil {
				log.Warn().Err(discardErr).Msg("failed to discard unissued session")
			}
			s.callbackFailed(w, r, params, auth.CodeSessionError, err)
			return
		}

		// A new login always gets a fresh session; drop whatever the browser held.
		if oldSessionID := s.sessionIDFromCookie(r); oldSessionID != "" && oldSessionID != session.ID {
			if err := s.auth.DiscardSession(r.Context(), oldSessionID); err != nil {
				log.Warn().Err(err).Msg("failed to discard previous session")
			}
		}

		s.setSessionCookie(w, value, s.auth.SessionMaxAge())
		s.metrics.AuthEvent("callback", metrics.OutcomeSuccess)
		s.redirectToApp(w, r, queryGoogleAuth, googleAuthOK)
	}
}

func (s *Server) callbackFailed(w http.ResponseWriter, r *http.Request, params auth.CallbackParams, code string, err error) {
	log.Warn().
		Err(err).
		Str("code", code).
		Str("state", logging.StatePrefix(params.State)).
		Msg("sign-in failed")

	outcome := code
	if _, known := flowErrorOutcomes[code]; !known {
		outcome = providerErrorOutcome
	}
	s.metrics.AuthEvent("callback", outcome)
	s.redirectToApp(w, r, queryError, code)
}
