package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/jrsteele09/marketplace-auth-server/internal/logging"
	"github.com/jrsteele09/marketplace-auth-server/internal/metrics"
	"github.com/jrsteele09/marketplace-auth-server/internal/utils"
	"github.com/jrsteele09/marketplace-auth-server/server/authflowrepo"
	"github.com/jrsteele09/marketplace-auth-server/server/loginsession"
	"github.com/jrsteele09/marketplace-auth-server/upstream"
	"github.com/jrsteele09/marketplace-auth-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	PendingAuthorizations authflowrepo.Repo // state -> PKCE verifier
	Sessions              loginsession.Repo // session ID -> identity + tokens
}

// CallbackParams are the query parameters the provider sends back.
type CallbackParams struct {
	Code  string
	State string
	Error string
}

// AuthorizationService runs the Google sign-in flow and owns the lifecycle of
// the resulting sessions.
type AuthorizationService struct {
	repos         Repos
	provider      upstream.Provider
	sessionMaxAge time.Duration
	nowTime       func() time.Time
	newSessionID  func() string
	metrics       *metrics.Metrics
	refreshGroup  singleflight.Group
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithSessionMaxAge sets how long a session lives after sign-in.
func WithSessionMaxAge(maxAge time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		if maxAge > 0 {
			as.sessionMaxAge = maxAge
		}
	}
}

// WithSessionIDGenerator replaces the uuid based session ID generator.
func WithSessionIDGenerator(gen func() string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.newSessionID = gen
	}
}

// WithMetrics records provider call latency on m.
func WithMetrics(m *metrics.Metrics) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.metrics = m
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(
	repos Repos,
	provider upstream.Provider,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	if repos.PendingAuthorizations == nil {
		return nil, errors.New("[NewAuthorizationService] PendingAuthorizations repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] Sessions repo is required")
	}
	if provider == nil {
		return nil, errors.New("[NewAuthorizationService] provider is required")
	}

	authService := &AuthorizationService{
		repos:         repos,
		provider:      provider,
		sessionMaxAge: loginsession.DefaultMaxAge,
		nowTime:       time.Now,
		newSessionID:  uuid.NewString,
	}

	for _, opt := range options {
		opt(authService)
	}

	return authService, nil
}

// SessionMaxAge is the lifetime given to new sessions and their cookies.
func (as *AuthorizationService) SessionMaxAge() time.Duration {
	return as.sessionMaxAge
}

// BeginAuthorization creates a pending authorization and returns the provider
// URL to redirect the browser to. Expired pending authorizations are swept first.
func (as *AuthorizationService) BeginAuthorization(ctx context.Context) (string, error) {
	if removed, err := as.repos.PendingAuthorizations.SweepExpired(ctx); err != nil {
		log.Warn().Err(err).Msg("sweep of expired pending authorizations failed")
	} else if removed > 0 {
		log.Debug().Int("removed", removed).Msg("swept expired pending authorizations")
	}

	verifier, err := NewCodeVerifier()
	if err != nil {
		return "", errors.Wrap(err, "generate code verifier")
	}
	state, err := NewState()
	if err != nil {
		return "", errors.Wrap(err, "generate state")
	}
	if err := as.repos.PendingAuthorizations.Put(ctx, state, verifier); err != nil {
		return "", errors.Wrap(err, "store pending authorization")
	}

	log.Debug().Str("state", logging.StatePrefix(state)).Msg("authorization started")
	return as.provider.AuthorizationURL(state, CodeChallengeS256(verifier)), nil
}

// CompleteAuthorization handles the provider callback. Every failure is a
// *FlowError whose Code is safe to show to the storefront. Nothing is retried.
func (as *AuthorizationService) CompleteAuthorization(ctx context.Context, params CallbackParams) (loginsession.Session, error) {
	if params.Error != "" {
		return loginsession.Session{}, flowError(params.Error, nil)
	}
	if params.Code == "" || params.State == "" {
		return loginsession.Session{}, flowError(CodeInvalidCallback, errors.New("missing code or state"))
	}

	ctx = context.WithoutCancel(ctx)

	verifier, err := as.repos.PendingAuthorizations.Consume(ctx, params.State)
	if err != nil {
		return loginsession.Session{}, flowError(CodeInvalidState, err)
	}

	start := as.nowTime()
	tokens, err := as.provider.ExchangeCode(ctx, params.Code, verifier)
	as.metrics.ObserveProviderCall("exchange", start, err)
	if err != nil {
		return loginsession.Session{}, flowError(CodeTokenExchangeFailed, err)
	}

	start = as.nowTime()
	identity, err := as.provider.VerifyIDToken(ctx, tokens.IDToken)
	as.metrics.ObserveProviderCall("verify", start, err)
	if err != nil {
		return loginsession.Session{}, flowError(CodeTokenExchangeFailed, err)
	}
	identity.Role = nil

	now := as.nowTime()
	session := loginsession.Session{
		ID:   as.newSessionID(),
		User: *identity,
		Tokens: loginsession.Tokens{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiryDate:   tokens.ExpiresAt,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(as.sessionMaxAge),
	}
	if err := as.repos.Sessions.Create(ctx, session); err != nil {
		return loginsession.Session{}, flowError(CodeSessionError, err)
	}

	log.Info().
		Str("user_id", session.User.ID).
		Bool("has_refresh_token", session.Tokens.RefreshToken != "").
		Msg("user signed in")
	return session, nil
}

// CurrentUser returns the user held by the session.
func (as *AuthorizationService) CurrentUser(ctx context.Context, sessionID string) (users.User, error) {
	session, err := as.repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		return users.User{}, err
	}
	return session.User, nil
}

// ProfileStatus classifies a session ID as unauthenticated, pending or complete.
func (as *AuthorizationService) ProfileStatus(ctx context.Context, sessionID string) users.ProfileStatus {
	if sessionID == "" {
		return users.ProfileUnauthenticated
	}
	u, err := as.CurrentUser(ctx, sessionID)
	if err != nil {
		return users.ProfileUnauthenticated
	}
	return users.StatusOf(&u)
}

// CompleteProfile validates and stores the user's marketplace role. A missing
// session wins over an invalid role; an invalid role never touches the session.
func (as *AuthorizationService) CompleteProfile(ctx context.Context, sessionID, role string) (users.User, error) {
	ctx = context.WithoutCancel(ctx)

	session, err := as.repos.Sessions.Update(ctx, sessionID, func(s *loginsession.Session) error {
		parsed, err := users.ParseRole(role)
		if err != nil {
			return err
		}
		if utils.Equal(s.User.Role, &parsed) {
			return nil
		}
		s.User.Role = utils.Ptr(parsed)
		return nil
	})
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrSessionNotFound), apperrors.Is(err, apperrors.ErrInvalidRole):
		return users.User{}, err
	default:
		return users.User{}, apperrors.Wrapf(apperrors.ErrSessionPersistence, "save role: %v", err)
	}

	log.Info().Str("user_id", session.User.ID).Str("role", role).Msg("profile completed")
	return session.User, nil
}

// Refresh swaps the session's refresh token for a new access token.
// Concurrent refreshes of one session share a single provider call.
func (as *AuthorizationService) Refresh(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperrors.ErrSessionNotFound
	}
	ctx = context.WithoutCancel(ctx)

	_, err, _ := as.refreshGroup.Do(sessionID, func() (any, error) {
		return nil, as.refresh(ctx, sessionID)
	})
	return err
}

func (as *AuthorizationService) refresh(ctx context.Context, sessionID string) error {
	session, err := as.repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Tokens.RefreshToken == "" {
		return apperrors.ErrNoRefreshToken
	}

	start := as.nowTime()
	tokens, err := as.provider.RefreshTokens(ctx, session.Tokens.RefreshToken)
	as.metrics.ObserveProviderCall("refresh", start, err)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrTokenRefresh) {
			err = apperrors.Wrapf(apperrors.ErrTokenRefresh, "%v", err)
		}
		return err
	}

	_, err = as.repos.Sessions.Update(ctx, sessionID, func(s *loginsession.Session) error {
		s.Tokens.AccessToken = tokens.AccessToken
		s.Tokens.ExpiryDate = tokens.ExpiresAt
		if tokens.RefreshToken != "" {
			s.Tokens.RefreshToken = tokens.RefreshToken
		}
		return nil
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return err
		}
		return apperrors.Wrapf(apperrors.ErrSessionPersistence, "save tokens: %v", err)
	}

	log.Debug().
		Str("user_id", session.User.ID).
		Bool("rotated_refresh_token", tokens.RefreshToken != "" && tokens.RefreshToken != session.Tokens.RefreshToken).
		Msg("tokens refreshed")
	return nil
}

// Logout revokes the access token on a best-effort basis and then destroys
// the session. Only a failure to destroy the session is returned.
func (as *AuthorizationService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	session, err := as.repos.Sessions.Get(ctx, sessionID)
	switch {
	case apperrors.Is(err, apperrors.ErrSessionNotFound):
		return nil
	case err != nil:
		log.Warn().Err(err).Msg("could not load session before logout, skipping revocation")
	case session.Tokens.AccessToken != "":
		start := as.nowTime()
		revokeErr := as.provider.RevokeToken(ctx, session.Tokens.AccessToken)
		as.metrics.ObserveProviderCall("revoke", start, revokeErr)
		if revokeErr != nil {
			log.Warn().Err(revokeErr).Str("user_id", session.User.ID).Msg("token revocation failed, continuing logout")
		}
	}

	if err := as.DiscardSession(ctx, sessionID); err != nil {
		return err
	}
	log.Info().Str("user_id", session.User.ID).Msg("user logged out")
	return nil
}

// DiscardSession deletes a session locally without contacting the provider.
func (as *AuthorizationService) DiscardSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := as.repos.Sessions.Delete(ctx, sessionID); err != nil {
		return apperrors.Wrapf(apperrors.ErrSessionPersistence, "delete session: %v", err)
	}
	return nil
}
