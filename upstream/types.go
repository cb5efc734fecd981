// Package upstream talks to the external identity provider on behalf of the
// auth server: building the authorization redirect, redeeming codes, checking
// ID tokens, refreshing and revoking tokens.
package upstream

import (
	"context"
	"time"

	"github.com/jrsteele09/marketplace-auth-server/users"
)

// Tokens is the token set returned by the provider's token endpoint.
type Tokens struct {
	AccessToken  string
	RefreshToken string // Empty when the provider did not issue or rotate one
	IDToken      string // Only present on code exchange
	ExpiresAt    time.Time
}

// Provider is an OAuth2/OIDC identity provider. Every method except
// AuthorizationURL makes a network call and honours ctx.
type Provider interface {
	// AuthorizationURL builds the URL the browser is sent to. Only the S256
	// code challenge is included, never the verifier.
	AuthorizationURL(state, codeChallenge string) string

	// ExchangeCode redeems an authorization code together with its PKCE verifier.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*Tokens, error)

	// VerifyIDToken checks signature, issuer, audience and expiry and returns
	// the identity carried by the token. The returned user has no role.
	VerifyIDToken(ctx context.Context, rawIDToken string) (*users.User, error)

	// RefreshTokens trades a refresh token for a new access token.
	RefreshTokens(ctx context.Context, refreshToken string) (*Tokens, error)

	// RevokeToken asks the provider to invalidate token.
	RevokeToken(ctx context.Context, token string) error
}
