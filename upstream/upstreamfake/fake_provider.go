package upstreamfake

import (
	"context"
	"net/url"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/jrsteele09/marketplace-auth-server/upstream"
	"github.com/jrsteele09/marketplace-auth-server/users"
)

const AuthorizeEndpoint = "https://accounts.fake.test/o/oauth2/v2/auth"

var _ upstream.Provider = (*FakeProvider)(nil)

// FakeProvider is a scriptable Provider. Set the exported fields before use;
// recorded calls are read back through the accessor methods.
type FakeProvider struct {
	ClientID string

	// Returned on success
	ExchangeTokens upstream.Tokens
	Identity       users.User
	RefreshResult  upstream.Tokens

	// Forced failures
	ExchangeErr error
	VerifyErr   error
	RefreshErr  error
	RevokeErr   error

	// RefreshDelay holds RefreshTokens open so callers can pile up.
	RefreshDelay time.Duration

	mu                 sync.Mutex
	exchangedCodes     []string
	exchangedVerifiers []string
	refreshedWith      []string
	revoked            []string
}

// New returns a provider that succeeds with a fixed identity and token set.
func New() *FakeProvider {
	return &FakeProvider{
		ClientID: "fake-client-id",
		ExchangeTokens: upstream.Tokens{
			AccessToken:  "fake-access-token",
			RefreshToken: "fake-refresh-token",
			IDToken:      "fake-id-token",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
		Identity: users.User{
			ID:            "109876543210",
			Email:         "jane.doe@example.com",
			Name:          "Jane Doe",
			Picture:       "https://lh3.googleusercontent.com/a/jane",
			EmailVerified: true,
		},
		RefreshResult: upstream.Tokens{
			AccessToken: "fake-access-token-refreshed",
			ExpiresAt:   time.Now().Add(2 * time.Hour),
		},
	}
}

func (f *FakeProvider) AuthorizationURL(state, codeChallenge string) string {
	q := url.Values{
		"client_id":             {f.ClientID},
		"response_type":         {"code"},
		"scope":                 {"openid profile email"},
		"access_type":           {"offline"},
		"prompt":                {"consent"},
		"state":                 {state},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
	}
	return AuthorizeEndpoint + "?" + q.Encode()
}

func (f *FakeProvider) ExchangeCode(_ context.Context, code, codeVerifier string) (*upstream.Tokens, error) {
	f.mu.Lock()
	f.exchangedCodes = append(f.exchangedCodes, code)
	f.exchangedVerifiers = append(f.exchangedVerifiers, codeVerifier)
	f.mu.Unlock()

	if f.ExchangeErr != nil {
		return nil, f.ExchangeErr
	}
	tokens := f.ExchangeTokens
	return &tokens, nil
}

func (f *FakeProvider) VerifyIDToken(_ context.Context, rawIDToken string) (*users.User, error) {
	if f.VerifyErr != nil {
		return nil, f.VerifyErr
	}
	if rawIDToken == "" {
		return nil, apperrors.ErrIDTokenVerification
	}
	identity := f.Identity
	identity.Role = nil
	return &identity, nil
}

func (f *FakeProvider) RefreshTokens(ctx context.Context, refreshToken string) (*upstream.Tokens, error) {
	f.mu.Lock()
	f.refreshedWith = append(f.refreshedWith, refreshToken)
	f.mu.Unlock()

	if f.RefreshDelay > 0 {
		select {
		case <-time.After(f.RefreshDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	tokens := f.RefreshResult
	return &tokens, nil
}

func (f *FakeProvider) RevokeToken(_ context.Context, token string) error {
	f.mu.Lock()
	f.revoked = append(f.revoked, token)
	f.mu.Unlock()
	return f.RevokeErr
}

// ExchangedVerifiers returns every code verifier presented to the token endpoint.
func (f *FakeProvider) ExchangedVerifiers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exchangedVerifiers...)
}

func (f *FakeProvider) ExchangedCodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exchangedCodes...)
}

func (f *FakeProvider) RefreshCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshedWith...)
}

func (f *FakeProvider) RevokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}
