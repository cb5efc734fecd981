package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/marketplace-auth-server/internal/errors"
	"github.com/jrsteele09/marketplace-auth-server/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	GoogleIssuer               = "https://accounts.google.com"
	DefaultGoogleRevocationURL = "https://oauth2.googleapis.com/revoke"
	DefaultTimeout             = 10 * time.Second

	codeChallengeMethodS256 = "S256"
	maxErrorBodyBytes       = 1024
)

// GoogleConfig holds the client registration for Google sign-in.
type GoogleConfig struct {
	Issuer        string
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	Scopes        []string
	RevocationURL string        // Overrides the discovered revocation endpoint
	Timeout       time.Duration // Per provider call; DefaultTimeout when zero
}

// GoogleProvider implements Provider for Google (or any OIDC issuer that
// behaves like it, which is how the tests drive it).
type GoogleProvider struct {
	oauth2Config  *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	revocationURL string
	httpClient    *http.Client
	timeout       time.Duration
}

var _ Provider = (*GoogleProvider)(nil)

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithHTTPClient replaces the default client used for all provider calls.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(p *GoogleProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewGoogleProvider performs OIDC discovery against cfg.Issuer.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig, opts ...GoogleOption) (*GoogleProvider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("[NewGoogleProvider] client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("[NewGoogleProvider] client secret is required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("[NewGoogleProvider] redirect URI is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = GoogleIssuer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	p := &GoogleProvider{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		timeout:    cfg.Timeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	discoveryCtx, cancel := p.callContext(ctx)
	defer cancel()

	provider, err := oidc.NewProvider(discoveryCtx, cfg.Issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "discover OIDC provider %s", cfg.Issuer)
	}

	var discovered struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&discovered); err != nil {
		return nil, errors.Wrap(err, "decode discovery document")
	}
	p.revocationURL = firstNonEmpty(cfg.RevocationURL, discovered.RevocationEndpoint, DefaultGoogleRevocationURL)

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	p.oauth2Config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint:     endpoint,
		Scopes:       cfg.Scopes,
	}
	p.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return p, nil
}

// callContext bounds a provider call and routes it through our HTTP client.
// oidc.ClientContext also sets the oauth2.HTTPClient key.
func (p *GoogleProvider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(oidc.ClientContext(ctx, p.httpClient), p.timeout)
}

func (p *GoogleProvider) AuthorizationURL(state, codeChallenge string) string {
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", codeChallengeMethodS256),
	)
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Tokens, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	tok, err := p.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenExchange, err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      rawIDToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

func (p *GoogleProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*users.User, error) {
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", apperrors.ErrIDTokenVerification)
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIDTokenVerification, err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %w", apperrors.ErrIDTokenVerification, err)
	}

	return &users.User{
		ID:            idToken.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func (p *GoogleProvider) RefreshTokens(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrNoRefreshToken
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	tok, err := p.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenRefresh, err)
	}

	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

// RevokeToken posts the token to the revocation endpoint (RFC 7009 style).
func (p *GoogleProvider) RevokeToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrTokenRevocation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrTokenRevocation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%w: status %d: %s", apperrors.ErrTokenRevocation, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// RevocationURL reports the endpoint RevokeToken posts to.
func (p *GoogleProvider) RevocationURL() string {
	return p.revocationURL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
