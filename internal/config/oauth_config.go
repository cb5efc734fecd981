package config

import "time"

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetIssuer() string
	GetRevocationURL() string
	GetScopes() []string
	GetAuthPagePath() string
	GetPendingAuthTTL() time.Duration
	GetProviderTimeout() time.Duration
}

type OAuth struct {
	ClientID        string        `env:"GOOGLE_CLIENT_ID,required,notEmpty"`
	ClientSecret    string        `env:"GOOGLE_CLIENT_SECRET,required,notEmpty"`
	RedirectURI     string        `env:"REDIRECT_URI,required,notEmpty"`
	Issuer          string        `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
	RevocationURL   string        `env:"GOOGLE_REVOCATION_URL"`
	AuthPagePath    string        `env:"AUTH_PAGE_PATH" envDefault:"/auth"`
	PendingAuthTTL  time.Duration `env:"PENDING_AUTH_TTL" envDefault:"10m"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetRedirectURI() string {
	return o.RedirectURI
}

func (o OAuth) GetIssuer() string {
	return o.Issuer
}

// GetRevocationURL returns the configured revocation endpoint, or "" to use the
// one advertised by provider discovery.
func (o OAuth) GetRevocationURL() string {
	return o.RevocationURL
}

// openid is needed for the ID token; profile and email carry the identity claims.
func (OAuth) GetScopes() []string {
	return []string{"openid", "profile", "email"}
}

func (o OAuth) GetAuthPagePath() string {
	return o.AuthPagePath
}

func (o OAuth) GetPendingAuthTTL() time.Duration {
	return o.PendingAuthTTL
}

func (o OAuth) GetProviderTimeout() time.Duration {
	return o.ProviderTimeout
}
