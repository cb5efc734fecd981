package config

import "time"

type SecurityConfig interface {
	GetSessionSecret() string
	GetSessionCookieName() string
	GetMaxSessionAge() time.Duration
	GetSecureCookies() bool
	GetEnableRateLimiting() bool
	GetAuthRateLimit() float64
	GetAuthRateBurst() int
	GetTrustProxyHeaders() bool
}

type Security struct {
	SessionSecret      string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionCookieName  string        `env:"SESSION_COOKIE_NAME" envDefault:"marketplace_session"`
	SessionMaxAge      time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	ForceSecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`
	EnableRateLimiting bool          `env:"ENABLE_RATE_LIMITING" envDefault:"true"`
	AuthRateLimit      float64       `env:"AUTH_RATE_LIMIT" envDefault:"10"`
	AuthRateBurst      int           `env:"AUTH_RATE_BURST" envDefault:"20"`
	TrustProxyHeaders  bool          `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

var _ SecurityConfig = Security{}

func (s Security) GetSessionSecret() string {
	return s.SessionSecret
}

func (s Security) GetSessionCookieName() string {
	return s.SessionCookieName
}

func (s Security) GetMaxSessionAge() time.Duration {
	return s.SessionMaxAge
}

// GetSecureCookies is overridden by mainConfig so production always gets Secure cookies.
func (s Security) GetSecureCookies() bool {
	return s.ForceSecureCookies
}

func (s Security) GetEnableRateLimiting() bool {
	return s.EnableRateLimiting
}

// GetAuthRateLimit is the sustained number of authorization requests per second.
func (s Security) GetAuthRateLimit() float64 {
	return s.AuthRateLimit
}

func (s Security) GetAuthRateBurst() int {
	return s.AuthRateBurst
}

// GetTrustProxyHeaders enables X-Forwarded-For for client identification.
// Only safe behind a proxy that sets the header itself.
func (s Security) GetTrustProxyHeaders() bool {
	return s.TrustProxyHeaders
}

func (c mainConfig) GetSecureCookies() bool {
	return c.IsProduction() || c.Security.GetSecureCookies()
}
