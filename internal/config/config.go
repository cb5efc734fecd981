package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const minSessionSecretLength = 32

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsProduction() bool
	GetLogLevel() string
	GetShutdownTimeout() time.Duration
}

type CorsConfig interface {
	GetFrontendURL() string
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Store
}

// Load reads an optional .env file and then parses the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment. Any missing required
// variable is reported in the returned error.
func Parse() (Config, error) {
	var cfg mainConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c mainConfig) validate() error {
	var errs []error
	if len(c.SessionSecret) < minSessionSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength))
	}
	if u, err := url.Parse(c.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("FRONTEND_URL must be an absolute URL, got %q", c.FrontendURL))
	}
	if u, err := url.Parse(c.RedirectURI); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("REDIRECT_URI must be an absolute URL, got %q", c.RedirectURI))
	}
	switch c.Backend {
	case StoreBackendMemory, StoreBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendMemory, StoreBackendRedis, c.Backend))
	}
	if c.Backend == StoreBackendRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis"))
	}
	return errors.Join(errs...)
}
