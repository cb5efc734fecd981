package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/marketplace-auth-server/auth"
	"github.com/jrsteele09/marketplace-auth-server/internal/config"
	"github.com/jrsteele09/marketplace-auth-server/internal/metrics"
	"github.com/jrsteele09/marketplace-auth-server/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const devEnv = "DEV"

type Server struct {
	env     string // Environment (e.g., "DEV", "production")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	auth    *auth.AuthorizationService
	cookies *token.SessionCookieCodec
	metrics *metrics.Metrics
	limiter *ClientRateLimiter // nil when rate limiting is disabled
	nowTime func() time.Time
}

type Option func(*Server)

// WithNowTime sets the clock used for /health timestamps (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(cfg config.Config, authService *auth.AuthorizationService, cookies *token.SessionCookieCodec, m *metrics.Metrics, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if authService == nil {
		return nil, errors.New("[Server New] authorization service is required")
	}
	if cookies == nil {
		return nil, errors.New("[Server New] session cookie codec is required")
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		auth:    authService,
		cookies: cookies,
		metrics: m,
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.GetEnableRateLimiting() {
		s.limiter = NewClientRateLimiter(rate.Limit(cfg.GetAuthRateLimit()), cfg.GetAuthRateBurst(), DefaultLimiterIdleTTL, s.nowTime)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered route patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != devEnv {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
