package server

import "net/http"

func (s *Server) initRoutes() {
	// Browser flow
	s.RegisterRouteHandler("GET "+RouteAuthGoogle, ChainMiddleware(s.GoogleLoginHandler(), s.BrowserMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteAuthGoogleCallback, ChainMiddleware(s.GoogleCallbackHandler(), s.BrowserMiddleware()...))

	// Storefront API
	s.RegisterRouteHandler("GET "+RouteAuthUser, ChainMiddleware(s.UserHandler(), s.APIMiddleware(s.SessionMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAuthCompleteProfile, ChainMiddleware(s.CompleteProfileHandler(), s.APIMiddleware(s.SessionMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware(s.SessionMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.SessionMiddleware)...))

	// CorsMiddleware answers preflights itself
	s.RegisterRouteHandler("OPTIONS "+RouteAuthPreflight, ChainMiddleware(http.NotFound, s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteHealth, ChainMiddleware(http.NotFound, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware(s.SessionMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteMetrics, ChainMiddleware(s.metrics.Handler().ServeHTTP, s.BaseMiddleware()...))
}
