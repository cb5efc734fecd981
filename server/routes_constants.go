package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Browser flow: full-page redirects to and from Google
	RouteAuthGoogle         = "/auth/google"
	RouteAuthGoogleCallback = "/auth/google/callback"

	// Storefront API: JSON, credentialed CORS
	RouteAuthUser            = "/auth/user"
	RouteAuthCompleteProfile = "/auth/complete-profile"
	RouteAuthRefresh         = "/auth/refresh"
	RouteAuthLogout          = "/auth/logout"
	RouteAuthPreflight       = "/auth/{path...}"

	// Operational
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
