package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth API
	RouteAuthLogin     = "/api/auth/login"
	RouteAuthLogout    = "/api/auth/logout"
	RouteAuthSession   = "/api/auth/session"
	RouteAuthAuthorize = "/api/auth/authorize"

	// Backend pass-through. Everything below the prefix is forwarded.
	RouteBackendPrefix = "/api/backend"
	RouteBackend       = RouteBackendPrefix + "/{path...}"

	// Admin area below the protected prefix (the prefix itself comes from config.Routes)
	RouteAdminSuffix = "/admin"

	RouteHealth = "/healthz"
)

// Query parameters used on login redirects
const (
	QueryCallbackURL = "callbackUrl"
	QueryError       = "error"

	ErrorSessionExpired = "SessionExpired"
	ErrorCredentials    = "CredentialsSignin"
)
