package server

import (
	"strings"

	"github.com/nawehub/session-gateway/users"
)

func (s *Server) initRoutes() {
	routes := s.config.GetRoutes()
	protected := strings.TrimSuffix(routes.ProtectedPrefix, "/")

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// AUTH API
	s.RegisterRouteFunc("POST "+RouteAuthLogin, s.LoginHandler())
	s.RegisterRouteFunc("GET "+RouteAuthLogout, s.LogoutHandler())
	s.RegisterRouteFunc("POST "+RouteAuthLogout, s.LogoutHandler())
	s.RegisterRouteFunc("GET "+RouteAuthSession, s.SessionHandler())
	s.RegisterRouteFunc("POST "+RouteAuthAuthorize, s.AuthorizeHandler())

	// Backend pass-through, any method
	s.RegisterRouteHandler(RouteBackend, ChainMiddleware(s.BackendProxyHandler(), s.RequireAPISession()))

	// Application pages
	s.RegisterRouteHandler("GET "+protected, ChainMiddleware(s.DashboardHandler(), s.RequireSession()))
	s.RegisterRouteHandler("GET "+protected+"/{path...}", ChainMiddleware(s.DashboardHandler(), s.RequireSession()))
	s.RegisterRouteHandler("GET "+protected+RouteAdminSuffix+"/{path...}",
		ChainMiddleware(s.DashboardHandler(), s.RequireSession(), s.RequireAccess(users.Requirement{Role: users.AdminRoleName})))
	s.RegisterRouteHandler("GET "+routes.PendingApprovalPath, ChainMiddleware(s.PendingApprovalHandler(), s.RequireSession()))
}
