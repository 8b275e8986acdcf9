// Package routeguard decides, per request path, whether the approval gate lets a
// request through or redirects it.
package routeguard

import (
	"strings"

	"github.com/nawehub/session-gateway/internal/config"
	"github.com/nawehub/session-gateway/sessions"
)

// State classifies a request for the approval gate
type State int

const (
	Public State = iota
	Unauthenticated
	AuthenticatedUnapproved
	AuthenticatedApproved
)

func (s State) String() string {
	switch s {
	case Public:
		return "public"
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedUnapproved:
		return "authenticated_unapproved"
	case AuthenticatedApproved:
		return "authenticated_approved"
	}
	return "unknown"
}

// Decision is the outcome of evaluating one request
type Decision struct {
	State    State
	Redirect bool
	Location string // set when Redirect is true, never carries a query string
}

// Guard evaluates paths against the configured allow-list and approval routes
type Guard struct {
	routes config.Routes
}

func New(routes config.Routes) *Guard {
	return &Guard{routes: routes}
}

// Evaluate decides what happens to a request for path carrying session s.
// A nil session or one marked with an error is unauthenticated. Unauthenticated
// requests always proceed; sending them to the login page is the page guard's job.
func (g *Guard) Evaluate(path string, s *sessions.Session) Decision {
	if g.IsPublic(path) {
		return Decision{State: Public}
	}

	if !s.IsAuthenticated() {
		return Decision{State: Unauthenticated}
	}

	if !s.User.IsApproved() {
		if g.IsProtected(path) {
			return Decision{State: AuthenticatedUnapproved, Redirect: true, Location: g.routes.PendingApprovalPath}
		}
		return Decision{State: AuthenticatedUnapproved}
	}

	if path == g.routes.PendingApprovalPath {
		return Decision{State: AuthenticatedApproved, Redirect: true, Location: g.routes.AppRootPath}
	}
	return Decision{State: AuthenticatedApproved}
}

// IsPublic reports whether path bypasses the gate
func (g *Guard) IsPublic(path string) bool {
	for _, p := range g.routes.PublicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range g.routes.PublicPrefixes {
		if underPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsProtected reports whether path lies in the approved-only application area
func (g *Guard) IsProtected(path string) bool {
	return underPrefix(path, g.routes.ProtectedPrefix)
}

func (g *Guard) Routes() config.Routes {
	return g.routes
}

// underPrefix matches prefix itself and anything below it, on segment boundaries
func underPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
