package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nawehub/session-gateway/sessions"
	"github.com/nawehub/session-gateway/users"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the request's resolved *sessions.Session
	ContextKeySession ContextKey = "session"
	// ContextKeyRequestID stores the request ID assigned by LoggingMiddleware
	ContextKeyRequestID ContextKey = "request_id"
)

// SessionFromContext returns the session resolved for this request, or nil
func SessionFromContext(ctx context.Context) *sessions.Session {
	s, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return s
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// SessionMiddleware decodes the session cookie once per request, lazily refreshes the
// access token and stores the result in the request context. A changed session is
// written back to the cookie before the handler runs.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.config.GetSessionCookieName())
		if err != nil || cookie.Value == "" {
			next(w, r)
			return
		}

		prior, err := s.codec.Decode(cookie.Value)
		if err != nil {
			log.Debug().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("Discarding session cookie")
			s.clearSessionCookie(w, r)
			next(w, r)
			return
		}

		current := s.sessions.Sync(r.Context(), prior, nil)
		if current != prior {
			if err := s.setSessionCookie(w, r, current); err != nil {
				log.Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("Failed to persist refreshed session")
			}
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeySession, current)))
	}
}

// ApprovalGateMiddleware keeps unapproved users out of the protected area and sends
// approved users away from the pending-approval page.
func (s *Server) ApprovalGateMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := s.guard.Evaluate(r.URL.Path, SessionFromContext(r.Context()))
		if decision.Redirect {
			log.Debug().
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("path", r.URL.Path).
				Stringer("state", decision.State).
				Str("location", decision.Location).
				Msg("Approval gate redirect")
			http.Redirect(w, r, decision.Location, http.StatusTemporaryRedirect)
			return
		}
		next(w, r)
	}
}

// RequireSession is the page guard. Unauthenticated users go to the login page with a
// callback to the requested page. A session whose refresh failed is signed out.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			loginPath := s.config.GetRoutes().LoginPath

			if session != nil && session.Error == sessions.RefreshFailed {
				s.clearSessionCookie(w, r)
				redirectWithError(w, r, loginPath, ErrorSessionExpired)
				return
			}

			if !session.IsAuthenticated() {
				redirectSuccess(w, r, loginPath+"?"+QueryCallbackURL+"="+url.QueryEscape(r.URL.RequestURI()))
				return
			}

			next(w, r)
		}
	}
}

// RequireAPISession is the API flavour of RequireSession: it answers 401 instead of redirecting
func (s *Server) RequireAPISession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())

			if session != nil && session.Error == sessions.RefreshFailed {
				s.clearSessionCookie(w, r)
				writeJSONError(w, ErrorSessionExpired, "Session expired, please sign in again", http.StatusUnauthorized)
				return
			}

			if !session.IsAuthenticated() {
				writeJSONError(w, "unauthorized", "Authentication required", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

// RequireAccess rejects sessions that do not satisfy req.
// Should be chained after RequireSession or RequireAPISession.
func (s *Server) RequireAccess(req users.Requirement) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil || !users.Allowed(session.User, req) {
				writeJSONError(w, "forbidden", "Insufficient permissions", http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
}
