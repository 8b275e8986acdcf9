package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/nawehub/session-gateway/identity"
	apperrors "github.com/nawehub/session-gateway/internal/errors"
	"github.com/nawehub/session-gateway/sessions"
	"github.com/nawehub/session-gateway/users"
	"github.com/rs/zerolog/log"
)

const (
	maxRequestBody = 1 << 20 // 1 MiB

	// Shown for every login failure so responses never reveal which part was wrong
	loginFailedMessage = "Invalid email or password"
)

// SessionView is the client-facing shape of a session. Tokens are never exposed.
type SessionView struct {
	User     *users.UserProfile `json:"user"`
	Approved bool               `json:"approved"`
	Expires  time.Time          `json:"expires"`
	Error    sessions.ErrorCode `json:"error,omitempty"`
}

func newSessionView(s *sessions.Session) SessionView {
	return SessionView{
		User:     s.User,
		Approved: s.User.IsApproved(),
		Expires:  s.AccessTokenExpiry,
		Error:    s.Error,
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// LoginHandler exchanges credentials for a session cookie. JSON requests get JSON
// answers; form posts are redirected like the login page expects.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routes := s.config.GetRoutes()

		creds, isJSON, err := readCredentials(w, r)
		if err != nil {
			writeJSONError(w, "invalid_request", "Malformed login request", http.StatusBadRequest)
			return
		}

		session, err := s.sessions.SignIn(r.Context(), creds)
		if err != nil {
			logLoginFailure(r, err)
			if isJSON {
				writeJSONError(w, ErrorCredentials, loginFailedMessage, http.StatusUnauthorized)
				return
			}
			redirectWithError(w, r, routes.LoginPath, ErrorCredentials)
			return
		}

		if err := s.setSessionCookie(w, r, session); err != nil {
			log.Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("Failed to issue session cookie")
			writeJSONError(w, "internal_error", "Failed to create session", http.StatusInternalServerError)
			return
		}

		log.Info().
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("user_id", session.User.ID).
			Bool("approved", session.User.IsApproved()).
			Msg("User signed in")

		if isJSON {
			writeJSON(w, http.StatusOK, newSessionView(session))
			return
		}
		redirectSuccess(w, r, safeCallbackURL(r.FormValue(QueryCallbackURL), routes.AppRootPath))
	}
}

func readCredentials(w http.ResponseWriter, r *http.Request) (identity.Credentials, bool, error) {
	var creds identity.Credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil && !errors.Is(err, io.EOF) {
			return creds, true, err
		}
		return creds, true, nil
	}

	if err := r.ParseForm(); err != nil {
		return creds, false, err
	}
	creds.Email = r.PostFormValue("email")
	creds.Password = r.PostFormValue("password")
	return creds, false, nil
}

func logLoginFailure(r *http.Request, err error) {
	event := log.Info()
	if apperrors.Is(err, apperrors.ErrNetworkFailure) || apperrors.Is(err, apperrors.ErrMalformedResponse) {
		event = log.Warn()
	}
	event.Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("Login failed")
}

// LogoutHandler revokes the presented session token and clears the cookie
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(s.config.GetSessionCookieName()); err == nil && cookie.Value != "" {
			if err := s.codec.Revoke(cookie.Value); err != nil {
				log.Debug().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("Logout: session token not revocable")
			}
		}
		s.clearSessionCookie(w, r)
		redirectSuccess(w, r, s.config.GetRoutes().LoginPath)
	}
}

// SessionHandler returns the lazily refreshed session, or {} without one
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		session := SessionFromContext(r.Context())
		if session == nil {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(session))
	}
}

// AuthorizeHandler evaluates a users.Requirement against the current session
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.Requirement
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Malformed requirement", http.StatusBadRequest)
			return
		}

		session := SessionFromContext(r.Context())
		allowed := session.IsAuthenticated() && users.Allowed(session.User, req)
		writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
	}
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"app":     s.config.GetAppName(),
			"path":    r.URL.Path,
			"session": newSessionView(session),
		})
	}
}

func (s *Server) PendingApprovalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"app":     s.config.GetAppName(),
			"status":  "pending_approval",
			"message": "Your account is awaiting approval",
			"session": newSessionView(session),
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSONError writes an error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
