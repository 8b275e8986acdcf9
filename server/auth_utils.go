package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nawehub/session-gateway/sessions"
)

// setSessionCookie encodes sess into the session cookie, replacing any value already
// set on this response.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *sessions.Session) error {
	value, err := s.codec.Encode(sess)
	if err != nil {
		return fmt.Errorf("[server setSessionCookie] %w", err)
	}
	s.writeSessionCookie(w, r, value, int(s.codec.MaxAge().Seconds()))
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	s.writeSessionCookie(w, r, "", -1)
}

func (s *Server) writeSessionCookie(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	name := s.config.GetSessionCookieName()

	// Only the last cookie written for this request counts
	header := w.Header()
	var kept []string
	for _, c := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(c, name+"=") {
			kept = append(kept, c)
		}
	}
	header.Del("Set-Cookie")
	for _, c := range kept {
		header.Add("Set-Cookie", c)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// safeCallbackURL accepts only same-site relative paths
func safeCallbackURL(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	return raw
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	fullPath := path + "?" + QueryError + "=" + url.QueryEscape(errorMsg)

	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", fullPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, fullPath, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
