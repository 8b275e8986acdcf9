package sessions

import (
	"time"

	"github.com/nawehub/session-gateway/users"
	"golang.org/x/oauth2"
)

// ErrorCode marks a session that can no longer be used
type ErrorCode string

const (
	// RefreshFailed is set when an automatic refresh failed. The session is terminal:
	// consumers must force sign-out, and only a fresh login recovers.
	RefreshFailed ErrorCode = "RefreshFailed"
)

// Session is the client-held authenticated state: the backend token pair, its expiry
// and the user snapshot taken at login.
type Session struct {
	AccessToken       string
	RefreshToken      string
	AccessTokenExpiry time.Time
	User              *users.UserProfile
	Error             ErrorCode
}

// IsAuthenticated is false for nil sessions and for sessions carrying an error
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Error == "" && s.AccessToken != ""
}

// IsApproved reports the approval flag of an authenticated session
func (s *Session) IsApproved() bool {
	return s.IsAuthenticated() && s.User.IsApproved()
}

// Expired reports whether the access token must be treated as invalid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.AccessTokenExpiry)
}

// OAuth2Token exposes the pair as an oauth2.Token for authenticated backend calls
func (s *Session) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.AccessTokenExpiry,
	}
}
