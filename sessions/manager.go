package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/nawehub/session-gateway/identity"
	"github.com/nawehub/session-gateway/internal/config"
	"github.com/nawehub/session-gateway/token/refresh"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Backend is the identity backend as seen by the session lifecycle
type Backend interface {
	Login(ctx context.Context, creds identity.Credentials) (*identity.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.TokenPair, error)
}

// Manager owns the session lifecycle: credential exchange, lazy refresh and the
// per-request sync that replaces an auth library's session callback.
type Manager struct {
	backend     Backend
	coordinator *refresh.Coordinator
	config      config.IdentityConfig
}

// NewManager creates a session manager. A nil coordinator gets a process-local one.
func NewManager(backend Backend, coordinator *refresh.Coordinator, cfg config.IdentityConfig) *Manager {
	if coordinator == nil {
		coordinator = refresh.NewCoordinator(nil)
	}
	return &Manager{
		backend:     backend,
		coordinator: coordinator,
		config:      cfg,
	}
}

// SignIn exchanges credentials for a new session. On any failure it returns a nil
// session and an error wrapping ErrInvalidCredentials, ErrNetworkFailure or
// ErrMalformedResponse.
func (m *Manager) SignIn(ctx context.Context, creds identity.Credentials) (*Session, error) {
	resp, err := m.backend.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("[sessions SignIn] %w", err)
	}
	return m.FromLogin(resp), nil
}

// FromLogin builds a session from a login payload. The user snapshot is taken verbatim.
func (m *Manager) FromLogin(resp *identity.LoginResponse) *Session {
	if resp == nil {
		return nil
	}
	return &Session{
		AccessToken:       resp.AccessToken,
		RefreshToken:      resp.RefreshToken,
		AccessTokenExpiry: resp.TokenPair.Expiry(NowTimeFunc(), m.config.GetDefaultAccessTokenExpiry()),
		User:              resp.User,
	}
}

// Refresh returns s itself while the access token is valid, and otherwise a new
// session with a rotated pair. The user snapshot is always carried over untouched.
// On failure the returned copy keeps the stale tokens and is marked RefreshFailed.
// Sessions already marked RefreshFailed are returned as is and never retried.
func (m *Manager) Refresh(ctx context.Context, s *Session) *Session {
	if s == nil || s.Error != "" {
		return s
	}
	if !s.Expired(NowTimeFunc()) {
		return s
	}

	result, err := m.coordinator.Do(ctx, s.RefreshToken, func(ctx context.Context) (*refresh.Result, error) {
		pair, err := m.backend.Refresh(ctx, s.RefreshToken)
		if err != nil {
			return nil, err
		}
		refreshToken := pair.RefreshToken
		if refreshToken == "" {
			refreshToken = s.RefreshToken
		}
		now := NowTimeFunc()
		return &refresh.Result{
			AccessToken:  pair.AccessToken,
			RefreshToken: refreshToken,
			Expiry:       pair.Expiry(now, m.config.GetDefaultAccessTokenExpiry()),
			Iat:          now,
		}, nil
	})

	next := *s
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID(s)).Msg("access token refresh failed")
		next.Error = RefreshFailed
		return &next
	}

	next.AccessToken = result.AccessToken
	next.RefreshToken = result.RefreshToken
	next.AccessTokenExpiry = result.Expiry
	next.Error = ""
	return &next
}

// Sync computes the session for the current request: a fresh login payload wins,
// otherwise the prior session is lazily refreshed.
func (m *Manager) Sync(ctx context.Context, prior *Session, fresh *identity.LoginResponse) *Session {
	if fresh != nil {
		return m.FromLogin(fresh)
	}
	return m.Refresh(ctx, prior)
}

func userID(s *Session) string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}
