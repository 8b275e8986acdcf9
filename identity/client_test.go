package identity_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nawehub/session-gateway/identity"
	"github.com/nawehub/session-gateway/identity/identitytest"
	apperrors "github.com/nawehub/session-gateway/internal/errors"
	"github.com/nawehub/session-gateway/users"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ama@example.com"
	testPassword = "Passw0rd!"
)

func setupBackend(t *testing.T, approved bool) *identitytest.Backend {
	t.Helper()
	backend := identitytest.NewBackend(t)
	backend.AddAccount(testEmail, identitytest.Account{
		Password: testPassword,
		Profile: users.UserProfile{
			ID:        "user-1",
			Email:     testEmail,
			FirstName: "Ama",
			LastName:  "Mensah",
			Approved:  approved,
			Role: &users.Role{
				ID:          "role-1",
				Name:        "business_owner",
				Permissions: []users.Permission{{ID: "p1", Name: "funding:apply"}},
			},
		},
	})
	return backend
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success maps user and tokens", func(t *testing.T) {
		backend := setupBackend(t, true)
		client := identity.NewClient(backend.Config())

		resp, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
		require.Equal(t, int64(900), resp.ExpiresIn)
		require.Equal(t, "user-1", resp.User.ID)
		require.True(t, resp.User.Approved)
		require.Equal(t, "business_owner", resp.User.Role.Name)
		require.Len(t, resp.User.Role.Permissions, 1)
	})

	t.Run("approved false is kept false", func(t *testing.T) {
		backend := setupBackend(t, false)
		client := identity.NewClient(backend.Config())

		resp, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
		require.False(t, resp.User.Approved)
	})

	t.Run("wrong password", func(t *testing.T) {
		backend := setupBackend(t, true)
		client := identity.NewClient(backend.Config())

		resp, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: "nope"})
		require.Nil(t, resp)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("empty credentials never reach the backend", func(t *testing.T) {
		backend := setupBackend(t, true)
		client := identity.NewClient(backend.Config())

		_, err := client.Login(ctx, identity.Credentials{Email: testEmail})
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, 0, backend.LoginCalls())
	})

	t.Run("500 with unparsable body", func(t *testing.T) {
		backend := setupBackend(t, true)
		backend.LoginHandler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("<html>upstream exploded"))
		}
		client := identity.NewClient(backend.Config())

		resp, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.Nil(t, resp)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("2xx without access token", func(t *testing.T) {
		backend := setupBackend(t, true)
		backend.LoginHandler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"user":{"id":"user-1","email":"ama@example.com"}}`))
		}
		client := identity.NewClient(backend.Config())

		resp, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.Nil(t, resp)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("2xx with garbage body", func(t *testing.T) {
		backend := setupBackend(t, true)
		backend.LoginHandler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}
		client := identity.NewClient(backend.Config())

		resp, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.Nil(t, resp)
		require.ErrorIs(t, err, apperrors.ErrMalformedResponse)
	})

	t.Run("network failure", func(t *testing.T) {
		backend := setupBackend(t, true)
		cfg := backend.Config()
		backend.Server.Close()
		client := identity.NewClient(cfg)

		resp, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.Nil(t, resp)
		require.ErrorIs(t, err, apperrors.ErrNetworkFailure)
	})
}

func TestClient_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates the pair", func(t *testing.T) {
		backend := setupBackend(t, true)
		client := identity.NewClient(backend.Config())
		refreshToken := backend.IssueRefreshToken(testEmail)

		pair, err := client.Refresh(ctx, refreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEqual(t, refreshToken, pair.RefreshToken)

		_, err = client.Refresh(ctx, refreshToken)
		require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	})

	t.Run("empty refresh token", func(t *testing.T) {
		backend := setupBackend(t, true)
		client := identity.NewClient(backend.Config())

		_, err := client.Refresh(ctx, "")
		require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
		require.Equal(t, 0, backend.RefreshCalls())
	})

	t.Run("missing access token", func(t *testing.T) {
		backend := setupBackend(t, true)
		backend.RefreshHandler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"refreshToken":"r2","expiresIn":60}`))
		}
		client := identity.NewClient(backend.Config())

		_, err := client.Refresh(ctx, "r1")
		require.ErrorIs(t, err, apperrors.ErrMalformedResponse)
	})

	t.Run("timeout is a network failure", func(t *testing.T) {
		backend := setupBackend(t, true)
		backend.RefreshDelay = 200 * time.Millisecond
		cfg := backend.Config()
		cfg.Timeout = 20 * time.Millisecond
		client := identity.NewClient(cfg)

		_, err := client.Refresh(ctx, backend.IssueRefreshToken(testEmail))
		require.ErrorIs(t, err, apperrors.ErrNetworkFailure)
	})
}

func TestClient_WithVerifier(t *testing.T) {
	ctx := context.Background()
	backend := setupBackend(t, true)
	cfg := backend.Config()
	verifier := identity.NewJWKSVerifier(ctx, backend.Server.URL+identitytest.JWKSPath)

	t.Run("tokens signed by the backend pass", func(t *testing.T) {
		client := identity.NewClient(cfg, identity.WithVerifier(verifier))
		_, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
	})

	t.Run("tokens signed by another key fail", func(t *testing.T) {
		rogue, err := identitytest.GenerateRSAKeyPair("test-key-1")
		require.NoError(t, err)
		forged, err := rogue.Sign(jwt.MapClaims{"sub": testEmail, "exp": time.Now().Add(time.Hour).Unix()})
		require.NoError(t, err)

		backend.LoginHandler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"accessToken":"` + forged + `","user":{"id":"user-1","email":"ama@example.com"}}`))
		}
		defer func() { backend.LoginHandler = nil }()

		client := identity.NewClient(cfg, identity.WithVerifier(verifier))
		resp, err := client.Login(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.Nil(t, resp)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})
}

func TestTokenPair_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expiresIn wins", func(t *testing.T) {
		pair := identity.TokenPair{AccessToken: "opaque", ExpiresIn: 120}
		require.Equal(t, now.Add(2*time.Minute), pair.Expiry(now, time.Hour))
	})

	t.Run("falls back to exp claim", func(t *testing.T) {
		keys, err := identitytest.GenerateRSAKeyPair("k")
		require.NoError(t, err)
		exp := now.Add(42 * time.Minute)
		raw, err := keys.Sign(jwt.MapClaims{"exp": exp.Unix()})
		require.NoError(t, err)

		pair := identity.TokenPair{AccessToken: raw}
		require.True(t, exp.Equal(pair.Expiry(now, time.Hour)))
	})

	t.Run("falls back to default", func(t *testing.T) {
		pair := identity.TokenPair{AccessToken: "opaque"}
		require.Equal(t, now.Add(time.Hour), pair.Expiry(now, time.Hour))
	})
}
