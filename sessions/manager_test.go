package sessions_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nawehub/session-gateway/identity"
	"github.com/nawehub/session-gateway/identity/identitytest"
	apperrors "github.com/nawehub/session-gateway/internal/errors"
	"github.com/nawehub/session-gateway/sessions"
	"github.com/nawehub/session-gateway/users"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "kofi@example.com"
	testPassword = "Passw0rd!"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend records calls and returns canned answers
type fakeBackend struct {
	loginResp    *identity.LoginResponse
	loginErr     error
	refreshResp  *identity.TokenPair
	refreshErr   error
	refreshDelay time.Duration
	refreshCalls atomic.Int32
}

func (f *fakeBackend) Login(ctx context.Context, creds identity.Credentials) (*identity.LoginResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeBackend) Refresh(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	f.refreshCalls.Add(1)
	time.Sleep(f.refreshDelay)
	return f.refreshResp, f.refreshErr
}

func setClock(t *testing.T, now time.Time) {
	t.Helper()
	sessions.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { sessions.NowTimeFunc = time.Now })
}

func testUser(approved bool) *users.UserProfile {
	return &users.UserProfile{
		ID:       "user-7",
		Email:    testEmail,
		Approved: approved,
		Role:     &users.Role{Name: "business_owner", Permissions: []users.Permission{{Name: "funding:apply"}}},
	}
}

func liveSession(approved bool) *sessions.Session {
	return &sessions.Session{
		AccessToken:       "access-old",
		RefreshToken:      "refresh-old",
		AccessTokenExpiry: testNow.Add(5 * time.Minute),
		User:              testUser(approved),
	}
}

func expiredSession(approved bool) *sessions.Session {
	s := liveSession(approved)
	s.AccessTokenExpiry = testNow.Add(-time.Second)
	return s
}

func TestManager_SignIn(t *testing.T) {
	ctx := context.Background()
	setClock(t, testNow)

	t.Run("builds session from login payload", func(t *testing.T) {
		backend := &fakeBackend{loginResp: &identity.LoginResponse{
			TokenPair: identity.TokenPair{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 900},
			User:      testUser(false),
		}}
		m := sessions.NewManager(backend, nil, identitytest.Config{})

		s, err := m.SignIn(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
		require.Equal(t, "a1", s.AccessToken)
		require.Equal(t, "r1", s.RefreshToken)
		require.Equal(t, testNow.Add(15*time.Minute), s.AccessTokenExpiry)
		require.False(t, s.User.Approved)
		require.True(t, s.IsAuthenticated())
		require.False(t, s.IsApproved())
	})

	t.Run("failure yields no session", func(t *testing.T) {
		backend := &fakeBackend{loginErr: apperrors.ErrInvalidCredentials}
		m := sessions.NewManager(backend, nil, identitytest.Config{})

		s, err := m.SignIn(ctx, identity.Credentials{Email: testEmail, Password: "wrong"})
		require.Nil(t, s)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})
}

func TestManager_SignIn_AgainstBackend(t *testing.T) {
	ctx := context.Background()
	backend := identitytest.NewBackend(t)
	backend.AddAccount(testEmail, identitytest.Account{Password: testPassword, Profile: *testUser(true)})
	m := sessions.NewManager(identity.NewClient(backend.Config()), nil, backend.Config())

	t.Run("success", func(t *testing.T) {
		s, err := m.SignIn(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
		require.True(t, s.IsApproved())
		require.True(t, s.AccessTokenExpiry.After(time.Now()))
	})

	t.Run("500 with unparsable body resolves to no session", func(t *testing.T) {
		broken := identitytest.NewBackend(t)
		broken.LoginHandler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("}{"))
		}
		m := sessions.NewManager(identity.NewClient(broken.Config()), nil, broken.Config())

		var s *sessions.Session
		var err error
		require.NotPanics(t, func() {
			s, err = m.SignIn(ctx, identity.Credentials{Email: testEmail, Password: testPassword})
		})
		require.Nil(t, s)
		require.Error(t, err)
	})
}

func TestManager_Refresh(t *testing.T) {
	ctx := context.Background()
	setClock(t, testNow)

	t.Run("fast path returns the input without a network call", func(t *testing.T) {
		backend := &fakeBackend{refreshErr: errors.New("must not be called")}
		m := sessions.NewManager(backend, nil, identitytest.Config{})
		in := liveSession(true)
		snapshot := *in

		out := m.Refresh(ctx, in)
		require.Same(t, in, out)
		require.Equal(t, snapshot, *out)
		require.Equal(t, int32(0), backend.refreshCalls.Load())
	})

	t.Run("at expiry the token is refreshed", func(t *testing.T) {
		backend := &fakeBackend{refreshResp: &identity.TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 600}}
		m := sessions.NewManager(backend, nil, identitytest.Config{})
		in := liveSession(true)
		in.AccessTokenExpiry = testNow

		out := m.Refresh(ctx, in)
		require.Equal(t, "a2", out.AccessToken)
		require.Equal(t, int32(1), backend.refreshCalls.Load())
	})

	t.Run("success replaces tokens and keeps the user snapshot", func(t *testing.T) {
		for _, approved := range []bool{true, false} {
			backend := &fakeBackend{refreshResp: &identity.TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 600}}
			m := sessions.NewManager(backend, nil, identitytest.Config{})
			in := expiredSession(approved)

			out := m.Refresh(ctx, in)
			require.NotSame(t, in, out)
			require.Equal(t, "a2", out.AccessToken)
			require.Equal(t, "r2", out.RefreshToken)
			require.Equal(t, testNow.Add(10*time.Minute), out.AccessTokenExpiry)
			require.Empty(t, out.Error)
			require.Same(t, in.User, out.User)
			require.Equal(t, approved, out.User.Approved)

			// The input is not mutated
			require.Equal(t, "access-old", in.AccessToken)
		}
	})

	t.Run("omitted refresh token keeps the old one", func(t *testing.T) {
		backend := &fakeBackend{refreshResp: &identity.TokenPair{AccessToken: "a2", ExpiresIn: 600}}
		m := sessions.NewManager(backend, nil, identitytest.Config{})

		out := m.Refresh(ctx, expiredSession(true))
		require.Equal(t, "refresh-old", out.RefreshToken)
	})

	t.Run("failure keeps stale data and marks the session", func(t *testing.T) {
		backend := &fakeBackend{refreshErr: apperrors.ErrRefreshFailed}
		m := sessions.NewManager(backend, nil, identitytest.Config{})
		in := expiredSession(true)

		out := m.Refresh(ctx, in)
		require.Equal(t, sessions.RefreshFailed, out.Error)
		require.Equal(t, in.AccessToken, out.AccessToken)
		require.Equal(t, in.RefreshToken, out.RefreshToken)
		require.Equal(t, in.AccessTokenExpiry, out.AccessTokenExpiry)
		require.Same(t, in.User, out.User)
		require.False(t, out.IsAuthenticated())
		require.Empty(t, in.Error)
	})

	t.Run("failed sessions are never retried", func(t *testing.T) {
		backend := &fakeBackend{refreshResp: &identity.TokenPair{AccessToken: "a2", ExpiresIn: 600}}
		m := sessions.NewManager(backend, nil, identitytest.Config{})
		in := expiredSession(true)
		in.Error = sessions.RefreshFailed

		out := m.Refresh(ctx, in)
		require.Same(t, in, out)
		require.Equal(t, int32(0), backend.refreshCalls.Load())
	})

	t.Run("nil session", func(t *testing.T) {
		m := sessions.NewManager(&fakeBackend{}, nil, identitytest.Config{})
		require.Nil(t, m.Refresh(ctx, nil))
	})

	t.Run("concurrent refreshes of one session make one backend call", func(t *testing.T) {
		backend := &fakeBackend{
			refreshResp:  &identity.TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 600},
			refreshDelay: 50 * time.Millisecond,
		}
		m := sessions.NewManager(backend, nil, identitytest.Config{})

		results := make([]*sessions.Session, 8)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = m.Refresh(ctx, expiredSession(true))
			}(i)
		}
		wg.Wait()

		require.Equal(t, int32(1), backend.refreshCalls.Load())
		for _, out := range results {
			require.Equal(t, "a2", out.AccessToken)
		}
	})
}

func TestManager_Refresh_AgainstBackend(t *testing.T) {
	ctx := context.Background()
	backend := identitytest.NewBackend(t)
	m := sessions.NewManager(identity.NewClient(backend.Config()), nil, backend.Config())

	in := &sessions.Session{
		AccessToken:       "stale",
		RefreshToken:      backend.IssueRefreshToken(testEmail),
		AccessTokenExpiry: time.Now().Add(-time.Minute),
		User:              testUser(true),
	}

	first := m.Refresh(ctx, in)
	require.True(t, first.IsAuthenticated())
	require.NotEqual(t, "stale", first.AccessToken)

	// A second request still carrying the consumed token reuses the rotated pair
	second := m.Refresh(ctx, in)
	require.True(t, second.IsAuthenticated())
	require.Equal(t, first.AccessToken, second.AccessToken)
	require.Equal(t, 1, backend.RefreshCalls())
}

func TestManager_Sync(t *testing.T) {
	ctx := context.Background()
	setClock(t, testNow)
	backend := &fakeBackend{refreshResp: &identity.TokenPair{AccessToken: "a2", ExpiresIn: 600}}
	m := sessions.NewManager(backend, nil, identitytest.Config{})

	t.Run("fresh login replaces the snapshot", func(t *testing.T) {
		fresh := &identity.LoginResponse{
			TokenPair: identity.TokenPair{AccessToken: "new", RefreshToken: "r", ExpiresIn: 60},
			User:      testUser(true),
		}
		out := m.Sync(ctx, liveSession(false), fresh)
		require.Equal(t, "new", out.AccessToken)
		require.True(t, out.User.Approved)
	})

	t.Run("no prior and no login", func(t *testing.T) {
		require.Nil(t, m.Sync(ctx, nil, nil))
	})

	t.Run("prior is refreshed lazily", func(t *testing.T) {
		live := liveSession(true)
		require.Same(t, live, m.Sync(ctx, live, nil))
		require.Equal(t, "a2", m.Sync(ctx, expiredSession(true), nil).AccessToken)
	})
}

func TestSession_OAuth2Token(t *testing.T) {
	s := liveSession(true)
	tok := s.OAuth2Token()
	require.Equal(t, "access-old", tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, s.AccessTokenExpiry, tok.Expiry)

	var nilSession *sessions.Session
	require.False(t, nilSession.IsAuthenticated())
	require.False(t, nilSession.IsApproved())
}
