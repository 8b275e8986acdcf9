// Package identitytest provides an in-process fake of the identity backend.
package identitytest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nawehub/session-gateway/users"
)

const (
	LoginPath   = "/api/v1/auth/login"
	RefreshPath = "/api/v1/auth/refresh"
	JWKSPath    = "/.well-known/jwks.json"
)

// Account is a user the fake backend accepts
type Account struct {
	Password string
	Profile  users.UserProfile
}

// Backend serves login, refresh and JWKS endpoints. Refresh tokens rotate on use
// and a consumed refresh token is rejected with 401.
type Backend struct {
	Server *httptest.Server
	Keys   *KeyPair

	// AccessTokenTTL is reported as expiresIn. Zero omits expiresIn from responses.
	AccessTokenTTL time.Duration
	// LoginHandler and RefreshHandler, when set, replace the default behaviour
	LoginHandler   http.HandlerFunc
	RefreshHandler http.HandlerFunc
	// RefreshDelay is slept before answering a refresh
	RefreshDelay time.Duration

	mu            sync.Mutex
	accounts      map[string]Account
	refreshTokens map[string]string // refresh token -> email

	loginCalls   atomic.Int32
	refreshCalls atomic.Int32
}

// NewBackend starts a fake backend that is closed when the test ends
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	keys, err := GenerateRSAKeyPair("test-key-1")
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}

	b := &Backend{
		Keys:           keys,
		AccessTokenTTL: 15 * time.Minute,
		accounts:       make(map[string]Account),
		refreshTokens:  make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+LoginPath, func(w http.ResponseWriter, r *http.Request) {
		b.loginCalls.Add(1)
		if b.LoginHandler != nil {
			b.LoginHandler(w, r)
			return
		}
		b.login(w, r)
	})
	mux.HandleFunc("POST "+RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if b.RefreshDelay > 0 {
			time.Sleep(b.RefreshDelay)
		}
		if b.RefreshHandler != nil {
			b.RefreshHandler(w, r)
			return
		}
		b.refresh(w, r)
	})
	mux.HandleFunc("GET "+JWKSPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.Keys.JWKS())
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// AddAccount registers credentials the backend will accept
func (b *Backend) AddAccount(email string, account Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[email] = account
}

// Config returns identity configuration pointing at this backend
func (b *Backend) Config() Config {
	return Config{BaseURL: b.Server.URL}
}

func (b *Backend) LoginCalls() int {
	return int(b.loginCalls.Load())
}

func (b *Backend) RefreshCalls() int {
	return int(b.refreshCalls.Load())
}

// IssueRefreshToken mints a refresh token for email without a login call
func (b *Backend) IssueRefreshToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := randomToken()
	b.refreshTokens[token] = email
	return token
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	account, ok := b.accounts[creds.Email]
	b.mu.Unlock()
	if !ok || account.Password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
		return
	}

	body, err := b.tokenBody(creds.Email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	profile := account.Profile
	body["user"] = &profile
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	email, ok := b.refreshTokens[req.RefreshToken]
	delete(b.refreshTokens, req.RefreshToken)
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid refresh token"})
		return
	}

	body, err := b.tokenBody(email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) tokenBody(email string) (map[string]any, error) {
	now := time.Now()
	ttl := b.AccessTokenTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	accessToken, err := b.Keys.Sign(jwt.MapClaims{
		"sub":   email,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"accessToken":  accessToken,
		"refreshToken": b.IssueRefreshToken(email),
	}
	if b.AccessTokenTTL > 0 {
		body["expiresIn"] = int64(b.AccessTokenTTL / time.Second)
	}
	return body, nil
}

func randomToken() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
