package config

import (
	"strings"
	"time"
)

type IdentityConfig interface {
	GetIdentityBaseURL() string
	GetIdentityLoginPath() string
	GetIdentityRefreshPath() string
	GetIdentityJWKSURL() string
	GetBackendBaseURL() string
	GetRequestTimeout() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
}

type Identity struct{}

var _ IdentityConfig = Identity{}

// GetIdentityBaseURL returns the base URL of the identity backend (e.g. "https://api.nawehub.com")
func (Identity) GetIdentityBaseURL() string {
	return strings.TrimSuffix(GetEnv("IDENTITY_BASE_URL", "http://localhost:8000"), "/")
}

func (Identity) GetIdentityLoginPath() string {
	return GetEnv("IDENTITY_LOGIN_PATH", "/api/v1/auth/login")
}

func (Identity) GetIdentityRefreshPath() string {
	return GetEnv("IDENTITY_REFRESH_PATH", "/api/v1/auth/refresh")
}

// GetIdentityJWKSURL is optional. When set, backend access tokens must verify against it.
func (Identity) GetIdentityJWKSURL() string {
	return GetEnv("IDENTITY_JWKS_URL", "")
}

// GetBackendBaseURL is the target of the authenticated pass-through proxy.
// Defaults to the identity backend, which serves the domain API as well.
func (i Identity) GetBackendBaseURL() string {
	return strings.TrimSuffix(GetEnv("BACKEND_BASE_URL", i.GetIdentityBaseURL()), "/")
}

func (Identity) GetRequestTimeout() time.Duration {
	return GetEnvDuration("IDENTITY_TIMEOUT", 10*time.Second)
}

// GetDefaultAccessTokenExpiry applies when the backend supplies neither expiresIn nor a JWT exp claim
func (Identity) GetDefaultAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_DEFAULT_EXPIRY", 15*time.Minute)
}
