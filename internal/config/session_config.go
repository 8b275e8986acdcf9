package config

import "time"

type SessionConfig interface {
	GetSessionSecret() string
	GetSessionCookieName() string
	GetMaxSessionAge() time.Duration
	GetRefreshResultTTL() time.Duration
	GetRedisURL() string
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionSecret is the input keying material for the session token signing key
func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "nawehub.session-token")
}

func (Session) GetMaxSessionAge() time.Duration {
	return GetEnvDuration("SESSION_MAX_AGE", 30*24*time.Hour) // 30 days
}

// GetRefreshResultTTL is how long a completed refresh stays reusable by late requests
// carrying the consumed refresh token.
func (Session) GetRefreshResultTTL() time.Duration {
	return GetEnvDuration("REFRESH_RESULT_TTL", 30*time.Second)
}

// GetRedisURL enables the shared refresh result store when set (e.g. "redis://localhost:6379/0")
func (Session) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}
