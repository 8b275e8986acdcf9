package identitytest

import (
	"time"

	"github.com/nawehub/session-gateway/internal/config"
)

// Config is an IdentityConfig for tests
type Config struct {
	BaseURL       string
	JWKSURL       string
	Timeout       time.Duration
	DefaultExpiry time.Duration
}

var _ config.IdentityConfig = Config{}

func (c Config) GetIdentityBaseURL() string     { return c.BaseURL }
func (c Config) GetIdentityLoginPath() string   { return LoginPath }
func (c Config) GetIdentityRefreshPath() string { return RefreshPath }
func (c Config) GetIdentityJWKSURL() string     { return c.JWKSURL }
func (c Config) GetBackendBaseURL() string      { return c.BaseURL }

func (c Config) GetRequestTimeout() time.Duration {
	if c.Timeout == 0 {
		return 5 * time.Second
	}
	return c.Timeout
}

func (c Config) GetDefaultAccessTokenExpiry() time.Duration {
	if c.DefaultExpiry == 0 {
		return 15 * time.Minute
	}
	return c.DefaultExpiry
}
