package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	CorsConfig
	IdentityConfig
	SessionConfig
	RouteConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetRoutesFile() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Identity
	Session
	Routing
}

// New loads an optional .env file and the optional route file, and returns the
// environment backed configuration.
func New() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	c := mainConfig{}
	routes := DefaultRoutes()
	if path := c.GetRoutesFile(); path != "" {
		loaded, err := LoadRoutesFile(path)
		if err != nil {
			return nil, fmt.Errorf("[config New] %w", err)
		}
		routes = loaded
	}
	c.Routing = Routing{routes: routes}
	return c, nil
}
