package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type RouteConfig interface {
	GetRoutes() Routes
}

// Routes describes which paths bypass the approval gate and where it redirects to
type Routes struct {
	PublicPaths         []string `yaml:"public_paths"`    // Exact matches
	PublicPrefixes      []string `yaml:"public_prefixes"` // Matches the prefix itself and anything below it
	ProtectedPrefix     string   `yaml:"protected_prefix"`
	PendingApprovalPath string   `yaml:"pending_approval_path"`
	AppRootPath         string   `yaml:"app_root_path"`
	LoginPath           string   `yaml:"login_path"`
}

type Routing struct {
	routes Routes
}

var _ RouteConfig = Routing{}

func (r Routing) GetRoutes() Routes {
	return r.routes
}

func DefaultRoutes() Routes {
	return Routes{
		PublicPaths: []string{"/", "/favicon.ico", "/robots.txt", "/healthz"},
		PublicPrefixes: []string{
			"/about",
			"/contact",
			"/services",
			"/love-your-district",
			"/login",
			"/register",
			"/forgot-password",
			"/reset-password",
			"/api/auth",
			"/static",
			"/images",
			"/assets",
		},
		ProtectedPrefix:     "/dashboard",
		PendingApprovalPath: "/pending-approval",
		AppRootPath:         "/dashboard",
		LoginPath:           "/login",
	}
}

// LoadRoutesFile reads a YAML route file. Fields left empty keep their defaults.
func LoadRoutesFile(path string) (Routes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Routes{}, fmt.Errorf("failed to read routes file %s: %w", path, err)
	}

	var fromFile Routes
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Routes{}, fmt.Errorf("failed to parse routes file %s: %w", path, err)
	}

	routes := DefaultRoutes()
	if fromFile.PublicPaths != nil {
		routes.PublicPaths = fromFile.PublicPaths
	}
	if fromFile.PublicPrefixes != nil {
		routes.PublicPrefixes = fromFile.PublicPrefixes
	}
	if fromFile.ProtectedPrefix != "" {
		routes.ProtectedPrefix = fromFile.ProtectedPrefix
	}
	if fromFile.PendingApprovalPath != "" {
		routes.PendingApprovalPath = fromFile.PendingApprovalPath
	}
	if fromFile.AppRootPath != "" {
		routes.AppRootPath = fromFile.AppRootPath
	}
	if fromFile.LoginPath != "" {
		routes.LoginPath = fromFile.LoginPath
	}
	return routes, nil
}
