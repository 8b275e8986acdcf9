package identity

import "github.com/nawehub/session-gateway/users"

// Credentials is the login request body
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenPair is the token portion shared by login and refresh responses.
type TokenPair struct {
	// AccessToken is the short-lived bearer credential for backend API calls.
	// Usage: "Authorization: Bearer <accessToken>"
	AccessToken string `json:"accessToken" validate:"required"`

	// RefreshToken is exchanged for a new pair once the access token expires.
	// Refresh responses may omit it, in which case the previous one stays valid.
	RefreshToken string `json:"refreshToken,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	// Note: when absent the access token's exp claim is used instead
	ExpiresIn int64 `json:"expiresIn,omitempty" validate:"gte=0"`
}

// LoginResponse is returned by the backend login endpoint
type LoginResponse struct {
	TokenPair
	User *users.UserProfile `json:"user" validate:"required"`
}
