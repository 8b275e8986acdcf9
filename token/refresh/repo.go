package refresh

import (
	"context"
	"time"
)

// Result is the outcome of a completed refresh. It is stored under the hash of the
// consumed refresh token so a late request presenting that token gets the rotated pair.
type Result struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Expiry       time.Time `json:"expiry"` // Absolute access token expiry
	Iat          time.Time `json:"iat"`    // When the refresh completed
}

// Store keeps refresh results and per-key locks. Implementations must be safe for
// concurrent use; Get returns errors.ErrNotFound when nothing is stored.
type Store interface {
	Get(ctx context.Context, key string) (*Result, error)
	Put(ctx context.Context, key string, result *Result, ttl time.Duration) error

	// Lock acquires the refresh lock for key. ok is false when another holder has it.
	Lock(ctx context.Context, key string, ttl time.Duration) (owner string, ok bool, err error)
	// Unlock releases the lock only if owner still holds it
	Unlock(ctx context.Context, key, owner string) error
}
