package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// AccessTokenVerifier checks an access token issued by the identity backend
type AccessTokenVerifier interface {
	Verify(ctx context.Context, rawToken string) error
}

// JWKSVerifier verifies access token signatures against the backend's published key set.
// Keys are fetched lazily and re-fetched when an unknown key ID is seen.
type JWKSVerifier struct {
	keySet *oidc.RemoteKeySet
}

var _ AccessTokenVerifier = (*JWKSVerifier)(nil)

// NewJWKSVerifier creates a verifier for the given JWKS URL. ctx bounds key fetches.
func NewJWKSVerifier(ctx context.Context, jwksURL string) *JWKSVerifier {
	return &JWKSVerifier{
		keySet: oidc.NewRemoteKeySet(ctx, jwksURL),
	}
}

func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) error {
	if _, err := v.keySet.VerifySignature(ctx, rawToken); err != nil {
		return fmt.Errorf("access token signature verification failed: %w", err)
	}
	return nil
}
