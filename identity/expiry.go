package identity

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Expiry computes the absolute access token expiry: now + expiresIn when the backend
// supplied it, else the access token's exp claim, else now + fallback.
func (p TokenPair) Expiry(now time.Time, fallback time.Duration) time.Time {
	if p.ExpiresIn > 0 {
		return now.Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	if exp, ok := accessTokenExpiry(p.AccessToken); ok {
		return exp
	}
	return now.Add(fallback)
}

// accessTokenExpiry reads exp without verifying the signature. The access token is
// opaque to the gateway; exp is only a lifetime hint.
func accessTokenExpiry(rawToken string) (time.Time, bool) {
	var claims jwtlib.RegisteredClaims
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
