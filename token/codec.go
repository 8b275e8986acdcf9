package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/nawehub/session-gateway/internal/errors"
	"github.com/nawehub/session-gateway/sessions"
	"github.com/nawehub/session-gateway/users"
)

// Issuer is the iss claim of every session token
const Issuer = "nawehub-session-gateway"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the on-wire form of a session inside the cookie
type Claims struct {
	jwt.RegisteredClaims
	AccessToken       string             `json:"accessToken"`
	RefreshToken      string             `json:"refreshToken,omitempty"`
	AccessTokenExpiry int64              `json:"accessTokenExpiry"` // unix seconds
	User              *users.UserProfile `json:"user,omitempty"`
	Error             sessions.ErrorCode `json:"error,omitempty"`

	// LegacyApproved is the top-level flag written by older gateways. It is only read.
	LegacyApproved *bool `json:"approved,omitempty"`
}

// Codec turns sessions into signed session tokens and back
type Codec struct {
	signer  Signer
	maxAge  time.Duration
	revoked RevokedSessions
}

type CodecOption func(*Codec)

// WithRevokedSessions replaces the process-local revocation list
func WithRevokedSessions(revoked RevokedSessions) CodecOption {
	return func(c *Codec) {
		c.revoked = revoked
	}
}

// NewCodec creates a codec whose tokens expire maxAge after issue
func NewCodec(signer Signer, maxAge time.Duration, opts ...CodecOption) *Codec {
	c := &Codec{
		signer:  signer,
		maxAge:  maxAge,
		revoked: NewInMemoryRevokedSessions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxAge is the lifetime of an issued token
func (c *Codec) MaxAge() time.Duration {
	return c.maxAge
}

// Encode signs s into a session token
func (c *Codec) Encode(s *sessions.Session) (string, error) {
	if s == nil {
		return "", apperrors.Wrapf(apperrors.ErrInvalidSessionToken, "[token Encode] nil session")
	}

	now := NowTimeFunc()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
		},
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         s.User,
		Error:        s.Error,
	}
	if !s.AccessTokenExpiry.IsZero() {
		claims.AccessTokenExpiry = s.AccessTokenExpiry.Unix()
	}
	if s.User != nil {
		claims.Subject = s.User.ID
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("[token Encode] %w", err)
	}
	return signed, nil
}

// Decode verifies a session token and returns the session it carries.
// Errors wrap ErrSessionExpired or ErrInvalidSessionToken.
func (c *Codec) Decode(raw string) (*sessions.Session, error) {
	claims, err := c.parse(raw)
	if err != nil {
		return nil, fmt.Errorf("[token Decode] %w", err)
	}
	if claims.ID != "" && c.revoked.IsRevoked(claims.ID) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidSessionToken, "[token Decode] session %s was revoked", claims.ID)
	}
	return claims.session(), nil
}

// Revoke rejects raw in every later Decode on this codec. Tokens that no longer
// verify need no revocation and are ignored.
func (c *Codec) Revoke(raw string) error {
	claims, err := c.parse(raw)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionExpired) {
			return nil
		}
		return fmt.Errorf("[token Revoke] %w", err)
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	c.revoked.Add(claims.ID, claims.ExpiresAt.Time)
	return nil
}

func (c *Codec) parse(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidSessionToken, "empty token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(NowTimeFunc),
	)

	var claims Claims
	if _, err := parser.ParseWithClaims(raw, &claims, c.signer.GetVerificationKey); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidSessionToken, err)
	}
	return &claims, nil
}

func (c *Claims) session() *sessions.Session {
	s := &sessions.Session{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		User:         c.User,
		Error:        c.Error,
	}
	if c.AccessTokenExpiry > 0 {
		s.AccessTokenExpiry = time.Unix(c.AccessTokenExpiry, 0)
	}

	// Migrate the legacy flag. Either location granting approval is honoured.
	if c.LegacyApproved != nil && *c.LegacyApproved && s.User != nil {
		s.User.Approved = true
	}
	return s
}
