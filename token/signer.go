package token

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/nawehub/session-gateway/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinSecretLength is the shortest SESSION_SECRET accepted
	MinSecretLength = 32

	signingKeyInfo = "NaWeHub Session Token Signing Key"
	signingKeySize = 32
)

// Signer signs session tokens and supplies the key that verifies them
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
	GetVerificationKey(token *jwt.Token) (any, error)
	GetSigningMethod() jwt.SigningMethod
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	key []byte
}

// NewHMACSigner derives the signing key from secret with HKDF-SHA256. The raw
// secret is never used as a key directly.
func NewHMACSigner(secret string) (*HMACSigner, error) {
	key, err := DeriveSigningKey(secret)
	if err != nil {
		return nil, err
	}
	return &HMACSigner{key: key}, nil
}

// DeriveSigningKey expands secret into a 256 bit signing key
func DeriveSigningKey(secret string) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "session secret must be at least %d characters", MinSecretLength)
	}

	key := make([]byte, signingKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(signingKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return key, nil
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token with HMAC: %w", err)
	}
	return signed, nil
}

func (h *HMACSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.key, nil
}

func (h *HMACSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
