package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "giraiotcore"

// Permission is a scope granted by a control API token.
type Permission string

const (
	PermRead    Permission = "read"
	PermControl Permission = "control"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTClaims struct {
	Permissions []Permission `json:"permissions"`
	jwt.RegisteredClaims
}

// JWTHandler signs and validates control API tokens with a shared secret.
type JWTHandler struct {
	secretKey []byte
}

// NewJWTHandler returns nil for an empty secret, which disables authentication.
func NewJWTHandler(secretKey string) *JWTHandler {
	if secretKey == "" {
		return nil
	}
	return &JWTHandler{secretKey: []byte(secretKey)}
}

// Enabled reports whether tokens are checked at all.
func (j *JWTHandler) Enabled() bool {
	return j != nil
}

// GenerateToken creates a token for subject. A zero ttl never expires.
func (j *JWTHandler) GenerateToken(subject string, perms []Permission, ttl time.Duration) (string, error) {
	if j == nil {
		return "", errors.New("authentication disabled: no secret configured")
	}

	now := time.Now()
	claims := JWTClaims{
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   issuer,
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ValidateToken parses and verifies a token.
func (j *JWTHandler) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Has reports whether the claims grant perm. Control implies read.
func (c *JWTClaims) Has(perm Permission) bool {
	for _, p := range c.Permissions {
		if p == perm || p == PermControl {
			return true
		}
	}
	return false
}
