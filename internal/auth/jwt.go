// Package auth validates bearer tokens issued by the external API gateway
// (spec.md §1 places the gateway itself out of scope; this core only ever
// verifies what the gateway already issued — it never registers users or
// mints tokens). Adapted from the teacher's internal/auth package, with the
// issuing half (internal/services/auth_service.go, internal/auth/password.go,
// the /auth/register and /auth/login routes) dropped entirely — see
// DESIGN.md's Open Question decisions.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrExpiredToken = errors.New("token has expired")
var ErrInvalidToken = errors.New("token is invalid")

// Claims is the subset of the gateway's token claims the core cares about.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager validates bearer tokens against a shared secret configured
// out-of-band with the gateway.
type JWTManager struct {
	secret []byte
}

// NewJWTManager builds a JWTManager from the configured shared secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{secret: []byte(secret)}
}

// ValidateToken parses and verifies tokenString, returning its claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}
