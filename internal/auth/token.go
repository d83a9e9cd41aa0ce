// Package auth signs and validates the bearer tokens guarding ops endpoints.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager signs and validates HS256 tokens. The chat protocol itself is
// anonymous; tokens only gate operational surfaces such as /stats.
type TokenManager struct {
	secretKey string
	duration  time.Duration
}

// Claims is the token payload; Subject identifies the operator.
type Claims struct {
	jwt.RegisteredClaims
}

// NewTokenManager returns a configured TokenManager.
func NewTokenManager(secretKey string, duration time.Duration) *TokenManager {
	return &TokenManager{secretKey: secretKey, duration: duration}
}

// Generate issues a signed token for the given subject.
func (m *TokenManager) Generate(subject string) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.duration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token and returns its subject.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC signatures are acceptable here.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
