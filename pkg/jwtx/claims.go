package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultStateTTL bounds how long a QR scan may take before the redirect is
// rejected.
const DefaultStateTTL = 10 * time.Minute

// StateClaims ride in the OAuth-style "state" parameter of a scan-to-login
// redirect.
type StateClaims struct {
	jwt.RegisteredClaims

	// Provider that issued the QR code ("dingtalk", "wework").
	Provider string `json:"idp,omitempty"`

	// Next is the flow the user started from: "reset" or "unlock".
	Next string `json:"next,omitempty"`
}

// NewStateClaims builds claims for a scan started at now.
func NewStateClaims(provider, next, issuer string, ttl time.Duration, now time.Time) StateClaims {
	return StateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Provider: provider,
		Next:     next,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateExpiryWithLeeway checks exp and nbf against now with a grace
// period for clock skew.
func (c *StateClaims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
