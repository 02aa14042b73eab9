package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLen is the shortest HS256 key accepted.
const minSecretLen = 32

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrAlgMismatch  = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
	ErrWeakSecret   = errors.New("jwtx: secret shorter than 32 bytes")
)

// StateSigner signs and verifies scan state tokens with HS256. The same
// process both mints and checks them, so a shared secret is enough.
type StateSigner struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewStateSigner returns a signer keyed by secret.
func NewStateSigner(secret []byte, issuer string) (*StateSigner, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	return &StateSigner{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		leeway: 30 * time.Second,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source, for tests.
func (s *StateSigner) WithClock(now func() time.Time) *StateSigner {
	s.now = now
	return s
}

// Issue signs fresh state claims for provider and next.
func (s *StateSigner) Issue(provider, next string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return s.Sign(NewStateClaims(provider, next, s.issuer, ttl, s.now().UTC()))
}

// Sign turns claims into a compact JWT.
func (s *StateSigner) Sign(claims StateClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify parses token and checks its signature, issuer and lifetime.
func (s *StateSigner) Verify(token string) (*StateClaims, error) {
	if token == "" {
		return nil, ErrMalformed
	}

	claims := &StateClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		return s.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, ErrAlgMismatch
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrIssuer
	}
	if err := claims.ValidateExpiryWithLeeway(s.now().UTC(), s.leeway); err != nil {
		return nil, err
	}
	return claims, nil
}
