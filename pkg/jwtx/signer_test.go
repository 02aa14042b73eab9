package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/pwdself/pkg/jwtx"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewStateSignerRejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewStateSigner([]byte("short"), "pwdself")
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestStateRoundTrip(t *testing.T) {
	s, err := jwtx.NewStateSigner(testSecret, "pwdself")
	require.NoError(t, err)

	tok, err := s.Issue("dingtalk", "reset", 0)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(tok, &jwtx.StateClaims{})
	require.NoError(t, err)
	require.Equal(t, "HS256", parsed.Header["alg"])

	claims, err := s.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "dingtalk", claims.Provider)
	require.Equal(t, "reset", claims.Next)
	require.Equal(t, "pwdself", claims.Issuer)
	require.NotEmpty(t, claims.ID)
	require.WithinDuration(t, time.Now().Add(jwtx.DefaultStateTTL), claims.ExpiresAt.Time, 5*time.Second)
}

func TestStateVerifyFailures(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s, err := jwtx.NewStateSigner(testSecret, "pwdself")
	require.NoError(t, err)
	s.WithClock(func() time.Time { return now })

	tok, err := s.Issue("wework", "unlock", time.Minute)
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := s.Verify("")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := jwtx.NewStateSigner([]byte(strings.Repeat("x", 32)), "pwdself")
		require.NoError(t, err)
		_, err = other.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, err := jwtx.NewStateSigner(testSecret, "someone-else")
		require.NoError(t, err)
		other.WithClock(func() time.Time { return now })
		_, err = other.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		later, err := jwtx.NewStateSigner(testSecret, "pwdself")
		require.NoError(t, err)
		later.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
		_, err = later.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("alg none", func(t *testing.T) {
		claims := jwtx.NewStateClaims("dingtalk", "reset", "pwdself", time.Minute, now)
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Verify(unsigned)
		require.Error(t, err)
	})

	t.Run("missing exp", func(t *testing.T) {
		claims := jwtx.StateClaims{Provider: "dingtalk"}
		claims.Issuer = "pwdself"
		raw, err := s.Sign(claims)
		require.NoError(t, err)
		_, err = s.Verify(raw)
		require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
	})
}
