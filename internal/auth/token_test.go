package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slidecraft/internal/apperr"
)

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	tk := NewTokens("super-secret", time.Hour)
	tok, exp, err := tk.Issue("user-123", "employee")
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	for i := 0; i < 3; i++ {
		c, err := tk.Verify(tok)
		require.NoError(t, err)
		require.Equal(t, "user-123", c.UserID)
		require.Equal(t, "employee", c.Role)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-2 * time.Hour)
	tk := NewTokens("secret", time.Hour).WithClock(func() time.Time { return past })
	tok, _, err := tk.Issue("u1", "admin")
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).Verify(tok)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrExpiredToken))
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewTokens("right-secret", time.Hour).Issue("u2", "employee")
	require.NoError(t, err)

	_, err = NewTokens("wrong-secret", time.Hour).Verify(tok)
	require.ErrorIs(t, err, apperr.ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	tk := NewTokens("secret", time.Hour)
	_, err := tk.Verify("not-a-jwt")
	require.ErrorIs(t, err, apperr.ErrInvalidToken)

	_, err = tk.Verify("")
	require.ErrorIs(t, err, apperr.ErrMissingToken)
}

func TestVerifyOptional(t *testing.T) {
	t.Parallel()

	tk := NewTokens("secret", time.Hour)
	_, ok := tk.VerifyOptional("garbage")
	require.False(t, ok)

	tok, _, err := tk.Issue("u3", "employee")
	require.NoError(t, err)
	c, ok := tk.VerifyOptional(tok)
	require.True(t, ok)
	require.Equal(t, "u3", c.UserID)
}

func TestPassword(t *testing.T) {
	t.Parallel()

	h, err := HashPassword("secret1")
	require.NoError(t, err)
	require.NotEqual(t, "secret1", h)
	require.True(t, CheckPassword(h, "secret1"))
	require.False(t, CheckPassword(h, "secret2"))
}
