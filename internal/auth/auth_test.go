package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestSession_SignedOut(t *testing.T) {
	s := NewSession()
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrSignedOut)
}

func TestSession_OpaqueToken(t *testing.T) {
	s := NewSession()
	s.SignIn("  opaque-token ")

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)

	s.SignOut()
	_, err = s.Token(context.Background())
	assert.ErrorIs(t, err, ErrSignedOut)
}

func TestSession_JWTExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession()
	s.now = func() time.Time { return now }

	fresh := signed(t, now.Add(time.Hour))
	s.SignIn(fresh)
	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, token)

	s.SignIn(signed(t, now.Add(-time.Minute)))
	_, err = s.Token(context.Background())
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSession_Subscribe(t *testing.T) {
	s := NewSession()

	var got []string
	unsubscribe := s.Subscribe(func(token string) { got = append(got, token) })

	s.SignIn("first")
	s.SignIn("second")
	unsubscribe()
	s.SignIn("third")

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestStatic(t *testing.T) {
	token, err := Static("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}
