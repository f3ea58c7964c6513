package security_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatehub/internal/security"
)

func TestTokenService(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)

	t.Run("Round trip", func(t *testing.T) {
		tok, err := svc.CreateForUser(42, "admin")
		require.NoError(t, err)

		p, err := svc.Parse(tok)
		require.NoError(t, err)
		assert.Equal(t, security.Principal{UserID: 42, Role: "admin"}, p)
	})

	t.Run("Expired", func(t *testing.T) {
		tok, err := svc.CreateWithTTL(42, "", -time.Minute)
		require.NoError(t, err)

		_, err = svc.Parse(tok)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		tok, err := security.NewTokenService("other", time.Hour).CreateForUser(42, "")
		require.NoError(t, err)

		_, err = svc.Parse(tok)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("Non-numeric subject", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = svc.Parse(tok)
		assert.ErrorIs(t, err, security.ErrInvalidSubject)
	})
}
