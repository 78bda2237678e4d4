package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService("  ", "crm")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndValidate(t *testing.T) {
	svc, err := NewTokenService("secret", "crm-backend")
	require.NoError(t, err)

	token, err := svc.Issue("scheduler", []string{ScopeWrite}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "scheduler", claims.Subject)
	assert.Equal(t, "crm-backend", claims.Issuer)
	assert.True(t, claims.HasScope(ScopeWrite))
	assert.True(t, claims.HasScope(ScopeRead))
}

func TestReadScopeDoesNotGrantWrite(t *testing.T) {
	claims := &Claims{Scopes: []string{ScopeRead}}
	assert.True(t, claims.HasScope(ScopeRead))
	assert.False(t, claims.HasScope(ScopeWrite))
}

func TestValidateRejections(t *testing.T) {
	svc, err := NewTokenService("secret", "crm-backend")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		old := &TokenService{secretKey: svc.secretKey, issuer: svc.issuer, now: func() time.Time { return past }}
		token, err := old.Issue("ops", []string{ScopeRead}, time.Minute)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenService("other", "crm-backend")
		require.NoError(t, err)
		token, err := other.Issue("ops", nil, time.Hour)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewTokenService("secret", "someone-else")
		require.NoError(t, err)
		token, err := other.Issue("ops", nil, time.Hour)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("not a service token", func(t *testing.T) {
		claims := Claims{TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "crm-backend",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromBearer("bearer abc"))
	assert.Equal(t, "", ExtractTokenFromBearer("Basic abc"))
	assert.Equal(t, "", ExtractTokenFromBearer(""))
}
