package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, expiresAt, err := svc.GenerateAccessToken("ops-7", []string{RoleOperator})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-7", actor.ID)
	assert.Equal(t, []string{RoleOperator}, actor.Roles)
	assert.Empty(t, actor.SessionID)
}

func TestJWT_WrongSecret(t *testing.T) {
	token, _, err := NewJWTService(DefaultJWTConfig("a")).GenerateAccessToken("ops-7", nil)
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("b")).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_Expired(t *testing.T) {
	cfg := DefaultJWTConfig("s")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken("ops-7", nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_WrongIssuer(t *testing.T) {
	other := DefaultJWTConfig("s")
	other.Issuer = "someone-else"
	token, _, err := NewJWTService(other).GenerateAccessToken("ops-7", nil)
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("s")).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "parcelsort",
		Subject:   "ops-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("s")).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
