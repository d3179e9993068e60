package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims auth.Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	v := auth.NewJWTValidator(testSecret)

	token := signToken(t, auth.Claims{
		Sub:      "user-1",
		Username: "alice",
		Role:     "student",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.GetUserID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "student", claims.Role)
}

func TestValidateTokenExpired(t *testing.T) {
	v := auth.NewJWTValidator(testSecret)

	token := signToken(t, auth.Claims{
		Sub: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, testSecret)

	_, err := v.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	v := auth.NewJWTValidator(testSecret)

	token := signToken(t, auth.Claims{Sub: "user-1"}, "other-secret")

	_, err := v.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateTokenGarbage(t *testing.T) {
	v := auth.NewJWTValidator(testSecret)

	_, err := v.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
