package middleware

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken_LocalNumericSubject(t *testing.T) {
	v := NewAuthServiceValidator("", testSecret, zap.NewNop())

	token := signToken(t, jwt.MapClaims{"sub": "42"})
	userID, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestValidateToken_LocalUserIDClaim(t *testing.T) {
	v := NewAuthServiceValidator("", testSecret, zap.NewNop())

	token := signToken(t, jwt.MapClaims{"userId": float64(7)})
	userID, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func TestValidateToken_RejectsBadSignature(t *testing.T) {
	v := NewAuthServiceValidator("", "different-secret", zap.NewNop())

	token := signToken(t, jwt.MapClaims{"sub": "42"})
	_, err := v.ValidateToken(context.Background(), token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsMissingSubject(t *testing.T) {
	v := NewAuthServiceValidator("", testSecret, zap.NewNop())

	token := signToken(t, jwt.MapClaims{"foo": "bar"})
	_, err := v.ValidateToken(context.Background(), token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsNonNumericSubject(t *testing.T) {
	v := NewAuthServiceValidator("", testSecret, zap.NewNop())

	token := signToken(t, jwt.MapClaims{"sub": "not-a-number"})
	_, err := v.ValidateToken(context.Background(), token)
	assert.Error(t, err)
}
