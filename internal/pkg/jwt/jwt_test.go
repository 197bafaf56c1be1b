package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	signed, err := GenerateToken(42, "user", "session-abc", "secret", 1)
	require.NoError(t, err)

	claims, err := ValidateToken(signed, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "session-abc", claims.SessionToken)
	assert.Equal(t, "edhub", claims.Issuer)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	signed, err := GenerateToken(42, "user", "session-abc", "secret", 1)
	require.NoError(t, err)

	_, err = ValidateToken(signed, "other-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateToken_Expired(t *testing.T) {
	signed, err := GenerateToken(42, "user", "session-abc", "secret", -1)
	require.NoError(t, err)

	_, err = ValidateToken(signed, "secret")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("not.a.token", "secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
