package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, Verify("secret123", hash))
	assert.False(t, Verify("wrong", hash))
	assert.False(t, Verify("secret123", "not-a-hash"))
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("session-token-1")
	h2 := HashToken("session-token-1")
	h3 := HashToken("session-token-2")

	assert.Equal(t, h1, h2, "hash must be deterministic")
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64, "sha256 hex digest")
	assert.NotContains(t, h1, "session-token-1")
}

func TestValidatePassword(t *testing.T) {
	assert.True(t, ValidatePassword("secret"))
	assert.False(t, ValidatePassword("short"))
}
