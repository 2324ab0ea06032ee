package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT("user-1", "alice", "test-secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("user-1", "alice", "test-secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateJWTExpired(t *testing.T) {
	token, err := GenerateJWT("user-1", "alice", "test-secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "test-secret")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22!")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22!", hash)

	assert.True(t, CheckPasswordHash("hunter22!", hash))
	assert.False(t, CheckPasswordHash("hunter23!", hash))
}
