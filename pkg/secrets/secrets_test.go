package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenEntropy(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	other, err := GenerateToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateTokenRejectsLowEntropy(t *testing.T) {
	_, err := GenerateToken(8)
	assert.Error(t, err)
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, Verify("s3cret", hash))
	assert.Error(t, Verify("wrong", hash))
}

func TestHashEmptySecret(t *testing.T) {
	_, err := Hash("")
	assert.Error(t, err)
}
