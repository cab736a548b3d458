package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/identity"
)

func TestSignUpAndSignIn(t *testing.T) {
	p, err := New("test-signing-key")
	require.NoError(t, err)
	ctx := context.Background()

	userID, err := p.SignUp(ctx, "User@Example.com", "hunter22", map[string]any{"role": "admin"})
	require.NoError(t, err)
	assert.NotEmpty(t, userID)

	// email lookup is case-insensitive
	credential, err := p.SignIn(ctx, "user@example.com", "hunter22")
	require.NoError(t, err)

	ident, err := p.VerifyCredential(ctx, credential)
	require.NoError(t, err)
	assert.Equal(t, userID, ident.ID)
	assert.Equal(t, "user@example.com", ident.Email)
	assert.Equal(t, "admin", ident.Role())
}

func TestSignUpDuplicateEmail(t *testing.T) {
	p, err := New("test-signing-key")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.SignUp(ctx, "dup@example.com", "pw1", nil)
	require.NoError(t, err)

	_, err = p.SignUp(ctx, "dup@example.com", "pw2", nil)
	assert.ErrorIs(t, err, identity.ErrEmailTaken)
}

func TestSignInWrongPassword(t *testing.T) {
	p, err := New("test-signing-key")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.SignUp(ctx, "a@example.com", "correct", nil)
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)

	_, err = p.SignIn(ctx, "missing@example.com", "whatever")
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestVerifyCredentialRejectsGarbage(t *testing.T) {
	p, err := New("test-signing-key")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.VerifyCredential(ctx, "")
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)

	_, err = p.VerifyCredential(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestVerifyCredentialRejectsExpired(t *testing.T) {
	p, err := New("test-signing-key", WithCredentialTTL(time.Nanosecond))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.SignUp(ctx, "exp@example.com", "pw", nil)
	require.NoError(t, err)

	credential, err := p.SignIn(ctx, "exp@example.com", "pw")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = p.VerifyCredential(ctx, credential)
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestVerifyCredentialRejectsForeignKey(t *testing.T) {
	p1, err := New("key-one")
	require.NoError(t, err)
	p2, err := New("key-two")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p1.SignUp(ctx, "x@example.com", "pw", nil)
	require.NoError(t, err)
	credential, err := p1.SignIn(ctx, "x@example.com", "pw")
	require.NoError(t, err)

	_, err = p2.VerifyCredential(ctx, credential)
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}
