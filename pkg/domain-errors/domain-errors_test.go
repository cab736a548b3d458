package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(CodeNotFound, "application not found")
	assert.Equal(t, "application not found", err.Error())

	bare := New(CodeInternal, "")
	assert.Equal(t, "internal_error", bare.Error())
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := New(CodeInvalidSession, "invalid or expired session token")
	assert.True(t, errors.Is(err, New(CodeInvalidSession, "other message")))
	assert.False(t, errors.Is(err, New(CodeNotFound, "")))
}

func TestWrapPreservesOriginalCode(t *testing.T) {
	inner := New(CodeInvalidRedirect, "redirect not allow-listed")
	wrapped := Wrap(inner, CodeInternal, "issue session failed")

	assert.True(t, HasCode(wrapped, CodeInvalidRedirect))
	assert.False(t, HasCode(wrapped, CodeInternal))

	var de *Error
	require.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "issue session failed", de.Message)
}

func TestWrapPlainError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := Wrap(cause, CodeInternal, "store unavailable")

	assert.True(t, HasCode(wrapped, CodeInternal))
	assert.ErrorIs(t, wrapped, cause)
}

func TestHasCodeOnPlainError(t *testing.T) {
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}
