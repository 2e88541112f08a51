package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelWrapping(t *testing.T) {
	err := Wrap(ErrNotFound, "manifest abc123")
	assert.True(t, Is(err, ErrNotFound))
	assert.True(t, IsNotFoundError(err))
	assert.False(t, IsInvalidRequestError(err))

	wrapped := Wrapf(err, "resolving identifier %q", "urn:nbn:de:123")
	assert.True(t, IsNotFoundError(wrapped), "sentinel survives multiple wraps")
	assert.Contains(t, wrapped.Error(), "urn:nbn:de:123")
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("image %s", "xyz")
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "image xyz")
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.False(t, Is(ErrUnsupported, ErrNotFound))
	assert.False(t, Is(ErrUnreachableSource, ErrInvalidRequest))
	assert.False(t, Is(ErrMalformedDocument, ErrUnsupported))
}

func TestIsHelpersOnNil(t *testing.T) {
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsInvalidRequestError(nil))
	assert.False(t, IsUnsupportedError(nil))
}
