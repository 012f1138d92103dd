package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, h.Matches("secret1", hash))
	assert.False(t, h.Matches("secret2", hash))
	assert.False(t, h.Matches("secret1", "not-a-bcrypt-hash"))
}

func TestBcryptHasherRejectsBadCost(t *testing.T) {
	_, err := NewBcryptHasher(2)
	assert.Error(t, err)
	_, err = NewBcryptHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
}
