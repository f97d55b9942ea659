package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasherClampsCost(t *testing.T) {
	require.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	require.Equal(t, bcrypt.MinCost, NewHasher(1).Cost)
	require.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost)
	require.Equal(t, 12, NewHasher(12).Cost)
}

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	require.True(t, h.Verify("s3cret", hash))
	require.False(t, h.Verify("S3cret", hash))
	require.False(t, h.Verify("", hash))
	require.False(t, h.Verify("s3cret", ""))
	require.False(t, h.Verify("s3cret", "not-a-bcrypt-hash"))
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}
