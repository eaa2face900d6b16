package treekem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupKeyDerivation(t *testing.T) {
	secret, err := randomBytes(64)
	require.Nil(t, err)

	k1 := deriveGroupKey(secret)
	k2 := deriveGroupKey(secret)
	require.Equal(t, aeadKeySize, len(k1))
	require.Equal(t, k1, k2)

	other, err := randomBytes(64)
	require.Nil(t, err)
	require.NotEqual(t, k1, deriveGroupKey(other))
}

func TestMessageKeyDerivation(t *testing.T) {
	secret, err := randomBytes(64)
	require.Nil(t, err)

	k1 := deriveMessageKey(secret, 1)
	k1again := deriveMessageKey(secret, 1)
	require.Equal(t, aeadKeySize, len(k1))
	require.Equal(t, k1, k1again)

	// Counters partition the key space
	k2 := deriveMessageKey(secret, 2)
	k7 := deriveMessageKey(secret, 7)
	require.NotEqual(t, k1, k2)
	require.NotEqual(t, k2, k7)

	// Message keys never collide with the group key
	require.NotEqual(t, deriveGroupKey(secret), k1)
}

func TestNodeSecret(t *testing.T) {
	priv, err := NewSecretKey()
	require.Nil(t, err)
	pub, err := priv.PublicKey()
	require.Nil(t, err)

	s1 := nodeSecretFrom(pub, priv)
	s2 := nodeSecretFrom(pub, priv)
	require.Equal(t, s1, s2)

	priv2, err := NewSecretKey()
	require.Nil(t, err)
	pub2, err := priv2.PublicKey()
	require.Nil(t, err)
	require.NotEqual(t, s1, nodeSecretFrom(pub2, priv2))
}
