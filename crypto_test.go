package treekem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyGeneration(t *testing.T) {
	priv, err := NewSecretKey()
	require.Nil(t, err)
	require.Equal(t, SecretKeySize, len(priv.Data))

	pub, err := priv.PublicKey()
	require.Nil(t, err)
	require.Equal(t, PublicKeySize, len(pub.Data))

	// Distinct draws give distinct keys
	priv2, err := NewSecretKey()
	require.Nil(t, err)
	require.NotEqual(t, priv.Data, priv2.Data)
}

func TestKeyEncoding(t *testing.T) {
	priv, err := NewSecretKey()
	require.Nil(t, err)

	priv2, err := SecretKeyFromBytes(priv.Data)
	require.Nil(t, err)
	require.Equal(t, priv.Data, priv2.Data)

	_, err = SecretKeyFromBytes([]byte{0x00, 0x01})
	require.Equal(t, InvalidKeyEncodingError, err)

	// All-ones is not a canonical scalar encoding
	junk := make([]byte, SecretKeySize)
	for i := range junk {
		junk[i] = 0xff
	}
	_, err = SecretKeyFromBytes(junk)
	require.Equal(t, InvalidKeyEncodingError, err)
}

func TestKeyHomomorphism(t *testing.T) {
	a, err := NewSecretKey()
	require.Nil(t, err)
	b, err := NewSecretKey()
	require.Nil(t, err)

	aPub, err := a.PublicKey()
	require.Nil(t, err)
	bPub, err := b.PublicKey()
	require.Nil(t, err)

	// (a + b) * G == a * G + b * G
	abPriv, err := UpdatePrivate(a, b)
	require.Nil(t, err)
	abPub, err := abPriv.PublicKey()
	require.Nil(t, err)

	sum, err := UpdatePublic(aPub, bPub)
	require.Nil(t, err)
	require.True(t, abPub.Equals(sum))

	// Addition commutes
	baPriv, err := UpdatePrivate(b, a)
	require.Nil(t, err)
	require.Equal(t, abPriv.Data, baPriv.Data)
}

func TestAEADRoundTrip(t *testing.T) {
	key, err := randomBytes(aeadKeySize)
	require.Nil(t, err)
	nonce, err := newAEADNonce()
	require.Nil(t, err)

	plaintext := []byte("eccentric and bizarre behavior")

	ct, err := aeadSeal(key, nonce, plaintext)
	require.Nil(t, err)
	require.NotEqual(t, plaintext, ct)

	pt, err := aeadOpen(key, nonce, ct)
	require.Nil(t, err)
	require.Equal(t, plaintext, pt)

	// Flipped bit fails authentication
	ct[0] ^= 0x01
	_, err = aeadOpen(key, nonce, ct)
	require.Equal(t, DecryptionFailureError, err)
	ct[0] ^= 0x01

	// Wrong key fails authentication
	otherKey, err := randomBytes(aeadKeySize)
	require.Nil(t, err)
	_, err = aeadOpen(otherKey, nonce, ct)
	require.Equal(t, DecryptionFailureError, err)
}

func TestECDH(t *testing.T) {
	alice, err := NewECDHPrivateKey()
	require.Nil(t, err)
	bob, err := NewECDHPrivateKey()
	require.Nil(t, err)

	ab, err := alice.SharedSecret(bob.PublicKey)
	require.Nil(t, err)
	ba, err := bob.SharedSecret(alice.PublicKey)
	require.Nil(t, err)
	require.Equal(t, ab, ba)

	charlie, err := NewECDHPrivateKey()
	require.Nil(t, err)
	ac, err := alice.SharedSecret(charlie.PublicKey)
	require.Nil(t, err)
	require.NotEqual(t, ab, ac)
}

func TestHybridRoundTrip(t *testing.T) {
	recipient, err := NewECDHPrivateKey()
	require.Nil(t, err)

	plaintext, err := randomBytes(aeadKeySize)
	require.Nil(t, err)

	envelope, err := hybridSeal(recipient.PublicKey, plaintext)
	require.Nil(t, err)

	pt, err := hybridOpen(recipient, envelope)
	require.Nil(t, err)
	require.Equal(t, plaintext, pt)

	// Someone else's long-term key cannot open the envelope
	other, err := NewECDHPrivateKey()
	require.Nil(t, err)
	_, err = hybridOpen(other, envelope)
	require.Equal(t, DecryptionFailureError, err)
}

func TestSignatures(t *testing.T) {
	priv, err := NewSignaturePrivateKey()
	require.Nil(t, err)

	message := []byte("in the obscurity of your trunk")
	sig := priv.Sign(message)
	require.True(t, priv.PublicKey.Verify(message, sig))
	require.False(t, priv.PublicKey.Verify([]byte("some other message"), sig))

	other, err := NewSignaturePrivateKey()
	require.Nil(t, err)
	require.False(t, other.PublicKey.Verify(message, sig))
}
