package treekem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCredential(t *testing.T, name string) (Credential, SignaturePrivateKey, ECDHPrivateKey) {
	sigPriv, err := NewSignaturePrivateKey()
	require.Nil(t, err)
	ecdhPriv, err := NewECDHPrivateKey()
	require.Nil(t, err)
	return NewCredential(name, sigPriv, ecdhPriv.PublicKey), sigPriv, ecdhPriv
}

func TestCredentialVerify(t *testing.T) {
	cred, _, _ := newTestCredential(t, "alice")
	require.Nil(t, cred.Verify())
	require.Equal(t, []byte("alice"), cred.Name)

	// Tampered name breaks the signature
	tampered := cred
	tampered.Name = []byte("mallory")
	require.Error(t, tampered.Verify())

	// Swapped ECDH key breaks the signature
	otherECDH, err := NewECDHPrivateKey()
	require.Nil(t, err)
	tampered = cred
	tampered.ECDHKey = otherECDH.PublicKey
	require.Error(t, tampered.Verify())

	// Missing keys are reported distinctly
	require.Equal(t, MissingCredentialsError, Credential{}.Verify())
}

func TestCredentialReissue(t *testing.T) {
	cred, sigPriv, _ := newTestCredential(t, "alice")

	reissued, err := cred.Reissue("alice the brave", sigPriv)
	require.Nil(t, err)
	require.Nil(t, reissued.Verify())
	require.Equal(t, []byte("alice the brave"), reissued.Name)
	require.Equal(t, cred.VerificationKey.Data, reissued.VerificationKey.Data)
	require.True(t, cred.ECDHKey.Equals(reissued.ECDHKey))

	// Reissue under the wrong signing key is rejected
	otherSig, err := NewSignaturePrivateKey()
	require.Nil(t, err)
	_, err = cred.Reissue("impostor", otherSig)
	require.Error(t, err)
}

func TestCredentialEquals(t *testing.T) {
	cred, _, _ := newTestCredential(t, "alice")
	other, _, _ := newTestCredential(t, "alice")

	require.True(t, cred.Equals(cred))
	require.False(t, cred.Equals(other))
}
