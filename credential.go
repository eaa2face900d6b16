package treekem

import (
	"bytes"
	"fmt"
)

// struct {
//     SignaturePublicKey verification_key;
//     opaque name<0..255>;
//     opaque signature<0..2^16-1>;
//     ECDHPublicKey ecdh_key;
// } Credential;
//
// The self-signature covers name || verification key || ecdh key, so a
// display-name reissue produces a distinct signature while the identity
// keys stay fixed.
type Credential struct {
	VerificationKey SignaturePublicKey
	Name            []byte `tls:"head=1"`
	Signature       []byte `tls:"head=2"`
	ECDHKey         ECDHPublicKey
}

func NewCredential(name string, sigPriv SignaturePrivateKey, ecdhPub ECDHPublicKey) Credential {
	cred := Credential{
		VerificationKey: sigPriv.PublicKey,
		Name:            []byte(name),
		ECDHKey:         ecdhPub,
	}
	cred.Signature = sigPriv.Sign(cred.signedContent())
	return cred
}

func (c Credential) signedContent() []byte {
	content := make([]byte, 0, len(c.Name)+len(c.VerificationKey.Data)+len(c.ECDHKey.Data))
	content = append(content, c.Name...)
	content = append(content, c.VerificationKey.Data...)
	return append(content, c.ECDHKey.Data...)
}

func (c Credential) Verify() error {
	if len(c.VerificationKey.Data) == 0 || len(c.ECDHKey.Data) == 0 {
		return MissingCredentialsError
	}

	if !c.VerificationKey.Verify(c.signedContent(), c.Signature) {
		return fmt.Errorf("treekem.credential: invalid self-signature")
	}
	return nil
}

// Reissue produces a credential with a new display name under the same
// identity keys.
func (c Credential) Reissue(name string, sigPriv SignaturePrivateKey) (Credential, error) {
	if !bytes.Equal(sigPriv.PublicKey.Data, c.VerificationKey.Data) {
		return Credential{}, fmt.Errorf("treekem.credential: signing key does not match credential")
	}
	return NewCredential(name, sigPriv, c.ECDHKey), nil
}

// Compare the public aspects of two credentials
func (c Credential) Equals(o Credential) bool {
	return bytes.Equal(c.VerificationKey.Data, o.VerificationKey.Data) &&
		bytes.Equal(c.Name, o.Name) &&
		bytes.Equal(c.Signature, o.Signature) &&
		c.ECDHKey.Equals(o.ECDHKey)
}
