package treekem

import (
	"crypto/sha512"
	"fmt"

	"github.com/gtank/ristretto255"
)

// Updatable public-key encryption.  Every encryption samples a blinding
// scalar delta alongside the ephemeral scalar: the ciphertext hides both the
// message and delta, the sender's view of the public key advances to
// pk + delta*G, and decryption recovers delta and advances the secret key to
// sk + delta.  Old secret keys therefore cannot open ciphertexts produced
// after the evolution, and learning an old secret key does not reveal the
// evolved one.
//
// The message size is fixed: path secrets, node public keys and scalar
// encodings are all 32 bytes, which is exactly what ever needs to ride in a
// UPKE ciphertext.

const UPKEMessageSize = 32

type UPKECiphertext struct {
	C1 []byte `tls:"head=1"`
	C2 []byte `tls:"head=1"`
}

// Encrypt seals a 32-byte message to pub and returns the evolved public key
// alongside the ciphertext.
func Encrypt(pub PublicKey, message []byte) (UPKECiphertext, PublicKey, error) {
	ct, next, _, err := encryptWithDelta(pub, message)
	return ct, next, err
}

// encryptWithDelta additionally hands back the blinding scalar, which the
// path-update flow needs to advance its own copy of the recipient key pair.
func encryptWithDelta(pub PublicKey, message []byte) (UPKECiphertext, PublicKey, SecretKey, error) {
	if len(message) != UPKEMessageSize {
		return UPKECiphertext{}, PublicKey{}, SecretKey{}, fmt.Errorf("treekem.upke: message must be %d bytes", UPKEMessageSize)
	}

	pk, err := pub.element()
	if err != nil {
		return UPKECiphertext{}, PublicKey{}, SecretKey{}, err
	}

	ephemeral, err := NewSecretKey()
	if err != nil {
		return UPKECiphertext{}, PublicKey{}, SecretKey{}, err
	}
	delta, err := NewSecretKey()
	if err != nil {
		return UPKECiphertext{}, PublicKey{}, SecretKey{}, err
	}

	r, err := ephemeral.scalar()
	if err != nil {
		return UPKECiphertext{}, PublicKey{}, SecretKey{}, err
	}
	d, err := delta.scalar()
	if err != nil {
		return UPKECiphertext{}, PublicKey{}, SecretKey{}, err
	}

	c1 := ristretto255.NewElement().ScalarBaseMult(r)
	shared := ristretto255.NewElement().ScalarMult(r, pk)
	pad := sha512.Sum512(shared.Encode(nil))

	c2 := make([]byte, 2*UPKEMessageSize)
	copy(c2, message)
	copy(c2[UPKEMessageSize:], delta.Data)
	for i := range c2 {
		c2[i] ^= pad[i]
	}

	next := ristretto255.NewElement().Add(pk, ristretto255.NewElement().ScalarBaseMult(d))

	ct := UPKECiphertext{C1: c1.Encode(nil), C2: c2}
	return ct, PublicKey{Data: next.Encode(nil)}, delta, nil
}

// Decrypt recovers the message and returns the evolved secret key
// sk + delta; the caller decides whether the evolution applies (path
// updates) or is discarded (blanking).
func Decrypt(priv SecretKey, ct UPKECiphertext) ([]byte, SecretKey, error) {
	if len(ct.C2) != 2*UPKEMessageSize {
		return nil, SecretKey{}, fmt.Errorf("treekem.upke: malformed ciphertext")
	}

	sk, err := priv.scalar()
	if err != nil {
		return nil, SecretKey{}, err
	}

	c1 := ristretto255.NewElement()
	if err := c1.Decode(ct.C1); err != nil {
		return nil, SecretKey{}, fmt.Errorf("treekem.upke: malformed ciphertext")
	}

	shared := ristretto255.NewElement().ScalarMult(sk, c1)
	pad := sha512.Sum512(shared.Encode(nil))

	plain := make([]byte, 2*UPKEMessageSize)
	for i := range plain {
		plain[i] = ct.C2[i] ^ pad[i]
	}

	message := plain[:UPKEMessageSize]
	delta, err := SecretKeyFromBytes(plain[UPKEMessageSize:])
	if err != nil {
		// A non-canonical delta means the ciphertext was not produced
		// under the key pair matching priv.
		return nil, SecretKey{}, DecryptionFailureError
	}

	next, err := UpdatePrivate(priv, delta)
	if err != nil {
		return nil, SecretKey{}, err
	}

	return message, next, nil
}

///
/// Path secrets
///

const pathKeyPairLabel = "treekem path key pair"

// PathSecret is the random seed distributed along a tree path to ratchet
// one ancestor's key pair forward.
type PathSecret struct {
	Seed []byte `tls:"head=1"`
}

func NewPathSecret() (PathSecret, error) {
	seed, err := randomBytes(UPKEMessageSize)
	if err != nil {
		return PathSecret{}, err
	}
	return PathSecret{Seed: seed}, nil
}

// DeriveKeyPair expands the seed into a fresh key pair.  This is the bridge
// between "a path secret was delivered" and "a node's key pair changed".
func (ps PathSecret) DeriveKeyPair() (SecretKey, PublicKey, error) {
	if len(ps.Seed) != UPKEMessageSize {
		return SecretKey{}, PublicKey{}, InvalidKeyEncodingError
	}

	ikm := hkdfExpand(ps.Seed, pathKeyPairLabel, 64)
	s := ristretto255.NewScalar().FromUniformBytes(ikm)

	priv := SecretKey{Data: s.Encode(nil)}
	pub, err := priv.PublicKey()
	if err != nil {
		return SecretKey{}, PublicKey{}, err
	}
	return priv, pub, nil
}
