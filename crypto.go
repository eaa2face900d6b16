package treekem

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// Canonical ristretto255 encodings
	SecretKeySize = 32
	PublicKeySize = 32

	aeadKeySize   = 32
	aeadNonceSize = 12
)

var (
	GroupNotFoundError      = fmt.Errorf("treekem: unknown group")
	NoOpenLeafError         = fmt.Errorf("treekem: no open leaf in tree")
	NodeNotFoundError       = fmt.Errorf("treekem: node not found")
	MissingCredentialsError = fmt.Errorf("treekem: missing credentials")
	MissingKeyMaterialError = fmt.Errorf("treekem: missing key material")
	InvalidKeyEncodingError = fmt.Errorf("treekem: invalid key encoding")
	DecryptionFailureError  = fmt.Errorf("treekem: decryption failure")
)

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("treekem.crypto: csprng failure: %v", err)
	}
	return b, nil
}

///
/// Scalar / point key pairs over ristretto255
///

// SecretKey is a scalar mod the group order, carried as its 32-byte
// canonical encoding.
type SecretKey struct {
	Data []byte `tls:"head=1"`
}

// PublicKey is the curve point scalar*G, carried as its 32-byte canonical
// encoding.
type PublicKey struct {
	Data []byte `tls:"head=1"`
}

func NewSecretKey() (SecretKey, error) {
	seed, err := randomBytes(64)
	if err != nil {
		return SecretKey{}, err
	}

	s := ristretto255.NewScalar().FromUniformBytes(seed)
	return SecretKey{Data: s.Encode(nil)}, nil
}

func SecretKeyFromBytes(data []byte) (SecretKey, error) {
	if len(data) != SecretKeySize {
		return SecretKey{}, InvalidKeyEncodingError
	}

	if err := ristretto255.NewScalar().Decode(data); err != nil {
		return SecretKey{}, InvalidKeyEncodingError
	}

	return SecretKey{Data: dup(data)}, nil
}

func (k SecretKey) scalar() (*ristretto255.Scalar, error) {
	s := ristretto255.NewScalar()
	if err := s.Decode(k.Data); err != nil {
		return nil, InvalidKeyEncodingError
	}
	return s, nil
}

func (k SecretKey) PublicKey() (PublicKey, error) {
	s, err := k.scalar()
	if err != nil {
		return PublicKey{}, err
	}

	p := ristretto255.NewElement().ScalarBaseMult(s)
	return PublicKey{Data: p.Encode(nil)}, nil
}

func (k PublicKey) element() (*ristretto255.Element, error) {
	p := ristretto255.NewElement()
	if err := p.Decode(k.Data); err != nil {
		return nil, InvalidKeyEncodingError
	}
	return p, nil
}

func (k PublicKey) Equals(o PublicKey) bool {
	return bytes.Equal(k.Data, o.Data)
}

// UpdatePublic merges two public keys by point addition.  Together with
// UpdatePrivate this is the ratchet step: a node's key pair is only ever
// advanced by combining, never regenerated.
func UpdatePublic(a, b PublicKey) (PublicKey, error) {
	pa, err := a.element()
	if err != nil {
		return PublicKey{}, err
	}
	pb, err := b.element()
	if err != nil {
		return PublicKey{}, err
	}

	sum := ristretto255.NewElement().Add(pa, pb)
	return PublicKey{Data: sum.Encode(nil)}, nil
}

// UpdatePrivate merges two secret keys by scalar addition mod the group
// order; the result corresponds to UpdatePublic of the matching public keys.
func UpdatePrivate(a, b SecretKey) (SecretKey, error) {
	sa, err := a.scalar()
	if err != nil {
		return SecretKey{}, err
	}
	sb, err := b.scalar()
	if err != nil {
		return SecretKey{}, err
	}

	sum := ristretto255.NewScalar().Add(sa, sb)
	return SecretKey{Data: sum.Encode(nil)}, nil
}

///
/// EdDSA signing keys
///

type SignaturePublicKey struct {
	Data []byte `tls:"head=1"`
}

type SignaturePrivateKey struct {
	Data      []byte `tls:"head=1"`
	PublicKey SignaturePublicKey
}

func NewSignaturePrivateKey() (SignaturePrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SignaturePrivateKey{}, fmt.Errorf("treekem.crypto: signature keygen: %v", err)
	}

	return SignaturePrivateKey{
		Data:      priv,
		PublicKey: SignaturePublicKey{Data: pub},
	}, nil
}

func (k SignaturePrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(k.Data), message)
}

func (k SignaturePublicKey) Verify(message, signature []byte) bool {
	if len(k.Data) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(k.Data), message, signature)
}

///
/// X25519 keys for the welcome envelope and pairwise channels
///

type ECDHPublicKey struct {
	Data []byte `tls:"head=1"`
}

type ECDHPrivateKey struct {
	Data      []byte `tls:"head=1"`
	PublicKey ECDHPublicKey
}

func NewECDHPrivateKey() (ECDHPrivateKey, error) {
	priv, err := randomBytes(curve25519.ScalarSize)
	if err != nil {
		return ECDHPrivateKey{}, err
	}

	// RFC 7748 clamping
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return ECDHPrivateKey{}, fmt.Errorf("treekem.crypto: ecdh keygen: %v", err)
	}

	return ECDHPrivateKey{
		Data:      priv,
		PublicKey: ECDHPublicKey{Data: pub},
	}, nil
}

func (k ECDHPrivateKey) SharedSecret(pub ECDHPublicKey) ([]byte, error) {
	ss, err := curve25519.X25519(k.Data, pub.Data)
	if err != nil {
		return nil, fmt.Errorf("treekem.crypto: ecdh: %v", err)
	}
	return ss, nil
}

func (k ECDHPublicKey) Equals(o ECDHPublicKey) bool {
	return bytes.Equal(k.Data, o.Data)
}

///
/// Symmetric primitives
///

// hkdfExpand derives length bytes from secret with a fixed label, using
// HKDF-SHA-512 with an empty salt.
func hkdfExpand(secret []byte, label string, length int) []byte {
	r := hkdf.New(sha512.New, secret, nil, []byte(label))
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(fmt.Errorf("treekem.crypto: hkdf: %v", err))
	}
	return out
}

func newAEADNonce() ([]byte, error) {
	return randomBytes(aeadNonceSize)
}

func aeadSeal(key, nonce, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("treekem.crypto: aead: %v", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("treekem.crypto: aead: %v", err)
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

func aeadOpen(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("treekem.crypto: aead: %v", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("treekem.crypto: aead: %v", err)
	}

	pt, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// Authentication failure is routine during multi-group trial
		// decryption; callers dispatch on the sentinel.
		return nil, DecryptionFailureError
	}
	return pt, nil
}

const welcomeWrapLabel = "treekem welcome key wrap"

// hybridSeal one-shot encrypts plaintext to an X25519 public key: ephemeral
// ECDH, HKDF-SHA-512, AES-256-GCM.
func hybridSeal(recipient ECDHPublicKey, plaintext []byte) (HybridCiphertext, error) {
	eph, err := NewECDHPrivateKey()
	if err != nil {
		return HybridCiphertext{}, err
	}

	ss, err := eph.SharedSecret(recipient)
	if err != nil {
		return HybridCiphertext{}, err
	}
	defer zeroize(ss)

	key := hkdfExpand(ss, welcomeWrapLabel, aeadKeySize)
	nonce, err := newAEADNonce()
	if err != nil {
		return HybridCiphertext{}, err
	}

	ct, err := aeadSeal(key, nonce, plaintext)
	if err != nil {
		return HybridCiphertext{}, err
	}

	return HybridCiphertext{
		EphemeralKey: eph.PublicKey,
		Ciphertext:   ct,
		Nonce:        nonce,
	}, nil
}

func hybridOpen(recipient ECDHPrivateKey, envelope HybridCiphertext) ([]byte, error) {
	ss, err := recipient.SharedSecret(envelope.EphemeralKey)
	if err != nil {
		return nil, err
	}
	defer zeroize(ss)

	key := hkdfExpand(ss, welcomeWrapLabel, aeadKeySize)
	return aeadOpen(key, envelope.Nonce, envelope.Ciphertext)
}
