package treekem

// Wire payloads consumed and produced by the transport layer.  Everything is
// framed with TLS syntax: big-endian, length-prefixed per the head tags.

// struct {
//     NodeID id;
//     opaque data<0..255>;
// } NodeKey;
type NodeKey struct {
	ID   NodeID
	Data []byte `tls:"head=1"`
}

type NodeCredential struct {
	ID         NodeID
	Credential Credential
}

// TreeSnapshot is the serialized form of a BinaryTree: three id-keyed lists
// plus the declared capacity.  Inside a WelcomeMessage the private-key list
// is bounded to the joiner's entitlement.
type TreeSnapshot struct {
	Capacity    uint32
	PublicKeys  []NodeKey        `tls:"head=4"`
	PrivateKeys []NodeKey        `tls:"head=4"`
	Credentials []NodeCredential `tls:"head=4"`
}

// AncestorUpdate carries one level of a path update.  PublicDelta is what
// receivers add to their copy of the node's public key: the candidate
// public key plus the UPKE blinding term, or the bare candidate when the
// updater bootstrapped an empty node (in which case there is no ciphertext
// either, since there was no key to encrypt under).
type AncestorUpdate struct {
	ID                  NodeID
	PublicDelta         PublicKey
	EncryptedPathSecret *UPKECiphertext `tls:"optional"`
}

// UpdateMaterial is the plaintext of an UpdateMessage: the updater's new
// leaf key and credential plus one entry per ancestor, nearest-first.
type UpdateMaterial struct {
	LeafPublicKey PublicKey
	Credential    Credential
	Ancestors     []AncestorUpdate `tls:"head=4"`
}

// UpdateMessage is the AEAD envelope of an UpdateMaterial, sealed under the
// key derived from the pre-update root node secret.
type UpdateMessage struct {
	Ciphertext []byte `tls:"head=4"`
	Nonce      []byte `tls:"head=1"`
}

// HybridCiphertext is a one-shot envelope to an X25519 public key:
// ephemeral ECDH, HKDF-SHA-512, AES-256-GCM.
type HybridCiphertext struct {
	EphemeralKey ECDHPublicKey
	Ciphertext   []byte `tls:"head=2"`
	Nonce        []byte `tls:"head=1"`
}

// WelcomeMessage hands a joiner the current group key (hybrid-wrapped to
// its long-term ECDH key), the bounded tree snapshot, and the group name,
// the latter two sealed under that same group key.
type WelcomeMessage struct {
	WrappedKey HybridCiphertext
	Tree       UpdateMessage
	GroupName  UpdateMessage
}

// BlankMessage delivers the removal secret to one covering node.  Receivers
// act on the first entry they can decrypt: the recovered public key must
// match the key pair derived from the recovered path secret, which is the
// only authentication the XOR-based UPKE affords.
type BlankMessage struct {
	BlankedNode         NodeID
	EncryptUnder        NodeID
	EncryptedPublicKey  *UPKECiphertext `tls:"optional"`
	EncryptedPathSecret *UPKECiphertext `tls:"optional"`
}

type BlankMessageList struct {
	Messages []BlankMessage `tls:"head=4"`
}

// EncryptedMessage is an application payload under the counter-indexed
// message key.  The counter travels in the clear so receivers can derive
// the key for out-of-order deliveries.
type EncryptedMessage struct {
	Ciphertext []byte `tls:"head=4"`
	Nonce      []byte `tls:"head=1"`
	Counter    uint64
}
