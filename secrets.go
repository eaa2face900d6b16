package treekem

import (
	"crypto/sha512"
)

// nodeSecretFrom is the local-only secret owned by a node holding both of
// its keys: the concatenation pk || sk.
func nodeSecretFrom(pub PublicKey, priv SecretKey) []byte {
	out := make([]byte, 0, len(pub.Data)+len(priv.Data))
	out = append(out, pub.Data...)
	return append(out, priv.Data...)
}

const (
	groupKeyLabel   = "treekem group key"
	messageKeyLabel = "treekem message key"
)

// deriveGroupKey turns a node secret (in practice, the root's) into the
// symmetric key protecting update material and the welcome tree snapshot.
func deriveGroupKey(nodeSecret []byte) []byte {
	return hkdfExpand(nodeSecret, groupKeyLabel, aeadKeySize)
}

// deriveMessageKey is the counter-indexed application key: SHA-512 applied
// counter times to SHA-512 of the root node secret, then expanded.  Any
// counter can be derived at any time, so unordered mesh delivery needs no
// skipped-key cache.
func deriveMessageKey(rootSecret []byte, counter uint64) []byte {
	h := sha512.Sum512(rootSecret)
	base := h[:]
	for i := uint64(0); i < counter; i++ {
		next := sha512.Sum512(base)
		base = next[:]
	}
	return hkdfExpand(base, messageKeyLabel, aeadKeySize)
}
