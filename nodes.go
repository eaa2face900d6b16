package treekem

// Node is one arena slot of the ratchet tree.  A node with no public key is
// empty; a node with keys but a wiped credential is a mid-removal
// transient; a full wipe clears all four fields.  The node secret exists
// only while both keys are held.
type Node struct {
	PublicKey  *PublicKey
	Credential *Credential

	secretKey  *SecretKey
	nodeSecret []byte
}

func (n *Node) Empty() bool {
	return n.PublicKey == nil
}

func (n *Node) hasPrivate() bool {
	return n.secretKey != nil
}

// Blank wipes the node completely.
func (n *Node) Blank() {
	if n.secretKey != nil {
		zeroize(n.secretKey.Data)
	}
	zeroize(n.nodeSecret)
	n.PublicKey = nil
	n.Credential = nil
	n.secretKey = nil
	n.nodeSecret = nil
}

func (n *Node) setKeyPair(pub PublicKey, priv SecretKey) {
	n.PublicKey = &pub
	n.secretKey = &priv
	n.refreshSecret()
}

// setPublicOnly installs a public key the local member holds no secret for,
// e.g. another member's freshly updated leaf.
func (n *Node) setPublicOnly(pub PublicKey) {
	n.PublicKey = &pub
	n.secretKey = nil
	n.nodeSecret = nil
}

func (n *Node) refreshSecret() {
	if n.PublicKey == nil || n.secretKey == nil {
		n.nodeSecret = nil
		return
	}
	n.nodeSecret = nodeSecretFrom(*n.PublicKey, *n.secretKey)
}

func (n Node) clone() Node {
	out := Node{}
	if n.PublicKey != nil {
		pk := PublicKey{Data: dup(n.PublicKey.Data)}
		out.PublicKey = &pk
	}
	if n.Credential != nil {
		cred := *n.Credential
		out.Credential = &cred
	}
	if n.secretKey != nil {
		sk := SecretKey{Data: dup(n.secretKey.Data)}
		out.secretKey = &sk
	}
	out.nodeSecret = dup(n.nodeSecret)
	if len(out.nodeSecret) == 0 {
		out.nodeSecret = nil
	}
	return out
}
