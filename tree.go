package treekem

import (
	"fmt"
)

// BinaryTree owns the node arena for one group.  Nodes are addressable only
// by their 1-indexed heap id; slot 0 is unused padding so that ids map
// directly onto the backing array.
type BinaryTree struct {
	Capacity uint32
	nodes    []Node
}

func NewBinaryTree(capacity uint32) (*BinaryTree, error) {
	if !isPowerOfTwo(capacity) {
		return nil, fmt.Errorf("treekem.tree: capacity %d is not a power of two", capacity)
	}

	return &BinaryTree{
		Capacity: capacity,
		nodes:    make([]Node, nodeWidth(capacity)+1),
	}, nil
}

func (t *BinaryTree) NodeAt(id NodeID) (*Node, error) {
	if !validNodeID(id, t.Capacity) {
		return nil, NodeNotFoundError
	}
	return &t.nodes[id], nil
}

// nodeAt skips range checking; callers have already validated id.
func (t *BinaryTree) nodeAt(id NodeID) *Node {
	return &t.nodes[id]
}

// LeftmostOpenLeaf scans leaf ids in ascending order and returns the first
// without a public key.  Every member applies this same rule, so leaf
// assignment needs no coordination.
func (t *BinaryTree) LeftmostOpenLeaf() (NodeID, bool) {
	for id := firstLeafID(t.Capacity); validNodeID(id, t.Capacity); id++ {
		if t.nodes[id].Empty() {
			return id, true
		}
	}
	return 0, false
}

// Ancestors returns the path from id's immediate parent up to the root,
// nearest-first.
func (t *BinaryTree) Ancestors(id NodeID) ([]NodeID, error) {
	if !validNodeID(id, t.Capacity) {
		return nil, NodeNotFoundError
	}
	return ancestorIDs(id), nil
}

// BlankNodePath computes the resolution for a removal: the minimal set of
// occupied nodes reachable from the root that are neither the removed node
// nor one of its ancestors.  Those nodes must each receive the removal
// secret directly, because the normal path update cannot cover them.
func (t *BinaryTree) BlankNodePath(id NodeID, ancestors []NodeID) []NodeID {
	onPath := map[NodeID]bool{id: true}
	for _, a := range ancestors {
		onPath[a] = true
	}

	var resolve func(NodeID) []NodeID
	resolve = func(n NodeID) []NodeID {
		if n == id {
			return nil
		}

		if onPath[n] {
			// Still on the removed path; cover the subtrees instead
			return append(resolve(leftChildID(n)), resolve(rightChildID(n))...)
		}

		if !t.nodes[n].Empty() {
			return []NodeID{n}
		}

		if isLeafID(n, t.Capacity) {
			return nil
		}
		return append(resolve(leftChildID(n)), resolve(rightChildID(n))...)
	}

	return resolve(rootID)
}

func (t *BinaryTree) rootSecret() ([]byte, error) {
	root := t.nodeAt(rootID)
	if root.nodeSecret == nil {
		return nil, MissingKeyMaterialError
	}
	return root.nodeSecret, nil
}

// combineAll ratchets the whole tree forward by merging the given key pair
// into every occupied node except skip: public keys unconditionally, secret
// keys where held.
func (t *BinaryTree) combineAll(pub PublicKey, priv SecretKey, skip NodeID) error {
	for id := rootID; validNodeID(id, t.Capacity); id++ {
		node := t.nodeAt(id)
		if id == skip || node.Empty() {
			continue
		}

		merged, err := UpdatePublic(*node.PublicKey, pub)
		if err != nil {
			return err
		}
		node.PublicKey = &merged

		if node.hasPrivate() {
			sk, err := UpdatePrivate(*node.secretKey, priv)
			if err != nil {
				return err
			}
			node.secretKey = &sk
		}
		node.refreshSecret()
	}
	return nil
}

///
/// Serialization
///

// Serialize exports the tree as seen by a joiner at viewerLeaf, welcomed by
// the member at peerLeaf: every occupied node's public key and credential,
// but private keys only for nodes that are ancestors of both leaves.  That
// bounds what the joiner learns to exactly the path it is entitled to.
func (t *BinaryTree) Serialize(viewerLeaf, peerLeaf NodeID) (*TreeSnapshot, error) {
	if !validNodeID(viewerLeaf, t.Capacity) || !validNodeID(peerLeaf, t.Capacity) {
		return nil, NodeNotFoundError
	}

	shared := map[NodeID]bool{}
	for _, id := range sharedAncestorIDs(viewerLeaf, peerLeaf) {
		shared[id] = true
	}

	return t.snapshot(func(id NodeID) bool { return shared[id] }), nil
}

// snapshotLocal exports everything, private keys included; used only for
// member persistence, never for the wire.
func (t *BinaryTree) snapshotLocal() *TreeSnapshot {
	return t.snapshot(func(NodeID) bool { return true })
}

func (t *BinaryTree) snapshot(exportPrivate func(NodeID) bool) *TreeSnapshot {
	snap := &TreeSnapshot{Capacity: t.Capacity}
	for id := rootID; validNodeID(id, t.Capacity); id++ {
		node := t.nodeAt(id)
		if node.Empty() {
			continue
		}

		snap.PublicKeys = append(snap.PublicKeys, NodeKey{ID: id, Data: dup(node.PublicKey.Data)})
		if node.hasPrivate() && exportPrivate(id) {
			snap.PrivateKeys = append(snap.PrivateKeys, NodeKey{ID: id, Data: dup(node.secretKey.Data)})
		}
		if node.Credential != nil {
			snap.Credentials = append(snap.Credentials, NodeCredential{ID: id, Credential: *node.Credential})
		}
	}
	return snap
}

// DeserializeTree is the exact inverse of Serialize: it rebuilds a tree
// from the three id-keyed lists plus the declared capacity.
func DeserializeTree(snap *TreeSnapshot) (*BinaryTree, error) {
	t, err := NewBinaryTree(snap.Capacity)
	if err != nil {
		return nil, err
	}

	for _, nk := range snap.PublicKeys {
		node, err := t.NodeAt(nk.ID)
		if err != nil {
			return nil, err
		}
		pk := PublicKey{Data: dup(nk.Data)}
		node.PublicKey = &pk
	}

	for _, nk := range snap.PrivateKeys {
		node, err := t.NodeAt(nk.ID)
		if err != nil {
			return nil, err
		}
		if node.Empty() {
			return nil, fmt.Errorf("treekem.tree: private key for empty node %d", nk.ID)
		}
		sk, err := SecretKeyFromBytes(nk.Data)
		if err != nil {
			return nil, err
		}
		node.secretKey = &sk
		node.refreshSecret()
	}

	for _, nc := range snap.Credentials {
		node, err := t.NodeAt(nc.ID)
		if err != nil {
			return nil, err
		}
		cred := nc.Credential
		node.Credential = &cred
	}

	return t, nil
}

func (t *BinaryTree) clone() *BinaryTree {
	out := &BinaryTree{
		Capacity: t.Capacity,
		nodes:    make([]Node, len(t.nodes)),
	}
	for i, n := range t.nodes {
		out.nodes[i] = n.clone()
	}
	return out
}

func (t *BinaryTree) Dump(label string) {
	fmt.Printf("===== tree(%s) cap=%d =====\n", label, t.Capacity)
	for id := rootID; validNodeID(id, t.Capacity); id++ {
		n := t.nodeAt(id)
		switch {
		case n.Empty():
			fmt.Printf("  %2d _\n", id)
		case n.hasPrivate():
			fmt.Printf("  %2d [%x...] +sk\n", id, n.PublicKey.Data[:4])
		default:
			fmt.Printf("  %2d [%x...]\n", id, n.PublicKey.Data[:4])
		}
	}
}
