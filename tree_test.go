package treekem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestTree fills the first occupied leaves of a capacity-sized tree with
// fresh key pairs and ratchets each leaf's path, so every node on a used
// path holds a full key pair.
func newTestTree(t *testing.T, capacity uint32, occupied int) *BinaryTree {
	tree, err := NewBinaryTree(capacity)
	require.Nil(t, err)

	for i := 0; i < occupied; i++ {
		leaf, ok := tree.LeftmostOpenLeaf()
		require.True(t, ok)

		priv, err := NewSecretKey()
		require.Nil(t, err)
		pub, err := priv.PublicKey()
		require.Nil(t, err)
		tree.nodeAt(leaf).setKeyPair(pub, priv)

		ancestors, err := tree.Ancestors(leaf)
		require.Nil(t, err)
		for _, id := range ancestors {
			ps, err := NewPathSecret()
			require.Nil(t, err)
			candPriv, candPub, err := ps.DeriveKeyPair()
			require.Nil(t, err)

			node := tree.nodeAt(id)
			if node.Empty() {
				node.setKeyPair(candPub, candPriv)
				continue
			}
			newPub, err := UpdatePublic(*node.PublicKey, candPub)
			require.Nil(t, err)
			newPriv, err := UpdatePrivate(*node.secretKey, candPriv)
			require.Nil(t, err)
			node.setKeyPair(newPub, newPriv)
		}
	}

	return tree
}

func TestNewBinaryTree(t *testing.T) {
	tree, err := NewBinaryTree(4)
	require.Nil(t, err)
	require.Equal(t, uint32(4), tree.Capacity)

	for id := NodeID(1); id <= 7; id++ {
		node, err := tree.NodeAt(id)
		require.Nil(t, err)
		require.True(t, node.Empty())
	}
	_, err = tree.NodeAt(0)
	require.Equal(t, NodeNotFoundError, err)
	_, err = tree.NodeAt(8)
	require.Equal(t, NodeNotFoundError, err)

	_, err = NewBinaryTree(3)
	require.Error(t, err)
	_, err = NewBinaryTree(0)
	require.Error(t, err)
}

func TestLeftmostOpenLeaf(t *testing.T) {
	tree := newTestTree(t, 4, 0)

	for i := 0; i < 4; i++ {
		leaf, ok := tree.LeftmostOpenLeaf()
		require.True(t, ok)
		require.Equal(t, NodeID(4+i), leaf)

		priv, err := NewSecretKey()
		require.Nil(t, err)
		pub, err := priv.PublicKey()
		require.Nil(t, err)
		tree.nodeAt(leaf).setKeyPair(pub, priv)
	}

	_, ok := tree.LeftmostOpenLeaf()
	require.False(t, ok)

	// Blanking a leaf reopens it
	tree.nodeAt(5).Blank()
	leaf, ok := tree.LeftmostOpenLeaf()
	require.True(t, ok)
	require.Equal(t, NodeID(5), leaf)
}

func TestBlankNodePath(t *testing.T) {
	// Three occupied leaves: 4, 5, 6.  Removing 5 must cover leaf 4 and
	// node 3 (which subsumes leaf 6), but not node 2 or the root.
	tree := newTestTree(t, 4, 3)

	ancestors, err := tree.Ancestors(5)
	require.Nil(t, err)
	require.Equal(t, []NodeID{2, 1}, ancestors)

	cover := tree.BlankNodePath(5, ancestors)
	require.Equal(t, []NodeID{4, 3}, cover)

	// Removing 6 covers node 2 (subsuming 4 and 5); leaf 7 is empty and
	// contributes nothing.
	ancestors, err = tree.Ancestors(6)
	require.Nil(t, err)
	cover = tree.BlankNodePath(6, ancestors)
	require.Equal(t, []NodeID{2}, cover)
}

func TestRootSecret(t *testing.T) {
	tree := newTestTree(t, 4, 0)
	_, err := tree.rootSecret()
	require.Equal(t, MissingKeyMaterialError, err)

	tree = newTestTree(t, 4, 2)
	s1, err := tree.rootSecret()
	require.Nil(t, err)
	require.NotEmpty(t, s1)

	// Another path update changes the root secret
	s1 = dup(s1)
	tree2 := newTestTree(t, 4, 3)
	s2, err := tree2.rootSecret()
	require.Nil(t, err)
	require.NotEqual(t, s1, s2)
}

func TestCombineAll(t *testing.T) {
	tree := newTestTree(t, 4, 3)

	ps, err := NewPathSecret()
	require.Nil(t, err)
	priv, pub, err := ps.DeriveKeyPair()
	require.Nil(t, err)

	before := tree.clone()
	require.Nil(t, tree.combineAll(pub, priv, 5))

	// Skipped node untouched, others advanced consistently
	require.True(t, before.nodeAt(5).PublicKey.Equals(*tree.nodeAt(5).PublicKey))
	for _, id := range []NodeID{1, 2, 3, 4, 6} {
		node := tree.nodeAt(id)
		require.False(t, before.nodeAt(id).PublicKey.Equals(*node.PublicKey))

		derived, err := node.secretKey.PublicKey()
		require.Nil(t, err)
		require.True(t, node.PublicKey.Equals(derived))
	}
}

func TestTreeSerializeEntitlement(t *testing.T) {
	tree := newTestTree(t, 4, 3)

	// Welcoming a joiner at leaf 7, from the member at leaf 6: private
	// keys for node 3 and the root only.
	snap, err := tree.Serialize(7, 6)
	require.Nil(t, err)

	privIDs := map[NodeID]bool{}
	for _, nk := range snap.PrivateKeys {
		privIDs[nk.ID] = true
	}
	require.Equal(t, map[NodeID]bool{1: true, 3: true}, privIDs)

	// From the member at leaf 4, entitlement shrinks to the root alone
	snap, err = tree.Serialize(7, 4)
	require.Nil(t, err)
	privIDs = map[NodeID]bool{}
	for _, nk := range snap.PrivateKeys {
		privIDs[nk.ID] = true
	}
	require.Equal(t, map[NodeID]bool{1: true}, privIDs)

	// All occupied nodes appear publicly
	require.Equal(t, 6, len(snap.PublicKeys))

	_, err = tree.Serialize(9, 4)
	require.Equal(t, NodeNotFoundError, err)
}

func TestTreeSnapshotRoundTrip(t *testing.T) {
	tree := newTestTree(t, 4, 3)

	restored, err := DeserializeTree(tree.snapshotLocal())
	require.Nil(t, err)
	require.Equal(t, tree.Capacity, restored.Capacity)

	for id := NodeID(1); validNodeID(id, 4); id++ {
		orig := tree.nodeAt(id)
		copied := restored.nodeAt(id)
		require.Equal(t, orig.Empty(), copied.Empty())
		if orig.Empty() {
			continue
		}
		require.True(t, orig.PublicKey.Equals(*copied.PublicKey))
		require.Equal(t, orig.hasPrivate(), copied.hasPrivate())
		if orig.hasPrivate() {
			require.Equal(t, orig.secretKey.Data, copied.secretKey.Data)
		}
	}

	origRoot, err := tree.rootSecret()
	require.Nil(t, err)
	restoredRoot, err := restored.rootSecret()
	require.Nil(t, err)
	require.Equal(t, origRoot, restoredRoot)
}
