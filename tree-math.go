package treekem

// The functions below provide the index calculus for the ratchet tree.  The
// tree is a complete binary tree addressed like a 1-indexed binary heap: the
// root is node 1, and a node x has children 2x and 2x+1.  For a capacity of
// C leaves (C a power of two), the addressable ids are 1..2C-1 and the
// leaves occupy the bottom level, ids C..2C-1.  For example, a capacity-4
// tree:
//
//                 1
//            2         3
//          4   5     6   7
//
// Relationships between nodes are computed purely by index arithmetic
// (parent(x) = x/2), so traversals never thread a height parameter and the
// tree storage can be a flat array indexed by id.

type NodeID uint32

const rootID NodeID = 1

func parentID(x NodeID) NodeID {
	return x / 2
}

func leftChildID(x NodeID) NodeID {
	return 2 * x
}

func rightChildID(x NodeID) NodeID {
	return 2*x + 1
}

func isPowerOfTwo(x uint32) bool {
	return x != 0 && x&(x-1) == 0
}

// Number of addressable nodes for a tree with capacity leaves
func nodeWidth(capacity uint32) uint32 {
	return 2*capacity - 1
}

// Id of the leftmost leaf; leaves are capacity..2*capacity-1
func firstLeafID(capacity uint32) NodeID {
	return NodeID(capacity)
}

func isLeafID(x NodeID, capacity uint32) bool {
	return uint32(x) >= capacity
}

func validNodeID(x NodeID, capacity uint32) bool {
	return x >= 1 && uint32(x) <= nodeWidth(capacity)
}

// Path from x's immediate parent up to the root, nearest-first
func ancestorIDs(x NodeID) []NodeID {
	ids := []NodeID{}
	for p := parentID(x); p >= rootID; p = parentID(p) {
		ids = append(ids, p)
		if p == rootID {
			break
		}
	}
	return ids
}

// Deepest node that lies on both a's and b's paths to the root
func sharedAncestorID(a, b NodeID) NodeID {
	for a != b {
		if a > b {
			a = parentID(a)
		} else {
			b = parentID(b)
		}
	}
	return a
}

// Ids that are ancestors of both a and b: the shared ancestor and everything
// above it.  For distinct leaves this is exactly the set of nodes whose key
// pairs both sides are entitled to hold.
func sharedAncestorIDs(a, b NodeID) []NodeID {
	meet := sharedAncestorID(a, b)
	ids := []NodeID{}
	if meet != a && meet != b {
		ids = append(ids, meet)
	}
	return append(ids, ancestorIDs(meet)...)
}
