package treekem

import (
	"fmt"
	"sort"

	syntax "github.com/cisco/go-tls-syntax"
)

// Group is one member's local view of a conversation: the shared ratchet
// tree plus this member's binding into it.  Threshold and Admins are
// advisory data; nothing here gates operations on them.
type Group struct {
	Threshold uint32
	Admins    []NodeID
	Tree      *BinaryTree

	// LeafID is assigned once by AddToGroup and immutable afterwards;
	// zero means unbound.
	LeafID  NodeID
	Counter uint64
}

// Member is one device identity.  All operations on a given Member must be
// serialized by the caller; interleaved tree mutations on the same group
// desynchronize the root secret.
type Member struct {
	Pseudonym  []byte
	ECDHKey    ECDHPrivateKey
	SigKey     SignaturePrivateKey
	Credential Credential
	Groups     map[string]*Group
}

func NewMember(pseudonym string) (*Member, error) {
	ecdhKey, err := NewECDHPrivateKey()
	if err != nil {
		return nil, err
	}

	sigKey, err := NewSignaturePrivateKey()
	if err != nil {
		return nil, err
	}

	return &Member{
		Pseudonym:  []byte(pseudonym),
		ECDHKey:    ecdhKey,
		SigKey:     sigKey,
		Credential: NewCredential(pseudonym, sigKey, ecdhKey.PublicKey),
		Groups:     map[string]*Group{},
	}, nil
}

func (m *Member) group(name string) (*Group, error) {
	g, ok := m.Groups[name]
	if !ok {
		return nil, GroupNotFoundError
	}
	return g, nil
}

func (m *Member) boundGroup(name string) (*Group, error) {
	g, err := m.group(name)
	if err != nil {
		return nil, err
	}
	if g.LeafID == 0 {
		return nil, fmt.Errorf("treekem.member: not yet bound to a leaf in group %q", name)
	}
	return g, nil
}

// CreateGroup allocates a fresh empty tree.  The creator's eventual leaf is
// the leftmost one, which is recorded as the initial admin.
func (m *Member) CreateGroup(name string, capacity, threshold uint32) error {
	if _, ok := m.Groups[name]; ok {
		return fmt.Errorf("treekem.member: group %q already exists", name)
	}

	tree, err := NewBinaryTree(capacity)
	if err != nil {
		return err
	}

	m.Groups[name] = &Group{
		Threshold: threshold,
		Admins:    []NodeID{firstLeafID(capacity)},
		Tree:      tree,
		Counter:   1,
	}
	return nil
}

// AddToGroup claims the leftmost open leaf, installs a fresh leaf key pair
// and this member's credential, and ratchets the path to the root.  The
// returned UpdateMessage is sealed under the pre-update root key so every
// current member can apply it; it is nil for the group creator, whose tree
// had no root secret and no peers to inform.
func (m *Member) AddToGroup(name string) (*UpdateMessage, error) {
	g, err := m.group(name)
	if err != nil {
		return nil, err
	}
	if g.LeafID != 0 {
		return nil, fmt.Errorf("treekem.member: already bound to leaf %d in group %q", g.LeafID, name)
	}

	leaf, ok := g.Tree.LeftmostOpenLeaf()
	if !ok {
		return nil, NoOpenLeafError
	}

	// The key every other member currently holds; capture before the
	// path update advances it.
	preRoot, preRootErr := g.Tree.rootSecret()
	if preRootErr == nil {
		preRoot = dup(preRoot)
	}

	priv, err := NewSecretKey()
	if err != nil {
		return nil, err
	}
	pub, err := priv.PublicKey()
	if err != nil {
		return nil, err
	}

	node := g.Tree.nodeAt(leaf)
	node.setKeyPair(pub, priv)
	cred := m.Credential
	node.Credential = &cred

	g.LeafID = leaf

	material, err := m.updatePath(g, leaf)
	if err != nil {
		return nil, err
	}

	if preRootErr != nil {
		return nil, nil
	}
	return sealUpdateMaterial(material, preRoot)
}

// KeyRefresh re-runs the add machinery from the member's own leaf for
// post-compromise recovery: fresh leaf key pair, fresh path secrets, same
// leaf and credential.
func (m *Member) KeyRefresh(name string) (*UpdateMessage, error) {
	g, err := m.boundGroup(name)
	if err != nil {
		return nil, err
	}

	preRoot, err := g.Tree.rootSecret()
	if err != nil {
		return nil, err
	}
	preRoot = dup(preRoot)

	priv, err := NewSecretKey()
	if err != nil {
		return nil, err
	}
	pub, err := priv.PublicKey()
	if err != nil {
		return nil, err
	}

	node := g.Tree.nodeAt(g.LeafID)
	if node.Credential == nil {
		return nil, MissingCredentialsError
	}
	node.setKeyPair(pub, priv)

	material, err := m.updatePath(g, g.LeafID)
	if err != nil {
		return nil, err
	}
	return sealUpdateMaterial(material, preRoot)
}

// updatePath ratchets every ancestor of leaf, nearest-first.  Occupied
// ancestors get a fresh path secret encrypted under their current key and
// their key pair advanced by blinding term plus candidate; empty ancestors
// are bootstrapped with the candidate directly.
func (m *Member) updatePath(g *Group, leaf NodeID) (*UpdateMaterial, error) {
	leafNode := g.Tree.nodeAt(leaf)
	if leafNode.Empty() {
		return nil, MissingKeyMaterialError
	}
	if leafNode.Credential == nil {
		return nil, MissingCredentialsError
	}

	material := &UpdateMaterial{
		LeafPublicKey: *leafNode.PublicKey,
		Credential:    *leafNode.Credential,
	}

	ancestors, err := g.Tree.Ancestors(leaf)
	if err != nil {
		return nil, err
	}

	for _, id := range ancestors {
		ps, err := NewPathSecret()
		if err != nil {
			return nil, err
		}
		candPriv, candPub, err := ps.DeriveKeyPair()
		if err != nil {
			return nil, err
		}

		node := g.Tree.nodeAt(id)
		if node.Empty() {
			// Tree bootstrap: assign the candidate directly
			node.setKeyPair(candPub, candPriv)
			material.Ancestors = append(material.Ancestors, AncestorUpdate{
				ID:          id,
				PublicDelta: candPub,
			})
			continue
		}

		oldPub := *node.PublicKey
		ct, _, delta, err := encryptWithDelta(oldPub, ps.Seed)
		if err != nil {
			return nil, err
		}

		deltaG, err := delta.PublicKey()
		if err != nil {
			return nil, err
		}
		wireDelta, err := UpdatePublic(candPub, deltaG)
		if err != nil {
			return nil, err
		}
		newPub, err := UpdatePublic(oldPub, wireDelta)
		if err != nil {
			return nil, err
		}

		node.PublicKey = &newPub
		if node.hasPrivate() {
			sk, err := UpdatePrivate(*node.secretKey, delta)
			if err != nil {
				return nil, err
			}
			sk, err = UpdatePrivate(sk, candPriv)
			if err != nil {
				return nil, err
			}
			node.secretKey = &sk
		}
		node.refreshSecret()

		ctCopy := ct
		material.Ancestors = append(material.Ancestors, AncestorUpdate{
			ID:                  id,
			PublicDelta:         wireDelta,
			EncryptedPathSecret: &ctCopy,
		})
	}

	return material, nil
}

// ApplyUpdatePath applies another member's path update: public deltas are
// combined unconditionally so every member tracks every public key, while
// path secrets are decrypted and merged only at ancestors this member
// shares with the updater and holds a secret key for.
func (m *Member) ApplyUpdatePath(name string, updatingLeaf NodeID, msg *UpdateMessage) error {
	g, err := m.boundGroup(name)
	if err != nil {
		return err
	}
	if !validNodeID(updatingLeaf, g.Tree.Capacity) || !isLeafID(updatingLeaf, g.Tree.Capacity) {
		return NodeNotFoundError
	}
	if updatingLeaf == g.LeafID {
		return fmt.Errorf("treekem.member: refusing to apply own update")
	}

	rootSecret, err := g.Tree.rootSecret()
	if err != nil {
		return err
	}

	material, err := openUpdateMaterial(msg, rootSecret)
	if err != nil {
		return err
	}
	if err := material.Credential.Verify(); err != nil {
		return err
	}

	ownAncestors := map[NodeID]bool{}
	ancestors, err := g.Tree.Ancestors(g.LeafID)
	if err != nil {
		return err
	}
	for _, id := range ancestors {
		ownAncestors[id] = true
	}

	expected, err := g.Tree.Ancestors(updatingLeaf)
	if err != nil {
		return err
	}
	if len(material.Ancestors) != len(expected) {
		return fmt.Errorf("treekem.member: malformed update path %d %d", len(material.Ancestors), len(expected))
	}

	for i, au := range material.Ancestors {
		if au.ID != expected[i] {
			return fmt.Errorf("treekem.member: update path node %d is not an ancestor of leaf %d", au.ID, updatingLeaf)
		}

		node, err := g.Tree.NodeAt(au.ID)
		if err != nil {
			return err
		}

		if node.Empty() {
			// The updater bootstrapped this node; install its candidate
			pk := au.PublicDelta
			node.PublicKey = &pk
			node.refreshSecret()
			continue
		}

		newPub, err := UpdatePublic(*node.PublicKey, au.PublicDelta)
		if err != nil {
			return err
		}

		if ownAncestors[au.ID] && node.hasPrivate() && au.EncryptedPathSecret != nil {
			seed, evolved, err := Decrypt(*node.secretKey, *au.EncryptedPathSecret)
			if err != nil {
				return err
			}
			candPriv, _, err := PathSecret{Seed: seed}.DeriveKeyPair()
			if err != nil {
				return err
			}
			sk, err := UpdatePrivate(evolved, candPriv)
			if err != nil {
				return err
			}
			node.secretKey = &sk
		}

		node.PublicKey = &newPub
		node.refreshSecret()
	}

	// Finally install the updater's leaf
	leafNode := g.Tree.nodeAt(updatingLeaf)
	leafNode.setPublicOnly(material.LeafPublicKey)
	cred := material.Credential
	leafNode.Credential = &cred

	return nil
}

///
/// Welcome / join
///

// SendWelcomeMessage invites the holder of joineeCredential: the current
// group key is hybrid-wrapped to the joinee's long-term ECDH key, and the
// tree snapshot it decrypts is bounded to the ancestors the joinee's
// prospective leaf shares with this member.
func (m *Member) SendWelcomeMessage(name string, joinee Credential) (*WelcomeMessage, error) {
	g, err := m.boundGroup(name)
	if err != nil {
		return nil, err
	}
	if err := joinee.Verify(); err != nil {
		return nil, err
	}

	rootSecret, err := g.Tree.rootSecret()
	if err != nil {
		return nil, err
	}
	groupKey := deriveGroupKey(rootSecret)

	joineeLeaf, ok := g.Tree.LeftmostOpenLeaf()
	if !ok {
		return nil, NoOpenLeafError
	}

	snap, err := g.Tree.Serialize(joineeLeaf, g.LeafID)
	if err != nil {
		return nil, err
	}
	snapData, err := syntax.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("treekem.member: snapshot marshal: %v", err)
	}

	treeMsg, err := sealWith(groupKey, snapData)
	if err != nil {
		return nil, err
	}
	nameMsg, err := sealWith(groupKey, []byte(name))
	if err != nil {
		return nil, err
	}

	wrapped, err := hybridSeal(joinee.ECDHKey, groupKey)
	if err != nil {
		return nil, err
	}

	return &WelcomeMessage{
		WrappedKey: wrapped,
		Tree:       *treeMsg,
		GroupName:  *nameMsg,
	}, nil
}

// JoinGroup unwraps a welcome, installs the group, and claims a leaf.  The
// returned UpdateMessage is the joiner's own path update, which is how the
// rest of the group learns about it.
func (m *Member) JoinGroup(welcome *WelcomeMessage) (string, *UpdateMessage, error) {
	groupKey, err := hybridOpen(m.ECDHKey, welcome.WrappedKey)
	if err != nil {
		return "", nil, err
	}

	nameBytes, err := aeadOpen(groupKey, welcome.GroupName.Nonce, welcome.GroupName.Ciphertext)
	if err != nil {
		return "", nil, err
	}
	name := string(nameBytes)

	if _, ok := m.Groups[name]; ok {
		return "", nil, fmt.Errorf("treekem.member: group %q already exists", name)
	}

	snapData, err := aeadOpen(groupKey, welcome.Tree.Nonce, welcome.Tree.Ciphertext)
	if err != nil {
		return "", nil, err
	}

	var snap TreeSnapshot
	if _, err := syntax.Unmarshal(snapData, &snap); err != nil {
		return "", nil, fmt.Errorf("treekem.member: snapshot unmarshal: %v", err)
	}

	tree, err := DeserializeTree(&snap)
	if err != nil {
		return "", nil, err
	}

	m.Groups[name] = &Group{
		Tree:    tree,
		Counter: 1,
	}

	update, err := m.AddToGroup(name)
	if err != nil {
		delete(m.Groups, name)
		return "", nil, err
	}
	return name, update, nil
}

///
/// Removal
///

// BlankNode removes the member at the given node: one fresh blanking key
// pair and path secret are encrypted to every covering node, the blanking
// key pair is merged into the entire local tree, and the removed node is
// wiped.
func (m *Member) BlankNode(name string, removed NodeID) ([]BlankMessage, error) {
	g, err := m.boundGroup(name)
	if err != nil {
		return nil, err
	}
	if removed == g.LeafID {
		return nil, fmt.Errorf("treekem.member: refusing to remove own leaf")
	}

	node, err := g.Tree.NodeAt(removed)
	if err != nil {
		return nil, err
	}
	if node.Empty() {
		return nil, MissingKeyMaterialError
	}

	ps, err := NewPathSecret()
	if err != nil {
		return nil, err
	}
	blankPriv, blankPub, err := ps.DeriveKeyPair()
	if err != nil {
		return nil, err
	}

	ancestors, err := g.Tree.Ancestors(removed)
	if err != nil {
		return nil, err
	}
	covering := g.Tree.BlankNodePath(removed, ancestors)

	msgs := make([]BlankMessage, 0, len(covering))
	for _, id := range covering {
		coverPub := *g.Tree.nodeAt(id).PublicKey

		// The UPKE key evolution is deliberately discarded here: members
		// outside a covering subtree never learn its delta, so applying
		// it would fork the public tree.
		ctPub, _, err := Encrypt(coverPub, blankPub.Data)
		if err != nil {
			return nil, err
		}
		ctSeed, _, err := Encrypt(coverPub, ps.Seed)
		if err != nil {
			return nil, err
		}

		ctPubCopy, ctSeedCopy := ctPub, ctSeed
		msgs = append(msgs, BlankMessage{
			BlankedNode:         removed,
			EncryptUnder:        id,
			EncryptedPublicKey:  &ctPubCopy,
			EncryptedPathSecret: &ctSeedCopy,
		})
	}

	if err := g.Tree.combineAll(blankPub, blankPriv, removed); err != nil {
		return nil, err
	}
	g.Tree.nodeAt(removed).Blank()

	return msgs, nil
}

// ApplyBlankMessages processes a removal produced elsewhere: scan for an
// entry encrypted to this member's leaf or to an ancestor it holds a key
// for, recover the blanking material, and apply the same tree-wide
// combination.  The recovered public key cross-checks the recovered seed,
// which catches decryption under a desynchronized node key.
func (m *Member) ApplyBlankMessages(name string, msgs []BlankMessage) error {
	g, err := m.boundGroup(name)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("treekem.member: empty blank message list")
	}

	removed := msgs[0].BlankedNode
	if _, err := g.Tree.NodeAt(removed); err != nil {
		return err
	}
	if removed == g.LeafID {
		return fmt.Errorf("treekem.member: blanked node is own leaf")
	}

	reachable := map[NodeID]bool{g.LeafID: true}
	ancestors, err := g.Tree.Ancestors(g.LeafID)
	if err != nil {
		return err
	}
	for _, id := range ancestors {
		reachable[id] = true
	}

	for _, bm := range msgs {
		if bm.BlankedNode != removed {
			return fmt.Errorf("treekem.member: inconsistent blank message list")
		}
		if !reachable[bm.EncryptUnder] {
			continue
		}
		if bm.EncryptedPublicKey == nil || bm.EncryptedPathSecret == nil {
			continue
		}

		node := g.Tree.nodeAt(bm.EncryptUnder)
		if node.Empty() || !node.hasPrivate() {
			continue
		}

		seed, _, err := Decrypt(*node.secretKey, *bm.EncryptedPathSecret)
		if err != nil {
			continue
		}
		pubBytes, _, err := Decrypt(*node.secretKey, *bm.EncryptedPublicKey)
		if err != nil {
			continue
		}

		blankPriv, blankPub, err := PathSecret{Seed: seed}.DeriveKeyPair()
		if err != nil {
			continue
		}
		if !blankPub.Equals(PublicKey{Data: pubBytes}) {
			// Wrong key: our copy of this node has diverged
			continue
		}

		if err := g.Tree.combineAll(blankPub, blankPriv, removed); err != nil {
			return err
		}
		g.Tree.nodeAt(removed).Blank()
		return nil
	}

	return DecryptionFailureError
}

///
/// Application messages
///

func (m *Member) EncryptApplicationMessage(name string, plaintext []byte) (*EncryptedMessage, error) {
	g, err := m.boundGroup(name)
	if err != nil {
		return nil, err
	}

	rootSecret, err := g.Tree.rootSecret()
	if err != nil {
		return nil, err
	}

	counter := g.Counter
	key := deriveMessageKey(rootSecret, counter)
	defer zeroize(key)

	nonce, err := newAEADNonce()
	if err != nil {
		return nil, err
	}
	ct, err := aeadSeal(key, nonce, plaintext)
	if err != nil {
		return nil, err
	}

	g.Counter = counter + 1
	return &EncryptedMessage{Ciphertext: ct, Nonce: nonce, Counter: counter}, nil
}

// DecryptApplicationMessage accepts any counter, since mesh delivery is
// unordered, and advances the local counter to max(local, received)+1.
func (m *Member) DecryptApplicationMessage(name string, msg *EncryptedMessage) ([]byte, error) {
	g, err := m.boundGroup(name)
	if err != nil {
		return nil, err
	}

	rootSecret, err := g.Tree.rootSecret()
	if err != nil {
		return nil, err
	}

	key := deriveMessageKey(rootSecret, msg.Counter)
	defer zeroize(key)

	pt, err := aeadOpen(key, msg.Nonce, msg.Ciphertext)
	if err != nil {
		return nil, err
	}

	next := g.Counter
	if msg.Counter > next {
		next = msg.Counter
	}
	g.Counter = next + 1

	return pt, nil
}

///
/// Update material sealing
///

func sealWith(key, plaintext []byte) (*UpdateMessage, error) {
	nonce, err := newAEADNonce()
	if err != nil {
		return nil, err
	}
	ct, err := aeadSeal(key, nonce, plaintext)
	if err != nil {
		return nil, err
	}
	return &UpdateMessage{Ciphertext: ct, Nonce: nonce}, nil
}

func sealUpdateMaterial(material *UpdateMaterial, rootSecret []byte) (*UpdateMessage, error) {
	data, err := syntax.Marshal(material)
	if err != nil {
		return nil, fmt.Errorf("treekem.member: update material marshal: %v", err)
	}

	key := deriveGroupKey(rootSecret)
	defer zeroize(key)
	return sealWith(key, data)
}

func openUpdateMaterial(msg *UpdateMessage, rootSecret []byte) (*UpdateMaterial, error) {
	key := deriveGroupKey(rootSecret)
	defer zeroize(key)

	data, err := aeadOpen(key, msg.Nonce, msg.Ciphertext)
	if err != nil {
		return nil, err
	}

	var material UpdateMaterial
	if _, err := syntax.Unmarshal(data, &material); err != nil {
		return nil, fmt.Errorf("treekem.member: update material unmarshal: %v", err)
	}
	return &material, nil
}

func (m *Member) Dump() {
	fmt.Printf("===== member(%s) =====\n", string(m.Pseudonym))
	for name, g := range m.Groups {
		fmt.Printf("group %q leaf=%d counter=%d\n", name, g.LeafID, g.Counter)
		g.Tree.Dump(name)
	}
}

///
/// Persistence
///

// struct {
//     opaque name<0..255>;
//     uint32 threshold;
//     NodeID admins<0..2^32-1>;
//     NodeID leaf_id;
//     uint64 counter;
//     TreeSnapshot tree;
// } GroupEntry;
type groupEntry struct {
	Name      []byte   `tls:"head=1"`
	Threshold uint32
	Admins    []NodeID `tls:"head=4"`
	LeafID    NodeID
	Counter   uint64
	Tree      TreeSnapshot
}

type memberPersist struct {
	Pseudonym  []byte `tls:"head=1"`
	ECDHKey    ECDHPrivateKey
	SigKey     SignaturePrivateKey
	Credential Credential
	Groups     []groupEntry `tls:"head=4"`
}

// Marshal serializes the full member state, private keys included, for the
// external encrypted store.
func (m *Member) Marshal() ([]byte, error) {
	names := make([]string, 0, len(m.Groups))
	for name := range m.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	persist := memberPersist{
		Pseudonym:  m.Pseudonym,
		ECDHKey:    m.ECDHKey,
		SigKey:     m.SigKey,
		Credential: m.Credential,
	}
	for _, name := range names {
		g := m.Groups[name]
		persist.Groups = append(persist.Groups, groupEntry{
			Name:      []byte(name),
			Threshold: g.Threshold,
			Admins:    g.Admins,
			LeafID:    g.LeafID,
			Counter:   g.Counter,
			Tree:      *g.Tree.snapshotLocal(),
		})
	}

	data, err := syntax.Marshal(persist)
	if err != nil {
		return nil, fmt.Errorf("treekem.member: marshal: %v", err)
	}
	return data, nil
}

func UnmarshalMember(data []byte) (*Member, error) {
	var persist memberPersist
	if _, err := syntax.Unmarshal(data, &persist); err != nil {
		return nil, fmt.Errorf("treekem.member: unmarshal: %v", err)
	}

	m := &Member{
		Pseudonym:  persist.Pseudonym,
		ECDHKey:    persist.ECDHKey,
		SigKey:     persist.SigKey,
		Credential: persist.Credential,
		Groups:     map[string]*Group{},
	}

	for i := range persist.Groups {
		entry := &persist.Groups[i]
		tree, err := DeserializeTree(&entry.Tree)
		if err != nil {
			return nil, err
		}
		m.Groups[string(entry.Name)] = &Group{
			Threshold: entry.Threshold,
			Admins:    entry.Admins,
			Tree:      tree,
			LeafID:    entry.LeafID,
			Counter:   entry.Counter,
		}
	}

	return m, nil
}
