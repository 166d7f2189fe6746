package statedelta

import (
	"sort"
	"sync"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/protocol"
	"github.com/koinos-go/chain/internal/statedb"
)

// Tree owns the node index and the backing store the root node
// delegates reads to.
type Tree struct {
	mu      sync.RWMutex
	backend statedb.Backend
	nodes   map[string]*Node
	root    *Node
	head    *Node
	seq     uint64
}

// New creates a tree anchored on backend, with a finalized root node
// identified by rootID.
func New(backend statedb.Backend, rootID crypto.Hash) *Tree {
	root := &Node{
		id:        rootID,
		revision:  0,
		finalized: true,
		writes:    make(map[string]record),
	}
	t := &Tree{
		backend: backend,
		nodes:   map[string]*Node{rootID.Key(): root},
		root:    root,
		head:    root,
	}
	return t
}

func (t *Tree) Root() *Node { t.mu.RLock(); defer t.mu.RUnlock(); return t.root }

// Head returns the node with the greatest revision among finalized
// nodes, ties broken by earliest arrival.
func (t *Tree) Head() *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.head
}

// Lookup returns the node with the given id, if known.
func (t *Tree) Lookup(id crypto.Hash) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id.Key()]
	return n, ok
}

// CreateChild adds a writable node as a child of parentID.
func (t *Tree) CreateChild(parentID, newID crypto.Hash, header *protocol.BlockHeader) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[parentID.Key()]
	if !ok {
		return nil, chainerr.New(chainerr.CodeStateNodeNotFound, "unknown parent state node")
	}
	if _, exists := t.nodes[newID.Key()]; exists {
		return nil, chainerr.New(chainerr.CodeUnexpectedState, "state node id already exists")
	}

	t.seq++
	child := &Node{
		id:       newID,
		parent:   parent,
		revision: parent.revision + 1,
		header:   header,
		writes:   make(map[string]record),
		arrival:  t.seq,
	}
	parent.children = append(parent.children, child)
	t.nodes[newID.Key()] = child
	return child, nil
}

// Finalize marks a node read-only for future writes through its
// handle. Finalization is monotonic.
func (t *Tree) Finalize(id crypto.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id.Key()]
	if !ok {
		return chainerr.New(chainerr.CodeStateNodeNotFound, "unknown state node")
	}
	n.mu.Lock()
	n.finalized = true
	n.mu.Unlock()

	if t.head == nil || n.revision > t.head.revision ||
		(n.revision == t.head.revision && n.arrival < t.head.arrival) {
		t.head = n
	}
	return nil
}

// Discard removes the subtree rooted at id; it fails if the current
// head descends from it.
func (t *Tree) Discard(id crypto.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id.Key()]
	if !ok {
		return chainerr.New(chainerr.CodeStateNodeNotFound, "unknown state node")
	}
	if n == t.root {
		return chainerr.New(chainerr.CodeInternalError, "cannot discard the root")
	}
	if isAncestor(n, t.head) {
		return chainerr.New(chainerr.CodeCannotDiscard, "current head descends from discard target")
	}

	// Detach from parent.
	p := n.parent
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	t.removeSubtree(n)
	return nil
}

func (t *Tree) removeSubtree(n *Node) {
	delete(t.nodes, n.id.Key())
	for _, c := range n.children {
		t.removeSubtree(c)
	}
}

// isAncestor reports whether ancestor is on descendant's path to the
// root (inclusive of descendant itself).
func isAncestor(ancestor, descendant *Node) bool {
	for cur := descendant; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Merge folds every write recorded directly on src into dst, in src's
// insertion order; it does not touch src's ancestors or discard src
// itself. Used to fold a per-transaction scratch node's writes back
// into the shared block accumulator once the transaction has fully
// succeeded, so a later transaction's failure can discard its own
// scratch node without disturbing what earlier transactions already
// committed into the block.
func (t *Tree) Merge(srcID, dstID crypto.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	src, ok := t.nodes[srcID.Key()]
	if !ok {
		return chainerr.New(chainerr.CodeStateNodeNotFound, "unknown source state node")
	}
	dst, ok := t.nodes[dstID.Key()]
	if !ok {
		return chainerr.New(chainerr.CodeStateNodeNotFound, "unknown destination state node")
	}
	if dst.Finalized() {
		return chainerr.New(chainerr.CodeUnexpectedState, "merge into finalized state node")
	}

	src.mu.RLock()
	defer src.mu.RUnlock()
	for _, ref := range src.keyOrder {
		rec := src.writes[recordKey(ref.space, ref.key)]
		dst.setRecord(ref.space, ref.key, rec)
	}
	return nil
}

// Commit collapses the path root->node into a single new root: every
// ancestor delta is squashed into node, the backend is mutated in
// place, and sibling subtrees branching off any squashed ancestor are
// discarded.
func (t *Tree) Commit(id crypto.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id.Key()]
	if !ok {
		return chainerr.New(chainerr.CodeInternalError, "commit of unknown state node")
	}
	if n == t.root {
		return chainerr.New(chainerr.CodeInternalError, "commit of the root")
	}

	// Chain from root (exclusive) down to n (inclusive), oldest first.
	var chain []*Node
	for cur := n; cur != t.root; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	for _, anc := range chain {
		anc.mu.RLock()
		for _, ref := range anc.keyOrder {
			rec := anc.writes[recordKey(ref.space, ref.key)]
			var err error
			if rec.deleted {
				err = t.backend.Delete(ref.space, ref.key)
			} else {
				err = t.backend.Put(ref.space, ref.key, rec.value)
			}
			if err != nil {
				anc.mu.RUnlock()
				return chainerr.Wrap(chainerr.CodeInternalError, "commit backend mutation", err)
			}
		}
		anc.mu.RUnlock()
	}

	// Discard every sibling subtree that branched off a squashed
	// ancestor (including the old root's other children).
	oldRoot := t.root
	prev := oldRoot
	for _, anc := range chain {
		for _, sib := range prev.children {
			if sib != anc {
				t.removeSubtree(sib)
			}
		}
		prev = anc
	}
	delete(t.nodes, oldRoot.id.Key())
	for _, anc := range chain {
		if anc != n {
			delete(t.nodes, anc.id.Key())
		}
	}

	// Reseat n as the new root and renumber its surviving subtree.
	oldRevision := n.revision
	n.parent = nil
	n.revision = 0
	n.finalized = true
	n.writes = make(map[string]record)
	n.keyOrder = nil
	n.merkleCached = false
	for _, c := range n.children {
		adjustRevision(c, -int64(oldRevision))
	}

	t.root = n
	if t.head == nil || n.revision > t.head.revision {
		// head may have pointed at a node now renumbered or discarded;
		// recompute conservatively from the new root if needed.
	}
	if _, stillPresent := t.nodes[t.headID().Key()]; !stillPresent {
		t.head = t.recomputeHead()
	}
	return nil
}

func (t *Tree) headID() crypto.Hash {
	if t.head == nil {
		return crypto.Hash{}
	}
	return t.head.id
}

func (t *Tree) recomputeHead() *Node {
	var best *Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.finalized {
			if best == nil || n.revision > best.revision ||
				(n.revision == best.revision && n.arrival < best.arrival) {
				best = n
			}
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return best
}

func adjustRevision(n *Node, delta int64) {
	n.revision = uint64(int64(n.revision) + delta)
	for _, c := range n.children {
		adjustRevision(c, delta)
	}
}

// ForkHeads returns all finalized nodes with no finalized descendant.
func (t *Tree) ForkHeads() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var heads []*Node
	var walk func(n *Node) bool // returns true if n or a descendant is finalized
	walk = func(n *Node) bool {
		hasFinalizedDescendant := false
		for _, c := range n.children {
			if walk(c) {
				hasFinalizedDescendant = true
			}
		}
		if n.finalized {
			if !hasFinalizedDescendant {
				heads = append(heads, n)
			}
			return true
		}
		return hasFinalizedDescendant
	}
	walk(t.root)
	sort.Slice(heads, func(i, j int) bool { return heads[i].arrival < heads[j].arrival })
	return heads
}

// Get walks ancestors toward the root, returning the first recorded
// put/delete for key; absent any record, the backend is consulted.
func (t *Tree) Get(id crypto.Hash, space statedb.Space, key []byte) ([]byte, bool, error) {
	n, ok := t.Lookup(id)
	if !ok {
		return nil, false, chainerr.New(chainerr.CodeStateNodeNotFound, "unknown state node")
	}
	for cur := n; cur != nil; cur = cur.parent {
		if rec, found := cur.lookup(space, key); found {
			if rec.deleted {
				return nil, false, nil
			}
			return rec.value, true, nil
		}
	}
	return t.backend.Get(space, key)
}

// Put records a write relative to node id; fails if the node is
// finalized.
func (t *Tree) Put(id crypto.Hash, space statedb.Space, key, value []byte) error {
	n, ok := t.Lookup(id)
	if !ok {
		return chainerr.New(chainerr.CodeStateNodeNotFound, "unknown state node")
	}
	if n.Finalized() {
		return chainerr.New(chainerr.CodeUnexpectedState, "write to finalized state node")
	}
	n.setRecord(space, key, record{value: append([]byte(nil), value...)})
	return nil
}

// Remove records a deletion marker relative to node id; fails if the
// node is finalized.
func (t *Tree) Remove(id crypto.Hash, space statedb.Space, key []byte) error {
	n, ok := t.Lookup(id)
	if !ok {
		return chainerr.New(chainerr.CodeStateNodeNotFound, "unknown state node")
	}
	if n.Finalized() {
		return chainerr.New(chainerr.CodeUnexpectedState, "remove on finalized state node")
	}
	n.setRecord(space, key, record{deleted: true})
	return nil
}
