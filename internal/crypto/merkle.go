package crypto

// Operations is supplied by a caller of Walker to plug in hash
// lookups, the canonical empty-tree hash, and the two-child reducer.
// A cache hit from GetHash lets a caller reuse a previously computed
// interior-node hash instead of re-reducing it.
type Operations interface {
	GetHash(nodeID uint64) (Hash, bool)
	EmptyHash() Hash
	Reduce(nodeID uint64, left, right *Hash) Hash
}

type frontierEntry struct {
	id    uint64
	hash  Hash
	level int
}

// Walker builds a Merkle root from an ascending stream of leaves using
// an edge-stack left frontier, in the style of a streaming Merkle
// Mountain Range. Nodes are numbered by in-order position: leaf i
// (1-indexed) has id 2i; an interior node's id is the midpoint of its
// two children's ids, which for a perfect in-order numbering is always
// an odd integer of the form 2i±1, matching the numbering scheme
// described for the tree-walker capsule.
type Walker struct {
	ops      Operations
	frontier []frontierEntry
	nextLeaf uint64
}

func NewWalker(ops Operations) *Walker {
	return &Walker{ops: ops}
}

// Add feeds the next leaf in strictly ascending order.
func (w *Walker) Add(h Hash) {
	w.nextLeaf++
	cur := frontierEntry{id: 2 * w.nextLeaf, hash: h, level: 0}
	for n := len(w.frontier); n > 0 && w.frontier[n-1].level == cur.level; n = len(w.frontier) {
		left := w.frontier[n-1]
		w.frontier = w.frontier[:n-1]
		cur = w.merge(left, cur)
	}
	w.frontier = append(w.frontier, cur)
}

// merge combines two same-level siblings (left before right in key
// order) into their parent, consulting the cache first.
func (w *Walker) merge(left, right frontierEntry) frontierEntry {
	id := (left.id + right.id) / 2
	if cached, ok := w.ops.GetHash(id); ok {
		return frontierEntry{id: id, hash: cached, level: left.level + 1}
	}
	lh, rh := left.hash, right.hash
	h := w.ops.Reduce(id, &lh, &rh)
	return frontierEntry{id: id, hash: h, level: left.level + 1}
}

// promote degrades an unpaired node one level up unchanged, per the
// "null right child" rule: Reduce(id, left, nil) returns left as-is.
func (w *Walker) promote(e frontierEntry) frontierEntry {
	lh := e.hash
	h := w.ops.Reduce(e.id, &lh, nil)
	return frontierEntry{id: e.id, hash: h, level: e.level + 1}
}

// Close flushes the frontier to a single root. An empty sequence
// returns EmptyHash. The frontier invariant guarantees strictly
// decreasing levels from the front (oldest, largest subtree) to the
// back (newest, smallest); Close folds from the back forward,
// promoting the running result up a level whenever it lacks a sibling
// at the next frontier entry's level, then merging once levels match.
func (w *Walker) Close() Hash {
	if len(w.frontier) == 0 {
		return w.ops.EmptyHash()
	}
	n := len(w.frontier)
	cur := w.frontier[n-1]
	for i := n - 2; i >= 0; i-- {
		sibling := w.frontier[i]
		for cur.level < sibling.level {
			cur = w.promote(cur)
		}
		cur = w.merge(sibling, cur)
	}
	w.frontier = nil
	return cur.hash
}
