// Package forkdb indexes known block states by id, previous id, and
// height, supporting branch-diff queries and root/head selection
// (spec §4.2).
package forkdb

import (
	"sort"
	"sync"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
)

// Entry wraps an opaque block alongside the indexing fields.
type Entry struct {
	ID       crypto.Hash
	Previous crypto.Hash
	Number   uint64
	Block    interface{}

	arrival uint64
}

// ForkDB is the block-header index.
type ForkDB struct {
	mu sync.RWMutex

	byID       map[string]*Entry
	byPrevious map[string][]*Entry
	byNumber   map[uint64][]*Entry
	children   map[string][]crypto.Hash

	root *Entry
	head *Entry
	seq  uint64
}

// New creates a fork database rooted at root (typically the genesis
// block or the current irreversible block).
func New(root Entry) *ForkDB {
	r := root
	f := &ForkDB{
		byID:       make(map[string]*Entry),
		byPrevious: make(map[string][]*Entry),
		byNumber:   make(map[uint64][]*Entry),
		children:   make(map[string][]crypto.Hash),
	}
	f.byID[r.ID.Key()] = &r
	f.byNumber[r.Number] = append(f.byNumber[r.Number], &r)
	f.root = &r
	f.head = &r
	return f
}

// Add indexes a new block state. previous must be the root or a known
// block. With ignore_duplicate=false, a duplicate id fails; otherwise
// re-adding an existing id is a no-op.
func (f *ForkDB) Add(e Entry, ignoreDuplicate bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.byID[e.ID.Key()]; ok {
		if !ignoreDuplicate {
			return chainerr.New(chainerr.CodeUnexpectedState, "duplicate block id")
		}
		_ = existing
		return nil
	}
	if !e.ID.Equal(f.root.ID) {
		if _, ok := f.byID[e.Previous.Key()]; !ok && !e.Previous.Equal(f.root.ID) {
			return chainerr.New(chainerr.CodeMalformedBlock, "unlinkable block: unknown previous id")
		}
	}

	f.seq++
	e.arrival = f.seq
	stored := e
	f.byID[stored.ID.Key()] = &stored
	f.byPrevious[stored.Previous.Key()] = append(f.byPrevious[stored.Previous.Key()], &stored)
	f.byNumber[stored.Number] = append(f.byNumber[stored.Number], &stored)
	f.children[stored.Previous.Key()] = append(f.children[stored.Previous.Key()], stored.ID)

	if stored.Number > f.head.Number || (stored.Number == f.head.Number && stored.arrival < f.head.arrival) {
		f.head = &stored
	}
	return nil
}

// Remove removes id and all of its descendants; fails if doing so
// would remove head.
func (f *ForkDB) Remove(id crypto.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byID[id.Key()]; !ok {
		return chainerr.New(chainerr.CodeStateNodeNotFound, "unknown block id")
	}
	descendants := f.collectDescendants(id)
	for _, d := range descendants {
		if d.Equal(f.head.ID) {
			return chainerr.New(chainerr.CodeCannotDiscard, "removal would remove head")
		}
	}
	for _, d := range descendants {
		f.removeOne(d)
	}
	return nil
}

func (f *ForkDB) collectDescendants(id crypto.Hash) []crypto.Hash {
	var out []crypto.Hash
	var walk func(crypto.Hash)
	walk = func(cur crypto.Hash) {
		out = append(out, cur)
		for _, c := range f.children[cur.Key()] {
			walk(c)
		}
	}
	walk(id)
	return out
}

func (f *ForkDB) removeOne(id crypto.Hash) {
	e, ok := f.byID[id.Key()]
	if !ok {
		return
	}
	delete(f.byID, id.Key())
	delete(f.children, id.Key())
	f.byPrevious[e.Previous.Key()] = removeEntry(f.byPrevious[e.Previous.Key()], e)
	f.byNumber[e.Number] = removeEntry(f.byNumber[e.Number], e)
	sib := f.children[e.Previous.Key()]
	for i, c := range sib {
		if c.Equal(id) {
			f.children[e.Previous.Key()] = append(sib[:i], sib[i+1:]...)
			break
		}
	}
}

func removeEntry(list []*Entry, target *Entry) []*Entry {
	for i, e := range list {
		if e == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (f *ForkDB) Fetch(id crypto.Hash) (*Entry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.byID[id.Key()]
	return e, ok
}

func (f *ForkDB) FetchByNumber(n uint64) []*Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*Entry(nil), f.byNumber[n]...)
}

// SearchOnBranch walks back from headID toward the root looking for
// the entry at the given number.
func (f *ForkDB) SearchOnBranch(headID crypto.Hash, number uint64) (*Entry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cur, ok := f.byID[headID.Key()]
	if !ok {
		return nil, false
	}
	for cur.Number > number {
		next, ok := f.byID[cur.Previous.Key()]
		if !ok {
			return nil, false
		}
		cur = next
	}
	if cur.Number == number {
		return cur, true
	}
	return nil, false
}

// FetchBranchFrom equalizes a and b by height, then walks in lock-step
// to the nearest common ancestor, returning the two disjoint branch
// lists from each endpoint up to but excluding that ancestor.
func (f *ForkDB) FetchBranchFrom(a, b crypto.Hash) ([]*Entry, []*Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ea, ok := f.byID[a.Key()]
	if !ok {
		return nil, nil, chainerr.New(chainerr.CodeStateNodeNotFound, "unknown branch endpoint a")
	}
	eb, ok := f.byID[b.Key()]
	if !ok {
		return nil, nil, chainerr.New(chainerr.CodeStateNodeNotFound, "unknown branch endpoint b")
	}

	var brA, brB []*Entry
	for ea.Number > eb.Number {
		brA = append(brA, ea)
		ea = f.byID[ea.Previous.Key()]
	}
	for eb.Number > ea.Number {
		brB = append(brB, eb)
		eb = f.byID[eb.Previous.Key()]
	}
	for !ea.ID.Equal(eb.ID) {
		brA = append(brA, ea)
		brB = append(brB, eb)
		ea = f.byID[ea.Previous.Key()]
		eb = f.byID[eb.Previous.Key()]
	}
	return brA, brB, nil
}

// AdvanceRoot moves the root forward to id, which must be an ancestor
// of head; siblings branching off any removed ancestor are deleted,
// and the new root is retained as a leaf of the discarded ancestry.
func (f *ForkDB) AdvanceRoot(id crypto.Hash) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	newRoot, ok := f.byID[id.Key()]
	if !ok {
		return chainerr.New(chainerr.CodeStateNodeNotFound, "unknown new root id")
	}
	if !f.isAncestorOfHead(newRoot.ID) {
		return chainerr.New(chainerr.CodeInternalError, "new root is not an ancestor of head")
	}

	var ancestry []crypto.Hash
	for cur := f.root.ID; !cur.Equal(newRoot.ID); {
		ancestry = append(ancestry, cur)
		children := f.children[cur.Key()]
		var next crypto.Hash
		for _, c := range children {
			if f.isAncestorOfHead(c) || c.Equal(newRoot.ID) {
				next = c
				break
			}
		}
		cur = next
	}

	for _, anc := range ancestry {
		for _, sib := range f.children[anc.Key()] {
			if !f.isAncestorOfHead(sib) && !sib.Equal(newRoot.ID) {
				for _, d := range f.collectDescendants(sib) {
					f.removeOne(d)
				}
			}
		}
	}
	for _, anc := range ancestry {
		delete(f.byID, anc.Key())
		f.byPrevious[f.root.Previous.Key()] = nil
		f.byNumber[f.root.Number] = removeEntry(f.byNumber[f.root.Number], f.root)
		delete(f.children, anc.Key())
	}

	f.root = newRoot
	return nil
}

func (f *ForkDB) isAncestorOfHead(id crypto.Hash) bool {
	for cur := f.head; cur != nil; {
		if cur.ID.Equal(id) {
			return true
		}
		prev, ok := f.byID[cur.Previous.Key()]
		if !ok {
			return cur.ID.Equal(id)
		}
		cur = prev
	}
	return false
}

func (f *ForkDB) Root() *Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.root
}

func (f *ForkDB) Head() *Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.head
}

// Heads returns every leaf entry, sorted by number descending then
// earliest arrival, matching the default head policy.
func (f *ForkDB) Heads() []*Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var heads []*Entry
	for id, e := range f.byID {
		if len(f.children[id]) == 0 {
			heads = append(heads, e)
		}
	}
	sort.Slice(heads, func(i, j int) bool {
		if heads[i].Number != heads[j].Number {
			return heads[i].Number > heads[j].Number
		}
		return heads[i].arrival < heads[j].arrival
	})
	return heads
}
