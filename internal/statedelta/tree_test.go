package statedelta

import (
	"testing"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/statedb"
)

func id(s string) crypto.Hash { return crypto.SumSHA256([]byte(s)) }

func newTestTree() (*Tree, *statedb.MemoryBackend) {
	backend := statedb.NewMemoryBackend()
	return New(backend, id("root")), backend
}

func TestGetWalksAncestorsThenBackend(t *testing.T) {
	tree, backend := newTestTree()
	space := statedb.Space("s")
	_ = backend.Put(space, []byte("k1"), []byte("backend-value"))

	child, err := tree.CreateChild(id("root"), id("a"), nil)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	grandchild, err := tree.CreateChild(id("a"), id("b"), nil)
	if err != nil {
		t.Fatalf("create grandchild: %v", err)
	}

	// Falls through to backend when nothing overrides k1.
	v, found, err := tree.Get(grandchild.ID(), space, []byte("k1"))
	if err != nil || !found || string(v) != "backend-value" {
		t.Fatalf("got %q,%v,%v want backend-value,true,nil", v, found, err)
	}

	// A write on the intermediate node shadows the backend.
	if err := tree.Put(child.ID(), space, []byte("k1"), []byte("child-value")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, found, err = tree.Get(grandchild.ID(), space, []byte("k1"))
	if err != nil || !found || string(v) != "child-value" {
		t.Fatalf("got %q,%v,%v want child-value,true,nil", v, found, err)
	}

	// A delete on the nearer node masks the backend without falling through.
	if err := tree.Remove(grandchild.ID(), space, []byte("k1")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, found, err = tree.Get(grandchild.ID(), space, []byte("k1"))
	if err != nil || found {
		t.Fatalf("got found=%v err=%v, want false,nil", found, err)
	}
}

func TestWriteToFinalizedNodeFails(t *testing.T) {
	tree, _ := newTestTree()
	child, err := tree.CreateChild(id("root"), id("a"), nil)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if err := tree.Finalize(child.ID()); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := tree.Put(child.ID(), statedb.Space("s"), []byte("k"), []byte("v")); !chainerr.Is(err, chainerr.CodeUnexpectedState) {
		t.Fatalf("want unexpected_state, got %v", err)
	}
}

func TestDiscardFailsWhenHeadDescends(t *testing.T) {
	tree, _ := newTestTree()
	child, _ := tree.CreateChild(id("root"), id("a"), nil)
	_ = tree.Finalize(child.ID())

	if err := tree.Discard(child.ID()); !chainerr.Is(err, chainerr.CodeCannotDiscard) {
		t.Fatalf("want cannot_discard, got %v", err)
	}
}

func TestDiscardRemovesSiblingBranch(t *testing.T) {
	tree, _ := newTestTree()
	_, _ = tree.CreateChild(id("root"), id("a"), nil)
	_, _ = tree.CreateChild(id("root"), id("b"), nil)

	if err := tree.Discard(id("b")); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, ok := tree.Lookup(id("b")); ok {
		t.Fatalf("discarded node still present")
	}
	if _, ok := tree.Lookup(id("a")); !ok {
		t.Fatalf("sibling unexpectedly removed")
	}
}

func TestCommitSquashesChainIntoBackendAndReroots(t *testing.T) {
	tree, backend := newTestTree()
	space := statedb.Space("s")

	a, _ := tree.CreateChild(id("root"), id("a"), nil)
	b, _ := tree.CreateChild(id("a"), id("b"), nil)
	// A sibling of "a" that must be discarded by the squash.
	_, _ = tree.CreateChild(id("root"), id("sib"), nil)

	if err := tree.Put(a.ID(), space, []byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tree.Put(b.ID(), space, []byte("k"), []byte("v2")); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := tree.Commit(b.ID()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, found, err := backend.Get(space, []byte("k"))
	if err != nil || !found || string(v) != "v2" {
		t.Fatalf("got %q,%v,%v want v2,true,nil", v, found, err)
	}
	if !tree.Root().ID().Equal(b.ID()) {
		t.Fatalf("new root id = %v, want %v", tree.Root().ID(), b.ID())
	}
	if tree.Root().Revision() != 0 {
		t.Fatalf("new root revision = %d, want 0", tree.Root().Revision())
	}
	if _, ok := tree.Lookup(id("sib")); ok {
		t.Fatalf("sibling of squashed ancestor should be discarded")
	}
	if _, ok := tree.Lookup(id("a")); ok {
		t.Fatalf("squashed ancestor should no longer be addressable")
	}
}

func TestForkHeadsReturnsOnlyFinalizedLeaves(t *testing.T) {
	tree, _ := newTestTree()
	a, _ := tree.CreateChild(id("root"), id("a"), nil)
	b, _ := tree.CreateChild(id("root"), id("b"), nil)
	_ = tree.Finalize(a.ID())
	_ = tree.Finalize(b.ID())
	// An unfinalized grandchild of a must not appear, nor mask a as a head.
	_, _ = tree.CreateChild(a.ID(), id("a1"), nil)

	heads := tree.ForkHeads()
	if len(heads) != 2 {
		t.Fatalf("got %d heads, want 2", len(heads))
	}
}
