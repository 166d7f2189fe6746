package statedelta

import (
	"testing"

	"github.com/koinos-go/chain/internal/statedb"
)

func drain(it *Iterator) map[string]string {
	out := make(map[string]string)
	for it.Next() {
		out[string(it.Key())] = string(it.Value())
	}
	return out
}

func TestRangeMergesAncestorsAndBackendMaskingDeletes(t *testing.T) {
	tree, backend := newTestTree()
	space := statedb.Space("s")

	_ = backend.Put(space, []byte("k1"), []byte("backend-1"))
	_ = backend.Put(space, []byte("k2"), []byte("backend-2"))

	a, _ := tree.CreateChild(id("root"), id("a"), nil)
	_ = tree.Put(a.ID(), space, []byte("k3"), []byte("a-3"))

	b, _ := tree.CreateChild(id("a"), id("b"), nil)
	_ = tree.Remove(b.ID(), space, []byte("k1"))
	_ = tree.Put(b.ID(), space, []byte("k2"), []byte("b-2"))

	it, err := tree.Range(b.ID(), space, nil, statedb.Ascending)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	got := drain(it)

	if _, present := got["k1"]; present {
		t.Fatalf("k1 should be masked by delete, got %v", got)
	}
	if got["k2"] != "b-2" {
		t.Fatalf("k2=%q want b-2 (nearer node wins)", got["k2"])
	}
	if got["k3"] != "a-3" {
		t.Fatalf("k3=%q want a-3", got["k3"])
	}
}

func TestRangeDescendingOrder(t *testing.T) {
	tree, backend := newTestTree()
	space := statedb.Space("s")
	_ = backend.Put(space, []byte("a"), []byte("1"))
	_ = backend.Put(space, []byte("b"), []byte("2"))
	_ = backend.Put(space, []byte("c"), []byte("3"))

	child, _ := tree.CreateChild(id("root"), id("child"), nil)
	it, err := tree.Range(child.ID(), space, nil, statedb.Descending)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	var order []string
	for it.Next() {
		order = append(order, string(it.Key()))
	}
	want := []string{"c", "b", "a"}
	for i, k := range want {
		if order[i] != k {
			t.Fatalf("order=%v want %v", order, want)
		}
	}
}
