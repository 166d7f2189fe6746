package statedb

import "testing"

func TestMemoryBackendGetPutDelete(t *testing.T) {
	b := NewMemoryBackend()
	space := Space("test")

	if _, found, err := b.Get(space, []byte("k")); err != nil || found {
		t.Fatalf("expected absent key, got found=%v err=%v", found, err)
	}

	if err := b.Put(space, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, found, err := b.Get(space, []byte("k"))
	if err != nil || !found || string(v) != "v" {
		t.Fatalf("got %q,%v,%v want v,true,nil", v, found, err)
	}

	if err := b.Delete(space, []byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := b.Get(space, []byte("k")); found {
		t.Fatalf("expected key removed")
	}
}

func TestMemoryBackendIterateOrder(t *testing.T) {
	b := NewMemoryBackend()
	space := Space("test")
	for _, k := range []string{"c", "a", "b"} {
		if err := b.Put(space, []byte(k), []byte(k)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	var ascending []string
	if err := b.Iterate(space, nil, Ascending, func(k, v []byte) bool {
		ascending = append(ascending, string(k))
		return true
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if ascending[i] != k {
			t.Fatalf("ascending=%v want %v", ascending, want)
		}
	}

	var descending []string
	if err := b.Iterate(space, nil, Descending, func(k, v []byte) bool {
		descending = append(descending, string(k))
		return true
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	wantDesc := []string{"c", "b", "a"}
	for i, k := range wantDesc {
		if descending[i] != k {
			t.Fatalf("descending=%v want %v", descending, wantDesc)
		}
	}
}

func TestMemoryBackendIterateStopsEarly(t *testing.T) {
	b := NewMemoryBackend()
	space := Space("test")
	for _, k := range []string{"a", "b", "c"} {
		_ = b.Put(space, []byte(k), []byte(k))
	}
	var seen int
	_ = b.Iterate(space, nil, Ascending, func(k, v []byte) bool {
		seen++
		return seen < 2
	})
	if seen != 2 {
		t.Fatalf("seen=%d want 2", seen)
	}
}
