package forkdb

import (
	"testing"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
)

func h(s string) crypto.Hash { return crypto.SumSHA256([]byte(s)) }

func newTestDB() *ForkDB {
	return New(Entry{ID: h("root"), Number: 0})
}

func TestAddRejectsUnlinkableBlock(t *testing.T) {
	db := newTestDB()
	err := db.Add(Entry{ID: h("orphan"), Previous: h("nowhere"), Number: 1}, false)
	if !chainerr.Is(err, chainerr.CodeMalformedBlock) {
		t.Fatalf("want malformed_block, got %v", err)
	}
}

func TestAddDuplicateWithoutIgnoreFails(t *testing.T) {
	db := newTestDB()
	e := Entry{ID: h("a"), Previous: h("root"), Number: 1}
	if err := db.Add(e, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := db.Add(e, false); !chainerr.Is(err, chainerr.CodeUnexpectedState) {
		t.Fatalf("want unexpected_state, got %v", err)
	}
	if err := db.Add(e, true); err != nil {
		t.Fatalf("duplicate with ignore should be a no-op, got %v", err)
	}
}

func TestHeadTracksGreatestNumber(t *testing.T) {
	db := newTestDB()
	_ = db.Add(Entry{ID: h("a"), Previous: h("root"), Number: 1}, false)
	_ = db.Add(Entry{ID: h("b"), Previous: h("a"), Number: 2}, false)
	if !db.Head().ID.Equal(h("b")) {
		t.Fatalf("head = %v, want b", db.Head().ID)
	}
}

func TestRemoveFailsWhenItWouldRemoveHead(t *testing.T) {
	db := newTestDB()
	_ = db.Add(Entry{ID: h("a"), Previous: h("root"), Number: 1}, false)
	if err := db.Remove(h("a")); !chainerr.Is(err, chainerr.CodeCannotDiscard) {
		t.Fatalf("want cannot_discard, got %v", err)
	}
}

func TestRemoveDropsDescendants(t *testing.T) {
	db := newTestDB()
	_ = db.Add(Entry{ID: h("a"), Previous: h("root"), Number: 1}, false)
	_ = db.Add(Entry{ID: h("b"), Previous: h("a"), Number: 2}, false)
	_ = db.Add(Entry{ID: h("c"), Previous: h("root"), Number: 1}, false)

	if err := db.Remove(h("c")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := db.Fetch(h("c")); ok {
		t.Fatalf("c should be removed")
	}
	if _, ok := db.Fetch(h("a")); !ok {
		t.Fatalf("a should remain")
	}
}

func TestSearchOnBranchWalksBackToNumber(t *testing.T) {
	db := newTestDB()
	_ = db.Add(Entry{ID: h("a"), Previous: h("root"), Number: 1}, false)
	_ = db.Add(Entry{ID: h("b"), Previous: h("a"), Number: 2}, false)

	e, ok := db.SearchOnBranch(h("b"), 1)
	if !ok || !e.ID.Equal(h("a")) {
		t.Fatalf("got %v,%v want a,true", e, ok)
	}
}

func TestFetchBranchFromFindsCommonAncestor(t *testing.T) {
	db := newTestDB()
	_ = db.Add(Entry{ID: h("a"), Previous: h("root"), Number: 1}, false)
	_ = db.Add(Entry{ID: h("b1"), Previous: h("a"), Number: 2}, false)
	_ = db.Add(Entry{ID: h("b2"), Previous: h("a"), Number: 2}, false)
	_ = db.Add(Entry{ID: h("c1"), Previous: h("b1"), Number: 3}, false)

	brA, brB, err := db.FetchBranchFrom(h("c1"), h("b2"))
	if err != nil {
		t.Fatalf("fetch branch: %v", err)
	}
	if len(brA) != 2 || !brA[0].ID.Equal(h("c1")) || !brA[1].ID.Equal(h("b1")) {
		t.Fatalf("brA = %v", brA)
	}
	if len(brB) != 1 || !brB[0].ID.Equal(h("b2")) {
		t.Fatalf("brB = %v", brB)
	}
}

func TestHeadsSortedByNumberDescending(t *testing.T) {
	db := newTestDB()
	_ = db.Add(Entry{ID: h("a"), Previous: h("root"), Number: 1}, false)
	_ = db.Add(Entry{ID: h("b"), Previous: h("a"), Number: 2}, false)
	_ = db.Add(Entry{ID: h("c"), Previous: h("root"), Number: 1}, false)

	heads := db.Heads()
	if len(heads) != 2 {
		t.Fatalf("got %d heads, want 2", len(heads))
	}
	if !heads[0].ID.Equal(h("b")) {
		t.Fatalf("heads[0] = %v, want b (greatest number first)", heads[0].ID)
	}
}
