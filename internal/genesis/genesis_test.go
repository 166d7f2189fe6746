package genesis

import (
	"testing"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/statedb"
)

func TestApplyBuildsForkDBRootedOnChainID(t *testing.T) {
	chainID := crypto.SumSHA256([]byte("test seed"))
	encoded, err := chainID.Encode()
	if err != nil {
		t.Fatalf("encode chain id: %v", err)
	}

	d := &Data{Entries: []Entry{
		{Space: string(statedb.SpaceMetadata), Key: ChainIDKey, Value: encoded},
		{Space: string(statedb.SpaceMetadata), Key: "genesis-note", Value: []byte("hello")},
	}}

	backend := statedb.NewMemoryBackend()
	forks, tree, err := d.Apply(backend)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if !forks.Root().ID.Equal(chainID) {
		t.Fatalf("fork db root = %s want %s", forks.Root().ID, chainID)
	}
	if _, ok := tree.Lookup(chainID); !ok {
		t.Fatalf("tree has no root node for chain id")
	}

	raw, found, err := backend.Get(statedb.SpaceMetadata, []byte("genesis-note"))
	if err != nil || !found || string(raw) != "hello" {
		t.Fatalf("genesis-note = %q found=%v err=%v", raw, found, err)
	}
}

func TestChainIDMissingEntryFails(t *testing.T) {
	d := &Data{Entries: []Entry{{Space: string(statedb.SpaceMetadata), Key: "other", Value: []byte("x")}}}
	if _, err := d.ChainID(); !chainerr.Is(err, chainerr.CodeInternalError) {
		t.Fatalf("want internal_error for missing chain-id, got %v", err)
	}
}
