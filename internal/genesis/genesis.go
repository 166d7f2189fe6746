// Package genesis loads the (space, key) -> bytes map a fresh chain
// database is seeded with (spec §6 Genesis data) and builds the
// fork database / state-delta tree pair a controller is constructed
// over.
package genesis

import (
	"encoding/json"
	"os"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/forkdb"
	"github.com/koinos-go/chain/internal/statedb"
	"github.com/koinos-go/chain/internal/statedelta"
)

// ChainIDKey is the mandatory metadata entry every genesis data set
// must carry: the chain-id hash identifying this chain.
const ChainIDKey = "chain-id"

// Entry is one (space, key) -> bytes genesis record.
type Entry struct {
	Space string `json:"space"`
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Data is the full genesis data set, as loaded from a genesis file.
// Unspecified entries are absent, never zero-valued.
type Data struct {
	Entries []Entry `json:"entries"`
}

// Load reads a genesis data set from a JSON file on disk.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInternalError, "read genesis file", err)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInternalError, "parse genesis file", err)
	}
	return &d, nil
}

// ChainID locates the mandatory (metadata, "chain-id") entry and
// decodes it as a self-describing hash.
func (d *Data) ChainID() (crypto.Hash, error) {
	for _, e := range d.Entries {
		if e.Space == string(statedb.SpaceMetadata) && e.Key == ChainIDKey {
			h, err := crypto.Decode(e.Value)
			if err != nil {
				return crypto.Hash{}, chainerr.Wrap(chainerr.CodeInternalError, "decode chain-id", err)
			}
			return h, nil
		}
	}
	return crypto.Hash{}, chainerr.New(chainerr.CodeInternalError, "genesis data missing (metadata, chain-id)")
}

// Apply writes every entry into backend and returns the fork database
// and state-delta tree rooted at the genesis block id computed from
// ChainID. The caller is expected to have verified the backend is
// otherwise empty; Apply does not check for a pre-existing chain.
func (d *Data) Apply(backend statedb.Backend) (*forkdb.ForkDB, *statedelta.Tree, error) {
	chainID, err := d.ChainID()
	if err != nil {
		return nil, nil, err
	}

	for _, e := range d.Entries {
		if err := backend.Put(statedb.Space(e.Space), []byte(e.Key), e.Value); err != nil {
			return nil, nil, chainerr.Wrap(chainerr.CodeInternalError, "write genesis entry", err)
		}
	}

	return Reopen(backend, chainID)
}

// ChainIDFromBackend reads the (metadata, "chain-id") entry already
// written into backend, for restarting against a previously seeded
// database without re-applying genesis data.
func ChainIDFromBackend(backend statedb.Backend) (crypto.Hash, error) {
	raw, found, err := backend.Get(statedb.SpaceMetadata, []byte(ChainIDKey))
	if err != nil {
		return crypto.Hash{}, err
	}
	if !found {
		return crypto.Hash{}, chainerr.New(chainerr.CodeInternalError, "backend missing (metadata, chain-id)")
	}
	h, err := crypto.Decode(raw)
	if err != nil {
		return crypto.Hash{}, chainerr.Wrap(chainerr.CodeInternalError, "decode chain-id", err)
	}
	return h, nil
}

// Reopen builds the fork database and state-delta tree rooted at
// chainID over an already-seeded backend, without writing anything.
func Reopen(backend statedb.Backend, chainID crypto.Hash) (*forkdb.ForkDB, *statedelta.Tree, error) {
	tree := statedelta.New(backend, chainID)
	forks := forkdb.New(forkdb.Entry{ID: chainID, Previous: crypto.Hash{}, Number: 0})
	return forks, tree, nil
}
