package statedelta

import (
	"bytes"
	"sort"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
)

// nodeMerkleOps implements crypto.Operations over a single node's own
// write set: leaves are (key, value-hash) pairs in ascending key
// order, with deletions hashed distinctly from puts.
type nodeMerkleOps struct{}

func (nodeMerkleOps) GetHash(uint64) (crypto.Hash, bool) { return crypto.Hash{}, false }

func (nodeMerkleOps) EmptyHash() crypto.Hash { return crypto.SumSHA256(nil) }

func (nodeMerkleOps) Reduce(id uint64, left, right *crypto.Hash) crypto.Hash {
	if left == nil {
		panic("statedelta: merkle reduce called with nil left child")
	}
	if right == nil {
		return *left
	}
	buf := make([]byte, 0, 8+len(left.Digest)+len(right.Digest))
	buf = append(buf, byte(id), byte(id>>8), byte(id>>16), byte(id>>24))
	buf = append(buf, left.Digest...)
	buf = append(buf, right.Digest...)
	return crypto.SumSHA256(buf)
}

// MerkleRoot computes the deterministic hash of node id's own write
// set, caching the result until the next write.
func (t *Tree) MerkleRoot(id crypto.Hash) (crypto.Hash, error) {
	n, ok := t.Lookup(id)
	if !ok {
		return crypto.Hash{}, chainerr.New(chainerr.CodeStateNodeNotFound, "unknown state node")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.merkleCached {
		return n.merkleRoot, nil
	}

	refs := append([]keyRef(nil), n.keyOrder...)
	sort.Slice(refs, func(i, j int) bool {
		if !bytes.Equal(refs[i].space, refs[j].space) {
			return bytes.Compare(refs[i].space, refs[j].space) < 0
		}
		return bytes.Compare(refs[i].key, refs[j].key) < 0
	})

	w := crypto.NewWalker(nodeMerkleOps{})
	for _, ref := range refs {
		rec := n.writes[recordKey(ref.space, ref.key)]
		tag := byte(0)
		if rec.deleted {
			tag = 1
		}
		leafBuf := make([]byte, 0, len(ref.space)+len(ref.key)+len(rec.value)+1)
		leafBuf = append(leafBuf, ref.space...)
		leafBuf = append(leafBuf, ref.key...)
		leafBuf = append(leafBuf, tag)
		leafBuf = append(leafBuf, rec.value...)
		w.Add(crypto.SumSHA256(leafBuf))
	}
	root := w.Close()
	n.merkleRoot = root
	n.merkleCached = true
	return root, nil
}
