// Package statedelta implements the fork-aware, versioned overlay
// tree described in spec §4.1: a tree of in-memory delta nodes
// anchored on a statedb.Backend, with snapshot isolation, branch
// switching, and commit-time squash into the backend.
package statedelta

import (
	"fmt"
	"sync"

	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/protocol"
	"github.com/koinos-go/chain/internal/statedb"
)

type record struct {
	value   []byte
	deleted bool
}

func recordKey(space statedb.Space, key []byte) string {
	return fmt.Sprintf("%x\x00%x", space, key)
}

// Node is a point in the state-delta tree. Reads observe the node's
// own write set and then its ancestor chain up to (but not including)
// the backend-anchored root.
type Node struct {
	mu sync.RWMutex

	id       crypto.Hash
	parent   *Node
	revision uint64
	header   *protocol.BlockHeader

	finalized bool
	arrival   uint64

	writes   map[string]record
	keyOrder []keyRef // first-write order; sorted lazily for merkle root

	children []*Node

	merkleCached bool
	merkleRoot   crypto.Hash
}

type keyRef struct {
	space statedb.Space
	key   []byte
}

// ID returns the node's stable identity hash.
func (n *Node) ID() crypto.Hash { return n.id }

// Revision returns the node's depth from the root (root = 0).
func (n *Node) Revision() uint64 { return n.revision }

// Header returns the node's optional block header, if any.
func (n *Node) Header() *protocol.BlockHeader { return n.header }

// Finalized reports whether the node has been finalized, after which
// it no longer accepts writes.
func (n *Node) Finalized() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.finalized
}

// Parent returns the node's parent, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

func (n *Node) lookup(space statedb.Space, key []byte) (record, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	r, ok := n.writes[recordKey(space, key)]
	return r, ok
}

func (n *Node) setRecord(space statedb.Space, key []byte, r record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	k := recordKey(space, key)
	if _, existed := n.writes[k]; !existed {
		n.keyOrder = append(n.keyOrder, keyRef{space: append(statedb.Space(nil), space...), key: append([]byte(nil), key...)})
	}
	n.writes[k] = r
	n.merkleCached = false
}
