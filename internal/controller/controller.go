// Package controller implements the public orchestration surface of
// the chain core (spec §4.8): submitting blocks and transactions,
// wiring the fork database to the state-delta tree, and answering
// head queries. The controller owns the single writer; reads against
// finalized nodes may run concurrently with it.
package controller

import (
	"encoding/binary"
	"sync"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/dispatch"
	"github.com/koinos-go/chain/internal/forkdb"
	"github.com/koinos-go/chain/internal/protocol"
	"github.com/koinos-go/chain/internal/statedb"
	"github.com/koinos-go/chain/internal/statedelta"
	"github.com/koinos-go/chain/internal/thunks"
)

// Quotas are the block-wide resource ceilings a fresh Meter is built
// with for every apply.
type Quotas struct {
	Disk    uint64
	Network uint64
	Compute uint64
}

// DefaultQuotas is a generous per-block resource ceiling, scaled
// across disk/network/compute instead of a single gas figure.
var DefaultQuotas = Quotas{Disk: 1 << 24, Network: 1 << 24, Compute: 1 << 32}

// Mempool is the subset of the pending-transaction pool the controller
// needs from submit_transaction; defined here (rather than imported
// from package mempool) so *mempool.Mempool satisfies it without
// either package importing the other. height is the chain height at submission time,
// used for later pruning; maxPayerRC is the payer's account rc ceiling
// at submission time, against which trx.RCLimit is budgeted.
type Mempool interface {
	Add(trx *protocol.Transaction, height uint64, maxPayerRC uint64) error
}

// Controller is the single writer over one chain: it owns the fork
// database and the state-delta tree it indexes, and holds the thunk
// registry every apply dispatches through.
type Controller struct {
	mu sync.Mutex

	forks    *forkdb.ForkDB
	tree     *statedelta.Tree
	registry *dispatch.Registry
	rates    chainctx.Rates
	quotas   Quotas
	mempool  Mempool
}

// New builds a controller over an already-constructed fork database
// and state-delta tree sharing the same genesis id, and the registry
// every apply_block/apply_transaction dispatch routes through.
func New(forks *forkdb.ForkDB, tree *statedelta.Tree, registry *dispatch.Registry, rates chainctx.Rates, quotas Quotas) *Controller {
	return &Controller{forks: forks, tree: tree, registry: registry, rates: rates, quotas: quotas}
}

// SetMempool binds the pending-transaction pool submit_transaction
// forwards validated transactions into.
func (c *Controller) SetMempool(m Mempool) { c.mempool = m }

// SubmitBlock locates the parent state node by the block's previous
// id, creates a writable child, binds an execution context, and
// invokes apply_block. On success the child is finalized and the fork
// database head is updated; on failure the child is discarded and the
// error returned, leaving head untouched.
func (c *Controller) SubmitBlock(block *protocol.Block, targetHeight *uint64) (*protocol.BlockReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := block.Header.ID()
	if err != nil {
		return nil, err
	}

	root := c.forks.Root()
	parentEntry, knownParent := c.forks.Fetch(block.Header.Previous)
	if !knownParent && !block.Header.Previous.Equal(root.ID) {
		return nil, chainerr.New(chainerr.CodeMalformedBlock, "unlinkable block: unknown previous id")
	}

	parentHeight := root.Number
	if knownParent {
		parentHeight = parentEntry.Number
	}
	if block.Header.Previous.Equal(root.ID) {
		if block.Header.Height != 1 {
			return nil, chainerr.New(chainerr.CodeMalformedBlock, "First block must have height of 1")
		}
	} else if block.Header.Height != parentHeight+1 {
		return nil, chainerr.New(chainerr.CodeMalformedBlock, "block height must follow its parent's height")
	}

	child, err := c.tree.CreateChild(block.Header.Previous, id, &block.Header)
	if err != nil {
		return nil, err
	}

	meter := chainctx.NewMeter(c.rates, c.quotas.Disk, c.quotas.Network, c.quotas.Compute)
	ctx := chainctx.New(chainctx.IntentBlockApplication, meter)
	ctx.SetTree(c.tree)
	ctx.SetStateNode(child)
	ctx.SetBlock(block)
	_ = ctx.PushFrame(chainctx.Frame{System: true, Privilege: chainctx.KernelMode})

	applyArgs, err := thunks.EncodeApplyBlockArgs(true, true, true)
	if err != nil {
		_ = c.tree.Discard(id)
		return nil, err
	}
	if _, err := c.registry.InvokeThunk(ctx, thunks.IDApplyBlock, applyArgs); err != nil {
		_ = c.tree.Discard(id)
		return nil, err
	}

	receipt, ok := ctx.BlockReceipt()
	if !ok {
		_ = c.tree.Discard(id)
		return nil, chainerr.New(chainerr.CodeInternalError, "apply_block completed without a bound receipt")
	}

	if err := c.tree.Finalize(id); err != nil {
		return nil, err
	}
	if root, err := c.tree.MerkleRoot(id); err == nil {
		receipt.StateMerkleRoot = root
	}
	if err := c.forks.Add(forkdb.Entry{ID: id, Previous: block.Header.Previous, Number: block.Header.Height, Block: block}, true); err != nil {
		return nil, err
	}

	return receipt, nil
}

// ApplyBlockDelta is the bulk-replay path used by the indexer to catch
// up on blocks a peer has already verified. A block whose id is already
// in the fork database is a no-op. Otherwise it re-executes apply_block
// with only the transaction-merkle-root check (no block or
// per-transaction signature checks); linkage is enforced by state-node
// creation and the fork-database add, and no height check is made. The
// block's writes come from that re-execution: the receipt argument is
// not read.
func (c *Controller) ApplyBlockDelta(block *protocol.Block, receipt *protocol.BlockReceipt, targetHeight uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := block.Header.ID()
	if err != nil {
		return err
	}
	if _, exists := c.forks.Fetch(id); exists {
		return nil
	}

	child, err := c.tree.CreateChild(block.Header.Previous, id, &block.Header)
	if err != nil {
		return err
	}

	meter := chainctx.NewMeter(c.rates, c.quotas.Disk, c.quotas.Network, c.quotas.Compute)
	ctx := chainctx.New(chainctx.IntentBlockApplication, meter)
	ctx.SetTree(c.tree)
	ctx.SetStateNode(child)
	ctx.SetBlock(block)
	_ = ctx.PushFrame(chainctx.Frame{System: true, Privilege: chainctx.KernelMode})

	// A peer or block store has already verified this block upstream;
	// re-run only the cheap transaction-merkle-root sanity check and
	// skip re-deriving the block and per-transaction signatures.
	applyArgs, err := thunks.EncodeApplyBlockArgs(true, false, false)
	if err != nil {
		_ = c.tree.Discard(id)
		return err
	}
	if _, err := c.registry.InvokeThunk(ctx, thunks.IDApplyBlock, applyArgs); err != nil {
		_ = c.tree.Discard(id)
		return err
	}

	if err := c.tree.Finalize(id); err != nil {
		return err
	}
	return c.forks.Add(forkdb.Entry{ID: id, Previous: block.Header.Previous, Number: block.Header.Height, Block: block}, true)
}

// SubmitTransaction validates trx against the current head's state
// (signature, nonce, rc availability) with a throwaway child node that
// is discarded regardless of outcome, then forwards it to the bound
// mempool.
func (c *Controller) SubmitTransaction(trx *protocol.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mempool == nil {
		return chainerr.New(chainerr.CodeInternalError, "no mempool bound to controller")
	}

	head := c.forks.Head()
	simID := crypto.SumSHA256(append(append([]byte("simulate"), head.ID.Bytes()...), trx.Signature...))
	child, err := c.tree.CreateChild(head.ID, simID, nil)
	if err != nil {
		return err
	}
	defer func() { _ = c.tree.Discard(simID) }()

	meter := chainctx.NewMeter(c.rates, c.quotas.Disk, c.quotas.Network, c.quotas.Compute)
	ctx := chainctx.New(chainctx.IntentTransactionApplication, meter)
	ctx.SetTree(c.tree)
	ctx.SetStateNode(child)
	ctx.SetTransaction(trx)
	_ = ctx.PushFrame(chainctx.Frame{System: true, Privilege: chainctx.KernelMode})

	if _, err := c.registry.InvokeThunk(ctx, thunks.IDApplyTransaction, nil); err != nil {
		return err
	}
	receipt, ok := ctx.TransactionReceipt()
	if !ok {
		return chainerr.New(chainerr.CodeInternalError, "apply_transaction completed without a bound receipt")
	}
	if receipt.Failed {
		return chainerr.New(chainerr.CodeMalformedTransaction, receipt.ErrorMessage)
	}

	maxPayerRC, err := c.GetAccountRC(trx.Payer)
	if err != nil {
		return err
	}
	return c.mempool.Add(trx, head.Number, maxPayerRC)
}

// HeadInfo is the read-only summary get_head_info answers with.
type HeadInfo struct {
	Height    uint64
	ID        crypto.Hash
	Previous  crypto.Hash
	Timestamp uint64
}

// GetHeadInfo returns the fork database's current head.
func (c *Controller) GetHeadInfo() HeadInfo {
	head := c.forks.Head()
	var ts uint64
	if b, ok := head.Block.(*protocol.Block); ok {
		ts = b.Header.Timestamp
	}
	return HeadInfo{Height: head.Number, ID: head.ID, Previous: head.Previous, Timestamp: ts}
}

// GetForkHeads returns every branch tip known to the fork database.
func (c *Controller) GetForkHeads() []*forkdb.Entry {
	return c.forks.Heads()
}

// Root returns the id the fork database is rooted at (the chain id
// for a freshly seeded chain, or the last irreversible block once the
// root has advanced).
func (c *Controller) Root() crypto.Hash {
	return c.forks.Root().ID
}

// GetAccountNonce reads the stored nonce for address relative to the
// current head's state node; an account with no recorded nonce is 0.
func (c *Controller) GetAccountNonce(address protocol.Address) (uint64, error) {
	head := c.forks.Head()
	raw, found, err := c.tree.Get(head.ID, statedb.SpaceAccountNonce, address[:])
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return decodeUint64(raw), nil
}

// GetAccountRC reads the resource-credit ceiling recorded for address
// relative to the current head's state node; an account with no
// recorded balance has none.
func (c *Controller) GetAccountRC(address protocol.Address) (uint64, error) {
	head := c.forks.Head()
	raw, found, err := c.tree.Get(head.ID, statedb.SpaceAccountRC, address[:])
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return decodeUint64(raw), nil
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
