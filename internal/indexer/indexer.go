// Package indexer implements the bounded, three-stage catch-up
// pipeline that replays blocks from an external block store into the
// controller (spec §4.9): a request producer, a response consumer,
// and an applier, communicating through two bounded channels and
// cooperatively cancelled via a stopped flag.
package indexer

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/mqadapter"
	"github.com/koinos-go/chain/internal/protocol"
)

// Default queue depths and batch sizing, matching the implementation
// defaults named in spec §4.9.
const (
	RequestQueueSize = 100
	BlockQueueSize   = 100
	StartBatchSize   = 50
	MaxBatchSize     = 1000
)

// Controller is the subset of controller.Controller the indexer
// drives; defined here (rather than imported) so indexer can be
// tested against a fake without depending on the controller package's
// construction details.
type Controller interface {
	SubmitBlock(block *protocol.Block, targetHeight *uint64) (*protocol.BlockReceipt, error)
	ApplyBlockDelta(block *protocol.Block, receipt *protocol.BlockReceipt, targetHeight uint64) error
}

// Indexer drives one catch-up run at a time; Index is not reentrant
// on the same Indexer value.
type Indexer struct {
	client  mqadapter.BlockStoreClient
	ctrl    Controller
	stopped atomic.Bool
}

// New builds an indexer over client and ctrl.
func New(client mqadapter.BlockStoreClient, ctrl Controller) *Indexer {
	return &Indexer{client: client, ctrl: ctrl}
}

// Stop sets the cooperative stop flag; every stage checks it on its
// next loop turn and exits without corrupting pipeline state.
func (idx *Indexer) Stop() { idx.stopped.Store(true) }

type requestHandle struct {
	startHeight uint64
	result      chan batchResult
}

type batchResult struct {
	items []mqadapter.BlockItem
	err   error
}

// Index replays blocks from the local head (exclusive) up to target
// (inclusive), verifying each one via SubmitBlock when verify is true
// or via ApplyBlockDelta (handing it the block-store's receipt)
// otherwise. It resolves true on reaching target, false (with nil
// error) if stopped mid-run, or the first pipeline error encountered.
func (idx *Indexer) Index(ctx context.Context, headID crypto.Hash, localHeight, target uint64, verify bool) (bool, error) {
	if localHeight >= target {
		return true, nil
	}

	requestQueue := make(chan requestHandle, RequestQueueSize)
	blockQueue := make(chan mqadapter.BlockItem, BlockQueueSize)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return idx.produce(ctx, headID, localHeight, target, requestQueue) })
	g.Go(func() error { return idx.consume(ctx, requestQueue, blockQueue) })
	g.Go(func() error { return idx.apply(ctx, blockQueue, target, verify) })

	if err := g.Wait(); err != nil {
		return false, err
	}
	return !idx.stopped.Load(), nil
}

// produce pushes in-flight request handles for contiguous batches
// until lastRequestedHeight reaches target, doubling the batch size
// from StartBatchSize up to MaxBatchSize on each iteration.
func (idx *Indexer) produce(ctx context.Context, headID crypto.Hash, localHeight, target uint64, requestQueue chan<- requestHandle) error {
	defer close(requestQueue)

	batchSize := uint64(StartBatchSize)
	next := localHeight + 1
	for next <= target {
		if idx.stopped.Load() {
			return nil
		}
		if batchSize > MaxBatchSize {
			batchSize = MaxBatchSize
		}
		num := batchSize
		if remaining := target - next + 1; num > remaining {
			num = remaining
		}

		h := requestHandle{startHeight: next, result: make(chan batchResult, 1)}
		startHeight := next
		go func() {
			items, err := idx.client.GetBlocksByHeight(ctx, headID, startHeight, uint32(num), true, true)
			h.result <- batchResult{items: items, err: err}
		}()

		select {
		case requestQueue <- h:
		case <-ctx.Done():
			return ctx.Err()
		}

		next += num
		batchSize *= 2
	}
	return nil
}

// consume pulls request handles in order, blocks on each one's
// result, and forwards every returned block item downstream.
func (idx *Indexer) consume(ctx context.Context, requestQueue <-chan requestHandle, blockQueue chan<- mqadapter.BlockItem) error {
	defer close(blockQueue)

	for {
		if idx.stopped.Load() {
			return nil
		}
		select {
		case h, ok := <-requestQueue:
			if !ok {
				return nil
			}
			select {
			case res := <-h.result:
				if res.err != nil {
					idx.stopped.Store(true)
					return res.err
				}
				for _, item := range res.items {
					select {
					case blockQueue <- item:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// apply pulls (block, receipt) pairs and submits them to the
// controller, stopping on the first apply failure.
func (idx *Indexer) apply(ctx context.Context, blockQueue <-chan mqadapter.BlockItem, target uint64, verify bool) error {
	for {
		if idx.stopped.Load() {
			return nil
		}
		select {
		case item, ok := <-blockQueue:
			if !ok {
				return nil
			}
			if item.Block == nil {
				continue
			}
			if verify {
				if _, err := idx.ctrl.SubmitBlock(item.Block, &target); err != nil {
					idx.stopped.Store(true)
					return chainerr.Wrap(chainerr.CodeIndexerFailure, "indexer submit_block", err)
				}
				continue
			}
			if err := idx.ctrl.ApplyBlockDelta(item.Block, item.Receipt, target); err != nil {
				idx.stopped.Store(true)
				return chainerr.Wrap(chainerr.CodeIndexerFailure, "indexer apply_block_delta", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
