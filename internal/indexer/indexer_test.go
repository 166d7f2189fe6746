package indexer

import (
	"context"
	"sync"
	"testing"

	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/mqadapter"
	"github.com/koinos-go/chain/internal/protocol"
)

type fakeBlockStoreClient struct {
	mu    sync.Mutex
	total uint64
}

func (f *fakeBlockStoreClient) GetHighestBlock(ctx context.Context) (mqadapter.Topology, error) {
	return mqadapter.Topology{Height: f.total}, nil
}

func (f *fakeBlockStoreClient) GetBlocksByHeight(ctx context.Context, headID crypto.Hash, startHeight uint64, num uint32, returnBlock, returnReceipt bool) ([]mqadapter.BlockItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []mqadapter.BlockItem
	for h := startHeight; h < startHeight+uint64(num) && h <= f.total; h++ {
		out = append(out, mqadapter.BlockItem{
			Block:   &protocol.Block{Header: protocol.BlockHeader{Height: h}},
			Receipt: &protocol.BlockReceipt{Height: h},
		})
	}
	return out, nil
}

type fakeController struct {
	mu      sync.Mutex
	applied []uint64
}

func (f *fakeController) SubmitBlock(block *protocol.Block, targetHeight *uint64) (*protocol.BlockReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, block.Header.Height)
	return &protocol.BlockReceipt{Height: block.Header.Height}, nil
}

func (f *fakeController) ApplyBlockDelta(block *protocol.Block, receipt *protocol.BlockReceipt, targetHeight uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, block.Header.Height)
	return nil
}

func TestIndexCatchesUpToTarget(t *testing.T) {
	client := &fakeBlockStoreClient{total: 100}
	ctrl := &fakeController{}
	idx := New(client, ctrl)

	ok, err := idx.Index(context.Background(), crypto.Hash{}, 0, 100, false)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if !ok {
		t.Fatalf("index should resolve true when it reaches target")
	}

	ctrl.mu.Lock()
	n := len(ctrl.applied)
	ctrl.mu.Unlock()
	if n != 100 {
		t.Fatalf("applied %d blocks, want 100", n)
	}
}

func TestIndexStopsCleanlyWhenAlreadyAtTarget(t *testing.T) {
	client := &fakeBlockStoreClient{total: 5}
	ctrl := &fakeController{}
	idx := New(client, ctrl)

	ok, err := idx.Index(context.Background(), crypto.Hash{}, 5, 5, true)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v want true,nil", ok, err)
	}
	if len(ctrl.applied) != 0 {
		t.Fatalf("no blocks should be applied when already at target")
	}
}

func TestStopHaltsPipelineWithoutError(t *testing.T) {
	client := &fakeBlockStoreClient{total: 100000}
	ctrl := &fakeController{}
	idx := New(client, ctrl)
	idx.Stop()

	ok, err := idx.Index(context.Background(), crypto.Hash{}, 0, 100000, true)
	if err != nil {
		t.Fatalf("stopped run should not surface an error, got %v", err)
	}
	if ok {
		t.Fatalf("stopped run should resolve false")
	}
}
