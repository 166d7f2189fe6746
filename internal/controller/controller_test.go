package controller

import (
	"strings"
	"testing"

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

func newTestController(t *testing.T) *Controller {
	t.Helper()
	backend := statedb.NewMemoryBackend()
	tree := statedelta.New(backend, crypto.Hash{})
	forks := forkdb.New(forkdb.Entry{ID: crypto.Hash{}, Previous: crypto.Hash{}, Number: 0})

	registry := dispatch.NewRegistry()
	thunks.RegisterAll(registry, nil)

	return New(forks, tree, registry, chainctx.DefaultRates, DefaultQuotas)
}

// block builds a fully signed, correctly rooted block: apply_block's
// default verification recomputes the transaction merkle root and the
// detached block signature, so every test block must carry both.
func block(t *testing.T, height uint64, previous crypto.Hash, signer *crypto.PrivateKey, txs ...*protocol.Transaction) *protocol.Block {
	t.Helper()
	root, err := protocol.TransactionMerkleRoot(txs)
	if err != nil {
		t.Fatalf("transaction merkle root: %v", err)
	}
	header := protocol.BlockHeader{
		Height:          height,
		Timestamp:       1000 + height,
		Previous:        previous,
		TransactionRoot: root,
		Signer:          crypto.DeriveAddress(signer),
	}
	id, err := header.ID()
	if err != nil {
		t.Fatalf("header id: %v", err)
	}
	return &protocol.Block{Header: header, Transactions: txs, Signature: signer.Sign(id.Bytes())}
}

func TestSubmitBlockGenesisSucceedsAtHeightOne(t *testing.T) {
	c := newTestController(t)
	signer := crypto.PrivateKeyFromSeed("test seed")

	b := block(t, 1, crypto.Hash{}, signer)
	receipt, err := c.SubmitBlock(b, nil)
	if err != nil {
		t.Fatalf("submit_block: %v", err)
	}
	id, _ := b.Header.ID()
	if !receipt.ID.Equal(id) {
		t.Fatalf("receipt id=%s want %s", receipt.ID, id)
	}

	head := c.GetHeadInfo()
	if head.Height != 1 || !head.ID.Equal(id) {
		t.Fatalf("head=%+v want height=1 id=%s", head, id)
	}
}

func TestSubmitBlockRejectsNonGenesisFirstBlock(t *testing.T) {
	c := newTestController(t)
	signer := crypto.PrivateKeyFromSeed("test seed")

	b := block(t, 2, crypto.Hash{}, signer)
	_, err := c.SubmitBlock(b, nil)
	if !chainerr.Is(err, chainerr.CodeMalformedBlock) {
		t.Fatalf("want malformed_block, got %v", err)
	}
	if !strings.Contains(err.Error(), "First block must have height of 1") {
		t.Fatalf("err=%q want mention of first-block height rule", err.Error())
	}

	head := c.GetHeadInfo()
	if head.Height != 0 || !head.ID.Equal(crypto.Hash{}) {
		t.Fatalf("head changed after a rejected first block: %+v", head)
	}
}

func TestSubmitBlockSwitchesToLongerFork(t *testing.T) {
	c := newTestController(t)
	signer := crypto.PrivateKeyFromSeed("test seed")

	prev := crypto.Hash{}
	var mainChain []crypto.Hash
	for h := uint64(1); h <= 6; h++ {
		b := block(t, h, prev, signer)
		if _, err := c.SubmitBlock(b, nil); err != nil {
			t.Fatalf("submit main block %d: %v", h, err)
		}
		id, _ := b.Header.ID()
		mainChain = append(mainChain, id)
		prev = id
	}

	forkParent := mainChain[2] // height 3, so the fork's first block is height 4
	forkPrev := forkParent
	// A second signer keeps fork headers (and so ids) distinct from the
	// main-chain blocks at the same heights.
	forkSigner := crypto.PrivateKeyFromSeed("fork seed")
	var lastForkID crypto.Hash
	for i := 0; i < 2; i++ {
		fb := block(t, uint64(4+i), forkPrev, forkSigner)
		if _, err := c.SubmitBlock(fb, nil); err != nil {
			t.Fatalf("submit short fork block %d: %v", i, err)
		}
		lastForkID, _ = fb.Header.ID()
		forkPrev = lastForkID
	}

	head := c.GetHeadInfo()
	if head.Height != 6 || !head.ID.Equal(mainChain[5]) {
		t.Fatalf("head should still be the six-block main chain, got %+v", head)
	}

	var tipID crypto.Hash
	for h := uint64(6); h <= 7; h++ {
		fb := block(t, h, forkPrev, forkSigner)
		if _, err := c.SubmitBlock(fb, nil); err != nil {
			t.Fatalf("submit fork-extending block %d: %v", h, err)
		}
		tipID, _ = fb.Header.ID()
		forkPrev = tipID
	}

	head = c.GetHeadInfo()
	if head.Height != 7 || !head.ID.Equal(tipID) {
		t.Fatalf("head should switch to the now-longer fork, got %+v want height=7 id=%s", head, tipID)
	}
}

func TestSubmitBlockRejectsUnlinkablePrevious(t *testing.T) {
	c := newTestController(t)
	signer := crypto.PrivateKeyFromSeed("test seed")

	b := block(t, 1, crypto.SumSHA256([]byte("nowhere")), signer)
	_, err := c.SubmitBlock(b, nil)
	if !chainerr.Is(err, chainerr.CodeMalformedBlock) {
		t.Fatalf("want malformed_block for unlinkable previous, got %v", err)
	}
}

func TestUploadContractOperationAppliesInsideABlock(t *testing.T) {
	c := newTestController(t)
	signer := crypto.PrivateKeyFromSeed("test seed")

	genesis := block(t, 1, crypto.Hash{}, signer)
	if _, err := c.SubmitBlock(genesis, nil); err != nil {
		t.Fatalf("submit genesis: %v", err)
	}
	genesisID, _ := genesis.Header.ID()

	contractOwner := crypto.PrivateKeyFromSeed("upload seed")
	contractAddr := crypto.DeriveAddress(contractOwner)

	uploadTx := &protocol.Transaction{
		Operations: []protocol.Operation{{
			Kind:       protocol.OpUploadContract,
			ContractID: contractAddr,
			Bytecode:   []byte("hello_wasm"),
		}},
		RCLimit: 1000,
		Nonce:   0,
		Payer:   contractAddr,
	}
	id, err := uploadTx.ID()
	if err != nil {
		t.Fatalf("tx id: %v", err)
	}
	uploadTx.Signature = contractOwner.Sign(id.Bytes())

	b2 := block(t, 2, genesisID, signer, uploadTx)
	receipt, err := c.SubmitBlock(b2, nil)
	if err != nil {
		t.Fatalf("submit upload block: %v", err)
	}
	if len(receipt.TransactionReceipts) != 1 || receipt.TransactionReceipts[0].Failed {
		t.Fatalf("upload transaction receipts=%+v want one successful receipt", receipt.TransactionReceipts)
	}
}
