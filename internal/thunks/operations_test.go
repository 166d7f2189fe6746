package thunks

import (
	"testing"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/dispatch"
	"github.com/koinos-go/chain/internal/protocol"
	"github.com/koinos-go/chain/internal/statedb"
)

func TestApplyUploadContractOperationStoresBytecode(t *testing.T) {
	ctx := newTestContext(t)
	contractID := crypto.SumSHA256([]byte("contract")).Bytes()[:20]

	args, _ := encodeRLP(uploadContractArgs{ContractID: contractID, Bytecode: []byte("wasm-bytes")})
	if _, err := ApplyUploadContractOperation(ctx, args); err != nil {
		t.Fatalf("apply_upload_contract_operation: %v", err)
	}

	stored, found, err := ctx.GetObject(statedb.SpaceContractBytecode, contractID)
	if err != nil || !found || string(stored) != "wasm-bytes" {
		t.Fatalf("stored=%q found=%v err=%v want wasm-bytes,true,nil", stored, found, err)
	}
}

func TestApplySetSystemCallOperationRequiresKernelMode(t *testing.T) {
	ctx := newTestContext(t)
	_ = ctx.PushFrame(chainctx.Frame{System: false, Privilege: chainctx.UserMode})

	thunk := NewApplySetSystemCallOperation()
	args, _ := encodeRLP(setSystemCallArgs{SystemCallID: 99, IsContract: false, ThunkID: 1})
	if _, err := thunk(ctx, args); !chainerr.Is(err, chainerr.CodeInsufficientPrivileges) {
		t.Fatalf("want insufficient_privileges, got %v", err)
	}
}

func TestApplySetSystemCallOperationInstallsOverride(t *testing.T) {
	ctx := newTestContext(t)
	thunk := NewApplySetSystemCallOperation()
	args, _ := encodeRLP(setSystemCallArgs{SystemCallID: 99, IsContract: false, ThunkID: 1})
	if _, err := thunk(ctx, args); err != nil {
		t.Fatalf("apply_set_system_call_operation: %v", err)
	}

	raw, found, err := ctx.GetObject(statedb.SpaceSystemCallDispatch, []byte{0, 0, 0, 99})
	if err != nil || !found || len(raw) == 0 {
		t.Fatalf("override not written: found=%v err=%v", found, err)
	}
}

func signedTransaction(t *testing.T, payer *crypto.PrivateKey, nonce uint64, ops []protocol.Operation) *protocol.Transaction {
	t.Helper()
	tx := &protocol.Transaction{
		Operations: ops,
		RCLimit:    1000,
		Nonce:      nonce,
		Payer:      crypto.DeriveAddress(payer),
	}
	id, err := tx.ID()
	if err != nil {
		t.Fatalf("transaction id: %v", err)
	}
	tx.Signature = payer.Sign(id.Bytes())
	return tx
}

func TestApplyTransactionUploadContractEndToEnd(t *testing.T) {
	ctx := newTestContext(t)
	registry := dispatch.NewRegistry()
	RegisterAll(registry, nil)

	payer := crypto.PrivateKeyFromSeed("apply-transaction-test")
	contractID := crypto.SumSHA256([]byte("c1")).Bytes()[:20]
	tx := signedTransaction(t, payer, 0, []protocol.Operation{
		{Kind: protocol.OpUploadContract, ContractID: addrFrom(contractID), Bytecode: []byte("wasm")},
	})

	ctx.SetTransaction(tx)
	if _, err := registry.InvokeThunk(ctx, IDApplyTransaction, nil); err != nil {
		t.Fatalf("apply_transaction: %v", err)
	}

	receipt, ok := ctx.TransactionReceipt()
	if !ok || receipt.Failed {
		t.Fatalf("receipt=%+v ok=%v want success", receipt, ok)
	}

	stored, found, err := ctx.GetObject(statedb.SpaceContractBytecode, contractID)
	if err != nil || !found || string(stored) != "wasm" {
		t.Fatalf("stored=%q found=%v err=%v", stored, found, err)
	}

	nonceRaw, found, err := ctx.GetObject(statedb.SpaceAccountNonce, tx.Payer[:])
	if err != nil || !found || decodeUint64(nonceRaw) != 1 {
		t.Fatalf("nonce not advanced: raw=%v found=%v err=%v", nonceRaw, found, err)
	}
}

func TestApplyTransactionRejectsBadNonce(t *testing.T) {
	ctx := newTestContext(t)
	registry := dispatch.NewRegistry()
	RegisterAll(registry, nil)

	payer := crypto.PrivateKeyFromSeed("apply-transaction-nonce-test")
	tx := signedTransaction(t, payer, 5, nil)

	ctx.SetTransaction(tx)
	if _, err := registry.InvokeThunk(ctx, IDApplyTransaction, nil); !chainerr.Is(err, chainerr.CodeInvalidNonce) {
		t.Fatalf("want invalid_nonce, got %v", err)
	}
}

// signedBlock builds a block whose TransactionRoot and detached
// Signature are both computed from txs and signer, so it passes
// apply_block's full verification when every check flag is set.
func signedBlock(t *testing.T, signer *crypto.PrivateKey, height uint64, previous crypto.Hash, txs []*protocol.Transaction) *protocol.Block {
	t.Helper()
	root, err := protocol.TransactionMerkleRoot(txs)
	if err != nil {
		t.Fatalf("transaction merkle root: %v", err)
	}
	header := protocol.BlockHeader{
		Height:          height,
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

func TestApplyBlockAggregatesTransactionReceipts(t *testing.T) {
	ctx := newTestContext(t)
	registry := dispatch.NewRegistry()
	RegisterAll(registry, nil)

	signer := crypto.PrivateKeyFromSeed("apply-block-test")
	contractID := crypto.SumSHA256([]byte("c2")).Bytes()[:20]
	tx := signedTransaction(t, signer, 0, []protocol.Operation{
		{Kind: protocol.OpUploadContract, ContractID: addrFrom(contractID), Bytecode: []byte("wasm")},
	})

	block := signedBlock(t, signer, 1, crypto.Hash{}, []*protocol.Transaction{tx})
	ctx.SetBlock(block)

	applyArgs, _ := EncodeApplyBlockArgs(true, true, true)
	if _, err := registry.InvokeThunk(ctx, IDApplyBlock, applyArgs); err != nil {
		t.Fatalf("apply_block: %v", err)
	}

	br, ok := ctx.BlockReceipt()
	if !ok {
		t.Fatalf("no block receipt bound")
	}
	if len(br.TransactionReceipts) != 1 || br.TransactionReceipts[0].Failed {
		t.Fatalf("transaction receipts=%+v", br.TransactionReceipts)
	}
}

func TestApplyBlockRejectsSignatureMismatch(t *testing.T) {
	ctx := newTestContext(t)
	registry := dispatch.NewRegistry()
	RegisterAll(registry, nil)

	signer := crypto.PrivateKeyFromSeed("apply-block-bad-sig")
	block := signedBlock(t, signer, 1, crypto.Hash{}, nil)
	id, err := block.Header.ID()
	if err != nil {
		t.Fatalf("header id: %v", err)
	}
	block.Signature = crypto.PrivateKeyFromSeed("someone-else").Sign(id.Bytes())
	ctx.SetBlock(block)

	applyArgs, _ := EncodeApplyBlockArgs(false, true, false)
	if _, err := registry.InvokeThunk(ctx, IDApplyBlock, applyArgs); !chainerr.Is(err, chainerr.CodeInvalidSignature) {
		t.Fatalf("want invalid_signature, got %v", err)
	}
}

func TestApplyBlockRejectsTransactionRootMismatch(t *testing.T) {
	ctx := newTestContext(t)
	registry := dispatch.NewRegistry()
	RegisterAll(registry, nil)

	signer := crypto.PrivateKeyFromSeed("apply-block-bad-root")
	payer := crypto.PrivateKeyFromSeed("apply-block-bad-root-payer")
	tx := signedTransaction(t, payer, 0, nil)
	block := signedBlock(t, signer, 1, crypto.Hash{}, nil)
	block.Transactions = []*protocol.Transaction{tx}
	ctx.SetBlock(block)

	applyArgs, _ := EncodeApplyBlockArgs(true, false, false)
	if _, err := registry.InvokeThunk(ctx, IDApplyBlock, applyArgs); !chainerr.Is(err, chainerr.CodeStateMerkleMismatch) {
		t.Fatalf("want state_merkle_mismatch, got %v", err)
	}
}

func TestApplyTransactionTreatsNopAsSuccess(t *testing.T) {
	ctx := newTestContext(t)
	registry := dispatch.NewRegistry()
	RegisterAll(registry, nil)

	payer := crypto.PrivateKeyFromSeed("apply-transaction-nop")
	tx := signedTransaction(t, payer, 0, []protocol.Operation{{Kind: protocol.OpNop}})

	ctx.SetTransaction(tx)
	if _, err := registry.InvokeThunk(ctx, IDApplyTransaction, nil); err != nil {
		t.Fatalf("apply_transaction: %v", err)
	}
	receipt, ok := ctx.TransactionReceipt()
	if !ok || receipt.Failed {
		t.Fatalf("receipt=%+v ok=%v want success", receipt, ok)
	}
}

func TestApplyTransactionRejectsReservedOperation(t *testing.T) {
	ctx := newTestContext(t)
	registry := dispatch.NewRegistry()
	RegisterAll(registry, nil)

	payer := crypto.PrivateKeyFromSeed("apply-transaction-reserved")
	tx := signedTransaction(t, payer, 0, []protocol.Operation{{Kind: protocol.OpReserved}})

	ctx.SetTransaction(tx)
	if _, err := registry.InvokeThunk(ctx, IDApplyTransaction, nil); !chainerr.Is(err, chainerr.CodeReservedOperation) {
		t.Fatalf("want reserved_operation, got %v", err)
	}
}

func TestApplyBlockIsolatesFailingTransaction(t *testing.T) {
	ctx := newTestContext(t)
	registry := dispatch.NewRegistry()
	RegisterAll(registry, nil)

	signer := crypto.PrivateKeyFromSeed("apply-block-isolation")
	goodPayer := crypto.PrivateKeyFromSeed("apply-block-isolation-good")
	badPayer := crypto.PrivateKeyFromSeed("apply-block-isolation-bad")

	contractID := crypto.SumSHA256([]byte("c3")).Bytes()[:20]
	good := signedTransaction(t, goodPayer, 0, []protocol.Operation{
		{Kind: protocol.OpUploadContract, ContractID: addrFrom(contractID), Bytecode: []byte("wasm")},
	})
	// A stale nonce makes this transaction fail with a ClassFailure
	// code after good has already landed.
	bad := signedTransaction(t, badPayer, 5, nil)

	block := signedBlock(t, signer, 1, crypto.Hash{}, []*protocol.Transaction{good, bad})
	ctx.SetBlock(block)

	applyArgs, _ := EncodeApplyBlockArgs(true, true, true)
	if _, err := registry.InvokeThunk(ctx, IDApplyBlock, applyArgs); err != nil {
		t.Fatalf("apply_block: %v", err)
	}

	br, ok := ctx.BlockReceipt()
	if !ok {
		t.Fatalf("no block receipt bound")
	}
	if len(br.TransactionReceipts) != 2 {
		t.Fatalf("transaction receipts=%+v", br.TransactionReceipts)
	}
	if br.TransactionReceipts[0].Failed {
		t.Fatalf("good transaction reported failed: %+v", br.TransactionReceipts[0])
	}
	if !br.TransactionReceipts[1].Failed || br.TransactionReceipts[1].ErrorCode != chainerr.CodeInvalidNonce.String() {
		t.Fatalf("bad transaction receipt=%+v want failed invalid_nonce", br.TransactionReceipts[1])
	}

	stored, found, err := ctx.GetObject(statedb.SpaceContractBytecode, contractID)
	if err != nil || !found || string(stored) != "wasm" {
		t.Fatalf("good transaction's write did not survive: stored=%q found=%v err=%v", stored, found, err)
	}
}

func addrFrom(b []byte) protocol.Address {
	var a protocol.Address
	copy(a[:], b)
	return a
}
