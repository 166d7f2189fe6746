package mempool

import (
	"testing"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/protocol"
)

func signedTrx(t *testing.T, payer *crypto.PrivateKey, nonce uint64, rcLimit uint64) *protocol.Transaction {
	t.Helper()
	tx := &protocol.Transaction{
		RCLimit: rcLimit,
		Nonce:   nonce,
		Payer:   crypto.DeriveAddress(payer),
	}
	id, err := tx.ID()
	if err != nil {
		t.Fatalf("transaction id: %v", err)
	}
	tx.Signature = payer.Sign(id.Bytes())
	return tx
}

func TestAddRejectsDuplicateAsNoOp(t *testing.T) {
	m := New()
	payer := crypto.PrivateKeyFromSeed("alpha bravo charlie delta")
	tx := signedTrx(t, payer, 0, 10)

	if err := m.Add(tx, 1, 25); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add(tx, 2, 25); err != nil {
		t.Fatalf("duplicate add should be a no-op, got %v", err)
	}

	id, _ := tx.ID()
	if !m.HasPendingTransaction(id) {
		t.Fatalf("transaction should be pending")
	}
	pending, err := m.GetPendingTransactions(crypto.Hash{}, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%v err=%v want one entry", pending, err)
	}
}

func TestAddRejectsWhenExceedingPayerResources(t *testing.T) {
	m := New()
	payer := crypto.PrivateKeyFromSeed("echo foxtrot golf hotel")
	tx := signedTrx(t, payer, 0, 10)
	if err := m.Add(tx, 1, 25); err != nil {
		t.Fatalf("first add: %v", err)
	}

	second := signedTrx(t, payer, 1, 20)
	if err := m.Add(second, 1, 25); !chainerr.Is(err, chainerr.CodePendingTransactionLimitExceeded) {
		t.Fatalf("want pending_transaction_exceeds_resources, got %v", err)
	}
}

func TestPruneFreesPayerBudgetForLaterSubmission(t *testing.T) {
	m := New()
	payer := crypto.PrivateKeyFromSeed("india juliet kilo lima")
	first := signedTrx(t, payer, 0, 10)
	if err := m.Add(first, 1, 25); err != nil {
		t.Fatalf("first add: %v", err)
	}

	second := signedTrx(t, payer, 1, 20)
	if err := m.Add(second, 1, 25); !chainerr.Is(err, chainerr.CodePendingTransactionLimitExceeded) {
		t.Fatalf("want pending_transaction_exceeds_resources before pruning, got %v", err)
	}

	m.Prune(1)

	id, _ := first.ID()
	if m.HasPendingTransaction(id) {
		t.Fatalf("first transaction should have been pruned")
	}
	if err := m.Add(second, 2, 25); err != nil {
		t.Fatalf("add after prune: %v", err)
	}
}

func TestRemoveReleasesReservedResources(t *testing.T) {
	m := New()
	payer := crypto.PrivateKeyFromSeed("remove-test-seed")
	tx := signedTrx(t, payer, 0, 10)
	if err := m.Add(tx, 1, 25); err != nil {
		t.Fatalf("add: %v", err)
	}

	id, _ := tx.ID()
	m.Remove(id)
	if m.HasPendingTransaction(id) {
		t.Fatalf("transaction should be removed")
	}
	if m.PayerEntriesSize() != 0 {
		t.Fatalf("payer entries should be cleared after its last pending transaction is removed")
	}

	second := signedTrx(t, payer, 1, 25)
	if err := m.Add(second, 2, 25); err != nil {
		t.Fatalf("add after remove should see a fresh budget, got %v", err)
	}
}

func TestGetPendingTransactionsPaginatesInSubmissionOrder(t *testing.T) {
	m := New()
	var ids []crypto.Hash
	for i := 0; i < 3; i++ {
		payer := crypto.PrivateKeyFromSeed("pagination-seed")
		tx := signedTrx(t, payer, uint64(i), 1)
		if err := m.Add(tx, uint64(i), 100); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		id, _ := tx.ID()
		ids = append(ids, id)
	}

	page, err := m.GetPendingTransactions(crypto.Hash{}, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("page=%v err=%v want 2 entries", page, err)
	}
	for i, tx := range page {
		if got, _ := tx.ID(); !got.Equal(ids[i]) {
			t.Fatalf("page[%d]=%s want %s (submission order)", i, got, ids[i])
		}
	}

	if _, err := m.GetPendingTransactions(crypto.Hash{}, MaxPendingTransactionRequest+1); !chainerr.Is(err, chainerr.CodeBlockResourceFailure) {
		t.Fatalf("want overflow rejection, got %v", err)
	}
}
