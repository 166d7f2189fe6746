package protocol

import (
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
)

// transactionMerkleOps implements crypto.Operations over an ordered
// transaction list: leaves are transaction ids in list order, reduced
// the same way the state-delta tree reduces its own write-set merkle
// tree.
type transactionMerkleOps struct{}

func (transactionMerkleOps) GetHash(uint64) (crypto.Hash, bool) { return crypto.Hash{}, false }

func (transactionMerkleOps) EmptyHash() crypto.Hash { return crypto.SumSHA256(nil) }

func (transactionMerkleOps) Reduce(id uint64, left, right *crypto.Hash) crypto.Hash {
	if left == nil {
		panic("protocol: merkle reduce called with nil left child")
	}
	if right == nil {
		return *left
	}
	buf := make([]byte, 0, 4+len(left.Digest)+len(right.Digest))
	buf = append(buf, byte(id), byte(id>>8), byte(id>>16), byte(id>>24))
	buf = append(buf, left.Digest...)
	buf = append(buf, right.Digest...)
	return crypto.SumSHA256(buf)
}

// TransactionMerkleRoot computes the merkle root over txs in list
// order, leaf i being txs[i]'s id. An empty list hashes to
// transactionMerkleOps' empty-tree hash, matching an empty block's
// TransactionRoot.
func TransactionMerkleRoot(txs []*Transaction) (crypto.Hash, error) {
	w := crypto.NewWalker(transactionMerkleOps{})
	for _, tx := range txs {
		id, err := tx.ID()
		if err != nil {
			return crypto.Hash{}, err
		}
		w.Add(id)
	}
	return w.Close(), nil
}

// VerifyTransactionRoot recomputes the transaction merkle root over
// block and reports whether it matches the header's recorded
// TransactionRoot.
func (b *Block) VerifyTransactionRoot() (bool, error) {
	root, err := TransactionMerkleRoot(b.Transactions)
	if err != nil {
		return false, err
	}
	return root.Equal(b.Header.TransactionRoot), nil
}

// VerifySignature recovers the signer of the block's detached
// signature over the header id and reports whether it matches
// Header.Signer.
func (b *Block) VerifySignature() (bool, error) {
	id, err := b.Header.ID()
	if err != nil {
		return false, err
	}
	if len(b.Signature) == 0 {
		return false, chainerr.New(chainerr.CodeInvalidSignature, "block carries no signature")
	}
	return crypto.VerifySignature(b.Signature, id.Bytes(), b.Header.Signer)
}
