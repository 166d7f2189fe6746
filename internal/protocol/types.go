// Package protocol defines the wire data model shared across the
// chain core: block headers, transactions, operations, and receipts.
// Canonical serialization uses RLP for compact, deterministic framing
// of the tagged operation union.
package protocol

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
)

type Address = crypto.Address

// BlockHeader carries the fields that participate in consensus and in
// the block id hash.
type BlockHeader struct {
	Height          uint64
	Timestamp       uint64 // milliseconds
	Previous        crypto.Hash
	TransactionRoot crypto.Hash
	Signer          Address
}

// CanonicalBytes returns the deterministic RLP encoding of the header
// used both as the signing payload and as the block id preimage.
func (h *BlockHeader) CanonicalBytes() ([]byte, error) {
	type wire struct {
		Height          uint64
		Timestamp       uint64
		Previous        []byte
		TransactionRoot []byte
		Signer          []byte
	}
	w := wire{
		Height:          h.Height,
		Timestamp:       h.Timestamp,
		Previous:        h.Previous.Bytes(),
		TransactionRoot: h.TransactionRoot.Bytes(),
		Signer:          h.Signer[:],
	}
	b, err := rlp.EncodeToBytes(&w)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeMalformedBlock, "encode header", err)
	}
	return b, nil
}

// ID is the sha-256 hash of the canonical header bytes.
func (h *BlockHeader) ID() (crypto.Hash, error) {
	b, err := h.CanonicalBytes()
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.SumSHA256(b), nil
}

// Block is a header plus its ordered transaction payload and a
// detached signature over the header hash.
type Block struct {
	Header       BlockHeader
	Transactions []*Transaction
	Signature    []byte
}

// OperationKind tags the Operation union.
type OperationKind int

const (
	OpUploadContract OperationKind = iota
	OpCallContract
	OpSetSystemCall
	OpNop
	OpReserved
)

// SystemCallTarget is either a numeric thunk id or a contract-call
// bundle; exactly one of ThunkID/Contract should be set, selected by
// IsContract.
type SystemCallTarget struct {
	IsContract bool
	ThunkID    uint32
	Contract   ContractCallBundle
}

// ContractCallBundle names a contract entry point used both by
// call_contract operations and by system-call overrides.
type ContractCallBundle struct {
	Contract   Address
	EntryPoint uint32
}

// Operation is a tagged union over the five operation kinds. Only the
// fields relevant to Kind are populated.
type Operation struct {
	Kind OperationKind

	// OpUploadContract
	ContractID Address
	Bytecode   []byte

	// OpCallContract
	CallTarget ContractCallBundle
	Args       []byte

	// OpSetSystemCall
	SystemCallID uint32
	Target       SystemCallTarget
}

// Transaction carries an operation list, resource limit, payer nonce,
// and a signature over the canonical header hash.
type Transaction struct {
	Operations []Operation
	RCLimit    uint64
	Nonce      uint64
	Payer      Address
	Signature  []byte
}

type txWire struct {
	RCLimit uint64
	Nonce   uint64
	Payer   []byte
	OpsHash []byte
}

// headerBytes returns the canonical signing payload for a transaction:
// its rc limit, nonce, payer, and a hash over its operation list, so
// that operation contents are bound without re-encoding variable-shape
// unions directly into the signed envelope.
func (t *Transaction) headerBytes() ([]byte, error) {
	opsHash, err := t.operationsHash()
	if err != nil {
		return nil, err
	}
	w := txWire{RCLimit: t.RCLimit, Nonce: t.Nonce, Payer: t.Payer[:], OpsHash: opsHash.Bytes()}
	b, err := rlp.EncodeToBytes(&w)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeMalformedTransaction, "encode transaction header", err)
	}
	return b, nil
}

func (t *Transaction) operationsHash() (crypto.Hash, error) {
	h := sha256OperationList(t.Operations)
	return h, nil
}

// ID is the sha-256 hash of the canonical transaction header; this is
// both the transaction id and the digest the payer's signature covers.
func (t *Transaction) ID() (crypto.Hash, error) {
	b, err := t.headerBytes()
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.SumSHA256(b), nil
}

func sha256OperationList(ops []Operation) crypto.Hash {
	type opWire struct {
		Kind         int
		ContractID   []byte
		Bytecode     []byte
		CallContract []byte
		CallEntry    uint32
		Args         []byte
		SystemCallID uint32
		IsContract   bool
		TargetThunk  uint32
		TargetAddr   []byte
		TargetEntry  uint32
	}
	wires := make([]opWire, 0, len(ops))
	for _, op := range ops {
		wires = append(wires, opWire{
			Kind:         int(op.Kind),
			ContractID:   op.ContractID[:],
			Bytecode:     op.Bytecode,
			CallContract: op.CallTarget.Contract[:],
			CallEntry:    op.CallTarget.EntryPoint,
			Args:         op.Args,
			SystemCallID: op.SystemCallID,
			IsContract:   op.Target.IsContract,
			TargetThunk:  op.Target.ThunkID,
			TargetAddr:   op.Target.Contract.Contract[:],
			TargetEntry:  op.Target.Contract.EntryPoint,
		})
	}
	b, err := rlp.EncodeToBytes(wires)
	if err != nil {
		return crypto.Hash{}
	}
	return crypto.SumSHA256(b)
}
