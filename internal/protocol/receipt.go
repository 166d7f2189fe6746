package protocol

import "github.com/koinos-go/chain/internal/crypto"

// LogEntry is a single console or event log line produced during
// apply, bubbled up into the owning receipt.
type LogEntry struct {
	Source  Address
	Message string
}

// TransactionReceipt summarizes one transaction's apply outcome.
type TransactionReceipt struct {
	ID         crypto.Hash
	Payer      Address
	RCUsed     uint64
	DiskUsed   uint64
	NetworkUsed uint64
	ComputeUsed uint64
	Logs       []LogEntry
	ReturnData []byte
	Failed     bool
	ErrorCode  string
	ErrorMessage string
}

// BlockReceipt summarizes a block's apply outcome: intent matches the
// execution-context union described in §4.4 ("receipt() returns a
// mutable reference; its union variant matches the intent").
type BlockReceipt struct {
	ID                   crypto.Hash
	Height               uint64
	TransactionReceipts  []TransactionReceipt
	RCUsed               uint64
	DiskUsed             uint64
	NetworkUsed          uint64
	ComputeUsed          uint64
	StateMerkleRoot      crypto.Hash
}
