// Package mempool implements the pending-transaction pool: an
// insertion-ordered queue of not-yet-included transactions, indexed by
// id and by submission height for pruning, with a per-payer resource
// budget that caps how much of an account's resource ceiling pending
// transactions may reserve at once (spec §4.9).
package mempool

import (
	"sort"
	"sync"

	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/protocol"
)

// MaxPendingTransactionRequest bounds a single GetPendingTransactions
// page.
const MaxPendingTransactionRequest = 2000

type pendingTransaction struct {
	id            crypto.Hash
	trx           *protocol.Transaction
	height        uint64
	payer         protocol.Address
	resourceLimit uint64
	arrival       uint64
}

type accountResource struct {
	resources    uint64
	maxResources uint64
}

// Mempool is the pending-transaction pool. It satisfies the
// controller.Mempool interface so a controller can forward validated
// transactions into it without either package importing the other.
type Mempool struct {
	mu sync.Mutex

	byID      map[string]*pendingTransaction
	byHeight  map[uint64][]*pendingTransaction
	resources map[protocol.Address]*accountResource

	seq uint64
}

// New creates an empty pool.
func New() *Mempool {
	return &Mempool{
		byID:      make(map[string]*pendingTransaction),
		byHeight:  make(map[uint64][]*pendingTransaction),
		resources: make(map[protocol.Address]*accountResource),
	}
}

// HasPendingTransaction reports whether id is already queued.
func (m *Mempool) HasPendingTransaction(id crypto.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id.Key()]
	return ok
}

// Add reserves trx.RCLimit out of the payer's maxPayerRC budget and
// queues trx at height. A payer's first pending transaction opens its
// budget at maxPayerRC; every transaction after that is checked
// against whatever of that budget remains, regardless of how
// maxPayerRC itself may have since moved: the first pending
// transaction sets the ceiling for the whole batch.
func (m *Mempool) Add(trx *protocol.Transaction, height uint64, maxPayerRC uint64) error {
	id, err := trx.ID()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[id.Key()]; exists {
		return nil
	}

	acct, ok := m.resources[trx.Payer]
	if !ok {
		if trx.RCLimit > maxPayerRC {
			return chainerr.New(chainerr.CodePendingTransactionLimitExceeded, "transaction would exceed maximum resources for account")
		}
		acct = &accountResource{resources: maxPayerRC - trx.RCLimit, maxResources: maxPayerRC}
		m.resources[trx.Payer] = acct
	} else {
		if trx.RCLimit > acct.resources {
			return chainerr.New(chainerr.CodePendingTransactionLimitExceeded, "transaction would exceed resources for account")
		}
		acct.resources -= trx.RCLimit
	}

	m.seq++
	pt := &pendingTransaction{
		id:            id,
		trx:           trx,
		height:        height,
		payer:         trx.Payer,
		resourceLimit: trx.RCLimit,
		arrival:       m.seq,
	}
	m.byID[id.Key()] = pt
	m.byHeight[height] = append(m.byHeight[height], pt)
	return nil
}

// Remove dequeues id, if present, releasing its reserved resources
// back to the payer's budget.
func (m *Mempool) Remove(id crypto.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt, ok := m.byID[id.Key()]
	if !ok {
		return
	}
	m.cleanupAccountResources(pt)
	delete(m.byID, id.Key())
	m.byHeight[pt.height] = removePending(m.byHeight[pt.height], pt)
}

// Prune removes every pending transaction submitted at or before
// height, releasing their reserved resources. A block landing at
// height frees every transaction the block could have already
// included.
func (m *Mempool) Prune(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for h, pts := range m.byHeight {
		if h > height {
			continue
		}
		for _, pt := range pts {
			m.cleanupAccountResources(pt)
			delete(m.byID, pt.id.Key())
		}
		delete(m.byHeight, h)
	}
}

func (m *Mempool) cleanupAccountResources(pt *pendingTransaction) {
	acct, ok := m.resources[pt.payer]
	if !ok {
		return
	}
	if newMax := acct.maxResources - pt.resourceLimit; newMax <= acct.resources {
		delete(m.resources, pt.payer)
	} else {
		acct.resources += pt.resourceLimit
	}
}

func removePending(list []*pendingTransaction, target *pendingTransaction) []*pendingTransaction {
	for i, pt := range list {
		if pt == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// GetPendingTransactions returns up to limit transactions in
// submission order, starting immediately after start (the zero hash
// means "from the beginning").
func (m *Mempool) GetPendingTransactions(start crypto.Hash, limit int) ([]*protocol.Transaction, error) {
	if limit > MaxPendingTransactionRequest {
		return nil, chainerr.New(chainerr.CodeBlockResourceFailure, "requested too many pending transactions")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := make([]*pendingTransaction, 0, len(m.byID))
	for _, pt := range m.byID {
		ordered = append(ordered, pt)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].arrival < ordered[j].arrival })

	startIdx := 0
	if !start.IsZero() {
		if from, ok := m.byID[start.Key()]; ok {
			for i, pt := range ordered {
				if pt == from {
					startIdx = i + 1
					break
				}
			}
		}
	}

	out := make([]*protocol.Transaction, 0, limit)
	for i := startIdx; i < len(ordered) && len(out) < limit; i++ {
		out = append(out, ordered[i].trx)
	}
	return out, nil
}

// PayerEntriesSize reports how many distinct payers currently have a
// reserved resource budget.
func (m *Mempool) PayerEntriesSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources)
}
