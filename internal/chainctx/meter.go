package chainctx

import (
	"sync"

	"github.com/koinos-go/chain/internal/chainerr"
)

// ResourceKind names one of the three metered dimensions (spec §4.3).
type ResourceKind int

const (
	ResourceDisk ResourceKind = iota
	ResourceNetwork
	ResourceCompute
)

// Rates converts a unit of each resource kind into RC, the currency a
// Session is denominated in.
type Rates struct {
	DiskPerByte    uint64
	NetworkPerByte uint64
	ComputePerTick uint64
}

// DefaultRates is a flat gas table: every resource kind costs a small,
// fixed amount of RC per unit.
var DefaultRates = Rates{
	DiskPerByte:    10,
	NetworkPerByte: 1,
	ComputePerTick: 1,
}

// Meter tracks consumption against the block-level quotas and, when a
// Session is attached, converts consumption into RC charges.
type Meter struct {
	mu sync.Mutex

	rates   Rates
	quotas  map[ResourceKind]uint64
	used    map[ResourceKind]uint64
	session *Session
}

// NewMeter builds a meter with the given block-wide resource quotas.
func NewMeter(rates Rates, diskQuota, networkQuota, computeQuota uint64) *Meter {
	return &Meter{
		rates: rates,
		quotas: map[ResourceKind]uint64{
			ResourceDisk:    diskQuota,
			ResourceNetwork: networkQuota,
			ResourceCompute: computeQuota,
		},
		used: map[ResourceKind]uint64{},
	}
}

// Attach binds s to the meter for the duration of the current
// transaction; consumption is charged to s until it is detached.
func (m *Meter) Attach(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
}

// Detach clears the attached session.
func (m *Meter) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}

// Consume charges amount units of kind against both the block quota
// and, if attached, the active session's RC budget.
func (m *Meter) Consume(kind ResourceKind, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.used[kind]+amount > m.quotas[kind] {
		switch kind {
		case ResourceDisk:
			return chainerr.New(chainerr.CodeStorageLimitExceeded, "disk resource quota exceeded")
		case ResourceNetwork:
			return chainerr.New(chainerr.CodeBandwidthLimitExceeded, "network resource quota exceeded")
		default:
			return chainerr.New(chainerr.CodeBlockResourceFailure, "compute resource quota exceeded")
		}
	}

	if m.session != nil {
		rc := rcCost(m.rates, kind, amount)
		if err := m.session.charge(rc); err != nil {
			return err
		}
	}

	m.used[kind] += amount
	return nil
}

// Used reports cumulative consumption of kind so far.
func (m *Meter) Used(kind ResourceKind) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[kind]
}

// Remaining reports the unconsumed block-wide quota for kind; the VM
// adapter reads ResourceCompute's remaining budget as the guest's tick
// allowance for one run.
func (m *Meter) Remaining(kind ResourceKind) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.used[kind] >= m.quotas[kind] {
		return 0
	}
	return m.quotas[kind] - m.used[kind]
}

func rcCost(r Rates, kind ResourceKind, amount uint64) uint64 {
	switch kind {
	case ResourceDisk:
		return amount * r.DiskPerByte
	case ResourceNetwork:
		return amount * r.NetworkPerByte
	default:
		return amount * r.ComputePerTick
	}
}
