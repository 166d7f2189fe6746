package chainctx

import (
	"sync"

	"github.com/koinos-go/chain/internal/chainerr"
)

// Session is a bounded RC budget for a single transaction's mana
// consumption. Overspending fails as an insufficient_rc reversion
// rather than a block-level resource failure, since it reflects the
// payer's own limit rather than a shared quota.
type Session struct {
	mu        sync.Mutex
	remaining uint64
	spent     uint64
	open      bool
}

// MakeSession opens a session with the given RC budget and attaches it
// to m for the caller's scope; the returned Session must be closed
// when that scope ends.
func MakeSession(m *Meter, rcLimit uint64) *Session {
	s := &Session{remaining: rcLimit, open: true}
	m.Attach(s)
	return s
}

func (s *Session) charge(rc uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return chainerr.New(chainerr.CodeInternalError, "charge against a closed session")
	}
	if rc > s.remaining {
		return chainerr.New(chainerr.CodeInsufficientRC, "resource credits exhausted")
	}
	s.remaining -= rc
	s.spent += rc
	return nil
}

// Spent reports RC consumed so far.
func (s *Session) Spent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spent
}

// Remaining reports RC left in the budget.
func (s *Session) Remaining() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Close detaches the session from its meter; further charges against
// it fail.
func (s *Session) Close(m *Meter) {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	m.Detach()
}
