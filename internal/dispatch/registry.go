// Package dispatch resolves a system-call id to either a native thunk
// or a contract-call override and invokes it, implementing the
// algorithm in spec §4.5. It is the concrete vmadapter.Dispatcher the
// controller wires into every VM run.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/vmadapter"
)

// ThunkFunc is a native implementation of one thunk, receiving the
// bound execution context and the raw argument bytes.
type ThunkFunc func(ctx *chainctx.Context, args []byte) ([]byte, error)

// Registry is the process-wide thunk table and default system-call
// map, populated once at startup.
type Registry struct {
	mu       sync.RWMutex
	thunks   map[uint32]ThunkFunc
	defaults map[uint32]uint32 // system-call id -> default thunk id
	vm       *vmadapter.VM
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		thunks:   make(map[uint32]ThunkFunc),
		defaults: make(map[uint32]uint32),
	}
}

// RegisterThunk adds a native thunk under id. Registering the same id
// twice is a programming error and panics immediately: the thunk table
// is only ever built once, at startup.
func (r *Registry) RegisterThunk(id uint32, fn ThunkFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.thunks[id]; exists {
		panic(fmt.Sprintf("dispatch: thunk %d registered twice", id))
	}
	r.thunks[id] = fn
}

// SetDefaultSystemCall records the compile-time default thunk for a
// system-call id, used when no override entry exists in the dispatch
// space.
func (r *Registry) SetDefaultSystemCall(systemCallID, thunkID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[systemCallID] = thunkID
}

func (r *Registry) lookupThunk(id uint32) (ThunkFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.thunks[id]
	return fn, ok
}

func (r *Registry) lookupDefault(systemCallID uint32) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	thunkID, ok := r.defaults[systemCallID]
	return thunkID, ok
}

func (r *Registry) callThunk(ctx *chainctx.Context, id uint32, args []byte) ([]byte, error) {
	fn, ok := r.lookupThunk(id)
	if !ok {
		return nil, chainerr.New(chainerr.CodeUnknownThunk, fmt.Sprintf("unknown thunk id %d", id))
	}
	return fn(ctx, args)
}
