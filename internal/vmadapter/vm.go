// Package vmadapter hosts a contract's WASM bytecode inside wasmer,
// exposing exactly the two host imports the dispatcher needs
// (invoke_thunk, invoke_system_call) and translating every wasm trap
// or bounds violation into a coded chain error (spec §4.5-4.6).
package vmadapter

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
)

// MaxMemoryPages bounds a contract's linear memory to 512 64KiB pages
// (32MiB), matching the host's hard ceiling on guest memory.
const MaxMemoryPages = 512

// MaxCallDepth bounds nested contract-to-contract calls. It is
// smaller than chainctx.MaxFrames because every nested call also
// consumes a handful of bookkeeping frames of its own.
const MaxCallDepth = 251

// Dispatcher resolves a thunk or system-call id to its implementation;
// the dispatch package supplies the concrete instance wired to a
// Context.
type Dispatcher interface {
	InvokeThunk(ctx *chainctx.Context, id uint32, args []byte) ([]byte, error)
	InvokeSystemCall(ctx *chainctx.Context, id uint32, args []byte) ([]byte, error)
}

// VM compiles and runs contract bytecode. A VM is safe for concurrent
// use; its module cache is the only shared mutable state and the
// hashicorp lru.Cache already serializes access internally.
type VM struct {
	engine *wasmer.Engine
	store  *wasmer.Store
	cache  *lru.Cache[string, *wasmer.Module]
}

// New builds a VM with a module cache holding up to cacheSize compiled
// modules, keyed by the SHA-256 of their bytecode.
func New(cacheSize int) (*VM, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	cache, err := lru.New[string, *wasmer.Module](cacheSize)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInternalError, "module cache init", err)
	}
	return &VM{engine: engine, store: store, cache: cache}, nil
}

func (vm *VM) compile(bytecode []byte) (*wasmer.Module, error) {
	key := crypto.SumSHA256(bytecode).Key()
	if mod, ok := vm.cache.Get(key); ok {
		return mod, nil
	}
	mod, err := wasmer.NewModule(vm.store, bytecode)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInvalidContract, "module compilation failed", err)
	}
	vm.cache.Add(key, mod)
	return mod, nil
}

// Run instantiates bytecode and calls its entry-point export,
// returning the contract's exit payload. depth is the current
// contract-call nesting, checked against MaxCallDepth before
// instantiation.
func (vm *VM) Run(ctx *chainctx.Context, bytecode []byte, entryPoint string, depth int, ticks uint64, d Dispatcher) ([]byte, error) {
	if depth > MaxCallDepth {
		return nil, chainerr.New(chainerr.CodeStackOverflow, "contract call nesting exceeds maximum depth")
	}

	mod, err := vm.compile(bytecode)
	if err != nil {
		return nil, err
	}

	ctx.ClearResult()
	h := &hostState{ctx: ctx, dispatcher: d, budget: ticks}
	imports, err := h.importObject(vm.store)
	if err != nil {
		return nil, err
	}

	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInvalidContract, "module instantiation failed", err)
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, chainerr.New(chainerr.CodeInvalidContract, "contract does not export linear memory")
	}
	if mem.Size() > MaxMemoryPages {
		return nil, chainerr.New(chainerr.CodeInvalidContract, "contract memory exceeds maximum page count")
	}
	h.mem = mem

	entry, err := instance.Exports.GetFunction(entryPoint)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInvalidContract, "entry point export not found", err)
	}

	if _, err := entry(); err != nil {
		if h.exitErr != nil {
			return nil, h.exitErr
		}
		return nil, chainerr.Wrap(chainerr.CodeWasmTrap, "wasm execution trapped", err)
	}

	result, _ := ctx.Result()
	return result, nil
}
