package vmadapter

import (
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
)

// hostState is the closure context the two env imports capture for the
// lifetime of a single Run call. The contract's final result is not
// tracked here: exit_contract and set_contract_result are ordinary
// thunks that write it onto the Context, and Run reads it back off
// the Context once the entry point returns.
type hostState struct {
	ctx        *chainctx.Context
	dispatcher Dispatcher
	mem        *wasmer.Memory

	budget uint64 // remaining ticks
	spent  uint64

	exitErr error
}

// boundsCheck validates a (ptr, length) pair against a memory size and
// returns the resolved [start,end) range. Split out from resolvePtr so
// the bounds logic is testable without a live wasmer.Memory.
func boundsCheck(memLen int, ptr, length int32) (int64, int64, error) {
	if ptr < 0 || length < 0 {
		return 0, 0, chainerr.New(chainerr.CodeWasmTrap, "negative pointer or length")
	}
	end := int64(ptr) + int64(length)
	if end > int64(memLen) {
		return 0, 0, chainerr.New(chainerr.CodeWasmTrap, "pointer out of bounds")
	}
	return int64(ptr), end, nil
}

// resolvePtr bounds-checks a (ptr, length) pair against the guest's
// current linear memory and returns a host-owned copy of the region.
func (h *hostState) resolvePtr(ptr, length int32) ([]byte, error) {
	data := h.mem.Data()
	start, end, err := boundsCheck(len(data), ptr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, data[start:end])
	return out, nil
}

// writeAt writes data into the guest's memory at ptr, bounds-checked
// against the current memory size.
func (h *hostState) writeAt(ptr int32, data []byte) error {
	mem := h.mem.Data()
	start, end, err := boundsCheck(len(mem), ptr, int32(len(data)))
	if err != nil {
		return err
	}
	copy(mem[start:end], data)
	return nil
}

// consumeTick charges the tick budget, trapping the call when
// exhausted. It is the adapter's stand-in for the instrumented
// per-opcode metering the compiled bytecode would otherwise carry.
func (h *hostState) consumeTick(n uint64) error {
	if h.spent+n > h.budget {
		return chainerr.New(chainerr.CodeBlockResourceFailure, "tick budget exhausted")
	}
	h.spent += n
	return nil
}

func i32Type(nIn, nOut int) *wasmer.FunctionType {
	in := make([]wasmer.ValueKind, nIn)
	for i := range in {
		in[i] = wasmer.I32
	}
	out := make([]wasmer.ValueKind, nOut)
	for i := range out {
		out[i] = wasmer.I32
	}
	return wasmer.NewFunctionType(wasmer.NewValueTypes(in...), wasmer.NewValueTypes(out...))
}

// hostCallTickCost is charged against the budget on every host entry.
// wasmer-go exposes no per-opcode metering middleware (unlike the
// instrumented-bytecode approach the rest of the ecosystem uses), so
// ticks consumed between host calls are approximated by a flat charge
// per invoke_thunk/invoke_system_call crossing rather than actually
// counted per opcode.
const hostCallTickCost = 1

// importObject wires the two host imports a guest module may call:
// invoke_thunk and invoke_system_call, each taking a 6-word argument
// list (selector, arg_ptr, arg_len, ret_ptr, ret_len, ret_len_ptr) and
// returning a status code.
func (h *hostState) importObject(store *wasmer.Store) (*wasmer.ImportObject, error) {
	imports := wasmer.NewImportObject()

	invokeThunk := wasmer.NewFunction(store, i32Type(6, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		return h.invoke(args, h.dispatcher.InvokeThunk)
	})

	invokeSystemCall := wasmer.NewFunction(store, i32Type(6, 1), func(args []wasmer.Value) ([]wasmer.Value, error) {
		return h.invoke(args, h.dispatcher.InvokeSystemCall)
	})

	imports.Register("env", map[string]wasmer.IntoExtern{
		"invoke_thunk":       invokeThunk,
		"invoke_system_call": invokeSystemCall,
	})
	return imports, nil
}

type invokeFn func(ctx *chainctx.Context, id uint32, args []byte) ([]byte, error)

// invoke implements the shared body of invoke_thunk/invoke_system_call:
// read the argument buffer, dispatch, write the result (failing with
// insufficient_return_buffer if it is longer than ret_len), and report
// the written length through ret_len_ptr.
func (h *hostState) invoke(args []wasmer.Value, call invokeFn) ([]wasmer.Value, error) {
	if err := h.consumeTick(hostCallTickCost); err != nil {
		h.exitErr = err
		return []wasmer.Value{wasmer.NewI32(-1)}, nil
	}

	selector := uint32(args[0].I32())
	argPtr, argLen := args[1].I32(), args[2].I32()
	retPtr, retLen := args[3].I32(), args[4].I32()
	retLenPtr := args[5].I32()

	argData, err := h.resolvePtr(argPtr, argLen)
	if err != nil {
		h.exitErr = err
		return []wasmer.Value{wasmer.NewI32(-1)}, nil
	}

	out, callErr := call(h.ctx, selector, argData)
	if callErr != nil {
		h.exitErr = callErr
		return []wasmer.Value{wasmer.NewI32(-1)}, nil
	}

	if int32(len(out)) > retLen {
		h.exitErr = chainerr.New(chainerr.CodeInsufficientReturnBuffer, "return buffer too small")
		return []wasmer.Value{wasmer.NewI32(-1)}, nil
	}
	if err := h.writeAt(retPtr, out); err != nil {
		h.exitErr = err
		return []wasmer.Value{wasmer.NewI32(-1)}, nil
	}
	lenBuf := []byte{byte(len(out)), byte(len(out) >> 8), byte(len(out) >> 16), byte(len(out) >> 24)}
	if err := h.writeAt(retLenPtr, lenBuf); err != nil {
		h.exitErr = err
		return []wasmer.Value{wasmer.NewI32(-1)}, nil
	}
	return []wasmer.Value{wasmer.NewI32(0)}, nil
}
