package dispatch

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/protocol"
	"github.com/koinos-go/chain/internal/statedb"
	"github.com/koinos-go/chain/internal/vmadapter"
)

// SetVM binds the WASM VM used to invoke contract-call overrides.
func (r *Registry) SetVM(vm *vmadapter.VM) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = vm
}

func dispatchKey(systemCallID uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, systemCallID)
	return buf
}

type overrideWire struct {
	IsContract bool
	ThunkID    uint32
	Contract   []byte
	EntryPoint uint32
}

// InvokeThunk is the invoke_thunk host entry point: it requires
// kernel-mode privilege and bypasses override resolution entirely.
func (r *Registry) InvokeThunk(ctx *chainctx.Context, id uint32, args []byte) ([]byte, error) {
	if ctx.GetPrivilege() != chainctx.KernelMode {
		return nil, chainerr.New(chainerr.CodeInsufficientPrivileges, "invoke_thunk requires kernel-mode privilege")
	}
	return r.callThunk(ctx, id, args)
}

// InvokeSystemCall is the invoke_system_call host entry point,
// implementing the five-step resolution algorithm of spec §4.5.
func (r *Registry) InvokeSystemCall(ctx *chainctx.Context, systemCallID uint32, args []byte) ([]byte, error) {
	target, hasOverride, err := r.readOverride(ctx, systemCallID)
	if err != nil {
		return nil, err
	}

	if !hasOverride {
		thunkID, ok := r.lookupDefault(systemCallID)
		if !ok {
			return nil, chainerr.New(chainerr.CodeUnknownSystemCall, "no override and no default thunk for system call")
		}
		target = protocol.SystemCallTarget{IsContract: false, ThunkID: thunkID}
	}

	if !target.IsContract {
		callerPrivilege := ctx.GetPrivilege()
		var out []byte
		err := ctx.WithFrame(chainctx.Frame{System: true, Privilege: callerPrivilege}, func() error {
			o, e := r.callThunk(ctx, target.ThunkID, args)
			out = o
			return e
		})
		return out, err
	}

	return r.invokeContractOverride(ctx, target.Contract, args)
}

// readOverride looks up the dispatch-space entry for systemCallID in a
// scoped kernel-mode frame, per step 1 of the algorithm.
func (r *Registry) readOverride(ctx *chainctx.Context, systemCallID uint32) (protocol.SystemCallTarget, bool, error) {
	var target protocol.SystemCallTarget
	found := false
	err := ctx.WithFrame(chainctx.Frame{System: true, Privilege: chainctx.KernelMode}, func() error {
		raw, ok, gerr := ctx.GetObject(statedb.SpaceSystemCallDispatch, dispatchKey(systemCallID))
		if gerr != nil {
			return gerr
		}
		if !ok {
			return nil
		}
		var w overrideWire
		if derr := rlp.DecodeBytes(raw, &w); derr != nil {
			return chainerr.Wrap(chainerr.CodeInternalError, "decode dispatch override", derr)
		}
		target.IsContract = w.IsContract
		target.ThunkID = w.ThunkID
		copy(target.Contract.Contract[:], w.Contract)
		target.Contract.EntryPoint = w.EntryPoint
		found = true
		return nil
	})
	return target, found, err
}

// WriteOverride installs a dispatch-space override for systemCallID,
// used by the set_system_call thunk.
func WriteOverride(ctx *chainctx.Context, systemCallID uint32, target protocol.SystemCallTarget) error {
	w := overrideWire{
		IsContract: target.IsContract,
		ThunkID:    target.ThunkID,
		Contract:   append([]byte(nil), target.Contract.Contract[:]...),
		EntryPoint: target.Contract.EntryPoint,
	}
	raw, err := rlp.EncodeToBytes(&w)
	if err != nil {
		return chainerr.Wrap(chainerr.CodeInternalError, "encode dispatch override", err)
	}
	return ctx.PutObject(statedb.SpaceSystemCallDispatch, dispatchKey(systemCallID), raw)
}

// invokeContractOverride runs the overriding contract's entry point in
// a scoped kernel-mode frame and returns its exit payload, per step 4
// of the algorithm.
func (r *Registry) invokeContractOverride(ctx *chainctx.Context, bundle protocol.ContractCallBundle, args []byte) ([]byte, error) {
	if r.vm == nil {
		return nil, chainerr.New(chainerr.CodeInternalError, "no VM bound to dispatch registry")
	}

	bytecode, ok, err := ctx.GetObject(statedb.SpaceContractBytecode, bundle.Contract[:])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, chainerr.New(chainerr.CodeInvalidContract, "system call override names unknown contract")
	}

	depth := ctx.CallDepth()
	ticks := ctx.Meter().Remaining(chainctx.ResourceCompute)

	var out []byte
	runErr := ctx.WithFrame(chainctx.Frame{
		System:     true,
		Privilege:  chainctx.KernelMode,
		ContractID: bundle.Contract,
		EntryPoint: bundle.EntryPoint,
		Args:       args,
	}, func() error {
		o, e := r.vm.Run(ctx, bytecode, "_start", depth, ticks, r)
		out = o
		return e
	})
	return out, runErr
}
