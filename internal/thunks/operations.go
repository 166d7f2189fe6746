package thunks

import (
	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/dispatch"
	"github.com/koinos-go/chain/internal/protocol"
	"github.com/koinos-go/chain/internal/statedb"
	"github.com/koinos-go/chain/internal/vmadapter"
)

// ApplyUploadContractOperation stores a contract's bytecode under its
// id, charging the upload to the disk quota.
func ApplyUploadContractOperation(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a uploadContractArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	if err := ctx.Meter().Consume(chainctx.ResourceDisk, uint64(len(a.Bytecode))); err != nil {
		return nil, err
	}
	if err := ctx.PutObject(statedb.SpaceContractBytecode, a.ContractID, a.Bytecode); err != nil {
		return nil, err
	}
	return nil, nil
}

// NewApplyCallContractOperation returns the apply_call_contract_operation
// thunk, closed over the VM used to run the target contract's bytecode
// and the dispatcher nested invoke_thunk/invoke_system_call calls route
// back through.
func NewApplyCallContractOperation(vm *vmadapter.VM, d vmadapter.Dispatcher) func(ctx *chainctx.Context, args []byte) ([]byte, error) {
	return func(ctx *chainctx.Context, args []byte) ([]byte, error) {
		var a callContractArgs
		if err := decodeRLP(args, &a); err != nil {
			return nil, err
		}
		var contract protocol.Address
		copy(contract[:], a.Contract)

		bytecode, ok, err := ctx.GetObject(statedb.SpaceContractBytecode, contract[:])
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, chainerr.New(chainerr.CodeInvalidContract, "call_contract names unknown contract")
		}

		depth := ctx.CallDepth()
		ticks := ctx.Meter().Remaining(chainctx.ResourceCompute)

		var out []byte
		runErr := ctx.WithFrame(chainctx.Frame{
			ContractID: contract,
			Privilege:  chainctx.UserMode,
			EntryPoint: a.EntryPoint,
			Args:       a.Args,
		}, func() error {
			o, e := vm.Run(ctx, bytecode, "_start", depth, ticks, d)
			out = o
			return e
		})
		return out, runErr
	}
}

// NewApplySetSystemCallOperation returns the
// apply_set_system_call_operation thunk, which installs a dispatch
// override. Only kernel-mode callers may redirect a system call.
func NewApplySetSystemCallOperation() func(ctx *chainctx.Context, args []byte) ([]byte, error) {
	return func(ctx *chainctx.Context, args []byte) ([]byte, error) {
		if ctx.GetPrivilege() != chainctx.KernelMode {
			return nil, chainerr.New(chainerr.CodeInsufficientPrivileges, "set_system_call requires kernel-mode privilege")
		}
		var a setSystemCallArgs
		if err := decodeRLP(args, &a); err != nil {
			return nil, err
		}
		target := protocol.SystemCallTarget{IsContract: a.IsContract, ThunkID: a.ThunkID}
		copy(target.Contract.Contract[:], a.Contract)
		target.Contract.EntryPoint = a.ContractEntryPoint
		return nil, dispatch.WriteOverride(ctx, a.SystemCallID, target)
	}
}

// operationSystemCallID maps an operation's kind to the system-call id
// its native thunk is registered as the default handler for, so that
// governance overrides of call_contract/upload_contract/set_system_call
// apply uniformly to both wasm-issued and transaction-issued calls.
// OpNop and OpReserved have no system call of their own; the
// transaction loop handles both before ever consulting this function.
func operationSystemCallID(kind protocol.OperationKind) (uint32, bool) {
	switch kind {
	case protocol.OpUploadContract:
		return IDApplyUploadContractOperation, true
	case protocol.OpCallContract:
		return IDApplyCallContractOperation, true
	case protocol.OpSetSystemCall:
		return IDApplySetSystemCallOperation, true
	default:
		return 0, false
	}
}

func encodeOperationArgs(op protocol.Operation) ([]byte, error) {
	switch op.Kind {
	case protocol.OpUploadContract:
		return encodeRLP(uploadContractArgs{ContractID: op.ContractID[:], Bytecode: op.Bytecode})
	case protocol.OpCallContract:
		return encodeRLP(callContractArgs{Contract: op.CallTarget.Contract[:], EntryPoint: op.CallTarget.EntryPoint, Args: op.Args})
	case protocol.OpSetSystemCall:
		return encodeRLP(setSystemCallArgs{
			SystemCallID:       op.SystemCallID,
			IsContract:         op.Target.IsContract,
			ThunkID:            op.Target.ThunkID,
			Contract:           op.Target.Contract.Contract[:],
			ContractEntryPoint: op.Target.Contract.EntryPoint,
		})
	default:
		return nil, chainerr.New(chainerr.CodeUnknownOperation, "operation kind has no registered handler")
	}
}

// NewApplyTransaction returns the apply_transaction thunk: it verifies
// the payer's signature and nonce, opens an RC session for the
// transaction's declared limit, dispatches each operation through the
// system-call registry (so operation handling composes with dispatch
// overrides the same way a contract's own system calls do), and fills
// in the transaction receipt bound to the context.
func NewApplyTransaction(registry *dispatch.Registry) func(ctx *chainctx.Context, args []byte) ([]byte, error) {
	return func(ctx *chainctx.Context, args []byte) ([]byte, error) {
		tx, err := ctx.GetTransaction()
		if err != nil {
			return nil, err
		}

		id, err := tx.ID()
		if err != nil {
			return nil, err
		}

		// Bound before any check can fail, so a block applying many
		// transactions always has a receipt to append for this one,
		// including the signature/nonce failures checked below.
		receipt := &protocol.TransactionReceipt{ID: id, Payer: tx.Payer}
		ctx.SetTransactionReceipt(receipt)

		if !ctx.SkipTransactionSignatureCheck() {
			ok, err := crypto.VerifySignature(tx.Signature, id.Bytes(), tx.Payer)
			if err != nil {
				receipt.Failed = true
				receipt.ErrorCode, receipt.ErrorMessage = chainerr.Describe(err)
				return nil, err
			}
			if !ok {
				err := chainerr.New(chainerr.CodeInvalidSignature, "transaction signature does not match payer")
				receipt.Failed = true
				receipt.ErrorCode, receipt.ErrorMessage = chainerr.Describe(err)
				return nil, err
			}
		}

		storedNonce := uint64(0)
		raw, found, err := ctx.GetObject(statedb.SpaceAccountNonce, tx.Payer[:])
		if err != nil {
			return nil, err
		}
		if found {
			storedNonce = decodeUint64(raw)
		}
		if tx.Nonce != storedNonce {
			err := chainerr.New(chainerr.CodeInvalidNonce, "transaction nonce does not match account nonce")
			receipt.Failed = true
			receipt.ErrorCode, receipt.ErrorMessage = chainerr.Describe(err)
			return nil, err
		}

		session, closeSession := ctx.AttachSession(tx.RCLimit)
		defer closeSession()

		diskBefore := ctx.Meter().Used(chainctx.ResourceDisk)
		netBefore := ctx.Meter().Used(chainctx.ResourceNetwork)
		computeBefore := ctx.Meter().Used(chainctx.ResourceCompute)

		for _, op := range tx.Operations {
			if op.Kind == protocol.OpNop {
				continue
			}
			if op.Kind == protocol.OpReserved {
				err := chainerr.New(chainerr.CodeReservedOperation, "reserved operation kind is not permitted")
				receipt.Failed = true
				receipt.ErrorCode, receipt.ErrorMessage = chainerr.Describe(err)
				return nil, err
			}
			scID, ok := operationSystemCallID(op.Kind)
			if !ok {
				err := chainerr.New(chainerr.CodeUnknownOperation, "transaction carries an unrecognized operation kind")
				receipt.Failed = true
				receipt.ErrorCode, receipt.ErrorMessage = chainerr.Describe(err)
				return nil, err
			}
			opArgs, err := encodeOperationArgs(op)
			if err != nil {
				receipt.Failed = true
				receipt.ErrorCode, receipt.ErrorMessage = chainerr.Describe(err)
				return nil, err
			}
			if _, err := registry.InvokeSystemCall(ctx, scID, opArgs); err != nil {
				receipt.Failed = true
				receipt.ErrorCode, receipt.ErrorMessage = chainerr.Describe(err)
				return nil, err
			}
		}

		if err := ctx.PutObject(statedb.SpaceAccountNonce, tx.Payer[:], encodeUint64(tx.Nonce+1)); err != nil {
			return nil, err
		}

		console := ctx.DrainConsole()
		if console != "" {
			receipt.Logs = append(receipt.Logs, protocol.LogEntry{Source: tx.Payer, Message: console})
		}
		if result, ok := ctx.Result(); ok {
			receipt.ReturnData = result
		}

		receipt.RCUsed = session.Spent()
		receipt.DiskUsed = ctx.Meter().Used(chainctx.ResourceDisk) - diskBefore
		receipt.NetworkUsed = ctx.Meter().Used(chainctx.ResourceNetwork) - netBefore
		receipt.ComputeUsed = ctx.Meter().Used(chainctx.ResourceCompute) - computeBefore

		return nil, nil
	}
}

// NewApplyBlock returns the apply_block thunk: it verifies the block's
// structural integrity per its check flags, then runs every
// transaction in the block bound to the context in order, accumulating
// their receipts and resource usage into the block receipt. Each
// transaction runs against its own scratch state node so a
// ClassFailure outcome can be rolled back without discarding what
// earlier transactions in the same block already wrote; a
// ClassReversion outcome still aborts the whole block.
func NewApplyBlock(registry *dispatch.Registry) func(ctx *chainctx.Context, args []byte) ([]byte, error) {
	return func(ctx *chainctx.Context, args []byte) ([]byte, error) {
		block, ok := ctx.GetBlock()
		if !ok {
			return nil, chainerr.New(chainerr.CodeUnexpectedAccess, "no block bound to this context")
		}

		a := applyBlockArgs{CheckPassive: true, CheckSignature: true, CheckTrxSigs: true}
		if len(args) > 0 {
			if err := decodeRLP(args, &a); err != nil {
				return nil, err
			}
		}

		id, err := block.Header.ID()
		if err != nil {
			return nil, err
		}

		if a.CheckSignature {
			verified, err := block.VerifySignature()
			if err != nil {
				return nil, err
			}
			if !verified {
				return nil, chainerr.New(chainerr.CodeInvalidSignature, "block signature does not match signer")
			}
		}
		if a.CheckPassive {
			verified, err := block.VerifyTransactionRoot()
			if err != nil {
				return nil, err
			}
			if !verified {
				return nil, chainerr.New(chainerr.CodeStateMerkleMismatch, "transaction merkle root does not match header")
			}
		}

		receipt := &protocol.BlockReceipt{ID: id, Height: block.Header.Height}
		ctx.SetBlockReceipt(receipt)
		ctx.SetSkipTransactionSignatureCheck(!a.CheckTrxSigs)

		blockNode, ok := ctx.GetStateNode()
		if !ok {
			return nil, chainerr.New(chainerr.CodeUnexpectedAccess, "no state node bound to this context")
		}
		tree := ctx.Tree()

		for _, tx := range block.Transactions {
			txID, err := tx.ID()
			if err != nil {
				return nil, err
			}
			scratchID := crypto.SumSHA256(append(append([]byte("apply-tx"), id.Bytes()...), txID.Bytes()...))
			scratch, err := tree.CreateChild(blockNode.ID(), scratchID, nil)
			if err != nil {
				return nil, err
			}

			ctx.SetStateNode(scratch)
			ctx.SetTransaction(tx)
			_, txErr := registry.InvokeThunk(ctx, IDApplyTransaction, nil)
			ctx.ClearTransaction()
			ctx.SetStateNode(blockNode)

			if txErr != nil && chainerr.ClassOf(txErr) != chainerr.ClassFailure {
				_ = tree.Discard(scratchID)
				return nil, txErr
			}

			if txErr == nil {
				if err := tree.Merge(scratchID, blockNode.ID()); err != nil {
					return nil, err
				}
			}
			if err := tree.Discard(scratchID); err != nil {
				return nil, err
			}

			tr, ok := ctx.TransactionReceipt()
			if !ok {
				return nil, chainerr.New(chainerr.CodeInternalError, "apply_transaction completed without a bound receipt")
			}
			receipt.TransactionReceipts = append(receipt.TransactionReceipts, *tr)
			receipt.RCUsed += tr.RCUsed
			receipt.DiskUsed += tr.DiskUsed
			receipt.NetworkUsed += tr.NetworkUsed
			receipt.ComputeUsed += tr.ComputeUsed
		}

		return nil, nil
	}
}
