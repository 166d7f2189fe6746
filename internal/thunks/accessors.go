package thunks

import (
	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/chainerr"
	"github.com/koinos-go/chain/internal/statedb"
)

// GetTransactionPayer returns the address liable for the bound
// transaction's resource consumption.
func GetTransactionPayer(ctx *chainctx.Context, args []byte) ([]byte, error) {
	tx, err := ctx.GetTransaction()
	if err != nil {
		return nil, err
	}
	return tx.Payer[:], nil
}

// GetTransactionRCLimit returns the bound transaction's declared
// resource-credit ceiling.
func GetTransactionRCLimit(ctx *chainctx.Context, args []byte) ([]byte, error) {
	tx, err := ctx.GetTransaction()
	if err != nil {
		return nil, err
	}
	return encodeUint64(tx.RCLimit), nil
}

// GetMaxAccountRC returns the resource-credit ceiling recorded for an
// account; an account with no recorded balance has none.
func GetMaxAccountRC(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a accountArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	value, found, err := ctx.GetObject(statedb.SpaceAccountRC, a.Account)
	if err != nil {
		return nil, err
	}
	if !found {
		return encodeUint64(0), nil
	}
	return encodeUint64(decodeUint64(value)), nil
}

// GetHeadInfo returns the identifying header fields of the block bound
// to this context.
func GetHeadInfo(ctx *chainctx.Context, args []byte) ([]byte, error) {
	b, ok := ctx.GetBlock()
	if !ok {
		return nil, chainerr.New(chainerr.CodeUnexpectedAccess, "no block bound to this context")
	}
	id, err := b.Header.ID()
	if err != nil {
		return nil, err
	}
	return encodeRLP(headInfo{
		Height:    b.Header.Height,
		ID:        id.Bytes(),
		Previous:  b.Header.Previous.Bytes(),
		Timestamp: b.Header.Timestamp,
	})
}

// GetCaller returns the contract id (if any) and privilege the current
// frame was invoked under, per spec §4.4's frame-stack walk.
func GetCaller(ctx *chainctx.Context, args []byte) ([]byte, error) {
	caller, ok := ctx.GetContractID()
	info := callerInfo{CallerPrivilege: uint8(ctx.GetCallerPrivilege())}
	if ok {
		info.Caller = caller[:]
	}
	return encodeRLP(info)
}

// GetContractArguments returns the argument bytes the current contract
// invocation was entered with.
func GetContractArguments(ctx *chainctx.Context, args []byte) ([]byte, error) {
	f, ok := ctx.TopFrame()
	if !ok {
		return []byte{}, nil
	}
	return f.Args, nil
}

// SetContractResult records the payload a contract wants returned to
// its caller once its entry point returns.
func SetContractResult(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a setContractResultArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	ctx.SetResult(a.Result)
	return nil, nil
}

// ExitContract records the contract's declared exit code. Well-behaved
// bytecode returns from its entry point immediately afterward; this
// adapter has no host-side mechanism to unwind a running wasm call.
func ExitContract(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a exitContractArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	ctx.SetExitCode(a.Code)
	return nil, nil
}
