package thunks

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/koinos-go/chain/internal/chainerr"
)

// objectKeyArgs is the argument wire for get/remove_object and the
// next/prev cursor thunks: a space tag and a key.
type objectKeyArgs struct {
	Space []byte
	Key   []byte
}

// putObjectArgs additionally carries the value to store.
type putObjectArgs struct {
	Space []byte
	Key   []byte
	Value []byte
}

// objectKV is the response wire for the cursor thunks: the adjacent
// key found, alongside its stored value.
type objectKV struct {
	Key   []byte
	Value []byte
}

// hashArgs names the multicodec algorithm and the data to digest.
type hashArgs struct {
	Algorithm uint64
	Data      []byte
}

// verifySignatureArgs carries a compact recoverable signature, the
// signed digest, and the address the signer must match.
type verifySignatureArgs struct {
	Signature []byte
	Digest    []byte
	Expected  []byte
}

// accountArgs names the account an RC query is for.
type accountArgs struct {
	Account []byte
}

// callerInfo is the response wire for get_caller: the calling
// contract's id (absent when the system itself is the caller) and the
// privilege level that call was made under.
type callerInfo struct {
	Caller          []byte
	CallerPrivilege uint8
}

// headInfo is the response wire for get_head_info: the bound block's
// identifying header fields.
type headInfo struct {
	Height    uint64
	ID        []byte
	Previous  []byte
	Timestamp uint64
}

// setContractResultArgs carries the bytes a contract wants returned to
// its caller.
type setContractResultArgs struct {
	Result []byte
}

// exitContractArgs carries the contract's declared exit code.
type exitContractArgs struct {
	Code int32
}

// uploadContractArgs is the argument wire for apply_upload_contract_operation.
type uploadContractArgs struct {
	ContractID []byte
	Bytecode   []byte
}

// callContractArgs is the argument wire for apply_call_contract_operation.
type callContractArgs struct {
	Contract   []byte
	EntryPoint uint32
	Args       []byte
}

// setSystemCallArgs is the argument wire for
// apply_set_system_call_operation: either a thunk id or a contract
// bundle, selected by IsContract.
type setSystemCallArgs struct {
	SystemCallID       uint32
	IsContract         bool
	ThunkID            uint32
	Contract           []byte
	ContractEntryPoint uint32
}

// applyBlockArgs is the argument wire for apply_block, naming which of
// the three structural checks the caller wants run: the detached block
// signature, the transaction merkle root, and per-transaction signature
// re-verification.
type applyBlockArgs struct {
	CheckPassive   bool
	CheckSignature bool
	CheckTrxSigs   bool
}

// EncodeApplyBlockArgs builds the wire arguments for apply_block.
// checkPassive gates recomputing and comparing the transaction merkle
// root against the header (this implementation has no modeled passive
// data separate from the transaction list, so the passive-data check
// the original host performs here is realized as that comparison);
// checkSignature gates verifying the block's detached signature
// against its header signer; checkTrxSigs gates re-verifying every
// transaction's own payer signature during apply_transaction.
func EncodeApplyBlockArgs(checkPassive, checkSignature, checkTrxSigs bool) ([]byte, error) {
	return encodeRLP(applyBlockArgs{CheckPassive: checkPassive, CheckSignature: checkSignature, CheckTrxSigs: checkTrxSigs})
}

func decodeRLP(data []byte, v interface{}) error {
	if err := rlp.DecodeBytes(data, v); err != nil {
		return chainerr.Wrap(chainerr.CodeFieldNotFound, "decode thunk arguments", err)
	}
	return nil
}

func encodeRLP(v interface{}) ([]byte, error) {
	out, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInternalError, "encode thunk result", err)
	}
	return out, nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
