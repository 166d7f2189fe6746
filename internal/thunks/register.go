package thunks

import (
	"github.com/koinos-go/chain/internal/dispatch"
	"github.com/koinos-go/chain/internal/vmadapter"
)

// RegisterAll populates registry with every native thunk this
// implementation ships and installs a 1:1 default system-call mapping
// for each — the bootstrap table a fresh chain starts from before any
// governance operation installs an override. vm is the runtime used to
// execute contract bytecode reached through apply_call_contract_operation
// and system-call overrides; registry itself is passed back in as the
// Dispatcher nested invoke_thunk/invoke_system_call calls route through,
// since a contract invoked from apply_call_contract_operation may itself
// call back into the registry.
func RegisterAll(registry *dispatch.Registry, vm *vmadapter.VM) {
	registry.RegisterThunk(IDPrints, Prints)
	registry.RegisterThunk(IDGetObject, GetObject)
	registry.RegisterThunk(IDPutObject, PutObject)
	registry.RegisterThunk(IDRemoveObject, RemoveObject)
	registry.RegisterThunk(IDGetNextObject, GetNextObject)
	registry.RegisterThunk(IDGetPrevObject, GetPrevObject)
	registry.RegisterThunk(IDHash, Hash)
	registry.RegisterThunk(IDVerifySignature, VerifySignature)
	registry.RegisterThunk(IDGetTransactionPayer, GetTransactionPayer)
	registry.RegisterThunk(IDGetMaxAccountRC, GetMaxAccountRC)
	registry.RegisterThunk(IDGetTransactionRCLimit, GetTransactionRCLimit)
	registry.RegisterThunk(IDGetHeadInfo, GetHeadInfo)
	registry.RegisterThunk(IDGetCaller, GetCaller)
	registry.RegisterThunk(IDGetContractArguments, GetContractArguments)
	registry.RegisterThunk(IDSetContractResult, SetContractResult)
	registry.RegisterThunk(IDExitContract, ExitContract)

	registry.RegisterThunk(IDApplyUploadContractOperation, ApplyUploadContractOperation)
	registry.RegisterThunk(IDApplyCallContractOperation, NewApplyCallContractOperation(vm, registry))
	registry.RegisterThunk(IDApplySetSystemCallOperation, NewApplySetSystemCallOperation())
	registry.RegisterThunk(IDApplyTransaction, NewApplyTransaction(registry))
	registry.RegisterThunk(IDApplyBlock, NewApplyBlock(registry))

	for _, id := range []uint32{
		IDPrints, IDGetObject, IDPutObject, IDRemoveObject, IDGetNextObject, IDGetPrevObject,
		IDHash, IDVerifySignature, IDGetTransactionPayer, IDGetMaxAccountRC, IDGetTransactionRCLimit,
		IDGetHeadInfo, IDGetCaller, IDGetContractArguments, IDSetContractResult, IDExitContract,
		IDApplyUploadContractOperation, IDApplyCallContractOperation, IDApplySetSystemCallOperation,
		IDApplyTransaction, IDApplyBlock,
	} {
		registry.SetDefaultSystemCall(id, id)
	}
}
