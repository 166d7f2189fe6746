// Package thunks implements the native system-call bodies a contract
// or the controller invokes through the dispatch registry (spec
// §4.6). Each thunk is a plain Go function over *chainctx.Context; the
// ids below are this implementation's compile-time numbering and
// double as both thunk id and default system-call id.
package thunks

const (
	IDPrints uint32 = iota + 1
	IDGetObject
	IDPutObject
	IDRemoveObject
	IDGetNextObject
	IDGetPrevObject
	IDHash
	IDVerifySignature
	IDApplyBlock
	IDApplyTransaction
	IDApplyUploadContractOperation
	IDApplyCallContractOperation
	IDApplySetSystemCallOperation
	IDGetTransactionPayer
	IDGetMaxAccountRC
	IDGetTransactionRCLimit
	IDGetHeadInfo
	IDGetCaller
	IDGetContractArguments
	IDSetContractResult
	IDExitContract
)
