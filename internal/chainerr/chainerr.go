// Package chainerr defines the flat, coded error type shared by every
// layer of the chain core: a single struct carrying a closed error
// code, a human-readable message, and an optional cause, instead of a
// deep exception hierarchy.
package chainerr

import (
	"errors"
	"fmt"
)

// Class partitions error codes into the two propagation semantics of
// the error handling design: a Reversion unwinds its whole scope
// (transaction or block), a Failure is recoverable at the transaction
// boundary.
type Class int

const (
	ClassReversion Class = iota
	ClassFailure
)

func (c Class) String() string {
	if c == ClassReversion {
		return "reversion"
	}
	return "failure"
}

// Code is a closed enumeration of error kinds. New codes must be added
// here and nowhere else; codes are part of the external interface and
// must never be renumbered once released.
type Code int

const (
	CodeUnknown Code = iota

	// Reversion subtypes.
	CodeAuthorizationFailureSystem
	CodeInvalidContract
	CodeInsufficientPrivileges
	CodeInsufficientRC
	CodeInsufficientReturnBuffer
	CodeUnknownThunk
	CodeUnknownOperation
	CodeReadOnlyContext
	CodeInternalError
	CodeStackOverflow
	CodeWasmTrap
	CodeUnexpectedState
	CodeUnexpectedAccess
	CodeCannotDiscard

	// Failure subtypes.
	CodeFieldNotFound
	CodeUnknownHashCode
	CodeUnknownSignatureAlgorithm
	CodeUnknownSystemCall
	CodeAuthorizationFailureUser
	CodeInvalidNonce
	CodeInvalidSignature
	CodeMalformedBlock
	CodeMalformedTransaction
	CodeBlockResourceFailure
	CodePendingTransactionLimitExceeded
	CodeStateMerkleMismatch
	CodePreIrreversibilityBlock
	CodeIndexerFailure
	CodeBandwidthLimitExceeded
	CodeStorageLimitExceeded
	CodeStateNodeNotFound
	CodeReservedOperation
)

var classOf = map[Code]Class{
	CodeAuthorizationFailureSystem: ClassReversion,
	CodeInvalidContract:            ClassReversion,
	CodeInsufficientPrivileges:     ClassReversion,
	CodeInsufficientRC:             ClassReversion,
	CodeInsufficientReturnBuffer:   ClassReversion,
	CodeUnknownThunk:               ClassReversion,
	CodeUnknownOperation:           ClassReversion,
	CodeReadOnlyContext:            ClassReversion,
	CodeInternalError:              ClassReversion,
	CodeStackOverflow:              ClassReversion,
	CodeWasmTrap:                   ClassReversion,
	CodeUnexpectedState:            ClassReversion,
	CodeUnexpectedAccess:           ClassReversion,
	CodeCannotDiscard:              ClassReversion,

	CodeFieldNotFound:                   ClassFailure,
	CodeUnknownHashCode:                 ClassFailure,
	CodeUnknownSignatureAlgorithm:       ClassFailure,
	CodeUnknownSystemCall:               ClassFailure,
	CodeAuthorizationFailureUser:        ClassFailure,
	CodeInvalidNonce:                    ClassFailure,
	CodeInvalidSignature:                ClassFailure,
	CodeMalformedBlock:                  ClassFailure,
	CodeMalformedTransaction:            ClassFailure,
	CodeBlockResourceFailure:            ClassFailure,
	CodePendingTransactionLimitExceeded: ClassFailure,
	CodeStateMerkleMismatch:             ClassFailure,
	CodePreIrreversibilityBlock:         ClassFailure,
	CodeIndexerFailure:                  ClassFailure,
	CodeBandwidthLimitExceeded:          ClassFailure,
	CodeStorageLimitExceeded:            ClassFailure,
	CodeStateNodeNotFound:               ClassFailure,
	CodeReservedOperation:               ClassFailure,
}

// Error is the single error type returned by the chain core. It is
// comparable by Code via errors.As, never by pointer identity.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Class reports which of the two propagation classes this error
// belongs to. Unregistered codes default to Reversion, the safer of
// the two since it unwinds the larger scope.
func (e *Error) Class() Class {
	if c, ok := classOf[e.Code]; ok {
		return c
	}
	return ClassReversion
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "unknown_error"
}

var codeNames = map[Code]string{
	CodeAuthorizationFailureSystem:      "authorization_failure_system",
	CodeInvalidContract:                 "invalid_contract",
	CodeInsufficientPrivileges:          "insufficient_privileges",
	CodeInsufficientRC:                  "insufficient_rc",
	CodeInsufficientReturnBuffer:        "insufficient_return_buffer",
	CodeUnknownThunk:                    "unknown_thunk",
	CodeUnknownOperation:                "unknown_operation",
	CodeReadOnlyContext:                 "read_only_context",
	CodeInternalError:                   "internal_error",
	CodeStackOverflow:                   "stack_overflow",
	CodeWasmTrap:                        "wasm_trap",
	CodeUnexpectedState:                 "unexpected_state",
	CodeUnexpectedAccess:                "unexpected_access",
	CodeCannotDiscard:                   "cannot_discard",
	CodeFieldNotFound:                   "field_not_found",
	CodeUnknownHashCode:                 "unknown_hash_code",
	CodeUnknownSignatureAlgorithm:       "unknown_signature_algorithm",
	CodeUnknownSystemCall:               "unknown_system_call",
	CodeAuthorizationFailureUser:        "authorization_failure_user",
	CodeInvalidNonce:                    "invalid_nonce",
	CodeInvalidSignature:                "invalid_signature",
	CodeMalformedBlock:                  "malformed_block",
	CodeMalformedTransaction:            "malformed_transaction",
	CodeBlockResourceFailure:            "block_resource_failure",
	CodePendingTransactionLimitExceeded: "pending_transaction_exceeds_resources",
	CodeStateMerkleMismatch:             "state_merkle_mismatch",
	CodePreIrreversibilityBlock:         "pre_irreversibility_block",
	CodeIndexerFailure:                  "indexer_failure",
	CodeBandwidthLimitExceeded:          "bandwidth_limit_exceeded",
	CodeStorageLimitExceeded:            "storage_limit_exceeded",
	CodeStateNodeNotFound:               "state_node_not_found",
	CodeReservedOperation:               "reserved_operation",
}

// New builds an Error with no wrapped cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap builds an Error around an existing cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// ClassOf reports the propagation class of err, unwrapping through
// errors.As the same way Is does. An err not carrying this package's
// Error type defaults to ClassReversion, the safer of the two.
func ClassOf(err error) Class {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class()
	}
	return ClassReversion
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// Describe splits err into a stable code name and message, for
// receipts and RPC responses that report failures as plain strings
// rather than the internal error type. Errors outside this package
// report as internal_error so a caller never sees a raw Go error
// string leak into a receipt field.
func Describe(err error) (code, message string) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code.String(), ce.Error()
	}
	return CodeInternalError.String(), err.Error()
}
