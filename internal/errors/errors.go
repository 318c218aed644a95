// Package errors defines the error type shared by the SwapForge services.
//
// Every ForgeError carries a Kind, which the HTTP layer maps to a status code,
// and a Code identifying the concrete failure. Messages are the user-facing text;
// the underlying cause is kept separately for logs.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react to it.
type Kind string

// Error kinds.
const (
	KindValidation        Kind = "validation"
	KindNotConnected      Kind = "not_connected"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindUpstream          Kind = "upstream"
	KindOnChain           Kind = "on_chain"
	KindConfiguration     Kind = "configuration"
	KindNotFound          Kind = "not_found"
	KindUserRejected      Kind = "user_rejected"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

// Error codes.
const (
	ErrCodeWalletNotConnected     = "WALLET_NOT_CONNECTED"
	ErrCodeInvalidPublicKey       = "INVALID_PUBLIC_KEY"
	ErrCodeInvalidArgument        = "INVALID_ARGUMENT"
	ErrCodeFeeMismatch            = "FEE_MISMATCH"
	ErrCodeTreasuryMismatch       = "TREASURY_MISMATCH"
	ErrCodeSupplyOverflow         = "SUPPLY_OVERFLOW"
	ErrCodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	ErrCodeTreasuryNotConfigured  = "TREASURY_NOT_CONFIGURED"
	ErrCodeConfiguration          = "CONFIGURATION"
	ErrCodeRPCFailed              = "RPC_FAILED"
	ErrCodeTransactionFailed      = "TRANSACTION_FAILED"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeUserRejected           = "USER_REJECTED"
	ErrCodeIllegalStateTransition = "ILLEGAL_STATE_TRANSITION"
	ErrCodeConflict               = "CONFLICT"
	ErrCodeDecodeFailed           = "DECODE_FAILED"
	ErrCodeStorageFailed          = "STORAGE_FAILED"
	ErrCodeUploadFailed           = "UPLOAD_FAILED"
	ErrCodeInternal               = "INTERNAL"
)

// ForgeError represents an error in the SwapForge services.
type ForgeError struct {
	// Kind classifies the error.
	Kind Kind

	// Code is a unique error code for this error type.
	Code string

	// Message is a human-readable error message, safe to return to clients.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional error context.
	Details map[string]any
}

// Error implements the error interface.
func (e *ForgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *ForgeError) Is(target error) bool {
	t, ok := target.(*ForgeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *ForgeError) WithCause(cause error) *ForgeError {
	c := *e
	c.Cause = cause
	return &c
}

// WithDetails returns a copy of the error with the given details.
func (e *ForgeError) WithDetails(details map[string]any) *ForgeError {
	c := *e
	c.Details = details
	return &c
}

// NewError creates a new ForgeError.
func NewError(kind Kind, code, message string) *ForgeError {
	return &ForgeError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Pre-defined errors for common error cases.
var (
	// ErrWalletNotConnected is returned when a request carries no wallet public key.
	ErrWalletNotConnected = NewError(KindNotConnected, ErrCodeWalletNotConnected, "Wallet not connected")

	// ErrTreasuryNotConfigured is returned when no treasury keypair was loaded.
	ErrTreasuryNotConfigured = NewError(KindConfiguration, ErrCodeTreasuryNotConfigured, "SwapForge secret key not configured")

	// ErrInsufficientFunds is returned when a wallet cannot cover the service fee.
	ErrInsufficientFunds = NewError(KindInsufficientFunds, ErrCodeInsufficientFunds, "Insufficient balance")

	// ErrFeeMismatch is returned when a client-sent fee differs from the server quote.
	ErrFeeMismatch = NewError(KindValidation, ErrCodeFeeMismatch, "Token fee does not match the current fee schedule")

	// ErrTreasuryMismatch is returned when the client names a different service wallet.
	ErrTreasuryMismatch = NewError(KindValidation, ErrCodeTreasuryMismatch, "SwapForge public key does not match the service wallet")

	// ErrUserRejected is returned when the client reports that the wallet declined to sign.
	ErrUserRejected = NewError(KindUserRejected, ErrCodeUserRejected, "Transaction rejected by wallet")
)

// Validation creates a validation error with the given message.
func Validation(message string) *ForgeError {
	return NewError(KindValidation, ErrCodeInvalidArgument, message)
}

// InvalidPublicKey creates an error for a malformed base58 public key.
func InvalidPublicKey(field string, cause error) *ForgeError {
	return NewError(KindValidation, ErrCodeInvalidPublicKey, fmt.Sprintf("Invalid %s", field)).
		WithCause(cause).
		WithDetails(map[string]any{"field": field})
}

// SupplyOverflow creates an error for a supply that does not fit in 64 bits once scaled.
func SupplyOverflow(supply uint64, decimals uint8) *ForgeError {
	return NewError(KindValidation, ErrCodeSupplyOverflow, "Token supply too large").
		WithDetails(map[string]any{"supply": supply, "decimals": decimals})
}

// Configuration creates a configuration error.
func Configuration(message string) *ForgeError {
	return NewError(KindConfiguration, ErrCodeConfiguration, message)
}

// Upstream creates an error for a failed call to an external dependency.
func Upstream(what string, cause error) *ForgeError {
	return NewError(KindUpstream, ErrCodeRPCFailed, fmt.Sprintf("failed to %s", what)).WithCause(cause)
}

// OnChain creates an error for a transaction rejected by the cluster.
func OnChain(what string, cause error) *ForgeError {
	return NewError(KindOnChain, ErrCodeTransactionFailed, fmt.Sprintf("failed to %s", what)).WithCause(cause)
}

// NotFound creates an error for a missing entity.
func NotFound(what string) *ForgeError {
	return NewError(KindNotFound, ErrCodeNotFound, fmt.Sprintf("%s not found", what))
}

// Conflict creates an error for a request that clashes with the current state.
func Conflict(message string) *ForgeError {
	return NewError(KindConflict, ErrCodeConflict, message)
}

// IllegalTransition creates an error for a lifecycle move that is not allowed.
func IllegalTransition(from, to string) *ForgeError {
	return NewError(KindConflict, ErrCodeIllegalStateTransition, fmt.Sprintf("cannot move token from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

// DecodeFailed creates an error for decoding failures.
func DecodeFailed(what string, cause error) *ForgeError {
	return NewError(KindValidation, ErrCodeDecodeFailed, fmt.Sprintf("failed to decode %s", what)).WithCause(cause)
}

// StorageFailed creates an error for a failed repository call.
func StorageFailed(what string, cause error) *ForgeError {
	return NewError(KindInternal, ErrCodeStorageFailed, fmt.Sprintf("failed to %s", what)).WithCause(cause)
}

// UploadFailed creates an error for a failed content-store write.
func UploadFailed(what string, cause error) *ForgeError {
	return NewError(KindUpstream, ErrCodeUploadFailed, fmt.Sprintf("failed to upload %s", what)).WithCause(cause)
}

// Internal creates an error for a failure that is not the caller's fault.
func Internal(what string, cause error) *ForgeError {
	return NewError(KindInternal, ErrCodeInternal, fmt.Sprintf("failed to %s", what)).WithCause(cause)
}

// KindOf returns the kind of the first ForgeError in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var fe *ForgeError
	if errors.As(err, &fe) && fe.Kind != KindInternal {
		return fe.Message
	}
	return "Internal server error"
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
