// Package errors defines the error taxonomy for the wallet SDK.
//
// All SDK errors are represented as WalletError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description
//   - Layer: Which component layer produced the error (core, client, watcher, uri)
//   - Cause: Underlying error, if any
//   - Context: Additional error details (status code, response body, asset code, etc.)
//
// Use the provided constructor functions (NewCoreError, NewClientError, etc.)
// to create properly typed errors with automatic layer assignment.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error identifier.
type Code string

// Error codes - Core Layer
const (
	TOML_FETCH_FAILED         Code = "TOML_FETCH_FAILED"
	TOML_INVALID              Code = "TOML_INVALID"
	TOML_SIGNING_KEY_MISMATCH Code = "TOML_SIGNING_KEY_MISMATCH"
	NETWORK_ERROR             Code = "NETWORK_ERROR"
	ACCOUNT_NOT_FOUND         Code = "ACCOUNT_NOT_FOUND"
	REQUEST_FAILED            Code = "REQUEST_FAILED"
	INVALID_RESPONSE          Code = "INVALID_RESPONSE"
)

// Error codes - Client Layer
const (
	SIGNER_ERROR           Code = "SIGNER_ERROR"
	AUTH_UNSUPPORTED       Code = "AUTH_UNSUPPORTED"
	CHALLENGE_FETCH_FAILED Code = "CHALLENGE_FETCH_FAILED"
	CHALLENGE_INVALID      Code = "CHALLENGE_INVALID"
	AUTH_REJECTED          Code = "AUTH_REJECTED"
	JWT_INVALID            Code = "JWT_INVALID"
	JWT_EXPIRED            Code = "JWT_EXPIRED"
	TRANSFER_INIT_FAILED   Code = "TRANSFER_INIT_FAILED"
	SERVER_UNSUPPORTED     Code = "SERVER_UNSUPPORTED"
	VALIDATION_FAILED      Code = "VALIDATION_FAILED"
	TX_BUILD_FAILED        Code = "TX_BUILD_FAILED"
	TX_SUBMIT_FAILED       Code = "TX_SUBMIT_FAILED"
)

// Error codes - Watcher Layer
const (
	WATCHER_STOPPED Code = "WATCHER_STOPPED"
	STREAM_ERROR    Code = "STREAM_ERROR"
)

// Error codes - URI Layer
const (
	URI_INVALID           Code = "URI_INVALID"
	URI_SIGNATURE_INVALID Code = "URI_SIGNATURE_INVALID"
)

// WalletError is the base error type for all SDK errors.
type WalletError struct {
	Code    Code
	Message string
	Layer   string // "core", "client", "watcher", "uri"
	Cause   error
	Context map[string]any
}

// Error returns a formatted error string.
func (e *WalletError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Layer, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *WalletError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value detail and returns the same error.
func (e *WalletError) WithContext(key string, value any) *WalletError {
	e.Context[key] = value
	return e
}

func newError(layer string, code Code, message string, cause error) *WalletError {
	return &WalletError{
		Code:    code,
		Message: message,
		Layer:   layer,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewCoreError creates a core layer error.
func NewCoreError(code Code, message string, cause error) *WalletError {
	return newError("core", code, message, cause)
}

// NewClientError creates a client layer error.
func NewClientError(code Code, message string, cause error) *WalletError {
	return newError("client", code, message, cause)
}

// NewWatcherError creates a watcher layer error.
func NewWatcherError(code Code, message string, cause error) *WalletError {
	return newError("watcher", code, message, cause)
}

// NewURIError creates a SEP-7 URI layer error.
func NewURIError(code Code, message string, cause error) *WalletError {
	return newError("uri", code, message, cause)
}

// Is checks if the target error is a WalletError with the same code.
func (e *WalletError) Is(target error) bool {
	if target == nil {
		return false
	}
	other, ok := target.(*WalletError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// As finds the first WalletError in err's chain and assigns it to target.
func As(err error, target **WalletError) bool {
	if err == nil {
		return false
	}
	return stderrors.As(err, target)
}

// HasCode reports whether any WalletError in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var we *WalletError
		if !stderrors.As(err, &we) {
			return false
		}
		if we.Code == code {
			return true
		}
		err = we.Cause
	}
	return false
}
