package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Credential / configuration errors: fatal, fail fast, never retried
	ErrCodeExpiredCredential   ErrorCode = "EXPIRED_CREDENTIAL"
	ErrCodeMalformedCredential ErrorCode = "MALFORMED_CREDENTIAL"
	ErrCodeMissingRelayConfig  ErrorCode = "MISSING_RELAY_CONFIG"
	ErrCodeMissingChainConfig  ErrorCode = "MISSING_CHAIN_CONFIG"

	// Protocol violations: rejected locally, never submitted to the ledger
	ErrCodeSignerMismatch ErrorCode = "SIGNER_MISMATCH"
	ErrCodeDigestMismatch ErrorCode = "DIGEST_MISMATCH"
	ErrCodeNotRegistered  ErrorCode = "NOT_REGISTERED"
	ErrCodeAlreadySigned  ErrorCode = "ALREADY_SIGNED"

	// On-chain terminal failures: terminal for one operation, not the batch
	ErrCodeExecutionReverted    ErrorCode = "EXECUTION_REVERTED"
	ErrCodeReceiptMissingTxHash ErrorCode = "RECEIPT_MISSING_TX_HASH"
	ErrCodeReceiptTimeout       ErrorCode = "RECEIPT_TIMEOUT"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Dispatch
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"

	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func ExpiredCredential(validUntil string) *AppError {
	return New(ErrCodeExpiredCredential, fmt.Sprintf("Session credential expired at %s", validUntil))
}

func NotYetValidCredential(validAfter string) *AppError {
	return New(ErrCodeExpiredCredential, fmt.Sprintf("Session credential not valid until %s", validAfter))
}

func MalformedCredential(reason string) *AppError {
	return New(ErrCodeMalformedCredential, fmt.Sprintf("Malformed session credential: %s", reason))
}

func MissingRelayConfig(chainID int64) *AppError {
	return New(ErrCodeMissingRelayConfig, fmt.Sprintf("No relay endpoint configured for chain %d", chainID))
}

func MissingChainConfig(chainID int64) *AppError {
	return New(ErrCodeMissingChainConfig, fmt.Sprintf("No RPC endpoint configured for chain %d", chainID))
}

func SignerMismatch(role, expected, got string) *AppError {
	return New(ErrCodeSignerMismatch,
		fmt.Sprintf("Signature for %s was produced by %s, expected %s", role, got, expected))
}

func DigestMismatch(expected, got string) *AppError {
	return New(ErrCodeDigestMismatch,
		fmt.Sprintf("Stored record digest %s does not match requested digest %s", got, expected))
}

func NotRegistered(digest string) *AppError {
	return New(ErrCodeNotRegistered, fmt.Sprintf("No association stored for digest %s", digest))
}

func AlreadySigned(digest string) *AppError {
	return New(ErrCodeAlreadySigned, fmt.Sprintf("Association %s already carries an approver signature", digest))
}

func ExecutionReverted(txHash string) *AppError {
	return New(ErrCodeExecutionReverted, fmt.Sprintf("Transaction %s reverted on-chain", txHash))
}

func ReceiptMissingTxHash(handle string) *AppError {
	return New(ErrCodeReceiptMissingTxHash,
		fmt.Sprintf("Relay operation %s reached a terminal state without a transaction hash", handle))
}

func ReceiptTimeout(handle string, polls int) *AppError {
	return New(ErrCodeReceiptTimeout,
		fmt.Sprintf("No terminal receipt for relay operation %s after %d polls", handle, polls))
}

func UnsupportedOperation(kind string) *AppError {
	return New(ErrCodeUnsupportedOperation, fmt.Sprintf("Unsupported operation kind: %s", kind))
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
