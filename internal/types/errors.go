package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type
type ErrorCode string

const (
	// Plugin errors
	ErrInvalidPlugin   ErrorCode = "INVALID_PLUGIN"
	ErrUntrustedAuthor ErrorCode = "UNTRUSTED_AUTHOR"
	ErrDuplicateName   ErrorCode = "DUPLICATE_NAME"

	// Dispatch errors
	ErrCooldownActive   ErrorCode = "COOLDOWN_ACTIVE"
	ErrPermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrHandlerFault     ErrorCode = "HANDLER_FAULT"
	ErrShuttingDown     ErrorCode = "SHUTTING_DOWN"

	// Economy errors
	ErrInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	ErrTransferFailed    ErrorCode = "TRANSFER_FAILED"

	// System errors
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrDatabaseError  ErrorCode = "DATABASE_ERROR"
	ErrDeliveryFailed ErrorCode = "DELIVERY_FAILED"
	ErrInvalidConfig  ErrorCode = "INVALID_CONFIG"
)

// BotError is the structured error used across the dispatch layer
type BotError struct {
	Code    ErrorCode
	Message string
	Err     error // Underlying error, if any
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Err
}

// NewBotError creates a new BotError
func NewBotError(code ErrorCode, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error in a BotError
func WrapError(code ErrorCode, message string, err error) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsBotError reports whether err carries a BotError with the given code
// anywhere in its chain.
func IsBotError(err error, code ErrorCode) bool {
	var botErr *BotError
	if !As(err, &botErr) {
		return false
	}
	return botErr.Code == code
}

// As finds the first BotError in err's chain.
func As(err error, target **BotError) bool {
	if err == nil || target == nil {
		return false
	}
	return errors.As(err, target)
}
