package payments

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the payments core.
var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidInvoice   = errors.New("invalid invoice")
	ErrInvalidItemKind  = errors.New("invalid item kind")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrInvalidConfig    = errors.New("invalid config")
	ErrNoQuote          = errors.New("no quote")
	ErrNoRecipient      = errors.New("no recipient")
	ErrEngine           = errors.New("engine failure")
	ErrRecoverableWrite = errors.New("recoverable write failure")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// engineFailure tags an engine error so callers can match ErrEngine while
// keeping the original message for logs.
func engineFailure(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrEngine, err)
}
