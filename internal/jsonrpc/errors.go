package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// ValidationError indicates malformed input, rejected either locally
// before a request is sent or by the service with code -32602.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NotFoundError indicates the requested resource does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NewNotFoundError builds a NotFoundError for a resource and id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// AuthenticationError indicates the caller is not authorized for the
// requested operation.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication error: %s", e.Message)
}

// RPCError carries a JSON-RPC error that does not map to a more
// specific type. Code and Message come from the service verbatim.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ConnectionError indicates a transport-level failure.
//
// The underlying error (if any) can be accessed via errors.Unwrap.
type ConnectionError struct {
	Endpoint string
	cause    error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("connection error: %s: %v", e.Endpoint, e.cause)
	}
	return fmt.Sprintf("connection error: %s", e.Endpoint)
}

func (e *ConnectionError) Unwrap() error { return e.cause }

// TimeoutError indicates the call exceeded its deadline.
//
// The underlying error (if any) can be accessed via errors.Unwrap.
type TimeoutError struct {
	Endpoint string
	cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s", e.Endpoint)
}

func (e *TimeoutError) Unwrap() error { return e.cause }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func errorFromObject(obj *ErrorObject) error {
	switch obj.Code {
	case CodeInvalidParams:
		return &ValidationError{Message: obj.Message}
	case CodeNotFound:
		return &NotFoundError{Message: obj.Message}
	case CodeNotAuthenticated:
		return &AuthenticationError{Message: obj.Message}
	default:
		return &RPCError{Code: obj.Code, Message: obj.Message, Data: obj.Data}
	}
}
