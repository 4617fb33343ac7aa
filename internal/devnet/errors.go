package devnet

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes the client distinguishes.
const (
	MethodNotFound     = -32601 // Method does not exist
	InvalidParams      = -32602 // Invalid method parameters
	ServerError        = -32000 // Generic server error
	MethodNotSupported = -32004 // Hardhat: method exists but is disabled
)

// Sentinel errors
var (
	ErrInvalidAddress       = errors.New("devnet: invalid address")
	ErrInvalidBalance       = errors.New("devnet: invalid balance")
	ErrRPC                  = errors.New("devnet: rpc request failed")
	ErrUnsupportedOperation = errors.New("devnet: unsupported operation")
)

// RPCError is returned when the node rejects a request or cannot be reached.
// It matches ErrRPC with errors.Is.
type RPCError struct {
	Method  string
	Code    int
	Message string

	err error
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: RPC error %d: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// Is reports whether target is ErrRPC.
func (e *RPCError) Is(target error) bool {
	return target == ErrRPC
}

// Unwrap returns the transport error, if any.
func (e *RPCError) Unwrap() error {
	return e.err
}

// IsUnsupported reports whether the node refused the method itself rather
// than its arguments.
func (e *RPCError) IsUnsupported() bool {
	return e.Code == MethodNotFound || e.Code == MethodNotSupported
}
