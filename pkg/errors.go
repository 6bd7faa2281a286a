package mcpdb

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes produced by the server.
const (
	CodeInvalidEnvelope = -32600
	CodeMethodNotFound  = -32601
	CodeToolNotFound    = -32601
	CodeInvalidParams   = -32602
	CodeInternal        = -32603
	CodeDatabase        = -32000
)

// Error is a JSON-RPC error object. It doubles as a Go error so handlers can
// return it directly.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func InvalidEnvelope(msg string) *Error {
	return &Error{Code: CodeInvalidEnvelope, Message: "Invalid Request: " + msg}
}

func MethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found: " + method}
}

func ToolNotFound(tool string) *Error {
	return &Error{Code: CodeToolNotFound, Message: "Tool not found: " + tool}
}

func InvalidParams(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params: " + fmt.Sprintf(format, args...)}
}

// DatabaseError keeps the driver message verbatim.
func DatabaseError(err error) *Error {
	return &Error{Code: CodeDatabase, Message: err.Error()}
}

func InternalError(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// AsError maps any error into the taxonomy. Errors that are not already
// *Error become InternalError carrying err.Error().
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return InternalError(err.Error())
}
