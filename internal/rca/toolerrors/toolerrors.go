// Package toolerrors provides a structured error type for tool-invocation
// failures raised by the ReAct loop. ToolError preserves the cause chain so
// that both errors.Is/As and the TurnStep's persisted error text keep
// working across retries.
package toolerrors

import (
	"errors"
	"fmt"
)

// ToolError is a tool failure with an optional nested cause. The chain is
// walked to build the TurnStep.Content recorded for a failed step and to
// let callers match on a specific underlying failure via errors.As.
type ToolError struct {
	Tool    string
	Message string
	Cause   *ToolError
}

// New constructs a ToolError for tool with the given message.
func New(tool, message string) *ToolError {
	if message == "" {
		message = "tool invocation failed"
	}
	return &ToolError{Tool: tool, Message: message}
}

// Wrap constructs a ToolError for tool that wraps an underlying error,
// converting it into a ToolError chain via FromError.
func Wrap(tool string, cause error) *ToolError {
	if cause == nil {
		return nil
	}
	msg := cause.Error()
	return &ToolError{Tool: tool, Message: msg, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into a ToolError chain, preserving
// any already-structured ToolError found via errors.As.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Errorf builds a ToolError from a format string.
func Errorf(tool, format string, args ...any) *ToolError {
	return New(tool, fmt.Sprintf(format, args...))
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Tool == "" {
		return e.Message
	}
	return e.Tool + ": " + e.Message
}

// Unwrap exposes the cause chain to errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}
