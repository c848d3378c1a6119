package common

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// Error kinds are the category tags sent back in a reply. They identify the class of
// a failure without carrying a concrete Go type across the network.
const (
	ErrKindProtocol   = "ProtocolError"   // malformed or undecodable message
	ErrKindLookup     = "LookupError"     // unknown function command
	ErrKindAttribute  = "AttributeError"  // unknown method command
	ErrKindArgument   = "ArgumentError"   // wrong number or type of arguments
	ErrKindArithmetic = "ArithmeticError" // division by zero, overflow
	ErrKindTimeout    = "TimeoutError"    // the per-call deadline was exceeded
	ErrKindStore      = "StoreError"      // failure of the backend store
	ErrKindNotFound   = "NotFoundError"   // a record addressed by the command does not exist
	ErrKindPanic      = "PanicError"      // the command panicked
	ErrKindRuntime    = "RuntimeError"    // any other failure
)

// Sentinel errors, one per kind. They match any CommandError of the same kind with errors.Is,
// no matter if the error was created locally or reconstructed from a reply.
var (
	ErrProtocol   = &CommandError{Kind: ErrKindProtocol}
	ErrLookup     = &CommandError{Kind: ErrKindLookup}
	ErrAttribute  = &CommandError{Kind: ErrKindAttribute}
	ErrArgument   = &CommandError{Kind: ErrKindArgument}
	ErrArithmetic = &CommandError{Kind: ErrKindArithmetic}
	ErrTimeout    = &CommandError{Kind: ErrKindTimeout}
	ErrStore      = &CommandError{Kind: ErrKindStore}
	ErrNotFound   = &CommandError{Kind: ErrKindNotFound}
	ErrPanic      = &CommandError{Kind: ErrKindPanic}
	ErrRuntime    = &CommandError{Kind: ErrKindRuntime}
)

// IKindError is implemented by errors that know their own kind
type IKindError interface {
	error
	ErrorKind() string
}

// --------------------------------------------------------------------------
// Command Error
// --------------------------------------------------------------------------

// CommandError is a failure with a kind. It is used by command implementations to report
// categorized failures and by the client to re-raise failures reported by the server.
type CommandError struct {
	Kind string // The error kind, one of the ErrKind* constants or a custom tag
	Msg  string // Human-readable description
}

// NewCommandError creates a new CommandError with a formatted message
func NewCommandError(kind string, format string, args ...any) *CommandError {
	return &CommandError{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Msg == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// ErrorKind implements IKindError
func (e *CommandError) ErrorKind() string {
	return e.Kind
}

// Is reports whether target is a CommandError of the same kind.
// A target with a message only matches the identical error.
func (e *CommandError) Is(target error) bool {
	var t *CommandError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// KindOf returns the kind of an error. Errors without a kind (or with an empty one)
// are RuntimeErrors, exceeded deadlines are TimeoutErrors. A nil error has no kind.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var kindErr IKindError
	if errors.As(err, &kindErr) {
		if kind := kindErr.ErrorKind(); kind != "" {
			return kind
		}
		return ErrKindRuntime
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	return ErrKindRuntime
}
