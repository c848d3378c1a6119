package store

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the generic interface for interacting with the key–value store backing the server.
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
// Errors returned by implementations are of type *Error.
type IStore interface {
	// Set inserts or updates a key–value pair.
	Set(key string, value []byte) (err error)
	// SetE inserts or updates a key–value pair that is removed after ttl.
	// A zero ttl means the pair never expires.
	SetE(key string, value []byte, ttl time.Duration) (err error)
	// SetEIfUnset inserts a key–value pair if the key does not exist (or is expired).
	// If the key already exists, the old value is not updated and set is false.
	// The check and the write are atomic.
	SetEIfUnset(key string, value []byte, ttl time.Duration) (set bool, err error)
	// Delete deletes a key–value pair. Deleting a missing key is not an error.
	Delete(key string) (err error)
	// Get return the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Has returns whether a non expired value exists for the key.
	Has(key string) (loaded bool, err error)
	// Scan calls fn for every non expired key with the given prefix in ascending key order
	// until fn returns false.
	Scan(prefix string, fn func(key string, value []byte) bool) (err error)
	// Close releases the store. All later calls return an error with code RetCClosed.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// ErrorKind is the error category reported to clients for store failures
const ErrorKind = "StoreError"

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %s): %s", ErrorKind, e.Code, e.Msg)
}

// ErrorKind reports the error category of store failures
func (e *Error) ErrorKind() string {
	return ErrorKind
}

// NewError creates a new store Error with the given code and message.
func NewError(code RetCode, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid operation (e.g. empty key).
	RetCClosed                          // 3: The store was closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ValidateKey returns an error for keys no store accepts
func ValidateKey(key string) error {
	if key == "" {
		return NewError(RetCInvalidOperation, "key must not be empty")
	}
	return nil
}
