package store

import (
	"errors"
	"fmt"

	"github.com/pramitgaha/map-error/lib/db"
	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/users"
	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// Entry is a single result of a Scan.
type Entry struct {
	Key  uint128.Uint128
	User users.User
}

// IStore is the operation surface of the user map.
// Every method returns a *Error (nil on success) as its error value.
type IStore interface {
	// Insert stores user under key. replaced reports whether a previous user was overwritten.
	Insert(key uint128.Uint128, user users.User) (replaced bool, err error)
	// Get returns the user stored under key. The boolean return value indicates whether it was found.
	Get(key uint128.Uint128) (user users.User, loaded bool, err error)
	// Remove deletes the user stored under key and reports whether it existed.
	Remove(key uint128.Uint128) (removed bool, err error)
	// Has returns whether a user is stored under key.
	Has(key uint128.Uint128) (loaded bool, err error)
	// Scan returns up to limit entries with keys not less than from, in ascending key order.
	// A limit of 0 returns all of them.
	Scan(from uint128.Uint128, limit int) (entries []Entry, err error)
	// Len returns the number of stored users.
	Len() (length uint64, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap maps the return code back to the storage sentinel it stands for, so
// errors.Is(err, codec.ErrCorruptRecord) works on both sides of an rpc connection.
func (e *Error) Unwrap() error {
	switch e.Code {
	case RetCCorruptRecord:
		return codec.ErrCorruptRecord
	case RetCSizeBoundExceeded:
		return codec.ErrSizeBoundExceeded
	default:
		return nil
	}
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// FromError converts an engine or codec error into a *Error.
// nil stays nil and a *Error is returned unchanged.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, codec.ErrCorruptRecord):
		return NewError(RetCCorruptRecord, err.Error())
	case errors.Is(err, codec.ErrSizeBoundExceeded):
		return NewError(RetCSizeBoundExceeded, err.Error())
	default:
		return NewError(RetCInternalError, err.Error())
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCCorruptRecord                       // 4: A stored record could not be decoded.
	RetCSizeBoundExceeded                   // 5: A key or value is larger than its codec allows.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCCorruptRecord:
		return "CorruptRecord"
	case RetCSizeBoundExceeded:
		return "SizeBoundExceeded"
	default:
		return "Unknown"
	}
}
