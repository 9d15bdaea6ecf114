// Package store provides the operation surface of the user map: typed users under
// 128 bit keys on top of the byte-oriented db.KVDB engines, with unified error reporting.
//
// Key Components:
//
//   - IStore Interface: Insert, Get, Remove, Has, Scan, Len and GetDBInfo. Both the local
//     store (lstore) and the rpc client implement it, so commands and tests can switch
//     between an in-process map and a remote server without code changes.
//
//   - Error System: every failure is a *Error carrying a RetCode. The codes survive the
//     trip through the rpc layer, and Unwrap maps RetCCorruptRecord and
//     RetCSizeBoundExceeded back to codec.ErrCorruptRecord and codec.ErrSizeBoundExceeded,
//     so callers test with errors.Is no matter where the store runs.
//
//   - DBFactory: a function type that abstracts the creation of the underlying db.KVDB.
//
// Implementations:
//
//   - Local Store (lstore): encodes users with the users codec and talks to a db.KVDB
//     directly. Available in the "github.com/pramitgaha/map-error/lib/store/lstore" package.
//
//   - RPC Store: the client side of the rpc package, see
//     "github.com/pramitgaha/map-error/rpc/client".
package store
