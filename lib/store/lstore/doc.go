// Package lstore implements store.IStore in the local process. It is a thin layer over
// any db.KVDB: users are encoded with the users codec on the way in and decoded on the
// way out, and engine errors are translated into *store.Error values.
//
// Implementation Details:
//
//   - Size bounds: with Options.MaxRecordSize set, Insert refuses larger users with
//     RetCSizeBoundExceeded before the engine is touched. The default is unbounded.
//
//   - Corrupt records: a value that no longer decodes is reported as RetCCorruptRecord
//     (and logged). Insert and Remove still work on such a key, so a bad record can be
//     overwritten or dropped.
//
//   - Feature Detection: before executing an operation the store checks whether the
//     underlying engine supports it and returns RetCUnsupportedOperation otherwise.
//
// Thread Safety:
//
//	The store holds no mutable state of its own. It is as safe for concurrent use as the
//	db.KVDB it wraps; both engines in this module are.
//
// Usage Example:
//
//	factory := func() db.KVDB { return heap.NewHeapDB(nil) }
//	s := lstore.NewLocalStore(factory, nil)
//
//	_, err := s.Insert(uint128.From64(1), users.SeedUser(1))
//	u, ok, err := s.Get(uint128.From64(1))
package lstore
