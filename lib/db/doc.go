// Package db provides a standardized interface for ordered key-value database implementations.
// It defines the KVDB interface that allows for consistent interaction with various
// storage backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for ordered key-value operations
//   - Feature discovery through capability flags
//   - A standardized snapshot format shared by all engines
//   - Metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Insert, Get, Has, Remove),
//     ordered traversal (Scan), metadata retrieval (GetInfo, Len),
//     and persistence operations (Save, Load).
//
//   - Keys: All engines use 128 bit unsigned integer keys (Key) and keep them in numeric order.
//     Values are opaque byte slices, the record encoding is up to the store layer.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. FeatureDurable marks engines
//     whose content survives a restart of the process.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the database backends ("stable" and "heap").
//
//   - Snapshots: SnapshotWriter and ReadSnapshot implement the binary snapshot format
//     used by Save and Load. Loading a snapshot merges it into the existing content.
//
// Note on Errors:
//   - Storage errors that indicate corrupt data are returned and wrap codec.ErrCorruptRecord.
//   - Exhausted memory is fatal and raised by panic (memory.ErrGrowFailed).
//
// Related Packages:
//
// The engines/stable package (github.com/pramitgaha/map-error/lib/db/engines/stable) stores the
// entries in a B-tree inside a growable memory. Its content survives restarts when the memory does.
//
// The engines/heap package (github.com/pramitgaha/map-error/lib/db/engines/heap) provides a
// sharded in-memory implementation for ephemeral data.
//
// The util package (github.com/pramitgaha/map-error/lib/db/util) provides complementary
// tools for working with db.KVDB implementations:
//   - SizeHistogram: Utilities for analyzing data size distributions
//   - Hash functions for sharding keys
//
// The testing package (github.com/pramitgaha/map-error/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
