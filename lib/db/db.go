package db

import (
	"io"

	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Key is the key type of every engine. Keys are ordered numerically.
type Key = uint128.Uint128

type Implementation string

const (
	ImplStable Implementation = "stable"
	ImplHeap   Implementation = "heap"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureInsert  Feature = 1 << iota // Support for Insert operations
	FeatureGet                         // Support for Get operations
	FeatureRemove                      // Support for Remove operations
	FeatureHas                         // Support for Has operations
	FeatureScan                        // Support for ordered Scan operations
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
	FeatureDurable                     // The content survives a restart of the process
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureGet:
		return "Get"
	case FeatureRemove:
		return "Remove"
	case FeatureHas:
		return "Has"
	case FeatureScan:
		return "Scan"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureDurable:
		return "Durable"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Length            uint64         `json:"length"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered key-value database implementations.
// Keys are 128 bit unsigned integers, values are opaque byte slices.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert stores value under key. If the key already exists, the old value is
	// overwritten and returned with replaced set to true.
	Insert(key Key, value []byte) (old []byte, replaced bool, err error)

	// Remove deletes the entry with the specified key and returns its value.
	// The boolean return value indicates whether the key existed.
	Remove(key Key) (old []byte, removed bool, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// The returned slice is a copy and safe to modify.
	Get(key Key) (value []byte, loaded bool, err error)

	// Has checks whether a key exists in the database.
	Has(key Key) (loaded bool, err error)

	// Scan calls fn for every entry with a key not less than from, in ascending key
	// order, until fn returns false.
	Scan(from Key, fn func(key Key, value []byte) bool) (err error)

	// Len returns the number of entries.
	Len() (length uint64)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save writes a snapshot of all entries to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load inserts all entries of a snapshot, overwriting existing keys.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
