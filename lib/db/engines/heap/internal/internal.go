package internal

import (
	"github.com/pramitgaha/map-error/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
// Each shard has its own independent map
type Shard struct {
	Data *xsync.MapOf[uint128.Uint128, []byte] // Map of the entries of this shard
}

// NewShard creates a new shard using the FNV based key hash
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOfWithHasher[uint128.Uint128, []byte](util.HashUint128),
	}
}

// GetShard returns the appropriate shard for a given key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key uint128.Uint128, seed uint64, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := util.HashUint128(key, seed) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
