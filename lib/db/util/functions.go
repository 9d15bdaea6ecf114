package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the current time
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

const (
	offset64 = 14695981039346656037
	prime64  = 1099511628211
)

// HashUint128 generates a hash value for a 128 bit key with a seed.
// It feeds the 16 bytes of the key through FNV-1a.
func HashUint128(key uint128.Uint128, seed uint64) uint64 {
	hash := uint64(offset64) ^ seed
	for _, half := range [2]uint64{key.Lo, key.Hi} {
		for i := 0; i < 8; i++ {
			hash ^= (half >> (8 * i)) & 0xff
			hash *= prime64
		}
	}
	return hash
}
