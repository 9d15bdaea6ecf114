package users

import (
	"bytes"
	"fmt"

	"github.com/pramitgaha/map-error/lib/stable/codec"
	"lukechampine.com/uint128"
)

// User is the record stored in the map.
type User struct {
	_          struct{} `cbor:",toarray"`
	Name       string
	FavNumbers [][]byte
}

// NewCodec returns the record codec. maxSize bounds the encoded size of a user,
// 0 means unbounded.
func NewCodec(maxSize uint32) codec.Codec[User] {
	return codec.CBOR[User]{Max: maxSize}
}

// Codec is the unbounded record codec.
var Codec = NewCodec(0)

// BlockSizes returns the length of every block of FavNumbers.
func (u User) BlockSizes() []int {
	sizes := make([]int, len(u.FavNumbers))
	for i, block := range u.FavNumbers {
		sizes[i] = len(block)
	}
	return sizes
}

// String summarizes the user without dumping the blocks.
func (u User) String() string {
	return fmt.Sprintf("User{Name: %q, FavNumbers: %d blocks %v}", u.Name, len(u.FavNumbers), u.BlockSizes())
}

// --------------------------------------------------------------------------
// Demo workload
// --------------------------------------------------------------------------

const (
	// SeedBlockSize is the size of every block written by Seed.
	SeedBlockSize = 2000
	// DefaultSeedCount is the number of users Seed writes by default.
	DefaultSeedCount = 10
)

// Inserter is the part of a store Seed needs.
type Inserter interface {
	Insert(key uint128.Uint128, user User) (replaced bool, err error)
}

// SeedUser returns the user Seed writes under id: id+1 blocks of SeedBlockSize bytes
// of value 1.
func SeedUser(id uint64) User {
	u := User{
		Name:       fmt.Sprintf("user with %d", id),
		FavNumbers: make([][]byte, id+1),
	}
	for i := range u.FavNumbers {
		u.FavNumbers[i] = bytes.Repeat([]byte{1}, SeedBlockSize)
	}
	return u
}

// Seed writes the demo users 0..n-1, overwriting existing ones, and returns how many
// were replaced.
func Seed(s Inserter, n int) (replaced int, err error) {
	for id := 0; id < n; id++ {
		r, err := s.Insert(uint128.From64(uint64(id)), SeedUser(uint64(id)))
		if err != nil {
			return replaced, fmt.Errorf("seeding user %d: %w", id, err)
		}
		if r {
			replaced++
		}
	}
	return replaced, nil
}
