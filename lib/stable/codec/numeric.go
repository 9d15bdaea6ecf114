package codec

import (
	"cmp"
	"encoding/binary"

	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// Uint128
// --------------------------------------------------------------------------

// Uint128 encodes 128 bit unsigned integers as 16 bytes big endian, so byte order
// equals numeric order.
type Uint128 struct{}

var _ KeyCodec[uint128.Uint128] = Uint128{}

func (Uint128) Encode(v uint128.Uint128) ([]byte, error) {
	b := make([]byte, 16)
	v.PutBytesBE(b)
	return b, nil
}

func (Uint128) Decode(b []byte) (uint128.Uint128, error) {
	if len(b) != 16 {
		return uint128.Zero, corrupt("uint128 needs 16 bytes, got %d", len(b))
	}
	return uint128.FromBytesBE(b), nil
}

func (Uint128) Bound() Bound {
	return Bound{MaxSize: 16, IsFixedSize: true}
}

func (Uint128) Compare(a, b uint128.Uint128) int {
	return a.Cmp(b)
}

// --------------------------------------------------------------------------
// Uint64
// --------------------------------------------------------------------------

// Uint64 encodes 64 bit unsigned integers as 8 bytes big endian.
type Uint64 struct{}

var _ KeyCodec[uint64] = Uint64{}

func (Uint64) Encode(v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, v), nil
}

func (Uint64) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, corrupt("uint64 needs 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func (Uint64) Bound() Bound {
	return Bound{MaxSize: 8, IsFixedSize: true}
}

func (Uint64) Compare(a, b uint64) int {
	return cmp.Compare(a, b)
}
