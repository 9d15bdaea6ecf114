package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

func TestUint128OrderMatchesBytes(t *testing.T) {
	c := Uint128{}
	values := []uint128.Uint128{
		uint128.Zero,
		uint128.From64(1),
		uint128.From64(255),
		uint128.From64(256),
		uint128.New(0, 1),
		uint128.Max,
	}

	for i := 1; i < len(values); i++ {
		a, err := c.Encode(values[i-1])
		require.NoError(t, err)
		b, err := c.Encode(values[i])
		require.NoError(t, err)

		assert.Equal(t, -1, bytes.Compare(a, b), "bytes of %s and %s", values[i-1], values[i])
		assert.Equal(t, -1, c.Compare(values[i-1], values[i]))
	}

	b, err := c.Encode(uint128.From64(5))
	require.NoError(t, err)
	assert.Equal(t, append(make([]byte, 15), 5), b)

	v, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint128.From64(5), v)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	_, err := Uint128{}.Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = Uint64{}.Decode(nil)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = String{}.Decode([]byte{0xff, 0xfe})
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = Bytes{Max: 2}.Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptRecord)

	type record struct {
		Name string
	}
	_, err = CBOR[record]{}.Decode([]byte{0xff, 0x00})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestEncodeBounded(t *testing.T) {
	_, err := EncodeBounded[string](String{Max: 4}, "toolong")
	require.ErrorIs(t, err, ErrSizeBoundExceeded)

	b, err := EncodeBounded[string](String{Max: 4}, "fits")
	require.NoError(t, err)
	assert.Equal(t, []byte("fits"), b)

	b, err = EncodeBounded[[]byte](Bytes{}, bytes.Repeat([]byte{1}, 1<<20))
	require.NoError(t, err)
	assert.Len(t, b, 1<<20)
}

func TestRequireBounded(t *testing.T) {
	assert.NoError(t, RequireBounded[uint128.Uint128](Uint128{}))
	assert.NoError(t, RequireBounded[string](String{Max: 32}))
	assert.ErrorIs(t, RequireBounded[string](String{}), ErrUnboundedKey)
	assert.ErrorIs(t, RequireBounded[[]byte](Bytes{}), ErrUnboundedKey)
}

func TestCBORIsDeterministic(t *testing.T) {
	type record struct {
		Name  string
		Attrs map[string]int
	}
	c := CBOR[record]{}
	v := record{Name: "a", Attrs: map[string]int{"z": 1, "a": 2, "m": 3}}

	first, err := c.Encode(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Encode(v)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	back, err := c.Decode(first)
	require.NoError(t, err)
	assert.Equal(t, v, back)
	assert.True(t, c.Bound().Unbounded)
}
