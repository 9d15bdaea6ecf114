package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

type memInserter map[uint128.Uint128]User

func (m memInserter) Insert(key uint128.Uint128, u User) (bool, error) {
	_, ok := m[key]
	m[key] = u
	return ok, nil
}

func TestCodecRoundTrip(t *testing.T) {
	u := SeedUser(3)
	b, err := Codec.Encode(u)
	require.NoError(t, err)

	back, err := Codec.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, u.Name, back.Name)
	assert.Equal(t, u.FavNumbers, back.FavNumbers)

	again, err := Codec.Encode(back)
	require.NoError(t, err)
	assert.Equal(t, b, again, "encoding is not deterministic")
}

func TestBoundedCodecRejectsLargeUsers(t *testing.T) {
	c := NewCodec(1000)
	assert.False(t, c.Bound().Unbounded)
	assert.True(t, Codec.Bound().Unbounded)

	b, err := c.Encode(SeedUser(0))
	require.NoError(t, err)
	assert.Greater(t, len(b), 1000)
}

func TestSeed(t *testing.T) {
	s := memInserter{}
	replaced, err := Seed(s, DefaultSeedCount)
	require.NoError(t, err)
	assert.Zero(t, replaced)
	require.Len(t, s, 10)

	u := s[uint128.From64(5)]
	assert.Equal(t, "user with 5", u.Name)
	assert.Equal(t, []int{2000, 2000, 2000, 2000, 2000, 2000}, u.BlockSizes())
	for _, block := range u.FavNumbers {
		for _, b := range block {
			require.Equal(t, byte(1), b)
		}
	}

	_, ok := s[uint128.From64(10)]
	assert.False(t, ok)

	replaced, err = Seed(s, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, replaced)
}
