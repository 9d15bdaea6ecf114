package state

import (
	"testing"

	"github.com/pramitgaha/map-error/lib/stable/memmgr"
	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/pramitgaha/map-error/lib/users"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

var smallLayout = &Options{BucketSizeInPages: 1, NodeBytes: 512}

func TestFirstStart(t *testing.T) {
	s, err := Open(memory.NewVectorMemory(), smallLayout)
	require.NoError(t, err)
	defer s.Close()

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Starts)
	assert.Zero(t, stats.Inserts)
	assert.True(t, stats.LastShutdown.IsZero())

	n, err := s.Store().Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpgradeKeepsMapAndStats(t *testing.T) {
	mem := memory.NewVectorMemory()

	s, err := Open(mem, smallLayout)
	require.NoError(t, err)
	_, err = users.Seed(s.Store(), users.DefaultSeedCount)
	require.NoError(t, err)
	_, _, err = s.Store().Get(uint128.From64(3))
	require.NoError(t, err)
	_, err = s.Store().Remove(uint128.From64(9))
	require.NoError(t, err)
	require.NoError(t, s.PreTeardown())
	require.NoError(t, s.Close())

	// new process, same memory
	s, err = Open(mem, nil)
	require.NoError(t, err)
	defer s.Close()

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Starts)
	assert.Equal(t, uint64(10), stats.Inserts)
	assert.Equal(t, uint64(1), stats.Gets)
	assert.Equal(t, uint64(1), stats.Removes)
	assert.False(t, stats.LastShutdown.IsZero())

	u, ok, err := s.Store().Get(uint128.From64(5))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user with 5", u.Name)
	assert.Len(t, u.FavNumbers, 6)

	_, ok, err = s.Store().Get(uint128.From64(9))
	require.NoError(t, err)
	assert.False(t, ok)

	// the stored bucket size wins over the default passed on re-attach
	assert.Equal(t, uint64(1), s.MemoryStats().BucketSizeInPages)
}

func TestRestartWithoutTeardownLosesOnlyStats(t *testing.T) {
	mem := memory.NewVectorMemory()

	s, err := Open(mem, smallLayout)
	require.NoError(t, err)
	_, err = s.Store().Insert(uint128.From64(1), users.User{Name: "kept"})
	require.NoError(t, err)

	s, err = Open(mem, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint64(1), s.Stats().Starts)
	assert.Zero(t, s.Stats().Inserts)
	u, ok, err := s.Store().Get(uint128.From64(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", u.Name)
}

func TestFileMemoryRestart(t *testing.T) {
	fs := afero.NewMemMapFs()
	open := func() *State {
		mem, err := memory.OpenFileMemory(fs, "/data/smap.mem", nil)
		require.NoError(t, err)
		s, err := Open(mem, smallLayout)
		require.NoError(t, err)
		return s
	}

	s := open()
	_, err := users.Seed(s.Store(), 3)
	require.NoError(t, err)
	require.NoError(t, s.PreTeardown())
	require.NoError(t, s.Close())

	s = open()
	n, err := s.Store().Len()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	assert.Equal(t, uint64(2), s.Stats().Starts)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.PreTeardown(), ErrClosed)
	assert.NoError(t, s.Close())
}

func TestCorruptUpgradeData(t *testing.T) {
	mem := memory.NewVectorMemory()
	s, err := Open(mem, smallLayout)
	require.NoError(t, err)
	require.NoError(t, s.PreTeardown())

	// a length prefix that points past the end of the memory
	s.upgrades.Write(0, []byte{0xff, 0xff, 0xff, 0x7f})
	_, err = Open(mem, nil)
	assert.ErrorIs(t, err, ErrCorruptUpgradeData)

	// a valid length with garbage behind it
	s.upgrades.Write(0, []byte{2, 0, 0, 0, 0xff, 0xff})
	_, err = Open(mem, nil)
	assert.ErrorIs(t, err, ErrCorruptUpgradeData)
}

func TestMemoryIDs(t *testing.T) {
	s, err := Open(memory.NewVectorMemory(), smallLayout)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, memmgr.UpgradesMemoryID, s.upgrades.ID())
	pages := s.MemoryStats().MemoryPages
	assert.Contains(t, pages, memmgr.UpgradesMemoryID)
	assert.Contains(t, pages, memmgr.MapMemoryID)
	assert.Greater(t, pages[memmgr.MapMemoryID], uint64(0))
}
