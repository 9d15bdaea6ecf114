package snapshot

import (
	"testing"

	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/pramitgaha/map-error/lib/state"
	"github.com/pramitgaha/map-error/lib/users"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

// seedMemoryFile creates a memory file holding n seeded users
func seedMemoryFile(t *testing.T, path string, n int) {
	t.Helper()
	mem, err := memory.OpenFileMemory(fs, path, nil)
	require.NoError(t, err)
	st, err := state.Open(mem, nil)
	require.NoError(t, err)
	_, err = users.Seed(st.Store(), n)
	require.NoError(t, err)
	require.NoError(t, st.PreTeardown())
	require.NoError(t, st.Close())
}

func TestSaveAndLoad(t *testing.T) {
	fs = afero.NewMemMapFs()
	t.Cleanup(func() { fs = afero.NewOsFs() })

	seedMemoryFile(t, "/data/a.mem", 3)

	n, err := save("/data/a.mem", "/snap/a.snap")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	// a second map with one overlapping key
	mem, err := memory.OpenFileMemory(fs, "/data/b.mem", nil)
	require.NoError(t, err)
	st, err := state.Open(mem, nil)
	require.NoError(t, err)
	_, err = st.Store().Insert(uint128.From64(2), users.User{Name: "replaced"})
	require.NoError(t, err)
	_, err = st.Store().Insert(uint128.From64(9), users.User{Name: "kept"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	n, err = load("/data/b.mem", "/snap/a.snap")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	st, err = openState("/data/b.mem")
	require.NoError(t, err)
	defer st.Close()

	got, ok, err := st.Store().Get(uint128.From64(2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, users.SeedUser(2), got)

	got, ok, err = st.Store().Get(uint128.From64(9))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", got.Name)
}

func TestOpenMissingMemoryFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	t.Cleanup(func() { fs = afero.NewOsFs() })

	_, err := save("/data/missing.mem", "/snap/x.snap")
	assert.Error(t, err)

	exists, err := afero.Exists(fs, "/data/missing.mem")
	require.NoError(t, err)
	assert.False(t, exists)
}
