package memmgr

import (
	"bytes"
	"testing"

	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePanicsWith(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value is not an error: %v", r)
		require.ErrorIs(t, err, target)
	}()
	fn()
}

func newManager(t *testing.T, mem memory.Memory, bucketSize uint16) *MemoryManager {
	t.Helper()
	mgr, err := InitWithBucketSize(mem, bucketSize)
	require.NoError(t, err)
	mgr.Register(UpgradesMemoryID, MapMemoryID, 7)
	return mgr
}

// --------------------------------------------------------------------------
// Layout
// --------------------------------------------------------------------------

func TestInitWritesHeader(t *testing.T) {
	mem := memory.NewVectorMemory()
	_, err := Init(mem)
	require.NoError(t, err)

	require.Equal(t, uint64(1), mem.Size())
	head := make([]byte, 8)
	mem.Read(0, head)
	assert.Equal(t, []byte("MGR"), head[:3])
	assert.Equal(t, byte(layoutVersion), head[3])
	assert.Equal(t, []byte{0, 0}, head[4:6])
	assert.Equal(t, []byte{DefaultBucketSizeInPages, 0}, head[6:8])

	table := make([]byte, 4)
	mem.Read(offBucketTable, table)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, table)
}

func TestInitRejectsForeignMemory(t *testing.T) {
	mem := memory.NewVectorMemory()
	memory.SafeWrite(mem, 0, []byte("NOPE"))

	_, err := Init(mem)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestInitRejectsUnknownVersion(t *testing.T) {
	mem := memory.NewVectorMemory()
	_, err := Init(mem)
	require.NoError(t, err)
	mem.Write(offVersion, []byte{9})

	_, err = Init(mem)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestInitRejectsZeroBucketSize(t *testing.T) {
	_, err := InitWithBucketSize(memory.NewVectorMemory(), 0)
	require.ErrorIs(t, err, ErrInvalidBucketSize)
}

// --------------------------------------------------------------------------
// Virtual memories
// --------------------------------------------------------------------------

func TestGetUnknownMemoryPanics(t *testing.T) {
	mgr := newManager(t, memory.NewVectorMemory(), 1)
	requirePanicsWith(t, ErrUnknownMemoryID, func() { mgr.Get(3) })
	requirePanicsWith(t, ErrUnknownMemoryID, func() { mgr.Get(MaxMemories) })
}

func TestMemoriesAreIsolated(t *testing.T) {
	mgr := newManager(t, memory.NewVectorMemory(), 1)
	a := mgr.Get(UpgradesMemoryID)
	b := mgr.Get(MapMemoryID)

	// interleave growth so the buckets of both memories alternate physically
	for i := 0; i < 4; i++ {
		_, err := a.Grow(1)
		require.NoError(t, err)
		_, err = b.Grow(1)
		require.NoError(t, err)
	}

	fillA := bytes.Repeat([]byte{0xAA}, int(4*memory.PageSize))
	fillB := bytes.Repeat([]byte{0xBB}, int(4*memory.PageSize))
	a.Write(0, fillA)
	b.Write(0, fillB)

	gotA := make([]byte, len(fillA))
	gotB := make([]byte, len(fillB))
	a.Read(0, gotA)
	b.Read(0, gotB)
	assert.True(t, bytes.Equal(fillA, gotA), "memory 0 was overwritten")
	assert.True(t, bytes.Equal(fillB, gotB), "memory 1 was overwritten")

	assert.Equal(t, uint64(1), mgr.alloc.PhysicalPage(UpgradesMemoryID, 0))
	assert.Equal(t, uint64(2), mgr.alloc.PhysicalPage(MapMemoryID, 0))
	assert.Equal(t, uint64(3), mgr.alloc.PhysicalPage(UpgradesMemoryID, 1))
}

func TestSpanAcrossBuckets(t *testing.T) {
	mgr := newManager(t, memory.NewVectorMemory(), 1)
	a := mgr.Get(UpgradesMemoryID)
	b := mgr.Get(MapMemoryID)

	_, err := a.Grow(1)
	require.NoError(t, err)
	_, err = b.Grow(1)
	require.NoError(t, err)
	_, err = a.Grow(1)
	require.NoError(t, err)

	// the two pages of a are not physically adjacent
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	a.Write(memory.PageSize-100, data)

	got := make([]byte, len(data))
	a.Read(memory.PageSize-100, got)
	assert.Equal(t, data, got)

	untouched := make([]byte, memory.PageSize)
	b.Read(0, untouched)
	assert.Equal(t, make([]byte, memory.PageSize), untouched)
}

func TestImplicitGrowOnWrite(t *testing.T) {
	mgr := newManager(t, memory.NewVectorMemory(), 2)
	v := mgr.Get(MapMemoryID)
	require.Equal(t, uint64(0), v.Size())

	v.Write(3*memory.PageSize+10, []byte("hello"))
	assert.Equal(t, uint64(4), v.Size())
	assert.Equal(t, 4*memory.PageSize, v.SizeBytes())

	got := make([]byte, 5)
	v.Read(3*memory.PageSize+10, got)
	assert.Equal(t, "hello", string(got))

	// a bucket holds two pages, four pages need two buckets
	assert.Equal(t, uint64(2), mgr.Stats().AllocatedBuckets)
}

func TestReadPastEndPanics(t *testing.T) {
	mgr := newManager(t, memory.NewVectorMemory(), 1)
	v := mgr.Get(MapMemoryID)
	_, err := v.Grow(1)
	require.NoError(t, err)

	requirePanicsWith(t, memory.ErrOutOfBounds, func() {
		v.Read(memory.PageSize-1, make([]byte, 2))
	})
}

func TestGrowFailsWhenPhysicalMemoryRefuses(t *testing.T) {
	// header page plus two buckets of one page
	mgr := newManager(t, memory.NewBoundedVectorMemory(3), 1)
	v := mgr.Get(MapMemoryID)

	prev, err := v.Grow(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), prev)

	prev, err = v.Grow(1)
	require.ErrorIs(t, err, memory.ErrGrowFailed)
	assert.Equal(t, uint64(2), prev)
	assert.Equal(t, uint64(2), v.Size())

	requirePanicsWith(t, memory.ErrGrowFailed, func() {
		v.Write(2*memory.PageSize, []byte{1})
	})
}

func TestGrowWithinBucketAllocatesNothing(t *testing.T) {
	mgr := newManager(t, memory.NewVectorMemory(), 4)
	v := mgr.Get(7)

	for i := 0; i < 4; i++ {
		_, err := v.Grow(1)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(1), mgr.Stats().AllocatedBuckets)

	_, err := v.Grow(1)
	require.NoError(t, err)
	stats := mgr.Stats()
	assert.Equal(t, uint64(2), stats.AllocatedBuckets)
	assert.Equal(t, uint64(5), stats.MemoryPages[7])
	assert.Equal(t, uint64(1+2*4), stats.PhysicalPages)
}

// --------------------------------------------------------------------------
// Re-attach
// --------------------------------------------------------------------------

func TestReattachRestoresMemories(t *testing.T) {
	mem := memory.NewVectorMemory()
	mgr := newManager(t, mem, 1)

	a := mgr.Get(UpgradesMemoryID)
	b := mgr.Get(MapMemoryID)
	a.Write(0, []byte("first"))
	b.Write(2*memory.PageSize, []byte("second"))
	a.Write(memory.PageSize+5, []byte("third"))

	// the stored bucket size wins over the requested one
	again := newManager(t, mem, 64)
	assert.Equal(t, uint64(1), again.Stats().BucketSizeInPages)

	a2 := again.Get(UpgradesMemoryID)
	b2 := again.Get(MapMemoryID)
	assert.Equal(t, uint64(2), a2.Size())
	assert.Equal(t, uint64(3), b2.Size())

	got := make([]byte, 5)
	a2.Read(0, got)
	assert.Equal(t, "first", string(got))

	got = make([]byte, 6)
	b2.Read(2*memory.PageSize, got)
	assert.Equal(t, "second", string(got))

	got = make([]byte, 5)
	a2.Read(memory.PageSize+5, got)
	assert.Equal(t, "third", string(got))

	// growth after re-attach continues behind the existing buckets
	a2.Write(2*memory.PageSize, []byte("fourth"))
	got = make([]byte, 6)
	b2.Read(2*memory.PageSize, got)
	assert.Equal(t, "second", string(got))
}

func TestReattachDetectsInconsistentHeader(t *testing.T) {
	mem := memory.NewVectorMemory()
	mgr := newManager(t, mem, 1)
	mgr.Get(MapMemoryID).Write(0, []byte{1})

	// claim more pages than the memory owns
	mem.Write(offMemorySizes+uint64(MapMemoryID)*8, []byte{9, 0, 0, 0, 0, 0, 0, 0})
	_, err := Init(mem)
	require.Error(t, err)
}
