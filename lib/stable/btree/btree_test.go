package btree

import (
	"bytes"
	"math/rand"
	"slices"
	"testing"

	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/stable/memmgr"
	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// small nodes (capacity 3) so that few keys already build deep trees
var smallNodes = &Options{NodeBytes: 128}

func key(i uint64) uint128.Uint128 {
	return uint128.From64(i)
}

func newBytesMap(t *testing.T, mem memory.Memory, opts *Options) *Map[uint128.Uint128, []byte] {
	t.Helper()
	m, err := Init[uint128.Uint128, []byte](mem, codec.Uint128{}, codec.Bytes{}, opts)
	require.NoError(t, err)
	return m
}

// checkInvariants walks the whole tree and verifies ordering, fill levels, balance,
// the stored length and that every chunk is either reachable or on the free list.
func checkInvariants[K, V any](t *testing.T, m *Map[K, V]) {
	t.Helper()

	var (
		count     uint64
		leafDepth = -1
		prev      *K
	)

	var visit func(addr uint64, depth int, isRoot bool)
	visit = func(addr uint64, depth int, isRoot bool) {
		n, err := m.loadNode(addr)
		require.NoError(t, err)
		require.LessOrEqual(t, len(n.entries), int(m.hdr.capacity), "node %d overfull", addr)
		if !isRoot {
			require.GreaterOrEqual(t, len(n.entries), m.hdr.minKeys(), "node %d underfull", addr)
		} else {
			require.NotEmpty(t, n.entries, "empty root")
		}

		check := func(e entry[K]) {
			if prev != nil {
				require.Equal(t, -1, m.kc.Compare(*prev, e.key), "keys out of order")
			}
			k := e.key
			prev = &k
			count++
		}

		if n.leaf {
			if leafDepth < 0 {
				leafDepth = depth
			}
			require.Equal(t, leafDepth, depth, "leaves on different levels")
			for _, e := range n.entries {
				check(e)
			}
			return
		}

		require.Len(t, n.children, len(n.entries)+1)
		for i, e := range n.entries {
			visit(n.children[i], depth+1, false)
			check(e)
		}
		visit(n.children[len(n.entries)], depth+1, false)
	}

	if m.hdr.root != nullAddr {
		visit(m.hdr.root, 1, true)
	}
	require.Equal(t, m.Len(), count, "stored length")

	stats, err := m.Stats()
	require.NoError(t, err)
	require.Equal(t, m.hdr.chunkCount, stats.Nodes+stats.OverflowChunks+stats.FreeChunks, "leaked chunks")
}

func collect[K, V any](t *testing.T, it *Iterator[K, V]) ([]K, []V) {
	t.Helper()
	var keys []K
	var values []V
	for it.Next() {
		keys = append(keys, it.Key())
		values = append(values, it.Value())
	}
	require.NoError(t, it.Err())
	return keys, values
}

// --------------------------------------------------------------------------
// Layout
// --------------------------------------------------------------------------

func TestGeometry(t *testing.T) {
	small := newHeader(codec.Uint128{}.Bound(), codec.Bytes{}.Bound(), smallNodes)
	assert.Equal(t, uint32(3), small.capacity)
	assert.Equal(t, 1, small.minKeys())
	assert.False(t, small.inline())
	assert.GreaterOrEqual(t, uint64(small.chunkSize), small.nodeSize())

	def := newHeader(codec.Uint128{}.Bound(), codec.Uint64{}.Bound(), nil)
	assert.True(t, def.inline())
	assert.Equal(t, uint32(1), def.capacity%2, "capacity must be odd")
	assert.LessOrEqual(t, def.nodeSize(), uint64(DefaultNodeBytes))

	big := newHeader(codec.Uint128{}.Bound(), codec.Bytes{Max: 4000}.Bound(), nil)
	assert.False(t, big.inline(), "values above the inline limit go to overflow chunks")

	huge := newHeader(codec.String{Max: 3000}.Bound(), codec.Uint64{}.Bound(), nil)
	assert.Equal(t, uint32(3), huge.capacity)
	assert.Equal(t, huge.nodeSize(), uint64(huge.chunkSize))
}

func TestUnboundedKeyRejected(t *testing.T) {
	_, err := New[string, []byte](memory.NewVectorMemory(), codec.String{}, codec.Bytes{}, nil)
	require.ErrorIs(t, err, codec.ErrUnboundedKey)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load[uint128.Uint128, []byte](memory.NewVectorMemory(), codec.Uint128{}, codec.Bytes{})
	require.ErrorIs(t, err, ErrNoLayout)

	garbage := memory.NewVectorMemory()
	memory.SafeWrite(garbage, 0, []byte("something else"))
	_, err = Init[uint128.Uint128, []byte](garbage, codec.Uint128{}, codec.Bytes{}, nil)
	require.ErrorIs(t, err, ErrBadMagic)

	mem := memory.NewVectorMemory()
	newBytesMap(t, mem, nil)
	_, err = Load[uint128.Uint128, uint64](mem, codec.Uint128{}, codec.Uint64{})
	require.ErrorIs(t, err, ErrIncompatibleLayout)
	_, err = Load[uint64, []byte](mem, codec.Uint64{}, codec.Bytes{})
	require.ErrorIs(t, err, ErrIncompatibleLayout)
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

func TestEmptyMap(t *testing.T) {
	m := newBytesMap(t, memory.NewVectorMemory(), nil)
	assert.True(t, m.IsEmpty())

	_, ok, err := m.Get(key(1))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Remove(key(1))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, ok, err = m.First()
	require.NoError(t, err)
	assert.False(t, ok)

	keys, _ := collect(t, m.Iter())
	assert.Empty(t, keys)
}

func TestInsertReplaceRemove(t *testing.T) {
	m := newBytesMap(t, memory.NewVectorMemory(), smallNodes)

	old, replaced, err := m.Insert(key(7), []byte("seven"))
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Nil(t, old)

	old, replaced, err = m.Insert(key(7), []byte("SEVEN"))
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, []byte("seven"), old)
	assert.Equal(t, uint64(1), m.Len())

	ok, err := m.ContainsKey(key(7))
	require.NoError(t, err)
	assert.True(t, ok)

	v, ok, err := m.Get(key(7))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("SEVEN"), v)

	v, ok, err = m.Remove(key(7))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("SEVEN"), v)
	assert.True(t, m.IsEmpty())
	assert.Equal(t, nullAddr, m.hdr.root)
	checkInvariants(t, m)
}

func TestEmptyValue(t *testing.T) {
	m := newBytesMap(t, memory.NewVectorMemory(), smallNodes)
	_, _, err := m.Insert(key(1), []byte{})
	require.NoError(t, err)

	v, ok, err := m.Get(key(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, v)
	checkInvariants(t, m)
}

func TestRandomizedAgainstReference(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts *Options
	}{
		{"SmallNodes", smallNodes},
		{"DefaultNodes", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newBytesMap(t, memory.NewVectorMemory(), tc.opts)
			ref := make(map[uint64][]byte)
			r := rand.New(rand.NewSource(42))

			for op := 0; op < 3000; op++ {
				k := uint64(r.Intn(300))
				switch r.Intn(3) {
				case 0, 1:
					v := bytes.Repeat([]byte{byte(op)}, r.Intn(400))
					old, replaced, err := m.Insert(key(k), v)
					require.NoError(t, err)
					prev, had := ref[k]
					require.Equal(t, had, replaced, "replaced flag for key %d", k)
					if had {
						require.Equal(t, prev, old)
					}
					ref[k] = v
				case 2:
					old, ok, err := m.Remove(key(k))
					require.NoError(t, err)
					prev, had := ref[k]
					require.Equal(t, had, ok, "removed flag for key %d", k)
					if had {
						require.Equal(t, prev, old)
					}
					delete(ref, k)
				}
				if op%250 == 0 {
					checkInvariants(t, m)
				}
			}
			checkInvariants(t, m)

			want := make([]uint64, 0, len(ref))
			for k := range ref {
				want = append(want, k)
			}
			slices.Sort(want)

			keys, values := collect(t, m.Iter())
			require.Len(t, keys, len(want))
			for i, k := range want {
				require.Equal(t, key(k), keys[i])
				require.Equal(t, ref[k], values[i])
			}

			// drain in random order, everything must end up on the free list
			r.Shuffle(len(want), func(i, j int) { want[i], want[j] = want[j], want[i] })
			for i, k := range want {
				_, ok, err := m.Remove(key(k))
				require.NoError(t, err)
				require.True(t, ok)
				if i%50 == 0 {
					checkInvariants(t, m)
				}
			}
			assert.True(t, m.IsEmpty())
			stats, err := m.Stats()
			require.NoError(t, err)
			assert.Equal(t, m.hdr.chunkCount, stats.FreeChunks)
		})
	}
}

func TestAscendingAndDescendingInserts(t *testing.T) {
	m, err := Init[uint128.Uint128, uint64](memory.NewVectorMemory(), codec.Uint128{}, codec.Uint64{}, smallNodes)
	require.NoError(t, err)

	for i := uint64(0); i < 200; i++ {
		_, _, err := m.Insert(key(i), i*10)
		require.NoError(t, err)
	}
	for i := uint64(1000); i > 800; i-- {
		_, _, err := m.Insert(key(i), i*10)
		require.NoError(t, err)
	}
	checkInvariants(t, m)

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Greater(t, stats.Depth, 3)
	assert.Equal(t, uint64(400), stats.Length)
	assert.Zero(t, stats.OverflowChunks)

	k, v, ok, err := m.First()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key(0), k)
	assert.Equal(t, uint64(0), v)

	k, v, ok, err = m.Last()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key(1000), k)
	assert.Equal(t, uint64(10000), v)
}

func TestRange(t *testing.T) {
	m, err := Init[uint128.Uint128, uint64](memory.NewVectorMemory(), codec.Uint128{}, codec.Uint64{}, smallNodes)
	require.NoError(t, err)
	for i := uint64(0); i < 100; i += 2 {
		_, _, err := m.Insert(key(i), i)
		require.NoError(t, err)
	}

	keys, values := collect(t, m.Range(key(10), key(20)))
	assert.Equal(t, []uint128.Uint128{key(10), key(12), key(14), key(16), key(18)}, keys)
	assert.Equal(t, []uint64{10, 12, 14, 16, 18}, values)

	// bounds between keys
	keys, _ = collect(t, m.Range(key(11), key(15)))
	assert.Equal(t, []uint128.Uint128{key(12), key(14)}, keys)

	keys, _ = collect(t, m.Range(key(20), key(20)))
	assert.Empty(t, keys)

	keys, _ = collect(t, m.IterFrom(key(93)))
	assert.Equal(t, []uint128.Uint128{key(94), key(96), key(98)}, keys)

	keys, _ = collect(t, m.IterFrom(key(99)))
	assert.Empty(t, keys)

	keys, _ = collect(t, m.Iter())
	assert.Len(t, keys, 50)
	assert.True(t, slices.IsSortedFunc(keys, func(a, b uint128.Uint128) int { return a.Cmp(b) }))
}

// --------------------------------------------------------------------------
// Storage
// --------------------------------------------------------------------------

func TestLargeValuesUseOverflowChains(t *testing.T) {
	m := newBytesMap(t, memory.NewVectorMemory(), smallNodes)
	payload := m.hdr.overflowPayload()

	large := bytes.Repeat([]byte{1}, 12000)
	_, _, err := m.Insert(key(5), large)
	require.NoError(t, err)

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, (uint64(len(large))+payload-1)/payload, stats.OverflowChunks)

	v, ok, err := m.Get(key(5))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, large, v)

	// replacing with a smaller value returns the surplus chunks to the free list
	_, _, err = m.Insert(key(5), []byte("small"))
	require.NoError(t, err)
	checkInvariants(t, m)
	used := m.hdr.nextChunk

	// the same amount of data again fits into freed chunks
	_, _, err = m.Insert(key(6), large)
	require.NoError(t, err)
	assert.Equal(t, used, m.hdr.nextChunk, "freed chunks were not reused")
	checkInvariants(t, m)
}

func TestSizeErrorsWriteNothing(t *testing.T) {
	mem := memory.NewVectorMemory()
	m, err := Init[uint128.Uint128, []byte](mem, codec.Uint128{}, codec.Bytes{Max: 10}, smallNodes)
	require.NoError(t, err)
	_, _, err = m.Insert(key(1), []byte("fits"))
	require.NoError(t, err)

	before := make([]byte, mem.Size()*memory.PageSize)
	mem.Read(0, before)

	_, _, err = m.Insert(key(2), bytes.Repeat([]byte{1}, 11))
	require.ErrorIs(t, err, codec.ErrSizeBoundExceeded)

	after := make([]byte, mem.Size()*memory.PageSize)
	mem.Read(0, after)
	assert.True(t, bytes.Equal(before, after), "memory changed")
	assert.Equal(t, uint64(1), m.Len())

	keyed, err := Init[string, uint64](memory.NewVectorMemory(), codec.String{Max: 4}, codec.Uint64{}, nil)
	require.NoError(t, err)
	_, _, err = keyed.Insert("too long", 1)
	require.ErrorIs(t, err, codec.ErrSizeBoundExceeded)

	// a key that cannot be stored is simply absent
	_, ok, err := keyed.Get("too long")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptValueIsReported(t *testing.T) {
	m := newBytesMap(t, memory.NewVectorMemory(), smallNodes)
	_, _, err := m.Insert(key(1), bytes.Repeat([]byte{1}, 500))
	require.NoError(t, err)
	_, _, err = m.Insert(key(2), []byte("intact"))
	require.NoError(t, err)

	e, found, err := m.find(key(1))
	require.NoError(t, err)
	require.True(t, found)
	m.mem.Write(e.val.addr+8, []byte{0xff, 0xff, 0xff, 0xff})

	_, ok, err := m.Get(key(1))
	assert.True(t, ok)
	assert.ErrorIs(t, err, codec.ErrCorruptRecord)

	_, _, err = collect2(m.Iter())
	assert.ErrorIs(t, err, codec.ErrCorruptRecord)

	v, ok, err := m.Get(key(2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("intact"), v)

	// the corrupt value can still be replaced
	_, replaced, err := m.Insert(key(1), []byte("fresh"))
	assert.True(t, replaced)
	assert.ErrorIs(t, err, codec.ErrCorruptRecord)
	v, _, err = m.Get(key(1))
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), v)
}

func collect2[K, V any](it *Iterator[K, V]) (int, bool, error) {
	n := 0
	for it.Next() {
		n++
	}
	return n, n > 0, it.Err()
}

// --------------------------------------------------------------------------
// Re-attach
// --------------------------------------------------------------------------

func TestReattachKeepsContent(t *testing.T) {
	mem := memory.NewVectorMemory()
	mgr, err := memmgr.InitWithBucketSize(mem, 1)
	require.NoError(t, err)
	mgr.Register(memmgr.UpgradesMemoryID, memmgr.MapMemoryID)

	m := newBytesMap(t, mgr.Get(memmgr.MapMemoryID), smallNodes)
	for i := uint64(0); i < 10; i++ {
		_, _, err := m.Insert(key(i), bytes.Repeat([]byte{1}, int(i+1)*2000))
		require.NoError(t, err)
	}
	// another memory growing in between interleaves the buckets
	mgr.Get(memmgr.UpgradesMemoryID).Write(0, []byte("transient"))
	_, _, err = m.Remove(key(3))
	require.NoError(t, err)

	again, err := memmgr.Init(mem)
	require.NoError(t, err)
	again.Register(memmgr.UpgradesMemoryID, memmgr.MapMemoryID)

	// options are ignored when re-attaching
	m2 := newBytesMap(t, again.Get(memmgr.MapMemoryID), nil)
	assert.Equal(t, uint64(9), m2.Len())
	assert.Equal(t, m.hdr, m2.hdr)
	checkInvariants(t, m2)

	v, ok, err := m2.Get(key(5))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, v, 6*2000)

	_, ok, err = m2.Get(key(3))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m2.Get(key(10))
	require.NoError(t, err)
	assert.False(t, ok)
}
