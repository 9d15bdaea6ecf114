package btree

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/stable/memory"
)

// Map is an ordered map from K to V stored in a memory.Memory.
// All state, including the length and the free list, lives in the memory, so a Map
// attached again to the same memory sees the same content.
//
// Thread-safety: Map is not safe for concurrent use. Iterators are invalidated by
// every mutation of the map.
type Map[K, V any] struct {
	mem memory.Memory
	kc  codec.KeyCodec[K]
	vc  codec.Codec[V]
	hdr header
}

// Stats describes the shape of a map.
type Stats struct {
	Length         uint64
	Depth          int
	Nodes          uint64
	OverflowChunks uint64
	FreeChunks     uint64
	Capacity       uint32
	ChunkSize      uint32
	InlineValues   bool
	BytesUsed      uint64
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// Init attaches to the map stored in mem, or creates a new one if mem is empty.
func Init[K, V any](mem memory.Memory, kc codec.KeyCodec[K], vc codec.Codec[V], opts *Options) (*Map[K, V], error) {
	if blank(mem) {
		return New(mem, kc, vc, opts)
	}
	return Load(mem, kc, vc)
}

// New creates an empty map in mem, overwriting whatever header is there.
func New[K, V any](mem memory.Memory, kc codec.KeyCodec[K], vc codec.Codec[V], opts *Options) (*Map[K, V], error) {
	if err := codec.RequireBounded[K](kc); err != nil {
		return nil, err
	}
	if kc.Bound().MaxSize == 0 {
		return nil, fmt.Errorf("%w: key bound of 0 bytes", codec.ErrUnboundedKey)
	}

	m := &Map[K, V]{
		mem: mem,
		kc:  kc,
		vc:  vc,
		hdr: newHeader(kc.Bound(), vc.Bound(), opts),
	}
	m.saveHeader()
	return m, nil
}

// Load attaches to the map stored in mem.
func Load[K, V any](mem memory.Memory, kc codec.KeyCodec[K], vc codec.Codec[V]) (*Map[K, V], error) {
	if blank(mem) {
		return nil, ErrNoLayout
	}
	if err := codec.RequireBounded[K](kc); err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize)
	mem.Read(0, buf)
	hdr, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if err := hdr.compatible(kc.Bound(), vc.Bound()); err != nil {
		return nil, err
	}
	if hdr.nextChunk > mem.Size()*memory.PageSize {
		return nil, fmt.Errorf("%w: chunks end at %d, memory holds %d bytes", codec.ErrCorruptRecord, hdr.nextChunk, mem.Size()*memory.PageSize)
	}

	return &Map[K, V]{mem: mem, kc: kc, vc: vc, hdr: hdr}, nil
}

// blank reports whether mem holds no header.
func blank(mem memory.Memory) bool {
	if mem.Size() == 0 {
		return true
	}
	buf := make([]byte, 4)
	mem.Read(0, buf)
	return buf[0] == 0 && buf[1] == 0 && buf[2] == 0 && buf[3] == 0
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// Len returns the number of entries.
func (m *Map[K, V]) Len() uint64 {
	return m.hdr.length
}

// IsEmpty reports whether the map has no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.hdr.length == 0
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var zero V
	e, found, err := m.find(key)
	if err != nil || !found {
		return zero, false, err
	}
	v, err := m.decodeValue(e.val)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}

// ContainsKey reports whether key is present without decoding its value.
func (m *Map[K, V]) ContainsKey(key K) (bool, error) {
	_, found, err := m.find(key)
	return found, err
}

// First returns the entry with the smallest key.
func (m *Map[K, V]) First() (K, V, bool, error) {
	return m.edge(false)
}

// Last returns the entry with the largest key.
func (m *Map[K, V]) Last() (K, V, bool, error) {
	return m.edge(true)
}

func (m *Map[K, V]) find(key K) (entry[K], bool, error) {
	if m.hdr.root == nullAddr || !m.fitsKeyBound(key) {
		return entry[K]{}, false, nil
	}
	addr := m.hdr.root
	for {
		n, err := m.loadNode(addr)
		if err != nil {
			return entry[K]{}, false, err
		}
		i, found := m.search(n, key)
		if found {
			return n.entries[i], true, nil
		}
		if n.leaf {
			return entry[K]{}, false, nil
		}
		addr = n.children[i]
	}
}

// fitsKeyBound reports whether key can be stored at all. Keys that do not fit are
// never present.
func (m *Map[K, V]) fitsKeyBound(key K) bool {
	_, err := codec.EncodeBounded[K](m.kc, key)
	return err == nil
}

func (m *Map[K, V]) edge(last bool) (K, V, bool, error) {
	var (
		zeroK K
		zeroV V
	)
	if m.hdr.root == nullAddr {
		return zeroK, zeroV, false, nil
	}
	addr := m.hdr.root
	for {
		n, err := m.loadNode(addr)
		if err != nil {
			return zeroK, zeroV, false, err
		}
		if !n.leaf {
			if last {
				addr = n.children[len(n.children)-1]
			} else {
				addr = n.children[0]
			}
			continue
		}
		if len(n.entries) == 0 {
			return zeroK, zeroV, false, nil
		}
		e := n.entries[0]
		if last {
			e = n.entries[len(n.entries)-1]
		}
		v, err := m.decodeValue(e.val)
		return e.key, v, true, err
	}
}

func (m *Map[K, V]) decodeValue(ref valueRef) (V, error) {
	var zero V
	b, err := m.loadValue(ref)
	if err != nil {
		return zero, err
	}
	return m.vc.Decode(b)
}

// --------------------------------------------------------------------------
// Insert
// --------------------------------------------------------------------------

// Insert stores value under key and returns the previous value if key was present.
// Size errors are returned before anything is written. If the previous value cannot
// be decoded the new value is still stored and the decode error is returned with
// replaced set.
func (m *Map[K, V]) Insert(key K, value V) (V, bool, error) {
	var zero V

	rawKey, err := codec.EncodeBounded[K](m.kc, key)
	if err != nil {
		return zero, false, err
	}
	rawValue, err := codec.EncodeBounded[V](m.vc, value)
	if err != nil {
		return zero, false, err
	}
	if uint64(len(rawValue)) > math.MaxUint32 {
		return zero, false, fmt.Errorf("%w: %d bytes, values are limited to 4 GiB", codec.ErrSizeBoundExceeded, len(rawValue))
	}

	if m.hdr.root == nullAddr {
		root := m.newNode(true)
		root.entries = []entry[K]{{key: key, raw: rawKey, val: m.storeValue(rawValue)}}
		m.saveNode(root)
		m.hdr.root = root.addr
		m.hdr.length = 1
		m.saveHeader()
		return zero, false, nil
	}

	root, err := m.loadNode(m.hdr.root)
	if err != nil {
		return zero, false, err
	}
	if m.full(root) {
		newRoot := m.newNode(false)
		newRoot.children = []uint64{root.addr}
		m.splitChild(newRoot, 0, root)
		m.hdr.root = newRoot.addr
		m.saveHeader()
		root = newRoot
	}

	return m.insertNonFull(root, entry[K]{key: key, raw: rawKey}, rawValue)
}

// insertNonFull inserts below n, which has room for one more key.
// Full children are split before descending into them.
func (m *Map[K, V]) insertNonFull(n *node[K], e entry[K], rawValue []byte) (V, bool, error) {
	var zero V
	for {
		i, found := m.search(n, e.key)
		if found {
			old := n.entries[i].val
			n.entries[i].val = m.storeValue(rawValue)
			m.saveNode(n)
			return m.releaseValue(old)
		}

		if n.leaf {
			e.val = m.storeValue(rawValue)
			n.entries = slices.Insert(n.entries, i, e)
			m.saveNode(n)
			m.hdr.length++
			m.saveHeader()
			return zero, false, nil
		}

		child, err := m.loadNode(n.children[i])
		if err != nil {
			return zero, false, err
		}
		if m.full(child) {
			m.splitChild(n, i, child)
			// the promoted median may be the key itself or move it to the right half
			continue
		}
		n = child
	}
}

// releaseValue decodes a value that was just replaced or removed and frees its storage.
func (m *Map[K, V]) releaseValue(ref valueRef) (V, bool, error) {
	var zero V
	b, loadErr := m.loadValue(ref)
	freeErr := m.freeValue(ref)
	if loadErr != nil {
		return zero, true, loadErr
	}
	if freeErr != nil {
		return zero, true, freeErr
	}
	v, err := m.vc.Decode(b)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}

// splitChild splits the full child at index i of parent. The median moves up into
// parent, the upper half into a new right sibling.
func (m *Map[K, V]) splitChild(parent *node[K], i int, child *node[K]) {
	mid := len(child.entries) / 2
	median := child.entries[mid]

	right := m.newNode(child.leaf)
	right.entries = slices.Clone(child.entries[mid+1:])
	child.entries = slices.Clone(child.entries[:mid])
	if !child.leaf {
		right.children = slices.Clone(child.children[mid+1:])
		child.children = slices.Clone(child.children[:mid+1])
	}

	parent.entries = slices.Insert(parent.entries, i, median)
	parent.children = slices.Insert(parent.children, i+1, right.addr)

	m.saveNode(right)
	m.saveNode(child)
	m.saveNode(parent)
}

// --------------------------------------------------------------------------
// Remove
// --------------------------------------------------------------------------

// Remove deletes key and returns its value.
func (m *Map[K, V]) Remove(key K) (V, bool, error) {
	var zero V
	if m.hdr.root == nullAddr || !m.fitsKeyBound(key) {
		return zero, false, nil
	}

	root, err := m.loadNode(m.hdr.root)
	if err != nil {
		return zero, false, err
	}
	removed, found, err := m.remove(root, key)

	// rebalancing on the way down may empty the root even if key is missing
	if len(root.entries) == 0 {
		if root.leaf {
			m.hdr.root = nullAddr
		} else {
			m.hdr.root = root.children[0]
		}
		m.freeChunk(root.addr)
	}
	if err != nil || !found {
		return zero, false, err
	}
	m.hdr.length--
	m.saveHeader()

	return m.releaseValue(removed.val)
}

// remove deletes key from the subtree of n and returns the removed entry.
// Every node remove descends into holds more than the minimum number of keys,
// so deleting from it never underflows. The root is exempt.
func (m *Map[K, V]) remove(n *node[K], key K) (entry[K], bool, error) {
	minKeys := m.hdr.minKeys()
	for {
		i, found := m.search(n, key)

		if n.leaf {
			if !found {
				return entry[K]{}, false, nil
			}
			e := n.entries[i]
			n.entries = slices.Delete(n.entries, i, i+1)
			m.saveNode(n)
			return e, true, nil
		}

		if found {
			left, err := m.loadNode(n.children[i])
			if err != nil {
				return entry[K]{}, false, err
			}
			if len(left.entries) > minKeys {
				pred, err := m.removeEdge(left, true)
				if err != nil {
					return entry[K]{}, false, err
				}
				e := n.entries[i]
				n.entries[i] = pred
				m.saveNode(n)
				return e, true, nil
			}

			right, err := m.loadNode(n.children[i+1])
			if err != nil {
				return entry[K]{}, false, err
			}
			if len(right.entries) > minKeys {
				succ, err := m.removeEdge(right, false)
				if err != nil {
					return entry[K]{}, false, err
				}
				e := n.entries[i]
				n.entries[i] = succ
				m.saveNode(n)
				return e, true, nil
			}

			// both neighbours are minimal: pull the key down into the merged node
			m.merge(n, i, left, right)
			n = left
			continue
		}

		child, err := m.loadNode(n.children[i])
		if err != nil {
			return entry[K]{}, false, err
		}
		if len(child.entries) <= minKeys {
			if child, err = m.fill(n, i, child); err != nil {
				return entry[K]{}, false, err
			}
		}
		n = child
	}
}

// removeEdge removes the largest (last) or smallest entry of the subtree of n.
// n must hold more than the minimum number of keys.
func (m *Map[K, V]) removeEdge(n *node[K], last bool) (entry[K], error) {
	minKeys := m.hdr.minKeys()
	for !n.leaf {
		i := 0
		if last {
			i = len(n.children) - 1
		}
		child, err := m.loadNode(n.children[i])
		if err != nil {
			return entry[K]{}, err
		}
		if len(child.entries) <= minKeys {
			if child, err = m.fill(n, i, child); err != nil {
				return entry[K]{}, err
			}
		}
		n = child
	}

	var e entry[K]
	if last {
		e = n.entries[len(n.entries)-1]
		n.entries = n.entries[:len(n.entries)-1]
	} else {
		e = n.entries[0]
		n.entries = slices.Delete(n.entries, 0, 1)
	}
	m.saveNode(n)
	return e, nil
}

// fill gives the minimal child at index i of parent an additional key, borrowing from
// a sibling when one can spare a key and merging with one otherwise.
// It returns the node that now covers the key range of the child.
func (m *Map[K, V]) fill(parent *node[K], i int, child *node[K]) (*node[K], error) {
	minKeys := m.hdr.minKeys()

	var left, right *node[K]
	var err error
	if i > 0 {
		if left, err = m.loadNode(parent.children[i-1]); err != nil {
			return nil, err
		}
		if len(left.entries) > minKeys {
			m.rotateRight(parent, i, left, child)
			return child, nil
		}
	}
	if i < len(parent.entries) {
		if right, err = m.loadNode(parent.children[i+1]); err != nil {
			return nil, err
		}
		if len(right.entries) > minKeys {
			m.rotateLeft(parent, i, child, right)
			return child, nil
		}
		m.merge(parent, i, child, right)
		return child, nil
	}

	m.merge(parent, i-1, left, child)
	return left, nil
}

// rotateRight moves the separator at i-1 down into child and the last key of left up.
func (m *Map[K, V]) rotateRight(parent *node[K], i int, left, child *node[K]) {
	last := len(left.entries) - 1
	child.entries = slices.Insert(child.entries, 0, parent.entries[i-1])
	parent.entries[i-1] = left.entries[last]
	left.entries = left.entries[:last]
	if !child.leaf {
		child.children = slices.Insert(child.children, 0, left.children[last+1])
		left.children = left.children[:last+1]
	}
	m.saveNode(left)
	m.saveNode(child)
	m.saveNode(parent)
}

// rotateLeft moves the separator at i down into child and the first key of right up.
func (m *Map[K, V]) rotateLeft(parent *node[K], i int, child, right *node[K]) {
	child.entries = append(child.entries, parent.entries[i])
	parent.entries[i] = right.entries[0]
	right.entries = slices.Delete(right.entries, 0, 1)
	if !child.leaf {
		child.children = append(child.children, right.children[0])
		right.children = slices.Delete(right.children, 0, 1)
	}
	m.saveNode(right)
	m.saveNode(child)
	m.saveNode(parent)
}

// merge joins the children i and i+1 of parent together with the separator at i
// into left and frees right.
func (m *Map[K, V]) merge(parent *node[K], i int, left, right *node[K]) {
	left.entries = append(left.entries, parent.entries[i])
	left.entries = append(left.entries, right.entries...)
	if !left.leaf {
		left.children = append(left.children, right.children...)
	}
	parent.entries = slices.Delete(parent.entries, i, i+1)
	parent.children = slices.Delete(parent.children, i+1, i+2)

	m.saveNode(left)
	m.saveNode(parent)
	m.freeChunk(right.addr)
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

// Stats walks the whole map and the free list.
func (m *Map[K, V]) Stats() (Stats, error) {
	s := Stats{
		Length:       m.hdr.length,
		Capacity:     m.hdr.capacity,
		ChunkSize:    m.hdr.chunkSize,
		InlineValues: m.hdr.inline(),
		BytesUsed:    m.hdr.nextChunk,
	}

	if m.hdr.root != nullAddr {
		if err := m.walk(m.hdr.root, 1, &s); err != nil {
			return s, err
		}
	}

	for addr := m.hdr.freeHead; addr != nullAddr; {
		if !m.hdr.validAddr(addr) || s.FreeChunks >= m.hdr.chunkCount {
			return s, fmt.Errorf("%w: broken free list at %d", codec.ErrCorruptRecord, addr)
		}
		s.FreeChunks++
		var next [8]byte
		m.mem.Read(addr, next[:])
		addr = binary.LittleEndian.Uint64(next[:])
	}
	return s, nil
}

func (m *Map[K, V]) walk(addr uint64, depth int, s *Stats) error {
	n, err := m.loadNode(addr)
	if err != nil {
		return err
	}
	s.Nodes++
	s.Depth = max(s.Depth, depth)
	if !m.hdr.inline() {
		payload := m.hdr.overflowPayload()
		for _, e := range n.entries {
			s.OverflowChunks += (uint64(e.val.length) + payload - 1) / payload
		}
	}
	for _, child := range n.children {
		if err := m.walk(child, depth+1, s); err != nil {
			return err
		}
	}
	return nil
}
