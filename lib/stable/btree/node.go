package btree

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/stable/memory"
)

const (
	kindLeaf     = 0
	kindInternal = 1
)

// valueRef is the value part of an entry. Inline values carry their bytes,
// overflow values the address of the first chunk of their chain.
type valueRef struct {
	length uint32
	inline []byte
	addr   uint64
}

type entry[K any] struct {
	key K
	raw []byte // encoded key
	val valueRef
}

// node is the decoded form of a node chunk.
// An internal node with n entries has n+1 children.
type node[K any] struct {
	addr     uint64
	leaf     bool
	entries  []entry[K]
	children []uint64
}

// --------------------------------------------------------------------------
// Node IO
// --------------------------------------------------------------------------

func (m *Map[K, V]) loadNode(addr uint64) (*node[K], error) {
	if !m.hdr.validAddr(addr) {
		return nil, fmt.Errorf("%w: node address %d outside the allocated chunks", codec.ErrCorruptRecord, addr)
	}

	buf := make([]byte, m.hdr.nodeSize())
	m.mem.Read(addr, buf)

	kind := buf[0]
	count := int(binary.LittleEndian.Uint16(buf[2:]))
	if kind != kindLeaf && kind != kindInternal {
		return nil, fmt.Errorf("%w: node %d has kind %d", codec.ErrCorruptRecord, addr, kind)
	}
	if count > int(m.hdr.capacity) {
		return nil, fmt.Errorf("%w: node %d holds %d keys, capacity is %d", codec.ErrCorruptRecord, addr, count, m.hdr.capacity)
	}

	n := &node[K]{
		addr:    addr,
		leaf:    kind == kindLeaf,
		entries: make([]entry[K], count),
	}

	entrySize := m.hdr.entrySize()
	maxKey := uint64(m.hdr.maxKey)
	for i := range n.entries {
		off := nodeHeaderSize + uint64(i)*entrySize

		keyLen := uint64(binary.LittleEndian.Uint32(buf[off:]))
		if keyLen > maxKey {
			return nil, fmt.Errorf("%w: key of %d bytes in node %d", codec.ErrCorruptRecord, keyLen, addr)
		}
		raw := slices.Clone(buf[off+4 : off+4+keyLen])
		key, err := m.kc.Decode(raw)
		if err != nil {
			return nil, err
		}

		voff := off + 4 + maxKey
		ref := valueRef{length: binary.LittleEndian.Uint32(buf[voff:])}
		if m.hdr.inline() {
			if ref.length > m.hdr.maxValue {
				return nil, fmt.Errorf("%w: inline value of %d bytes in node %d", codec.ErrCorruptRecord, ref.length, addr)
			}
			ref.inline = slices.Clone(buf[voff+4 : voff+4+uint64(ref.length)])
		} else {
			ref.addr = binary.LittleEndian.Uint64(buf[voff+4:])
		}

		n.entries[i] = entry[K]{key: key, raw: raw, val: ref}
	}

	if !n.leaf {
		if count == 0 {
			return nil, fmt.Errorf("%w: internal node %d without keys", codec.ErrCorruptRecord, addr)
		}
		n.children = make([]uint64, count+1)
		base := m.hdr.childrenOffset()
		for i := range n.children {
			child := binary.LittleEndian.Uint64(buf[base+uint64(i)*8:])
			if !m.hdr.validAddr(child) {
				return nil, fmt.Errorf("%w: child address %d in node %d", codec.ErrCorruptRecord, child, addr)
			}
			n.children[i] = child
		}
	}

	return n, nil
}

// saveNode writes n to its chunk with a single write.
func (m *Map[K, V]) saveNode(n *node[K]) {
	buf := make([]byte, m.hdr.nodeSize())
	if !n.leaf {
		buf[0] = kindInternal
	}
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(n.entries)))

	entrySize := m.hdr.entrySize()
	maxKey := uint64(m.hdr.maxKey)
	for i, e := range n.entries {
		off := nodeHeaderSize + uint64(i)*entrySize
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.raw)))
		copy(buf[off+4:], e.raw)

		voff := off + 4 + maxKey
		binary.LittleEndian.PutUint32(buf[voff:], e.val.length)
		if m.hdr.inline() {
			copy(buf[voff+4:], e.val.inline)
		} else {
			binary.LittleEndian.PutUint64(buf[voff+4:], e.val.addr)
		}
	}

	if !n.leaf {
		base := m.hdr.childrenOffset()
		for i, child := range n.children {
			binary.LittleEndian.PutUint64(buf[base+uint64(i)*8:], child)
		}
	}

	memory.SafeWrite(m.mem, n.addr, buf)
}

// newNode allocates a chunk for an empty node.
func (m *Map[K, V]) newNode(leaf bool) *node[K] {
	return &node[K]{addr: m.allocChunk(), leaf: leaf}
}

// --------------------------------------------------------------------------
// Node Helper
// --------------------------------------------------------------------------

// search returns the index of the first entry whose key is not less than key and
// whether that entry holds key itself.
func (m *Map[K, V]) search(n *node[K], key K) (int, bool) {
	lo, hi := 0, len(n.entries)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if m.kc.Compare(n.entries[mid].key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(n.entries) && m.kc.Compare(n.entries[lo].key, key) == 0
}

func (m *Map[K, V]) full(n *node[K]) bool {
	return len(n.entries) >= int(m.hdr.capacity)
}
