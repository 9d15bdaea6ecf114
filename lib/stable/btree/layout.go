package btree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pramitgaha/map-error/lib/stable/codec"
)

var (
	// ErrBadMagic is returned when a memory holds something else than a map.
	ErrBadMagic = errors.New("memory does not start with a map header")
	// ErrUnsupportedVersion is returned for headers written by an unknown layout version.
	ErrUnsupportedVersion = errors.New("unsupported map layout version")
	// ErrIncompatibleLayout is returned when the codecs do not match the stored layout.
	ErrIncompatibleLayout = errors.New("codec bounds do not match the stored map layout")
	// ErrNoLayout is returned by Load for a memory without a map.
	ErrNoLayout = errors.New("memory holds no map")
)

const (
	// MaxInlineValueSize is the largest value bound that is stored inside the nodes.
	// Larger or unbounded values live in overflow chunks.
	MaxInlineValueSize = 1024
	// DefaultNodeBytes is the target size of a node.
	DefaultNodeBytes = 4096

	minCapacity = 3

	magic         = "BTR"
	layoutVersion = 1

	flagInline    = 1
	flagUnbounded = 2

	headerSize     = 64
	nodeHeaderSize = 8
	overflowHeader = 16

	// address 0 is the header, so it never names a chunk
	nullAddr uint64 = 0
)

// Options configures the layout of a new map. They are ignored when re-attaching.
type Options struct {
	// NodeBytes is the target chunk size. The capacity is derived from it, at least 3
	// keys always fit. Defaults to DefaultNodeBytes.
	NodeBytes uint32
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// header is the durable description of a map, stored at offset 0:
//
//	0   magic "BTR"
//	3   version
//	4   max key size      u32
//	8   max value size    u32
//	12  flags             u8
//	16  node capacity     u32
//	20  chunk size        u32
//	24  root address      u64
//	32  length            u64
//	40  free list head    u64
//	48  next chunk        u64
//	56  chunk count       u64
type header struct {
	maxKey     uint32
	maxValue   uint32
	flags      uint8
	capacity   uint32
	chunkSize  uint32
	root       uint64
	length     uint64
	freeHead   uint64
	nextChunk  uint64
	chunkCount uint64
}

func (h *header) encode() []byte {
	b := make([]byte, headerSize)
	copy(b, magic)
	b[3] = layoutVersion
	binary.LittleEndian.PutUint32(b[4:], h.maxKey)
	binary.LittleEndian.PutUint32(b[8:], h.maxValue)
	b[12] = h.flags
	binary.LittleEndian.PutUint32(b[16:], h.capacity)
	binary.LittleEndian.PutUint32(b[20:], h.chunkSize)
	binary.LittleEndian.PutUint64(b[24:], h.root)
	binary.LittleEndian.PutUint64(b[32:], h.length)
	binary.LittleEndian.PutUint64(b[40:], h.freeHead)
	binary.LittleEndian.PutUint64(b[48:], h.nextChunk)
	binary.LittleEndian.PutUint64(b[56:], h.chunkCount)
	return b
}

func decodeHeader(b []byte) (header, error) {
	if string(b[:3]) != magic {
		return header{}, ErrBadMagic
	}
	if b[3] != layoutVersion {
		return header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b[3])
	}
	h := header{
		maxKey:     binary.LittleEndian.Uint32(b[4:]),
		maxValue:   binary.LittleEndian.Uint32(b[8:]),
		flags:      b[12],
		capacity:   binary.LittleEndian.Uint32(b[16:]),
		chunkSize:  binary.LittleEndian.Uint32(b[20:]),
		root:       binary.LittleEndian.Uint64(b[24:]),
		length:     binary.LittleEndian.Uint64(b[32:]),
		freeHead:   binary.LittleEndian.Uint64(b[40:]),
		nextChunk:  binary.LittleEndian.Uint64(b[48:]),
		chunkCount: binary.LittleEndian.Uint64(b[56:]),
	}
	if h.capacity < minCapacity || h.capacity%2 == 0 || h.chunkSize <= overflowHeader || h.nextChunk < headerSize {
		return header{}, fmt.Errorf("%w: implausible header values", codec.ErrCorruptRecord)
	}
	return h, nil
}

// --------------------------------------------------------------------------
// Geometry
// --------------------------------------------------------------------------

// newHeader derives the layout for the given codec bounds.
func newHeader(kb, vb codec.Bound, opts *Options) header {
	nodeBytes := uint64(DefaultNodeBytes)
	if opts != nil && opts.NodeBytes > 0 {
		nodeBytes = uint64(opts.NodeBytes)
	}

	h := header{
		maxKey:    kb.MaxSize,
		nextChunk: headerSize,
	}
	switch {
	case vb.Unbounded:
		h.flags = flagUnbounded
	case vb.MaxSize <= MaxInlineValueSize:
		h.flags = flagInline
		h.maxValue = vb.MaxSize
	default:
		h.maxValue = vb.MaxSize
	}

	entry := h.entrySize()
	capacity := uint64(0)
	if nodeBytes > 2*nodeHeaderSize {
		capacity = (nodeBytes - 2*nodeHeaderSize) / (entry + 8)
	}
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if capacity%2 == 0 {
		capacity--
	}
	h.capacity = uint32(capacity)
	h.chunkSize = uint32(max(nodeBytes, h.nodeSize()))
	return h
}

func (h *header) inline() bool {
	return h.flags&flagInline != 0
}

// valueSlot is the size of the value part of an entry behind its length prefix.
func (h *header) valueSlot() uint64 {
	if h.inline() {
		return uint64(h.maxValue)
	}
	return 8
}

func (h *header) entrySize() uint64 {
	return 4 + uint64(h.maxKey) + 4 + h.valueSlot()
}

// childrenOffset is the offset of the child addresses inside a node.
func (h *header) childrenOffset() uint64 {
	return nodeHeaderSize + uint64(h.capacity)*h.entrySize()
}

func (h *header) nodeSize() uint64 {
	return h.childrenOffset() + (uint64(h.capacity)+1)*8
}

// minKeys is the least number of keys a non root node holds (B-1).
func (h *header) minKeys() int {
	return int(h.capacity-1) / 2
}

// overflowPayload is the number of value bytes one overflow chunk holds.
func (h *header) overflowPayload() uint64 {
	return uint64(h.chunkSize) - overflowHeader
}

// validAddr reports whether addr names an allocated chunk.
func (h *header) validAddr(addr uint64) bool {
	return addr >= headerSize && addr < h.nextChunk && (addr-headerSize)%uint64(h.chunkSize) == 0
}

// compatible checks the stored layout against the bounds of the codecs in use.
func (h *header) compatible(kb, vb codec.Bound) error {
	want := newHeader(kb, vb, nil)
	if h.maxKey != want.maxKey || h.maxValue != want.maxValue || h.flags != want.flags {
		return fmt.Errorf("%w: stored key/value bounds %d/%d (flags %d), codecs declare %d/%d (flags %d)",
			ErrIncompatibleLayout, h.maxKey, h.maxValue, h.flags, want.maxKey, want.maxValue, want.flags)
	}
	if h.chunkSize < uint32(h.nodeSize()) {
		return fmt.Errorf("%w: chunk size %d cannot hold %d keys", ErrIncompatibleLayout, h.chunkSize, h.capacity)
	}
	return nil
}
