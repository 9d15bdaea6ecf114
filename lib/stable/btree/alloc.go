package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/stable/memory"
)

// --------------------------------------------------------------------------
// Chunks
// --------------------------------------------------------------------------

// Nodes and overflow chunks share one chunk size and one free list. A free chunk
// stores the address of the next free chunk in its first 8 bytes.

func (m *Map[K, V]) saveHeader() {
	memory.SafeWrite(m.mem, 0, m.hdr.encode())
}

// allocChunk pops a chunk off the free list or appends a new one.
// The header is written before the chunk is handed out.
func (m *Map[K, V]) allocChunk() uint64 {
	if addr := m.hdr.freeHead; addr != nullAddr {
		var next [8]byte
		m.mem.Read(addr, next[:])
		m.hdr.freeHead = binary.LittleEndian.Uint64(next[:])
		m.saveHeader()
		return addr
	}

	addr := m.hdr.nextChunk
	end := addr + uint64(m.hdr.chunkSize)
	if size := m.mem.Size(); end > size*memory.PageSize {
		if _, err := m.mem.Grow(memory.PagesFor(end) - size); err != nil {
			panic(fmt.Errorf("%w: allocating chunk at %d: %v", memory.ErrGrowFailed, addr, err))
		}
	}
	m.hdr.nextChunk = end
	m.hdr.chunkCount++
	m.saveHeader()
	return addr
}

// freeChunk pushes addr onto the free list.
func (m *Map[K, V]) freeChunk(addr uint64) {
	var next [8]byte
	binary.LittleEndian.PutUint64(next[:], m.hdr.freeHead)
	m.mem.Write(addr, next[:])
	m.hdr.freeHead = addr
	m.saveHeader()
}

// --------------------------------------------------------------------------
// Values
// --------------------------------------------------------------------------

// Overflow chunk:
//
//	0   next chunk address u64 (0 = end of chain)
//	8   used bytes         u32
//	12  padding            u32
//	16  data

// storeValue turns encoded value bytes into the reference kept in the entry.
// Overflow values are written to a fresh chain.
func (m *Map[K, V]) storeValue(b []byte) valueRef {
	ref := valueRef{length: uint32(len(b))}
	if m.hdr.inline() {
		ref.inline = b
		return ref
	}
	if len(b) == 0 {
		return ref
	}

	payload := m.hdr.overflowPayload()
	count := (uint64(len(b)) + payload - 1) / payload
	chain := make([]uint64, count)
	for i := range chain {
		chain[i] = m.allocChunk()
	}

	for i, addr := range chain {
		from := uint64(i) * payload
		to := min(from+payload, uint64(len(b)))

		buf := make([]byte, overflowHeader+to-from)
		if i+1 < len(chain) {
			binary.LittleEndian.PutUint64(buf[0:], chain[i+1])
		}
		binary.LittleEndian.PutUint32(buf[8:], uint32(to-from))
		copy(buf[overflowHeader:], b[from:to])
		m.mem.Write(addr, buf)
	}

	ref.addr = chain[0]
	return ref
}

// loadValue returns the encoded bytes of a value.
func (m *Map[K, V]) loadValue(ref valueRef) ([]byte, error) {
	if m.hdr.inline() {
		return ref.inline, nil
	}

	out := make([]byte, 0, ref.length)
	err := m.walkChain(ref, func(addr uint64, used uint32) {
		start := len(out)
		out = out[:start+int(used)]
		m.mem.Read(addr+overflowHeader, out[start:])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// freeValue returns the chain of an overflow value to the free list.
// Chunks of a broken chain that cannot be reached are leaked.
func (m *Map[K, V]) freeValue(ref valueRef) error {
	if m.hdr.inline() || ref.addr == nullAddr {
		return nil
	}
	var chain []uint64
	err := m.walkChain(ref, func(addr uint64, _ uint32) {
		chain = append(chain, addr)
	})
	for _, addr := range chain {
		m.freeChunk(addr)
	}
	return err
}

// walkChain calls fn for every chunk of the chain of ref after validating it.
// The chain must hold exactly ref.length bytes.
func (m *Map[K, V]) walkChain(ref valueRef, fn func(addr uint64, used uint32)) error {
	if ref.length == 0 {
		if ref.addr != nullAddr {
			return fmt.Errorf("%w: empty value with overflow chain at %d", codec.ErrCorruptRecord, ref.addr)
		}
		return nil
	}

	payload := m.hdr.overflowPayload()
	total := uint64(0)
	steps := uint64(0)
	var head [overflowHeader]byte
	for addr := ref.addr; addr != nullAddr; {
		if !m.hdr.validAddr(addr) || steps >= m.hdr.chunkCount {
			return fmt.Errorf("%w: broken overflow chain at %d", codec.ErrCorruptRecord, addr)
		}
		m.mem.Read(addr, head[:])
		next := binary.LittleEndian.Uint64(head[0:])
		used := binary.LittleEndian.Uint32(head[8:])
		if uint64(used) > payload || total+uint64(used) > uint64(ref.length) {
			return fmt.Errorf("%w: overflow chunk %d claims %d bytes", codec.ErrCorruptRecord, addr, used)
		}

		fn(addr, used)
		total += uint64(used)
		steps++
		addr = next
	}

	if total != uint64(ref.length) {
		return fmt.Errorf("%w: overflow chain holds %d of %d bytes", codec.ErrCorruptRecord, total, ref.length)
	}
	return nil
}
