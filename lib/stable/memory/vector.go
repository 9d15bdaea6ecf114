package memory

import "fmt"

// VectorMemory is a Memory kept in a heap allocated byte slice.
// Its content lives as long as the value, so re-attaching a memory manager or a map
// to the same VectorMemory behaves like a restart against durable memory.
//
// Thread-safety: VectorMemory is not safe for concurrent use.
type VectorMemory struct {
	buf      []byte
	maxPages uint64 // 0 = unlimited
}

// NewVectorMemory creates an empty, unlimited VectorMemory.
func NewVectorMemory() *VectorMemory {
	return &VectorMemory{}
}

// NewBoundedVectorMemory creates an empty VectorMemory that refuses to grow past maxPages.
func NewBoundedVectorMemory(maxPages uint64) *VectorMemory {
	return &VectorMemory{maxPages: maxPages}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see memory.Memory)
// --------------------------------------------------------------------------

func (m *VectorMemory) Size() uint64 {
	return uint64(len(m.buf)) / PageSize
}

func (m *VectorMemory) Grow(pages uint64) (uint64, error) {
	prev := m.Size()
	if m.maxPages > 0 && prev+pages > m.maxPages {
		return prev, fmt.Errorf("%w: %d + %d pages exceeds the limit of %d pages", ErrGrowFailed, prev, pages, m.maxPages)
	}
	m.buf = append(m.buf, make([]byte, pages*PageSize)...)
	return prev, nil
}

func (m *VectorMemory) Read(offset uint64, dst []byte) {
	checkBounds(m.Size(), offset, len(dst))
	copy(dst, m.buf[offset:])
}

func (m *VectorMemory) Write(offset uint64, src []byte) {
	checkBounds(m.Size(), offset, len(src))
	copy(m.buf[offset:], src)
}
