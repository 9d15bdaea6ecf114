package memory

import (
	"errors"
	"fmt"
)

// PageSize is the unit in which every Memory grows.
const PageSize uint64 = 64 * 1024

var (
	// ErrOutOfBounds signals an access past the current size of a memory.
	// It is raised by panic since it can only be caused by a bug in the caller.
	ErrOutOfBounds = errors.New("out of bounds memory access")
	// ErrGrowFailed signals that a memory refused to grow.
	ErrGrowFailed = errors.New("memory could not be grown")
)

// Memory is a linear, byte-addressable region that grows in pages of PageSize bytes.
// A Memory never shrinks, and offsets stay valid for the lifetime of the data.
type Memory interface {
	// Size returns the current size of the memory in pages.
	Size() uint64
	// Grow appends the given number of zeroed pages and returns the previous size in pages.
	Grow(pages uint64) (prev uint64, err error)
	// Read fills dst with the bytes starting at offset.
	// It panics with ErrOutOfBounds if the range is not fully inside the memory.
	Read(offset uint64, dst []byte)
	// Write copies src to the memory starting at offset.
	// It panics with ErrOutOfBounds if the range is not fully inside the memory.
	Write(offset uint64, src []byte)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// PagesFor returns the number of pages needed to hold n bytes.
func PagesFor(n uint64) uint64 {
	return (n + PageSize - 1) / PageSize
}

// SafeWrite writes src at offset and grows m by exactly enough pages first if the
// write would end past the current size. A refused grow is fatal and panics.
func SafeWrite(m Memory, offset uint64, src []byte) {
	end := offset + uint64(len(src))
	if size := m.Size(); end > size*PageSize {
		if _, err := m.Grow(PagesFor(end) - size); err != nil {
			panic(fmt.Errorf("%w: write of %d bytes at offset %d: %v", ErrGrowFailed, len(src), offset, err))
		}
	}
	m.Write(offset, src)
}

// checkBounds panics with ErrOutOfBounds if [offset, offset+n) is not inside a memory of the given page count.
func checkBounds(pages, offset uint64, n int) {
	end := offset + uint64(n)
	if end < offset || end > pages*PageSize {
		panic(fmt.Errorf("%w: range [%d, %d) exceeds %d bytes", ErrOutOfBounds, offset, end, pages*PageSize))
	}
}
