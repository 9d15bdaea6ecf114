package memmgr

import (
	"encoding/binary"
	"fmt"

	"github.com/pramitgaha/map-error/lib/stable/memory"
)

// RegionAllocator hands out buckets (runs of contiguous physical pages) to virtual
// memories and translates virtual offsets to physical ones.
// Allocation is append-only: a bucket, once assigned, belongs to its memory forever.
// Every change is written through to the header in physical memory.
//
// Thread-safety: RegionAllocator is not safe for concurrent use.
type RegionAllocator struct {
	mem         memory.Memory
	bucketSize  uint64                // pages per bucket
	numBuckets  uint64                // allocated buckets
	memorySizes [MaxMemories]uint64   // size of every memory in pages
	buckets     [MaxMemories][]uint16 // logical bucket index -> physical bucket index
}

// newAllocator writes a fresh header to mem and returns an allocator for it.
func newAllocator(mem memory.Memory, bucketSize uint16) (*RegionAllocator, error) {
	if bucketSize == 0 {
		return nil, ErrInvalidBucketSize
	}

	if mem.Size() < headerPages {
		if _, err := mem.Grow(headerPages - mem.Size()); err != nil {
			return nil, fmt.Errorf("memmgr: grow for header: %w", err)
		}
	}

	header := make([]byte, headerBytes)
	copy(header[offMagic:], headerMagic)
	header[offVersion] = layoutVersion
	binary.LittleEndian.PutUint16(header[offNumBuckets:], 0)
	binary.LittleEndian.PutUint16(header[offBucketSize:], bucketSize)
	for i := offBucketTable; i < headerBytes; i++ {
		header[i] = unallocatedBucket
	}
	mem.Write(0, header)

	return &RegionAllocator{
		mem:        mem,
		bucketSize: uint64(bucketSize),
	}, nil
}

// loadAllocator reads the header from mem and rebuilds the bucket mapping.
func loadAllocator(mem memory.Memory) (*RegionAllocator, error) {
	header := make([]byte, headerBytes)
	mem.Read(0, header)

	if string(header[offMagic:offMagic+len(headerMagic)]) != headerMagic {
		return nil, ErrBadMagic
	}
	if header[offVersion] != layoutVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header[offVersion])
	}

	a := &RegionAllocator{
		mem:        mem,
		numBuckets: uint64(binary.LittleEndian.Uint16(header[offNumBuckets:])),
		bucketSize: uint64(binary.LittleEndian.Uint16(header[offBucketSize:])),
	}
	if a.bucketSize == 0 {
		return nil, ErrInvalidBucketSize
	}

	for id := 0; id < MaxMemories; id++ {
		a.memorySizes[id] = binary.LittleEndian.Uint64(header[offMemorySizes+id*8:])
	}

	// buckets are allocated in increasing physical order, so the table order is the logical order
	for b := uint64(0); b < a.numBuckets; b++ {
		owner := header[offBucketTable+b]
		if owner == unallocatedBucket {
			return nil, fmt.Errorf("memmgr: bucket %d below the allocation mark is unowned", b)
		}
		a.buckets[owner] = append(a.buckets[owner], uint16(b))
	}

	for id := 0; id < MaxMemories; id++ {
		if a.memorySizes[id] > uint64(len(a.buckets[id]))*a.bucketSize {
			return nil, fmt.Errorf("memmgr: memory %d claims %d pages but owns only %d buckets", id, a.memorySizes[id], len(a.buckets[id]))
		}
	}

	return a, nil
}

// --------------------------------------------------------------------------
// Allocation
// --------------------------------------------------------------------------

// Grow adds pages to the memory id and returns its previous size in pages.
// New buckets are only allocated when the existing ones are exhausted.
func (a *RegionAllocator) Grow(id MemoryID, pages uint64) (uint64, error) {
	prev := a.memorySizes[id]
	newSize := prev + pages

	owned := uint64(len(a.buckets[id]))
	required := (newSize + a.bucketSize - 1) / a.bucketSize

	if required > owned {
		needed := required - owned
		if a.numBuckets+needed > MaxBuckets {
			return prev, fmt.Errorf("%w: %d buckets requested, %d of %d in use", memory.ErrGrowFailed, needed, a.numBuckets, MaxBuckets)
		}

		// make sure the physical memory covers the new buckets
		physPages := headerPages + (a.numBuckets+needed)*a.bucketSize
		if size := a.mem.Size(); size < physPages {
			if _, err := a.mem.Grow(physPages - size); err != nil {
				return prev, fmt.Errorf("%w: physical memory: %v", memory.ErrGrowFailed, err)
			}
		}

		for i := uint64(0); i < needed; i++ {
			bucket := a.numBuckets
			a.mem.Write(offBucketTable+bucket, []byte{byte(id)})
			a.buckets[id] = append(a.buckets[id], uint16(bucket))
			a.numBuckets++
		}

		var count [2]byte
		binary.LittleEndian.PutUint16(count[:], uint16(a.numBuckets))
		a.mem.Write(offNumBuckets, count[:])
	}

	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], newSize)
	a.mem.Write(offMemorySizes+uint64(id)*8, size[:])
	a.memorySizes[id] = newSize

	return prev, nil
}

// Size returns the size of the memory id in pages.
func (a *RegionAllocator) Size(id MemoryID) uint64 {
	return a.memorySizes[id]
}

// PhysicalPage translates a page of the memory id to its page in physical memory.
func (a *RegionAllocator) PhysicalPage(id MemoryID, page uint64) uint64 {
	if page >= a.memorySizes[id] {
		panic(fmt.Errorf("%w: page %d of memory %d (size %d pages)", memory.ErrOutOfBounds, page, id, a.memorySizes[id]))
	}
	bucket := a.buckets[id][page/a.bucketSize]
	return headerPages + uint64(bucket)*a.bucketSize + page%a.bucketSize
}

// --------------------------------------------------------------------------
// Access
// --------------------------------------------------------------------------

// read fills dst from the memory id starting at offset, split into one physical
// read per bucket touched.
func (a *RegionAllocator) read(id MemoryID, offset uint64, dst []byte) {
	a.checkBounds(id, offset, len(dst))
	a.forEachSpan(id, offset, len(dst), func(phys uint64, from, to int) {
		a.mem.Read(phys, dst[from:to])
	})
}

// write copies src into the memory id starting at offset, split into one physical
// write per bucket touched.
func (a *RegionAllocator) write(id MemoryID, offset uint64, src []byte) {
	a.checkBounds(id, offset, len(src))
	a.forEachSpan(id, offset, len(src), func(phys uint64, from, to int) {
		a.mem.Write(phys, src[from:to])
	})
}

// forEachSpan calls fn for every physically contiguous piece of [offset, offset+n).
func (a *RegionAllocator) forEachSpan(id MemoryID, offset uint64, n int, fn func(phys uint64, from, to int)) {
	bucketBytes := a.bucketSize * memory.PageSize
	done := 0
	for done < n {
		pos := offset + uint64(done)
		bucket := a.buckets[id][pos/bucketBytes]
		within := pos % bucketBytes

		chunk := int(bucketBytes - within)
		if rest := n - done; chunk > rest {
			chunk = rest
		}

		phys := (headerPages+uint64(bucket)*a.bucketSize)*memory.PageSize + within
		fn(phys, done, done+chunk)
		done += chunk
	}
}

func (a *RegionAllocator) checkBounds(id MemoryID, offset uint64, n int) {
	end := offset + uint64(n)
	if limit := a.memorySizes[id] * memory.PageSize; end < offset || end > limit {
		panic(fmt.Errorf("%w: range [%d, %d) exceeds memory %d of %d bytes", memory.ErrOutOfBounds, offset, end, id, limit))
	}
}
