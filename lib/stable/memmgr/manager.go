package memmgr

import (
	"fmt"
	"sync"

	"github.com/pramitgaha/map-error/lib/stable/memory"
)

// --------------------------------------------------------------------------
// Memory Manager
// --------------------------------------------------------------------------

// MemoryManager multiplexes up to MaxMemories independent virtual memories onto one
// physical memory. Only registered ids can be handed out.
type MemoryManager struct {
	mu         sync.Mutex
	alloc      *RegionAllocator
	registered [MaxMemories]bool
	memories   [MaxMemories]*VirtualMemory
}

// Stats describes the allocation state of a manager.
type Stats struct {
	BucketSizeInPages uint64
	AllocatedBuckets  uint64
	PhysicalPages     uint64
	MemoryPages       map[MemoryID]uint64
}

// Init attaches a manager to mem using the default bucket size for new layouts.
func Init(mem memory.Memory) (*MemoryManager, error) {
	return InitWithBucketSize(mem, DefaultBucketSizeInPages)
}

// InitWithBucketSize creates a fresh header on an empty (or all zero) memory, or
// re-attaches to the existing one. When re-attaching, the stored bucket size wins over
// bucketSizeInPages.
func InitWithBucketSize(mem memory.Memory, bucketSizeInPages uint16) (*MemoryManager, error) {
	var (
		alloc *RegionAllocator
		err   error
	)
	if isBlank(mem) {
		alloc, err = newAllocator(mem, bucketSizeInPages)
	} else {
		alloc, err = loadAllocator(mem)
	}
	if err != nil {
		return nil, err
	}
	return &MemoryManager{alloc: alloc}, nil
}

// isBlank reports whether mem carries no header yet.
func isBlank(mem memory.Memory) bool {
	if mem.Size() == 0 {
		return true
	}
	magic := make([]byte, len(headerMagic)+1)
	mem.Read(0, magic)
	for _, b := range magic {
		if b != 0 {
			return false
		}
	}
	return true
}

// Register allows the given ids to be handed out by Get.
func (m *MemoryManager) Register(ids ...MemoryID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if id >= MaxMemories {
			panic(fmt.Errorf("%w: %d (max %d)", ErrUnknownMemoryID, id, MaxMemories-1))
		}
		m.registered[id] = true
	}
}

// Get returns the virtual memory with the given id.
// It panics with ErrUnknownMemoryID if id was never registered.
func (m *MemoryManager) Get(id MemoryID) *VirtualMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id >= MaxMemories || !m.registered[id] {
		panic(fmt.Errorf("%w: %d", ErrUnknownMemoryID, id))
	}
	if m.memories[id] == nil {
		m.memories[id] = &VirtualMemory{id: id, mgr: m}
	}
	return m.memories[id]
}

// Stats returns a snapshot of the allocation state.
func (m *MemoryManager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		BucketSizeInPages: m.alloc.bucketSize,
		AllocatedBuckets:  m.alloc.numBuckets,
		PhysicalPages:     m.alloc.mem.Size(),
		MemoryPages:       make(map[MemoryID]uint64),
	}
	for id := 0; id < MaxMemories; id++ {
		if m.registered[id] || m.alloc.memorySizes[id] > 0 {
			s.MemoryPages[MemoryID(id)] = m.alloc.memorySizes[id]
		}
	}
	return s
}

// --------------------------------------------------------------------------
// Virtual Memory
// --------------------------------------------------------------------------

// VirtualMemory is one of the memories of a MemoryManager. It implements memory.Memory.
// Unlike a physical memory, Write grows the memory by exactly enough pages when it
// would end past the current size.
type VirtualMemory struct {
	id  MemoryID
	mgr *MemoryManager
}

var _ memory.Memory = (*VirtualMemory)(nil)

// ID returns the id of the memory.
func (v *VirtualMemory) ID() MemoryID {
	return v.id
}

func (v *VirtualMemory) Size() uint64 {
	v.mgr.mu.Lock()
	defer v.mgr.mu.Unlock()
	return v.mgr.alloc.Size(v.id)
}

// SizeBytes returns the size of the memory in bytes.
func (v *VirtualMemory) SizeBytes() uint64 {
	return v.Size() * memory.PageSize
}

func (v *VirtualMemory) Grow(pages uint64) (uint64, error) {
	v.mgr.mu.Lock()
	defer v.mgr.mu.Unlock()
	return v.mgr.alloc.Grow(v.id, pages)
}

func (v *VirtualMemory) Read(offset uint64, dst []byte) {
	if len(dst) == 0 {
		return
	}
	v.mgr.mu.Lock()
	defer v.mgr.mu.Unlock()
	v.mgr.alloc.read(v.id, offset, dst)
}

func (v *VirtualMemory) Write(offset uint64, src []byte) {
	if len(src) == 0 {
		return
	}
	v.mgr.mu.Lock()
	defer v.mgr.mu.Unlock()

	end := offset + uint64(len(src))
	if size := v.mgr.alloc.Size(v.id); end > size*memory.PageSize {
		if _, err := v.mgr.alloc.Grow(v.id, memory.PagesFor(end)-size); err != nil {
			panic(fmt.Errorf("memory %d: write of %d bytes at offset %d: %w", v.id, len(src), offset, err))
		}
	}
	v.mgr.alloc.write(v.id, offset, src)
}
