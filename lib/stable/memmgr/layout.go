package memmgr

import (
	"errors"

	"github.com/pramitgaha/map-error/lib/stable/memory"
)

// --------------------------------------------------------------------------
// Memory IDs
// --------------------------------------------------------------------------

// MemoryID identifies a virtual memory. IDs are a durable contract: assigning an
// existing ID to a different purpose corrupts the data stored under it.
type MemoryID uint8

const (
	// UpgradesMemoryID holds transient process state serialized across restarts.
	UpgradesMemoryID MemoryID = 0
	// MapMemoryID holds the durable ordered map.
	MapMemoryID MemoryID = 1
)

// --------------------------------------------------------------------------
// Header Layout
// --------------------------------------------------------------------------

const (
	// MaxMemories is the number of virtual memories the header has room for.
	MaxMemories = 255
	// MaxBuckets is the number of buckets the bucket table has room for.
	MaxBuckets = 32768
	// DefaultBucketSizeInPages is the bucket size used for new layouts (8 MiB buckets).
	DefaultBucketSizeInPages = 128

	headerMagic   = "MGR"
	layoutVersion = 1

	// marks a bucket table slot that is not owned by any memory
	unallocatedBucket = 0xFF

	offMagic       = 0
	offVersion     = 3
	offNumBuckets  = 4
	offBucketSize  = 6
	offMemorySizes = 40
	offBucketTable = offMemorySizes + MaxMemories*8
	headerBytes    = offBucketTable + MaxBuckets

	// the header occupies page 0, buckets start at page 1
	headerPages = 1
)

// compile time check: the header fits into the reserved pages
var _ = [headerPages*memory.PageSize - headerBytes]struct{}{}

var (
	// ErrUnknownMemoryID is raised (by panic) when an unregistered memory is requested.
	ErrUnknownMemoryID = errors.New("unknown memory id")
	// ErrBadMagic is returned when the physical memory holds something else than a manager header.
	ErrBadMagic = errors.New("physical memory does not start with a memory manager header")
	// ErrUnsupportedVersion is returned for headers written by an unknown layout version.
	ErrUnsupportedVersion = errors.New("unsupported memory manager layout version")
	// ErrInvalidBucketSize is returned for a bucket size of zero.
	ErrInvalidBucketSize = errors.New("bucket size must be at least one page")
)
