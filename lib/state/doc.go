// Package state ties the pieces of the process together and implements its lifecycle.
//
// Open is the on-start hook: it attaches a memmgr.MemoryManager to the physical memory,
// registers the upgrades memory (id 0) and the map memory (id 1), re-attaches the durable
// B-tree engine on memory 1 and then runs PostRestart.
//
// PreTeardown is the hook that runs before the process stops. The map needs no work
// there, it already lives in stable memory. What PreTeardown saves is the transient
// process data, the operation counters in Stats, as a length-prefixed CBOR blob at
// offset 0 of the upgrades memory. PostRestart reads it back on the next start.
//
// Memory 0 layout:
//
//	0  length of the blob, u32 little endian (0 = nothing saved)
//	4  CBOR encoded Stats
package state
