// Package stable implements the durable db.KVDB engine.
//
// The entries live in a btree.Map with 16 byte big endian keys and unbounded values,
// which the map keeps in overflow chunks. The map is stored in a memory.Memory, usually
// the map memory of a memmgr.MemoryManager on top of a file, so the content survives a
// restart of the process: NewStableDB on the same memory attaches to the existing tree.
//
// All operations are serialized by one mutex. Scan and Save hold it for their whole
// duration and therefore see a consistent state.
//
// Usage:
//
//	mem := memory.NewVectorMemory()
//	database, err := stable.NewStableDB(mem, nil)
//	if err != nil { ... }
//	database.Insert(uint128.From64(1), []byte("value"))
package stable
