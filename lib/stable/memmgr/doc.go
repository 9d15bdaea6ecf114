/*
Package memmgr lets several independent, growable virtual memories share one physical
memory.

The physical memory is split into a header page followed by buckets of
BucketSizeInPages contiguous pages. Every bucket belongs to at most one virtual memory,
and buckets are handed out append-only: once assigned, a bucket is never moved or
reassigned, so an offset of a virtual memory stays at the same physical place for
the lifetime of the data.

Header (page 0, little endian):

	0     magic "MGR"
	3     layout version (1)
	4     allocated bucket count (u16)
	6     bucket size in pages (u16)
	8     reserved (32 bytes)
	40    size of every memory in pages ([255]u64)
	2080  bucket table ([32768]u8, owner memory id or 0xFF)

Usage:

	mgr, err := memmgr.Init(mem)
	if err != nil { ... }
	mgr.Register(memmgr.UpgradesMemoryID, memmgr.MapMemoryID)
	m := mgr.Get(memmgr.MapMemoryID)

Memory ids are a durable contract. Re-attaching a manager to the same physical memory
restores every virtual memory with its contents.
*/
package memmgr
