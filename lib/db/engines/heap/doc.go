// Package heap implements an in-memory db.KVDB for ephemeral data.
//
// Entries are spread over shards, each a concurrent hash map (xsync.MapOf), so all
// point operations are safe for concurrent use without a global lock. Keys are assigned
// to shards by a seeded FNV hash of the key.
//
// The content is lost when the process ends. Scan collects and sorts the matching keys
// before visiting them, so it costs O(n log n) per call; the stable engine is the
// better fit for scan heavy workloads.
//
// Usage:
//
//	database := heap.NewHeapDB(nil)
//	defer database.Close()
//
//	database.Insert(uint128.From64(1), []byte("value"))
//	value, ok, _ := database.Get(uint128.From64(1))
package heap
