package heap

import (
	"io"
	"runtime"
	"slices"
	"sync"

	"github.com/pramitgaha/map-error/lib/db"
	"github.com/pramitgaha/map-error/lib/db/engines/heap/internal"
	"github.com/pramitgaha/map-error/lib/db/util"
	"lukechampine.com/uint128"
)

// --------------------------------------------------------------------------
// Core Heap database structure
// --------------------------------------------------------------------------

// heapImpl keeps all entries in sharded concurrent hash maps
type heapImpl struct {
	seed   uint64            // Seed for shard selection
	shards []*internal.Shard // Array of shards

	// Load replaces entries in bulk and must not interleave with Save
	persistMu sync.Mutex
}

// DBOptions configures the heapImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = number of CPUs)
}

// DefaultOptions returns the default heapImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewHeapDB creates a new in-memory database with the specified options (optional)
func NewHeapDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}

	shards := make([]*internal.Shard, numShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	return &heapImpl{
		seed:   util.GenerateSeed(),
		shards: shards,
	}
}

func (h *heapImpl) shard(key db.Key) *internal.Shard {
	return internal.GetShard(key, h.seed, h.shards)
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Insert stores a copy of value under key and returns the previous value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *heapImpl) Insert(key db.Key, value []byte) ([]byte, bool, error) {
	old, loaded := h.shard(key).Data.LoadAndStore(key, slices.Clone(nonNil(value)))
	if !loaded {
		return nil, false, nil
	}
	return old, true, nil
}

// Remove deletes key and returns its value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *heapImpl) Remove(key db.Key) ([]byte, bool, error) {
	old, loaded := h.shard(key).Data.LoadAndDelete(key)
	return old, loaded, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a copy of the value for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *heapImpl) Get(key db.Key) ([]byte, bool, error) {
	value, ok := h.shard(key).Data.Load(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

// Has checks if a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *heapImpl) Has(key db.Key) (bool, error) {
	_, ok := h.shard(key).Data.Load(key)
	return ok, nil
}

// Scan visits the entries with a key not less than from in ascending order.
// The keys are collected and sorted first, entries inserted during the scan may or
// may not be visited.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *heapImpl) Scan(from db.Key, fn func(key db.Key, value []byte) bool) error {
	var keys []db.Key
	for _, shard := range h.shards {
		shard.Data.Range(func(key db.Key, _ []byte) bool {
			if key.Cmp(from) >= 0 {
				keys = append(keys, key)
			}
			return true
		})
	}
	slices.SortFunc(keys, uint128.Uint128.Cmp)

	for _, key := range keys {
		value, ok := h.shard(key).Data.Load(key)
		if !ok {
			continue // removed in the meantime
		}
		if !fn(key, slices.Clone(value)) {
			return nil
		}
	}
	return nil
}

// Len returns the number of entries.
func (h *heapImpl) Len() uint64 {
	total := 0
	for _, shard := range h.shards {
		total += shard.Data.Size()
	}
	return uint64(total)
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a fuzzy snapshot of all entries in key order.
//
// Thread-safety: Concurrent reads and writes are allowed during Save.
func (h *heapImpl) Save(w io.Writer) error {
	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	type entryToSave struct {
		key   db.Key
		value []byte
	}
	var entries []entryToSave
	err := h.Scan(uint128.Zero, func(key db.Key, value []byte) bool {
		entries = append(entries, entryToSave{key, value})
		return true
	})
	if err != nil {
		return err
	}

	sw, err := db.NewSnapshotWriter(w, uint64(len(entries)))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := sw.Write(e.key, e.value); err != nil {
			return err
		}
	}
	return sw.Close()
}

// Load merges a snapshot into the database.
func (h *heapImpl) Load(r io.Reader) error {
	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	return db.ReadSnapshot(r, func(key db.Key, value []byte) error {
		h.shard(key).Data.Store(key, value)
		return nil
	})
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (h *heapImpl) GetInfo() db.DatabaseInfo {
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100

	shardSizes := make([]float64, len(h.shards))
	var wg sync.WaitGroup
	wg.Add(len(h.shards))
	for i, shard := range h.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			s.Data.Range(func(_ db.Key, value []byte) bool {
				histogram.AddSample(len(value))
				count++
				return count < samplesPerShard
			})
			shardSizes[i] = float64(s.Data.Size())
		}(i, shard)
	}
	wg.Wait()

	length := h.Len()
	entryOverhead := 16 + 24 // key and slice header
	avgSize := histogram.AverageSize() + entryOverhead

	meta := &struct {
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		MedianValueSize   int                    `json:"median_value_size"`
		Info              string                 `json:"info"`
	}{
		ShardCount:        len(h.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		MedianValueSize:   histogram.MedianEstimate(),
		Info:              "SizeBytes is estimated from a sample of the entries.",
	}

	return db.DatabaseInfo{
		SizeBytes:         avgSize * int(length),
		Length:            length,
		DbType:            db.ImplHeap,
		SupportedFeatures: features,
		Metadata:          meta,
	}
}

var features = []db.Feature{
	db.FeatureInsert, db.FeatureGet, db.FeatureRemove, db.FeatureHas,
	db.FeatureScan, db.FeatureSave, db.FeatureLoad,
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (h *heapImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureInsert |
		db.FeatureGet |
		db.FeatureRemove |
		db.FeatureHas |
		db.FeatureScan |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close drops all entries
func (h *heapImpl) Close() error {
	for _, shard := range h.shards {
		shard.Data.Clear()
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
