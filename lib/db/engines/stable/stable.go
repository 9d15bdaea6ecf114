package stable

import (
	"io"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pramitgaha/map-error/lib/db"
	"github.com/pramitgaha/map-error/lib/db/util"
	"github.com/pramitgaha/map-error/lib/stable/btree"
	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/stable/memory"
)

var log = logger.GetLogger("engine")

// --------------------------------------------------------------------------
// Core Stable database structure
// --------------------------------------------------------------------------

// stableImpl keeps all entries in a B-tree inside a memory.Memory.
// Every operation holds mu, so the tree only ever sees one caller at a time.
type stableImpl struct {
	mu   sync.Mutex
	mem  memory.Memory
	tree *btree.Map[db.Key, []byte]
}

// DBOptions configures the layout of a new database. They are ignored when the
// memory already holds one.
type DBOptions struct {
	NodeBytes uint32 // Target node size in bytes (0 = btree.DefaultNodeBytes)
}

// NewStableDB attaches to the database stored in mem or creates a new one if mem is empty.
// The database is durable when mem is.
func NewStableDB(mem memory.Memory, opts *DBOptions) (db.KVDB, error) {
	var treeOpts *btree.Options
	if opts != nil {
		treeOpts = &btree.Options{NodeBytes: opts.NodeBytes}
	}

	tree, err := btree.Init[db.Key, []byte](mem, codec.Uint128{}, codec.Bytes{}, treeOpts)
	if err != nil {
		return nil, err
	}
	if tree.IsEmpty() {
		log.Debugf("opened empty map (%d pages)", mem.Size())
	} else {
		log.Infof("attached to map with %d entries", tree.Len())
	}
	return &stableImpl{mem: mem, tree: tree}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Insert stores value under key and returns the previous value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *stableImpl) Insert(key db.Key, value []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Insert(key, value)
}

// Remove deletes key and returns its value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *stableImpl) Remove(key db.Key) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Remove(key)
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the value for key. The value is decoded from memory, so it is
// always a fresh copy.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *stableImpl) Get(key db.Key) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Get(key)
}

// Has checks if a key exists without reading its value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *stableImpl) Has(key db.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.ContainsKey(key)
}

// Scan visits the entries with a key not less than from in ascending order.
// The database is locked for the whole scan, fn must not call back into it.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *stableImpl) Scan(from db.Key, fn func(key db.Key, value []byte) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.tree.IterFrom(from)
	for it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Err()
}

// Len returns the number of entries.
func (s *stableImpl) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a consistent snapshot of all entries in key order.
// Writers are blocked while the snapshot is written.
func (s *stableImpl) Save(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, err := db.NewSnapshotWriter(w, s.tree.Len())
	if err != nil {
		return err
	}
	it := s.tree.Iter()
	for it.Next() {
		if err := sw.Write(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return sw.Close()
}

// Load merges a snapshot into the database. Entries read before an error stay inserted.
func (s *stableImpl) Load(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := db.ReadSnapshot(r, func(key db.Key, value []byte) error {
		_, _, err := s.tree.Insert(key, value)
		if err == nil {
			n++
		}
		return err
	})
	log.Infof("loaded %d entries from snapshot, map holds %d", n, s.tree.Len())
	return err
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (s *stableImpl) GetInfo() db.DatabaseInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, statsErr := s.tree.Stats()

	// sample the value sizes of the smallest keys
	histogram := util.NewSizeHistogram()
	it := s.tree.Iter()
	for samples := 0; samples < 1000 && it.Next(); samples++ {
		histogram.AddSample(len(it.Value()))
	}

	meta := &struct {
		Depth           int    `json:"depth"`
		Nodes           uint64 `json:"nodes"`
		OverflowChunks  uint64 `json:"overflow_chunks"`
		FreeChunks      uint64 `json:"free_chunks"`
		NodeCapacity    uint32 `json:"node_capacity"`
		ChunkSize       uint32 `json:"chunk_size"`
		InlineValues    bool   `json:"inline_values"`
		MemoryPages     uint64 `json:"memory_pages"`
		MedianValueSize int    `json:"median_value_size"`
		Error           string `json:"error,omitempty"`
	}{
		Depth:           stats.Depth,
		Nodes:           stats.Nodes,
		OverflowChunks:  stats.OverflowChunks,
		FreeChunks:      stats.FreeChunks,
		NodeCapacity:    stats.Capacity,
		ChunkSize:       stats.ChunkSize,
		InlineValues:    stats.InlineValues,
		MemoryPages:     s.mem.Size(),
		MedianValueSize: histogram.MedianEstimate(),
	}
	if statsErr != nil {
		meta.Error = statsErr.Error()
	} else if err := it.Err(); err != nil {
		meta.Error = err.Error()
	}

	return db.DatabaseInfo{
		SizeBytes:         int(stats.BytesUsed),
		Length:            stats.Length,
		DbType:            db.ImplStable,
		SupportedFeatures: features,
		Metadata:          meta,
	}
}

var features = []db.Feature{
	db.FeatureInsert, db.FeatureGet, db.FeatureRemove, db.FeatureHas,
	db.FeatureScan, db.FeatureSave, db.FeatureLoad, db.FeatureDurable,
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (s *stableImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureInsert |
		db.FeatureGet |
		db.FeatureRemove |
		db.FeatureHas |
		db.FeatureScan |
		db.FeatureSave |
		db.FeatureLoad |
		db.FeatureDurable
	return supportedFeatures&feature == feature
}

// Close syncs the memory if it supports it. The memory itself stays open, it is
// owned by the caller.
func (s *stableImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if syncer, ok := s.mem.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}
