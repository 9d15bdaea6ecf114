package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pramitgaha/map-error/lib/db"
	"github.com/pramitgaha/map-error/lib/db/engines/stable"
	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/stable/memmgr"
	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/lib/store/lstore"
	"github.com/pramitgaha/map-error/lib/users"
	"lukechampine.com/uint128"
)

var log = logger.GetLogger("state")

var (
	// ErrClosed is returned by operations on a closed State.
	ErrClosed = errors.New("state is closed")
	// ErrCorruptUpgradeData is returned when the upgrades memory holds an unreadable blob.
	ErrCorruptUpgradeData = errors.New("corrupt upgrade data")
)

// blobLengthSize is the size of the little endian length prefix in front of the
// stats blob in the upgrades memory.
const blobLengthSize = 4

// Options configures Open. Layout options only apply when the memory is empty.
type Options struct {
	BucketSizeInPages uint16 // Pages per memory manager bucket (0 = memmgr.DefaultBucketSizeInPages)
	NodeBytes         uint32 // Target B-tree node size (0 = btree.DefaultNodeBytes)
	MaxRecordSize     uint32 // Largest encoded user (0 = unbounded)
}

// Stats are the transient process statistics carried across an upgrade.
type Stats struct {
	Starts       uint64    `cbor:"1,keyasint" json:"starts"`
	Inserts      uint64    `cbor:"2,keyasint" json:"inserts"`
	Gets         uint64    `cbor:"3,keyasint" json:"gets"`
	Removes      uint64    `cbor:"4,keyasint" json:"removes"`
	LastShutdown time.Time `cbor:"5,keyasint" json:"last_shutdown"`
}

// State is everything the process keeps between on-start and pre-teardown: the memory
// manager, the durable map and the statistics that survive an upgrade.
//
// Thread-safety: all methods are safe for concurrent use.
type State struct {
	mu       sync.Mutex
	closed   bool
	physical memory.Memory
	mgr      *memmgr.MemoryManager
	upgrades *memmgr.VirtualMemory
	db       db.KVDB
	store    *countingStore

	starts       uint64
	lastShutdown time.Time
}

// Open attaches to the state kept in mem, creating it when mem is empty, and restores
// the statistics saved by the last PreTeardown. The State takes ownership of mem.
func Open(mem memory.Memory, opts *Options) (*State, error) {
	if opts == nil {
		opts = &Options{}
	}
	bucketSize := opts.BucketSizeInPages
	if bucketSize == 0 {
		bucketSize = memmgr.DefaultBucketSizeInPages
	}

	mgr, err := memmgr.InitWithBucketSize(mem, bucketSize)
	if err != nil {
		return nil, fmt.Errorf("attach memory manager: %w", err)
	}
	mgr.Register(memmgr.UpgradesMemoryID, memmgr.MapMemoryID)

	database, err := stable.NewStableDB(mgr.Get(memmgr.MapMemoryID), &stable.DBOptions{NodeBytes: opts.NodeBytes})
	if err != nil {
		return nil, fmt.Errorf("attach map: %w", err)
	}

	s := &State{
		physical: mem,
		mgr:      mgr,
		upgrades: mgr.Get(memmgr.UpgradesMemoryID),
		db:       database,
	}
	s.store = &countingStore{
		IStore: lstore.NewLocalStore(func() db.KVDB { return database }, &lstore.Options{MaxRecordSize: opts.MaxRecordSize}),
	}

	if err := s.PostRestart(); err != nil {
		return nil, err
	}
	return s, nil
}

// Store returns the user map.
func (s *State) Store() store.IStore {
	return s.store
}

// DB returns the engine under the user map, for snapshots.
func (s *State) DB() db.KVDB {
	return s.db
}

// MemoryStats returns the allocation state of the memory manager.
func (s *State) MemoryStats() memmgr.Stats {
	return s.mgr.Stats()
}

// Stats returns the statistics of this and all previous runs.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Starts:       s.starts,
		Inserts:      s.store.inserts.Load(),
		Gets:         s.store.gets.Load(),
		Removes:      s.store.removes.Load(),
		LastShutdown: s.lastShutdown,
	}
}

// --------------------------------------------------------------------------
// Upgrade hooks
// --------------------------------------------------------------------------

// PreTeardown writes the statistics into the upgrades memory. It must run before the
// process stops. The map itself needs no saving, it already lives in stable memory.
func (s *State) PreTeardown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.lastShutdown = time.Now()
	s.mu.Unlock()

	stats := s.Stats()
	blob, err := codec.MarshalCBOR(stats)
	if err != nil {
		return fmt.Errorf("encode upgrade data: %w", err)
	}

	buf := make([]byte, blobLengthSize+len(blob))
	binary.LittleEndian.PutUint32(buf, uint32(len(blob)))
	copy(buf[blobLengthSize:], blob)
	s.upgrades.Write(0, buf)

	log.Infof("saved upgrade data: %d starts, %d inserts, %d gets, %d removes",
		stats.Starts, stats.Inserts, stats.Gets, stats.Removes)
	return nil
}

// PostRestart restores the statistics written by the last PreTeardown and counts
// this start. An empty upgrades memory means a first start.
func (s *State) PostRestart() error {
	stats, found, err := s.readUpgradeData()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.inserts.Store(stats.Inserts)
	s.store.gets.Store(stats.Gets)
	s.store.removes.Store(stats.Removes)
	s.starts = stats.Starts + 1
	s.lastShutdown = stats.LastShutdown

	if found {
		log.Infof("restored upgrade data, start %d, %d users in map, last shutdown %s",
			s.starts, s.db.Len(), stats.LastShutdown.Format(time.RFC3339))
	} else {
		log.Infof("first start, %d users in map", s.db.Len())
	}
	return nil
}

func (s *State) readUpgradeData() (Stats, bool, error) {
	size := s.upgrades.SizeBytes()
	if size < blobLengthSize {
		return Stats{}, false, nil
	}

	var prefix [blobLengthSize]byte
	s.upgrades.Read(0, prefix[:])
	n := uint64(binary.LittleEndian.Uint32(prefix[:]))
	if n == 0 {
		return Stats{}, false, nil
	}
	if n > size-blobLengthSize {
		return Stats{}, false, fmt.Errorf("%w: blob of %d bytes in %d bytes of memory", ErrCorruptUpgradeData, n, size)
	}

	blob := make([]byte, n)
	s.upgrades.Read(blobLengthSize, blob)
	var stats Stats
	if err := codec.UnmarshalCBOR(blob, &stats); err != nil {
		return Stats{}, false, fmt.Errorf("%w: %v", ErrCorruptUpgradeData, err)
	}
	return stats, true, nil
}

// Close flushes the map and closes the physical memory if it can be closed.
// PreTeardown is not implied.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.db.Close()
	if closer, ok := s.physical.(io.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}

// --------------------------------------------------------------------------
// Counting store
// --------------------------------------------------------------------------

// countingStore counts the operations that end up in Stats.
type countingStore struct {
	store.IStore
	inserts atomic.Uint64
	gets    atomic.Uint64
	removes atomic.Uint64
}

func (c *countingStore) Insert(key uint128.Uint128, user users.User) (bool, error) {
	c.inserts.Add(1)
	return c.IStore.Insert(key, user)
}

func (c *countingStore) Get(key uint128.Uint128) (users.User, bool, error) {
	c.gets.Add(1)
	return c.IStore.Get(key)
}

func (c *countingStore) Remove(key uint128.Uint128) (bool, error) {
	c.removes.Add(1)
	return c.IStore.Remove(key)
}
