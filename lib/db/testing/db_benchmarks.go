package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/pramitgaha/map-error/lib/db"
	"lukechampine.com/uint128"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, factory())
	})

	b.Run("InsertExisting", func(b *testing.B) {
		benchmarkInsertExisting(b, factory())
	})

	b.Run("InsertLargeValue", func(b *testing.B) {
		benchmarkInsertLargeValue(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Remove", func(b *testing.B) {
		benchmarkRemove(b, factory())
	})

	b.Run("Has(not)", func(b *testing.B) {
		benchmarkHasNot(b, factory())
	})

	b.Run("Scan", func(b *testing.B) {
		benchmarkScan(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// benchKey hands out distinct keys to parallel benchmark goroutines
var benchKey atomic.Uint64

// Benchmark for Insert operation
func benchmarkInsert(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			k := benchKey.Add(1)
			value := []byte(fmt.Sprintf("test-value-%d", k))
			database.Insert(uint128.From64(k), value)
		}
	})
}

// Benchmark for Insert operation with existing keys
func benchmarkInsertExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	// Prepare data
	numKeys := max(b.N, 1)
	for i := 0; i < numKeys; i++ {
		database.Insert(key(uint64(i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Insert(key(uint64(counter%numKeys)), value)
			counter++
		}
	})
}

// Benchmark for Insert operation with large values
func benchmarkInsertLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	largeValue := make([]byte, 64*1024) // 64KB
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := uint64(0)
		for pb.Next() {
			// every goroutine overwrites a small set of keys to bound the memory
			database.Insert(key(counter%64), largeValue)
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureGet)

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		database.Insert(key(uint64(i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			database.Get(key(uint64(r.Intn(numKeys))))
		}
	})
}

// Benchmark for Remove operation
func benchmarkRemove(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureRemove)

	for i := 0; i < b.N; i++ {
		database.Insert(key(uint64(i)), []byte("value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Remove(key(uint64(i)))
	}
}

// Benchmark for Has operation on missing keys
func benchmarkHasNot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureHas)

	for i := 0; i < 1000; i++ {
		database.Insert(key(uint64(i)*2), []byte("value"))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := uint64(0)
		for pb.Next() {
			database.Has(key(counter*2 + 1))
			counter++
		}
	})
}

// Benchmark for ordered scans of 100 entries
func benchmarkScan(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureScan)

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		database.Insert(key(uint64(i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		visited := 0
		database.Scan(key(uint64(i%numKeys)), func(db.Key, []byte) bool {
			visited++
			return visited < 100
		})
	}
}

// Benchmark for Save and Load operations
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory()

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureSave|db.FeatureLoad)

	// Create a database with some data
	numEntries := 10000
	for i := 0; i < numEntries; i++ {
		database.Insert(key(uint64(i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			database.Save(&buf)
		}
	})

	// Prepare a data buffer for Load benchmark
	var loadBuf bytes.Buffer
	database.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadDB := factory()
			loadDB.Load(bytes.NewReader(data))
			loadDB.Close()
		}
	})
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureGet|db.FeatureRemove|db.FeatureHas)

	// Number of pre-populated keys
	numKeys := min(max(b.N, 1), 100000)
	for i := 0; i < numKeys; i++ {
		database.Insert(key(uint64(i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	// Counter for atomic access
	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		// Local counter for each goroutine
		localCounter := 0

		for pb.Next() {
			idx := uint64(atomic.AddInt64(&counter, 1)-1) % uint64(numKeys)

			// For every 10th operation, use a completely new key
			k := key(idx)
			if localCounter%10 == 0 {
				k = uint128.New(uint64(localCounter), 1)
			}

			switch localCounter % 4 {
			case 0:
				database.Get(k)
			case 1:
				database.Insert(k, []byte(fmt.Sprintf("mixed-value-%d", localCounter)))
			case 2:
				database.Remove(k)
			case 3:
				database.Has(k)
			}

			localCounter++
		}
	})
}
