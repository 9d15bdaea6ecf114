package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pramitgaha/map-error/lib/db"
	"lukechampine.com/uint128"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadInvalidSnapshot", func(t *testing.T) {
			testLoadInvalidSnapshot(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ManyKeys", func(t *testing.T) {
			testManyKeys(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func key(i uint64) db.Key {
	return uint128.From64(i)
}

func mustInsert(t testing.TB, database db.KVDB, k db.Key, value []byte) {
	t.Helper()
	if _, _, err := database.Insert(k, value); err != nil {
		t.Fatalf("Unexpected error during Insert of %s: %v", k, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	testKey := key(42)
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	old, replaced, err := database.Insert(testKey, testValue1)
	if err != nil {
		t.Fatalf("Unexpected error during Insert: %v", err)
	}
	if replaced || old != nil {
		t.Errorf("Expected first Insert to report no previous value, got replaced=%v old=%q", replaced, old)
	}

	result, exists, err := database.Get(testKey)
	if err != nil || !exists {
		t.Errorf("Expected key %s to exist after Insert (err=%v)", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	old, replaced, err = database.Insert(testKey, testValue2)
	if err != nil {
		t.Fatalf("Unexpected error during Insert: %v", err)
	}
	if !replaced || !bytes.Equal(old, testValue1) {
		t.Errorf("Expected Insert to return previous value %s, got replaced=%v old=%s", testValue1, replaced, old)
	}

	result, _, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if database.Len() != 1 {
		t.Errorf("Expected length 1 after replacing a value, got %d", database.Len())
	}

	_, exists, err = database.Get(key(7))
	if err != nil || exists {
		t.Errorf("Expected nonexistent key to return exists=false (err=%v)", err)
	}

	// the returned value must be a copy
	retrievedValue, _, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// the inserted value must be copied too
	input := []byte("mutable")
	mustInsert(t, database, key(8), input)
	input[0] = 'X'
	stored, _, _ := database.Get(key(8))
	if !bytes.Equal(stored, []byte("mutable")) {
		t.Errorf("Insert should copy the value, stored value changed to %s", stored)
	}
}

func testRemove(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet|db.FeatureRemove)

	testKey := key(1)
	testValue := []byte("test-value")

	mustInsert(t, database, testKey, testValue)

	old, removed, err := database.Remove(testKey)
	if err != nil {
		t.Fatalf("Unexpected error during Remove: %v", err)
	}
	if !removed || !bytes.Equal(old, testValue) {
		t.Errorf("Expected Remove to return %s, got removed=%v old=%s", testValue, removed, old)
	}

	if _, exists, _ := database.Get(testKey); exists {
		t.Errorf("Expected key %s to be removed", testKey)
	}

	_, removed, err = database.Remove(testKey)
	if err != nil || removed {
		t.Errorf("Expected second Remove to report nothing removed (removed=%v, err=%v)", removed, err)
	}

	if database.Len() != 0 {
		t.Errorf("Expected empty database, got length %d", database.Len())
	}

	// the key can be inserted again
	mustInsert(t, database, testKey, []byte("again"))
	result, exists, _ := database.Get(testKey)
	if !exists || !bytes.Equal(result, []byte("again")) {
		t.Errorf("Expected re-inserted value, got %s (exists=%v)", result, exists)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureHas|db.FeatureRemove)

	testKey := key(3)
	if ok, _ := database.Has(testKey); ok {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	mustInsert(t, database, testKey, []byte("test-value"))
	if ok, err := database.Has(testKey); !ok || err != nil {
		t.Errorf("Expected Has to return true after Insert (err=%v)", err)
	}

	if _, _, err := database.Remove(testKey); err != nil {
		t.Fatalf("Unexpected error during Remove: %v", err)
	}
	if ok, _ := database.Has(testKey); ok {
		t.Errorf("Expected Has to return false after Remove")
	}
}

func testScan(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureScan)

	// insert in random order
	keys := rand.New(rand.NewSource(7)).Perm(500)
	for _, k := range keys {
		mustInsert(t, database, key(uint64(k)*2), []byte(fmt.Sprintf("value-%d", k*2)))
	}

	// full scan is ascending and complete
	var prev *db.Key
	count := 0
	err := database.Scan(uint128.Zero, func(k db.Key, value []byte) bool {
		if prev != nil && prev.Cmp(k) >= 0 {
			t.Errorf("Scan out of order: %s after %s", k, prev)
		}
		if expected := fmt.Sprintf("value-%s", k); string(value) != expected {
			t.Errorf("Scan value mismatch for %s: expected %s, got %s", k, expected, value)
		}
		kk := k
		prev = &kk
		count++
		return true
	})
	if err != nil {
		t.Fatalf("Unexpected error during Scan: %v", err)
	}
	if count != 500 {
		t.Errorf("Expected Scan to visit 500 entries, got %d", count)
	}

	// scan from a key between two entries and stop early
	var visited []db.Key
	err = database.Scan(key(101), func(k db.Key, _ []byte) bool {
		visited = append(visited, k)
		return len(visited) < 3
	})
	if err != nil {
		t.Fatalf("Unexpected error during Scan: %v", err)
	}
	expected := []db.Key{key(102), key(104), key(106)}
	if fmt.Sprint(visited) != fmt.Sprint(expected) {
		t.Errorf("Expected Scan from 101 to visit %v, got %v", expected, visited)
	}

	// scan past the last key
	err = database.Scan(key(10_000), func(k db.Key, _ []byte) bool {
		t.Errorf("Unexpected entry %s past the last key", k)
		return true
	})
	if err != nil {
		t.Fatalf("Unexpected error during Scan: %v", err)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		mustInsert(t, database, key(uint64(i)), []byte(fmt.Sprintf("save-load-test-value-%d", i)))
	}

	// database2 holds an entry that is overwritten and one that is kept
	mustInsert(t, database2, key(0), []byte("overwritten"))
	mustInsert(t, database2, key(5000), []byte("kept"))

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		expectedValue := []byte(fmt.Sprintf("save-load-test-value-%d", i))

		actualValue, exists, err := database2.Get(key(uint64(i)))
		if err != nil || !exists {
			t.Errorf("Key %d not found after Load (err=%v)", i, err)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %d: expected %s, got %s", i, expectedValue, actualValue)
		}
	}

	if value, _, _ := database2.Get(key(5000)); !bytes.Equal(value, []byte("kept")) {
		t.Errorf("Load should merge into existing entries, key 5000 holds %q", value)
	}
	if database2.Len() != uint64(numEntries+1) {
		t.Errorf("Expected %d entries after Load, got %d", numEntries+1, database2.Len())
	}

	if database.Len() != uint64(numEntries) {
		t.Errorf("Save changed the original database, length is %d", database.Len())
	}
}

func testLoadInvalidSnapshot(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureLoad)

	if err := database.Load(bytes.NewReader([]byte("definitely not a snapshot"))); err == nil {
		t.Errorf("Expected Load of garbage to fail")
	}
	if err := database.Load(bytes.NewReader(nil)); err == nil {
		t.Errorf("Expected Load of an empty reader to fail")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	// smallest and largest key
	mustInsert(t, database, uint128.Zero, []byte("zero"))
	mustInsert(t, database, uint128.Max, []byte("max"))

	if result, exists, _ := database.Get(uint128.Zero); !exists || !bytes.Equal(result, []byte("zero")) {
		t.Errorf("Value mismatch for key 0")
	}
	if result, exists, _ := database.Get(uint128.Max); !exists || !bytes.Equal(result, []byte("max")) {
		t.Errorf("Value mismatch for the largest key")
	}

	emptyValueKey := key(10)
	mustInsert(t, database, emptyValueKey, []byte{})
	if result, exists, _ := database.Get(emptyValueKey); !exists {
		t.Errorf("Key for empty value not found after Insert")
	} else if len(result) != 0 {
		t.Errorf("Empty value mismatch: %v", result)
	}

	nilValueKey := key(11)
	mustInsert(t, database, nilValueKey, nil)
	if result, exists, _ := database.Get(nilValueKey); !exists {
		t.Errorf("Key for nil value not found after Insert")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	if !t.Failed() {
		largeValueKey := key(12)
		largeValue := make([]byte, 4*1024*1024)
		for i := range largeValue {
			largeValue[i] = byte(i % 256)
		}

		mustInsert(t, database, largeValueKey, largeValue)

		result, exists, err := database.Get(largeValueKey)
		if err != nil || !exists {
			t.Errorf("Key for large value not found after Insert (err=%v)", err)
		} else if !bytes.Equal(result, largeValue) {
			headMismatch := len(result) < 10 || !bytes.Equal(result[:10], largeValue[:10])
			t.Errorf("Large value mismatch: Head mismatch=%v, Size mismatch=%v",
				headMismatch, len(result) != len(largeValue))
		}
	}
}

func testManyKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet|db.FeatureRemove)

	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		mustInsert(t, database, key(uint64(i)), []byte(fmt.Sprintf("value-%d", i)))
	}

	for i := 0; i < numKeys; i++ {
		expectedValue := []byte(fmt.Sprintf("value-%d", i))

		actualValue, exists, _ := database.Get(key(uint64(i)))
		if !exists {
			t.Errorf("Key %d not found", i)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value for key %d does not match: expected %s, got %s", i, expectedValue, actualValue)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		if _, _, err := database.Remove(key(uint64(i))); err != nil {
			t.Fatalf("Unexpected error during Remove: %v", err)
		}
	}

	for i := 0; i < numKeys; i++ {
		_, exists, _ := database.Get(key(uint64(i)))

		if i%2 == 0 {
			if exists {
				t.Errorf("Key %d should be removed", i)
			}
		} else {
			if !exists {
				t.Errorf("Key %d should still exist", i)
			}
		}
	}

	if database.Len() != uint64(numKeys/2) {
		t.Errorf("Expected %d entries, got %d", numKeys/2, database.Len())
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet|db.FeatureRemove)

	type operation struct {
		op    string
		key   db.Key
		value []byte
	}

	numOperations := 10_000
	operations := make([]operation, numOperations)

	for i := 0; i < numOperations; i++ {
		var op string
		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			op = "insert"
		case 7, 8:
			op = "get"
		case 9:
			op = "remove"
		}

		var k db.Key
		if i%5 == 0 {
			k = key(uint64(i % 50)) // hot keys
		} else {
			k = key(uint64(1000 + i))
		}

		var value []byte
		if op == "insert" {
			valueSize := 64
			if i%10 == 0 {
				valueSize = 1024
			}
			value = make([]byte, valueSize)
			for j := 0; j < valueSize; j++ {
				value[j] = byte((i + j) % 256)
			}
		}

		operations[i] = operation{op, k, value}
	}

	numWorkers := 8
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	var errorCount int32

	opsPerWorker := numOperations / numWorkers

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			start := workerId * opsPerWorker
			end := start + opsPerWorker

			for i := start; i < end; i++ {
				op := operations[i]

				var err error
				switch op.op {
				case "insert":
					_, _, err = database.Insert(op.key, op.value)
				case "get":
					_, _, err = database.Get(op.key)
				case "remove":
					_, _, err = database.Remove(op.key)
				}
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
				}
			}
		}(w)
	}

	wg.Wait()

	if n := atomic.LoadInt32(&errorCount); n > 0 {
		t.Fatalf("Test had %d errors during parallel operations", n)
	}

	// the length must match the number of reachable entries
	if database.SupportsFeature(db.FeatureScan) {
		scanned := make(map[db.Key][]byte)
		err := database.Scan(uint128.Zero, func(k db.Key, value []byte) bool {
			scanned[k] = value
			return true
		})
		if err != nil {
			t.Fatalf("Unexpected error during Scan: %v", err)
		}
		if uint64(len(scanned)) != database.Len() {
			t.Errorf("Scan visited %d entries, Len reports %d", len(scanned), database.Len())
		}

		for k, value := range scanned {
			stored, exists, err := database.Get(k)
			if err != nil || !exists || !bytes.Equal(stored, value) {
				t.Errorf("Consistency error for key %s", k)
			}
		}
	}
}
