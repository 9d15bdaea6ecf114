package stable

import (
	"testing"

	"github.com/pramitgaha/map-error/lib/db"
	dbtesting "github.com/pramitgaha/map-error/lib/db/testing"
	"github.com/pramitgaha/map-error/lib/stable/memory"
)

func newDB(t testing.TB, mem memory.Memory) db.KVDB {
	database, err := NewStableDB(mem, &DBOptions{NodeBytes: 512})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	return database
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "StableDB", func() db.KVDB {
		return newDB(t, memory.NewVectorMemory())
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "StableDB", func() db.KVDB {
		return newDB(b, memory.NewVectorMemory())
	})
}
