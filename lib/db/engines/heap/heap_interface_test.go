package heap

import (
	"testing"

	"github.com/pramitgaha/map-error/lib/db"
	dbtesting "github.com/pramitgaha/map-error/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "HeapDB", func() db.KVDB {
		return NewHeapDB(nil)
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "HeapDB", func() db.KVDB {
		return NewHeapDB(nil)
	})
}
