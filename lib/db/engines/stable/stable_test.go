package stable

import (
	"bytes"
	"testing"

	"github.com/pramitgaha/map-error/lib/stable/memmgr"
	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/spf13/afero"
	"lukechampine.com/uint128"
)

func TestRestartKeepsEntries(t *testing.T) {
	fs := afero.NewMemMapFs()

	open := func() (*memory.FileMemory, *memmgr.MemoryManager) {
		file, err := memory.OpenFileMemory(fs, "/data/smap.mem", nil)
		if err != nil {
			t.Fatalf("failed to open memory file: %v", err)
		}
		mgr, err := memmgr.InitWithBucketSize(file, 1)
		if err != nil {
			t.Fatalf("failed to attach memory manager: %v", err)
		}
		mgr.Register(memmgr.MapMemoryID)
		return file, mgr
	}

	file, mgr := open()
	database := newDB(t, mgr.Get(memmgr.MapMemoryID))
	for i := uint64(0); i < 10; i++ {
		value := bytes.Repeat([]byte{byte(i)}, int(i+1)*2000)
		if _, _, err := database.Insert(uint128.From64(i), value); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}
	if _, _, err := database.Remove(uint128.From64(4)); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("closing the memory file failed: %v", err)
	}

	// "restart"
	file, mgr = open()
	defer file.Close()
	database = newDB(t, mgr.Get(memmgr.MapMemoryID))

	if got := database.Len(); got != 9 {
		t.Errorf("Expected 9 entries after restart, got %d", got)
	}
	value, ok, err := database.Get(uint128.From64(5))
	if err != nil || !ok {
		t.Fatalf("Expected key 5 after restart (ok=%v, err=%v)", ok, err)
	}
	if !bytes.Equal(value, bytes.Repeat([]byte{5}, 6*2000)) {
		t.Errorf("Value of key 5 changed across restart")
	}
	if ok, _ := database.Has(uint128.From64(4)); ok {
		t.Errorf("Removed key 4 is back after restart")
	}
}

func TestGetInfoReportsTree(t *testing.T) {
	database := newDB(t, memory.NewVectorMemory())
	for i := uint64(0); i < 100; i++ {
		if _, _, err := database.Insert(uint128.From64(i), []byte("value")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	info := database.GetInfo()
	if info.Length != 100 {
		t.Errorf("Expected length 100, got %d", info.Length)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size, got %d", info.SizeBytes)
	}
	if info.DbType != "stable" {
		t.Errorf("Expected db type stable, got %s", info.DbType)
	}
}
