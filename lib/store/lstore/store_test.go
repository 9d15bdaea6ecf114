package lstore

import (
	"errors"
	"testing"

	"github.com/pramitgaha/map-error/lib/db"
	"github.com/pramitgaha/map-error/lib/db/engines/heap"
	"github.com/pramitgaha/map-error/lib/db/engines/stable"
	"github.com/pramitgaha/map-error/lib/stable/codec"
	"github.com/pramitgaha/map-error/lib/stable/memory"
	"github.com/pramitgaha/map-error/lib/store"
	"github.com/pramitgaha/map-error/lib/users"
	"lukechampine.com/uint128"
)

type engineFactory func(t *testing.T) db.KVDB

var engines = map[string]engineFactory{
	"heap": func(t *testing.T) db.KVDB {
		return heap.NewHeapDB(nil)
	},
	"stable": func(t *testing.T) db.KVDB {
		database, err := stable.NewStableDB(memory.NewVectorMemory(), nil)
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		return database
	},
}

func forEachEngine(t *testing.T, fn func(t *testing.T, database db.KVDB)) {
	for name, factory := range engines {
		t.Run(name, func(t *testing.T) {
			database := factory(t)
			defer database.Close()
			fn(t, database)
		})
	}
}

func storeCode(t *testing.T, err error) store.RetCode {
	t.Helper()
	var se *store.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *store.Error, got %T (%v)", err, err)
	}
	return se.Code
}

func TestSeededUsers(t *testing.T) {
	forEachEngine(t, func(t *testing.T, database db.KVDB) {
		s := NewLocalStore(func() db.KVDB { return database }, nil)

		if _, err := users.Seed(s, users.DefaultSeedCount); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		u, ok, err := s.Get(uint128.From64(5))
		if err != nil || !ok {
			t.Fatalf("expected user 5, got ok=%v err=%v", ok, err)
		}
		if u.Name != "user with 5" {
			t.Errorf("unexpected name %q", u.Name)
		}
		if len(u.FavNumbers) != 6 {
			t.Errorf("expected 6 blocks, got %d", len(u.FavNumbers))
		}
		for i, block := range u.FavNumbers {
			if len(block) != users.SeedBlockSize {
				t.Errorf("block %d has %d bytes", i, len(block))
			}
		}

		if _, ok, err := s.Get(uint128.From64(10)); ok || err != nil {
			t.Errorf("expected user 10 to be absent, got ok=%v err=%v", ok, err)
		}

		if n, _ := s.Len(); n != 10 {
			t.Errorf("expected 10 users, got %d", n)
		}
	})
}

func TestInsertRemoveHas(t *testing.T) {
	forEachEngine(t, func(t *testing.T, database db.KVDB) {
		s := NewLocalStore(func() db.KVDB { return database }, nil)
		k := uint128.New(1, 1)

		replaced, err := s.Insert(k, users.User{Name: "a"})
		if err != nil || replaced {
			t.Fatalf("first insert: replaced=%v err=%v", replaced, err)
		}
		replaced, err = s.Insert(k, users.User{Name: "b"})
		if err != nil || !replaced {
			t.Fatalf("second insert: replaced=%v err=%v", replaced, err)
		}

		u, _, _ := s.Get(k)
		if u.Name != "b" {
			t.Errorf("expected overwritten name b, got %q", u.Name)
		}

		if ok, _ := s.Has(k); !ok {
			t.Error("expected key to exist")
		}
		removed, err := s.Remove(k)
		if err != nil || !removed {
			t.Fatalf("remove: removed=%v err=%v", removed, err)
		}
		removed, _ = s.Remove(k)
		if removed {
			t.Error("second remove reported an existing key")
		}
		if ok, _ := s.Has(k); ok {
			t.Error("expected key to be gone")
		}
	})
}

func TestScan(t *testing.T) {
	forEachEngine(t, func(t *testing.T, database db.KVDB) {
		s := NewLocalStore(func() db.KVDB { return database }, nil)
		for _, id := range []uint64{40, 10, 30, 20} {
			if _, err := s.Insert(uint128.From64(id), users.User{Name: "u"}); err != nil {
				t.Fatalf("insert failed: %v", err)
			}
		}

		all, err := s.Scan(uint128.Zero, 0)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if len(all) != 4 {
			t.Fatalf("expected 4 entries, got %d", len(all))
		}
		for i, want := range []uint64{10, 20, 30, 40} {
			if all[i].Key != uint128.From64(want) {
				t.Errorf("entry %d: expected key %d, got %s", i, want, all[i].Key)
			}
		}

		page, err := s.Scan(uint128.From64(15), 2)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if len(page) != 2 || page[0].Key != uint128.From64(20) || page[1].Key != uint128.From64(30) {
			t.Errorf("unexpected page %v", page)
		}

		if _, err := s.Scan(uint128.Zero, -1); storeCode(t, err) != store.RetCInvalidOperation {
			t.Error("expected negative limit to be rejected")
		}
	})
}

func TestRecordSizeBound(t *testing.T) {
	forEachEngine(t, func(t *testing.T, database db.KVDB) {
		s := NewLocalStore(func() db.KVDB { return database }, &Options{MaxRecordSize: 1000})

		_, err := s.Insert(uint128.From64(1), users.SeedUser(0))
		if storeCode(t, err) != store.RetCSizeBoundExceeded {
			t.Errorf("expected RetCSizeBoundExceeded, got %v", err)
		}
		if !errors.Is(err, codec.ErrSizeBoundExceeded) {
			t.Error("expected error to match codec.ErrSizeBoundExceeded")
		}
		if n, _ := s.Len(); n != 0 {
			t.Errorf("rejected insert left %d entries", n)
		}

		if _, err := s.Insert(uint128.From64(1), users.User{Name: "small"}); err != nil {
			t.Errorf("small user rejected: %v", err)
		}
	})
}

func TestCorruptRecord(t *testing.T) {
	forEachEngine(t, func(t *testing.T, database db.KVDB) {
		s := NewLocalStore(func() db.KVDB { return database }, nil)
		k := uint128.From64(3)

		// 0xff is a CBOR break code outside an indefinite-length item
		if _, _, err := database.Insert(k, []byte{0xff}); err != nil {
			t.Fatalf("raw insert failed: %v", err)
		}

		_, _, err := s.Get(k)
		if !errors.Is(err, codec.ErrCorruptRecord) {
			t.Errorf("expected corrupt record error, got %v", err)
		}
		if _, err := s.Scan(uint128.Zero, 0); storeCode(t, err) != store.RetCCorruptRecord {
			t.Errorf("expected scan to report the corrupt record, got %v", err)
		}

		// the record can still be replaced
		replaced, err := s.Insert(k, users.User{Name: "fixed"})
		if err != nil || !replaced {
			t.Fatalf("replace failed: replaced=%v err=%v", replaced, err)
		}
		u, ok, err := s.Get(k)
		if err != nil || !ok || u.Name != "fixed" {
			t.Errorf("unexpected result after replace: %v %v %v", u, ok, err)
		}
	})
}
