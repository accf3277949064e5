package world

import (
	"errors"
	"sync"
	"testing"
)

func TestRegisterAssignsKindRanges(t *testing.T) {
	w, _ := newTestWorld(t, 16)
	mob, err := NewMobile(w, newTestMobile)
	if err != nil {
		t.Fatal(err)
	}
	it, err := NewItem(w, newTestItem)
	if err != nil {
		t.Fatal(err)
	}
	if !mob.Serial().IsMobile() || mob.Serial() != MinMobileSerial {
		t.Errorf("mobile serial = %s", mob.Serial())
	}
	if !it.Serial().IsItem() || it.Serial() != MinItemSerial {
		t.Errorf("item serial = %s", it.Serial())
	}
	if w.FindMobile(mob.Serial()) != Mobile(mob) || w.FindItem(it.Serial()) != Item(it) {
		t.Error("lookup mismatch")
	}
	if w.FindItem(mob.Serial()) != nil {
		t.Error("FindItem must not return a mobile")
	}
}

func TestSerialsAreNotRecycled(t *testing.T) {
	w, _ := newTestWorld(t, 16)
	a, _ := NewMobile(w, newTestMobile)
	a.Delete()
	b, _ := NewMobile(w, newTestMobile)
	if b.Serial() == a.Serial() {
		t.Fatalf("serial %s reused", a.Serial())
	}
}

func TestCounterWrapsAroundLiveSerials(t *testing.T) {
	tbl := newTableWithRanges([2]Serial{1, 3}, [2]Serial{MinItemSerial, MinItemSerial + 1})
	var got []Serial
	alloc := func() (Entity, error) {
		return tbl.register(KindMobile, func(s Serial) Entity { return newTestMobile(s) })
	}
	for i := 0; i < 3; i++ {
		e, err := alloc()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, e.Serial())
	}
	if got[0] != 1 || got[2] != 3 {
		t.Fatalf("serials = %v", got)
	}
	if _, err := alloc(); !errors.Is(err, ErrSerialExhausted) {
		t.Fatalf("err = %v, want ErrSerialExhausted", err)
	}

	// Free serial 2; the counter wraps past the live 1 and lands on it.
	tbl.Unregister(tbl.Find(2))
	e, err := alloc()
	if err != nil {
		t.Fatal(err)
	}
	if e.Serial() != 2 {
		t.Fatalf("wrapped serial = %s, want 2", e.Serial())
	}
}

func TestInsertRejectsCollisionsAndWrongKind(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Insert(newTestMobile(5)); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Insert(newTestMobile(5)); !errors.Is(err, ErrSerialInUse) {
		t.Fatalf("err = %v, want ErrSerialInUse", err)
	}
	if err := tbl.Insert(newTestMobile(MinItemSerial)); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("err = %v, want ErrWrongKind", err)
	}
	if m, _ := tbl.Counters(); m != 5 {
		t.Errorf("mobile counter = %s, want 5", m)
	}
}

func TestSnapshotIsOrderedAndFiltered(t *testing.T) {
	tbl := NewTable()
	for _, s := range []Serial{9, 3, 7} {
		if err := tbl.Insert(newTestMobile(s)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tbl.Insert(newTestItem(MinItemSerial + 4)); err != nil {
		t.Fatal(err)
	}
	mobs := tbl.Snapshot(KindMobile)
	if len(mobs) != 3 || mobs[0].Serial() != 3 || mobs[2].Serial() != 9 {
		t.Fatalf("snapshot = %v", mobs)
	}
	if all := tbl.Snapshot(0); len(all) != 4 {
		t.Fatalf("all = %d", len(all))
	}
}

func TestTableConcurrentAccess(t *testing.T) {
	w, _ := newTestWorld(t, 16)
	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	serials := make(chan Serial, workers*perWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				it, err := NewItem(w, newTestItem)
				if err != nil {
					t.Error(err)
					return
				}
				serials <- it.Serial()
				if w.FindEntity(it.Serial()) == nil {
					t.Error("registered item not visible")
				}
				if j%3 == 0 {
					w.Table().Unregister(it)
				}
			}
		}()
	}
	// Concurrent readers.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = w.Snapshot(KindItem)
				_ = w.FindEntity(MinItemSerial + Serial(j))
			}
		}()
	}
	wg.Wait()
	close(serials)

	seen := make(map[Serial]bool)
	for s := range serials {
		if seen[s] {
			t.Fatalf("serial %s handed out twice", s)
		}
		seen[s] = true
	}
	removed := workers * ((perWorker + 2) / 3)
	if got := w.Count(KindItem); got != workers*perWorker-removed {
		t.Errorf("live items = %d, want %d", got, workers*perWorker-removed)
	}
	if got := len(w.Snapshot(KindItem)); got != w.Count(KindItem) {
		t.Errorf("snapshot len %d != count %d", got, w.Count(KindItem))
	}
}

func TestTypeRegistry(t *testing.T) {
	reg := NewTypeRegistry()
	reg.Register("TestMobile", KindMobile, func(s Serial) Entity { return newTestMobile(s) })

	e, err := reg.Construct("TestMobile", 42)
	if err != nil {
		t.Fatal(err)
	}
	if e.Serial() != 42 || e.TypeTag() != "TestMobile" {
		t.Errorf("constructed %s %q", e.Serial(), e.TypeTag())
	}
	if _, err := reg.Construct("Dragon", 43); !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
	if _, err := reg.Construct("TestMobile", MinItemSerial); !errors.Is(err, ErrWrongKind) {
		t.Errorf("err = %v, want ErrWrongKind", err)
	}

	mustPanic(t, "duplicate", func() {
		reg.Register("TestMobile", KindMobile, func(s Serial) Entity { return newTestMobile(s) })
	})
	mustPanic(t, "tag mismatch", func() {
		reg.Register("Other", KindMobile, func(s Serial) Entity { return newTestMobile(s) })
	})
	mustPanic(t, "kind mismatch", func() {
		reg.Register("TestItem", KindMobile, func(s Serial) Entity { return newTestItem(s) })
	})
}

func TestConstructRecoversFactoryPanic(t *testing.T) {
	reg := NewTypeRegistry()
	calls := 0
	reg.Register("TestItem", KindItem, func(s Serial) Entity {
		calls++
		if calls > 1 {
			panic("boom")
		}
		return newTestItem(s)
	})
	if _, err := reg.Construct("TestItem", MinItemSerial); err == nil {
		t.Fatal("expected recovered panic as error")
	}
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}
