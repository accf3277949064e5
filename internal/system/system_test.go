package system

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	coresys "github.com/runeshard/server/internal/core/system"
	"github.com/runeshard/server/internal/entities"
	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/movement"
	"github.com/runeshard/server/internal/persist"
	"github.com/runeshard/server/internal/terrain"
	"github.com/runeshard/server/internal/world"
)

func TestCommandSystemRecoversPanics(t *testing.T) {
	q := coresys.NewCommandQueue()
	core, logs := observer.New(zap.ErrorLevel)
	sys := NewCommandSystem(q, 2, zap.New(core))

	var ran []string
	q.Enqueue(func() { ran = append(ran, "a") })
	q.Enqueue(func() { panic("bad command") })
	q.Enqueue(func() { ran = append(ran, "c") })

	sys.Update(time.Millisecond)
	if len(ran) != 1 || sys.Failed() != 1 {
		t.Fatalf("first tick ran %v failed %d", ran, sys.Failed())
	}
	if logs.FilterMessage("command panic recovered").Len() != 1 {
		t.Errorf("panic not logged: %v", logs.All())
	}
	sys.Update(time.Millisecond)
	if len(ran) != 2 || ran[1] != "c" || q.Len() != 0 {
		t.Errorf("second tick ran %v, %d left", ran, q.Len())
	}
}

type fakeSaver struct {
	saves int
	err   error
}

func (f *fakeSaver) Save(context.Context) (persist.SaveInfo, error) {
	f.saves++
	return persist.SaveInfo{}, f.err
}

func TestAutosaveInterval(t *testing.T) {
	saver := &fakeSaver{}
	sys := NewAutosaveSystem(saver, time.Second, nil)

	for range 9 {
		sys.Update(100 * time.Millisecond)
	}
	if saver.saves != 0 {
		t.Fatalf("saved early: %d", saver.saves)
	}
	sys.Update(100 * time.Millisecond)
	if saver.saves != 1 {
		t.Fatalf("saves = %d after one interval", saver.saves)
	}

	if err := sys.SaveNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	// SaveNow restarts the interval.
	for range 9 {
		sys.Update(100 * time.Millisecond)
	}
	if saver.saves != 2 {
		t.Errorf("saves = %d, want 2", saver.saves)
	}
}

func TestAutosaveFailureKeepsTicking(t *testing.T) {
	saver := &fakeSaver{err: errors.New("disk full")}
	core, logs := observer.New(zap.ErrorLevel)
	sys := NewAutosaveSystem(saver, time.Second, zap.New(core))

	sys.Update(time.Second)
	sys.Update(time.Second)
	if saver.saves != 2 || logs.FilterMessage("autosave failed").Len() != 2 {
		t.Errorf("saves=%d logs=%d", saver.saves, logs.Len())
	}
	if err := sys.SaveNow(context.Background()); err == nil {
		t.Error("SaveNow hid the error")
	}
}

func TestAutosaveDisabled(t *testing.T) {
	saver := &fakeSaver{}
	sys := NewAutosaveSystem(saver, 0, nil)
	sys.Update(time.Hour)
	if saver.saves != 0 {
		t.Errorf("disabled autosave ran %d times", saver.saves)
	}
}

func newWorld(t *testing.T) (*world.World, *world.Map) {
	t.Helper()
	td := terrain.NewTileData()
	td.SetLand(0x3, terrain.LandData{Name: "grass"})
	reg := world.NewTypeRegistry()
	entities.Register(reg)
	w := world.New(reg, nil)
	m, err := world.NewMap(0, "Test", terrain.NewGrid(64, 64, terrain.LandTile{ID: 0x3}), td, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddMap(m); err != nil {
		t.Fatal(err)
	}
	return w, m
}

func TestCleanupDeletesAtTickEnd(t *testing.T) {
	w, m := newWorld(t)
	c, err := world.NewMobile(w, entities.NewCreature)
	if err != nil {
		t.Fatal(err)
	}
	c.MoveToWorld(geo.Point3D{X: 5, Y: 5}, m)

	sys := NewCleanupSystem()
	sys.Defer(c)
	sys.Defer(c)
	sys.Defer(nil)
	if c.Deleted() {
		t.Fatal("deleted before the cleanup phase")
	}
	sys.Update(0)
	if !c.Deleted() || w.FindEntity(c.Serial()) != nil {
		t.Error("entity survived cleanup")
	}
	sys.Update(0)
}

func TestWanderStaysNearHome(t *testing.T) {
	w, m := newWorld(t)
	home := geo.Point3D{X: 30, Y: 30}
	c, err := world.NewMobile(w, entities.NewCreature)
	if err != nil {
		t.Fatal(err)
	}
	c.SetHome(home, 3)
	c.MoveToWorld(home, m)

	tamed, err := world.NewMobile(w, entities.NewCreature)
	if err != nil {
		t.Fatal(err)
	}
	tamed.SetMaster(c)
	tamed.MoveToWorld(geo.Point3D{X: 10, Y: 10}, m)

	sys := NewWanderSystem(w, movement.NewValidator(nil, nil), time.Second, 42)
	for range 200 {
		sys.Update(time.Second)
		// One step past the range is allowed before the creature turns back.
		if !c.Location().InRange(home, 4) {
			t.Fatalf("wandered to %v, home %v", c.Location(), home)
		}
	}
	if sys.Moves() == 0 {
		t.Error("creature never moved")
	}
	if tamed.Location() != (geo.Point3D{X: 10, Y: 10}) {
		t.Errorf("controlled creature wandered to %v", tamed.Location())
	}
	if got := m.Query(c.Location(), 0, world.All); got != nil {
		found := false
		for e := range got.All() {
			found = found || e == world.Entity(c)
		}
		got.Close()
		if !found {
			t.Error("sector index lost the wandering creature")
		}
	}
}

func TestWanderInterval(t *testing.T) {
	w, m := newWorld(t)
	c, err := world.NewMobile(w, entities.NewCreature)
	if err != nil {
		t.Fatal(err)
	}
	c.MoveToWorld(geo.Point3D{X: 20, Y: 20}, m)

	sys := NewWanderSystem(w, movement.NewValidator(nil, nil), time.Second, 7)
	sys.Update(500 * time.Millisecond)
	if c.Location() != (geo.Point3D{X: 20, Y: 20}) {
		t.Fatal("moved before the interval elapsed")
	}
	sys.Update(500 * time.Millisecond)
	if sys.Moves() != 1 {
		t.Errorf("moves = %d, want 1", sys.Moves())
	}
}
