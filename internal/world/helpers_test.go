package world

import (
	"testing"

	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/terrain"
)

type testMobile struct {
	MobileBase
}

func newTestMobile(s Serial) *testMobile {
	m := &testMobile{}
	m.InitMobile(m, s)
	return m
}

func (m *testMobile) TypeTag() string { return "TestMobile" }

type testItem struct {
	ItemBase
}

func newTestItem(s Serial) *testItem {
	it := &testItem{}
	it.InitItem(it, s)
	return it
}

func (it *testItem) TypeTag() string { return "TestItem" }

func newTestWorld(t *testing.T, size int) (*World, *Map) {
	t.Helper()
	reg := NewTypeRegistry()
	reg.Register("TestMobile", KindMobile, func(s Serial) Entity { return newTestMobile(s) })
	reg.Register("TestItem", KindItem, func(s Serial) Entity { return newTestItem(s) })
	w := New(reg, nil)
	m, err := NewMap(0, "Test", terrain.NewGrid(size, size, terrain.LandTile{ID: 3}), nil, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddMap(m); err != nil {
		t.Fatal(err)
	}
	return w, m
}

func spawnMobile(t *testing.T, w *World, m *Map, p geo.Point3D) *testMobile {
	t.Helper()
	mob, err := NewMobile(w, newTestMobile)
	if err != nil {
		t.Fatal(err)
	}
	mob.MoveToWorld(p, m)
	return mob
}

func spawnItem(t *testing.T, w *World, m *Map, p geo.Point3D) *testItem {
	t.Helper()
	it, err := NewItem(w, newTestItem)
	if err != nil {
		t.Fatal(err)
	}
	it.MoveToWorld(p, m)
	return it
}
