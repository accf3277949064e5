package entities

import (
	"errors"
	"testing"

	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/terrain"
	"github.com/runeshard/server/internal/world"
)

func newWorld(t *testing.T) (*world.World, *world.Map) {
	t.Helper()
	reg := world.NewTypeRegistry()
	Register(reg)
	w := world.New(reg, nil)
	m, err := world.NewMap(0, "Felucca", terrain.NewGrid(64, 64, terrain.LandTile{ID: 3}), nil, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddMap(m); err != nil {
		t.Fatal(err)
	}
	return w, m
}

func mustItem[T world.Item](t *testing.T, w *world.World, ctor func(world.Serial) T) T {
	t.Helper()
	it, err := world.NewItem(w, ctor)
	if err != nil {
		t.Fatal(err)
	}
	return it
}

// writeItemBaseV0 writes the oldest item base layout.
func writeItemBaseV0(w *world.Writer, id uint16, p geo.Point3D, m *world.Map, amount int) {
	w.WriteVersion(0)
	w.WriteUint16(id)
	w.WritePoint3D(p)
	w.WriteMap(m)
	w.WriteEncodedInt(amount)
}

func TestKeyVersionsReadToSameState(t *testing.T) {
	w, m := newWorld(t)
	loc := geo.Point3D{X: 5, Y: 6, Z: 1}

	// Version 0 as shipped: item base v0, key v0.
	v0 := world.NewWriter()
	writeItemBaseV0(v0, KeyID, loc, m, 1)
	v0.WriteVersion(0)
	v0.WriteUint32(0xBEEF)

	// Version 2 as written by the current code.
	cur := mustItem(t, w, NewKey)
	cur.MoveToWorld(loc, m)
	cur.SetKeyValue(0xBEEF)
	v2 := world.NewWriter()
	cur.Serialize(v2)

	fromV0 := NewKey(world.MinItemSerial + 500)
	if err := fromV0.Deserialize(world.NewReader(v0.Bytes(), w)); err != nil {
		t.Fatalf("v0: %v", err)
	}
	fromV2 := NewKey(world.MinItemSerial + 501)
	if err := fromV2.Deserialize(world.NewReader(v2.Bytes(), w)); err != nil {
		t.Fatalf("v2: %v", err)
	}

	for name, k := range map[string]*Key{"v0": fromV0, "v2": fromV2} {
		if k.KeyValue() != 0xBEEF || k.ItemID() != KeyID || k.Location() != loc || k.Map() != m {
			t.Errorf("%s: key = %#x id %#x at %v on %v", name, k.KeyValue(), k.ItemID(), k.Location(), k.Map())
		}
		if k.Description() != "" || k.Link() != nil || !k.Movable() {
			t.Errorf("%s: defaults not applied", name)
		}
	}
}

func TestKeyVersionOne(t *testing.T) {
	w, m := newWorld(t)
	v1 := world.NewWriter()
	writeItemBaseV0(v1, KeyID, geo.Point3D{}, m, 1)
	v1.WriteVersion(1)
	v1.WriteString("tower door")
	v1.WriteUint32(7)

	k := NewKey(world.MinItemSerial + 9)
	r := world.NewReader(v1.Bytes(), w)
	if err := k.Deserialize(r); err != nil {
		t.Fatal(err)
	}
	if k.Description() != "tower door" || k.KeyValue() != 7 {
		t.Errorf("v1 key = %q %d", k.Description(), k.KeyValue())
	}
	if r.Remaining() != 0 {
		t.Errorf("%d trailing bytes", r.Remaining())
	}
}

func TestKeyFutureVersionFails(t *testing.T) {
	w, m := newWorld(t)
	b := world.NewWriter()
	writeItemBaseV0(b, KeyID, geo.Point3D{}, m, 1)
	b.WriteVersion(keyVersion + 1)
	err := NewKey(world.MinItemSerial).Deserialize(world.NewReader(b.Bytes(), w))
	var ve *world.VersionError
	if !errors.As(err, &ve) || ve.Type != TagKey {
		t.Fatalf("err = %v, want Key version error", err)
	}
}

func TestKeyLinkRoundTrip(t *testing.T) {
	w, m := newWorld(t)
	door := mustItem(t, w, NewDoor)
	door.MoveToWorld(geo.Point3D{X: 3, Y: 3}, m)
	door.SetKeyValue(42)
	door.SetLocked(true)

	key := mustItem(t, w, NewKey)
	key.CutFor(door)
	key.SetDescription("front")
	b := world.NewWriter()
	key.Serialize(b)

	got := NewKey(key.Serial())
	if err := got.Deserialize(world.NewReader(b.Bytes(), w)); err != nil {
		t.Fatal(err)
	}
	if got.Link() != world.Item(door) || got.KeyValue() != 42 || got.Description() != "front" {
		t.Errorf("key = link %v value %d desc %q", got.Link(), got.KeyValue(), got.Description())
	}
	if !door.Unlock(got) || door.Locked() {
		t.Error("matching key must unlock")
	}
}

func TestDoorOpenClose(t *testing.T) {
	w, _ := newWorld(t)
	d := mustItem(t, w, NewDoor)
	if d.ItemID() != DoorClosedID || d.Movable() {
		t.Fatalf("new door id %#x movable %v", d.ItemID(), d.Movable())
	}
	d.SetLocked(true)
	if d.Open() {
		t.Fatal("locked door opened")
	}
	d.SetLocked(false)
	if !d.Open() || d.ItemID() != DoorOpenID {
		t.Fatalf("open door id = %#x", d.ItemID())
	}
	d.Close()
	if d.IsOpen() || d.ItemID() != DoorClosedID {
		t.Fatal("close did not restore the closed graphic")
	}
	wrong := NewKey(world.MinItemSerial)
	wrong.SetKeyValue(1)
	d.SetKeyValue(2)
	d.SetLocked(true)
	if d.Unlock(wrong) {
		t.Error("wrong key unlocked the door")
	}
}

func TestDoorVersionZero(t *testing.T) {
	w, m := newWorld(t)
	b := world.NewWriter()
	writeItemBaseV0(b, DoorClosedID, geo.Point3D{X: 1, Y: 1}, m, 1)
	b.WriteVersion(0)
	b.WriteBool(true)
	b.WriteUint16(0x675)
	b.WriteUint16(0x676)

	d := NewDoor(world.MinItemSerial + 3)
	if err := d.Deserialize(world.NewReader(b.Bytes(), w)); err != nil {
		t.Fatal(err)
	}
	if !d.IsOpen() || d.ItemID() != 0x676 || d.Locked() {
		t.Errorf("door v0 = open %v id %#x locked %v", d.IsOpen(), d.ItemID(), d.Locked())
	}
}

func TestContainerHoldsChildren(t *testing.T) {
	w, m := newWorld(t)
	bag := mustItem(t, w, NewContainer)
	bag.MoveToWorld(geo.Point3D{X: 10, Y: 10}, m)
	key := mustItem(t, w, NewKey)
	key.MoveToWorld(geo.Point3D{X: 10, Y: 10}, m)

	if err := bag.AddItem(key); err != nil {
		t.Fatal(err)
	}
	if key.Parent() != world.Entity(bag) {
		t.Fatal("parent not set")
	}
	if m.SectorOf(key) != nil {
		t.Fatal("contained key still indexed")
	}

	other := mustItem(t, w, NewContainer)
	if err := other.AddItem(key); err != nil {
		t.Fatal(err)
	}
	if len(bag.Items()) != 0 || len(other.Items()) != 1 {
		t.Fatal("moving between containers left a stale child")
	}

	other.SetMaxItems(1)
	if err := other.AddItem(mustItem(t, w, NewKey)); !errors.Is(err, ErrContainerFull) {
		t.Errorf("err = %v, want ErrContainerFull", err)
	}

	s := key.Serial()
	other.Delete()
	if w.FindEntity(s) != nil {
		t.Error("deleting a container must delete its contents")
	}
}

func TestContainerRoundTripDropsMissingChildren(t *testing.T) {
	w, m := newWorld(t)
	bag := mustItem(t, w, NewContainer)
	bag.MoveToWorld(geo.Point3D{X: 1, Y: 1}, m)
	a := mustItem(t, w, NewKey)
	b := mustItem(t, w, NewKey)
	_ = bag.AddItem(a)
	_ = bag.AddItem(b)

	buf := world.NewWriter()
	bag.Serialize(buf)
	w.Table().Unregister(b) // gone by load time

	got := NewContainer(bag.Serial())
	if err := got.Deserialize(world.NewReader(buf.Bytes(), w)); err != nil {
		t.Fatal(err)
	}
	items := got.Items()
	if len(items) != 1 || items[0] != world.Item(a) {
		t.Errorf("items = %v", items)
	}
}

func TestCreatureMasterReference(t *testing.T) {
	w, m := newWorld(t)
	owner, err := world.NewMobile(w, NewCreature)
	if err != nil {
		t.Fatal(err)
	}
	owner.SetFlag(world.FlagPlayer, true)
	pet, err := world.NewMobile(w, NewCreature)
	if err != nil {
		t.Fatal(err)
	}
	pet.MoveToWorld(geo.Point3D{X: 20, Y: 20, Z: 5}, m)
	pet.SetMaster(owner)
	pet.SetHome(geo.Point3D{X: 18, Y: 18}, 4)

	b := world.NewWriter()
	pet.Serialize(b)

	got := NewCreature(pet.Serial())
	if err := got.Deserialize(world.NewReader(b.Bytes(), w)); err != nil {
		t.Fatal(err)
	}
	if got.Master() != world.Mobile(owner) || !got.Controlled() {
		t.Errorf("master = %v controlled %v", got.Master(), got.Controlled())
	}
	if got.Home() != (geo.Point3D{X: 18, Y: 18}) || got.RangeHome() != 4 {
		t.Errorf("home = %v range %d", got.Home(), got.RangeHome())
	}

	owner.Delete()
	again := NewCreature(pet.Serial())
	if err := again.Deserialize(world.NewReader(b.Bytes(), w)); err != nil {
		t.Fatal(err)
	}
	if again.Master() != nil || again.Controlled() {
		t.Error("dangling master must load as nil and uncontrolled")
	}
}

func TestRegisterAllTags(t *testing.T) {
	reg := world.NewTypeRegistry()
	Register(reg)
	want := []string{TagContainer, TagCreature, TagDoor, TagGhostBarrier, TagKey, TagStatic}
	got := reg.Tags()
	if len(got) != len(want) {
		t.Fatalf("tags = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tag %d = %q, want %q", i, got[i], want[i])
		}
	}
}
