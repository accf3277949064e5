package world

import (
	"errors"
	"testing"

	"github.com/runeshard/server/internal/geo"
)

func TestMobileBaseRoundTrip(t *testing.T) {
	w, m := newTestWorld(t, 64)
	mob := spawnMobile(t, w, m, geo.Point3D{X: 10, Y: 12, Z: -4})
	mob.SetName("Dupre")
	mob.SetBody(0x190)
	mob.SetDirection(geo.Down | geo.Running)
	mob.SetFlag(FlagPlayer, true)
	mob.SetFlag(FlagCanSwim, true)

	wr := NewWriter()
	mob.Serialize(wr)

	got := newTestMobile(mob.Serial())
	if err := got.Deserialize(NewReader(wr.Bytes(), w)); err != nil {
		t.Fatal(err)
	}
	if got.Name() != "Dupre" || got.Body() != 0x190 || got.Direction() != geo.Down {
		t.Errorf("fields = %q %#x %v", got.Name(), got.Body(), got.Direction())
	}
	if got.Location() != mob.Location() || got.Map() != m {
		t.Errorf("location = %v on %v", got.Location(), got.Map())
	}
	if !got.IsPlayer() || !got.CanSwim() || got.CanFly() || !got.Alive() {
		t.Errorf("flags = %#x", got.Flags())
	}
}

func TestMobileBaseReadsVersionZero(t *testing.T) {
	w, m := newTestWorld(t, 64)
	wr := NewWriter()
	wr.WriteVersion(0)
	wr.WriteString("Iolo")
	wr.WriteUint16(0x191)
	wr.WritePoint3D(geo.Point3D{X: 1, Y: 2, Z: 3})
	wr.WriteMap(m)

	got := newTestMobile(7)
	r := NewReader(wr.Bytes(), w)
	if err := got.Deserialize(r); err != nil {
		t.Fatal(err)
	}
	if got.Name() != "Iolo" || got.Direction() != geo.North || got.Flags() != 0 {
		t.Errorf("v0 upgrade = %q %v %#x", got.Name(), got.Direction(), got.Flags())
	}
	if r.Remaining() != 0 {
		t.Errorf("%d bytes left over", r.Remaining())
	}
}

func TestItemBaseVersions(t *testing.T) {
	w, m := newTestWorld(t, 64)
	bag := spawnItem(t, w, m, geo.Point3D{X: 4, Y: 4})

	v0 := NewWriter()
	v0.WriteVersion(0)
	v0.WriteUint16(0xEED)
	v0.WritePoint3D(geo.Point3D{X: 4, Y: 5})
	v0.WriteMap(m)
	v0.WriteEncodedInt(250)

	old := newTestItem(MinItemSerial + 100)
	if err := old.Deserialize(NewReader(v0.Bytes(), w)); err != nil {
		t.Fatal(err)
	}
	if old.ItemID() != 0xEED || old.Amount() != 250 || !old.Movable() || !old.Visible() || old.Parent() != nil {
		t.Errorf("v0 item = %#x x%d movable=%v visible=%v", old.ItemID(), old.Amount(), old.Movable(), old.Visible())
	}

	cur := spawnItem(t, w, m, geo.Point3D{X: 4, Y: 5})
	cur.SetItemID(0xEED)
	cur.SetAmount(250)
	cur.SetParent(bag)
	cur.SetMovable(false)
	wr := NewWriter()
	cur.Serialize(wr)

	got := newTestItem(cur.Serial())
	if err := got.Deserialize(NewReader(wr.Bytes(), w)); err != nil {
		t.Fatal(err)
	}
	if got.Parent() != Entity(bag) || got.Movable() || got.ItemID() != old.ItemID() || got.Amount() != old.Amount() {
		t.Errorf("v2 item = parent %v movable %v", got.Parent(), got.Movable())
	}
}

func TestFutureVersionIsVersionError(t *testing.T) {
	w, _ := newTestWorld(t, 16)
	wr := NewWriter()
	wr.WriteVersion(mobileVersion + 1)
	got := newTestMobile(1)
	err := got.Deserialize(NewReader(wr.Bytes(), w))
	var ve *VersionError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *VersionError", err)
	}
	if ve.Type != "MobileBase" || ve.Found != mobileVersion+1 || ve.Max != mobileVersion {
		t.Errorf("version error = %+v", ve)
	}
}

func TestReferencesResolveThroughTable(t *testing.T) {
	w, m := newTestWorld(t, 16)
	live := spawnMobile(t, w, m, geo.Point3D{})
	gone := spawnItem(t, w, m, geo.Point3D{})
	goneSerial := gone.Serial()
	gone.Delete()

	wr := NewWriter()
	wr.WriteMobile(live)
	wr.WriteSerial(goneSerial)
	wr.WriteEntity(nil)
	wr.WriteSerial(live.Serial()) // read back as an item: wrong kind
	wr.WriteMap(nil)
	wr.WriteMap(Internal)
	wr.WriteUint8(42) // unknown map id

	r := NewReader(wr.Bytes(), w)
	if r.ReadMobile() != Mobile(live) {
		t.Error("live reference lost")
	}
	if r.ReadEntity() != nil {
		t.Error("dangling reference must resolve to nil")
	}
	if r.ReadEntity() != nil {
		t.Error("null reference must resolve to nil")
	}
	if r.ReadItem() != nil {
		t.Error("mobile serial read as item must be nil")
	}
	if r.ReadMap() != nil || r.ReadMap() != Internal || r.ReadMap() != nil {
		t.Error("map decoding mismatch")
	}
	if r.Err() != nil {
		t.Fatal(r.Err())
	}
}

func TestItemListSkipsDeletedAndDangling(t *testing.T) {
	w, m := newTestWorld(t, 16)
	a := spawnItem(t, w, m, geo.Point3D{})
	b := spawnItem(t, w, m, geo.Point3D{})
	c := spawnItem(t, w, m, geo.Point3D{})
	c.Delete()

	wr := NewWriter()
	wr.WriteItemList([]Item{a, nil, b, c})
	b.Delete() // deleted after save: dangling on load

	got := NewReader(wr.Bytes(), w).ReadItemList()
	if len(got) != 1 || got[0] != Item(a) {
		t.Fatalf("list = %v", got)
	}
}

func TestItemListLengthBeyondRecord(t *testing.T) {
	wr := NewWriter()
	wr.WriteEncodedInt(1000)
	r := NewReader(wr.Bytes(), nil)
	if r.ReadItemList() != nil || r.Err() == nil {
		t.Fatal("oversized list must fail")
	}
}
