package entities

import "github.com/runeshard/server/internal/world"

const doorVersion = 1

// Default door graphics: a closed wooden door and its open frame.
const (
	DoorClosedID uint16 = 0x6A5
	DoorOpenID   uint16 = 0x6A6
)

// Door swaps its graphic between a closed (impassable, door-flagged) id and
// an open one. Version 1 added locks.
type Door struct {
	world.ItemBase
	open     bool
	closedID uint16
	openID   uint16
	locked   bool
	keyValue uint32
}

func NewDoor(s world.Serial) *Door {
	d := &Door{closedID: DoorClosedID, openID: DoorOpenID}
	d.InitItem(d, s)
	d.SetMovable(false)
	d.SetItemID(d.closedID)
	return d
}

func (d *Door) TypeTag() string { return TagDoor }

func (d *Door) IsOpen() bool         { return d.open }
func (d *Door) Locked() bool         { return d.locked }
func (d *Door) KeyValue() uint32     { return d.keyValue }
func (d *Door) SetLocked(v bool)     { d.locked = v }
func (d *Door) SetKeyValue(v uint32) { d.keyValue = v }

// SetGraphics sets the closed and open item ids.
func (d *Door) SetGraphics(closed, open uint16) {
	d.closedID, d.openID = closed, open
	d.sync()
}

// Open opens the door unless it is locked.
func (d *Door) Open() bool {
	if d.locked {
		return false
	}
	d.open = true
	d.sync()
	return true
}

func (d *Door) Close() {
	d.open = false
	d.sync()
}

// Unlock opens the lock if k matches it.
func (d *Door) Unlock(k *Key) bool {
	if k == nil || !d.locked || k.KeyValue() == 0 || k.KeyValue() != d.keyValue {
		return false
	}
	d.locked = false
	return true
}

func (d *Door) sync() {
	if d.open {
		d.SetItemID(d.openID)
	} else {
		d.SetItemID(d.closedID)
	}
}

func (d *Door) Serialize(w *world.Writer) {
	d.ItemBase.Serialize(w)
	w.WriteVersion(doorVersion)

	// 1
	w.WriteBool(d.locked)
	w.WriteUint32(d.keyValue)
	// 0
	w.WriteBool(d.open)
	w.WriteUint16(d.closedID)
	w.WriteUint16(d.openID)
}

func (d *Door) Deserialize(r *world.Reader) error {
	if err := d.ItemBase.Deserialize(r); err != nil {
		return err
	}
	version, err := r.ReadVersion(TagDoor, doorVersion)
	if err != nil {
		return err
	}
	switch version {
	case 1:
		d.locked = r.ReadBool()
		d.keyValue = r.ReadUint32()
		fallthrough
	case 0:
		d.open = r.ReadBool()
		d.closedID = r.ReadUint16()
		d.openID = r.ReadUint16()
	}
	d.sync()
	return r.Err()
}
