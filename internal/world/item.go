package world

// Item is anything that is not a mobile. Items with a parent live inside it
// and are never placed in a sector.
type Item interface {
	Entity
	ItemID() uint16
	Amount() int
	Parent() Entity
	Movable() bool
	Visible() bool

	itemBase() *ItemBase
}

const itemVersion = 2

// ItemBase implements the Entity and Item plumbing. Embed it and call
// InitItem from the type's constructor.
type ItemBase struct {
	entityCore
	itemID  uint16
	amount  int
	movable bool
	visible bool
}

// InitItem binds the base to its outer value and serial.
func (i *ItemBase) InitItem(self Item, s Serial) {
	i.self = self
	i.kind = KindItem
	i.serial = s
	i.amount = 1
	i.movable = true
	i.visible = true
}

func (i *ItemBase) itemBase() *ItemBase { return i }

func (i *ItemBase) ItemID() uint16 { return i.itemID }
func (i *ItemBase) Amount() int    { return i.amount }
func (i *ItemBase) Parent() Entity { return i.parent }
func (i *ItemBase) Movable() bool  { return i.movable }
func (i *ItemBase) Visible() bool  { return i.visible }

func (i *ItemBase) SetItemID(id uint16) { i.itemID = id }
func (i *ItemBase) SetMovable(v bool)   { i.movable = v }
func (i *ItemBase) SetVisible(v bool)   { i.visible = v }

func (i *ItemBase) SetAmount(n int) {
	if n < 1 {
		n = 1
	}
	i.amount = n
}

// SetParent moves the item into p, or back onto its map when p is nil.
func (i *ItemBase) SetParent(p Entity) {
	if i.deleted || p == i.parent {
		return
	}
	if p != nil {
		if i.sector != nil {
			i.m.remove(&i.entityCore)
		}
		i.parent = p
		return
	}
	i.parent = nil
	if i.placeable() {
		i.m.insert(&i.entityCore)
	}
}

// RootParent follows the parent chain to the outermost holder.
func (i *ItemBase) RootParent() Entity {
	var root Entity
	for p := i.parent; p != nil; {
		root = p
		it, ok := p.(Item)
		if !ok {
			break
		}
		p = it.Parent()
	}
	return root
}

// Serialize writes the item base record, newest fields first.
func (i *ItemBase) Serialize(w *Writer) {
	w.WriteVersion(itemVersion)

	// 2
	w.WriteBool(i.movable)
	w.WriteBool(i.visible)
	// 1
	w.WriteEntity(i.parent)
	// 0
	w.WriteUint16(i.itemID)
	w.WritePoint3D(i.loc)
	w.WriteMap(i.m)
	w.WriteEncodedInt(i.amount)
}

func (i *ItemBase) Deserialize(r *Reader) error {
	version, err := r.ReadVersion("ItemBase", itemVersion)
	if err != nil {
		return err
	}
	switch version {
	case 2:
		i.movable = r.ReadBool()
		i.visible = r.ReadBool()
		fallthrough
	case 1:
		i.parent = r.ReadEntity()
		fallthrough
	case 0:
		i.itemID = r.ReadUint16()
		i.loc = r.ReadPoint3D()
		i.m = r.ReadMap()
		i.amount = r.ReadEncodedInt()
	}
	if version < 2 {
		i.movable = true
		i.visible = true
	}
	if i.amount < 1 {
		i.amount = 1
	}
	return r.Err()
}
