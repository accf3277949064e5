package entities

import "github.com/runeshard/server/internal/world"

const keyVersion = 2

// KeyID is the graphic of an iron key.
const KeyID uint16 = 0x100E

// Key opens locks carrying the same key value.
//
// Version history:
//
//	0: key value
//	1: description
//	2: link to the door or container the key was cut for
type Key struct {
	world.ItemBase
	keyValue    uint32
	description string
	link        world.Item
}

func NewKey(s world.Serial) *Key {
	k := &Key{}
	k.InitItem(k, s)
	k.SetItemID(KeyID)
	return k
}

func (k *Key) TypeTag() string { return TagKey }

func (k *Key) KeyValue() uint32        { return k.keyValue }
func (k *Key) Description() string     { return k.description }
func (k *Key) Link() world.Item        { return k.link }
func (k *Key) SetKeyValue(v uint32)    { k.keyValue = v }
func (k *Key) SetDescription(s string) { k.description = s }
func (k *Key) SetLink(it world.Item)   { k.link = it }

// CutFor sets the key to open d.
func (k *Key) CutFor(d *Door) {
	k.keyValue = d.KeyValue()
	k.link = d
}

func (k *Key) Serialize(w *world.Writer) {
	k.ItemBase.Serialize(w)
	w.WriteVersion(keyVersion)

	// 2
	w.WriteItem(k.link)
	// 1
	w.WriteString(k.description)
	// 0
	w.WriteUint32(k.keyValue)
}

func (k *Key) Deserialize(r *world.Reader) error {
	if err := k.ItemBase.Deserialize(r); err != nil {
		return err
	}
	version, err := r.ReadVersion(TagKey, keyVersion)
	if err != nil {
		return err
	}
	switch version {
	case 2:
		k.link = r.ReadItem()
		fallthrough
	case 1:
		k.description = r.ReadString()
		fallthrough
	case 0:
		k.keyValue = r.ReadUint32()
	}
	return r.Err()
}
