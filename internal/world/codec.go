package world

import (
	"fmt"

	"github.com/runeshard/server/internal/serialize"
)

// Map bytes on the wire. Real maps use their id.
const (
	wireNullMap byte = 0xFF
)

// Writer adds entity-aware encodings on top of the binary primitives.
// References are written as Serials, never inline.
type Writer struct {
	*serialize.Writer
}

func NewWriter() *Writer {
	return &Writer{Writer: serialize.NewWriter()}
}

// WriteVersion starts a type's record.
func (w *Writer) WriteVersion(v int) { w.WriteEncodedInt(v) }

func (w *Writer) WriteSerial(s Serial) { w.WriteInt32(int32(s)) }

// WriteEntity writes e's Serial, or MinusOne for nil and deleted entities.
func (w *Writer) WriteEntity(e Entity) {
	if e == nil || e.Deleted() {
		w.WriteSerial(MinusOne)
		return
	}
	w.WriteSerial(e.Serial())
}

func (w *Writer) WriteMobile(m Mobile) { w.WriteEntity(m) }
func (w *Writer) WriteItem(i Item)     { w.WriteEntity(i) }

func (w *Writer) WriteMap(m *Map) {
	if m == nil {
		w.WriteUint8(wireNullMap)
		return
	}
	w.WriteUint8(uint8(m.id))
}

// WriteItemList writes the live items of list.
func (w *Writer) WriteItemList(list []Item) {
	live := 0
	for _, it := range list {
		if it != nil && !it.Deleted() {
			live++
		}
	}
	w.WriteEncodedInt(live)
	for _, it := range list {
		if it != nil && !it.Deleted() {
			w.WriteSerial(it.Serial())
		}
	}
}

// WriteMobileList writes the live mobiles of list.
func (w *Writer) WriteMobileList(list []Mobile) {
	live := 0
	for _, m := range list {
		if m != nil && !m.Deleted() {
			live++
		}
	}
	w.WriteEncodedInt(live)
	for _, m := range list {
		if m != nil && !m.Deleted() {
			w.WriteSerial(m.Serial())
		}
	}
}

// Reader resolves Serial references through the world's object table. A
// Serial with no live entity resolves to nil.
type Reader struct {
	*serialize.Reader
	world *World
}

func NewReader(data []byte, w *World) *Reader {
	return &Reader{Reader: serialize.NewReader(data), world: w}
}

func (r *Reader) World() *World { return r.world }

// ReadVersion reads a type's record version and rejects anything outside
// [0, max] with a *VersionError, which also becomes the sticky error.
func (r *Reader) ReadVersion(typeName string, max int) (int, error) {
	v := r.ReadEncodedInt()
	if err := r.Err(); err != nil {
		return 0, err
	}
	if v < 0 || v > max {
		err := &VersionError{Type: typeName, Found: v, Max: max}
		r.Fail(err)
		return v, err
	}
	return v, nil
}

func (r *Reader) ReadSerial() Serial { return Serial(r.ReadInt32()) }

func (r *Reader) ReadEntity() Entity {
	s := r.ReadSerial()
	if r.world == nil || !s.IsValid() {
		return nil
	}
	return r.world.FindEntity(s)
}

// ReadMobile returns nil when the serial is missing or names an item.
func (r *Reader) ReadMobile() Mobile {
	m, _ := r.ReadEntity().(Mobile)
	return m
}

// ReadItem returns nil when the serial is missing or names a mobile.
func (r *Reader) ReadItem() Item {
	it, _ := r.ReadEntity().(Item)
	return it
}

// ReadMap returns nil for the null marker and for ids this world does not
// have loaded.
func (r *Reader) ReadMap() *Map {
	id := r.ReadUint8()
	switch {
	case id == wireNullMap:
		return nil
	case int(id) == InternalID:
		return Internal
	case r.world == nil:
		return nil
	default:
		return r.world.Map(int(id))
	}
}

// ReadItemList drops entries that no longer resolve.
func (r *Reader) ReadItemList() []Item {
	n := r.ReadEncodedInt()
	if n < 0 || n > r.Remaining()/4 {
		r.Fail(fmt.Errorf("world: reference list length %d exceeds record", n))
		return nil
	}
	out := make([]Item, 0, n)
	for range n {
		if it := r.ReadItem(); it != nil {
			out = append(out, it)
		}
	}
	return out
}

func (r *Reader) ReadMobileList() []Mobile {
	n := r.ReadEncodedInt()
	if n < 0 || n > r.Remaining()/4 {
		r.Fail(fmt.Errorf("world: reference list length %d exceeds record", n))
		return nil
	}
	out := make([]Mobile, 0, n)
	for range n {
		if m := r.ReadMobile(); m != nil {
			out = append(out, m)
		}
	}
	return out
}
