package entities

import "github.com/runeshard/server/internal/world"

// BarrierID is the invisible graphic used for barriers.
const BarrierID uint16 = 0x1

// GhostBarrier stops ghosts. Living movers see it only through its tile
// flags, which are empty for BarrierID.
type GhostBarrier struct {
	world.ItemBase
}

func NewGhostBarrier(s world.Serial) *GhostBarrier {
	b := &GhostBarrier{}
	b.InitItem(b, s)
	b.SetItemID(BarrierID)
	b.SetMovable(false)
	b.SetVisible(false)
	return b
}

func (b *GhostBarrier) TypeTag() string    { return TagGhostBarrier }
func (b *GhostBarrier) BlocksGhosts() bool { return true }

func (b *GhostBarrier) Serialize(w *world.Writer) {
	b.ItemBase.Serialize(w)
	w.WriteVersion(0)
}

func (b *GhostBarrier) Deserialize(r *world.Reader) error {
	if err := b.ItemBase.Deserialize(r); err != nil {
		return err
	}
	if _, err := r.ReadVersion(TagGhostBarrier, 0); err != nil {
		return err
	}
	return r.Err()
}

// Static is a plain placed item such as a crate or a floor tile. Whether it
// blocks or offers a surface comes from its graphic's tile flags.
type Static struct {
	world.ItemBase
}

func NewStatic(s world.Serial) *Static {
	st := &Static{}
	st.InitItem(st, s)
	return st
}

func (st *Static) TypeTag() string { return TagStatic }

func (st *Static) Serialize(w *world.Writer) {
	st.ItemBase.Serialize(w)
	w.WriteVersion(0)
}

func (st *Static) Deserialize(r *world.Reader) error {
	if err := st.ItemBase.Deserialize(r); err != nil {
		return err
	}
	if _, err := r.ReadVersion(TagStatic, 0); err != nil {
		return err
	}
	return r.Err()
}
