package entities

import (
	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/world"
)

const creatureVersion = 1

// Creature is a mobile that may be controlled by another mobile and, from
// version 1, wanders around a home point.
type Creature struct {
	world.MobileBase
	master     world.Mobile
	home       geo.Point3D
	rangeHome  int
	controlled bool
}

func NewCreature(s world.Serial) *Creature {
	c := &Creature{rangeHome: 10}
	c.InitMobile(c, s)
	return c
}

func (c *Creature) TypeTag() string { return TagCreature }

func (c *Creature) Master() world.Mobile { return c.master }
func (c *Creature) Controlled() bool     { return c.controlled && c.master != nil && !c.master.Deleted() }
func (c *Creature) Home() geo.Point3D    { return c.home }
func (c *Creature) RangeHome() int       { return c.rangeHome }

// SetMaster binds the creature to m; nil releases it.
func (c *Creature) SetMaster(m world.Mobile) {
	c.master = m
	c.controlled = m != nil
}

func (c *Creature) SetHome(p geo.Point3D, rng int) {
	c.home = p
	c.rangeHome = rng
}

func (c *Creature) Serialize(w *world.Writer) {
	c.MobileBase.Serialize(w)
	w.WriteVersion(creatureVersion)

	// 1
	w.WritePoint3D(c.home)
	w.WriteEncodedInt(c.rangeHome)
	// 0
	w.WriteMobile(c.master)
	w.WriteBool(c.controlled)
}

func (c *Creature) Deserialize(r *world.Reader) error {
	if err := c.MobileBase.Deserialize(r); err != nil {
		return err
	}
	version, err := r.ReadVersion(TagCreature, creatureVersion)
	if err != nil {
		return err
	}
	switch version {
	case 1:
		c.home = r.ReadPoint3D()
		c.rangeHome = r.ReadEncodedInt()
		fallthrough
	case 0:
		c.master = r.ReadMobile()
		c.controlled = r.ReadBool()
	}
	if version < 1 {
		c.home = c.Location()
	}
	if c.master == nil {
		c.controlled = false
	}
	return r.Err()
}
