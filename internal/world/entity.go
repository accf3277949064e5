package world

import "github.com/runeshard/server/internal/geo"

// Entity is the contract shared by every mobile and item. Implementations
// embed MobileBase or ItemBase, which own location, map and sector state.
//
// Serialize writes the base record first and then the type's own version and
// fields. Deserialize mirrors that order exactly. Once a version has shipped
// its field sequence never changes; new fields go under a new version.
//
// Entity fields are owned by the world tick goroutine. Other goroutines may
// look entities up and query sectors, but must enqueue mutations onto the tick.
type Entity interface {
	Serial() Serial
	Kind() Kind
	// TypeTag names the registered type used to reconstruct the entity on load.
	TypeTag() string
	Location() geo.Point3D
	Map() *Map
	Deleted() bool
	MoveToWorld(p geo.Point3D, m *Map)
	SetLocation(p geo.Point3D)
	Delete()
	Serialize(w *Writer)
	Deserialize(r *Reader) error

	core() *entityCore
}

// DeleteHook is implemented by entities that release dependents (children,
// followers) when they are deleted.
type DeleteHook interface {
	OnDelete()
}

type entityCore struct {
	self    Entity
	kind    Kind
	serial  Serial
	loc     geo.Point3D
	m       *Map
	deleted bool
	world   *World
	parent  Entity // items only; contained items are never in a sector

	sector *Sector
	slot   int
}

func (c *entityCore) core() *entityCore { return c }

func (c *entityCore) Serial() Serial        { return c.serial }
func (c *entityCore) Kind() Kind            { return c.kind }
func (c *entityCore) Location() geo.Point3D { return c.loc }
func (c *entityCore) Map() *Map             { return c.m }
func (c *entityCore) Deleted() bool         { return c.deleted }

// World returns the world the entity is registered in, or nil.
func (c *entityCore) World() *World { return c.world }

// placeable reports whether the entity belongs in a sector right now.
func (c *entityCore) placeable() bool {
	return c.world != nil && !c.deleted && c.parent == nil && c.m != nil && c.m != Internal
}

// MoveToWorld sets location and map together, moving the entity between
// sector maps as needed.
func (c *entityCore) MoveToWorld(p geo.Point3D, m *Map) {
	if c.deleted {
		return
	}
	if c.m == m {
		c.SetLocation(p)
		return
	}
	if c.sector != nil {
		c.m.remove(c)
	}
	c.loc = p
	c.m = m
	if c.placeable() {
		m.insert(c)
	}
}

// SetLocation moves the entity on its current map.
func (c *entityCore) SetLocation(p geo.Point3D) {
	if c.deleted || p == c.loc {
		return
	}
	if c.sector == nil {
		c.loc = p
		// Back on the map after standing off it.
		if c.placeable() {
			c.m.insert(c)
		}
		return
	}
	c.m.relocate(c, p)
}

// Internalize moves the entity to the Internal map, keeping its location.
func (c *entityCore) Internalize() {
	c.MoveToWorld(c.loc, Internal)
}

// Delete removes the entity from its sector and from the object table and
// marks it deleted. The Serial is not recycled; references to it resolve to
// nil after the next load.
func (c *entityCore) Delete() {
	if c.deleted {
		return
	}
	if h, ok := c.self.(DeleteHook); ok {
		h.OnDelete()
	}
	if c.sector != nil {
		c.m.remove(c)
	}
	c.deleted = true
	if c.world != nil {
		c.world.table.Unregister(c.self)
	}
}
