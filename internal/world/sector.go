package world

import "github.com/runeshard/server/internal/geo"

// Sector is one square cell of a map's spatial index. Removal swaps the
// last element into the freed slot, so order inside a sector is not stable.
type Sector struct {
	m       *Map
	x, y    int
	mobiles []Entity
	items   []Entity
}

// Bounds returns the tile rectangle the sector covers.
func (s *Sector) Bounds() geo.Rect {
	size := s.m.sectorSize
	return geo.Rect{X: s.x * size, Y: s.y * size, W: size, H: size}
}

// Mobiles returns a copy of the mobiles in the sector.
func (s *Sector) Mobiles() []Mobile {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]Mobile, 0, len(s.mobiles))
	for _, e := range s.mobiles {
		out = append(out, e.(Mobile))
	}
	return out
}

// Items returns a copy of the items in the sector.
func (s *Sector) Items() []Item {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e.(Item))
	}
	return out
}

func (s *Sector) Len() int {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return len(s.mobiles) + len(s.items)
}

func (s *Sector) list(k Kind) []Entity {
	if k == KindMobile {
		return s.mobiles
	}
	return s.items
}

func (s *Sector) listPtr(k Kind) *[]Entity {
	if k == KindMobile {
		return &s.mobiles
	}
	return &s.items
}

func (s *Sector) add(c *entityCore) {
	list := s.listPtr(c.kind)
	c.slot = len(*list)
	c.sector = s
	*list = append(*list, c.self)
}

func (s *Sector) del(c *entityCore) {
	list := s.listPtr(c.kind)
	last := len(*list) - 1
	if c.slot != last {
		moved := (*list)[last]
		(*list)[c.slot] = moved
		moved.core().slot = c.slot
	}
	(*list)[last] = nil
	*list = (*list)[:last]
	c.sector = nil
	c.slot = -1
}
