package world

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/terrain"
)

// InternalID is the id of the Internal map. Real maps use 0..InternalID-1.
const InternalID = 0x7F

// Internal is the holding space for entities that exist but are not in the
// visible world. It has no sectors; inserting into it is a no-op.
var Internal = &Map{id: InternalID, name: "Internal"}

// Region is a named rectangle with movement rules. No mover crosses the
// boundary of a Locked or Guarded region in either direction.
type Region struct {
	Name    string
	Area    geo.Rect
	Locked  bool
	Guarded bool
}

// Map is a bounded tile space with its own terrain and sector index.
// Sector reads take mu shared; membership changes take it exclusively.
type Map struct {
	id      int
	name    string
	width   int
	height  int
	grid    *terrain.Grid
	tiles   *terrain.TileData
	regions []Region

	sectorSize int
	shift      uint
	cols, rows int

	mu      sync.RWMutex
	sectors []*Sector // lazily allocated, row-major

	queries atomic.Int64
}

// NewMap builds a map over grid. sectorSize must be a power of two.
func NewMap(id int, name string, grid *terrain.Grid, tiles *terrain.TileData, sectorSize int, regions []Region) (*Map, error) {
	if id < 0 || id >= InternalID {
		return nil, fmt.Errorf("map id %d out of range 0..%d", id, InternalID-1)
	}
	if grid == nil {
		return nil, fmt.Errorf("map %d: nil terrain grid", id)
	}
	if sectorSize <= 0 || sectorSize&(sectorSize-1) != 0 {
		return nil, fmt.Errorf("map %d: sector size %d is not a power of two", id, sectorSize)
	}
	if tiles == nil {
		tiles = terrain.NewTileData()
	}
	m := &Map{
		id:         id,
		name:       name,
		width:      grid.Width(),
		height:     grid.Height(),
		grid:       grid,
		tiles:      tiles,
		regions:    regions,
		sectorSize: sectorSize,
		shift:      uint(bits.TrailingZeros(uint(sectorSize))),
	}
	m.cols = (m.width + sectorSize - 1) >> m.shift
	m.rows = (m.height + sectorSize - 1) >> m.shift
	m.sectors = make([]*Sector, m.cols*m.rows)
	return m, nil
}

// FromTerrain builds a map from a loaded map definition.
func FromTerrain(lm terrain.LoadedMap, tiles *terrain.TileData, sectorSize int) (*Map, error) {
	regions := make([]Region, 0, len(lm.Def.Regions))
	for _, rd := range lm.Def.Regions {
		regions = append(regions, Region{
			Name:    rd.Name,
			Area:    geo.Rect{X: rd.X, Y: rd.Y, W: rd.Width, H: rd.Height},
			Locked:  rd.Locked,
			Guarded: rd.Guarded,
		})
	}
	return NewMap(lm.Def.ID, lm.Def.Name, lm.Grid, tiles, sectorSize, regions)
}

func (m *Map) ID() int                  { return m.id }
func (m *Map) Name() string             { return m.name }
func (m *Map) Width() int               { return m.width }
func (m *Map) Height() int              { return m.height }
func (m *Map) Grid() *terrain.Grid      { return m.grid }
func (m *Map) Tiles() *terrain.TileData { return m.tiles }
func (m *Map) SectorSize() int          { return m.sectorSize }
func (m *Map) Bounds() geo.Rect         { return geo.Rect{W: m.width, H: m.height} }
func (m *Map) QueryCount() int64        { return m.queries.Load() }
func (m *Map) String() string           { return m.name }
func (m *Map) InBounds(x, y int) bool   { return x >= 0 && y >= 0 && x < m.width && y < m.height }
func (m *Map) Regions() []Region        { return m.regions }

// RegionAt returns the first region containing (x, y), or nil.
func (m *Map) RegionAt(x, y int) *Region {
	for i := range m.regions {
		if m.regions[i].Area.Contains(x, y) {
			return &m.regions[i]
		}
	}
	return nil
}

// sectorCoords clamps (x, y) onto the map and returns its sector column/row.
func (m *Map) sectorCoords(x, y int) (int, int) {
	x = min(max(x, 0), m.width-1)
	y = min(max(y, 0), m.height-1)
	return x >> m.shift, y >> m.shift
}

// sectorAt requires mu held; alloc requires it exclusively.
func (m *Map) sectorAt(sx, sy int, alloc bool) *Sector {
	if sx < 0 || sy < 0 || sx >= m.cols || sy >= m.rows {
		return nil
	}
	i := sy*m.cols + sx
	s := m.sectors[i]
	if s == nil && alloc {
		s = &Sector{m: m, x: sx, y: sy}
		m.sectors[i] = s
	}
	return s
}

func (m *Map) sectorFor(p geo.Point3D) *Sector {
	sx, sy := m.sectorCoords(p.X, p.Y)
	return m.sectorAt(sx, sy, true)
}

// Sector returns the sector covering (x, y), or nil if none has been
// allocated there yet.
func (m *Map) Sector(x, y int) *Sector {
	if m == nil || m.cols == 0 {
		return nil
	}
	sx, sy := m.sectorCoords(x, y)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sectorAt(sx, sy, false)
}

// SectorOf returns the sector e currently belongs to on this map, or nil.
func (m *Map) SectorOf(e Entity) *Sector {
	if m == nil || e == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s := e.core().sector; s != nil && s.m == m {
		return s
	}
	return nil
}

// Insert adds e to the sector covering its location. It is a no-op for the
// Internal map, for entities on another map, and for entities that are
// deleted, contained in a parent, unregistered, or already placed.
func (m *Map) Insert(e Entity) {
	if m == nil || m == Internal || e == nil {
		return
	}
	c := e.core()
	if c.m != m || !c.placeable() {
		return
	}
	m.insert(c)
}

// Remove takes e out of its sector on this map. No-op if it is not there.
func (m *Map) Remove(e Entity) {
	if m == nil || e == nil {
		return
	}
	m.remove(e.core())
}

// Relocate moves e between sectors after its location changed from old.
// Entity setters call this internally; it is exported for collaborators that
// manage placement themselves. An off-map location drops e from its sector.
func (m *Map) Relocate(e Entity, old geo.Point3D) {
	if m == nil || m == Internal || e == nil {
		return
	}
	c := e.core()
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.sector == nil || c.sector.m != m {
		return
	}
	if !m.InBounds(c.loc.X, c.loc.Y) {
		c.sector.del(c)
		return
	}
	ox, oy := m.sectorCoords(old.X, old.Y)
	nx, ny := m.sectorCoords(c.loc.X, c.loc.Y)
	if ox == nx && oy == ny && c.sector.x == nx && c.sector.y == ny {
		return
	}
	if ns := m.sectorAt(nx, ny, true); ns != c.sector {
		c.sector.del(c)
		ns.add(c)
	}
}

// insert places c in the sector covering its location. A location off the
// map leaves c outside every sector until it moves back in bounds.
func (m *Map) insert(c *entityCore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.sector != nil || !m.InBounds(c.loc.X, c.loc.Y) {
		return
	}
	m.sectorFor(c.loc).add(c)
}

func (m *Map) remove(c *entityCore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.sector == nil || c.sector.m != m {
		return
	}
	c.sector.del(c)
}

// relocate sets c's location and fixes sector membership in one step.
func (m *Map) relocate(c *entityCore, p geo.Point3D) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.loc = p
	if c.sector == nil {
		return
	}
	if !m.InBounds(p.X, p.Y) {
		c.sector.del(c)
		return
	}
	if ns := m.sectorFor(p); ns != c.sector {
		c.sector.del(c)
		ns.add(c)
	}
}

// sectorCount returns how many allocated sectors hold e. Used by tests to
// check the single-membership invariant.
func (m *Map) sectorCount(e Entity) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sectors {
		if s == nil {
			continue
		}
		for _, x := range s.list(e.Kind()) {
			if x == e {
				n++
			}
		}
	}
	return n
}
