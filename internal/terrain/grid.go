package terrain

// LandTile is the terrain cell at one X/Y.
type LandTile struct {
	ID uint16
	Z  int8
}

// Ignored reports whether the land graphic is a no-draw placeholder that
// never acts as a walkable surface.
func (t LandTile) Ignored() bool {
	return t.ID == 2 || t.ID == 0x1DB || (t.ID >= 0x1AE && t.ID <= 0x1B5)
}

// StaticTile is a fixed, non-persisted world graphic (walls, floors, trees).
type StaticTile struct {
	ID uint16
	Z  int8
}

// Grid holds the land and static tiles of one map. The land layer is a flat
// array indexed [x * height + y]; statics are sparse.
// Read-only after load; safe for concurrent readers.
type Grid struct {
	width   int
	height  int
	land    []LandTile
	statics map[int][]StaticTile
}

// NewGrid builds a width x height grid filled with the given land tile.
func NewGrid(width, height int, fill LandTile) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	land := make([]LandTile, width*height)
	for i := range land {
		land[i] = fill
	}
	return &Grid{
		width:   width,
		height:  height,
		land:    land,
		statics: make(map[int][]StaticTile),
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return 0, false
	}
	return x*g.height + y, true
}

// Land returns the land tile at (x, y), or the zero tile when out of bounds.
func (g *Grid) Land(x, y int) LandTile {
	i, ok := g.index(x, y)
	if !ok {
		return LandTile{}
	}
	return g.land[i]
}

// SetLand replaces the land tile at (x, y). Out-of-bounds writes are dropped.
func (g *Grid) SetLand(x, y int, t LandTile) {
	if i, ok := g.index(x, y); ok {
		g.land[i] = t
	}
}

// Statics returns the static tiles at (x, y). The slice must not be modified.
func (g *Grid) Statics(x, y int) []StaticTile {
	i, ok := g.index(x, y)
	if !ok {
		return nil
	}
	return g.statics[i]
}

// AddStatic places a static tile at (x, y).
func (g *Grid) AddStatic(x, y int, t StaticTile) {
	if i, ok := g.index(x, y); ok {
		g.statics[i] = append(g.statics[i], t)
	}
}

// StaticCount returns the number of cells carrying statics.
func (g *Grid) StaticCount() int { return len(g.statics) }

// AverageZ samples the four land corners of the cell at (x, y) and returns
// the lowest corner, the walkable centre and the highest corner.
func (g *Grid) AverageZ(x, y int) (low, avg, top int) {
	zTop := g.edgeZ(x, y)
	zLeft := g.edgeZ(x, y+1)
	zRight := g.edgeZ(x+1, y)
	zBottom := g.edgeZ(x+1, y+1)

	low = min(zTop, zLeft, zRight, zBottom)
	top = max(zTop, zLeft, zRight, zBottom)

	if abs(zTop-zBottom) > abs(zLeft-zRight) {
		avg = floorAverage(zLeft, zRight)
	} else {
		avg = floorAverage(zTop, zBottom)
	}
	return low, avg, top
}

// edgeZ reads land altitude with coordinates clamped to the grid, so the last
// row and column sample themselves instead of the void past the map edge.
func (g *Grid) edgeZ(x, y int) int {
	if g.width == 0 || g.height == 0 {
		return 0
	}
	x = min(max(x, 0), g.width-1)
	y = min(max(y, 0), g.height-1)
	return int(g.land[x*g.height+y].Z)
}

func floorAverage(a, b int) int {
	v := a + b
	if v < 0 {
		v--
	}
	return v / 2
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
