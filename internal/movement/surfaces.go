package movement

import (
	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/terrain"
	"github.com/runeshard/server/internal/world"
)

// column is everything standing on one tile: land, statics, dynamic items
// and (for the destination only) mobiles.
type column struct {
	tiles *terrain.TileData

	land      terrain.LandTile
	landFlags terrain.Flag
	landLow   int
	landAvg   int
	landTop   int

	statics []terrain.StaticTile
	items   []world.Item
	mobiles []world.Mobile
}

func gather(mv Mover, m *world.Map, x, y int, withMobiles bool) column {
	g := m.Grid()
	c := column{
		tiles:   m.Tiles(),
		land:    g.Land(x, y),
		statics: g.Statics(x, y),
	}
	c.landFlags = c.tiles.Land(c.land.ID).Flags
	c.landLow, c.landAvg, c.landTop = g.AverageZ(x, y)

	filter := world.Items
	if withMobiles {
		filter = world.All
	}
	r := m.Query(geo.Point3D{X: x, Y: y}, 0, filter)
	defer r.Close()
	for e := range r.All() {
		switch e := e.(type) {
		case world.Item:
			if mv.CanMoveOverObstacles && e.Movable() && c.tiles.Item(e.ItemID()).Impassable() {
				continue
			}
			c.items = append(c.items, e)
		case world.Mobile:
			if mv.Self == nil || e != mv.Self {
				c.mobiles = append(c.mobiles, e)
			}
		}
	}
	return c
}

// landBlocks applies the mover's water rules to the land tile.
func (c *column) landBlocks(mv Mover) bool {
	wet := c.landFlags&terrain.Wet != 0
	if c.landFlags&terrain.Impassable != 0 && mv.CanSwim && wet {
		return false
	}
	if mv.CantWalkLand && !wet {
		return true
	}
	return c.landFlags&terrain.Impassable != 0
}

// standable reports whether a tile with flags offers the mover a surface.
func standable(mv Mover, flags terrain.Flag) bool {
	wet := flags&terrain.Wet != 0
	if flags&terrain.ImpassableSurface != terrain.Surface && !(mv.CanSwim && wet) {
		return false
	}
	return !mv.CantWalkLand || wet
}

// startZ finds the surface the mover is standing on: the highest surface at
// or below its Z. It returns the surface base and the top the mover steps
// from.
func startZ(mv Mover, c column) (low, top int) {
	z := mv.Location.Z
	var center int
	set := false

	if !c.land.Ignored() && !c.landBlocks(mv) && z >= c.landAvg {
		low, center, top = c.landLow, c.landAvg, c.landTop
		set = true
	}

	consider := func(baseZ int, data terrain.ItemData) {
		calcTop := baseZ + data.CalcHeight()
		if set && calcTop < center {
			return
		}
		wet := data.Flags&terrain.Wet != 0
		if data.Flags&terrain.Surface == 0 && !(mv.CanSwim && wet) {
			return
		}
		if z < calcTop || (mv.CantWalkLand && !wet) {
			return
		}
		low = baseZ
		center = calcTop
		if t := baseZ + data.Height; !set || t > top {
			top = t
		}
		set = true
	}
	for _, st := range c.statics {
		consider(int(st.Z), c.tiles.Item(st.ID))
	}
	for _, it := range c.items {
		consider(it.Location().Z, c.tiles.Item(it.ItemID()))
	}

	if !set {
		return z, z
	}
	if z > top {
		top = z
	}
	return low, top
}

// best chooses the standing Z on c reachable from (startZ, startTop). Among
// candidates that pass step and clearance checks it keeps the one closest to
// the mover's current Z, preferring the lower on ties.
func best(mv Mover, c column, startZ, startTop int) (bool, int) {
	stepTop := startTop + StepHeight
	checkTop := startZ + PersonHeight
	considerLand := !c.land.Ignored()
	curZ := mv.Location.Z

	ok := false
	newZ := 0
	closer := func(z int) bool {
		if !ok {
			return true
		}
		d := abs(z-curZ) - abs(newZ-curZ)
		return d < 0 || (d == 0 && z < newZ)
	}

	tryItem := func(itemZ int, data terrain.ItemData) {
		if !standable(mv, data.Flags) {
			return
		}
		ourZ := itemZ + data.CalcHeight()
		if !closer(ourZ) {
			return
		}
		testTop := max(checkTop, ourZ+PersonHeight)
		itemTop := itemZ
		if !data.Bridge() {
			itemTop += data.Height
		}
		if stepTop < itemTop {
			return
		}
		// A surface buried under a land slope is not reachable.
		landCheck := itemZ + min(data.Height, StepHeight)
		if considerLand && landCheck < c.landAvg && c.landAvg > ourZ && testTop > c.landLow {
			return
		}
		if c.clear(mv, ourZ, testTop) {
			newZ = ourZ
			ok = true
		}
	}
	for _, st := range c.statics {
		tryItem(int(st.Z), c.tiles.Item(st.ID))
	}
	for _, it := range c.items {
		tryItem(it.Location().Z, c.tiles.Item(it.ItemID()))
	}

	if considerLand && !c.landBlocks(mv) && stepTop >= c.landLow {
		ourZ := c.landAvg
		testTop := max(checkTop, ourZ+PersonHeight)
		if closer(ourZ) && c.clear(mv, ourZ, testTop) {
			newZ = ourZ
			ok = true
		}
	}
	return ok, newZ
}

// clear reports whether the vertical span [ourZ, ourTop) is free of
// blocking statics and items.
func (c *column) clear(mv Mover, ourZ, ourTop int) bool {
	for _, st := range c.statics {
		data := c.tiles.Item(st.ID)
		if data.Flags&terrain.ImpassableSurface == 0 {
			continue
		}
		if z := int(st.Z); z+data.CalcHeight() > ourZ && ourTop > z {
			return false
		}
	}
	ignoreDoors := mv.IgnoresDoors()
	ghost := mv.Ghost()
	for _, it := range c.items {
		data := c.tiles.Item(it.ItemID())
		if data.Flags&terrain.ImpassableSurface == 0 {
			continue
		}
		if ignoreDoors && data.Door() {
			continue
		}
		if ghost && data.Impassable() {
			continue
		}
		if z := it.Location().Z; z+data.CalcHeight() > ourZ && ourTop > z {
			return false
		}
	}
	return true
}

// mobileBlocks reports whether another mobile occupies the span at z.
func (c *column) mobileBlocks(mv Mover, z int) bool {
	for _, other := range c.mobiles {
		oz := other.Location().Z
		if oz+MobileClearance > z && z+MobileClearance > oz && !mv.canMoveOver(other) {
			return true
		}
	}
	return false
}

func (c *column) ghostBarrier() bool {
	for _, it := range c.items {
		if b, ok := it.(GhostBarrier); ok && b.BlocksGhosts() {
			return true
		}
	}
	return false
}

// highestTop is the tallest land or static top on the column; flyers settle
// no lower than it.
func (c *column) highestTop() int {
	top := c.landTop
	for _, st := range c.statics {
		top = max(top, int(st.Z)+c.tiles.Item(st.ID).Height)
	}
	return top
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
