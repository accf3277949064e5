package geo

// Direction is one of the eight compass headings. The high bit marks a
// running step and is not part of the heading itself.
type Direction byte

const (
	North Direction = iota
	Right           // north-east
	East
	Down // south-east
	South
	Left // south-west
	West
	Up // north-west

	Running Direction = 0x80
	mask    Direction = 0x07
)

var directionNames = [8]string{"North", "Right", "East", "Down", "South", "Left", "West", "Up"}

// direction deltas: 0=N, 1=NE, 2=E, 3=SE, 4=S, 5=SW, 6=W, 7=NW
var headingDX = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
var headingDY = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}

// Mask strips the running flag.
func (d Direction) Mask() Direction { return d & mask }

func (d Direction) String() string {
	s := directionNames[d.Mask()]
	if d&Running != 0 {
		return s + "|Running"
	}
	return s
}

// Diagonal reports whether the heading moves on both axes.
func (d Direction) Diagonal() bool { return d.Mask()&1 == 1 }

// Offset returns the X/Y delta of one step in this direction.
func (d Direction) Offset() (dx, dy int) {
	h := d.Mask()
	return headingDX[h], headingDY[h]
}

// Clockwise returns the heading one step to the right.
func (d Direction) Clockwise() Direction { return (d.Mask() + 1) & mask }

// CounterClockwise returns the heading one step to the left.
func (d Direction) CounterClockwise() Direction { return (d.Mask() - 1) & mask }

// Step returns p moved one tile in direction d, keeping Z.
func Step(p Point3D, d Direction) Point3D {
	dx, dy := d.Offset()
	return Point3D{X: p.X + dx, Y: p.Y + dy, Z: p.Z}
}

// DirectionTo returns the heading that best points from (x, y) toward (tx, ty).
func DirectionTo(x, y, tx, ty int) Direction {
	dx := sign(tx - x)
	dy := sign(ty - y)
	for h := 0; h < 8; h++ {
		if headingDX[h] == dx && headingDY[h] == dy {
			return Direction(h)
		}
	}
	return North
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
