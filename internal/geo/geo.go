// Package geo holds the coordinate and direction types shared by the terrain,
// world and movement packages.
package geo

import "fmt"

// Point2D is a tile coordinate on a map.
type Point2D struct {
	X, Y int
}

// Point3D is a tile coordinate plus altitude.
type Point3D struct {
	X, Y, Z int
}

var Zero = Point3D{}

func (p Point3D) String() string { return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z) }

// To2D drops the altitude.
func (p Point3D) To2D() Point2D { return Point2D{X: p.X, Y: p.Y} }

// InRange reports whether q lies within Euclidean distance r of p on the X/Y plane.
func (p Point3D) InRange(q Point3D, r int) bool {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx+dy*dy <= r*r
}

// Rect is a half-open tile rectangle [X, X+W) x [Y, Y+H).
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Intersect returns the overlap of r and o, or an empty rect.
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+r.W, o.X+o.W)
	y1 := min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
