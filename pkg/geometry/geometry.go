// Package geometry contains the integer grid primitives shared by the
// simulation and the pathfinder.
package geometry

import (
	"fmt"
	"math"
	"sort"
)

type Point struct {
	X int
	Y int
}

func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

func (p Point) Manhattan(other Point) int {
	return abs(p.X-other.X) + abs(p.Y-other.Y)
}

func (p Point) Distance(other Point) float64 {
	dx := float64(p.X - other.X)
	dy := float64(p.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Less orders points by row, then column.
func (p Point) Less(other Point) bool {
	if p.Y != other.Y {
		return p.Y < other.Y
	}
	return p.X < other.X
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

type Dimension struct {
	Width  int
	Height int
}

func (d Dimension) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < d.Width && p.Y < d.Height
}

func (d Dimension) Area() int {
	return d.Width * d.Height
}

// GridLocation is an integer footprint anchored at its top-left origin.
type GridLocation struct {
	Origin    Point
	Dimension Dimension
}

func NewGridLocation(x, y, width, height int) GridLocation {
	return GridLocation{Origin: Point{X: x, Y: y}, Dimension: Dimension{Width: width, Height: height}}
}

// Points returns every cell covered by the footprint, row by row.
func (l GridLocation) Points() []Point {
	points := make([]Point, 0, l.Dimension.Area())
	for y := 0; y < l.Dimension.Height; y++ {
		for x := 0; x < l.Dimension.Width; x++ {
			points = append(points, l.Origin.Add(x, y))
		}
	}
	return points
}

func (l GridLocation) Contains(p Point) bool {
	return p.X >= l.Origin.X && p.Y >= l.Origin.Y &&
		p.X < l.Origin.X+l.Dimension.Width && p.Y < l.Origin.Y+l.Dimension.Height
}

// Intersects reports whether the two footprints share at least one cell.
func (l GridLocation) Intersects(other GridLocation) bool {
	return l.Origin.X < other.Origin.X+other.Dimension.Width &&
		other.Origin.X < l.Origin.X+l.Dimension.Width &&
		l.Origin.Y < other.Origin.Y+other.Dimension.Height &&
		other.Origin.Y < l.Origin.Y+l.Dimension.Height
}

// FitsIn reports whether the whole footprint lies inside the bounds.
func (l GridLocation) FitsIn(bounds Dimension) bool {
	return l.Origin.X >= 0 && l.Origin.Y >= 0 &&
		l.Origin.X+l.Dimension.Width <= bounds.Width &&
		l.Origin.Y+l.Dimension.Height <= bounds.Height
}

func (l GridLocation) MoveTo(p Point) GridLocation {
	return GridLocation{Origin: p, Dimension: l.Dimension}
}

func (l GridLocation) Translate(dx, dy int) GridLocation {
	return l.MoveTo(l.Origin.Add(dx, dy))
}

// Inflate grows the footprint by n cells on every side.
func (l GridLocation) Inflate(n int) GridLocation {
	return NewGridLocation(l.Origin.X-n, l.Origin.Y-n, l.Dimension.Width+2*n, l.Dimension.Height+2*n)
}

// Constrain clamps the origin so the footprint lies inside the bounds.
func (l GridLocation) Constrain(bounds Dimension) GridLocation {
	x := clamp(l.Origin.X, 0, bounds.Width-l.Dimension.Width)
	y := clamp(l.Origin.Y, 0, bounds.Height-l.Dimension.Height)
	return l.MoveTo(Point{X: x, Y: y})
}

// Neighbours returns the footprint shifted one cell in each cardinal
// direction, in the order +x, -x, +y, -y, keeping only shifts that stay
// inside the bounds.
func (l GridLocation) Neighbours(bounds Dimension) []GridLocation {
	candidates := []GridLocation{
		l.Translate(1, 0),
		l.Translate(-1, 0),
		l.Translate(0, 1),
		l.Translate(0, -1),
	}
	neighbours := candidates[:0]
	for _, c := range candidates {
		if c.FitsIn(bounds) {
			neighbours = append(neighbours, c)
		}
	}
	return neighbours
}

// Adjacent returns the footprints of the given dimension that touch l,
// corners included, without overlapping it. Results are ordered by (y, x).
func (l GridLocation) Adjacent(dim Dimension, bounds Dimension) []GridLocation {
	var out []GridLocation
	for y := l.Origin.Y - dim.Height; y <= l.Origin.Y+l.Dimension.Height; y++ {
		for x := l.Origin.X - dim.Width; x <= l.Origin.X+l.Dimension.Width; x++ {
			c := GridLocation{Origin: Point{X: x, Y: y}, Dimension: dim}
			if !c.FitsIn(bounds) || c.Intersects(l) || !c.Intersects(l.Inflate(1)) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

func (l GridLocation) Manhattan(other GridLocation) int {
	return l.Origin.Manhattan(other.Origin)
}

// Gap returns the Manhattan distance between the closest cells of two
// footprints, 0 when they intersect.
func (l GridLocation) Gap(other GridLocation) int {
	dx := max(0, other.Origin.X-(l.Origin.X+l.Dimension.Width-1), l.Origin.X-(other.Origin.X+other.Dimension.Width-1))
	dy := max(0, other.Origin.Y-(l.Origin.Y+l.Dimension.Height-1), l.Origin.Y-(other.Origin.Y+other.Dimension.Height-1))
	if l.Intersects(other) {
		return 0
	}
	return dx + dy
}

func (l GridLocation) String() string {
	return fmt.Sprintf("%s[%dx%d]", l.Origin, l.Dimension.Width, l.Dimension.Height)
}

// SortLocations orders footprints by origin row, then column.
func SortLocations(locations []GridLocation) {
	sort.Slice(locations, func(i, j int) bool {
		return locations[i].Origin.Less(locations[j].Origin)
	})
}

// ClosestTo picks the candidate whose origin is nearest to target. Ties go to
// the candidate nearest to from, then to the first in (y, x) order.
func ClosestTo(candidates []GridLocation, target Point, from Point) (GridLocation, bool) {
	if len(candidates) == 0 {
		return GridLocation{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if closer(c.Origin, best.Origin, target, from) {
			best = c
		}
	}
	return best, true
}

func closer(a, b, target, from Point) bool {
	da, db := a.Distance(target), b.Distance(target)
	if da != db {
		return da < db
	}
	oa, ob := a.Distance(from), b.Distance(from)
	if oa != ob {
		return oa < ob
	}
	return a.Less(b)
}

// DirectRoute returns the cells crossed by a straight line between two
// points. Diagonal steps include both corner cells so that the route never
// slips between two blocked cells.
func DirectRoute(from, to Point) []Point {
	dx, dy := abs(to.X-from.X), abs(to.Y-from.Y)
	sx, sy := sign(to.X-from.X), sign(to.Y-from.Y)
	err := dx - dy
	x, y := from.X, from.Y
	route := []Point{from}
	for x != to.X || y != to.Y {
		e2 := 2 * err
		movedX, movedY := false, false
		if e2 > -dy {
			err -= dy
			x += sx
			movedX = true
		}
		if e2 < dx {
			err += dx
			y += sy
			movedY = true
		}
		if movedX && movedY {
			route = append(route, Point{X: x - sx, Y: y}, Point{X: x, Y: y - sy})
		}
		route = append(route, Point{X: x, Y: y})
	}
	return route
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func sign(i int) int {
	switch {
	case i > 0:
		return 1
	case i < 0:
		return -1
	default:
		return 0
	}
}

func clamp(i, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}
