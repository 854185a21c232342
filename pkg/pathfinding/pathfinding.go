// Package pathfinding computes reachable destinations and paths for movers
// on a bounded occupancy grid.
package pathfinding

import (
	"container/heap"
	"math"

	"github.com/cbodonnell/evervoid/pkg/geometry"
)

// Grid is the read-only view of the world the pathfinder searches.
type Grid interface {
	Dimension() geometry.Dimension
	// IsClear reports whether loc holds no blocking occupant other than the
	// entity identified by ignoreID. Cells outside the grid count as clear.
	IsClear(ignoreID int, loc geometry.GridLocation) bool
}

// Mover describes the entity being moved.
type Mover struct {
	ID       int
	Location geometry.GridLocation
	Speed    int
}

type Options struct {
	// AvoidDistance is the clearance, in cells, a path tries to keep from
	// blocking occupants.
	AvoidDistance int
	// AvoidPenalty is added to the step cost of cells closer than
	// AvoidDistance to a blocking occupant.
	AvoidPenalty int
}

// Stats counts pathfinder work since creation.
type Stats struct {
	Searches      int
	ShortCircuits int
	Expanded      int
}

type Pathfinder struct {
	opts  Options
	stats Stats
}

func New(opts Options) *Pathfinder {
	return &Pathfinder{opts: opts}
}

func (pf *Pathfinder) Stats() Stats {
	return pf.stats
}

func (pf *Pathfinder) passable(grid Grid, mover Mover, loc geometry.GridLocation) bool {
	return loc.FitsIn(grid.Dimension()) && grid.IsClear(mover.ID, loc)
}

// ValidDestinations returns every footprint the mover can reach in at most
// Speed steps, excluding its current location, ordered by (y, x).
func (pf *Pathfinder) ValidDestinations(grid Grid, mover Mover) []geometry.GridLocation {
	visited := map[geometry.Point]bool{mover.Location.Origin: true}
	frontier := []geometry.GridLocation{mover.Location}
	var reachable []geometry.GridLocation
	for step := 0; step < mover.Speed && len(frontier) > 0; step++ {
		var next []geometry.GridLocation
		for _, loc := range frontier {
			for _, n := range loc.Neighbours(grid.Dimension()) {
				if visited[n.Origin] {
					continue
				}
				visited[n.Origin] = true
				if !grid.IsClear(mover.ID, n) {
					continue
				}
				next = append(next, n)
				reachable = append(reachable, n)
			}
		}
		frontier = next
	}
	geometry.SortLocations(reachable)
	return reachable
}

// FindPath returns the waypoints from the mover's location to dest. The
// mover's own location is not part of the path. When dest is further than
// Speed steps away, or cannot be reached within Speed steps, ok is false.
func (pf *Pathfinder) FindPath(grid Grid, mover Mover, dest geometry.Point) (path []geometry.GridLocation, ok bool) {
	if mover.Location.Origin.Manhattan(dest) > mover.Speed {
		pf.stats.ShortCircuits++
		return nil, false
	}
	if dest == mover.Location.Origin {
		return nil, false
	}
	target := mover.Location.MoveTo(dest)
	if !pf.passable(grid, mover, target) {
		return nil, false
	}

	pf.stats.Searches++
	avoid := pf.opts.AvoidPenalty > 0 && pf.opts.AvoidDistance > 0
	penalty := 0
	if avoid {
		penalty = pf.opts.AvoidPenalty
	}
	raw := pf.search(grid, mover, dest, penalty)
	if raw == nil && avoid {
		avoid = false
		raw = pf.search(grid, mover, dest, 0)
	}
	if raw == nil {
		return nil, false
	}
	return pf.prune(grid, mover, raw, avoid), true
}

// search runs A* over origins and returns the cell-by-cell path excluding
// the start, or nil. Paths longer than the mover's speed are not explored.
func (pf *Pathfinder) search(grid Grid, mover Mover, dest geometry.Point, penalty int) []geometry.GridLocation {
	start := &node{loc: mover.Location}
	open := &openSet{}
	heap.Push(open, start)
	best := map[geometry.Point]int{start.loc.Origin: 0}
	seq := 0

	for open.Len() > 0 {
		current := heap.Pop(open).(*node)
		if current.cost > best[current.loc.Origin] {
			continue
		}
		if current.loc.Origin == dest {
			return current.path()
		}
		pf.stats.Expanded++
		if current.steps >= mover.Speed {
			continue
		}
		for _, n := range current.loc.Neighbours(grid.Dimension()) {
			if !grid.IsClear(mover.ID, n) {
				continue
			}
			cost := current.cost + 1
			if penalty > 0 && !pf.keepsClearance(grid, mover, n) {
				cost += penalty
			}
			if prev, seen := best[n.Origin]; seen && prev <= cost {
				continue
			}
			best[n.Origin] = cost
			seq++
			heap.Push(open, &node{
				loc:      n,
				cost:     cost,
				steps:    current.steps + 1,
				estimate: cost + heuristic(n.Origin, dest),
				seq:      seq,
				parent:   current,
			})
		}
	}
	return nil
}

func (pf *Pathfinder) keepsClearance(grid Grid, mover Mover, loc geometry.GridLocation) bool {
	return grid.IsClear(mover.ID, loc.Inflate(pf.opts.AvoidDistance))
}

// prune drops intermediate waypoints wherever a straight route between two
// path nodes is clear, keeping the first node, the last node and every
// elbow in between. When avoid is set, a shortcut may not enter cells the
// raw path kept its clearance from.
func (pf *Pathfinder) prune(grid Grid, mover Mover, raw []geometry.GridLocation, avoid bool) []geometry.GridLocation {
	if len(raw) <= 2 {
		return raw
	}
	onPath := make(map[geometry.Point]bool, len(raw))
	for _, loc := range raw {
		onPath[loc.Origin] = true
	}
	routeClear := func(from, to geometry.Point) bool {
		for _, p := range geometry.DirectRoute(from, to) {
			loc := mover.Location.MoveTo(p)
			if !pf.passable(grid, mover, loc) {
				return false
			}
			if avoid && !onPath[p] && !pf.keepsClearance(grid, mover, loc) {
				return false
			}
		}
		return true
	}

	pruned := []geometry.GridLocation{raw[0]}
	anchor := 0
	for anchor < len(raw)-1 {
		next := anchor + 1
		for candidate := len(raw) - 1; candidate > anchor+1; candidate-- {
			if routeClear(raw[anchor].Origin, raw[candidate].Origin) {
				next = candidate
				break
			}
		}
		pruned = append(pruned, raw[next])
		anchor = next
	}
	return pruned
}

func heuristic(from, to geometry.Point) int {
	return int(math.Floor(from.Distance(to)))
}

type node struct {
	loc      geometry.GridLocation
	cost     int
	steps    int
	estimate int
	seq      int
	parent   *node
	index    int
}

func (n *node) path() []geometry.GridLocation {
	var path []geometry.GridLocation
	for cur := n; cur.parent != nil; cur = cur.parent {
		path = append(path, cur.loc)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// openSet is a min-heap on estimated cost; equal estimates pop in the order
// they were pushed.
type openSet []*node

func (o openSet) Len() int { return len(o) }

func (o openSet) Less(i, j int) bool {
	if o[i].estimate != o[j].estimate {
		return o[i].estimate < o[j].estimate
	}
	return o[i].seq < o[j].seq
}

func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}

func (o *openSet) Push(x any) {
	n := x.(*node)
	n.index = len(*o)
	*o = append(*o, n)
}

func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*o = old[:len(old)-1]
	return n
}
