package types

import (
	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/solarlune/resolv"
)

// occupancy maps the grid cells of one solar system to the entities covering
// them. It is backed by a resolv space with one-unit cells, so every grid
// point is one space cell. A nil occupancy is an empty grid.
type occupancy struct {
	space   *resolv.Space
	objects map[int]*resolv.Object
}

func newOccupancy(dim geometry.Dimension) *occupancy {
	return &occupancy{
		space:   resolv.NewSpace(dim.Width, dim.Height, 1, 1),
		objects: make(map[int]*resolv.Object),
	}
}

func (o *occupancy) add(e *Entity) {
	obj := resolv.NewObject(
		float64(e.Location.Origin.X), float64(e.Location.Origin.Y),
		float64(e.Location.Dimension.Width), float64(e.Location.Dimension.Height),
		string(e.Kind),
	)
	obj.Data = e.ID
	o.objects[e.ID] = obj
	o.space.Add(obj)
}

func (o *occupancy) move(id int, loc geometry.GridLocation) {
	if o == nil {
		return
	}
	obj, ok := o.objects[id]
	if !ok {
		return
	}
	obj.Position.X = float64(loc.Origin.X)
	obj.Position.Y = float64(loc.Origin.Y)
	obj.Update()
}

func (o *occupancy) remove(id int) {
	if o == nil {
		return
	}
	obj, ok := o.objects[id]
	if !ok {
		return
	}
	o.space.Remove(obj)
	delete(o.objects, id)
}

// at returns the ids of the entities covering p.
func (o *occupancy) at(p geometry.Point) []int {
	if o == nil {
		return nil
	}
	cell := o.space.Cell(p.X, p.Y)
	if cell == nil {
		return nil
	}
	ids := make([]int, 0, len(cell.Objects))
	for _, obj := range cell.Objects {
		if id, ok := obj.Data.(int); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
