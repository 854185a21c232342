package types

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/pathfinding"
	"github.com/cbodonnell/evervoid/pkg/value"
)

// SolarSystem is one grid of the galaxy. Point places it on the galaxy map
// and sets the length of the wormholes leaving it.
type SolarSystem struct {
	ID    int
	Point geometry.Point
}

// Wormhole joins two solar systems. Ships need Turns rounds to cross it.
type Wormhole struct {
	ID      int
	Systems [2]int
	Turns   int
}

// Other returns the system at the far end of the wormhole from system.
func (w *Wormhole) Other(system int) (int, bool) {
	switch system {
	case w.Systems[0]:
		return w.Systems[1], true
	case w.Systems[1]:
		return w.Systems[0], true
	}
	return 0, false
}

// Portal is the mouth of a wormhole inside a solar system.
type Portal struct {
	Wormhole int
}

// Transit is a ship's passage through a wormhole. Remaining counts the
// rounds until it arrives in Destination.
type Transit struct {
	Wormhole    int
	Destination int
	Remaining   int
}

func (ss *SolarSystem) ToValue() *value.Value {
	return value.NewObject().
		Set("id", value.Int(ss.ID)).
		Set("point", ss.Point.ToValue())
}

func SolarSystemFromValue(v *value.Value) (*SolarSystem, error) {
	id, err := v.IntAttr("id")
	if err != nil {
		return nil, constructionErr("solar system", err)
	}
	pointValue, err := v.ObjectAttr("point")
	if err != nil {
		return nil, constructionErr("solar system", err)
	}
	point, err := geometry.PointFromValue(pointValue)
	if err != nil {
		return nil, constructionErr("solar system", err)
	}
	if id < 0 {
		return nil, constructionErrf("solar system", "invalid id %d", id)
	}
	return &SolarSystem{ID: id, Point: point}, nil
}

func (w *Wormhole) ToValue() *value.Value {
	return value.NewObject().
		Set("id", value.Int(w.ID)).
		Set("ss1", value.Int(w.Systems[0])).
		Set("ss2", value.Int(w.Systems[1])).
		Set("turns", value.Int(w.Turns))
}

func WormholeFromValue(v *value.Value) (*Wormhole, error) {
	w := &Wormhole{}
	var err error
	for _, f := range []struct {
		key string
		dst *int
	}{{"id", &w.ID}, {"ss1", &w.Systems[0]}, {"ss2", &w.Systems[1]}, {"turns", &w.Turns}} {
		if *f.dst, err = v.IntAttr(f.key); err != nil {
			return nil, constructionErr("wormhole", err)
		}
	}
	if w.Turns < 1 {
		return nil, constructionErrf("wormhole", "%d has invalid crossing time %d", w.ID, w.Turns)
	}
	if w.Systems[0] == w.Systems[1] {
		return nil, constructionErrf("wormhole", "%d joins solar system %d to itself", w.ID, w.Systems[0])
	}
	return w, nil
}

func (t *Transit) ToValue() *value.Value {
	return value.NewObject().
		Set("wormhole", value.Int(t.Wormhole)).
		Set("destination", value.Int(t.Destination)).
		Set("remaining", value.Int(t.Remaining))
}

func TransitFromValue(v *value.Value) (*Transit, error) {
	t := &Transit{}
	var err error
	for _, f := range []struct {
		key string
		dst *int
	}{{"wormhole", &t.Wormhole}, {"destination", &t.Destination}, {"remaining", &t.Remaining}} {
		if *f.dst, err = v.IntAttr(f.key); err != nil {
			return nil, constructionErr("transit", err)
		}
	}
	return t, nil
}

// systemGrid is the pathfinding view of one solar system.
type systemGrid struct {
	s      *GameState
	system int
}

func (g systemGrid) Dimension() geometry.Dimension {
	return g.s.dimension
}

func (g systemGrid) IsClear(ignoreID int, loc geometry.GridLocation) bool {
	return g.s.IsClear(g.system, ignoreID, loc)
}

var _ pathfinding.Grid = systemGrid{}

// SolarSystems returns copies of the solar systems ordered by id.
func (s *GameState) SolarSystems() []SolarSystem {
	out := make([]SolarSystem, len(s.systems))
	for i, ss := range s.systems {
		out[i] = *ss
	}
	return out
}

// Wormholes returns copies of the wormholes ordered by id.
func (s *GameState) Wormholes() []Wormhole {
	out := make([]Wormhole, len(s.wormholes))
	for i, w := range s.wormholes {
		out[i] = *w
	}
	return out
}

// EntitiesIn returns copies of the entities on the grid of a solar system,
// ordered by id. Ships in transit belong to no system.
func (s *GameState) EntitiesIn(system int) []*Entity {
	var out []*Entity
	for _, id := range s.entityIDs() {
		e := s.entities[id]
		if e.System == system && !e.InTransit() {
			out = append(out, e.Clone())
		}
	}
	return out
}

func (s *GameState) system(id int) *SolarSystem {
	for _, ss := range s.systems {
		if ss.ID == id {
			return ss
		}
	}
	return nil
}

func (s *GameState) wormhole(id int) *Wormhole {
	for _, w := range s.wormholes {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// portalOf returns the mouth of a wormhole inside a solar system.
func (s *GameState) portalOf(system, wormhole int) *Entity {
	for _, id := range s.entityIDs() {
		e := s.entities[id]
		if e.Kind == EntityPortal && e.System == system && e.Portal.Wormhole == wormhole {
			return e
		}
	}
	return nil
}

func (s *GameState) addSolarSystem(ss *SolarSystem) error {
	if s.system(ss.ID) != nil {
		return fmt.Errorf("solar system %d already exists", ss.ID)
	}
	s.systems = append(s.systems, ss)
	sort.Slice(s.systems, func(i, j int) bool { return s.systems[i].ID < s.systems[j].ID })
	s.occupancy[ss.ID] = newOccupancy(s.dimension)
	return nil
}

func (s *GameState) addWormhole(w *Wormhole) error {
	if s.wormhole(w.ID) != nil {
		return fmt.Errorf("wormhole %d already exists", w.ID)
	}
	for _, system := range w.Systems {
		if s.system(system) == nil {
			return fmt.Errorf("wormhole %d leads to unknown solar system %d", w.ID, system)
		}
	}
	s.wormholes = append(s.wormholes, w)
	sort.Slice(s.wormholes, func(i, j int) bool { return s.wormholes[i].ID < s.wormholes[j].ID })
	if w.ID >= s.nextID {
		s.nextID = w.ID + 1
	}
	return nil
}

// connect opens a wormhole between two systems and places a portal at a
// random free spot in each of them.
func (s *GameState) connect(rng *rand.Rand, a, b int) error {
	distance := s.system(a).Point.Manhattan(s.system(b).Point)
	w := &Wormhole{ID: s.allocateID(), Systems: [2]int{a, b}, Turns: s.data.Galaxy.WormholeTurns(distance)}
	if err := s.addWormhole(w); err != nil {
		return err
	}
	for _, system := range w.Systems {
		loc, ok := s.randomFreeLocation(rng, system, geometry.Dimension{Width: 1, Height: 1})
		if !ok {
			return fmt.Errorf("no room for a portal in solar system %d", system)
		}
		if err := s.addEntity(&Entity{
			ID:       s.allocateID(),
			Kind:     EntityPortal,
			Owner:    NeutralPlayer,
			System:   system,
			Location: loc,
			Portal:   &Portal{Wormhole: w.ID},
		}); err != nil {
			return err
		}
	}
	return nil
}

// enterWormhole lifts a ship off its grid and starts its crossing.
func (s *GameState) enterWormhole(ship *Entity, w *Wormhole) *Transit {
	to, _ := w.Other(ship.System)
	s.occupancy[ship.System].remove(ship.ID)
	ship.Ship.Transit = &Transit{Wormhole: w.ID, Destination: to, Remaining: w.Turns}
	return ship.Ship.Transit
}
