package types

import (
	"fmt"
	"sort"

	"github.com/cbodonnell/evervoid/pkg/config"
	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/pathfinding"
)

// NoEntity is never assigned to an entity.
const NoEntity = 0

// GameState is the authoritative state of a match. It is owned by a single
// simulation goroutine and must not be shared without external
// synchronization. ApplyTurn is its only mutator once a match is running.
type GameState struct {
	data       *config.GameData
	seed       int64
	round      int
	nextID     int
	dimension  geometry.Dimension
	players    []*Player
	neutral    *Player
	systems    []*SolarSystem
	wormholes  []*Wormhole
	entities   map[int]*Entity
	occupancy  map[int]*occupancy
	pathfinder *pathfinding.Pathfinder
	observers  []func(*ExecutedTurn)
	winner     string
	drawn      bool
}

// NewGameState creates an empty state holding a single solar system with
// id 0. Entities, players and further systems are added by NewGame or
// GameStateFromValue.
func NewGameState(data *config.GameData, dim geometry.Dimension, seed int64) *GameState {
	s := &GameState{
		data:      data,
		seed:      seed,
		nextID:    NoEntity + 1,
		dimension: dim,
		neutral:   newNeutralPlayer(data),
		entities:  make(map[int]*Entity),
		occupancy: make(map[int]*occupancy),
		pathfinder: pathfinding.New(pathfinding.Options{
			AvoidDistance: data.Pathfinding.AvoidDistance,
			AvoidPenalty:  data.Pathfinding.AvoidPenalty,
		}),
	}
	s.addSolarSystem(&SolarSystem{ID: 0})
	return s
}

func (s *GameState) Data() *config.GameData {
	return s.data
}

func (s *GameState) Seed() int64 {
	return s.seed
}

func (s *GameState) Round() int {
	return s.round
}

func (s *GameState) Dimension() geometry.Dimension {
	return s.dimension
}

// Winner returns the name of the victorious player, if any.
func (s *GameState) Winner() string {
	return s.winner
}

// Drawn reports whether every player was defeated in the same round.
func (s *GameState) Drawn() bool {
	return s.drawn
}

// Finished reports whether the match has a winner or ended in a draw.
func (s *GameState) Finished() bool {
	return s.winner != "" || s.drawn
}

func (s *GameState) PathfinderStats() pathfinding.Stats {
	return s.pathfinder.Stats()
}

// Subscribe registers an observer called after every applied turn.
func (s *GameState) Subscribe(fn func(*ExecutedTurn)) {
	s.observers = append(s.observers, fn)
}

// Players returns copies of the competing players in join order.
func (s *GameState) Players() []*Player {
	players := make([]*Player, len(s.players))
	for i, p := range s.players {
		players[i] = p.Clone()
	}
	return players
}

// Player returns a copy of the named player. The neutral player is found
// under NeutralPlayer.
func (s *GameState) Player(name string) (*Player, bool) {
	p := s.player(name)
	if p == nil {
		return nil, false
	}
	return p.Clone(), true
}

func (s *GameState) player(name string) *Player {
	if name == NeutralPlayer {
		return s.neutral
	}
	for _, p := range s.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Entity returns a copy of the entity with the given id.
func (s *GameState) Entity(id int) (*Entity, bool) {
	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (s *GameState) Ship(id int) (*Entity, bool) {
	e, ok := s.entities[id]
	if !ok || e.Kind != EntityShip {
		return nil, false
	}
	return e.Clone(), true
}

func (s *GameState) Planet(id int) (*Entity, bool) {
	e, ok := s.entities[id]
	if !ok || e.Kind != EntityPlanet {
		return nil, false
	}
	return e.Clone(), true
}

// Entities returns copies of every entity ordered by id.
func (s *GameState) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.entities))
	for _, id := range s.entityIDs() {
		out = append(out, s.entities[id].Clone())
	}
	return out
}

// EntitiesOf returns copies of the entities of a kind owned by player.
func (s *GameState) EntitiesOf(player string, kind EntityKind) []*Entity {
	var out []*Entity
	for _, id := range s.entityIDs() {
		e := s.entities[id]
		if e.Owner == player && e.Kind == kind {
			out = append(out, e.Clone())
		}
	}
	return out
}

func (s *GameState) entityIDs() []int {
	ids := make([]int, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// EntityAt returns a copy of an entity covering p in a solar system.
func (s *GameState) EntityAt(system int, p geometry.Point) (*Entity, bool) {
	ids := s.occupancy[system].at(p)
	if len(ids) == 0 {
		return nil, false
	}
	sort.Ints(ids)
	return s.Entity(ids[0])
}

// EntitiesAt returns copies of every entity intersecting loc in a solar
// system, ordered by id.
func (s *GameState) EntitiesAt(system int, loc geometry.GridLocation) []*Entity {
	grid := s.occupancy[system]
	seen := make(map[int]bool)
	var ids []int
	for _, p := range loc.Points() {
		for _, id := range grid.at(p) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entities[id].Clone())
	}
	return out
}

// IsClear reports whether loc holds no blocking entity other than ignoreID
// in a solar system. Entities flagged IgnorePathfinder never block.
func (s *GameState) IsClear(system, ignoreID int, loc geometry.GridLocation) bool {
	grid := s.occupancy[system]
	for _, p := range loc.Points() {
		for _, id := range grid.at(p) {
			if id == ignoreID {
				continue
			}
			if e := s.entities[id]; e != nil && e.IgnorePathfinder {
				continue
			}
			return false
		}
	}
	return true
}

// IsOccupied reports whether any blocking entity intersects loc in a solar
// system.
func (s *GameState) IsOccupied(system int, loc geometry.GridLocation) bool {
	return !s.IsClear(system, NoEntity, loc)
}

// Neighbours returns the free footprints of the given dimension touching
// loc in a solar system, ordered by (y, x).
func (s *GameState) Neighbours(system int, loc geometry.GridLocation, dim geometry.Dimension) []geometry.GridLocation {
	var out []geometry.GridLocation
	for _, candidate := range loc.Adjacent(dim, s.dimension) {
		if !s.IsOccupied(system, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// ShipData returns the game data of a ship entity, resolved through its
// owner's race.
func (s *GameState) ShipData(e *Entity) (config.ShipData, bool) {
	if e == nil || e.Kind != EntityShip {
		return config.ShipData{}, false
	}
	p := s.player(e.Owner)
	if p == nil {
		return config.ShipData{}, false
	}
	return s.data.Ship(p.Race, e.Ship.Type)
}

func (s *GameState) mover(id int) (pathfinding.Mover, bool) {
	e, ok := s.entities[id]
	if !ok || e.Kind != EntityShip || e.InTransit() {
		return pathfinding.Mover{}, false
	}
	sd, ok := s.ShipData(e)
	if !ok {
		return pathfinding.Mover{}, false
	}
	return pathfinding.Mover{ID: id, Location: e.Location, Speed: sd.Speed}, true
}

// ValidDestinations returns the footprints the ship can move to this round.
func (s *GameState) ValidDestinations(shipID int) []geometry.GridLocation {
	m, ok := s.mover(shipID)
	if !ok {
		return nil
	}
	return s.pathfinder.ValidDestinations(systemGrid{s, s.entities[shipID].System}, m)
}

// FindPath returns the waypoints the ship would follow to dest.
func (s *GameState) FindPath(shipID int, dest geometry.Point) ([]geometry.GridLocation, bool) {
	m, ok := s.mover(shipID)
	if !ok {
		return nil, false
	}
	return s.pathfinder.FindPath(systemGrid{s, s.entities[shipID].System}, m, dest)
}

func (s *GameState) allocateID() int {
	id := s.nextID
	s.nextID++
	return id
}

// addEntity places a new entity in its solar system. Its footprint must fit
// the grid and be free of blocking entities. A ship in transit is kept off
// every grid.
func (s *GameState) addEntity(e *Entity) error {
	if _, exists := s.entities[e.ID]; exists {
		return fmt.Errorf("entity %d already exists", e.ID)
	}
	grid, ok := s.occupancy[e.System]
	if !ok {
		return fmt.Errorf("entity %d is in unknown solar system %d", e.ID, e.System)
	}
	if !e.Location.FitsIn(s.dimension) {
		return fmt.Errorf("entity %d at %s is out of bounds", e.ID, e.Location)
	}
	if !e.InTransit() {
		if !e.IgnorePathfinder && s.IsOccupied(e.System, e.Location) {
			return fmt.Errorf("entity %d at %s overlaps another entity", e.ID, e.Location)
		}
		grid.add(e)
	}
	s.entities[e.ID] = e
	if e.ID >= s.nextID {
		s.nextID = e.ID + 1
	}
	return nil
}

func (s *GameState) moveEntity(e *Entity, loc geometry.GridLocation) {
	e.Location = loc
	s.occupancy[e.System].move(e.ID, loc)
}

func (s *GameState) removeEntity(id int) {
	e, ok := s.entities[id]
	if !ok {
		return
	}
	delete(s.entities, id)
	s.occupancy[e.System].remove(id)
}

// AddPlayer registers a competing player before the match starts.
func (s *GameState) AddPlayer(p *Player) error {
	if p.Name == "" || p.Name == NeutralPlayer {
		return fmt.Errorf("invalid player name %q", p.Name)
	}
	if s.player(p.Name) != nil {
		return fmt.Errorf("player %q already exists", p.Name)
	}
	s.players = append(s.players, p)
	return nil
}
