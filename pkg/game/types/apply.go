package types

import (
	"fmt"
	"sort"

	"github.com/cbodonnell/evervoid/pkg/geometry"
)

// ApplyTurn validates and executes the turn's actions and advances the
// round. Actions run by phase (combat, then movement, then production),
// keeping insertion order within a phase. Ships crossing wormholes advance
// as the movement phase opens. A move to an unreachable point is corrected
// to the closest reachable one; other invalid actions are rejected.
// Observers are notified once the whole turn has applied.
func (s *GameState) ApplyTurn(turn *Turn) (*ExecutedTurn, error) {
	if turn.Round != s.round {
		return nil, fmt.Errorf("turn for round %d cannot apply to round %d", turn.Round, s.round)
	}

	executed := &ExecutedTurn{Round: s.round}
	transited := false
	for _, a := range partition(turn.Actions()) {
		if !transited && a.Kind().Phase() >= PhaseMovement {
			executed.Events = append(executed.Events, s.advanceTransits()...)
			transited = true
		}
		ok, reason := Validate(s, a)
		if !ok && a.Kind() == ActionMoveShip {
			if corrected, found := s.correctMove(a); found {
				a = corrected
				ok, reason = Validate(s, a)
			}
		}
		if !ok {
			executed.Rejected = append(executed.Rejected, Rejection{Action: a, Reason: reason})
			continue
		}
		effective, events := s.execute(a, len(executed.Actions))
		executed.Actions = append(executed.Actions, effective)
		executed.Events = append(executed.Events, events...)
	}

	if !transited {
		executed.Events = append(executed.Events, s.advanceTransits()...)
	}
	executed.Events = append(executed.Events, s.advanceProduction()...)
	executed.Events = append(executed.Events, s.collectIncome()...)
	executed.Events = append(executed.Events, s.checkOutcome()...)
	s.round++
	executed.StateHash = s.Hash()

	for _, fn := range s.observers {
		fn(executed)
	}
	return executed, nil
}

// partition orders actions by phase, stable within a phase.
func partition(actions []Action) []Action {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Kind().Phase() < actions[j].Kind().Phase()
	})
	return actions
}

// advanceTransits moves every ship crossing a wormhole one round forward and
// lands the arrivals next to the portal of their destination system. An
// arrival with no free space around the portal waits for the next round.
func (s *GameState) advanceTransits() []Event {
	var events []Event
	for _, id := range s.entityIDs() {
		e := s.entities[id]
		if !e.InTransit() {
			continue
		}
		t := e.Ship.Transit
		t.Remaining--
		if t.Remaining > 0 {
			continue
		}
		var free []geometry.GridLocation
		if portal := s.portalOf(t.Destination, t.Wormhole); portal != nil {
			free = s.Neighbours(t.Destination, portal.Location, e.Location.Dimension)
		}
		if len(free) == 0 {
			t.Remaining = 1
			continue
		}
		e.Ship.Transit = nil
		e.System = t.Destination
		e.Location = free[0]
		s.occupancy[e.System].add(e)
		events = append(events, ShipExitedWormhole{ShipID: e.ID, WormholeID: t.Wormhole, System: e.System, Location: e.Location})
	}
	return events
}

func (s *GameState) planetsInOrder() []*Entity {
	var planets []*Entity
	for _, id := range s.entityIDs() {
		if e := s.entities[id]; e.Kind == EntityPlanet {
			planets = append(planets, e)
		}
	}
	return planets
}

// advanceProduction moves every building and ship under construction one
// round forward and spawns finished ships next to their planet. A finished
// ship with no free space around the planet waits for the next round.
func (s *GameState) advanceProduction() []Event {
	var events []Event
	for _, planet := range s.planetsInOrder() {
		buildings := append([]*Building(nil), planet.Planet.Buildings...)
		sort.Slice(buildings, func(i, j int) bool { return buildings[i].ID < buildings[j].ID })
		for _, b := range buildings {
			if !b.Complete() {
				b.Progress--
				if b.Complete() {
					events = append(events, BuildingCompleted{PlanetID: planet.ID, BuildingID: b.ID, BuildingType: b.Type})
				}
				continue
			}
			if b.Ship == nil {
				continue
			}
			b.Ship.Remaining--
			if b.Ship.Remaining > 0 {
				continue
			}
			if e, ok := s.spawnShip(planet, b.Ship.Type); ok {
				events = append(events, ShipSpawned{
					PlanetID:   planet.ID,
					BuildingID: b.ID,
					ShipID:     e.ID,
					ShipType:   e.Ship.Type,
					Owner:      e.Owner,
					Location:   e.Location,
				})
				b.Ship = nil
			} else {
				b.Ship.Remaining = 1
			}
		}
	}
	return events
}

func (s *GameState) spawnShip(planet *Entity, shipType string) (*Entity, bool) {
	p := s.player(planet.Owner)
	if p == nil || p.IsNeutral() {
		return nil, false
	}
	sd, ok := s.data.Ship(p.Race, shipType)
	if !ok {
		return nil, false
	}
	free := s.Neighbours(planet.System, planet.Location, shipDimension(sd))
	if len(free) == 0 {
		return nil, false
	}
	e := &Entity{
		ID:       s.allocateID(),
		Kind:     EntityShip,
		Owner:    planet.Owner,
		System:   planet.System,
		Location: free[0],
		Ship:     &Ship{Type: shipType, Health: sd.Health},
	}
	if err := s.addEntity(e); err != nil {
		return nil, false
	}
	return e, true
}

// collectIncome adds every owned planet's resource rate to its owner.
func (s *GameState) collectIncome() []Event {
	income := make(map[string]ResourceAmount)
	for _, planet := range s.planetsInOrder() {
		p := s.player(planet.Owner)
		if p == nil || p.IsNeutral() || p.Defeated {
			continue
		}
		pd, ok := s.data.Planet(planet.Planet.Type)
		if !ok {
			continue
		}
		if income[p.Name] == nil {
			income[p.Name] = ResourceAmount{}
		}
		income[p.Name].Add(pd.ResourceRate)
	}
	var events []Event
	for _, p := range s.players {
		gained, ok := income[p.Name]
		if !ok {
			continue
		}
		p.Resources.Add(gained)
		events = append(events, ResourcesGained{Player: p.Name, Amount: gained})
	}
	return events
}

// checkOutcome marks players left without ships and planets as defeated and
// declares a winner once a single player of a multiplayer match remains. A
// round that leaves nobody standing ends the match in a draw.
func (s *GameState) checkOutcome() []Event {
	owned := make(map[string]int)
	for _, e := range s.entities {
		if e.Kind == EntityShip || e.Kind == EntityPlanet {
			owned[e.Owner]++
		}
	}
	var events []Event
	var alive []*Player
	for _, p := range s.players {
		if p.Defeated {
			continue
		}
		if owned[p.Name] == 0 {
			p.Defeated = true
			events = append(events, PlayerDefeated{Player: p.Name})
			continue
		}
		alive = append(alive, p)
	}
	if s.Finished() {
		return events
	}
	switch {
	case len(s.players) > 1 && len(alive) == 1:
		s.winner = alive[0].Name
		events = append(events, PlayerVictorious{Player: s.winner})
	case len(s.players) > 0 && len(alive) == 0:
		s.drawn = true
		events = append(events, GameDrawn{Round: s.round})
	}
	return events
}
