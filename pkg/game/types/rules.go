package types

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cbodonnell/evervoid/pkg/geometry"
)

// Validate reports whether the action may execute against the current
// state. It never mutates the state. The reason is empty when valid.
func Validate(s *GameState, a Action) (bool, string) {
	p := s.player(a.Player)
	if p == nil || p.IsNeutral() {
		return false, fmt.Sprintf("unknown player %q", a.Player)
	}
	if p.Defeated {
		return false, fmt.Sprintf("player %q is defeated", a.Player)
	}

	switch pl := a.Payload.(type) {
	case MoveShip:
		if _, reason := s.ownedShip(a.Player, pl.ShipID); reason != "" {
			return false, reason
		}
		if !s.isValidDestination(pl.ShipID, pl.Destination) {
			return false, fmt.Sprintf("ship %d cannot reach %s", pl.ShipID, pl.Destination)
		}
	case ShootShip:
		ship, reason := s.ownedShip(a.Player, pl.ShipID)
		if reason != "" {
			return false, reason
		}
		sd, _ := s.ShipData(ship)
		if !sd.CanShoot {
			return false, fmt.Sprintf("ship %d cannot shoot", pl.ShipID)
		}
		target, ok := s.entities[pl.TargetID]
		if !ok || target.Kind != EntityShip {
			return false, fmt.Sprintf("target ship %d does not exist", pl.TargetID)
		}
		if target.Owner == a.Player {
			return false, fmt.Sprintf("target ship %d is friendly", pl.TargetID)
		}
		if target.InTransit() || target.System != ship.System {
			return false, fmt.Sprintf("target ship %d is out of range in another solar system", pl.TargetID)
		}
		if ship.Location.Gap(target.Location) > sd.Range {
			return false, fmt.Sprintf("target ship %d is out of range", pl.TargetID)
		}
	case BombPlanet:
		ship, reason := s.ownedShip(a.Player, pl.ShipID)
		if reason != "" {
			return false, reason
		}
		sd, _ := s.ShipData(ship)
		if !sd.CanBomb {
			return false, fmt.Sprintf("ship %d cannot bomb", pl.ShipID)
		}
		planet, ok := s.entities[pl.PlanetID]
		if !ok || planet.Kind != EntityPlanet {
			return false, fmt.Sprintf("planet %d does not exist", pl.PlanetID)
		}
		if planet.Owner == a.Player {
			return false, fmt.Sprintf("planet %d is friendly", pl.PlanetID)
		}
		if planet.System != ship.System {
			return false, fmt.Sprintf("planet %d is out of range in another solar system", pl.PlanetID)
		}
		if ship.Location.Gap(planet.Location) > sd.Range {
			return false, fmt.Sprintf("planet %d is out of range", pl.PlanetID)
		}
	case JumpShip:
		ship, reason := s.ownedShip(a.Player, pl.ShipID)
		if reason != "" {
			return false, reason
		}
		portal, ok := s.entities[pl.PortalID]
		if !ok || portal.Kind != EntityPortal {
			return false, fmt.Sprintf("portal %d does not exist", pl.PortalID)
		}
		if portal.System != ship.System {
			return false, fmt.Sprintf("portal %d is in another solar system", pl.PortalID)
		}
		if ship.Location.Gap(portal.Location) > 1 {
			return false, fmt.Sprintf("ship %d is not next to portal %d", pl.ShipID, pl.PortalID)
		}
		if s.wormhole(portal.Portal.Wormhole) == nil {
			return false, fmt.Sprintf("portal %d leads nowhere", pl.PortalID)
		}
	case ConstructBuilding:
		planet, reason := s.ownedPlanet(a.Player, pl.PlanetID)
		if reason != "" {
			return false, reason
		}
		bd, ok := s.data.Building(p.Race, pl.BuildingType)
		if !ok {
			return false, fmt.Sprintf("unknown building type %q", pl.BuildingType)
		}
		pd, _ := s.data.Planet(planet.Planet.Type)
		if len(planet.Planet.Buildings) >= pd.Slots {
			return false, fmt.Sprintf("planet %d has no free building slot", pl.PlanetID)
		}
		if !p.Resources.CanAfford(bd.Cost) {
			return false, fmt.Sprintf("cannot afford %s", pl.BuildingType)
		}
	case ConstructShip:
		planet, reason := s.ownedPlanet(a.Player, pl.PlanetID)
		if reason != "" {
			return false, reason
		}
		b, ok := planet.Planet.Building(pl.BuildingID)
		if !ok {
			return false, fmt.Sprintf("planet %d has no building %d", pl.PlanetID, pl.BuildingID)
		}
		if !b.Idle() {
			return false, fmt.Sprintf("building %d is busy", pl.BuildingID)
		}
		bd, _ := s.data.Building(p.Race, b.Type)
		if !bd.CanBuild(pl.ShipType) {
			return false, fmt.Sprintf("building %d cannot produce %q", pl.BuildingID, pl.ShipType)
		}
		sd, ok := s.data.Ship(p.Race, pl.ShipType)
		if !ok {
			return false, fmt.Sprintf("unknown ship type %q", pl.ShipType)
		}
		if !p.Resources.CanAfford(sd.Cost) {
			return false, fmt.Sprintf("cannot afford %s", pl.ShipType)
		}
	default:
		return false, fmt.Sprintf("unknown action type %q", a.Kind())
	}
	return true, ""
}

func (s *GameState) ownedShip(player string, id int) (*Entity, string) {
	ship, ok := s.entities[id]
	if !ok || ship.Kind != EntityShip {
		return nil, fmt.Sprintf("ship %d does not exist", id)
	}
	if ship.Owner != player {
		return nil, fmt.Sprintf("ship %d is not owned by %s", id, player)
	}
	if ship.InTransit() {
		return nil, fmt.Sprintf("ship %d is in transit", id)
	}
	return ship, ""
}

func (s *GameState) ownedPlanet(player string, id int) (*Entity, string) {
	planet, ok := s.entities[id]
	if !ok || planet.Kind != EntityPlanet {
		return nil, fmt.Sprintf("planet %d does not exist", id)
	}
	if planet.Owner != player {
		return nil, fmt.Sprintf("planet %d is not owned by %s", id, player)
	}
	return planet, ""
}

func (s *GameState) isValidDestination(shipID int, dest geometry.Point) bool {
	for _, loc := range s.ValidDestinations(shipID) {
		if loc.Origin == dest {
			return true
		}
	}
	return false
}

// correctMove replaces an unreachable destination with the reachable one
// closest to it.
func (s *GameState) correctMove(a Action) (Action, bool) {
	move := a.Payload.(MoveShip)
	ship, reason := s.ownedShip(a.Player, move.ShipID)
	if reason != "" {
		return a, false
	}
	closest, ok := geometry.ClosestTo(s.ValidDestinations(move.ShipID), move.Destination, ship.Location.Origin)
	if !ok {
		return a, false
	}
	move.Destination = closest.Origin
	return Action{Player: a.Player, Payload: move}, true
}

// rollDamage returns a damage roll seeded from the match seed, the round
// and the action's position in the executed turn, so every peer rolls the
// same value.
func (s *GameState) rollDamage(index, maxDamage int) int {
	if maxDamage <= 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(s.seed*1_000_003 + int64(s.round)*7_919 + int64(index)))
	lo := int(math.Ceil(float64(maxDamage) * s.data.Combat.MinDamageRatio))
	lo = min(max(lo, 0), maxDamage)
	return lo + rng.Intn(maxDamage-lo+1)
}

// execute applies a validated action and returns the effective action and
// its events. index is the action's position in the executed turn.
func (s *GameState) execute(a Action, index int) (Action, []Event) {
	p := s.player(a.Player)

	switch pl := a.Payload.(type) {
	case MoveShip:
		ship := s.entities[pl.ShipID]
		from := ship.Location
		path, _ := s.FindPath(pl.ShipID, pl.Destination)
		s.moveEntity(ship, ship.Location.MoveTo(pl.Destination))
		return a, []Event{ShipMoved{ActionIndex: index, ShipID: pl.ShipID, From: from, Path: path}}

	case ShootShip:
		ship := s.entities[pl.ShipID]
		if !pl.Rolled {
			sd, _ := s.ShipData(ship)
			pl.Damage = s.rollDamage(index, sd.Damage)
			pl.Rolled = true
			a.Payload = pl
		}
		target := s.entities[pl.TargetID]
		target.Ship.Health -= pl.Damage
		events := []Event{DamageApplied{
			ActionIndex: index,
			ShipID:      pl.ShipID,
			TargetID:    pl.TargetID,
			Amount:      pl.Damage,
			Remaining:   max(target.Ship.Health, 0),
		}}
		if target.Ship.Health <= 0 {
			s.removeEntity(target.ID)
			events = append(events, ShipDestroyed{ActionIndex: index, ShipID: target.ID, Owner: target.Owner})
		}
		return a, events

	case BombPlanet:
		ship := s.entities[pl.ShipID]
		if !pl.Rolled {
			sd, _ := s.ShipData(ship)
			pl.Damage = s.rollDamage(index, sd.Damage)
			pl.Rolled = true
			a.Payload = pl
		}
		planet := s.entities[pl.PlanetID]
		planet.Planet.Health -= pl.Damage
		events := []Event{PlanetBombed{
			ActionIndex: index,
			ShipID:      pl.ShipID,
			PlanetID:    pl.PlanetID,
			Amount:      pl.Damage,
			Remaining:   max(planet.Planet.Health, 0),
		}}
		if planet.Planet.Health <= 0 {
			// an enemy planet falls to neutral; a neutral one is captured
			previous := planet.Owner
			planet.Owner = NeutralPlayer
			if previous == NeutralPlayer {
				planet.Owner = a.Player
			}
			planet.Planet.Buildings = nil
			pd, _ := s.data.Planet(planet.Planet.Type)
			planet.Planet.Health = pd.Health
			events = append(events, PlanetCaptured{ActionIndex: index, PlanetID: planet.ID, Previous: previous, Owner: planet.Owner})
		}
		return a, events

	case JumpShip:
		ship := s.entities[pl.ShipID]
		portal := s.entities[pl.PortalID]
		from := ship.System
		t := s.enterWormhole(ship, s.wormhole(portal.Portal.Wormhole))
		return a, []Event{ShipEnteredWormhole{
			ActionIndex: index,
			ShipID:      ship.ID,
			WormholeID:  t.Wormhole,
			From:        from,
			To:          t.Destination,
			Turns:       t.Remaining,
		}}

	case ConstructBuilding:
		bd, _ := s.data.Building(p.Race, pl.BuildingType)
		p.Resources.Subtract(bd.Cost)
		planet := s.entities[pl.PlanetID]
		b := &Building{ID: s.allocateID(), Type: pl.BuildingType, Progress: bd.BuildTime}
		planet.Planet.Buildings = append(planet.Planet.Buildings, b)
		return a, []Event{BuildingStarted{ActionIndex: index, PlanetID: planet.ID, BuildingID: b.ID, BuildingType: b.Type}}

	case ConstructShip:
		sd, _ := s.data.Ship(p.Race, pl.ShipType)
		p.Resources.Subtract(sd.Cost)
		b, _ := s.entities[pl.PlanetID].Planet.Building(pl.BuildingID)
		b.Ship = &ShipProgress{Type: pl.ShipType, Remaining: max(sd.BuildTime, 1)}
		return a, []Event{ShipProductionStarted{ActionIndex: index, PlanetID: pl.PlanetID, BuildingID: b.ID, ShipType: pl.ShipType}}
	}
	return a, nil
}
