package types

import (
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/value"
)

type ActionKind string

const (
	ActionMoveShip          ActionKind = "moveship"
	ActionShootShip         ActionKind = "shootship"
	ActionBombPlanet        ActionKind = "bombplanet"
	ActionJumpShip          ActionKind = "jumpship"
	ActionConstructShip     ActionKind = "constructship"
	ActionConstructBuilding ActionKind = "constructbuilding"
)

// Phase is the position of an action kind in turn processing. Actions of a
// lower phase always execute first.
type Phase int

const (
	PhaseCombat Phase = iota
	PhaseMovement
	PhaseProduction
)

func (k ActionKind) Phase() Phase {
	switch k {
	case ActionShootShip, ActionBombPlanet:
		return PhaseCombat
	case ActionMoveShip, ActionJumpShip:
		return PhaseMovement
	default:
		return PhaseProduction
	}
}

// Payload is the kind-specific part of an action.
type Payload interface {
	Kind() ActionKind
	encode(v *value.Value)
}

// Action is an immutable command issued by a player.
type Action struct {
	Player  string
	Payload Payload
}

func (a Action) Kind() ActionKind {
	if a.Payload == nil {
		return ""
	}
	return a.Payload.Kind()
}

func (a Action) String() string {
	return fmt.Sprintf("%s by %s", a.Kind(), a.Player)
}

// MoveShip moves a ship to the footprint anchored at Destination.
type MoveShip struct {
	ShipID      int
	Destination geometry.Point
}

// ShootShip fires at an enemy ship. Damage is rolled when the action first
// executes and carried with it afterwards.
type ShootShip struct {
	ShipID   int
	TargetID int
	Damage   int
	Rolled   bool
}

// BombPlanet attacks a planet not owned by the acting player. Damage is
// rolled like ShootShip.
type BombPlanet struct {
	ShipID   int
	PlanetID int
	Damage   int
	Rolled   bool
}

// JumpShip sends a ship into the wormhole behind a portal next to it.
type JumpShip struct {
	ShipID   int
	PortalID int
}

// ConstructShip starts production of a ship in an idle building.
type ConstructShip struct {
	PlanetID   int
	BuildingID int
	ShipType   string
}

// ConstructBuilding starts construction of a building on a planet.
type ConstructBuilding struct {
	PlanetID     int
	BuildingType string
}

func (MoveShip) Kind() ActionKind          { return ActionMoveShip }
func (ShootShip) Kind() ActionKind         { return ActionShootShip }
func (BombPlanet) Kind() ActionKind        { return ActionBombPlanet }
func (JumpShip) Kind() ActionKind          { return ActionJumpShip }
func (ConstructShip) Kind() ActionKind     { return ActionConstructShip }
func (ConstructBuilding) Kind() ActionKind { return ActionConstructBuilding }

func NewMoveShip(player string, shipID int, dest geometry.Point) Action {
	return Action{Player: player, Payload: MoveShip{ShipID: shipID, Destination: dest}}
}

func NewShootShip(player string, shipID, targetID int) Action {
	return Action{Player: player, Payload: ShootShip{ShipID: shipID, TargetID: targetID}}
}

func NewBombPlanet(player string, shipID, planetID int) Action {
	return Action{Player: player, Payload: BombPlanet{ShipID: shipID, PlanetID: planetID}}
}

func NewJumpShip(player string, shipID, portalID int) Action {
	return Action{Player: player, Payload: JumpShip{ShipID: shipID, PortalID: portalID}}
}

func NewConstructShip(player string, planetID, buildingID int, shipType string) Action {
	return Action{Player: player, Payload: ConstructShip{PlanetID: planetID, BuildingID: buildingID, ShipType: shipType}}
}

func NewConstructBuilding(player string, planetID int, buildingType string) Action {
	return Action{Player: player, Payload: ConstructBuilding{PlanetID: planetID, BuildingType: buildingType}}
}

func (a Action) ToValue() *value.Value {
	v := value.NewObject().
		Set("player", value.String(a.Player)).
		Set("actiontype", value.String(string(a.Kind())))
	if a.Payload != nil {
		a.Payload.encode(v)
	}
	return v
}

// MoveShip destinations travel as full grid locations; the footprint is
// always the ship's own and only the origin is read back.
func (p MoveShip) encode(v *value.Value) {
	v.Set("ship", value.Int(p.ShipID)).
		Set("destination", geometry.GridLocation{Origin: p.Destination, Dimension: geometry.Dimension{Width: 1, Height: 1}}.ToValue())
}

func (p ShootShip) encode(v *value.Value) {
	v.Set("ship", value.Int(p.ShipID)).Set("target", value.Int(p.TargetID))
	if p.Rolled {
		v.Set("damage", value.Int(p.Damage))
	}
}

func (p BombPlanet) encode(v *value.Value) {
	v.Set("ship", value.Int(p.ShipID)).Set("planet", value.Int(p.PlanetID))
	if p.Rolled {
		v.Set("damage", value.Int(p.Damage))
	}
}

func (p JumpShip) encode(v *value.Value) {
	v.Set("ship", value.Int(p.ShipID)).Set("portal", value.Int(p.PortalID))
}

func (p ConstructShip) encode(v *value.Value) {
	v.Set("planet", value.Int(p.PlanetID)).
		Set("building", value.Int(p.BuildingID)).
		Set("shiptype", value.String(p.ShipType))
}

func (p ConstructBuilding) encode(v *value.Value) {
	v.Set("planet", value.Int(p.PlanetID)).
		Set("buildingtype", value.String(p.BuildingType))
}

// ActionFromValue decodes an action against the state it will be applied
// to. The acting player and every referenced entity must exist.
func ActionFromValue(v *value.Value, s *GameState) (Action, error) {
	player, err := v.StringAttr("player")
	if err != nil {
		return Action{}, constructionErr("action", err)
	}
	if p := s.player(player); p == nil || p.IsNeutral() {
		return Action{}, constructionErrf("action", "unknown player %q", player)
	}
	kind, err := v.StringAttr("actiontype")
	if err != nil {
		return Action{}, constructionErr("action", err)
	}

	entity := func(key string, want EntityKind) (int, error) {
		id, err := v.IntAttr(key)
		if err != nil {
			return 0, constructionErr(kind, err)
		}
		e, ok := s.entities[id]
		if !ok || e.Kind != want {
			return 0, constructionErrf(kind, "no %s with id %d", want, id)
		}
		return id, nil
	}
	damage := func() (int, bool, error) {
		d := v.Get("damage")
		if d == nil {
			return 0, false, nil
		}
		i, err := d.AsInt()
		if err != nil {
			return 0, false, constructionErr(kind, err)
		}
		return i, true, nil
	}

	a := Action{Player: player}
	switch ActionKind(kind) {
	case ActionMoveShip:
		shipID, err := entity("ship", EntityShip)
		if err != nil {
			return Action{}, err
		}
		destValue, err := v.ObjectAttr("destination")
		if err != nil {
			return Action{}, constructionErr(kind, err)
		}
		dest, err := geometry.GridLocationFromValue(destValue)
		if err != nil {
			return Action{}, constructionErr(kind, err)
		}
		a.Payload = MoveShip{ShipID: shipID, Destination: dest.Origin}
	case ActionShootShip:
		shipID, err := entity("ship", EntityShip)
		if err != nil {
			return Action{}, err
		}
		targetID, err := entity("target", EntityShip)
		if err != nil {
			return Action{}, err
		}
		d, rolled, err := damage()
		if err != nil {
			return Action{}, err
		}
		a.Payload = ShootShip{ShipID: shipID, TargetID: targetID, Damage: d, Rolled: rolled}
	case ActionBombPlanet:
		shipID, err := entity("ship", EntityShip)
		if err != nil {
			return Action{}, err
		}
		planetID, err := entity("planet", EntityPlanet)
		if err != nil {
			return Action{}, err
		}
		d, rolled, err := damage()
		if err != nil {
			return Action{}, err
		}
		a.Payload = BombPlanet{ShipID: shipID, PlanetID: planetID, Damage: d, Rolled: rolled}
	case ActionJumpShip:
		shipID, err := entity("ship", EntityShip)
		if err != nil {
			return Action{}, err
		}
		portalID, err := entity("portal", EntityPortal)
		if err != nil {
			return Action{}, err
		}
		a.Payload = JumpShip{ShipID: shipID, PortalID: portalID}
	case ActionConstructShip:
		planetID, err := entity("planet", EntityPlanet)
		if err != nil {
			return Action{}, err
		}
		buildingID, err := v.IntAttr("building")
		if err != nil {
			return Action{}, constructionErr(kind, err)
		}
		if _, ok := s.entities[planetID].Planet.Building(buildingID); !ok {
			return Action{}, constructionErrf(kind, "planet %d has no building %d", planetID, buildingID)
		}
		shipType, err := v.StringAttr("shiptype")
		if err != nil {
			return Action{}, constructionErr(kind, err)
		}
		a.Payload = ConstructShip{PlanetID: planetID, BuildingID: buildingID, ShipType: shipType}
	case ActionConstructBuilding:
		planetID, err := entity("planet", EntityPlanet)
		if err != nil {
			return Action{}, err
		}
		buildingType, err := v.StringAttr("buildingtype")
		if err != nil {
			return Action{}, constructionErr(kind, err)
		}
		a.Payload = ConstructBuilding{PlanetID: planetID, BuildingType: buildingType}
	default:
		return Action{}, constructionErrf("action", "unknown action type %q", kind)
	}
	return a, nil
}

// WithoutRoll returns the action with any carried damage roll discarded, so
// the receiving peer rolls it again.
func (a Action) WithoutRoll() Action {
	switch pl := a.Payload.(type) {
	case ShootShip:
		pl.Damage, pl.Rolled = 0, false
		a.Payload = pl
	case BombPlanet:
		pl.Damage, pl.Rolled = 0, false
		a.Payload = pl
	}
	return a
}
