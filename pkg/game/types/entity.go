package types

import (
	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/value"
)

type EntityKind string

const (
	EntityShip   EntityKind = "ship"
	EntityPlanet EntityKind = "planet"
	EntityStar   EntityKind = "star"
	EntityPortal EntityKind = "portal"
)

// Entity is anything placed on the grid of a solar system. Exactly one of
// Ship, Planet, Star and Portal is set, matching Kind.
type Entity struct {
	ID       int
	Kind     EntityKind
	Owner    string
	System   int
	Location geometry.GridLocation
	// IgnorePathfinder entities never block movement.
	IgnorePathfinder bool

	Ship   *Ship
	Planet *Planet
	Star   *Star
	Portal *Portal
}

// InTransit reports whether the entity is a ship crossing a wormhole.
func (e *Entity) InTransit() bool {
	return e.Ship != nil && e.Ship.Transit != nil
}

type Ship struct {
	Type    string
	Health  int
	Transit *Transit
}

type Planet struct {
	Type      string
	Health    int
	Buildings []*Building
}

// Building returns the building with the given id.
func (p *Planet) Building(id int) (*Building, bool) {
	for _, b := range p.Buildings {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

type Star struct {
	Type string
}

// Building is a planet structure. Progress counts the rounds left until it
// is complete; a complete building may be producing one ship at a time.
type Building struct {
	ID       int
	Type     string
	Progress int
	Ship     *ShipProgress
}

func (b *Building) Complete() bool {
	return b.Progress <= 0
}

func (b *Building) Idle() bool {
	return b.Complete() && b.Ship == nil
}

type ShipProgress struct {
	Type      string
	Remaining int
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	c := *e
	if e.Ship != nil {
		s := *e.Ship
		if e.Ship.Transit != nil {
			t := *e.Ship.Transit
			s.Transit = &t
		}
		c.Ship = &s
	}
	if e.Planet != nil {
		p := *e.Planet
		p.Buildings = make([]*Building, len(e.Planet.Buildings))
		for i, b := range e.Planet.Buildings {
			nb := *b
			if b.Ship != nil {
				sp := *b.Ship
				nb.Ship = &sp
			}
			p.Buildings[i] = &nb
		}
		c.Planet = &p
	}
	if e.Star != nil {
		s := *e.Star
		c.Star = &s
	}
	if e.Portal != nil {
		p := *e.Portal
		c.Portal = &p
	}
	return &c
}

func (e *Entity) ToValue() *value.Value {
	v := value.NewObject().
		Set("id", value.Int(e.ID)).
		Set("proptype", value.String(string(e.Kind))).
		Set("player", value.String(e.Owner)).
		Set("solarsystem", value.Int(e.System)).
		Set("location", e.Location.ToValue())
	if e.IgnorePathfinder {
		v.Set("ignorepathfinder", value.Bool(true))
	}
	switch e.Kind {
	case EntityShip:
		v.Set("shiptype", value.String(e.Ship.Type)).
			Set("health", value.Int(e.Ship.Health))
		if e.Ship.Transit != nil {
			v.Set("transit", e.Ship.Transit.ToValue())
		}
	case EntityPlanet:
		buildings := value.NewList()
		for _, b := range e.Planet.Buildings {
			buildings.Append(b.ToValue())
		}
		v.Set("planettype", value.String(e.Planet.Type)).
			Set("health", value.Int(e.Planet.Health)).
			Set("buildings", buildings)
	case EntityStar:
		v.Set("startype", value.String(e.Star.Type))
	case EntityPortal:
		v.Set("wormhole", value.Int(e.Portal.Wormhole))
	}
	return v
}

func (b *Building) ToValue() *value.Value {
	v := value.NewObject().
		Set("id", value.Int(b.ID)).
		Set("type", value.String(b.Type)).
		Set("progress", value.Int(b.Progress))
	if b.Ship == nil {
		v.Set("ship", value.Null())
	} else {
		v.Set("ship", value.NewObject().
			Set("name", value.String(b.Ship.Type)).
			Set("progress", value.Int(b.Ship.Remaining)))
	}
	return v
}

// EntityFromValue decodes the fields of an entity. References to players
// and game data are checked by the game state that adds it.
func EntityFromValue(v *value.Value) (*Entity, error) {
	id, err := v.IntAttr("id")
	if err != nil {
		return nil, constructionErr("entity", err)
	}
	kind, err := v.StringAttr("proptype")
	if err != nil {
		return nil, constructionErr("entity", err)
	}
	owner, err := v.StringAttr("player")
	if err != nil {
		return nil, constructionErr("entity", err)
	}
	locValue, err := v.ObjectAttr("location")
	if err != nil {
		return nil, constructionErr("entity", err)
	}
	loc, err := geometry.GridLocationFromValue(locValue)
	if err != nil {
		return nil, constructionErr("entity", err)
	}
	e := &Entity{ID: id, Kind: EntityKind(kind), Owner: owner, Location: loc}
	if system := v.Get("solarsystem"); system != nil {
		if e.System, err = system.AsInt(); err != nil {
			return nil, constructionErr("entity", err)
		}
	}
	if ignore := v.Get("ignorepathfinder"); ignore != nil {
		if e.IgnorePathfinder, err = ignore.AsBool(); err != nil {
			return nil, constructionErr("entity", err)
		}
	}

	switch e.Kind {
	case EntityShip:
		shipType, err := v.StringAttr("shiptype")
		if err != nil {
			return nil, constructionErr("ship", err)
		}
		health, err := v.IntAttr("health")
		if err != nil {
			return nil, constructionErr("ship", err)
		}
		e.Ship = &Ship{Type: shipType, Health: health}
		if transit := v.Get("transit"); transit != nil {
			if e.Ship.Transit, err = TransitFromValue(transit); err != nil {
				return nil, err
			}
		}
	case EntityPlanet:
		planetType, err := v.StringAttr("planettype")
		if err != nil {
			return nil, constructionErr("planet", err)
		}
		health, err := v.IntAttr("health")
		if err != nil {
			return nil, constructionErr("planet", err)
		}
		buildingValues, err := v.ListAttr("buildings")
		if err != nil {
			return nil, constructionErr("planet", err)
		}
		e.Planet = &Planet{Type: planetType, Health: health}
		for _, bv := range buildingValues {
			b, err := BuildingFromValue(bv)
			if err != nil {
				return nil, err
			}
			e.Planet.Buildings = append(e.Planet.Buildings, b)
		}
	case EntityStar:
		starType, err := v.StringAttr("startype")
		if err != nil {
			return nil, constructionErr("star", err)
		}
		e.Star = &Star{Type: starType}
	case EntityPortal:
		wormhole, err := v.IntAttr("wormhole")
		if err != nil {
			return nil, constructionErr("portal", err)
		}
		e.Portal = &Portal{Wormhole: wormhole}
	default:
		return nil, constructionErrf("entity", "unknown prop type %q", kind)
	}
	return e, nil
}

func BuildingFromValue(v *value.Value) (*Building, error) {
	id, err := v.IntAttr("id")
	if err != nil {
		return nil, constructionErr("building", err)
	}
	buildingType, err := v.StringAttr("type")
	if err != nil {
		return nil, constructionErr("building", err)
	}
	progress, err := v.IntAttr("progress")
	if err != nil {
		return nil, constructionErr("building", err)
	}
	b := &Building{ID: id, Type: buildingType, Progress: progress}
	if ship := v.OptAttr("ship"); !ship.IsNull() {
		name, err := ship.StringAttr("name")
		if err != nil {
			return nil, constructionErr("building", err)
		}
		remaining, err := ship.IntAttr("progress")
		if err != nil {
			return nil, constructionErr("building", err)
		}
		b.Ship = &ShipProgress{Type: name, Remaining: remaining}
	}
	return b, nil
}
