package types

import (
	"github.com/cbodonnell/evervoid/pkg/config"
	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/value"
)

func (s *GameState) ToValue() *value.Value {
	players := value.NewList(s.neutral.ToValue())
	for _, p := range s.players {
		players.Append(p.ToValue())
	}
	systems := value.NewList()
	for _, ss := range s.systems {
		systems.Append(ss.ToValue())
	}
	wormholes := value.NewList()
	for _, w := range s.wormholes {
		wormholes.Append(w.ToValue())
	}
	entities := value.NewList()
	for _, id := range s.entityIDs() {
		entities.Append(s.entities[id].ToValue())
	}
	v := value.NewObject().
		Set("round", value.Int(s.round)).
		Set("seed", value.Int64(s.seed)).
		Set("nextid", value.Int(s.nextID)).
		Set("dimension", s.dimension.ToValue()).
		Set("players", players).
		Set("solarsystems", systems).
		Set("wormholes", wormholes).
		Set("props", entities)
	if s.winner != "" {
		v.Set("winner", value.String(s.winner))
	} else {
		v.Set("winner", value.Null())
	}
	if s.drawn {
		v.Set("draw", value.Bool(true))
	}
	return v
}

// Snapshot returns the compact serialization of the state. Equal states
// always produce identical snapshots.
func (s *GameState) Snapshot() string {
	return value.Serialize(s.ToValue())
}

func (s *GameState) Hash() value.Digest {
	return value.Hash(s.ToValue())
}

// Clone returns an independent copy of the state without observers.
func (s *GameState) Clone() *GameState {
	c, err := GameStateFromValue(s.ToValue(), s.data)
	if err != nil {
		// a state always decodes its own serialization
		panic(err)
	}
	return c
}

// GameStateFromValue rebuilds a state, checking every entity against the
// players, the galaxy and the game data. A state without solar systems is
// read as a single system 0.
func GameStateFromValue(v *value.Value, data *config.GameData) (*GameState, error) {
	round, err := v.IntAttr("round")
	if err != nil {
		return nil, constructionErr("game state", err)
	}
	seed, err := v.Int64Attr("seed")
	if err != nil {
		return nil, constructionErr("game state", err)
	}
	nextID, err := v.IntAttr("nextid")
	if err != nil {
		return nil, constructionErr("game state", err)
	}
	dimValue, err := v.ObjectAttr("dimension")
	if err != nil {
		return nil, constructionErr("game state", err)
	}
	dim, err := geometry.DimensionFromValue(dimValue)
	if err != nil {
		return nil, constructionErr("game state", err)
	}
	if dim.Width <= 0 || dim.Height <= 0 {
		return nil, constructionErrf("game state", "invalid dimension %dx%d", dim.Width, dim.Height)
	}
	playerValues, err := v.ListAttr("players")
	if err != nil {
		return nil, constructionErr("game state", err)
	}
	entityValues, err := v.ListAttr("props")
	if err != nil {
		return nil, constructionErr("game state", err)
	}

	s := NewGameState(data, dim, seed)
	s.round = round
	for _, pv := range playerValues {
		p, err := PlayerFromValue(pv, data)
		if err != nil {
			return nil, err
		}
		if p.IsNeutral() {
			s.neutral = p
			continue
		}
		if err := s.AddPlayer(p); err != nil {
			return nil, &ConstructionError{Entity: "player", Reason: "duplicate player", Err: err}
		}
	}
	if systems := v.Get("solarsystems"); systems != nil {
		systemValues, err := systems.AsList()
		if err != nil {
			return nil, constructionErr("game state", err)
		}
		if len(systemValues) == 0 {
			return nil, constructionErrf("game state", "galaxy has no solar system")
		}
		s.systems = nil
		s.occupancy = make(map[int]*occupancy)
		for _, sv := range systemValues {
			ss, err := SolarSystemFromValue(sv)
			if err != nil {
				return nil, err
			}
			if err := s.addSolarSystem(ss); err != nil {
				return nil, &ConstructionError{Entity: "solar system", Reason: "duplicate solar system", Err: err}
			}
		}
	}
	if wormholes := v.Get("wormholes"); wormholes != nil {
		wormholeValues, err := wormholes.AsList()
		if err != nil {
			return nil, constructionErr("game state", err)
		}
		for _, wv := range wormholeValues {
			w, err := WormholeFromValue(wv)
			if err != nil {
				return nil, err
			}
			if err := s.addWormhole(w); err != nil {
				return nil, &ConstructionError{Entity: "wormhole", Reason: "invalid wormhole", Err: err}
			}
		}
	}
	for _, ev := range entityValues {
		e, err := EntityFromValue(ev)
		if err != nil {
			return nil, err
		}
		if err := s.checkEntity(e); err != nil {
			return nil, err
		}
		if err := s.addEntity(e); err != nil {
			return nil, &ConstructionError{Entity: string(e.Kind), Reason: "invalid placement", Err: err}
		}
	}
	if nextID > s.nextID {
		s.nextID = nextID
	}
	if w := v.OptAttr("winner"); !w.IsNull() {
		if s.winner, err = w.AsString(); err != nil {
			return nil, constructionErr("game state", err)
		}
	}
	if d := v.Get("draw"); d != nil {
		if s.drawn, err = d.AsBool(); err != nil {
			return nil, constructionErr("game state", err)
		}
	}
	return s, nil
}

// checkEntity resolves an entity's owner and type against the players and
// the game data.
func (s *GameState) checkEntity(e *Entity) error {
	owner := s.player(e.Owner)
	if owner == nil {
		return constructionErrf(string(e.Kind), "%d is owned by unknown player %q", e.ID, e.Owner)
	}
	if s.system(e.System) == nil {
		return constructionErrf(string(e.Kind), "%d is in unknown solar system %d", e.ID, e.System)
	}
	switch e.Kind {
	case EntityShip:
		sd, ok := s.data.Ship(owner.Race, e.Ship.Type)
		if !ok {
			return constructionErrf("ship", "unknown ship type %q for race %q", e.Ship.Type, owner.Race)
		}
		if e.Location.Dimension != shipDimension(sd) {
			return constructionErrf("ship", "%d has footprint %dx%d, expected %dx%d", e.ID,
				e.Location.Dimension.Width, e.Location.Dimension.Height, sd.Width, sd.Height)
		}
		if t := e.Ship.Transit; t != nil {
			w := s.wormhole(t.Wormhole)
			if w == nil {
				return constructionErrf("ship", "%d crosses unknown wormhole %d", e.ID, t.Wormhole)
			}
			if _, ok := w.Other(t.Destination); !ok || t.Remaining < 1 {
				return constructionErrf("ship", "%d has an invalid transit through wormhole %d", e.ID, w.ID)
			}
		}
	case EntityPlanet:
		if _, ok := s.data.Planet(e.Planet.Type); !ok {
			return constructionErrf("planet", "unknown planet type %q", e.Planet.Type)
		}
		if owner.IsNeutral() && len(e.Planet.Buildings) > 0 {
			return constructionErrf("planet", "neutral planet %d has buildings", e.ID)
		}
		for _, b := range e.Planet.Buildings {
			if _, ok := s.data.Building(owner.Race, b.Type); !ok {
				return constructionErrf("building", "unknown building type %q for race %q", b.Type, owner.Race)
			}
			if b.Ship != nil {
				if _, ok := s.data.Ship(owner.Race, b.Ship.Type); !ok {
					return constructionErrf("building", "unknown ship type %q for race %q", b.Ship.Type, owner.Race)
				}
			}
			if b.ID >= s.nextID {
				s.nextID = b.ID + 1
			}
		}
	case EntityStar:
		if _, ok := s.data.Star(e.Star.Type); !ok {
			return constructionErrf("star", "unknown star type %q", e.Star.Type)
		}
	case EntityPortal:
		w := s.wormhole(e.Portal.Wormhole)
		if w == nil {
			return constructionErrf("portal", "%d opens unknown wormhole %d", e.ID, e.Portal.Wormhole)
		}
		if _, ok := w.Other(e.System); !ok {
			return constructionErrf("portal", "wormhole %d does not reach solar system %d", w.ID, e.System)
		}
	}
	return nil
}
