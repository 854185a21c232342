// Package config loads the static game data shared by every peer of a match.
package config

import (
	"fmt"
	"sort"
)

// GameData is the static description of a match: resources, races and the
// ships, buildings, planets and stars they refer to. Server and clients must
// load identical game data for their simulations to agree.
type GameData struct {
	Resources   []string              `yaml:"resources"`
	Galaxy      GalaxyData            `yaml:"galaxy"`
	Turn        TurnData              `yaml:"turn"`
	Pathfinding PathfindingData       `yaml:"pathfinding"`
	Combat      CombatData            `yaml:"combat"`
	Colors      map[string]ColorData  `yaml:"colors"`
	Stars       map[string]StarData   `yaml:"stars"`
	Planets     map[string]PlanetData `yaml:"planets"`
	Races       map[string]RaceData   `yaml:"races"`
}

// GalaxyData sizes a match. Width and Height are the grid of every solar
// system; Size bounds the galaxy map the systems are scattered on.
type GalaxyData struct {
	Width            int          `yaml:"width"`
	Height           int          `yaml:"height"`
	PlanetsPerPlayer int          `yaml:"planetsperplayer"`
	NeutralPlanets   int          `yaml:"neutralplanets"`
	SolarSystems     int          `yaml:"solarsystems"`
	Size             int          `yaml:"size"`
	Wormhole         WormholeData `yaml:"wormhole"`
}

// WormholeData turns the galaxy distance between two solar systems into the
// number of rounds a ship needs to cross the wormhole joining them.
type WormholeData struct {
	DistancePerTurn int `yaml:"distanceperturn"`
	MinTurns        int `yaml:"minturns"`
	MaxTurns        int `yaml:"maxturns"`
}

// Systems returns the number of solar systems, at least one.
func (g GalaxyData) Systems() int {
	return max(g.SolarSystems, 1)
}

// WormholeTurns returns the crossing time of a wormhole spanning distance.
func (g GalaxyData) WormholeTurns(distance int) int {
	turns := g.Wormhole.MinTurns
	if g.Wormhole.DistancePerTurn > 0 {
		turns = distance / g.Wormhole.DistancePerTurn
	}
	return min(max(turns, g.Wormhole.MinTurns, 1), max(g.Wormhole.MaxTurns, g.Wormhole.MinTurns, 1))
}

type TurnData struct {
	// Timeout in seconds.
	Timeout int `yaml:"timeout"`
}

type PathfindingData struct {
	AvoidDistance int `yaml:"avoiddistance"`
	AvoidPenalty  int `yaml:"avoidpenalty"`
}

type CombatData struct {
	MinDamageRatio float64 `yaml:"mindamageratio"`
}

type ColorData struct {
	Red   float64 `yaml:"red"`
	Green float64 `yaml:"green"`
	Blue  float64 `yaml:"blue"`
	Alpha float64 `yaml:"alpha"`
}

type StarData struct {
	Title            string `yaml:"title"`
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
	IgnorePathfinder bool   `yaml:"ignorepathfinder"`
}

type PlanetData struct {
	Title        string         `yaml:"title"`
	Width        int            `yaml:"width"`
	Height       int            `yaml:"height"`
	Health       int            `yaml:"health"`
	Slots        int            `yaml:"slots"`
	ResourceRate map[string]int `yaml:"resourcerate"`
}

type RaceData struct {
	Title            string                  `yaml:"title"`
	StartResources   map[string]int          `yaml:"startresources"`
	InitialBuildings []string                `yaml:"initialbuildings"`
	StartShips       []string                `yaml:"startships"`
	Buildings        map[string]BuildingData `yaml:"buildings"`
	Ships            map[string]ShipData     `yaml:"ships"`
}

type BuildingData struct {
	Title     string         `yaml:"title"`
	BuildTime int            `yaml:"buildtime"`
	Cost      map[string]int `yaml:"cost"`
	Ships     []string       `yaml:"ships"`
}

// CanBuild reports whether the building can produce the ship type.
func (b BuildingData) CanBuild(shipType string) bool {
	for _, s := range b.Ships {
		if s == shipType {
			return true
		}
	}
	return false
}

type ShipData struct {
	Title     string         `yaml:"title"`
	Width     int            `yaml:"width"`
	Height    int            `yaml:"height"`
	Speed     int            `yaml:"speed"`
	Health    int            `yaml:"health"`
	Damage    int            `yaml:"damage"`
	Range     int            `yaml:"range"`
	CanShoot  bool           `yaml:"canshoot"`
	CanBomb   bool           `yaml:"canbomb"`
	BuildTime int            `yaml:"buildtime"`
	Cost      map[string]int `yaml:"cost"`
}

func (gd *GameData) Race(race string) (RaceData, bool) {
	r, ok := gd.Races[race]
	return r, ok
}

func (gd *GameData) Ship(race, shipType string) (ShipData, bool) {
	r, ok := gd.Races[race]
	if !ok {
		return ShipData{}, false
	}
	s, ok := r.Ships[shipType]
	return s, ok
}

func (gd *GameData) Building(race, buildingType string) (BuildingData, bool) {
	r, ok := gd.Races[race]
	if !ok {
		return BuildingData{}, false
	}
	b, ok := r.Buildings[buildingType]
	return b, ok
}

func (gd *GameData) Planet(planetType string) (PlanetData, bool) {
	p, ok := gd.Planets[planetType]
	return p, ok
}

func (gd *GameData) Star(starType string) (StarData, bool) {
	s, ok := gd.Stars[starType]
	return s, ok
}

func (gd *GameData) Color(name string) (ColorData, bool) {
	c, ok := gd.Colors[name]
	return c, ok
}

// RaceNames returns the race identifiers in sorted order.
func (gd *GameData) RaceNames() []string {
	return sortedKeys(gd.Races)
}

func (gd *GameData) StarTypes() []string {
	return sortedKeys(gd.Stars)
}

func (gd *GameData) PlanetTypes() []string {
	return sortedKeys(gd.Planets)
}

func (gd *GameData) ColorNames() []string {
	return sortedKeys(gd.Colors)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that every cross reference in the game data resolves.
func (gd *GameData) Validate() error {
	if gd.Galaxy.Width <= 0 || gd.Galaxy.Height <= 0 {
		return fmt.Errorf("invalid galaxy dimension %dx%d", gd.Galaxy.Width, gd.Galaxy.Height)
	}
	if gd.Galaxy.SolarSystems < 0 {
		return fmt.Errorf("invalid solar system count %d", gd.Galaxy.SolarSystems)
	}
	if w := gd.Galaxy.Wormhole; w.MinTurns < 0 || w.DistancePerTurn < 0 || (w.MaxTurns > 0 && w.MaxTurns < w.MinTurns) {
		return fmt.Errorf("invalid wormhole turns %d-%d", w.MinTurns, w.MaxTurns)
	}
	if len(gd.Stars) == 0 || len(gd.Planets) == 0 || len(gd.Races) == 0 {
		return fmt.Errorf("game data needs at least one star type, planet type and race")
	}
	resources := make(map[string]bool, len(gd.Resources))
	for _, r := range gd.Resources {
		resources[r] = true
	}
	checkAmounts := func(owner string, amounts map[string]int) error {
		for r := range amounts {
			if !resources[r] {
				return fmt.Errorf("%s refers to unknown resource %q", owner, r)
			}
		}
		return nil
	}
	for name, p := range gd.Planets {
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("planet type %q has an invalid dimension", name)
		}
		if err := checkAmounts("planet type "+name, p.ResourceRate); err != nil {
			return err
		}
	}
	for name, s := range gd.Stars {
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("star type %q has an invalid dimension", name)
		}
	}
	for raceName, race := range gd.Races {
		if err := checkAmounts("race "+raceName, race.StartResources); err != nil {
			return err
		}
		for shipName, s := range race.Ships {
			if s.Width <= 0 || s.Height <= 0 || s.Speed < 0 || s.Health <= 0 {
				return fmt.Errorf("ship %s/%s has invalid stats", raceName, shipName)
			}
			if err := checkAmounts("ship "+raceName+"/"+shipName, s.Cost); err != nil {
				return err
			}
		}
		for buildingName, b := range race.Buildings {
			if err := checkAmounts("building "+raceName+"/"+buildingName, b.Cost); err != nil {
				return err
			}
			for _, s := range b.Ships {
				if _, ok := race.Ships[s]; !ok {
					return fmt.Errorf("building %s/%s produces unknown ship %q", raceName, buildingName, s)
				}
			}
		}
		for _, b := range race.InitialBuildings {
			if _, ok := race.Buildings[b]; !ok {
				return fmt.Errorf("race %s starts with unknown building %q", raceName, b)
			}
		}
		for _, s := range race.StartShips {
			if _, ok := race.Ships[s]; !ok {
				return fmt.Errorf("race %s starts with unknown ship %q", raceName, s)
			}
		}
	}
	return nil
}
