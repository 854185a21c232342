package types

import (
	"fmt"
	"math/rand"

	"github.com/cbodonnell/evervoid/pkg/config"
	"github.com/cbodonnell/evervoid/pkg/geometry"
)

const maxPlacementAttempts = 1000

// PlayerSpec describes a player joining a new match.
type PlayerSpec struct {
	Name  string
	Race  string
	Color string
}

// NewPlayer creates a player with its race's starting resources.
func NewPlayer(spec PlayerSpec, data *config.GameData) (*Player, error) {
	race, ok := data.Race(spec.Race)
	if !ok {
		return nil, fmt.Errorf("unknown race %q", spec.Race)
	}
	c, ok := data.Color(spec.Color)
	if !ok {
		return nil, fmt.Errorf("unknown color %q", spec.Color)
	}
	resources := ResourceAmount{}
	for _, r := range data.Resources {
		resources[r] = race.StartResources[r]
	}
	return &Player{
		Name:      spec.Name,
		Race:      spec.Race,
		ColorName: spec.Color,
		Color:     ColorFromData(c),
		Resources: resources,
	}, nil
}

func shipDimension(sd config.ShipData) geometry.Dimension {
	return geometry.Dimension{Width: sd.Width, Height: sd.Height}
}

// NewGame generates a match. Placement is a pure function of the players,
// the game data and the seed. Solar systems are chained by wormholes, the
// ring closing once there are more than two; players take home systems in
// turn.
func NewGame(specs []PlayerSpec, data *config.GameData, seed int64) (*GameState, error) {
	dim := geometry.Dimension{Width: data.Galaxy.Width, Height: data.Galaxy.Height}
	s := NewGameState(data, dim, seed)
	rng := rand.New(rand.NewSource(seed))

	for _, spec := range specs {
		p, err := NewPlayer(spec, data)
		if err != nil {
			return nil, fmt.Errorf("failed to create player %s: %w", spec.Name, err)
		}
		if err := s.AddPlayer(p); err != nil {
			return nil, err
		}
	}

	systems := data.Galaxy.Systems()
	galaxySize := max(data.Galaxy.Size, 1)
	s.systems[0].Point = geometry.Point{X: rng.Intn(galaxySize), Y: rng.Intn(galaxySize)}
	for id := 1; id < systems; id++ {
		if err := s.addSolarSystem(&SolarSystem{ID: id, Point: geometry.Point{X: rng.Intn(galaxySize), Y: rng.Intn(galaxySize)}}); err != nil {
			return nil, err
		}
	}
	starTypes := data.StarTypes()
	for _, ss := range s.systems {
		if err := s.placeStar(ss.ID, starTypes[rng.Intn(len(starTypes))]); err != nil {
			return nil, err
		}
	}
	for id := 0; id+1 < systems; id++ {
		if err := s.connect(rng, id, id+1); err != nil {
			return nil, err
		}
	}
	if systems > 2 {
		if err := s.connect(rng, systems-1, 0); err != nil {
			return nil, err
		}
	}

	planetTypes := data.PlanetTypes()
	for i, p := range s.players {
		home := i % systems
		race, _ := data.Race(p.Race)
		for j := 0; j < max(data.Galaxy.PlanetsPerPlayer, 1); j++ {
			planet, err := s.placePlanet(rng, home, planetTypes, p.Name)
			if err != nil {
				return nil, err
			}
			if j > 0 {
				continue
			}
			for _, b := range race.InitialBuildings {
				planet.Planet.Buildings = append(planet.Planet.Buildings, &Building{ID: s.allocateID(), Type: b})
			}
			for _, shipType := range race.StartShips {
				if _, ok := s.spawnShip(planet, shipType); !ok {
					return nil, fmt.Errorf("no room for %s's starting %s", p.Name, shipType)
				}
			}
		}
	}
	for i := 0; i < data.Galaxy.NeutralPlanets; i++ {
		if _, err := s.placePlanet(rng, i%systems, planetTypes, NeutralPlayer); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *GameState) placeStar(system int, starType string) error {
	sd, _ := s.data.Star(starType)
	loc := geometry.NewGridLocation(s.dimension.Width/2-sd.Width/2, s.dimension.Height/2-sd.Height/2, sd.Width, sd.Height)
	if err := s.addEntity(&Entity{
		ID:               s.allocateID(),
		Kind:             EntityStar,
		Owner:            NeutralPlayer,
		System:           system,
		Location:         loc,
		IgnorePathfinder: sd.IgnorePathfinder,
		Star:             &Star{Type: starType},
	}); err != nil {
		return fmt.Errorf("failed to place star: %w", err)
	}
	return nil
}

// randomFreeLocation picks a random spot of the given dimension in a solar
// system, keeping a one cell margin around it so ships can spawn.
func (s *GameState) randomFreeLocation(rng *rand.Rand, system int, dim geometry.Dimension) (geometry.GridLocation, bool) {
	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		loc := geometry.NewGridLocation(rng.Intn(s.dimension.Width), rng.Intn(s.dimension.Height), dim.Width, dim.Height).
			Constrain(s.dimension)
		if !s.IsOccupied(system, loc.Inflate(1)) {
			return loc, true
		}
	}
	return geometry.GridLocation{}, false
}

// placePlanet puts a random planet at a random free spot of a solar system.
func (s *GameState) placePlanet(rng *rand.Rand, system int, planetTypes []string, owner string) (*Entity, error) {
	planetType := planetTypes[rng.Intn(len(planetTypes))]
	pd, _ := s.data.Planet(planetType)
	loc, ok := s.randomFreeLocation(rng, system, geometry.Dimension{Width: pd.Width, Height: pd.Height})
	if !ok {
		return nil, fmt.Errorf("no room for a %s planet in solar system %d", planetType, system)
	}
	e := &Entity{
		ID:       s.allocateID(),
		Kind:     EntityPlanet,
		Owner:    owner,
		System:   system,
		Location: loc,
		Planet:   &Planet{Type: planetType, Health: pd.Health},
	}
	if err := s.addEntity(e); err != nil {
		return nil, err
	}
	return e, nil
}
