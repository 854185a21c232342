package types

import "github.com/cbodonnell/evervoid/pkg/geometry"

// Event describes one effect of an applied turn, in the order it happened.
// Events tied to an action carry the action's index in the executed turn.
type Event interface {
	EventType() string
}

type ShipMoved struct {
	ActionIndex int
	ShipID      int
	From        geometry.GridLocation
	Path        []geometry.GridLocation
}

type DamageApplied struct {
	ActionIndex int
	ShipID      int
	TargetID    int
	Amount      int
	Remaining   int
}

type ShipDestroyed struct {
	ActionIndex int
	ShipID      int
	Owner       string
}

type PlanetBombed struct {
	ActionIndex int
	ShipID      int
	PlanetID    int
	Amount      int
	Remaining   int
}

type PlanetCaptured struct {
	ActionIndex int
	PlanetID    int
	Previous    string
	Owner       string
}

type ShipEnteredWormhole struct {
	ActionIndex int
	ShipID      int
	WormholeID  int
	From        int
	To          int
	Turns       int
}

// ShipExitedWormhole places a ship that finished crossing a wormhole next to
// the portal of its destination system.
type ShipExitedWormhole struct {
	ShipID     int
	WormholeID int
	System     int
	Location   geometry.GridLocation
}

type BuildingStarted struct {
	ActionIndex  int
	PlanetID     int
	BuildingID   int
	BuildingType string
}

type ShipProductionStarted struct {
	ActionIndex int
	PlanetID    int
	BuildingID  int
	ShipType    string
}

type BuildingCompleted struct {
	PlanetID     int
	BuildingID   int
	BuildingType string
}

type ShipSpawned struct {
	PlanetID   int
	BuildingID int
	ShipID     int
	ShipType   string
	Owner      string
	Location   geometry.GridLocation
}

type ResourcesGained struct {
	Player string
	Amount ResourceAmount
}

type PlayerDefeated struct {
	Player string
}

type PlayerVictorious struct {
	Player string
}

// GameDrawn ends a match whose last players were all defeated in Round.
type GameDrawn struct {
	Round int
}

func (ShipMoved) EventType() string             { return "shipmoved" }
func (DamageApplied) EventType() string         { return "damageapplied" }
func (ShipDestroyed) EventType() string         { return "shipdestroyed" }
func (PlanetBombed) EventType() string          { return "planetbombed" }
func (PlanetCaptured) EventType() string        { return "planetcaptured" }
func (ShipEnteredWormhole) EventType() string   { return "shipenteredwormhole" }
func (ShipExitedWormhole) EventType() string    { return "shipexitedwormhole" }
func (BuildingStarted) EventType() string       { return "buildingstarted" }
func (ShipProductionStarted) EventType() string { return "shipproductionstarted" }
func (BuildingCompleted) EventType() string     { return "buildingcompleted" }
func (ShipSpawned) EventType() string           { return "shipspawned" }
func (ResourcesGained) EventType() string       { return "resourcesgained" }
func (PlayerDefeated) EventType() string        { return "playerdefeated" }
func (PlayerVictorious) EventType() string      { return "playervictorious" }
func (GameDrawn) EventType() string             { return "gamedrawn" }
