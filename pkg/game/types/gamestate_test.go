package types

import (
	"errors"
	"testing"

	"github.com/cbodonnell/evervoid/pkg/config"
	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testData(t *testing.T) *config.GameData {
	t.Helper()
	data, err := config.DefaultGameData()
	require.NoError(t, err)
	return data
}

// newTestState returns an empty 10x10 match between alice (round) and bob
// (square).
func newTestState(t *testing.T) *GameState {
	t.Helper()
	data := testData(t)
	s := NewGameState(data, geometry.Dimension{Width: 10, Height: 10}, 7)
	for _, spec := range []PlayerSpec{
		{Name: "alice", Race: "round", Color: "red"},
		{Name: "bob", Race: "square", Color: "blue"},
	} {
		p, err := NewPlayer(spec, data)
		require.NoError(t, err)
		require.NoError(t, s.AddPlayer(p))
	}
	return s
}

func addShip(t *testing.T, s *GameState, owner, shipType string, x, y int) int {
	t.Helper()
	return addShipIn(t, s, 0, owner, shipType, x, y)
}

func addShipIn(t *testing.T, s *GameState, system int, owner, shipType string, x, y int) int {
	t.Helper()
	sd, ok := s.data.Ship(s.player(owner).Race, shipType)
	require.True(t, ok)
	e := &Entity{
		ID:       s.allocateID(),
		Kind:     EntityShip,
		Owner:    owner,
		System:   system,
		Location: geometry.NewGridLocation(x, y, sd.Width, sd.Height),
		Ship:     &Ship{Type: shipType, Health: sd.Health},
	}
	require.NoError(t, s.addEntity(e))
	return e.ID
}

func addPlanet(t *testing.T, s *GameState, owner, planetType string, x, y int, buildings ...string) int {
	t.Helper()
	pd, ok := s.data.Planet(planetType)
	require.True(t, ok)
	e := &Entity{
		ID:       s.allocateID(),
		Kind:     EntityPlanet,
		Owner:    owner,
		Location: geometry.NewGridLocation(x, y, pd.Width, pd.Height),
		Planet:   &Planet{Type: planetType, Health: pd.Health},
	}
	for _, b := range buildings {
		e.Planet.Buildings = append(e.Planet.Buildings, &Building{ID: s.allocateID(), Type: b})
	}
	require.NoError(t, s.addEntity(e))
	return e.ID
}

func sealed(round int, actions ...Action) *Turn {
	turn := NewTurn(round)
	turn.actions = actions
	turn.Seal()
	return turn
}

func TestGameState_occupancy(t *testing.T) {
	s := newTestState(t)
	planet := addPlanet(t, s, "alice", "terran", 2, 2)
	ship := addShip(t, s, "alice", "scout", 5, 5)

	e, ok := s.EntityAt(0, geometry.Point{X: 3, Y: 3})
	require.True(t, ok)
	assert.Equal(t, planet, e.ID)

	found := s.EntitiesAt(0, geometry.NewGridLocation(3, 3, 3, 3))
	require.Len(t, found, 2)
	assert.Equal(t, planet, found[0].ID)
	assert.Equal(t, ship, found[1].ID)

	assert.True(t, s.IsOccupied(0, geometry.NewGridLocation(5, 5, 1, 1)))
	assert.True(t, s.IsClear(0, ship, geometry.NewGridLocation(5, 5, 1, 1)))
	assert.False(t, s.IsOccupied(0, geometry.NewGridLocation(6, 6, 1, 1)))

	// copies returned by queries do not write through
	e.Owner = "bob"
	again, _ := s.Entity(planet)
	assert.Equal(t, "alice", again.Owner)

	s.moveEntity(s.entities[ship], geometry.NewGridLocation(7, 7, 1, 1))
	assert.False(t, s.IsOccupied(0, geometry.NewGridLocation(5, 5, 1, 1)))
	assert.True(t, s.IsOccupied(0, geometry.NewGridLocation(7, 7, 1, 1)))

	s.entities[ship].IgnorePathfinder = true
	assert.False(t, s.IsOccupied(0, geometry.NewGridLocation(7, 7, 1, 1)))
	_, ok = s.EntityAt(0, geometry.Point{X: 7, Y: 7})
	assert.True(t, ok)

	s.removeEntity(ship)
	_, ok = s.EntityAt(0, geometry.Point{X: 7, Y: 7})
	assert.False(t, ok)

	err := s.addEntity(&Entity{ID: 99, Kind: EntityStar, Owner: NeutralPlayer, Location: geometry.NewGridLocation(3, 2, 1, 1), Star: &Star{Type: "yellow"}})
	assert.Error(t, err)
}

func TestGameState_Neighbours(t *testing.T) {
	s := newTestState(t)
	planet := addPlanet(t, s, "alice", "barren", 0, 0)
	addShip(t, s, "alice", "scout", 1, 0)

	p, _ := s.Entity(planet)
	n := s.Neighbours(0, p.Location, geometry.Dimension{Width: 1, Height: 1})
	require.Len(t, n, 2)
	assert.Equal(t, geometry.Point{X: 0, Y: 1}, n[0].Origin)
	assert.Equal(t, geometry.Point{X: 1, Y: 1}, n[1].Origin)
}

func TestApplyTurn_move(t *testing.T) {
	s := newTestState(t)
	ship := addShip(t, s, "alice", "fighter", 4, 4)

	var observed *ExecutedTurn
	s.Subscribe(func(e *ExecutedTurn) {
		observed = e
		assert.Equal(t, 1, s.Round())
	})

	executed, err := s.ApplyTurn(sealed(0, NewMoveShip("alice", ship, geometry.Point{X: 4, Y: 6})))
	require.NoError(t, err)
	require.Same(t, executed, observed)
	require.Len(t, executed.Actions, 1)
	assert.Empty(t, executed.Rejected)

	moved, ok := executed.Events[0].(ShipMoved)
	require.True(t, ok)
	assert.Equal(t, geometry.Point{X: 4, Y: 4}, moved.From.Origin)
	require.Len(t, moved.Path, 2)
	assert.Equal(t, geometry.Point{X: 4, Y: 5}, moved.Path[0].Origin)
	assert.Equal(t, geometry.Point{X: 4, Y: 6}, moved.Path[1].Origin)

	e, _ := s.Ship(ship)
	assert.Equal(t, geometry.Point{X: 4, Y: 6}, e.Location.Origin)
	assert.Equal(t, s.Hash(), executed.StateHash)
}

func TestApplyTurn_correctsUnreachableMove(t *testing.T) {
	s := newTestState(t)
	ship := addShip(t, s, "alice", "scout", 0, 0)

	executed, err := s.ApplyTurn(sealed(0, NewMoveShip("alice", ship, geometry.Point{X: 9, Y: 9})))
	require.NoError(t, err)
	require.Len(t, executed.Actions, 1)
	assert.Empty(t, executed.Rejected)

	// (2,3) and (3,2) tie on both distances, (3,2) comes first in (y, x) order
	move := executed.Actions[0].Payload.(MoveShip)
	assert.Equal(t, geometry.Point{X: 3, Y: 2}, move.Destination)
	e, _ := s.Ship(ship)
	assert.Equal(t, geometry.Point{X: 3, Y: 2}, e.Location.Origin)
}

func TestApplyTurn_combatBeforeMovement(t *testing.T) {
	s := newTestState(t)
	fighter := addShip(t, s, "alice", "fighter", 0, 0)
	scout := addShip(t, s, "bob", "scout", 2, 0)

	// the move is submitted first but the shot still lands before it
	turn := MergeTurns(0,
		sealed(0, NewMoveShip("bob", scout, geometry.Point{X: 6, Y: 0})),
		sealed(0, NewShootShip("alice", fighter, scout)),
	)
	executed, err := s.ApplyTurn(turn)
	require.NoError(t, err)
	require.Len(t, executed.Actions, 2)
	assert.Equal(t, ActionShootShip, executed.Actions[0].Kind())
	assert.Equal(t, ActionMoveShip, executed.Actions[1].Kind())

	shot := executed.Actions[0].Payload.(ShootShip)
	assert.True(t, shot.Rolled)
	assert.GreaterOrEqual(t, shot.Damage, 5)
	assert.LessOrEqual(t, shot.Damage, 10)

	damage, ok := executed.Events[0].(DamageApplied)
	require.True(t, ok)
	assert.Equal(t, shot.Damage, damage.Amount)
	_, ok = executed.Events[1].(ShipMoved)
	assert.True(t, ok)

	e, _ := s.Ship(scout)
	assert.Equal(t, 25-shot.Damage, e.Ship.Health)
	assert.Equal(t, geometry.Point{X: 6, Y: 0}, e.Location.Origin)
}

func TestApplyTurn_determinism(t *testing.T) {
	s := newTestState(t)
	fighter := addShip(t, s, "alice", "fighter", 0, 0)
	scout := addShip(t, s, "bob", "fighter", 3, 0)
	turn := sealed(0,
		NewMoveShip("alice", fighter, geometry.Point{X: 0, Y: 3}),
		NewShootShip("alice", fighter, scout),
		NewShootShip("bob", scout, fighter),
	)

	a, b := s.Clone(), s.Clone()
	executedA, err := a.ApplyTurn(turn)
	require.NoError(t, err)
	executedB, err := b.ApplyTurn(turn)
	require.NoError(t, err)
	assert.Equal(t, a.Snapshot(), b.Snapshot())
	assert.Equal(t, executedA.Turn().ToValue().String(), executedB.Turn().ToValue().String())

	// replaying the executed turn reproduces the state without rolling again
	replayed := s.Clone()
	wire, err := TurnFromValue(value.MustParse(executedA.Turn().ToValue().String()), replayed)
	require.NoError(t, err)
	executedC, err := replayed.ApplyTurn(wire)
	require.NoError(t, err)
	assert.Equal(t, a.Snapshot(), replayed.Snapshot())
	assert.Equal(t, executedA.StateHash, executedC.StateHash)
}

func TestApplyTurn_rejections(t *testing.T) {
	s := newTestState(t)
	fighter := addShip(t, s, "alice", "fighter", 0, 0)
	scout := addShip(t, s, "bob", "scout", 9, 9)
	friend := addShip(t, s, "alice", "scout", 1, 0)

	executed, err := s.ApplyTurn(sealed(0,
		NewMoveShip("alice", scout, geometry.Point{X: 8, Y: 9}),
		NewShootShip("alice", fighter, scout),
		NewShootShip("alice", fighter, friend),
		NewConstructShip("alice", 12345, 1, "scout"),
	))
	require.NoError(t, err)
	assert.Empty(t, executed.Actions)
	require.Len(t, executed.Rejected, 4)
	assert.Contains(t, executed.Rejected[0].Reason, "out of range")
	assert.Contains(t, executed.Rejected[1].Reason, "friendly")
	assert.Contains(t, executed.Rejected[2].Reason, "not owned")
	assert.Contains(t, executed.Rejected[3].Reason, "does not exist")

	_, err = s.ApplyTurn(sealed(5))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Round())
}

func TestApplyTurn_production(t *testing.T) {
	s := newTestState(t)
	planetID := addPlanet(t, s, "alice", "terran", 4, 4, "shipyard")
	planet, _ := s.Planet(planetID)
	shipyard := planet.Planet.Buildings[0].ID

	executed, err := s.ApplyTurn(sealed(0,
		NewConstructShip("alice", planetID, shipyard, "scout"),
		NewConstructBuilding("alice", planetID, "refinery"),
	))
	require.NoError(t, err)
	require.Len(t, executed.Actions, 2)

	var spawned *ShipSpawned
	for _, ev := range executed.Events {
		if sp, ok := ev.(ShipSpawned); ok {
			spawned = &sp
		}
	}
	require.NotNil(t, spawned, "a one-round ship spawns at the end of the turn")
	assert.Equal(t, "alice", spawned.Owner)
	assert.Equal(t, geometry.Point{X: 3, Y: 3}, spawned.Location.Origin)

	alice, _ := s.Player("alice")
	// 300 - 40 (scout) - 150 (refinery) + 10 income
	assert.Equal(t, 120, alice.Resources["metals"])
	// 30 - 10 (refinery) + 1 income
	assert.Equal(t, 21, alice.Resources["radioactives"])

	planet, _ = s.Planet(planetID)
	require.Len(t, planet.Planet.Buildings, 2)
	refinery := planet.Planet.Buildings[1]
	assert.Equal(t, 2, refinery.Progress)

	for round := 1; round <= 2; round++ {
		_, err := s.ApplyTurn(sealed(round))
		require.NoError(t, err)
	}
	planet, _ = s.Planet(planetID)
	assert.True(t, planet.Planet.Buildings[1].Complete())

	// a fourth building does not fit on a terran planet with three slots
	s.player("alice").Resources = ResourceAmount{"metals": 1000, "radioactives": 100}
	executed, err = s.ApplyTurn(sealed(3,
		NewConstructBuilding("alice", planetID, "refinery"),
		NewConstructBuilding("alice", planetID, "refinery"),
	))
	require.NoError(t, err)
	require.Len(t, executed.Actions, 1)
	require.Len(t, executed.Rejected, 1)
	assert.Contains(t, executed.Rejected[0].Reason, "slot")
}

func TestApplyTurn_cannotAfford(t *testing.T) {
	s := newTestState(t)
	planetID := addPlanet(t, s, "alice", "terran", 4, 4, "shipyard")
	s.player("alice").Resources = ResourceAmount{"metals": 10}
	planet, _ := s.Planet(planetID)

	executed, err := s.ApplyTurn(sealed(0, NewConstructShip("alice", planetID, planet.Planet.Buildings[0].ID, "bomber")))
	require.NoError(t, err)
	require.Len(t, executed.Rejected, 1)
	assert.Contains(t, executed.Rejected[0].Reason, "afford")
}

func TestApplyTurn_bombing(t *testing.T) {
	s := newTestState(t)
	bomber := addShip(t, s, "alice", "bomber", 0, 0)
	neutral := addPlanet(t, s, NeutralPlayer, "barren", 3, 0)
	enemy := addPlanet(t, s, "bob", "barren", 0, 3, "shipyard")
	addShip(t, s, "bob", "scout", 9, 9)
	s.entities[neutral].Planet.Health = 1
	s.entities[enemy].Planet.Health = 1

	executed, err := s.ApplyTurn(sealed(0,
		NewBombPlanet("alice", bomber, neutral),
		NewBombPlanet("alice", bomber, enemy),
	))
	require.NoError(t, err)
	require.Len(t, executed.Actions, 2)

	captured, _ := s.Planet(neutral)
	assert.Equal(t, "alice", captured.Owner)
	assert.Equal(t, 60, captured.Planet.Health)

	lost, _ := s.Planet(enemy)
	assert.Equal(t, NeutralPlayer, lost.Owner)
	assert.Empty(t, lost.Planet.Buildings)

	// fighters cannot bomb
	fighter := addShip(t, s, "alice", "fighter", 5, 5)
	executed, err = s.ApplyTurn(sealed(1, NewBombPlanet("alice", fighter, enemy)))
	require.NoError(t, err)
	require.Len(t, executed.Rejected, 1)
}

func TestValidate_rangeBetweenFootprints(t *testing.T) {
	s := newTestState(t)
	bomber := addShip(t, s, "alice", "bomber", 0, 0)
	gas := addPlanet(t, s, "bob", "gas", 3, 0)
	barren := addPlanet(t, s, "bob", "barren", 0, 4)
	scout := addShip(t, s, "alice", "scout", 0, 9)
	carrier := addShip(t, s, "bob", "carrier", 2, 8)

	tests := []struct {
		name   string
		action Action
		valid  bool
	}{
		// origins are 3 apart but the footprints only 2
		{"bomb large planet", NewBombPlanet("alice", bomber, gas), true},
		{"bomb distant planet", NewBombPlanet("alice", bomber, barren), false},
		{"shoot large ship", NewShootShip("alice", scout, carrier), true},
		{"shoot from afar", NewShootShip("alice", bomber, carrier), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := Validate(s, tt.action)
			assert.Equal(t, tt.valid, ok, reason)
			if !tt.valid {
				assert.Contains(t, reason, "out of range")
			}
		})
	}
}

func TestApplyTurn_defeatAndVictory(t *testing.T) {
	s := newTestState(t)
	fighter := addShip(t, s, "alice", "fighter", 0, 0)
	scout := addShip(t, s, "bob", "scout", 1, 0)
	s.entities[scout].Ship.Health = 1

	executed, err := s.ApplyTurn(sealed(0,
		NewShootShip("alice", fighter, scout),
		NewMoveShip("bob", scout, geometry.Point{X: 1, Y: 3}),
	))
	require.NoError(t, err)
	require.Len(t, executed.Actions, 1)
	require.Len(t, executed.Rejected, 1)

	var kinds []string
	for _, ev := range executed.Events {
		kinds = append(kinds, ev.EventType())
	}
	assert.Equal(t, []string{"damageapplied", "shipdestroyed", "playerdefeated", "playervictorious"}, kinds)
	assert.Equal(t, "alice", s.Winner())

	bob, _ := s.Player("bob")
	assert.True(t, bob.Defeated)
	_, ok := s.Ship(scout)
	assert.False(t, ok)

	executed, err = s.ApplyTurn(sealed(1, NewMoveShip("bob", scout, geometry.Point{X: 0, Y: 0})))
	require.NoError(t, err)
	assert.Len(t, executed.Rejected, 1)
}

func TestApplyTurn_draw(t *testing.T) {
	s := newTestState(t)

	// nobody owns anything, so both players fall in the same round
	executed, err := s.ApplyTurn(sealed(0))
	require.NoError(t, err)
	var kinds []string
	for _, ev := range executed.Events {
		kinds = append(kinds, ev.EventType())
	}
	assert.Equal(t, []string{"playerdefeated", "playerdefeated", "gamedrawn"}, kinds)
	assert.True(t, s.Drawn())
	assert.True(t, s.Finished())
	assert.Empty(t, s.Winner())

	decoded, err := GameStateFromValue(value.MustParse(s.Snapshot()), s.data)
	require.NoError(t, err)
	assert.True(t, decoded.Finished())
	assert.Equal(t, s.Hash(), decoded.Hash())

	executed, err = s.ApplyTurn(sealed(1))
	require.NoError(t, err)
	assert.Empty(t, executed.Events)
}

func TestTurn_seal(t *testing.T) {
	turn := NewTurn(3)
	require.NoError(t, turn.Add(NewMoveShip("alice", 1, geometry.Point{X: 1, Y: 1})))
	require.NoError(t, turn.Add(NewShootShip("alice", 1, 2)))
	require.NoError(t, turn.Remove(0))
	assert.Equal(t, 1, turn.Len())

	turn.Seal()
	assert.Error(t, turn.Add(NewShootShip("alice", 1, 2)))
	assert.Error(t, turn.Remove(0))
}

func TestActionFromValue_errors(t *testing.T) {
	s := newTestState(t)
	ship := addShip(t, s, "alice", "scout", 0, 0)

	tests := []struct {
		name  string
		input string
	}{
		{"missing destination", `{"player":"alice","actiontype":"moveship","ship":` + value.Int(ship).String() + `}`},
		{"unknown ship", `{"player":"alice","actiontype":"moveship","ship":999,"destination":{"origin":{"x":1,"y":1},"dimension":{"width":1,"height":1}}}`},
		{"unknown player", `{"player":"carol","actiontype":"shootship","ship":1,"target":1}`},
		{"unknown kind", `{"player":"alice","actiontype":"warp"}`},
		{"mistyped damage", `{"player":"alice","actiontype":"shootship","ship":` + value.Int(ship).String() + `,"target":` + value.Int(ship).String() + `,"damage":"lots"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ActionFromValue(value.MustParse(tt.input), s)
			var ce *ConstructionError
			assert.True(t, errors.As(err, &ce), "expected ConstructionError, got %v", err)
		})
	}

	_, err := TurnFromValue(value.MustParse(`{"round":0,"actions":[`+tests[0].input+`]}`), s)
	var ce *ConstructionError
	require.True(t, errors.As(err, &ce))
	var missing *value.MissingAttributeError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "destination", missing.Key)
}

func TestAction_valueRoundTrip(t *testing.T) {
	s := newTestState(t)
	ship := addShip(t, s, "alice", "scout", 0, 0)
	target := addShip(t, s, "bob", "scout", 1, 0)
	planet := addPlanet(t, s, "alice", "terran", 5, 5, "shipyard")
	building := s.entities[planet].Planet.Buildings[0].ID

	actions := []Action{
		NewMoveShip("alice", ship, geometry.Point{X: 2, Y: 3}),
		{Player: "alice", Payload: ShootShip{ShipID: ship, TargetID: target, Damage: 4, Rolled: true}},
		NewBombPlanet("alice", ship, planet),
		NewConstructShip("alice", planet, building, "fighter"),
		NewConstructBuilding("alice", planet, "refinery"),
	}
	for _, a := range actions {
		got, err := ActionFromValue(a.ToValue(), s)
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	assert.Equal(t, ShootShip{ShipID: ship, TargetID: target}, actions[1].WithoutRoll().Payload)
}

func TestGameState_valueRoundTrip(t *testing.T) {
	data := testData(t)
	specs := []PlayerSpec{
		{Name: "alice", Race: "round", Color: "red"},
		{Name: "bob", Race: "square", Color: "blue"},
	}
	s, err := NewGame(specs, data, 42)
	require.NoError(t, err)

	again, err := NewGame(specs, data, 42)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), again.Snapshot())

	for _, name := range []string{"alice", "bob"} {
		assert.Len(t, s.EntitiesOf(name, EntityPlanet), data.Galaxy.PlanetsPerPlayer)
		assert.Len(t, s.EntitiesOf(name, EntityShip), 2)
	}
	assert.Len(t, s.EntitiesOf(NeutralPlayer, EntityStar), data.Galaxy.Systems())

	decoded, err := GameStateFromValue(value.MustParse(value.SerializePretty(s.ToValue())), data)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), decoded.Snapshot())
	assert.Equal(t, s.Hash(), decoded.Hash())
}

func TestGameStateFromValue_errors(t *testing.T) {
	data := testData(t)
	s := newTestState(t)
	addShip(t, s, "alice", "scout", 0, 0)
	base := s.ToValue()

	tests := []struct {
		name   string
		mutate func(v *value.Value)
	}{
		{"missing props", func(v *value.Value) { v.Delete("props") }},
		{"unknown owner", func(v *value.Value) { v.Get("props").At(0).Set("player", value.String("carol")) }},
		{"unknown ship type", func(v *value.Value) { v.Get("props").At(0).Set("shiptype", value.String("dreadnought")) }},
		{"unknown race", func(v *value.Value) { v.Get("players").At(1).Set("race", value.String("triangle")) }},
		{"mistyped round", func(v *value.Value) { v.Set("round", value.String("one")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base.Clone()
			tt.mutate(v)
			_, err := GameStateFromValue(v, data)
			var ce *ConstructionError
			assert.True(t, errors.As(err, &ce), "expected ConstructionError, got %v", err)
		})
	}
}
