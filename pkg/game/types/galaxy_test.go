package types

import (
	"errors"
	"testing"

	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTwoSystemState extends the test state with solar system 1, joined to
// system 0 by a wormhole of the given length.
func newTwoSystemState(t *testing.T, turns int) (*GameState, *Wormhole) {
	t.Helper()
	s := newTestState(t)
	require.NoError(t, s.addSolarSystem(&SolarSystem{ID: 1, Point: geometry.Point{X: 400, Y: 0}}))
	w := &Wormhole{ID: s.allocateID(), Systems: [2]int{0, 1}, Turns: turns}
	require.NoError(t, s.addWormhole(w))
	return s, w
}

func addPortal(t *testing.T, s *GameState, system, wormhole, x, y int) int {
	t.Helper()
	e := &Entity{
		ID:       s.allocateID(),
		Kind:     EntityPortal,
		Owner:    NeutralPlayer,
		System:   system,
		Location: geometry.NewGridLocation(x, y, 1, 1),
		Portal:   &Portal{Wormhole: wormhole},
	}
	require.NoError(t, s.addEntity(e))
	return e.ID
}

func eventsOf[T Event](events []Event) []T {
	var out []T
	for _, ev := range events {
		if e, ok := ev.(T); ok {
			out = append(out, e)
		}
	}
	return out
}

func TestJumpShip_crossesWormhole(t *testing.T) {
	s, w := newTwoSystemState(t, 2)
	near := addPortal(t, s, 0, w.ID, 5, 4)
	addPortal(t, s, 1, w.ID, 2, 2)
	scout := addShip(t, s, "alice", "scout", 4, 4)
	fighter := addShip(t, s, "alice", "fighter", 8, 9)
	enemy := addShipIn(t, s, 1, "bob", "scout", 8, 8)

	executed, err := s.ApplyTurn(sealed(0,
		NewJumpShip("alice", scout, near),
		NewShootShip("alice", fighter, enemy),
	))
	require.NoError(t, err)
	require.Len(t, executed.Actions, 1)
	require.Len(t, executed.Rejected, 1)
	assert.Contains(t, executed.Rejected[0].Reason, "another solar system")

	entered := eventsOf[ShipEnteredWormhole](executed.Events)
	require.Len(t, entered, 1)
	assert.Equal(t, ShipEnteredWormhole{ShipID: scout, WormholeID: w.ID, From: 0, To: 1, Turns: 2}, entered[0])

	e, _ := s.Ship(scout)
	assert.True(t, e.InTransit())
	_, ok := s.EntityAt(0, geometry.Point{X: 4, Y: 4})
	assert.False(t, ok)
	for _, in := range s.EntitiesIn(0) {
		assert.NotEqual(t, scout, in.ID)
	}

	// in transit: cannot act, cannot be hit, survives serialization
	executed, err = s.ApplyTurn(sealed(1,
		NewMoveShip("alice", scout, geometry.Point{X: 3, Y: 3}),
		NewShootShip("bob", enemy, scout),
	))
	require.NoError(t, err)
	require.Len(t, executed.Rejected, 2)
	assert.Contains(t, executed.Rejected[0].Reason, "another solar system")
	assert.Contains(t, executed.Rejected[1].Reason, "in transit")
	assert.Empty(t, eventsOf[ShipExitedWormhole](executed.Events))
	e, _ = s.Ship(scout)
	assert.Equal(t, 1, e.Ship.Transit.Remaining)

	decoded, err := GameStateFromValue(value.MustParse(s.Snapshot()), s.data)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), decoded.Snapshot())

	executed, err = s.ApplyTurn(sealed(2))
	require.NoError(t, err)
	exited := eventsOf[ShipExitedWormhole](executed.Events)
	require.Len(t, exited, 1)
	assert.Equal(t, 1, exited[0].System)
	assert.Equal(t, geometry.Point{X: 1, Y: 1}, exited[0].Location.Origin)

	e, _ = s.Ship(scout)
	assert.False(t, e.InTransit())
	assert.Equal(t, 1, e.System)
	at, ok := s.EntityAt(1, geometry.Point{X: 1, Y: 1})
	require.True(t, ok)
	assert.Equal(t, scout, at.ID)
	assert.NotEmpty(t, s.ValidDestinations(scout))
}

func TestJumpShip_waitsForRoomAtExit(t *testing.T) {
	s, w := newTwoSystemState(t, 1)
	near := addPortal(t, s, 0, w.ID, 5, 5)
	addPortal(t, s, 1, w.ID, 0, 0)
	scout := addShip(t, s, "alice", "scout", 5, 6)
	var blockers []int
	for _, p := range []geometry.Point{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}} {
		blockers = append(blockers, addShipIn(t, s, 1, "bob", "scout", p.X, p.Y))
	}

	_, err := s.ApplyTurn(sealed(0, NewJumpShip("alice", scout, near)))
	require.NoError(t, err)
	executed, err := s.ApplyTurn(sealed(1))
	require.NoError(t, err)
	assert.Empty(t, eventsOf[ShipExitedWormhole](executed.Events))
	e, _ := s.Ship(scout)
	require.True(t, e.InTransit())
	assert.Equal(t, 1, e.Ship.Transit.Remaining)

	s.removeEntity(blockers[1])
	executed, err = s.ApplyTurn(sealed(2))
	require.NoError(t, err)
	exited := eventsOf[ShipExitedWormhole](executed.Events)
	require.Len(t, exited, 1)
	assert.Equal(t, geometry.Point{X: 0, Y: 1}, exited[0].Location.Origin)
}

func TestValidate_jumpShip(t *testing.T) {
	s, w := newTwoSystemState(t, 3)
	near := addPortal(t, s, 0, w.ID, 5, 4)
	far := addPortal(t, s, 1, w.ID, 5, 4)
	scout := addShip(t, s, "alice", "scout", 4, 4)
	distant := addShip(t, s, "alice", "scout", 0, 0)
	enemy := addShip(t, s, "bob", "scout", 6, 4)

	tests := []struct {
		name   string
		action Action
		reason string
	}{
		{"next to portal", NewJumpShip("alice", scout, near), ""},
		{"too far", NewJumpShip("alice", distant, near), "not next to"},
		{"portal elsewhere", NewJumpShip("alice", scout, far), "another solar system"},
		{"not a portal", NewJumpShip("alice", scout, enemy), "does not exist"},
		{"foreign ship", NewJumpShip("alice", enemy, near), "not owned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := Validate(s, tt.action)
			assert.Equal(t, tt.reason == "", ok, reason)
			assert.Contains(t, reason, tt.reason)
		})
	}

	assert.Equal(t, PhaseMovement, ActionJumpShip.Phase())
	got, err := ActionFromValue(NewJumpShip("alice", scout, near).ToValue(), s)
	require.NoError(t, err)
	assert.Equal(t, NewJumpShip("alice", scout, near), got)
	_, err = ActionFromValue(NewJumpShip("alice", scout, enemy).ToValue(), s)
	var ce *ConstructionError
	assert.True(t, errors.As(err, &ce))
}

func TestNewGame_galaxy(t *testing.T) {
	data := testData(t)
	s, err := NewGame([]PlayerSpec{
		{Name: "alice", Race: "round", Color: "red"},
		{Name: "bob", Race: "square", Color: "blue"},
	}, data, 42)
	require.NoError(t, err)

	systems := s.SolarSystems()
	require.Len(t, systems, 3)
	wormholes := s.Wormholes()
	require.Len(t, wormholes, 3, "three systems close into a ring")
	for _, w := range wormholes {
		assert.GreaterOrEqual(t, w.Turns, data.Galaxy.Wormhole.MinTurns)
		assert.LessOrEqual(t, w.Turns, data.Galaxy.Wormhole.MaxTurns)
		for _, system := range w.Systems {
			assert.NotNil(t, s.portalOf(system, w.ID), "wormhole %d has no portal in system %d", w.ID, system)
		}
	}
	assert.Len(t, s.EntitiesOf(NeutralPlayer, EntityPortal), 6)

	for i, name := range []string{"alice", "bob"} {
		for _, kind := range []EntityKind{EntityPlanet, EntityShip} {
			for _, e := range s.EntitiesOf(name, kind) {
				assert.Equal(t, i, e.System, "%s's %s %d is away from home", name, kind, e.ID)
			}
		}
		ship := s.EntitiesOf(name, EntityShip)[0]
		assert.NotEmpty(t, s.ValidDestinations(ship.ID))
	}
	for _, ss := range systems {
		stars := 0
		for _, e := range s.EntitiesIn(ss.ID) {
			if e.Kind == EntityStar {
				stars++
			}
		}
		assert.Equal(t, 1, stars, "system %d", ss.ID)
	}
}

func TestGameStateFromValue_singleSystemSave(t *testing.T) {
	s := newTestState(t)
	addShip(t, s, "alice", "scout", 2, 2)
	v := s.ToValue()
	v.Delete("solarsystems")
	v.Delete("wormholes")
	v.Get("props").At(0).Delete("solarsystem")

	decoded, err := GameStateFromValue(v, s.data)
	require.NoError(t, err)
	assert.Len(t, decoded.SolarSystems(), 1)
	assert.Empty(t, decoded.Wormholes())
	assert.Equal(t, s.Snapshot(), decoded.Snapshot())
}

func TestGameStateFromValue_galaxyErrors(t *testing.T) {
	s, w := newTwoSystemState(t, 2)
	addPortal(t, s, 1, w.ID, 3, 3)
	addShip(t, s, "alice", "scout", 0, 0)
	base := s.ToValue()

	tests := []struct {
		name   string
		mutate func(v *value.Value)
	}{
		{"unknown system", func(v *value.Value) { v.Get("props").At(1).Set("solarsystem", value.Int(9)) }},
		{"unknown wormhole", func(v *value.Value) { v.Get("props").At(0).Set("wormhole", value.Int(99)) }},
		{"wormhole to nowhere", func(v *value.Value) { v.Get("wormholes").At(0).Set("ss2", value.Int(9)) }},
		{"looping wormhole", func(v *value.Value) { v.Get("wormholes").At(0).Set("ss2", value.Int(0)) }},
		{"no systems", func(v *value.Value) { v.Set("solarsystems", value.NewList()) }},
		{"bad transit", func(v *value.Value) {
			v.Get("props").At(1).Set("transit", value.NewObject().
				Set("wormhole", value.Int(w.ID)).
				Set("destination", value.Int(7)).
				Set("remaining", value.Int(1)))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base.Clone()
			tt.mutate(v)
			_, err := GameStateFromValue(v, s.data)
			var ce *ConstructionError
			assert.True(t, errors.As(err, &ce), "expected ConstructionError, got %v", err)
		})
	}
}
