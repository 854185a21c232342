package state

import (
	"context"
	"testing"

	"github.com/cbodonnell/evervoid/pkg/config"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySnapshotStore()

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Error(t, store.Set(ctx, nil))

	require.NoError(t, store.Set(ctx, NewSnapshot("lobby", nil, []string{"alice"})))
	lobby, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, lobby.InGame)
	assert.Nil(t, lobby.State)
	assert.Equal(t, []string{"alice"}, lobby.Players)

	data, err := config.DefaultGameData()
	require.NoError(t, err)
	s, err := gametypes.NewGame([]gametypes.PlayerSpec{
		{Name: "alice", Race: "round", Color: "red"},
		{Name: "bob", Race: "square", Color: "blue"},
	}, data, 3)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, NewSnapshot("void", s, nil)))
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.InGame)
	assert.Equal(t, []string{"alice", "bob"}, got.Players)
	assert.Equal(t, s.Hash(), got.Hash)

	// mutating a returned copy does not affect the store
	got.State.Set("round", value.Int(99))
	got.Players[0] = "mallory"
	again, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Hash(), value.Hash(again.State))
	assert.Equal(t, "alice", again.Players[0])
}
