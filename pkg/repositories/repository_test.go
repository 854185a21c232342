package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cbodonnell/evervoid/pkg/repositories/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepositories(t *testing.T) map[string]Repository {
	t.Helper()
	ctx := context.Background()
	repos := make(map[string]Repository)

	sqlite, err := NewRepository(ctx, "sqlite://"+filepath.Join(t.TempDir(), "evervoid.db"))
	require.NoError(t, err)
	repos["sqlite"] = sqlite

	if url := os.Getenv("EVERVOID_TEST_DATABASE_URL"); url != "" {
		pg, err := NewRepository(ctx, url)
		require.NoError(t, err)
		repos["postgres"] = pg
	}

	t.Cleanup(func() {
		for _, r := range repos {
			r.Close(ctx)
		}
	})
	return repos
}

func TestGames(t *testing.T) {
	ctx := context.Background()
	for name, repo := range testRepositories(t) {
		t.Run(name, func(t *testing.T) {
			first := &models.Game{
				ID:        uuid.NewString(),
				Name:      "first",
				Round:     3,
				Players:   []string{"alice", "bob, the builder"},
				State:     "{round: 3}",
				StateHash: "aa",
				UpdatedAt: 100,
			}
			second := &models.Game{
				ID:        uuid.NewString(),
				Name:      "second",
				Players:   []string{},
				State:     "{round: 0}",
				StateHash: "bb",
				UpdatedAt: 200,
			}
			require.NoError(t, repo.SaveGame(ctx, first))
			require.NoError(t, repo.SaveGame(ctx, second))

			loaded, err := repo.LoadGame(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, first, loaded)

			games, err := repo.ListGames(ctx)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(games), 2)
			assert.Equal(t, second.ID, games[0].ID)
			assert.Empty(t, games[0].State)

			first.Round = 4
			first.Winner = "alice"
			first.UpdatedAt = 300
			require.NoError(t, repo.SaveGame(ctx, first))
			loaded, err = repo.LoadGame(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, 4, loaded.Round)
			assert.Equal(t, "alice", loaded.Winner)

			_, err = repo.LoadGame(ctx, uuid.NewString())
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestNewRepositorySchemes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, u := range []string{
		filepath.Join(dir, "bare.db"),
		"sqlite3://" + filepath.Join(dir, "scheme.db"),
	} {
		repo, err := NewRepository(ctx, u)
		require.NoError(t, err, u)
		require.NoError(t, repo.Close(ctx))
	}

	_, err := NewRepository(ctx, "mysql://localhost/evervoid")
	assert.ErrorContains(t, err, "unsupported")
}

func TestPlayersEncoding(t *testing.T) {
	players := []string{"alice", "bob \"the\" builder"}
	decoded, err := models.DecodePlayers(models.EncodePlayers(players))
	require.NoError(t, err)
	assert.Equal(t, players, decoded)

	_, err = models.DecodePlayers("{}")
	assert.Error(t, err)
}
