package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to Postgres and applies migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	scripts, err := migrationScripts("postgres")
	if err != nil {
		pool.Close()
		return nil, err
	}
	for i, migration := range scripts {
		if _, err := pool.Exec(ctx, migration); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to execute migration %d: %v", i+1, err)
		}
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) SaveGame(ctx context.Context, game *models.Game) error {
	q := `
	INSERT INTO games (game_id, name, round, players, winner, state, state_hash, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (game_id) DO UPDATE SET name = $2, round = $3, players = $4, winner = $5, state = $6, state_hash = $7, updated_at = $8;
	`
	_, err := r.pool.Exec(ctx, q, game.ID, game.Name, game.Round, models.EncodePlayers(game.Players), game.Winner, game.State, game.StateHash, game.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game: %v", err)
	}
	return nil
}

func (r *PostgresRepository) LoadGame(ctx context.Context, id string) (*models.Game, error) {
	q := `
	SELECT game_id::text, name, round, players, winner, state, state_hash, updated_at FROM games WHERE game_id = $1;
	`
	game := &models.Game{}
	var players string
	err := r.pool.QueryRow(ctx, q, id).Scan(&game.ID, &game.Name, &game.Round, &players, &game.Winner, &game.State, &game.StateHash, &game.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan game: %v", err)
	}
	if game.Players, err = models.DecodePlayers(players); err != nil {
		return nil, err
	}
	return game, nil
}

func (r *PostgresRepository) ListGames(ctx context.Context) ([]*models.Game, error) {
	q := `
	SELECT game_id::text, name, round, players, winner, state_hash, updated_at FROM games
	ORDER BY updated_at DESC, game_id;
	`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %v", err)
	}
	defer rows.Close()

	games := make([]*models.Game, 0)
	for rows.Next() {
		game := &models.Game{}
		var players string
		if err := rows.Scan(&game.ID, &game.Name, &game.Round, &players, &game.Winner, &game.StateHash, &game.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %v", err)
		}
		if game.Players, err = models.DecodePlayers(players); err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read games: %v", err)
	}
	return games, nil
}
