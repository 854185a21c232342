package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	scripts, err := migrationScripts("sqlite")
	if err != nil {
		db.Close()
		return nil, err
	}
	for i, migration := range scripts {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration %d: %v", i+1, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveGame(ctx context.Context, game *models.Game) error {
	q := `
	INSERT OR REPLACE INTO games (game_id, name, round, players, winner, state, state_hash, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, game.ID, game.Name, game.Round, models.EncodePlayers(game.Players), game.Winner, game.State, game.StateHash, game.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) LoadGame(ctx context.Context, id string) (*models.Game, error) {
	q := `
	SELECT game_id, name, round, players, winner, state, state_hash, updated_at FROM games WHERE game_id = ?;
	`
	game := &models.Game{}
	var players string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&game.ID, &game.Name, &game.Round, &players, &game.Winner, &game.State, &game.StateHash, &game.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan game: %v", err)
	}
	if game.Players, err = models.DecodePlayers(players); err != nil {
		return nil, err
	}
	return game, nil
}

func (r *SQLiteRepository) ListGames(ctx context.Context) ([]*models.Game, error) {
	q := `
	SELECT game_id, name, round, players, winner, state_hash, updated_at FROM games
	ORDER BY updated_at DESC, game_id;
	`
	rows, err := r.db.QueryContext(ctx, q)
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
