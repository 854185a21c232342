package repositories

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"

	"github.com/cbodonnell/evervoid/pkg/repositories/models"
)

//go:embed migrations
var migrations embed.FS

type Repository interface {
	Close(ctx context.Context) error
	// SaveGame inserts the game or replaces the stored copy with the same id.
	SaveGame(ctx context.Context, game *models.Game) error
	LoadGame(ctx context.Context, id string) (*models.Game, error)
	// ListGames returns stored games without their state, most recently
	// updated first.
	ListGames(ctx context.Context) ([]*models.Game, error)
}

// NewRepository opens the repository named by a database URL. postgres://
// and postgresql:// URLs use Postgres; sqlite:// URLs and bare paths use
// SQLite.
func NewRepository(ctx context.Context, databaseURL string) (Repository, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %v", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return NewPostgresRepository(ctx, databaseURL)
	case "sqlite", "sqlite3":
		return NewSQLiteRepository(ctx, strings.TrimPrefix(databaseURL, u.Scheme+"://"))
	case "", "file":
		return NewSQLiteRepository(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// migrationScripts returns the dialect's migrations in name order.
func migrationScripts(dialect string) ([]string, error) {
	dir := "migrations/" + dialect
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var scripts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		b, err := fs.ReadFile(migrations, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", entry.Name(), err)
		}
		scripts = append(scripts, string(b))
	}
	return scripts, nil
}
