package state

import (
	"context"
	"errors"
	"time"

	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/value"
)

// ErrNoSnapshot is returned before the first snapshot is published.
var ErrNoSnapshot = errors.New("no snapshot published")

// Snapshot is a read-only view of a match published by the simulation loop
// for the API and the save worker.
type Snapshot struct {
	ID          string
	Name        string
	Round       int
	InGame      bool
	Winner      string
	Players     []string
	State       *value.Value
	Hash        value.Digest
	PublishedAt time.Time
}

// NewSnapshot captures s. s may be nil while the server is in the lobby.
func NewSnapshot(name string, s *gametypes.GameState, lobby []string) *Snapshot {
	snap := &Snapshot{
		Name:        name,
		Players:     append([]string(nil), lobby...),
		PublishedAt: time.Now(),
	}
	if s == nil {
		return snap
	}
	snap.InGame = s.Winner() == ""
	snap.Round = s.Round()
	snap.Winner = s.Winner()
	snap.Players = snap.Players[:0]
	for _, p := range s.Players() {
		snap.Players = append(snap.Players, p.Name)
	}
	snap.State = s.ToValue()
	snap.Hash = value.Hash(snap.State)
	return snap
}

// SnapshotStore provides shared access to the latest snapshot.
// Implementations must be thread-safe.
type SnapshotStore interface {
	// Get returns a copy of the latest snapshot.
	Get(ctx context.Context) (*Snapshot, error)
	// Set publishes a snapshot.
	Set(ctx context.Context, snapshot *Snapshot) error
}
