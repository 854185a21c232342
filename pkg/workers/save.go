package workers

import (
	"context"
	"errors"
	"time"

	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/repositories"
	"github.com/cbodonnell/evervoid/pkg/repositories/models"
	"github.com/cbodonnell/evervoid/pkg/savegame"
	"github.com/cbodonnell/evervoid/pkg/state"
	"github.com/cbodonnell/evervoid/pkg/value"
)

type SaveGameStateWorker struct {
	repository    repositories.Repository
	snapshotStore state.SnapshotStore
	savePath      string
	interval      time.Duration
	lastSaved     value.Digest
}

type NewSaveGameStateWorkerOptions struct {
	// Repository is optional; without one only the save file is written.
	Repository    repositories.Repository
	SnapshotStore state.SnapshotStore
	// SavePath is an optional save file rewritten on every save.
	SavePath string
	Interval time.Duration
}

// NewSaveGameStateWorker creates a new SaveGameStateWorker.
// The worker periodically saves the latest published game state
// when it changed since the last save.
func NewSaveGameStateWorker(opts NewSaveGameStateWorkerOptions) *SaveGameStateWorker {
	return &SaveGameStateWorker{
		repository:    opts.Repository,
		snapshotStore: opts.SnapshotStore,
		savePath:      opts.SavePath,
		interval:      opts.Interval,
	}
}

// Start saves on every tick until ctx is done, then saves once more.
func (w *SaveGameStateWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// ctx is already done, the final save gets a fresh deadline
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.Save(finalCtx)
			cancel()
			return
		case <-ticker.C:
			w.Save(ctx)
		}
	}
}

// Save writes the latest snapshot if it holds a state not yet saved.
func (w *SaveGameStateWorker) Save(ctx context.Context) {
	snapshot, err := w.snapshotStore.Get(ctx)
	if err != nil {
		if !errors.Is(err, state.ErrNoSnapshot) {
			log.Error("Failed to get current game state: %v", err)
		}
		return
	}
	if snapshot.State == nil || snapshot.Hash == w.lastSaved {
		return
	}

	saved := true
	if w.repository != nil {
		if err := w.repository.SaveGame(ctx, gameFromSnapshot(snapshot)); err != nil {
			log.Error("Failed to save game state: %v", err)
			saved = false
		}
	}
	if w.savePath != "" {
		if err := savegame.SaveValue(w.savePath, snapshot.State); err != nil {
			log.Error("Failed to write save file: %v", err)
			saved = false
		}
	}
	if saved {
		w.lastSaved = snapshot.Hash
		log.Debug("Saved game %s at round %d", snapshot.ID, snapshot.Round)
	}
}

func gameFromSnapshot(s *state.Snapshot) *models.Game {
	return &models.Game{
		ID:        s.ID,
		Name:      s.Name,
		Round:     s.Round,
		Players:   s.Players,
		Winner:    s.Winner,
		State:     value.Serialize(s.State),
		StateHash: s.Hash.String(),
		UpdatedAt: s.PublishedAt.UnixMilli(),
	}
}
