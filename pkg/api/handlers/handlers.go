package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/repositories"
	"github.com/cbodonnell/evervoid/pkg/state"
	"github.com/cbodonnell/evervoid/pkg/value"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Info describes the running match.
type Info struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Players []string `json:"players"`
	InGame  bool     `json:"ingame"`
	Round   int      `json:"round"`
	Winner  string   `json:"winner,omitempty"`
	Hash    string   `json:"hash,omitempty"`
}

// GameSummary is a stored game without its state.
type GameSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Round     int       `json:"round"`
	Players   []string  `json:"players"`
	Winner    string    `json:"winner,omitempty"`
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	}
}

func HandleInfo(store state.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := store.Get(r.Context())
		if err != nil {
			if errors.Is(err, state.ErrNoSnapshot) {
				http.Error(w, "Server is starting", http.StatusServiceUnavailable)
				return
			}
			log.Error("failed to get snapshot: %v", err)
			http.Error(w, "Failed to get snapshot", http.StatusInternalServerError)
			return
		}
		info := Info{
			ID:      snapshot.ID,
			Name:    snapshot.Name,
			Players: snapshot.Players,
			InGame:  snapshot.InGame,
			Round:   snapshot.Round,
			Winner:  snapshot.Winner,
		}
		if info.Players == nil {
			info.Players = []string{}
		}
		if snapshot.State != nil {
			info.Hash = snapshot.Hash.String()
		}
		writeJSON(w, info)
	}
}

// HandleState serves the current state as Value text. The compact form is
// returned when the format query parameter is "compact".
func HandleState(store state.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := store.Get(r.Context())
		if err != nil && !errors.Is(err, state.ErrNoSnapshot) {
			log.Error("failed to get snapshot: %v", err)
			http.Error(w, "Failed to get snapshot", http.StatusInternalServerError)
			return
		}
		if snapshot == nil || snapshot.State == nil {
			http.Error(w, "No match in progress", http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"`+snapshot.Hash.String()+`"`)
		writeValue(w, r, snapshot.State)
	}
}

func HandleListGames(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := repository.ListGames(r.Context())
		if err != nil {
			log.Error("failed to list games: %v", err)
			http.Error(w, "Failed to list games", http.StatusInternalServerError)
			return
		}
		summaries := make([]GameSummary, 0, len(games))
		for _, g := range games {
			summaries = append(summaries, GameSummary{
				ID:        g.ID,
				Name:      g.Name,
				Round:     g.Round,
				Players:   g.Players,
				Winner:    g.Winner,
				Hash:      g.StateHash,
				UpdatedAt: time.UnixMilli(g.UpdatedAt).UTC(),
			})
		}
		writeJSON(w, summaries)
	}
}

// HandleGetGame serves a stored game's state as Value text.
func HandleGetGame(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["gameID"]
		if _, err := uuid.Parse(id); err != nil {
			http.Error(w, "Invalid game id", http.StatusBadRequest)
			return
		}
		game, err := repository.LoadGame(r.Context(), id)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Game not found", http.StatusNotFound)
				return
			}
			log.Error("failed to load game %s: %v", id, err)
			http.Error(w, "Failed to load game", http.StatusInternalServerError)
			return
		}
		v, err := value.Parse(game.State)
		if err != nil {
			log.Error("stored game %s is corrupt: %v", id, err)
			http.Error(w, "Stored game is corrupt", http.StatusInternalServerError)
			return
		}
		w.Header().Set("ETag", `"`+game.StateHash+`"`)
		writeValue(w, r, v)
	}
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

func writeValue(w http.ResponseWriter, r *http.Request, v *value.Value) {
	text := value.SerializePretty(v)
	if r.URL.Query().Get("format") == "compact" {
		text = value.Serialize(v)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}
