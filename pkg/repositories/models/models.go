package models

import (
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/value"
)

// Game is a stored match. State holds the Value text of the game state and
// is left empty in listings.
type Game struct {
	ID        string
	Name      string
	Round     int
	Players   []string
	Winner    string
	State     string
	StateHash string
	UpdatedAt int64
}

// EncodePlayers renders player names for storage.
func EncodePlayers(players []string) string {
	return value.Serialize(value.Strings(players))
}

func DecodePlayers(text string) ([]string, error) {
	v, err := value.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse players: %v", err)
	}
	items, err := v.AsList()
	if err != nil {
		return nil, fmt.Errorf("failed to read players: %v", err)
	}
	players := make([]string, 0, len(items))
	for _, item := range items {
		name, err := item.AsString()
		if err != nil {
			return nil, fmt.Errorf("failed to read player: %v", err)
		}
		players = append(players, name)
	}
	return players, nil
}
