package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed gamedata.yaml
var defaultGameDataYAML []byte

// LocalGameDataPath is checked when no explicit path is given.
const LocalGameDataPath = "configs/gamedata.yaml"

// LoadGameData loads game data.
// Search order: customPath -> ./configs/gamedata.yaml -> embedded default
func LoadGameData(customPath string) (*GameData, error) {
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read game data %s: %w", customPath, err)
		}
		return ParseGameData(data)
	}

	if data, err := os.ReadFile(LocalGameDataPath); err == nil {
		return ParseGameData(data)
	}

	return DefaultGameData()
}

// DefaultGameData returns the embedded game data.
func DefaultGameData() (*GameData, error) {
	return ParseGameData(defaultGameDataYAML)
}

func ParseGameData(data []byte) (*GameData, error) {
	gd := &GameData{}
	if err := yaml.Unmarshal(data, gd); err != nil {
		return nil, fmt.Errorf("failed to parse game data: %w", err)
	}
	if err := gd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game data: %w", err)
	}
	return gd, nil
}
