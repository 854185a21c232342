// Package savegame reads and writes game states as pretty-printed Value
// text. Files named with a .zst suffix are zstd compressed.
package savegame

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cbodonnell/evervoid/pkg/config"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/value"
	"github.com/klauspost/compress/zstd"
)

const CompressedSuffix = ".zst"

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

// IsCompressed reports whether path names a compressed save.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedSuffix)
}

// Encode renders a state as save file content.
func Encode(s *gametypes.GameState, compressed bool) []byte {
	return EncodeValue(s.ToValue(), compressed)
}

func EncodeValue(v *value.Value, compressed bool) []byte {
	b := []byte(value.SerializePretty(v))
	if compressed {
		return encoder.EncodeAll(b, nil)
	}
	return b
}

// Decode parses save file content into a Value.
func Decode(b []byte, compressed bool) (*value.Value, error) {
	if compressed {
		var err error
		if b, err = decoder.DecodeAll(b, nil); err != nil {
			return nil, fmt.Errorf("failed to decompress save: %v", err)
		}
	}
	v, err := value.Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("failed to parse save: %w", err)
	}
	return v, nil
}

// Save writes the state to path. The file is replaced atomically.
func Save(path string, s *gametypes.GameState) error {
	return SaveValue(path, s.ToValue())
}

// SaveValue writes an already serialized state to path.
func SaveValue(path string, v *value.Value) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".save-*")
	if err != nil {
		return fmt.Errorf("failed to create save file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(EncodeValue(v, IsCompressed(path))); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write save file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close save file: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace save file: %v", err)
	}
	return nil
}

// ReadValue reads a save file without interpreting it as a state.
func ReadValue(path string) (*value.Value, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read save file: %v", err)
	}
	return Decode(b, IsCompressed(path))
}

// Load reads a state saved with Save.
func Load(path string, data *config.GameData) (*gametypes.GameState, error) {
	v, err := ReadValue(path)
	if err != nil {
		return nil, err
	}
	s, err := gametypes.GameStateFromValue(v, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return s, nil
}
