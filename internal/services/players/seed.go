package players

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mystari/mystari-api/internal/model"
)

// seedFile is the layout of a player seed document
type seedFile struct {
	Players []model.PlayerSeed `yaml:"players"`
}

// LoadSeeds reads player seeds from a YAML file
func LoadSeeds(path string) ([]model.PlayerSeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return ParseSeeds(f)
}

// ParseSeeds decodes a seed document. Unknown keys are rejected.
func ParseSeeds(r io.Reader) ([]model.PlayerSeed, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.PlayerSeed{}, nil
		}
		return nil, fmt.Errorf("decoding seeds: %w", err)
	}

	if doc.Players == nil {
		return []model.PlayerSeed{}, nil
	}
	return doc.Players, nil
}
