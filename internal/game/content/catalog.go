// Package content loads the shared gift catalog from YAML files.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/geodesic-gg/lobby/internal/game/engine"
)

// giftDoc is the YAML document shape of one catalog file.
type giftDoc struct {
	ID   string         `yaml:"id"`
	Name string         `yaml:"name"`
	Cost map[string]int `yaml:"cost"`
}

// LoadGifts reads all .yaml files in dir and parses each as one gift entry.
// Files are read in name order, which fixes the catalog's display order.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns the parsed gifts (may be empty slice) or a non-nil error.
func LoadGifts(dir string) ([]engine.Gift, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	gifts := make([]engine.Gift, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var doc giftDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing gift file %s: %w", path, err)
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("gift file %s: missing id", path)
		}
		if doc.Name == "" {
			return nil, fmt.Errorf("gift file %s: missing name", path)
		}
		gifts = append(gifts, engine.Gift{ID: doc.ID, Name: doc.Name, Cost: doc.Cost})
	}
	return gifts, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}
