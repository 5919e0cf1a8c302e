package storage

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fintrack/internal/core"
)

// CategorySeed is the on-disk shape of a category seed file:
//
//	categories:
//	  - name: Groceries
//	    icon: cart-outline
type CategorySeed struct {
	Categories []SeedCategory `yaml:"categories"`
}

type SeedCategory struct {
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
}

// LoadCategorySeed reads a YAML seed file. Blank entries are skipped and
// names are deduplicated case-insensitively, first one wins.
func LoadCategorySeed(path string) ([]SeedCategory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed CategorySeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	seen := map[string]struct{}{}
	out := make([]SeedCategory, 0, len(seed.Categories))
	for _, c := range seed.Categories {
		c.Name = strings.TrimSpace(c.Name)
		c.Icon = strings.TrimSpace(c.Icon)
		if c.Name == "" {
			continue
		}
		if err := core.ValidateLabel(c.Name, c.Icon); err != nil {
			return nil, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		key := strings.ToLower(c.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
