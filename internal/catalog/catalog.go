// Package catalog provides the built-in activity definitions.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"example.com/wellness/internal/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type document struct {
	Activities []domain.ActivityDefinition `yaml:"activities"`
}

// Defaults returns the built-in definitions in display order.
func Defaults() ([]domain.ActivityDefinition, error) {
	return Parse(defaultsYAML)
}

// Parse decodes a catalog document and validates every entry.
func Parse(raw []byte) ([]domain.ActivityDefinition, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Activities))
	for i, def := range doc.Activities {
		if def.ID == "" || def.Name == "" || def.Emoji == "" {
			return nil, fmt.Errorf("catalog: entry %d: id, name and emoji are required", i)
		}
		if !def.ValueKind.Valid() {
			return nil, fmt.Errorf("catalog: entry %q: unknown value kind %q", def.Name, def.ValueKind)
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate activity %q", def.Name)
		}
		seen[def.Name] = struct{}{}
	}
	return doc.Activities, nil
}
