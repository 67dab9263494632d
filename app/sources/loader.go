package sources

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// Load reads the feed source list from a YAML file, preserving order.
func Load(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	if err := validate(file.Sources); err != nil {
		return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
	}

	return file.Sources, nil
}

func validate(srcs []Source) error {
	seen := make(map[string]bool, len(srcs))

	for i, s := range srcs {
		if s.ID == "" {
			return fmt.Errorf("source at index %d: id is required", i)
		}
		if s.Name == "" {
			return fmt.Errorf("source %q: name is required", s.ID)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
	}

	return nil
}
