package state

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Watermarks maps a configured project name to the RFC3339 timestamp of the
// last source record observed for that project. The file is overwritten
// wholesale at the end of every run.
type Watermarks map[string]string

// Store handles persistence of per-project watermarks between runs.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted watermarks. A missing file yields empty watermarks
// rather than an error so that the first run starts from the configured times.
func (s *Store) Load() (Watermarks, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Watermarks{}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var watermarks Watermarks
	if err := yaml.Unmarshal(data, &watermarks); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if watermarks == nil {
		watermarks = Watermarks{}
	}

	return watermarks, nil
}

// Save writes the watermarks, replacing any previous state.
func (s *Store) Save(watermarks Watermarks) error {
	data, err := yaml.Marshal(watermarks)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// For returns the watermark to start from for the named project: the persisted
// value when one exists, the configured start time otherwise.
func (w Watermarks) For(project, configured string) string {
	if persisted, ok := w[project]; ok && persisted != "" {
		return persisted
	}
	return configured
}

// Merge builds the persistable state from the per-project end-of-run
// watermarks.
func Merge(perProject map[string]string) Watermarks {
	merged := Watermarks{}
	for project, watermark := range perProject {
		merged[project] = watermark
	}
	return merged
}
