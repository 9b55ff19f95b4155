package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	store := NewStore(path)

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error loading missing state: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty watermarks, got %v", loaded)
	}

	watermarks := Watermarks{
		"fleet":  "2024-01-05T12:00:00Z",
		"portal": "2024-02-01T00:00:00Z",
	}
	if err := store.Save(watermarks); err != nil {
		t.Fatalf("unexpected error saving state: %v", err)
	}

	loaded, err = store.Load()
	if err != nil {
		t.Fatalf("unexpected error loading state: %v", err)
	}
	if len(loaded) != 2 || loaded["fleet"] != "2024-01-05T12:00:00Z" || loaded["portal"] != "2024-02-01T00:00:00Z" {
		t.Errorf("loaded watermarks do not match saved ones: %v", loaded)
	}
}

func TestStoreLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	if err := os.WriteFile(path, []byte("{unterminated: ["), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStore(path).Load(); err == nil {
		t.Errorf("expected error for unparseable state file")
	}
}

func TestWatermarksFor(t *testing.T) {
	tests := []struct {
		name       string
		watermarks Watermarks
		project    string
		configured string
		expected   string
	}{
		{
			name:       "persisted value overrides configured start",
			watermarks: Watermarks{"fleet": "2024-03-01T00:00:00Z"},
			project:    "fleet",
			configured: "2024-01-01T00:00:00Z",
			expected:   "2024-03-01T00:00:00Z",
		},
		{
			name:       "unknown project falls back to configured start",
			watermarks: Watermarks{"fleet": "2024-03-01T00:00:00Z"},
			project:    "portal",
			configured: "2024-01-01T00:00:00Z",
			expected:   "2024-01-01T00:00:00Z",
		},
		{
			name:       "empty persisted value falls back to configured start",
			watermarks: Watermarks{"fleet": ""},
			project:    "fleet",
			configured: "2024-01-01T00:00:00Z",
			expected:   "2024-01-01T00:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.watermarks.For(tt.project, tt.configured); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	merged := Merge(map[string]string{"fleet": "2024-01-05T12:00:00Z"})
	if len(merged) != 1 || merged["fleet"] != "2024-01-05T12:00:00Z" {
		t.Errorf("unexpected merged state: %v", merged)
	}
}
