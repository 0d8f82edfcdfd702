package posts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the JSON record of one build's posts, written next to the
// rendered page so a later run can fall back to it.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	SiteTitle   string    `json:"site_title"`
	Posts       []Post    `json:"posts"`
}

// SnapshotStore reads and writes a snapshot file.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a store for the snapshot at path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the snapshot file location.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save writes the snapshot, creating parent directories as needed.
func (s *SnapshotStore) Save(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if snap.Posts == nil {
		snap.Posts = []Post{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write to a temp file first so a crash never leaves half a snapshot
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot. A missing file returns (nil, nil).
func (s *SnapshotStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No previous build (not an error)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snap, nil
}
