package points

import (
	"encoding/json"
	"fmt"
	"os"
)

// Save writes the set as indented JSON.
func Save(path string, ps *PointSet) error {
	data, err := json.MarshalIndent(ps.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode point set: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write point set: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename point set file: %w", err)
	}
	return nil
}

// Load reads a set written by Save.
func Load(path string) (*PointSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read point set: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode point set: %w", err)
	}
	return New(snap.Points, snap.Start, snap.Final)
}
