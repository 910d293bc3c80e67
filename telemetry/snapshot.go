package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the complete simulation state between generations, enough
// to resume a run bit-for-bit.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	// Generation is the index of the next generation to run.
	Generation int `json:"generation"`

	Height       int     `json:"height"`
	Width        int     `json:"width"`
	CostBenefit  float64 `json:"cost_benefit"`
	Interactions int     `json:"interactions"`

	MutationRate  float64 `json:"mutation_rate"`
	MutationSigma float64 `json:"mutation_sigma"`

	Cooperation [][]float64 `json:"cooperation"`

	// RNGState is the marshalled PCG state of the simulation RNG.
	RNGState []byte `json:"rng_state"`
}

// SaveSnapshot writes a snapshot to dir/name.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	if name == "" {
		name = fmt.Sprintf("snapshot_%06d.json", snapshot.Generation)
	}
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d not supported (want %d)", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
