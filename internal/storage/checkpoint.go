package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint tracks how far an input file has been processed. Offsets holds
// the size of each output file at the time the checkpoint was taken, so a
// resumed run can cut off output written after it.
type Checkpoint struct {
	Input         string           `json:"input"`
	LastProcessed uint64           `json:"last_processed_line"`
	Offsets       map[string]int64 `json:"offsets,omitempty"`
	UpdatedAt     string           `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk. A store with an empty path is
// disabled.
type CheckpointStore struct {
	path string
}

func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

func (c *CheckpointStore) Enabled() bool {
	return c != nil && c.path != ""
}

// Load returns the saved checkpoint for input. A checkpoint written for a
// different input is ignored.
func (c *CheckpointStore) Load(input string) (Checkpoint, bool, error) {
	if !c.Enabled() {
		return Checkpoint{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return Checkpoint{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if cp.Input != input {
		return Checkpoint{}, false, nil
	}
	return cp, true, nil
}

// Save atomically replaces the checkpoint file.
func (c *CheckpointStore) Save(input string, lastProcessed uint64, offsets map[string]int64) error {
	if !c.Enabled() {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		Input:         input,
		LastProcessed: lastProcessed,
		Offsets:       offsets,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
