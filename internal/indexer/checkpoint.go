package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CheckpointStore persists the last processed block.
type CheckpointStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, block uint64) error
}

// Checkpoint is the on-disk checkpoint record.
type Checkpoint struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// FileCheckpoint stores the checkpoint in a local JSON file.
type FileCheckpoint struct {
	path string
}

func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

func (c *FileCheckpoint) Load(context.Context) (uint64, bool, error) {
	if c == nil || c.path == "" {
		return 0, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.LastProcessedBlock, true, nil
}

func (c *FileCheckpoint) Save(_ context.Context, block uint64) error {
	if c == nil || c.path == "" {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		LastProcessedBlock: block,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	})
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

// StateBackend is the named-state table of a database store.
type StateBackend interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, value uint64) error
}

// DBCheckpoint stores the checkpoint under a name in a StateBackend.
type DBCheckpoint struct {
	Backend StateBackend
	Name    string
}

func (c *DBCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	if c == nil || c.Backend == nil {
		return 0, false, nil
	}
	return c.Backend.LoadState(ctx, c.Name)
}

func (c *DBCheckpoint) Save(ctx context.Context, block uint64) error {
	if c == nil || c.Backend == nil {
		return nil
	}
	return c.Backend.SaveState(ctx, c.Name, block)
}
