package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"poolLedger/internal/model"
	"poolLedger/internal/storage/postgres"
)

// CheckpointStore persists the last fully fetched block.
type CheckpointStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, lastProcessed uint64) error
}

// Checkpoint is the on-disk checkpoint document.
type Checkpoint struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// FileCheckpoint stores the checkpoint as a JSON file. A disabled or
// pathless store loads nothing and saves nothing.
type FileCheckpoint struct {
	Path    string
	Enabled bool
}

func (c *FileCheckpoint) Load(_ context.Context) (uint64, bool, error) {
	if c == nil || !c.Enabled || c.Path == "" {
		return 0, false, nil
	}

	stat, err := os.Stat(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.LastProcessedBlock, true, nil
}

func (c *FileCheckpoint) Save(_ context.Context, lastProcessed uint64) error {
	if c == nil || !c.Enabled || c.Path == "" {
		return nil
	}

	dir := filepath.Dir(c.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.Path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// DBCheckpoint stores the checkpoint as a block-only position in the
// indexer_state table, next to the reconciler cursor.
type DBCheckpoint struct {
	Store *postgres.Store
	Name  string
}

func (c *DBCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	if c == nil || c.Store == nil {
		return 0, false, nil
	}
	pos, ok, err := c.Store.LoadState(ctx, c.Name)
	if err != nil || !ok {
		return 0, ok, err
	}
	return pos.Block, true, nil
}

func (c *DBCheckpoint) Save(ctx context.Context, lastProcessed uint64) error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.SaveState(ctx, c.Name, model.Position{Block: lastProcessed})
}
