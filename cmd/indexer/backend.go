package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"poolLedger/internal/storage"
	"poolLedger/internal/storage/postgres"
)

// entityBackend is the entity store a command writes to: Postgres when a DSN
// is configured, otherwise an in-memory store loaded from and flushed to a
// JSONL snapshot.
type entityBackend struct {
	storage.Backend
	pg       *postgres.Store
	memory   *storage.Memory
	snapshot string
}

func openEntityBackend(ctx context.Context, dsn, snapshot string, logger *zap.Logger) (*entityBackend, error) {
	if dsn != "" {
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &entityBackend{Backend: store, pg: store}, nil
	}

	if snapshot == "" {
		return nil, fmt.Errorf("snapshot path is required without pg-dsn")
	}
	memory := storage.NewMemory()
	if err := memory.LoadSnapshot(snapshot); err != nil {
		return nil, err
	}
	logger.Info("entity snapshot loaded", zap.String("snapshot", snapshot), zap.Int("records", len(memory.Records())))
	return &entityBackend{Backend: memory, memory: memory, snapshot: snapshot}, nil
}

// Flush persists the in-memory store. Postgres writes are already durable.
func (b *entityBackend) Flush(context.Context) error {
	if b.memory == nil {
		return nil
	}
	return b.memory.WriteSnapshot(b.snapshot)
}

func (b *entityBackend) Close() {
	if b.pg != nil {
		b.pg.Close()
	}
}
