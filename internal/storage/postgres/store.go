package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name         TEXT        PRIMARY KEY,
	block_number BIGINT      NOT NULL,
	tx_index     BIGINT      NOT NULL,
	log_index    BIGINT      NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for ledger entities.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the entity and cursor tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Get(ctx context.Context, kind storage.Kind, id string) ([]byte, bool, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT data FROM entities WHERE kind=$1 AND id=$2`, string(kind), id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// PutBatch upserts records inside one transaction.
func (s *Store) PutBatch(ctx context.Context, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO entities (kind, id, data, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (kind, id)
			DO UPDATE SET data = EXCLUDED.data, updated_at = now()
		`, string(r.Kind), r.ID, []byte(r.Data))
	}

	br := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LoadState returns the last applied position for a name.
func (s *Store) LoadState(ctx context.Context, name string) (model.Position, bool, error) {
	if name == "" {
		return model.Position{}, false, fmt.Errorf("state name required")
	}
	var block, txIndex, logIndex int64
	row := s.pool.QueryRow(ctx, `SELECT block_number, tx_index, log_index FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block, &txIndex, &logIndex); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Position{}, false, nil
		}
		return model.Position{}, false, err
	}
	return model.Position{Block: uint64(block), TxIndex: uint64(txIndex), LogIndex: uint64(logIndex)}, true, nil
}

// SaveState upserts the last applied position for a name.
func (s *Store) SaveState(ctx context.Context, name string, pos model.Position) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, block_number, tx_index, log_index, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET block_number = EXCLUDED.block_number,
			tx_index = EXCLUDED.tx_index,
			log_index = EXCLUDED.log_index,
			updated_at = now()
	`, name, int64(pos.Block), int64(pos.TxIndex), int64(pos.LogIndex))
	return err
}

var _ storage.Backend = (*Store)(nil)
