package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"poolLedger/internal/model"
)

// Kind names an entity collection.
type Kind string

const (
	KindPool             Kind = "pool"
	KindPoolToken        Kind = "pool_token"
	KindPoolShare        Kind = "pool_share"
	KindPoolTransaction  Kind = "pool_transaction"
	KindTokenValues      Kind = "pool_transaction_token_values"
	KindSwap             Kind = "swap"
	KindTokenPrice       Kind = "token_price"
	KindDatatoken        Kind = "datatoken"
	KindTokenBalance     Kind = "token_balance"
	KindTokenTransaction Kind = "token_transaction"
	KindUser             Kind = "user"
	KindPoolFactory      Kind = "pool_factory"
	KindCursor           Kind = "cursor"
)

// Record is one serialized entity.
type Record struct {
	Kind Kind            `json:"kind"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Backend loads and saves serialized entities. Get reports absence with
// ok=false rather than an error.
type Backend interface {
	Get(ctx context.Context, kind Kind, id string) ([]byte, bool, error)
	PutBatch(ctx context.Context, records []Record) error
}

// Entities is typed access to the entity store. Every load returns an
// explicit found flag that callers must check.
type Entities struct {
	backend Backend
}

func NewEntities(backend Backend) *Entities {
	return &Entities{backend: backend}
}

func (e *Entities) Pool(ctx context.Context, id string) (model.Pool, bool, error) {
	return load[model.Pool](ctx, e.backend, KindPool, id)
}

func (e *Entities) SavePool(ctx context.Context, pool model.Pool) error {
	return save(ctx, e.backend, KindPool, pool.ID, pool)
}

func (e *Entities) PoolToken(ctx context.Context, id string) (model.PoolToken, bool, error) {
	return load[model.PoolToken](ctx, e.backend, KindPoolToken, id)
}

func (e *Entities) SavePoolToken(ctx context.Context, token model.PoolToken) error {
	return save(ctx, e.backend, KindPoolToken, token.ID, token)
}

func (e *Entities) PoolShare(ctx context.Context, id string) (model.PoolShare, bool, error) {
	return load[model.PoolShare](ctx, e.backend, KindPoolShare, id)
}

func (e *Entities) SavePoolShare(ctx context.Context, share model.PoolShare) error {
	return save(ctx, e.backend, KindPoolShare, share.ID, share)
}

func (e *Entities) PoolTransaction(ctx context.Context, id string) (model.PoolTransaction, bool, error) {
	return load[model.PoolTransaction](ctx, e.backend, KindPoolTransaction, id)
}

func (e *Entities) SavePoolTransaction(ctx context.Context, tx model.PoolTransaction) error {
	return save(ctx, e.backend, KindPoolTransaction, tx.ID, tx)
}

func (e *Entities) TokenValues(ctx context.Context, id string) (model.PoolTransactionTokenValues, bool, error) {
	return load[model.PoolTransactionTokenValues](ctx, e.backend, KindTokenValues, id)
}

func (e *Entities) SaveTokenValues(ctx context.Context, row model.PoolTransactionTokenValues) error {
	return save(ctx, e.backend, KindTokenValues, row.ID, row)
}

func (e *Entities) Swap(ctx context.Context, id string) (model.Swap, bool, error) {
	return load[model.Swap](ctx, e.backend, KindSwap, id)
}

func (e *Entities) SaveSwap(ctx context.Context, swap model.Swap) error {
	return save(ctx, e.backend, KindSwap, swap.ID, swap)
}

func (e *Entities) TokenPrice(ctx context.Context, id string) (model.TokenPrice, bool, error) {
	return load[model.TokenPrice](ctx, e.backend, KindTokenPrice, id)
}

// SaveTokenPrice is used by the price feed that owns TokenPrice records.
func (e *Entities) SaveTokenPrice(ctx context.Context, price model.TokenPrice) error {
	return save(ctx, e.backend, KindTokenPrice, price.ID, price)
}

func (e *Entities) Datatoken(ctx context.Context, id string) (model.Datatoken, bool, error) {
	return load[model.Datatoken](ctx, e.backend, KindDatatoken, id)
}

// SaveDatatoken is used by the metadata sync that owns Datatoken records.
func (e *Entities) SaveDatatoken(ctx context.Context, token model.Datatoken) error {
	return save(ctx, e.backend, KindDatatoken, token.ID, token)
}

func (e *Entities) TokenBalance(ctx context.Context, id string) (model.TokenBalance, bool, error) {
	return load[model.TokenBalance](ctx, e.backend, KindTokenBalance, id)
}

func (e *Entities) SaveTokenBalance(ctx context.Context, balance model.TokenBalance) error {
	return save(ctx, e.backend, KindTokenBalance, balance.ID, balance)
}

func (e *Entities) TokenTransaction(ctx context.Context, id string) (model.TokenTransaction, bool, error) {
	return load[model.TokenTransaction](ctx, e.backend, KindTokenTransaction, id)
}

func (e *Entities) SaveTokenTransaction(ctx context.Context, tx model.TokenTransaction) error {
	return save(ctx, e.backend, KindTokenTransaction, tx.ID, tx)
}

func (e *Entities) User(ctx context.Context, id string) (model.User, bool, error) {
	return load[model.User](ctx, e.backend, KindUser, id)
}

func (e *Entities) SaveUser(ctx context.Context, user model.User) error {
	return save(ctx, e.backend, KindUser, user.ID, user)
}

func (e *Entities) PoolFactory(ctx context.Context) (model.PoolFactory, bool, error) {
	return load[model.PoolFactory](ctx, e.backend, KindPoolFactory, model.FactoryID)
}

func (e *Entities) SavePoolFactory(ctx context.Context, factory model.PoolFactory) error {
	return save(ctx, e.backend, KindPoolFactory, model.FactoryID, factory)
}

// Cursor returns the position of the last event a named consumer committed.
func (e *Entities) Cursor(ctx context.Context, name string) (model.Position, bool, error) {
	return load[model.Position](ctx, e.backend, KindCursor, name)
}

func (e *Entities) SaveCursor(ctx context.Context, name string, pos model.Position) error {
	return save(ctx, e.backend, KindCursor, name, pos)
}

func load[T any](ctx context.Context, backend Backend, kind Kind, id string) (T, bool, error) {
	var out T
	data, ok, err := backend.Get(ctx, kind, id)
	if err != nil {
		return out, false, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	if !ok {
		return out, false, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return out, true, nil
}

func save(ctx context.Context, backend Backend, kind Kind, id string, value interface{}) error {
	if id == "" {
		return fmt.Errorf("save %s: empty id", kind)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	if err := backend.PutBatch(ctx, []Record{{Kind: kind, ID: id, Data: data}}); err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, err)
	}
	return nil
}
