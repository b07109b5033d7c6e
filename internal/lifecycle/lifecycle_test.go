package lifecycle

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

func TestLoadStartsFromZero(t *testing.T) {
	ents := storage.NewEntities(storage.NewMemory())
	c, err := Load(context.Background(), ents)
	require.NoError(t, err)
	require.Equal(t, model.FactoryID, c.Snapshot().ID)
	require.False(t, c.Dirty())
}

func TestCountersSaveOnlyWhenDirty(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	ents := storage.NewEntities(mem)

	c := New(model.PoolFactory{})
	require.NoError(t, c.Save(ctx, ents))
	require.Equal(t, 0, mem.Len(storage.KindPoolFactory))

	c.PoolCreated()
	c.AddSwap(decimal.NewFromInt(10), decimal.RequireFromString("0.1"))
	require.NoError(t, c.Save(ctx, ents))

	loaded, err := Load(ctx, ents)
	require.NoError(t, err)
	require.Equal(t, int64(1), loaded.Snapshot().PoolCount)
	require.True(t, loaded.Snapshot().TotalSwapFee.Equal(decimal.RequireFromString("0.1")))
}

func TestCloneIsIndependent(t *testing.T) {
	c := New(model.PoolFactory{PoolCount: 2})
	clone := c.Clone()
	clone.PoolCreated()
	require.Equal(t, int64(2), c.Snapshot().PoolCount)
	require.Equal(t, int64(3), clone.Snapshot().PoolCount)
	require.False(t, c.Dirty())
}

func TestDeactivateFinalizedPool(t *testing.T) {
	c := New(model.PoolFactory{PoolCount: 4, FinalizedPoolCount: 2})
	pool := model.Pool{ID: "0xpool", Active: true, Finalized: true}

	require.True(t, Deactivate(&pool, c))
	require.False(t, pool.Active)
	require.Equal(t, int64(3), c.Snapshot().PoolCount)
	require.Equal(t, int64(1), c.Snapshot().FinalizedPoolCount)

	require.False(t, Deactivate(&pool, c))
	require.Equal(t, int64(3), c.Snapshot().PoolCount)
}

func TestDeactivateIfDrained(t *testing.T) {
	c := New(model.PoolFactory{PoolCount: 1})
	pool := model.Pool{ID: "0xpool", Active: true}

	require.False(t, DeactivateIfDrained(&pool, c, decimal.NewFromInt(1), decimal.NewFromInt(2)))
	require.True(t, pool.Active)
	require.True(t, DeactivateIfDrained(&pool, c, decimal.NewFromInt(1), decimal.Zero))
	require.False(t, pool.Active)
	require.Equal(t, int64(0), c.Snapshot().PoolCount)
}

func TestHolderDelta(t *testing.T) {
	five := decimal.NewFromInt(5)
	require.Equal(t, int64(1), HolderDelta(decimal.Zero, five))
	require.Equal(t, int64(-1), HolderDelta(five, decimal.Zero))
	require.Equal(t, int64(0), HolderDelta(five, decimal.NewFromInt(3)))
	require.Equal(t, int64(0), HolderDelta(decimal.Zero, decimal.Zero))
}
