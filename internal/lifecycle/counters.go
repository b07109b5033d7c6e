// Package lifecycle owns the protocol-wide counters and the zero-crossing
// transitions that move them.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

// Counters wraps the single PoolFactory record. It is loaded once at start
// and mutated only by the reconciler that owns it.
type Counters struct {
	factory model.PoolFactory
	dirty   bool
}

// New returns counters starting from factory.
func New(factory model.PoolFactory) *Counters {
	factory.ID = model.FactoryID
	return &Counters{factory: factory}
}

// Load reads the PoolFactory record, starting from zero when none exists.
func Load(ctx context.Context, ents *storage.Entities) (*Counters, error) {
	factory, ok, err := ents.PoolFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}
	if !ok {
		factory = model.PoolFactory{
			TotalSwapVolume: decimal.Zero,
			TotalSwapFee:    decimal.Zero,
		}
	}
	return New(factory), nil
}

// Clone returns an independent copy with no pending changes.
func (c *Counters) Clone() *Counters {
	return &Counters{factory: c.factory}
}

// Snapshot returns the current record.
func (c *Counters) Snapshot() model.PoolFactory {
	return c.factory
}

// Dirty reports whether any counter changed since New, Load or Clone.
func (c *Counters) Dirty() bool {
	return c.dirty
}

// Save writes the record when it changed.
func (c *Counters) Save(ctx context.Context, ents *storage.Entities) error {
	if !c.dirty {
		return nil
	}
	return ents.SavePoolFactory(ctx, c.factory)
}

func (c *Counters) PoolCreated() {
	c.factory.PoolCount++
	c.dirty = true
}

func (c *Counters) PoolFinalized() {
	c.factory.FinalizedPoolCount++
	c.dirty = true
}

// PoolRemoved drops a pool from the live counts. A finalized pool also
// leaves the finalized count.
func (c *Counters) PoolRemoved(finalized bool) {
	c.factory.PoolCount--
	if finalized {
		c.factory.FinalizedPoolCount--
	}
	c.dirty = true
}

// AddSwap accumulates protocol-wide swap volume and fees.
func (c *Counters) AddSwap(value, fee decimal.Decimal) {
	c.factory.TotalSwapVolume = c.factory.TotalSwapVolume.Add(value)
	c.factory.TotalSwapFee = c.factory.TotalSwapFee.Add(fee)
	c.dirty = true
}
