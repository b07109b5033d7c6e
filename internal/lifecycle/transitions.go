package lifecycle

import (
	"github.com/shopspring/decimal"

	"poolLedger/internal/model"
)

// Deactivate marks pool inactive and removes it from the counters. Only the
// first transition counts; an inactive pool is left untouched and false is
// returned. Pools are never reactivated.
func Deactivate(pool *model.Pool, counters *Counters) bool {
	if !pool.Active {
		return false
	}
	pool.Active = false
	counters.PoolRemoved(pool.Finalized)
	return true
}

// DeactivateIfDrained deactivates pool when any of balances is exactly zero.
func DeactivateIfDrained(pool *model.Pool, counters *Counters, balances ...decimal.Decimal) bool {
	for _, b := range balances {
		if b.IsZero() {
			return Deactivate(pool, counters)
		}
	}
	return false
}

// HolderDelta is +1 when a balance moves from zero to non-zero, -1 for the
// reverse and 0 otherwise.
func HolderDelta(before, after decimal.Decimal) int64 {
	switch {
	case before.IsZero() && !after.IsZero():
		return 1
	case !before.IsZero() && after.IsZero():
		return -1
	default:
		return 0
	}
}
