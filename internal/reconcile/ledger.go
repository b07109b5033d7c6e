package reconcile

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"poolLedger/internal/model"
	"poolLedger/internal/pricing"
)

// movement is one token's flow within a transaction. A positive value moved
// into the pool.
type movement struct {
	token   string
	value   decimal.Decimal
	reserve decimal.Decimal
	fee     decimal.Decimal
}

// recordTransaction creates the ledger entry for the transaction if needed
// and upserts one token-values row per movement.
func (s *session) recordTransaction(ctx context.Context, meta Meta, pool model.Pool, eventType string, moves ...movement) error {
	tx, ok, err := s.createPoolTransaction(ctx, meta, pool, eventType)
	if err != nil || !ok {
		return err
	}
	for _, m := range moves {
		if err := s.upsertTokenValues(ctx, tx, m); err != nil {
			return err
		}
	}
	return nil
}

// createPoolTransaction returns the ledger entry for meta.TxHash, creating it
// on first sight. It reports false without writing when either side of the
// pricing pair is not bound to the pool yet. An existing entry is returned
// unchanged.
func (s *session) createPoolTransaction(ctx context.Context, meta Meta, pool model.Pool, eventType string) (model.PoolTransaction, bool, error) {
	if pool.DatatokenAddress == "" {
		return model.PoolTransaction{}, false, nil
	}
	num, ok, err := s.ents.PoolToken(ctx, model.PoolTokenID(pool.ID, s.numeraire))
	if err != nil || !ok {
		return model.PoolTransaction{}, false, err
	}
	dt, ok, err := s.ents.PoolToken(ctx, model.PoolTokenID(pool.ID, pool.DatatokenAddress))
	if err != nil || !ok {
		return model.PoolTransaction{}, false, err
	}

	existing, ok, err := s.ents.PoolTransaction(ctx, meta.TxHash)
	if err != nil {
		return model.PoolTransaction{}, false, err
	}
	if ok {
		return existing, true, nil
	}

	tx := model.PoolTransaction{
		ID:                   meta.TxHash,
		PoolAddress:          pool.ID,
		UserAddress:          meta.From,
		SharesTransferAmount: decimal.Zero,
		SharesBalance:        decimal.Zero,
		SpotPrice:            spotPrice(num, dt, pool.SwapFee),
		Tx:                   meta.TxHash,
		Event:                eventType,
		Block:                meta.Block,
		Timestamp:            meta.Timestamp,
		GasUsed:              meta.GasUsed,
		GasPrice:             meta.GasPrice,
	}
	if err := s.ents.SavePoolTransaction(ctx, tx); err != nil {
		return model.PoolTransaction{}, false, err
	}
	return tx, true, nil
}

func (s *session) upsertTokenValues(ctx context.Context, tx model.PoolTransaction, m movement) error {
	flow := model.FlowIn
	if m.value.Sign() < 0 {
		flow = model.FlowOut
	}
	return s.ents.SaveTokenValues(ctx, model.PoolTransactionTokenValues{
		ID:           model.TokenValuesID(tx.ID, m.token),
		TxID:         tx.ID,
		PoolToken:    model.PoolTokenID(tx.PoolAddress, m.token),
		PoolAddress:  tx.PoolAddress,
		UserAddress:  tx.UserAddress,
		TokenAddress: m.token,
		Value:        m.value,
		TokenReserve: m.reserve,
		FeeValue:     m.fee,
		Type:         flow,
	})
}

// refreshLiquidity recomputes the cached reserves, liquidity and spot price of
// the pool's numéraire/datatoken pair from the stored pool tokens.
func (s *session) refreshLiquidity(ctx context.Context, pool *model.Pool) error {
	num, numOK, err := s.ents.PoolToken(ctx, model.PoolTokenID(pool.ID, s.numeraire))
	if err != nil {
		return err
	}
	if numOK {
		pool.OceanReserve = num.Balance
		liquidity, err := pricing.Liquidity(num.Balance, num.DenormWeight, pool.TotalWeight)
		if err != nil && !errors.Is(err, pricing.ErrDegenerate) {
			return err
		}
		pool.Liquidity = liquidity
	}
	if pool.DatatokenAddress == "" {
		return nil
	}

	dt, dtOK, err := s.ents.PoolToken(ctx, model.PoolTokenID(pool.ID, pool.DatatokenAddress))
	if err != nil {
		return err
	}
	if dtOK {
		pool.DatatokenReserve = dt.Balance
	}
	if numOK && dtOK {
		pool.SpotPrice = spotPrice(num, dt, pool.SwapFee)
	}
	return nil
}

// spotPrice prices the datatoken in the numéraire. Degenerate reserves price
// at zero.
func spotPrice(num, dt model.PoolToken, fee decimal.Decimal) decimal.Decimal {
	price, err := pricing.CalcSpotPrice(num.DenormWeight, dt.DenormWeight, num.Balance, dt.Balance, fee)
	if err != nil {
		return decimal.Zero
	}
	return price
}
