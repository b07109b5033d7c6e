package reconcile

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/lifecycle"
	"poolLedger/internal/model"
	"poolLedger/internal/pricing"
)

// HandleJoin adds a single-token deposit to the pool.
func (r *Reconciler) HandleJoin(ctx context.Context, meta Meta, ev Join) error {
	return r.atomic(ctx, func(s *session) error {
		return s.join(ctx, meta, ev)
	})
}

// HandleExit removes a single-token withdrawal from the pool.
func (r *Reconciler) HandleExit(ctx context.Context, meta Meta, ev Exit) error {
	return r.atomic(ctx, func(s *session) error {
		return s.exit(ctx, meta, ev)
	})
}

// HandleSwap moves both balances, values the trade and records the swap.
func (r *Reconciler) HandleSwap(ctx context.Context, meta Meta, ev Swap) error {
	return r.atomic(ctx, func(s *session) error {
		return s.swap(ctx, meta, ev)
	})
}

func (s *session) join(ctx context.Context, meta Meta, ev Join) error {
	pool, ok, err := s.loadPool(ctx, meta, model.EventLogJoin)
	if err != nil || !ok {
		return err
	}
	pool.JoinsCount++

	token := model.NormalizeAddress(ev.TokenIn)
	poolToken, ok, err := s.ents.PoolToken(ctx, model.PoolTokenID(pool.ID, token))
	if err != nil {
		return err
	}
	if !ok {
		return s.ents.SavePool(ctx, pool)
	}
	info, err := s.tokenInfo(ctx, token)
	if err != nil {
		return err
	}
	amountIn, err := scale(model.EventLogJoin, ev.AmountIn, info.decimals)
	if err != nil {
		return err
	}

	poolToken.Balance = poolToken.Balance.Add(amountIn)
	if err := s.ents.SavePoolToken(ctx, poolToken); err != nil {
		return err
	}
	if err := s.refreshLiquidity(ctx, &pool); err != nil {
		return err
	}
	if err := s.ents.SavePool(ctx, pool); err != nil {
		return err
	}
	return s.recordTransaction(ctx, meta, pool, TxJoin, movement{
		token:   token,
		value:   amountIn,
		reserve: poolToken.Balance,
		fee:     decimal.Zero,
	})
}

func (s *session) exit(ctx context.Context, meta Meta, ev Exit) error {
	pool, ok, err := s.loadPool(ctx, meta, model.EventLogExit)
	if err != nil || !ok {
		return err
	}
	token := model.NormalizeAddress(ev.TokenOut)
	poolToken, ok, err := s.ents.PoolToken(ctx, model.PoolTokenID(pool.ID, token))
	if err != nil || !ok {
		return err
	}
	info, err := s.tokenInfo(ctx, token)
	if err != nil {
		return err
	}
	amountOut, err := scale(model.EventLogExit, ev.AmountOut, info.decimals)
	if err != nil {
		return err
	}

	poolToken.Balance = poolToken.Balance.Sub(amountOut)
	if err := s.ents.SavePoolToken(ctx, poolToken); err != nil {
		return err
	}
	pool.ExitsCount++
	if poolToken.Balance.IsZero() && lifecycle.Deactivate(&pool, s.counters) {
		s.logger.Debug("pool deactivated", zap.String("pool", pool.ID), zap.String("token", token))
	}
	if err := s.refreshLiquidity(ctx, &pool); err != nil {
		return err
	}
	if err := s.ents.SavePool(ctx, pool); err != nil {
		return err
	}
	return s.recordTransaction(ctx, meta, pool, TxExit, movement{
		token:   token,
		value:   amountOut.Neg(),
		reserve: poolToken.Balance,
		fee:     decimal.Zero,
	})
}

func (s *session) swap(ctx context.Context, meta Meta, ev Swap) error {
	pool, ok, err := s.loadPool(ctx, meta, model.EventLogSwap)
	if err != nil || !ok {
		return err
	}
	tokenIn := model.NormalizeAddress(ev.TokenIn)
	tokenOut := model.NormalizeAddress(ev.TokenOut)
	poolTokenIn, ok, err := s.ents.PoolToken(ctx, model.PoolTokenID(pool.ID, tokenIn))
	if err != nil || !ok {
		return err
	}
	poolTokenOut, ok, err := s.ents.PoolToken(ctx, model.PoolTokenID(pool.ID, tokenOut))
	if err != nil || !ok {
		return err
	}

	infoIn, err := s.tokenInfo(ctx, tokenIn)
	if err != nil {
		return err
	}
	infoOut, err := s.tokenInfo(ctx, tokenOut)
	if err != nil {
		return err
	}
	amountIn, err := scale(model.EventLogSwap, ev.AmountIn, infoIn.decimals)
	if err != nil {
		return err
	}
	amountOut, err := scale(model.EventLogSwap, ev.AmountOut, infoOut.decimals)
	if err != nil {
		return err
	}

	poolTokenIn.Balance = poolTokenIn.Balance.Add(amountIn)
	poolTokenOut.Balance = poolTokenOut.Balance.Sub(amountOut)
	if err := s.ents.SavePoolToken(ctx, poolTokenIn); err != nil {
		return err
	}
	if err := s.ents.SavePoolToken(ctx, poolTokenOut); err != nil {
		return err
	}
	if err := s.refreshLiquidity(ctx, &pool); err != nil {
		return err
	}

	target := pricing.Reserve{Token: tokenOut, Balance: poolTokenOut.Balance, Weight: poolTokenOut.DenormWeight}
	price, err := pricing.PropagatePrice(target, pool.TokensList, s.priceSource(ctx), s.reserveSource(ctx, pool.ID))
	if err != nil {
		return err
	}
	value, feeValue := decimal.Zero, decimal.Zero
	if price.Sign() > 0 {
		value = price.Mul(amountOut)
		feeValue = value.Mul(pool.SwapFee)
		pool.TotalSwapVolume = pool.TotalSwapVolume.Add(value)
		pool.TotalSwapFee = pool.TotalSwapFee.Add(feeValue)
		s.counters.AddSwap(value, feeValue)
	} else {
		s.logger.Debug("swap not valued",
			zap.String("pool", pool.ID),
			zap.String("token_out", tokenOut),
			zap.String("tx_hash", meta.TxHash),
		)
	}
	pool.SwapsCount++
	if lifecycle.DeactivateIfDrained(&pool, s.counters, poolTokenIn.Balance, poolTokenOut.Balance) {
		s.logger.Debug("pool deactivated", zap.String("pool", pool.ID))
	}
	if err := s.ents.SavePool(ctx, pool); err != nil {
		return err
	}

	caller := model.NormalizeAddress(ev.Caller)
	user := meta.From
	if user == "" {
		user = caller
	}
	err = s.ents.SaveSwap(ctx, model.Swap{
		ID:                  model.LogID(meta.TxHash, meta.LogIndex),
		Caller:              caller,
		TokenIn:             tokenIn,
		TokenInSym:          infoIn.symbol,
		TokenOut:            tokenOut,
		TokenOutSym:         infoOut.symbol,
		TokenAmountIn:       amountIn,
		TokenAmountOut:      amountOut,
		PoolAddress:         pool.ID,
		UserAddress:         user,
		PoolTotalSwapVolume: pool.TotalSwapVolume,
		PoolTotalSwapFee:    pool.TotalSwapFee,
		PoolLiquidity:       pool.Liquidity,
		Value:               value,
		FeeValue:            feeValue,
		Timestamp:           meta.Timestamp,
	})
	if err != nil {
		return err
	}

	return s.recordTransaction(ctx, meta, pool, TxSwap,
		movement{token: tokenIn, value: amountIn, reserve: poolTokenIn.Balance, fee: amountIn.Mul(pool.SwapFee)},
		movement{token: tokenOut, value: amountOut.Neg(), reserve: poolTokenOut.Balance, fee: decimal.Zero},
	)
}

func (s *session) priceSource(ctx context.Context) pricing.PriceSource {
	return func(token string) (decimal.Decimal, bool, error) {
		price, ok, err := s.ents.TokenPrice(ctx, token)
		return price.Price, ok, err
	}
}

func (s *session) reserveSource(ctx context.Context, poolID string) pricing.ReserveSource {
	return func(token string) (pricing.Reserve, bool, error) {
		poolToken, ok, err := s.ents.PoolToken(ctx, model.PoolTokenID(poolID, token))
		if err != nil || !ok {
			return pricing.Reserve{}, ok, err
		}
		return pricing.Reserve{Token: token, Balance: poolToken.Balance, Weight: poolToken.DenormWeight}, true, nil
	}
}
