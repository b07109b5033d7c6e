package reconcile

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/amount"
	"poolLedger/internal/lifecycle"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

// HandleTransfer routes a Transfer by emitter: pool shares when the emitter
// is a tracked pool, a datatoken ledger entry when it is a known datatoken.
// Transfers of other tokens are ignored.
func (r *Reconciler) HandleTransfer(ctx context.Context, meta Meta, ev Transfer) error {
	ents := storage.NewEntities(r.backend)
	_, ok, err := ents.Pool(ctx, meta.Address)
	if err != nil {
		return err
	}
	if ok {
		return r.HandleShareTransfer(ctx, meta, ev)
	}
	_, ok, err = ents.Datatoken(ctx, meta.Address)
	if err != nil {
		return err
	}
	if ok {
		return r.HandleTokenTransfer(ctx, meta, ev)
	}
	r.logger.Debug("ignore transfer", zap.String("token", meta.Address), zap.String("tx_hash", meta.TxHash))
	return nil
}

// HandleShareTransfer applies a pool share mint, burn or transfer.
func (r *Reconciler) HandleShareTransfer(ctx context.Context, meta Meta, ev Transfer) error {
	return r.atomic(ctx, func(s *session) error {
		return s.shareTransfer(ctx, meta, ev)
	})
}

// HandleTokenTransfer applies a datatoken transfer outside any pool.
func (r *Reconciler) HandleTokenTransfer(ctx context.Context, meta Meta, ev Transfer) error {
	return r.atomic(ctx, func(s *session) error {
		dt, ok, err := s.ents.Datatoken(ctx, meta.Address)
		if err != nil || !ok {
			return err
		}
		return s.tokenTransfer(ctx, meta, dt, ev)
	})
}

// HandleNewPool registers a pool with empty aggregates. A known pool is left
// untouched.
func (r *Reconciler) HandleNewPool(ctx context.Context, meta Meta, ev NewPool) error {
	return r.atomic(ctx, func(s *session) error {
		id := model.NormalizeAddress(ev.Pool)
		_, ok, err := s.ents.Pool(ctx, id)
		if err != nil || ok {
			return err
		}
		s.counters.PoolCreated()
		return s.ents.SavePool(ctx, model.Pool{
			ID:               id,
			Controller:       model.NormalizeAddress(ev.RegisteredBy),
			Active:           true,
			SwapFee:          decimal.Zero,
			TotalWeight:      decimal.Zero,
			TotalShares:      decimal.Zero,
			TotalSwapVolume:  decimal.Zero,
			TotalSwapFee:     decimal.Zero,
			Liquidity:        decimal.Zero,
			DatatokenReserve: decimal.Zero,
			OceanReserve:     decimal.Zero,
			SpotPrice:        decimal.Zero,
			TokensList:       []string{},
			CreatedAt:        meta.Timestamp,
			Tx:               meta.TxHash,
		})
	})
}

func (s *session) shareTransfer(ctx context.Context, meta Meta, ev Transfer) error {
	pool, ok, err := s.loadPool(ctx, meta, model.EventTransfer)
	if err != nil || !ok {
		return err
	}
	value, err := scale(model.EventTransfer, ev.Value, amount.DefaultDecimals)
	if err != nil {
		return err
	}
	from := model.NormalizeAddress(ev.From)
	to := model.NormalizeAddress(ev.To)
	isMint := from == model.ZeroAddress
	isBurn := to == model.ZeroAddress

	var holder string
	var holderBalance decimal.Decimal
	if !isBurn {
		before, after, err := s.adjustShare(ctx, pool.ID, to, value)
		if err != nil {
			return err
		}
		pool.HoldersCount += lifecycle.HolderDelta(before, after)
		holder, holderBalance = to, after
	}
	if !isMint {
		before, after, err := s.adjustShare(ctx, pool.ID, from, value.Neg())
		if err != nil {
			return err
		}
		pool.HoldersCount += lifecycle.HolderDelta(before, after)
		if isBurn {
			holder, holderBalance = from, after
		}
	}

	var shares decimal.Decimal
	switch {
	case isMint && isBurn:
		return nil
	case isMint:
		pool.TotalShares = pool.TotalShares.Add(value)
		shares = value
	case isBurn:
		pool.TotalShares = pool.TotalShares.Sub(value)
		shares = value.Neg()
	}
	if err := s.ents.SavePool(ctx, pool); err != nil {
		return err
	}
	if !isMint && !isBurn {
		return nil
	}

	tx, ok, err := s.ents.PoolTransaction(ctx, meta.TxHash)
	if err != nil || !ok {
		return err
	}
	s.logger.Debug("share movement", zap.String("pool", pool.ID), zap.String("holder", holder))
	tx.SharesTransferAmount = shares
	tx.SharesBalance = holderBalance
	return s.ents.SavePoolTransaction(ctx, tx)
}

// adjustShare adds delta to a holder's share balance, creating the share and
// the user on first sight.
func (s *session) adjustShare(ctx context.Context, poolID, user string, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	id := model.PoolShareID(poolID, user)
	share, ok, err := s.ents.PoolShare(ctx, id)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !ok {
		share = model.PoolShare{ID: id, PoolID: poolID, UserAddress: user, Balance: decimal.Zero}
		if err := s.ensureUser(ctx, user); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	before := share.Balance
	share.Balance = before.Add(delta)
	if err := s.ents.SavePoolShare(ctx, share); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return before, share.Balance, nil
}

func (s *session) tokenTransfer(ctx context.Context, meta Meta, dt model.Datatoken, ev Transfer) error {
	value, err := scale(model.EventTransfer, ev.Value, dt.Decimals)
	if err != nil {
		return err
	}
	err = s.ents.SaveTokenTransaction(ctx, model.TokenTransaction{
		ID:               model.LogID(meta.TxHash, meta.LogIndex),
		Event:            model.EventTransfer,
		DatatokenAddress: dt.ID,
		UserAddress:      meta.From,
		GasUsed:          meta.GasUsed,
		GasPrice:         meta.GasPrice,
		Tx:               meta.TxHash,
		Timestamp:        meta.Timestamp,
		Block:            meta.Block,
	})
	if err != nil {
		return err
	}
	if err := s.ensureUser(ctx, meta.From); err != nil {
		return err
	}

	if from := model.NormalizeAddress(ev.From); from != model.ZeroAddress {
		if err := s.adjustTokenBalance(ctx, dt.ID, from, value.Neg()); err != nil {
			return err
		}
	}
	if to := model.NormalizeAddress(ev.To); to != model.ZeroAddress {
		if err := s.adjustTokenBalance(ctx, dt.ID, to, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) adjustTokenBalance(ctx context.Context, datatoken, user string, delta decimal.Decimal) error {
	id := model.TokenBalanceID(datatoken, user)
	balance, ok, err := s.ents.TokenBalance(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		balance = model.TokenBalance{ID: id, UserAddress: user, DatatokenID: datatoken, Balance: decimal.Zero}
		if err := s.ensureUser(ctx, user); err != nil {
			return err
		}
	}
	balance.Balance = balance.Balance.Add(delta)
	return s.ents.SaveTokenBalance(ctx, balance)
}
