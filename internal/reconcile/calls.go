package reconcile

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/amount"
	"poolLedger/internal/calldata"
	"poolLedger/internal/lifecycle"
	"poolLedger/internal/model"
)

// Ledger event types.
const (
	TxSetup  = "setup"
	TxRebind = "rebind"
	TxJoin   = "join"
	TxExit   = "exit"
	TxSwap   = "swap"
)

// finalizedSymbol is the share symbol of a finalized pool.
const finalizedSymbol = "BPT"

// HandleLogCall routes a pool call log by selector. Calls without a known
// layout are ignored.
func (r *Reconciler) HandleLogCall(ctx context.Context, meta Meta, call LogCall) error {
	layout, err := calldata.LayoutFor(call.Sig)
	if errors.Is(err, calldata.ErrUnknownSelector) {
		r.logger.Debug("ignore pool call",
			zap.String("pool", meta.Address),
			zap.String("selector", hexutil.Encode(call.Sig[:])),
			zap.String("tx_hash", meta.TxHash),
		)
		return nil
	}
	if err != nil {
		return err
	}

	switch layout.Method {
	case calldata.SetSwapFee.Method:
		return r.HandleSetSwapFee(ctx, meta, call)
	case calldata.SetController.Method:
		return r.HandleSetController(ctx, meta, call)
	case calldata.SetPublicSwap.Method:
		return r.HandleSetPublicSwap(ctx, meta, call)
	case calldata.Finalize.Method:
		return r.HandleFinalize(ctx, meta, call)
	case calldata.Setup.Method:
		return r.HandleSetup(ctx, meta, call)
	case calldata.Rebind.Method, calldata.Bind.Method:
		return r.HandleRebind(ctx, meta, call)
	}
	return nil
}

// HandleSetSwapFee decodes an 18-decimal fee from the call data.
func (r *Reconciler) HandleSetSwapFee(ctx context.Context, meta Meta, call LogCall) error {
	raw, err := calldata.DecodeSwapFee(call.Data)
	if err != nil {
		return eventError(model.EventLogCall, err)
	}
	fee, err := scale(model.EventLogCall, raw, amount.DefaultDecimals)
	if err != nil {
		return err
	}
	return r.SetSwapFee(ctx, meta, fee)
}

// SetSwapFee sets a fee that was decoded elsewhere.
func (r *Reconciler) SetSwapFee(ctx context.Context, meta Meta, fee decimal.Decimal) error {
	return r.atomic(ctx, func(s *session) error {
		return s.setSwapFee(ctx, meta, fee)
	})
}

func (r *Reconciler) HandleSetController(ctx context.Context, meta Meta, call LogCall) error {
	controller, err := calldata.DecodeController(call.Data)
	if err != nil {
		return eventError(model.EventLogCall, err)
	}
	return r.atomic(ctx, func(s *session) error {
		pool, ok, err := s.loadPool(ctx, meta, calldata.SetController.Method)
		if err != nil || !ok {
			return err
		}
		pool.Controller = controller
		return s.ents.SavePool(ctx, pool)
	})
}

func (r *Reconciler) HandleSetPublicSwap(ctx context.Context, meta Meta, call LogCall) error {
	public, err := calldata.DecodePublicSwap(call.Data)
	if err != nil {
		return eventError(model.EventLogCall, err)
	}
	return r.atomic(ctx, func(s *session) error {
		pool, ok, err := s.loadPool(ctx, meta, calldata.SetPublicSwap.Method)
		if err != nil || !ok {
			return err
		}
		pool.PublicSwap = public
		return s.ents.SavePool(ctx, pool)
	})
}

func (r *Reconciler) HandleFinalize(ctx context.Context, meta Meta, _ LogCall) error {
	return r.atomic(ctx, func(s *session) error {
		return s.finalize(ctx, meta)
	})
}

// HandleSetup binds the datatoken and base token, sets the fee, finalizes the
// pool and records the setup transaction.
func (r *Reconciler) HandleSetup(ctx context.Context, meta Meta, call LogCall) error {
	setup, err := calldata.DecodeSetup(call.Data)
	if err != nil {
		return eventError(model.EventLogCall, err)
	}
	fee, err := scale(model.EventLogCall, setup.SwapFee, amount.DefaultDecimals)
	if err != nil {
		return err
	}

	return r.atomic(ctx, func(s *session) error {
		pool, ok, err := s.loadPool(ctx, meta, calldata.Setup.Method)
		if err != nil || !ok {
			return err
		}
		pool.DatatokenAddress = setup.Datatoken.Token
		if err := s.ents.SavePool(ctx, pool); err != nil {
			return err
		}

		moves := make([]movement, 0, 2)
		for _, binding := range []calldata.TokenBinding{setup.Datatoken, setup.BaseToken} {
			move, _, err := s.rebind(ctx, meta, binding)
			if err != nil {
				return err
			}
			moves = append(moves, move)
		}
		if err := s.setSwapFee(ctx, meta, fee); err != nil {
			return err
		}
		if err := s.finalize(ctx, meta); err != nil {
			return err
		}

		pool, _, err = s.ents.Pool(ctx, meta.Address)
		if err != nil {
			return err
		}
		return s.recordTransaction(ctx, meta, pool, TxSetup, moves...)
	})
}

// HandleRebind applies a bind or rebind call.
func (r *Reconciler) HandleRebind(ctx context.Context, meta Meta, call LogCall) error {
	binding, err := calldata.DecodeRebind(call.Data)
	if err != nil {
		return eventError(model.EventLogCall, err)
	}
	return r.atomic(ctx, func(s *session) error {
		move, ok, err := s.rebind(ctx, meta, binding)
		if err != nil || !ok {
			return err
		}
		pool, _, err := s.ents.Pool(ctx, meta.Address)
		if err != nil {
			return err
		}
		return s.recordTransaction(ctx, meta, pool, TxRebind, move)
	})
}

func (s *session) setSwapFee(ctx context.Context, meta Meta, fee decimal.Decimal) error {
	pool, ok, err := s.loadPool(ctx, meta, calldata.SetSwapFee.Method)
	if err != nil || !ok {
		return err
	}
	pool.SwapFee = fee
	if err := s.refreshLiquidity(ctx, &pool); err != nil {
		return err
	}
	return s.ents.SavePool(ctx, pool)
}

// finalize counts a pool as finalized once.
func (s *session) finalize(ctx context.Context, meta Meta) error {
	pool, ok, err := s.loadPool(ctx, meta, calldata.Finalize.Method)
	if err != nil || !ok {
		return err
	}
	if !pool.Finalized {
		s.counters.PoolFinalized()
		s.logger.Debug("pool finalized", zap.String("pool", pool.ID), zap.String("tx_hash", meta.TxHash))
	}
	pool.Finalized = true
	pool.Symbol = finalizedSymbol
	pool.PublicSwap = true
	return s.ents.SavePool(ctx, pool)
}

// rebind sets a token's absolute balance and weight, keeping totalWeight equal
// to the sum of the pool's token weights. It returns the balance change.
func (s *session) rebind(ctx context.Context, meta Meta, binding calldata.TokenBinding) (movement, bool, error) {
	pool, ok, err := s.loadPool(ctx, meta, calldata.Rebind.Method)
	if err != nil || !ok {
		return movement{}, false, err
	}
	token := model.NormalizeAddress(binding.Token)
	weight, err := scale(model.EventLogCall, binding.DenormWeight, amount.DefaultDecimals)
	if err != nil {
		return movement{}, false, err
	}
	balance, err := scale(model.EventLogCall, binding.Balance, amount.DefaultDecimals)
	if err != nil {
		return movement{}, false, err
	}

	id := model.PoolTokenID(pool.ID, token)
	poolToken, exists, err := s.ents.PoolToken(ctx, id)
	if err != nil {
		return movement{}, false, err
	}
	if !exists {
		poolToken = model.PoolToken{
			ID:           id,
			PoolID:       pool.ID,
			TokenAddress: token,
			Balance:      decimal.Zero,
			DenormWeight: decimal.Zero,
		}
		info, err := s.tokenInfo(ctx, token)
		if err != nil {
			return movement{}, false, err
		}
		if info.datatoken {
			poolToken.TokenID = token
		}
	}
	pool.TotalWeight = pool.TotalWeight.Add(weight.Sub(poolToken.DenormWeight))

	if !pool.HasToken(token) {
		pool.TokensList = append(pool.TokensList, token)
	}
	pool.TokensCount = len(pool.TokensList)
	if pool.DatatokenAddress == "" && token != s.numeraire {
		pool.DatatokenAddress = token
	}

	delta := balance.Sub(poolToken.Balance)
	poolToken.Balance = balance
	poolToken.DenormWeight = weight
	if err := s.ents.SavePoolToken(ctx, poolToken); err != nil {
		return movement{}, false, err
	}

	if balance.IsZero() && lifecycle.Deactivate(&pool, s.counters) {
		s.logger.Debug("pool deactivated", zap.String("pool", pool.ID), zap.String("token", token))
	}
	if err := s.refreshLiquidity(ctx, &pool); err != nil {
		return movement{}, false, err
	}
	if err := s.ents.SavePool(ctx, pool); err != nil {
		return movement{}, false, err
	}
	return movement{token: token, value: delta, reserve: balance, fee: decimal.Zero}, true, nil
}
