// Package reconcile applies decoded pool and datatoken events to the entity
// store, one event at a time and in chain order.
package reconcile

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/amount"
	"poolLedger/internal/lifecycle"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

// Config controls reconciliation.
type Config struct {
	// Numeraire is the pricing anchor token. Defaults to the testnet address.
	Numeraire string
	// NumeraireSymbol is recorded on swaps of tokens without Datatoken metadata.
	NumeraireSymbol string
	// Cursor names the stored position record. Defaults to DefaultCursor.
	Cursor string
}

// Reconciler owns the counters and the ordering cursor. It is not safe for
// concurrent use: events must be applied one at a time.
type Reconciler struct {
	backend  storage.Backend
	cfg      Config
	counters *lifecycle.Counters
	logger   *zap.Logger

	last    model.Position
	hasLast bool
	// applying is the position of the event being applied, written with its
	// entities.
	applying *model.Position
}

// New loads the counters and the stored cursor from backend and returns a
// reconciler positioned after the last committed event.
func New(ctx context.Context, backend storage.Backend, cfg Config, logger *zap.Logger) (*Reconciler, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Numeraire = model.NormalizeAddress(cfg.Numeraire)
	if cfg.Numeraire == "" {
		cfg.Numeraire = TestnetNumeraire
	}
	if cfg.NumeraireSymbol == "" {
		cfg.NumeraireSymbol = DefaultNumeraireSymbol
	}
	if cfg.Cursor == "" {
		cfg.Cursor = DefaultCursor
	}

	counters, err := lifecycle.Load(ctx, storage.NewEntities(backend))
	if err != nil {
		return nil, err
	}
	r := &Reconciler{
		backend:  backend,
		cfg:      cfg,
		counters: counters,
		logger:   logger,
	}
	if err := r.loadCursor(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Counters returns the committed protocol-wide counters.
func (r *Reconciler) Counters() model.PoolFactory {
	return r.counters.Snapshot()
}

// Resume sets the position of the last event applied before a restart.
func (r *Reconciler) Resume(pos model.Position) {
	r.last = pos
	r.hasLast = true
}

// LastPosition returns the position of the last consumed event.
func (r *Reconciler) LastPosition() (model.Position, bool) {
	return r.last, r.hasLast
}

// Apply routes one event to its handler. Events must arrive in strictly
// increasing (block, tx index, log index) order; anything else is rejected
// with ErrOutOfOrder before any state is read. An EventError consumes the
// position without changing state.
func (r *Reconciler) Apply(ctx context.Context, ev Event) error {
	pos := ev.Meta.Position()
	if r.hasLast && !r.last.Before(pos) {
		return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, pos, r.last)
	}

	r.applying = &pos
	defer func() { r.applying = nil }()

	var err error
	switch p := ev.Payload.(type) {
	case LogCall:
		err = r.HandleLogCall(ctx, ev.Meta, p)
	case Join:
		err = r.HandleJoin(ctx, ev.Meta, p)
	case Exit:
		err = r.HandleExit(ctx, ev.Meta, p)
	case Swap:
		err = r.HandleSwap(ctx, ev.Meta, p)
	case Transfer:
		err = r.HandleTransfer(ctx, ev.Meta, p)
	case NewPool:
		err = r.HandleNewPool(ctx, ev.Meta, p)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev.Payload)
	}
	if err != nil && !IsEventError(err) {
		return err
	}
	r.last = pos
	r.hasLast = true
	return err
}

// atomic runs fn against a write buffer and a copy of the counters. Both are
// committed only when fn succeeds, in one batch with the event's cursor.
func (r *Reconciler) atomic(ctx context.Context, fn func(s *session) error) error {
	overlay := storage.NewOverlay(r.backend)
	s := &session{
		ents:      storage.NewEntities(overlay),
		counters:  r.counters.Clone(),
		numeraire: r.cfg.Numeraire,
		symbol:    r.cfg.NumeraireSymbol,
		logger:    r.logger,
	}
	if err := fn(s); err != nil {
		overlay.Discard()
		return err
	}
	if err := s.counters.Save(ctx, s.ents); err != nil {
		return err
	}
	if r.applying != nil && overlay.Pending() > 0 {
		if err := s.ents.SaveCursor(ctx, r.cfg.Cursor, *r.applying); err != nil {
			return err
		}
	}
	if err := overlay.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.counters = s.counters
	return nil
}

// session is the state visible to a single event.
type session struct {
	ents      *storage.Entities
	counters  *lifecycle.Counters
	numeraire string
	symbol    string
	logger    *zap.Logger
}

// tokenInfo is the reference metadata of a token. Tokens without a Datatoken
// record use 18 decimals and the numéraire symbol.
type tokenInfo struct {
	datatoken bool
	decimals  int
	symbol    string
}

func (s *session) tokenInfo(ctx context.Context, token string) (tokenInfo, error) {
	dt, ok, err := s.ents.Datatoken(ctx, token)
	if err != nil {
		return tokenInfo{}, err
	}
	if !ok {
		return tokenInfo{decimals: amount.DefaultDecimals, symbol: s.symbol}, nil
	}
	return tokenInfo{datatoken: true, decimals: dt.Decimals, symbol: dt.Symbol}, nil
}

// scale converts a raw amount, reporting scale failures as event errors.
func scale(event string, raw *big.Int, decimals int) (decimal.Decimal, error) {
	value, err := amount.BigIntToDecimal(raw, decimals)
	if err != nil {
		return decimal.Zero, eventError(event, err)
	}
	return value, nil
}

func (s *session) ensureUser(ctx context.Context, address string) error {
	if address == "" {
		return nil
	}
	_, ok, err := s.ents.User(ctx, address)
	if err != nil || ok {
		return err
	}
	return s.ents.SaveUser(ctx, model.User{ID: address})
}

// loadPool returns the pool emitting an event. A missing pool is logged and
// reported as not found.
func (s *session) loadPool(ctx context.Context, meta Meta, event string) (model.Pool, bool, error) {
	pool, ok, err := s.ents.Pool(ctx, meta.Address)
	if err != nil {
		return model.Pool{}, false, err
	}
	if !ok {
		s.logger.Debug("pool not tracked",
			zap.String("pool", meta.Address),
			zap.String("event", event),
			zap.String("tx_hash", meta.TxHash),
		)
	}
	return pool, ok, nil
}
