package reconcile

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/model"
)

func TestJoinAndExitAdjustBalances(t *testing.T) {
	h := newHarness(t)
	h.setupPool("0")

	h.mustApply("0xjoin", Join{Caller: alice, TokenIn: ocean, AmountIn: units("5")})
	requireDecimal(t, "35", h.poolToken(ocean).Balance)
	pool := h.pool()
	require.Equal(t, int64(1), pool.JoinsCount)
	requireDecimal(t, "35", pool.OceanReserve)

	tx, ok, err := h.ents.PoolTransaction(h.ctx, "0xjoin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TxJoin, tx.Event)
	row, ok, err := h.ents.TokenValues(h.ctx, model.TokenValuesID("0xjoin", ocean))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.FlowIn, row.Type)
	requireDecimal(t, "5", row.Value)
	requireDecimal(t, "35", row.TokenReserve)

	h.mustApply("0xexit", Exit{Caller: alice, TokenOut: ocean, AmountOut: units("5")})
	requireDecimal(t, "30", h.poolToken(ocean).Balance)
	require.Equal(t, int64(1), h.pool().ExitsCount)
	row, ok, err = h.ents.TokenValues(h.ctx, model.TokenValuesID("0xexit", ocean))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.FlowOut, row.Type)
	requireDecimal(t, "-5", row.Value)
	require.True(t, h.pool().Active)
}

func TestJoinScalesByDatatokenDecimals(t *testing.T) {
	h := newHarness(t)
	h.setupPool("0")
	require.NoError(t, h.ents.SaveDatatoken(h.ctx, model.Datatoken{ID: testDT, Symbol: "DT-1", Decimals: 6}))

	h.mustApply("0xjoin", Join{Caller: alice, TokenIn: testDT, AmountIn: big.NewInt(5_000_000)})
	requireDecimal(t, "15", h.poolToken(testDT).Balance)
}

func TestJoinUntrackedTokenOnlyCounts(t *testing.T) {
	h := newHarness(t)
	h.setupPool("0")

	h.mustApply("0xjoin", Join{Caller: alice, TokenIn: testTokenC, AmountIn: units("5")})
	require.Equal(t, int64(1), h.pool().JoinsCount)
	_, ok, err := h.ents.PoolToken(h.ctx, model.PoolTokenID(testPool, testTokenC))
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = h.ents.PoolTransaction(h.ctx, "0xjoin")
	require.NoError(t, err)
	require.False(t, ok)

	h.mustApply("0xexit", Exit{Caller: alice, TokenOut: testTokenC, AmountOut: units("5")})
	require.Equal(t, int64(0), h.pool().ExitsCount)
}

func TestJoinUnknownPoolIsNoop(t *testing.T) {
	h := newHarness(t)
	h.mustApply("0xjoin", Join{Caller: alice, TokenIn: ocean, AmountIn: units("5")})
	require.Empty(t, h.mem.Records())
}

func TestExitToZeroDeactivatesFinalizedPool(t *testing.T) {
	h := newHarness(t)
	h.setupPool("0")
	require.Equal(t, int64(1), h.rec.Counters().PoolCount)
	require.Equal(t, int64(1), h.rec.Counters().FinalizedPoolCount)

	h.mustApply("0xexit", Exit{Caller: alice, TokenOut: testDT, AmountOut: units("10")})
	pool := h.pool()
	require.False(t, pool.Active)
	require.Equal(t, int64(0), h.rec.Counters().PoolCount)
	require.Equal(t, int64(0), h.rec.Counters().FinalizedPoolCount)

	factory, ok, err := h.ents.PoolFactory(h.ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(0), factory.PoolCount)
}

// swapPool is a three-token pool: 10 datatokens, 30 numéraire and 20 of
// token C, all at weight 5, with a 10% fee.
func swapPool(t *testing.T) *harness {
	h := newHarness(t)
	h.setupPool("0.1")
	h.mustApply("0xbindc", rebindCall(testTokenC, "20", "5"))
	return h
}

func TestSwapValuesThroughPricedToken(t *testing.T) {
	h := swapPool(t)
	require.NoError(t, h.ents.SaveTokenPrice(h.ctx, model.TokenPrice{ID: ocean, Price: decimal.NewFromInt(2)}))

	h.mustApply("0xswap", Swap{Caller: alice, TokenIn: ocean, TokenOut: testTokenC, AmountIn: units("10"), AmountOut: units("4")})

	requireDecimal(t, "40", h.poolToken(ocean).Balance)
	requireDecimal(t, "16", h.poolToken(testTokenC).Balance)

	swap, ok, err := h.ents.Swap(h.ctx, model.LogID("0xswap", 0))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, swap.Value.Sign() > 0)
	requireDecimal(t, "20", swap.Value)
	requireDecimal(t, "2", swap.FeeValue)
	require.Equal(t, "OCEAN", swap.TokenInSym)
	require.Equal(t, sender, swap.UserAddress)

	pool := h.pool()
	require.Equal(t, int64(1), pool.SwapsCount)
	requireDecimal(t, "20", pool.TotalSwapVolume)
	requireDecimal(t, "2", pool.TotalSwapFee)
	requireDecimal(t, "20", h.rec.Counters().TotalSwapVolume)
	requireDecimal(t, "2", h.rec.Counters().TotalSwapFee)

	in, ok, err := h.ents.TokenValues(h.ctx, model.TokenValuesID("0xswap", ocean))
	require.NoError(t, err)
	require.True(t, ok)
	requireDecimal(t, "1", in.FeeValue)
	requireDecimal(t, "40", in.TokenReserve)
	out, ok, err := h.ents.TokenValues(h.ctx, model.TokenValuesID("0xswap", testTokenC))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.FlowOut, out.Type)
	requireDecimal(t, "-4", out.Value)
}

func TestSwapWithoutPricesSkipsValuation(t *testing.T) {
	h := swapPool(t)

	h.mustApply("0xswap", Swap{Caller: alice, TokenIn: ocean, TokenOut: testTokenC, AmountIn: units("10"), AmountOut: units("4")})

	swap, ok, err := h.ents.Swap(h.ctx, model.LogID("0xswap", 0))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, swap.Value.IsZero())

	pool := h.pool()
	require.True(t, pool.TotalSwapVolume.IsZero())
	require.Equal(t, int64(1), pool.SwapsCount)
	requireDecimal(t, "40", h.poolToken(ocean).Balance)
	requireDecimal(t, "40", pool.OceanReserve)
	require.True(t, h.rec.Counters().TotalSwapVolume.IsZero())
}

func TestSwapPrefersDirectPrice(t *testing.T) {
	h := swapPool(t)
	require.NoError(t, h.ents.SaveTokenPrice(h.ctx, model.TokenPrice{ID: ocean, Price: decimal.NewFromInt(2)}))
	require.NoError(t, h.ents.SaveTokenPrice(h.ctx, model.TokenPrice{ID: testTokenC, Price: decimal.NewFromInt(3)}))

	h.mustApply("0xswap", Swap{Caller: alice, TokenIn: ocean, TokenOut: testTokenC, AmountIn: units("10"), AmountOut: units("4")})
	requireDecimal(t, "12", h.pool().TotalSwapVolume)

	require.NoError(t, h.ents.SaveTokenPrice(h.ctx, model.TokenPrice{ID: testTokenC, Price: decimal.Zero}))
	h.mustApply("0xswap2", Swap{Caller: alice, TokenIn: ocean, TokenOut: testTokenC, AmountIn: units("1"), AmountOut: units("1")})
	requireDecimal(t, "12", h.pool().TotalSwapVolume)
}

func TestSwapUsesDatatokenSymbol(t *testing.T) {
	h := swapPool(t)
	require.NoError(t, h.ents.SaveDatatoken(h.ctx, model.Datatoken{ID: testDT, Symbol: "DT-1", Decimals: 18}))

	h.mustApply("0xswap", Swap{Caller: alice, TokenIn: testDT, TokenOut: ocean, AmountIn: units("1"), AmountOut: units("2")})
	swap, ok, err := h.ents.Swap(h.ctx, model.LogID("0xswap", 0))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "DT-1", swap.TokenInSym)
	require.Equal(t, "OCEAN", swap.TokenOutSym)
}

func TestSwapDrainingTokenDeactivates(t *testing.T) {
	h := swapPool(t)
	h.mustApply("0xswap", Swap{Caller: alice, TokenIn: ocean, TokenOut: testTokenC, AmountIn: units("10"), AmountOut: units("20")})
	require.False(t, h.pool().Active)
	require.Equal(t, int64(0), h.rec.Counters().PoolCount)
}

func TestSwapUntrackedTokenIsNoop(t *testing.T) {
	h := newHarness(t)
	h.setupPool("0")
	before := h.mem.Records()

	h.mustApply("0xswap", Swap{Caller: alice, TokenIn: ocean, TokenOut: testTokenC, AmountIn: units("1"), AmountOut: units("1")})
	require.Equal(t, before, h.mem.Records())
}
