package reconcile

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/calldata"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

const (
	testPool    = "0x1111111111111111111111111111111111111111"
	testDT      = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testTokenC  = "0xcccccccccccccccccccccccccccccccccccccccc"
	testFactory = "0xfafafafafafafafafafafafafafafafafafafafa"
	alice       = "0x000000000000000000000000000000000000a11c"
	bob         = "0x0000000000000000000000000000000000000b0b"
	sender      = "0x5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e"
	ocean       = TestnetNumeraire
)

type harness struct {
	t     *testing.T
	ctx   context.Context
	mem   *storage.Memory
	ents  *storage.Entities
	rec   *Reconciler
	block uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	mem := storage.NewMemory()
	rec, err := New(ctx, mem, Config{Numeraire: ocean}, nil)
	require.NoError(t, err)
	return &harness{t: t, ctx: ctx, mem: mem, ents: storage.NewEntities(mem), rec: rec}
}

// meta returns the context of the next log, one block after the previous.
func (h *harness) meta(tx string) Meta {
	h.block++
	return Meta{
		Address:   testPool,
		TxHash:    tx,
		Block:     h.block,
		Timestamp: 1_700_000_000 + h.block,
		From:      sender,
		GasUsed:   decimal.NewFromInt(21000),
		GasPrice:  decimal.NewFromInt(1_000_000_000),
	}
}

func (h *harness) apply(tx string, payload Payload) error {
	return h.rec.Apply(h.ctx, Event{Meta: h.meta(tx), Payload: payload})
}

func (h *harness) applyFrom(address, tx string, payload Payload) error {
	meta := h.meta(tx)
	meta.Address = address
	return h.rec.Apply(h.ctx, Event{Meta: meta, Payload: payload})
}

func (h *harness) mustApply(tx string, payload Payload) {
	h.t.Helper()
	require.NoError(h.t, h.apply(tx, payload))
}

func (h *harness) pool() model.Pool {
	h.t.Helper()
	pool, ok, err := h.ents.Pool(h.ctx, testPool)
	require.NoError(h.t, err)
	require.True(h.t, ok, "pool not found")
	return pool
}

func (h *harness) poolToken(token string) model.PoolToken {
	h.t.Helper()
	pt, ok, err := h.ents.PoolToken(h.ctx, model.PoolTokenID(testPool, token))
	require.NoError(h.t, err)
	require.True(h.t, ok, "pool token %s not found", token)
	return pt
}

// registerPool creates the test pool through the factory event.
func (h *harness) registerPool() {
	h.t.Helper()
	require.NoError(h.t, h.applyFrom(testFactory, "0xregister", NewPool{Pool: testPool, RegisteredBy: alice}))
}

// setupPool registers the pool and binds 10 datatokens and 30 numéraire, both
// at weight 5.
func (h *harness) setupPool(fee string) {
	h.t.Helper()
	h.registerPool()
	h.mustApply("0xsetup", setupCall("10", "5", "30", "5", fee))
}

// units scales a decimal string to an 18-decimal raw integer.
func units(v string) *big.Int {
	return decimal.RequireFromString(v).Shift(18).BigInt()
}

func uintWord(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func addressWord(address string) []byte {
	return common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)
}

func logCall(layout calldata.Layout, words ...[]byte) LogCall {
	sel := layout.Selector()
	data := append([]byte{}, sel[:]...)
	for _, w := range words {
		data = append(data, w...)
	}
	return LogCall{Sig: sel, Caller: alice, Data: data}
}

func setupCall(dtBalance, dtWeight, oceanBalance, oceanWeight, fee string) LogCall {
	return logCall(calldata.Setup,
		addressWord(testDT), uintWord(units(dtBalance)), uintWord(units(dtWeight)),
		addressWord(ocean), uintWord(units(oceanBalance)), uintWord(units(oceanWeight)),
		uintWord(units(fee)),
	)
}

func rebindCall(token, balance, weight string) LogCall {
	return logCall(calldata.Rebind, addressWord(token), uintWord(units(balance)), uintWord(units(weight)))
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}
