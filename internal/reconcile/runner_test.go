package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

func writeLines(t *testing.T, path string, lines ...interface{}) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	for _, line := range lines {
		var data []byte
		if raw, ok := line.(string); ok {
			data = []byte(raw)
		} else {
			data, err = json.Marshal(line)
			require.NoError(t, err)
		}
		_, err = file.Write(append(data, '\n'))
		require.NoError(t, err)
	}
}

func pipelineEvents() []interface{} {
	setup := setupCall("10", "5", "30", "5", "0")
	return []interface{}{
		model.TypedEvent{
			BlockNumber: 1,
			TxHash:      "0x01",
			Address:     testFactory,
			EventName:   model.EventNewPool,
			Decoded:     model.NewPoolEventData{Pool: testPool, RegisteredBy: alice},
		},
		model.TypedEvent{
			BlockNumber: 2,
			TxHash:      "0x02",
			Address:     testPool,
			EventName:   model.EventLogCall,
			TxFrom:      sender,
			Decoded: model.LogCallEventData{
				Sig:    hexutil.Encode(setup.Sig[:]),
				Caller: alice,
				Data:   hexutil.Encode(setup.Data),
			},
		},
		"not json",
		model.TypedEvent{
			BlockNumber: 3,
			TxHash:      "0x03",
			Address:     testPool,
			EventName:   model.EventLogJoin,
			Decoded:     model.JoinEventData{Caller: alice, TokenIn: ocean, TokenAmountIn: "abc"},
		},
		model.TypedEvent{
			BlockNumber: 4,
			TxHash:      "0x04",
			Address:     testPool,
			EventName:   model.EventLogJoin,
			Decoded:     model.JoinEventData{Caller: alice, TokenIn: ocean, TokenAmountIn: "5000000000000000000"},
		},
	}
}

func counterSum(t *testing.T, reg *prometheus.Registry, name, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					sum += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return sum
}

func TestRunnerAppliesAndResumes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := filepath.Join(dir, "typed.jsonl")
	writeLines(t, input, pipelineEvents()...)

	mem := storage.NewMemory()
	reg := prometheus.NewRegistry()
	checkpoints := 0

	rec, err := New(ctx, mem, Config{Numeraire: ocean}, nil)
	require.NoError(t, err)
	runner := NewRunner(RunnerConfig{
		CheckpointEvery: 2,
		BeforeCheckpoint: func(context.Context) error {
			checkpoints++
			return nil
		},
		Metrics: NewMetrics(reg),
	}, rec, nil)

	summary, err := runner.Run(ctx, input)
	require.NoError(t, err)
	require.Equal(t, Summary{Total: 5, Applied: 3, Failed: 2}, summary)
	require.Equal(t, 3, checkpoints)
	require.Equal(t, float64(3), counterSum(t, reg, "pool_ledger_events_total", OutcomeApplied))
	require.Equal(t, float64(2), counterSum(t, reg, "pool_ledger_events_total", OutcomeFailed))

	ents := storage.NewEntities(mem)
	pos, ok, err := ents.Cursor(ctx, DefaultCursor)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.Position{Block: 4}, pos)

	token, ok, err := ents.PoolToken(ctx, model.PoolTokenID(testPool, ocean))
	require.NoError(t, err)
	require.True(t, ok)
	requireDecimal(t, "35", token.Balance)

	restarted, err := New(ctx, mem, Config{Numeraire: ocean}, nil)
	require.NoError(t, err)
	summary, err = NewRunner(RunnerConfig{}, restarted, nil).Run(ctx, input)
	require.NoError(t, err)
	require.Equal(t, Summary{Total: 5, Skipped: 4, Failed: 1}, summary)

	token, _, err = ents.PoolToken(ctx, model.PoolTokenID(testPool, ocean))
	require.NoError(t, err)
	requireDecimal(t, "35", token.Balance)
	require.Equal(t, int64(1), restarted.Counters().PoolCount)
}

func TestRunnerStopsOnOutOfOrder(t *testing.T) {
	ctx := context.Background()
	input := filepath.Join(t.TempDir(), "typed.jsonl")
	writeLines(t, input,
		model.TypedEvent{BlockNumber: 5, Address: testFactory, EventName: model.EventNewPool, Decoded: model.NewPoolEventData{Pool: testPool}},
		model.TypedEvent{BlockNumber: 4, Address: testPool, EventName: model.EventTransfer, Decoded: model.TransferEventData{From: alice, To: bob, Value: "1"}},
	)

	rec, err := New(ctx, storage.NewMemory(), Config{}, nil)
	require.NoError(t, err)
	summary, err := NewRunner(RunnerConfig{}, rec, nil).Run(ctx, input)
	require.True(t, errors.Is(err, ErrOutOfOrder), "got %v", err)
	require.Equal(t, 1, summary.Applied)
}

// cancelAfter cancels the run once the backend has accepted n batches.
type cancelAfter struct {
	storage.Backend
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) PutBatch(ctx context.Context, records []storage.Record) error {
	if err := c.Backend.PutBatch(ctx, records); err != nil {
		return err
	}
	c.n--
	if c.n == 0 {
		c.cancel()
	}
	return nil
}

func TestRunnerInterruptedRunDoesNotReapplyJoins(t *testing.T) {
	events := pipelineEvents()
	input := filepath.Join(t.TempDir(), "typed.jsonl")
	writeLines(t, input,
		events[0],
		events[1],
		events[4],
		model.TypedEvent{
			BlockNumber: 5,
			TxHash:      "0x05",
			Address:     testPool,
			EventName:   model.EventLogJoin,
			Decoded:     model.JoinEventData{Caller: alice, TokenIn: ocean, TokenAmountIn: "5000000000000000000"},
		},
	)

	mem := storage.NewMemory()
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &cancelAfter{Backend: mem, n: 3, cancel: cancel}

	rec, err := New(runCtx, backend, Config{Numeraire: ocean}, nil)
	require.NoError(t, err)
	summary, err := NewRunner(RunnerConfig{CheckpointEvery: 1000}, rec, nil).Run(runCtx, input)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	require.Equal(t, 3, summary.Applied)

	ctx := context.Background()
	restarted, err := New(ctx, mem, Config{Numeraire: ocean}, nil)
	require.NoError(t, err)
	summary, err = NewRunner(RunnerConfig{CheckpointEvery: 1000}, restarted, nil).Run(ctx, input)
	require.NoError(t, err)
	require.Equal(t, Summary{Total: 4, Applied: 1, Skipped: 3}, summary)

	ents := storage.NewEntities(mem)
	pool, ok, err := ents.Pool(ctx, testPool)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2), pool.JoinsCount)

	token, ok, err := ents.PoolToken(ctx, model.PoolTokenID(testPool, ocean))
	require.NoError(t, err)
	require.True(t, ok)
	requireDecimal(t, "40", token.Balance)
}

func TestCursorCommitsWithEntities(t *testing.T) {
	h := newHarness(t)
	h.setupPool("0")

	pos, ok, err := h.ents.Cursor(h.ctx, DefaultCursor)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.Position{Block: h.block}, pos)

	h.mustApply("0xjoin", Join{Caller: alice, TokenIn: ocean, AmountIn: units("5")})
	joined := h.block

	// A call with an unregistered selector writes nothing and leaves the
	// stored cursor at the last committed event.
	require.NoError(t, h.apply("0xnoop", LogCall{Sig: [4]byte{0xde, 0xad, 0xbe, 0xef}, Caller: alice}))

	restarted, err := New(h.ctx, h.mem, Config{Numeraire: ocean}, nil)
	require.NoError(t, err)
	last, ok := restarted.LastPosition()
	require.True(t, ok)
	require.Equal(t, model.Position{Block: joined}, last)
	require.Equal(t, int64(1), h.pool().JoinsCount)
}
