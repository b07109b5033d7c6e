package reconcile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"poolLedger/internal/model"
)

// RunnerConfig controls a reconcile run.
type RunnerConfig struct {
	// CheckpointEvery runs a checkpoint after this many consumed events. Zero
	// checkpoints only when the run stops.
	CheckpointEvery int
	// BeforeCheckpoint runs after the cursor is stored, to flush a backend
	// that is not durable on its own.
	BeforeCheckpoint func(ctx context.Context) error
	Metrics          *Metrics
}

// Summary counts the lines of one run.
type Summary struct {
	Total   int
	Applied int
	Skipped int
	Failed  int
}

// Runner streams a typed events JSONL file through a Reconciler.
type Runner struct {
	cfg    RunnerConfig
	rec    *Reconciler
	logger *zap.Logger
}

func NewRunner(cfg RunnerConfig, rec *Reconciler, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, rec: rec, logger: logger}
}

// Run applies every event after the stored cursor. Events at or before the
// cursor are redeliveries and are skipped. Event errors are logged and
// counted; store errors and ordering violations stop the run.
func (r *Runner) Run(ctx context.Context, inputPath string) (Summary, error) {
	var summary Summary
	if r.rec == nil {
		return summary, fmt.Errorf("reconciler is nil")
	}

	cursor, resumed := r.rec.LastPosition()
	if resumed {
		r.logger.Info("resume reconcile", zap.String("position", cursor.String()))
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return summary, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	sinceCheckpoint := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			if cerr := r.checkpoint(context.WithoutCancel(ctx)); cerr != nil {
				r.logger.Warn("checkpoint on stop", zap.Error(cerr))
			}
			return summary, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.Failed++
			r.cfg.Metrics.observe("unknown", OutcomeFailed)
			r.logger.Warn("decode typed event", zap.Int("line", summary.Total), zap.Error(err))
			continue
		}
		pos := model.Position{Block: record.BlockNumber, TxIndex: record.TxIndex, LogIndex: record.LogIndex}
		if resumed && !cursor.Before(pos) {
			summary.Skipped++
			r.cfg.Metrics.observe(record.EventName, OutcomeSkipped)
			continue
		}

		started := time.Now()
		err := r.apply(ctx, record)
		r.cfg.Metrics.observeApply(record.EventName, started)
		switch {
		case err == nil:
			summary.Applied++
			r.cfg.Metrics.observe(record.EventName, OutcomeApplied)
		case IsEventError(err):
			summary.Failed++
			r.cfg.Metrics.observe(record.EventName, OutcomeFailed)
			r.logger.Warn("event dropped",
				zap.String("event", record.EventName),
				zap.String("tx_hash", record.TxHash),
				zap.Uint64("log_index", record.LogIndex),
				zap.String("pool", record.Address),
				zap.Error(err),
			)
		default:
			return summary, fmt.Errorf("apply %s at %s: %w", record.EventName, pos, err)
		}
		r.cfg.Metrics.setBlock(record.BlockNumber)

		sinceCheckpoint++
		if r.cfg.CheckpointEvery > 0 && sinceCheckpoint >= r.cfg.CheckpointEvery {
			if err := r.checkpoint(ctx); err != nil {
				return summary, err
			}
			sinceCheckpoint = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}

	if err := r.checkpoint(ctx); err != nil {
		return summary, err
	}

	counters := r.rec.Counters()
	r.logger.Info("reconcile complete",
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int64("pool_count", counters.PoolCount),
		zap.Int64("finalized_pool_count", counters.FinalizedPoolCount),
	)
	return summary, nil
}

// apply converts and applies one record. A record that fails conversion still
// consumes its position so the cursor moves past it.
func (r *Runner) apply(ctx context.Context, record model.TypedEventRecord) error {
	ev, err := FromRecord(record)
	if err == nil {
		return r.rec.Apply(ctx, ev)
	}
	pos := model.Position{Block: record.BlockNumber, TxIndex: record.TxIndex, LogIndex: record.LogIndex}
	if last, ok := r.rec.LastPosition(); ok && !last.Before(pos) {
		return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, pos, last)
	}
	if errors.Is(err, ErrUnknownEvent) {
		r.logger.Debug("unknown event", zap.String("event", record.EventName))
	}
	r.rec.Resume(pos)
	return err
}

func (r *Runner) checkpoint(ctx context.Context) error {
	if err := r.rec.Checkpoint(ctx); err != nil {
		return err
	}
	if r.cfg.BeforeCheckpoint != nil {
		if err := r.cfg.BeforeCheckpoint(ctx); err != nil {
			return fmt.Errorf("before checkpoint: %w", err)
		}
	}
	return nil
}
