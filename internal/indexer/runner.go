package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"poolLedger/internal/chain"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

// Source is the chain access the runner needs.
type Source interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	TransactionMeta(ctx context.Context, hash common.Hash) (chain.TxMeta, error)
}

var _ Source = (*chain.Client)(nil)

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock    uint64
	ToBlock      uint64
	Addresses    []common.Address
	Topic0       []common.Hash
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	// WithTxMeta fills sender and gas fields from the transaction and receipt.
	WithTxMeta bool
}

// Runner streams pool logs from the chain and writes them to storage.
type Runner struct {
	cfg        RunConfig
	chain      Source
	storage    storage.Storage
	checkpoint CheckpointStore
	logger     *zap.Logger
	seen       map[string]struct{}
}

// NewRunner builds a Runner with its dependencies. A nil checkpoint store
// always starts at FromBlock.
func NewRunner(cfg RunConfig, source Source, sink storage.Storage, checkpoint CheckpointStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      source,
		storage:    sink,
		checkpoint: checkpoint,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		records, err := r.fetchRange(ctx, chainIDValue, blockRange)
		if err != nil {
			return err
		}

		if err := r.storage.PutLogBatch(records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete",
			zap.Int("logs", len(records)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Uint64("blocks", blockRange.Blocks()),
		)
	}

	return nil
}

// fetchRange returns the range's live logs in (block, tx, log) order.
func (r *Runner) fetchRange(ctx context.Context, chainID uint64, blockRange BlockRange) ([]model.LogRecord, error) {
	logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}

	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			r.logger.Debug("skip removed log", zap.String("tx_hash", log.TxHash.Hex()), zap.Uint("log_index", log.Index))
			continue
		}
		if r.isDuplicate(log) {
			continue
		}

		ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}
		record := buildLogRecord(chainID, log, ts, ingestedAt)

		if r.cfg.WithTxMeta {
			meta, err := r.txMetaWithRetry(ctx, log.TxHash)
			if err != nil {
				return nil, fmt.Errorf("tx meta %s: %w", log.TxHash.Hex(), err)
			}
			applyTxMeta(&record, meta)
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return recordPosition(records[i]).Before(recordPosition(records[j]))
	})
	return records, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) txMetaWithRetry(ctx context.Context, hash common.Hash) (chain.TxMeta, error) {
	var meta chain.TxMeta
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		meta, err = r.chain.TransactionMeta(ctx, hash)
		if err != nil {
			r.logger.Warn("tx meta fetch failed", zap.Error(err), zap.String("tx_hash", hash.Hex()))
		}
		return err
	})
	return meta, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
