package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolLedger/internal/chain"
	"poolLedger/internal/config"
	"poolLedger/internal/dex"
	"poolLedger/internal/indexer"
	"poolLedger/internal/storage"
	"poolLedger/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Liquidity pool ledger indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch pool and datatoken logs",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "RPC URL")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().StringSlice("address", nil, "pool, datatoken and factory addresses (comma-separated)")
	runCmd.Flags().StringSlice("topic0", nil, "topic0 filter (comma-separated), empty means every decodable topic")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN; when set the checkpoint is kept in indexer_state")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Bool("with-tx-meta", true, "attach tx sender, gas used and gas price to each log")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed pool events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Apply typed events to the pool ledger entities",
		RunE:  runReconcile,
	}

	reconcileCmd.Flags().String("in", "", "input typed events JSONL")
	reconcileCmd.Flags().String("pg-dsn", "", "Postgres DSN; empty keeps entities in memory")
	reconcileCmd.Flags().String("snapshot", "./data/entities.jsonl", "entity snapshot for the in-memory store")
	reconcileCmd.Flags().String("network", "mainnet", "network name, selects the numeraire token")
	reconcileCmd.Flags().String("numeraire", "", "numeraire token address override")
	reconcileCmd.Flags().String("numeraire-symbol", "OCEAN", "symbol recorded for the numeraire")
	reconcileCmd.Flags().Int("checkpoint-every", 1000, "flush the snapshot and cursor after this many events")
	reconcileCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	reconcileCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reconcileCmd)

	datatokensCmd := &cobra.Command{
		Use:   "datatokens",
		Short: "Fetch datatoken metadata into the entity store",
		RunE:  runDatatokens,
	}

	datatokensCmd.Flags().String("rpc", "", "RPC URL")
	datatokensCmd.Flags().String("pg-dsn", "", "Postgres DSN; empty uses the snapshot")
	datatokensCmd.Flags().String("snapshot", "./data/entities.jsonl", "entity snapshot for the in-memory store")
	datatokensCmd.Flags().StringSlice("address", nil, "datatoken addresses (comma-separated)")
	datatokensCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(datatokensCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	decoder, err := dex.NewPoolDecoder()
	if err != nil {
		return err
	}
	topic0, err := indexer.ParseTopic0(cfg.Topic0, decoder.Topics())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var checkpoint indexer.CheckpointStore = &indexer.FileCheckpoint{
		Path:    cfg.Checkpoint,
		Enabled: cfg.CheckpointEnabled,
	}
	if cfg.PGDSN != "" && cfg.CheckpointEnabled {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		checkpoint = &indexer.DBCheckpoint{Store: store, Name: "indexer:run"}
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Addresses:    addresses,
		Topic0:       topic0,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		WithTxMeta:   cfg.WithTxMeta,
	}, chainClient, storage.NewJsonlStorage(cfg.Out), checkpoint, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.Bool("with_tx_meta", cfg.WithTxMeta),
	)

	return runner.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
