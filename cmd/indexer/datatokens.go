package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolLedger/internal/chain"
	"poolLedger/internal/config"
	"poolLedger/internal/dex"
	"poolLedger/internal/indexer"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

const datatokenFetchLimit = 8

func runDatatokens(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDatatokens(cfgFile, cmd.Flags())
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	backend, err := openEntityBackend(ctx, cfg.PGDSN, cfg.Snapshot, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	cache := dex.NewTokenMetaCache()
	var (
		mu      sync.Mutex
		fetched []model.Datatoken
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(datatokenFetchLimit)
	for _, address := range addresses {
		address := address
		group.Go(func() error {
			meta, err := cache.Datatoken(groupCtx, chainClient, address, logger)
			if err != nil {
				logger.Warn("datatoken metadata fetch failed", zap.String("token", address.Hex()), zap.Error(err))
				return nil
			}
			mu.Lock()
			fetched = append(fetched, meta)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	ents := storage.NewEntities(backend)
	for _, meta := range fetched {
		if err := ents.SaveDatatoken(ctx, meta); err != nil {
			return fmt.Errorf("save datatoken %s: %w", meta.ID, err)
		}
	}
	if err := backend.Flush(ctx); err != nil {
		return err
	}

	logger.Info("datatokens complete",
		zap.Int("requested", len(addresses)),
		zap.Int("saved", len(fetched)),
		zap.Int("failed", len(addresses)-len(fetched)),
	)
	return nil
}
