package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolLedger/internal/config"
	"poolLedger/internal/reconcile"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openEntityBackend(ctx, cfg.PGDSN, cfg.Snapshot, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	numeraire := cfg.Numeraire
	if numeraire == "" {
		numeraire = reconcile.NumeraireFor(cfg.Network)
	}

	rec, err := reconcile.New(ctx, backend, reconcile.Config{
		Numeraire:       numeraire,
		NumeraireSymbol: cfg.NumeraireSymbol,
		Cursor:          "reconcile:" + cfg.Network,
	}, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	runner := reconcile.NewRunner(reconcile.RunnerConfig{
		CheckpointEvery:  cfg.CheckpointEvery,
		BeforeCheckpoint: backend.Flush,
		Metrics:          reconcile.NewMetrics(reg),
	}, rec, logger)

	logger.Info("reconcile start",
		zap.String("in", cfg.In),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("network", cfg.Network),
		zap.String("numeraire", numeraire),
		zap.Int("checkpoint_every", cfg.CheckpointEvery),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(groupCtx)
	defer cancelRun()

	group.Go(func() error {
		defer cancelRun()
		_, err := runner.Run(runCtx, cfg.In)
		return err
	})

	if cfg.MetricsAddr != "" {
		server := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		group.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return group.Wait()
}
