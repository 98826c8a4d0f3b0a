// Package main is the entry point for the stockforge reconciliation worker.
// It periodically audits stock aggregates against the adjustment ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"stockforge/internal/domain/ledger"
	"stockforge/internal/domain/reconcile"
	"stockforge/internal/infrastructure/storage/postgres"
	"stockforge/internal/infrastructure/storage/postgres/item_repo"
	"stockforge/internal/infrastructure/storage/postgres/ledger_repo"
	"stockforge/pkg/config"
	"stockforge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting stockforge reconciliation worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.ConnectionString()))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	itemRepo := item_repo.NewStockItemRepo(txManager)
	adjustmentRepo := ledger_repo.NewAdjustmentRepo(txManager)

	ledgerSvc := ledger.NewService(adjustmentRepo)
	reconcileSvc := reconcile.NewService(itemRepo, ledgerSvc)

	runOnce := func() {
		runCtx, runCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer runCancel()

		report, err := reconcileSvc.Run(runCtx)
		if err != nil {
			log.Errorw("reconciliation run failed", "error", err)
			return
		}
		if report.Clean() {
			log.Infow("reconciliation clean",
				"items_checked", report.ItemsChecked,
				"duration", report.FinishedAt.Sub(report.StartedAt).String(),
			)
			return
		}
		log.Warnw("reconciliation found drift",
			"items_checked", report.ItemsChecked,
			"drift_count", len(report.Drifts),
		)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Worker.ReconcileSchedule, runOnce); err != nil {
		log.Fatalw("failed to schedule reconciliation",
			"schedule", cfg.Worker.ReconcileSchedule,
			"error", err,
		)
	}

	// One pass at startup, then on schedule.
	runOnce()
	c.Start()
	log.Infow("reconciliation scheduled", "schedule", cfg.Worker.ReconcileSchedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	<-c.Stop().Done()
	log.Info("worker stopped")
}
