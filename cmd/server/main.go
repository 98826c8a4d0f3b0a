// Package main is the entry point for the stockforge API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockforge/internal/domain/catalogs/item"
	"stockforge/internal/domain/ledger"
	"stockforge/internal/domain/production"
	"stockforge/internal/domain/purchasing"
	"stockforge/internal/domain/sales"
	v1 "stockforge/internal/infrastructure/http/v1"
	"stockforge/internal/infrastructure/storage/postgres"
	"stockforge/internal/infrastructure/storage/postgres/item_repo"
	"stockforge/internal/infrastructure/storage/postgres/ledger_repo"
	"stockforge/internal/infrastructure/storage/postgres/production_repo"
	"stockforge/internal/infrastructure/storage/postgres/sale_repo"
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

	ctx := context.Background()
	log.Info("starting stockforge server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.MaxConns = int32(cfg.DB.MaxConns)
	poolCfg.MinConns = int32(cfg.DB.MinConns)

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	itemRepo := item_repo.NewStockItemRepo(txManager)
	adjustmentRepo := ledger_repo.NewAdjustmentRepo(txManager)
	batchRepo := production_repo.NewBatchRepo(txManager)
	saleRepo := sale_repo.NewSaleRepo(txManager)

	// --- Services ---
	ledgerSvc := ledger.NewService(adjustmentRepo)
	itemSvc := item.NewService(itemRepo, txManager)
	productionSvc := production.NewService(batchRepo, itemRepo, ledgerSvc, txManager)
	salesSvc := sales.NewService(saleRepo, itemRepo, ledgerSvc, txManager)
	purchasingSvc := purchasing.NewService(itemRepo, ledgerSvc, txManager)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:       pool.Pool,
		Logger:     log,
		Items:      itemSvc,
		Ledger:     ledgerSvc,
		Production: productionSvc,
		Sales:      salesSvc,
		Purchasing: purchasingSvc,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-statsCtx.Done():
				return
			case <-ticker.C:
				postgres.LogPoolStats(statsCtx, pool.Pool)
			}
		}
	}()

	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
