package main

import (
	"context"
	"errors"
	"os"
	"time"

	"paisable/internal/amqp"
	"paisable/internal/backend"
	"paisable/internal/cli"
	"paisable/internal/log"
	"paisable/internal/ports"
	gsheet "paisable/internal/sheets/google"
	memsheet "paisable/internal/sheets/memory"
	"paisable/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting ledger-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend is process-local; the worker will only see its own records")
	}
	store, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	var mirror ports.LedgerMirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		mirror = memsheet.New()
		logger.Info("Google Sheets disabled - mirroring into memory")
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - relying on the pending sweep only")
	}

	mirrorWorker := worker.NewMirrorWorker(store, store, mirror, cfg.SyncBatchSize)
	sweeper := worker.NewPoller("pending-sync", cfg.SyncInterval, func(ctx context.Context) error {
		_, err := mirrorWorker.ProcessPending(ctx)
		return err
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := sweeper.Stop(ctx); err != nil {
			logger.Error("Sweeper stop error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := store.Close(); err != nil {
			logger.Error("Store close error", "error", err)
		}
	})

	logger.Info("Performing startup sync check...")
	if err := mirrorWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeTransactionEvents(ctx, mirrorWorker.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", "error", err)
			}
		}()
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
