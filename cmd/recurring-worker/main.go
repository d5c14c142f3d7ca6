package main

import (
	"context"
	"os"
	"time"

	"paisable/internal/amqp"
	"paisable/internal/backend"
	"paisable/internal/cli"
	"paisable/internal/log"
	"paisable/internal/ports"
	"paisable/internal/services"
	"paisable/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(log.ComponentRecurring)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting recurring-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	// Generated records publish events like any other mutation so the
	// ledger-worker mirrors them.
	var (
		publisher  ports.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = amqpClient
		}
	}

	transactions := services.NewTransactionService(store, publisher, logger.WithComponent(log.ComponentLedger))
	processor := services.NewRecurringProcessor(store, transactions)

	poller := worker.NewPoller("recurring-processor", cfg.RecurringProcessorInterval, func(ctx context.Context) error {
		n, err := processor.ProcessDue(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		if n > 0 {
			logger.InfoContext(ctx, "Recurring processing complete", "transactions_created", n)
		}
		return nil
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := poller.Stop(ctx); err != nil {
			logger.Error("Processor stop error", "error", err)
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

	logger.Info("Recurring processor configured", "interval", cfg.RecurringProcessorInterval)
	if err := poller.Start(ctx); err != nil {
		logger.Error("Failed to start processor", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring worker stopped")
}
