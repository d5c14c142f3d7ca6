package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"paisable/internal/amqp"
	"paisable/internal/auth"
	"paisable/internal/backend"
	"paisable/internal/blob"
	"paisable/internal/cli"
	"paisable/internal/config"
	"paisable/internal/core"
	"paisable/internal/extract/gemini"
	apphttp "paisable/internal/http"
	"paisable/internal/log"
	"paisable/internal/middleware/ratelimit"
	"paisable/internal/ports"
	"paisable/internal/services"
)

// unavailableExtractor answers every upload with an upstream failure when no
// model key is configured, so the rest of the API keeps working.
type unavailableExtractor struct{}

func (unavailableExtractor) ExtractReceipt(context.Context, []byte, string) (core.ReceiptDraft, error) {
	return core.ReceiptDraft{}, &core.UpstreamError{Op: "extract receipt", Err: errors.New("GEMINI_API_KEY not configured")}
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var (
		publisher  ports.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, ledger events disabled", "error", err)
		} else {
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - ledger changes will not be mirrored")
	}

	transactions := services.NewTransactionService(store, publisher, logger.WithComponent(log.ComponentLedger))
	insights := services.NewInsightsService(store,
		services.WithCacheTTL(cfg.SummaryCacheTTL),
		services.WithWindowDays(cfg.ChartWindowDays))
	categories := services.NewCategoryService(store)
	transactions.OnChange(insights.Invalidate)
	categories.OnChange(insights.Invalidate)

	extractor := newExtractor(ctx, cfg, logger)
	blobs, uploadsDir, closeBlobs := newBlobStore(ctx, cfg, logger)

	authSvc, err := auth.NewService(store, cfg.JWTSecret, cfg.AccessTokenExpiry)
	if err != nil {
		logger.Error("Failed to initialize auth", "error", err)
		os.Exit(1)
	}

	limits := ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	}
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Transactions: transactions,
		Insights:     insights,
		Categories:   categories,
		Receipts:     services.NewReceiptService(store, transactions, extractor, blobs),
		Recurring:    services.NewRecurringService(store),
		Budgets:      services.NewBudgetService(store, store),
		Auth:         authSvc,
	}, apphttp.Options{
		Logger:     logger.WithComponent(log.ComponentHTTP),
		RateLimit:  limits,
		UploadsDir: uploadsDir,
		Ready:      store.Ping,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		closeBlobs()
		if err := store.Close(); err != nil {
			logger.Error("Store close error", "error", err)
		}
	})

	logger.Info("Starting paisable server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

func newExtractor(ctx context.Context, cfg *config.Config, logger *log.Logger) ports.ReceiptExtractor {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set - receipt uploads will fail")
		return unavailableExtractor{}
	}
	ext, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("Failed to initialize Gemini extractor", "error", err)
		os.Exit(1)
	}
	logger.Info("Gemini extractor initialized", "model", cfg.GeminiModel)
	return ext
}

// newBlobStore returns the receipt image store, the directory to serve under
// /uploads (empty for remote stores) and a close func.
func newBlobStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.BlobStore, string, func()) {
	if cfg.ReceiptStorage == "gcs" {
		gcs, err := blob.NewGCSStore(ctx, cfg.ReceiptGCSBucket)
		if err != nil {
			logger.Error("Failed to initialize GCS receipt storage", "error", err, "bucket", cfg.ReceiptGCSBucket)
			os.Exit(1)
		}
		logger.Info("Receipt images stored in GCS", "bucket", cfg.ReceiptGCSBucket)
		return gcs, "", func() {
			if err := gcs.Close(); err != nil {
				logger.Error("GCS close error", "error", err)
			}
		}
	}

	local, err := blob.NewLocalStore(cfg.ReceiptLocalDir)
	if err != nil {
		logger.Error("Failed to initialize local receipt storage", "error", err, "dir", cfg.ReceiptLocalDir)
		os.Exit(1)
	}
	logger.Info("Receipt images stored locally", "dir", local.Root())
	return local, local.Root(), func() {}
}
