package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// AMQP; events are not published when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int

	// Receipts
	GeminiAPIKey     string
	GeminiModel      string
	ReceiptStorage   string
	ReceiptLocalDir  string
	ReceiptGCSBucket string

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Workers
	SyncBatchSize              int
	SyncInterval               time.Duration
	RecurringProcessorInterval time.Duration

	// Insights
	ChartWindowDays int
	SummaryCacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validBackends        = []string{"memory", "sqlite"}
	validReceiptStorages = []string{"local", "gcs"}
	validLogFormats      = []string{"text", "json"}
)

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/paisable.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "paisable"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTokenExpiry:  getEnvDuration("ACCESS_TOKEN_EXPIRY", 30*24*time.Hour),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 30),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		ReceiptStorage:   getEnv("RECEIPT_STORAGE", "local"),
		ReceiptLocalDir:  getEnv("RECEIPT_LOCAL_DIR", "./data/uploads"),
		ReceiptGCSBucket: getEnv("RECEIPT_GCS_BUCKET", ""),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		SyncBatchSize:              getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:               getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		RecurringProcessorInterval: getEnvDuration("RECURRING_PROCESSOR_INTERVAL", time.Hour),

		ChartWindowDays: getEnvInt("CHART_WINDOW_DAYS", 30),
		SummaryCacheTTL: getEnvDuration("SUMMARY_CACHE_TTL", time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT secret must be at least 16 characters")
	}
	if c.AccessTokenExpiry < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid access token expiry %v: must be at least 1 minute", c.AccessTokenExpiry))
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitBurst < 1 {
		errors = append(errors, "rate limit and burst must be at least 1")
	}

	if !slices.Contains(validReceiptStorages, c.ReceiptStorage) {
		errors = append(errors, fmt.Sprintf("invalid receipt storage '%s': must be one of %v", c.ReceiptStorage, validReceiptStorages))
	}
	if c.ReceiptStorage == "gcs" && c.ReceiptGCSBucket == "" {
		errors = append(errors, "RECEIPT_GCS_BUCKET is required when receipt storage is gcs")
	}
	if c.ReceiptStorage == "local" && c.ReceiptLocalDir == "" {
		errors = append(errors, "RECEIPT_LOCAL_DIR is required when receipt storage is local")
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if c.RecurringProcessorInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring processor interval %v: must be at least 1 second", c.RecurringProcessorInterval))
	}

	if c.ChartWindowDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid chart window %d: must be at least 1 day", c.ChartWindowDays))
	}
	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}

	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
