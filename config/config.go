package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Scraping configuration
	Scraping struct {
		// Delay between sequential page fetches within one portal combination (in milliseconds)
		PageDelayMs int `env:"SCRAPE_PAGE_DELAY_MS" envDefault:"500"`

		// Maximum number of concurrent fetches per portal
		MaxConcurrency int `env:"SCRAPE_MAX_CONCURRENCY" envDefault:"4"`

		// HTTP timeout for portal requests (in seconds)
		RequestTimeoutSec int `env:"SCRAPE_REQUEST_TIMEOUT" envDefault:"30"`
	}

	// BatchProcessing configuration
	BatchProcessing struct {
		// Maximum number of listings per write batch
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"100"`

		// Number of concurrent batch processors
		ProcessorCount int `env:"BATCH_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"5"`
	}

	// Storage paths
	Storage struct {
		// Sqlite database holding the enriched listing feed
		ListingsDBPath string `env:"LISTINGS_DB_PATH" envDefault:"database/listings.db"`

		// Sqlite database holding the cross-run listing history
		HistoryDBPath string `env:"HISTORY_DB_PATH" envDefault:"database/history.db"`
	}

	// Server configuration
	Server struct {
		Port string `env:"SERVER_PORT" envDefault:"5250"`

		// Hour of day (0-23) for the scheduled daily scrape
		ScrapeHour int `env:"SCRAPE_HOUR" envDefault:"6"`
	}

	// Telegram notification configuration
	Telegram TelegramConfig
}

type TelegramConfig struct {
	Enabled  bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `env:"TELEGRAM_CHAT_ID"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
