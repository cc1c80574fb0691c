package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"czreality/server/config"
	"czreality/server/internal/database"
	"czreality/server/internal/enrichment"
	"czreality/server/internal/history"
	"czreality/server/internal/pipeline"
	"czreality/server/internal/processor"
	"czreality/server/internal/queue"
	"czreality/server/internal/scraping"
	"czreality/server/internal/telegram"
)

// scraper runs one scrape-enrich-persist cycle and exits.
func main() {
	inputPath := flag.String("input", "config/input.json", "path to the scrape input file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	input, err := config.LoadInput(*inputPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load scrape input")
	}
	if err := input.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid scrape input")
	}

	db, err := database.NewDatabase(cfg.Storage.ListingsDBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	historyStore, err := history.NewSqliteStore(cfg.Storage.HistoryDBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize history store")
	}
	defer historyStore.Close()

	listingQueue := queue.NewListingQueue(cfg.BatchProcessing.MaxBatchSize, logger)
	listingQueue.Start()

	batchProcessor := processor.NewBatchProcessor(db.GetDB(), listingQueue, cfg, logger)
	batchProcessor.Start()

	manager := scraping.NewManager(cfg, logger)
	runner := pipeline.NewRunner(cfg, manager, enrichment.NewEnricher(), historyStore, listingQueue, logger)

	enriched, stats, err := runner.Run(context.Background(), input)
	if err != nil {
		logger.WithError(err).Fatal("Scrape run failed")
	}

	telegram.NewService(cfg.Telegram, logger).NotifyBestDeals(enriched)

	// Drain the queue before shutting down so every batch is persisted.
	for listingQueue.Len() > 0 {
		time.Sleep(100 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)
	listingQueue.Close()
	batchProcessor.Stop()

	logger.WithFields(logrus.Fields{
		"total":       stats.Total,
		"new":         stats.NewListings,
		"price_drops": stats.PriceDrops,
		"best_deals":  stats.BestDeals,
	}).Info("Scrape run finished")
}
