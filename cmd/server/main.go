package main

import (
	"context"
	"flag"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"czreality/server/config"
	"czreality/server/internal/api"
	"czreality/server/internal/database"
	"czreality/server/internal/enrichment"
	"czreality/server/internal/history"
	"czreality/server/internal/pipeline"
	"czreality/server/internal/processor"
	"czreality/server/internal/queue"
	"czreality/server/internal/scheduler"
	"czreality/server/internal/scraping"
	"czreality/server/internal/telegram"
)

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

	// Initialize the listings database
	db, err := database.NewDatabase(cfg.Storage.ListingsDBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Initialize the cross-run history store
	historyStore, err := history.NewSqliteStore(cfg.Storage.HistoryDBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize history store")
	}
	defer historyStore.Close()

	// Wire the batch persistence path
	listingQueue := queue.NewListingQueue(cfg.BatchProcessing.MaxBatchSize, logger)
	listingQueue.Start()
	defer listingQueue.Close()

	batchProcessor := processor.NewBatchProcessor(db.GetDB(), listingQueue, cfg, logger)
	batchProcessor.Start()
	defer batchProcessor.Stop()

	// Wire the scrape pipeline
	manager := scraping.NewManager(cfg, logger)
	runner := pipeline.NewRunner(cfg, manager, enrichment.NewEnricher(), historyStore, listingQueue, logger)
	notifier := telegram.NewService(cfg.Telegram, logger)

	runScrape := func() error {
		// Reload the input each run so edits apply without a restart.
		input, err := config.LoadInput(*inputPath)
		if err != nil {
			return err
		}

		enriched, stats, err := runner.Run(context.Background(), input)
		if err != nil {
			return err
		}

		notifier.NotifyBestDeals(enriched)
		logger.WithFields(logrus.Fields{
			"total":      stats.Total,
			"new":        stats.NewListings,
			"best_deals": stats.BestDeals,
		}).Info("Scrape run persisted")
		return nil
	}

	sched := scheduler.NewScheduler(runScrape, cfg.Server.ScrapeHour, logger)
	sched.Start()
	defer sched.Stop()

	// Initialize the API
	router := gin.Default()
	router.Use(cors.Default())
	api.SetupRoutes(router, db, sched, logger)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
