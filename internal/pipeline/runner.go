package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"czreality/server/config"
	"czreality/server/internal/enrichment"
	"czreality/server/internal/history"
	"czreality/server/internal/models"
	"czreality/server/internal/queue"
)

// Scraper produces the run's combined listing feed.
type Scraper interface {
	ScrapeAll(ctx context.Context, input config.Input) []models.Listing
}

// Runner wires one full scrape-enrich-persist run: scrape every portal,
// enrich the combined batch against the prior history, stream the
// enriched listings to the batch queue and save the refreshed history.
type Runner struct {
	logger   *logrus.Logger
	cfg      *config.Config
	scraper  Scraper
	enricher *enrichment.Enricher
	store    history.Store
	queue    *queue.ListingQueue
}

func NewRunner(cfg *config.Config, scraper Scraper, enricher *enrichment.Enricher, store history.Store, queue *queue.ListingQueue, logger *logrus.Logger) *Runner {
	return &Runner{
		logger:   logger,
		cfg:      cfg,
		scraper:  scraper,
		enricher: enricher,
		store:    store,
		queue:    queue,
	}
}

// Run executes one run end to end and returns the enriched feed with
// its summary stats. The history save failing is a run failure: a feed
// was produced but the next run would double-report novelty.
func (r *Runner) Run(ctx context.Context, input config.Input) ([]models.EnrichedListing, models.EnrichStats, error) {
	if err := input.Validate(); err != nil {
		return nil, models.EnrichStats{}, fmt.Errorf("invalid input: %w", err)
	}

	listings := r.scraper.ScrapeAll(ctx, input)

	priorHistory, err := r.store.Load()
	if err != nil {
		return nil, models.EnrichStats{}, fmt.Errorf("failed to load history: %w", err)
	}
	r.logger.WithField("tracked", len(priorHistory)).Info("Loaded listing history")

	// Enrichment runs once over the whole run so the best-deal median
	// reflects every portal's listings.
	enriched, updatedHistory := r.enricher.Enrich(listings, priorHistory, input.BestDealThreshold)

	r.dispatch(enriched)

	if err := r.store.Save(updatedHistory); err != nil {
		return nil, models.EnrichStats{}, fmt.Errorf("failed to save history: %w", err)
	}

	stats := r.enricher.Stats(enriched, listings)
	r.logger.WithFields(logrus.Fields{
		"total":       stats.Total,
		"new":         stats.NewListings,
		"price_drops": stats.PriceDrops,
		"best_deals":  stats.BestDeals,
	}).Info("Run finished")

	return enriched, stats, nil
}

// dispatch pushes the enriched feed to the queue in storage-sized batches.
func (r *Runner) dispatch(enriched []models.EnrichedListing) {
	if r.queue == nil || len(enriched) == 0 {
		return
	}

	batchSize := r.cfg.BatchProcessing.MaxBatchSize
	if batchSize <= 0 {
		batchSize = len(enriched)
	}

	for start := 0; start < len(enriched); start += batchSize {
		end := start + batchSize
		if end > len(enriched) {
			end = len(enriched)
		}

		batch := make([]*models.EnrichedListing, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &enriched[i])
		}

		if err := r.queue.Push(batch); err != nil {
			r.logger.WithError(err).WithField("batch_size", len(batch)).Error("Failed to queue listing batch")
		}
	}
}
