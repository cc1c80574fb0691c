package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"czreality/server/config"
	"czreality/server/internal/enrichment"
	"czreality/server/internal/models"
	"czreality/server/internal/queue"
)

func intPtr(v int) *int { return &v }

type fakeScraper struct {
	listings []models.Listing
}

func (f *fakeScraper) ScrapeAll(ctx context.Context, input config.Input) []models.Listing {
	return f.listings
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	history models.HistoryStore
	saved   models.HistoryStore
	loadErr error
	saveErr error
}

func (f *fakeHistoryStore) Load() (models.HistoryStore, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.history == nil {
		return models.HistoryStore{}, nil
	}
	return f.history, nil
}

func (f *fakeHistoryStore) Save(history models.HistoryStore) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	f.saved = history
	f.mu.Unlock()
	return nil
}

func (f *fakeHistoryStore) Close() error { return nil }

func runnerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.BatchProcessing.MaxBatchSize = 2
	return cfg
}

func sampleListings() []models.Listing {
	return []models.Listing{
		{ID: "sreality_domy_1", Source: models.PortalSreality, Category: models.CategoryHouses, Price: intPtr(4_000_000), PricePerSqm: intPtr(20_000)},
		{ID: "sreality_domy_2", Source: models.PortalSreality, Category: models.CategoryHouses, Price: intPtr(5_000_000), PricePerSqm: intPtr(25_000)},
		{ID: "sreality_domy_3", Source: models.PortalSreality, Category: models.CategoryHouses, Price: intPtr(6_000_000), PricePerSqm: intPtr(30_000)},
	}
}

func TestRunnerEndToEnd(t *testing.T) {
	logger := logrus.New()
	store := &fakeHistoryStore{}
	q := queue.NewListingQueue(10, logger)

	var mu sync.Mutex
	var persisted []*models.EnrichedListing
	q.Subscribe(func(batch []*models.EnrichedListing) error {
		mu.Lock()
		persisted = append(persisted, batch...)
		mu.Unlock()
		return nil
	})
	q.Start()
	defer q.Close()

	runner := NewRunner(runnerConfig(), &fakeScraper{listings: sampleListings()}, enrichment.NewEnricher(), store, q, logger)

	input := config.DefaultInput()
	enriched, stats, err := runner.Run(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, enriched, 3)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.NewListings)
	assert.Equal(t, 1, stats.BestDeals)

	// History was saved with every scraped listing.
	store.mu.Lock()
	saved := store.saved
	store.mu.Unlock()
	require.Len(t, saved, 3)
	_, ok := saved["sreality_domy_1"]
	assert.True(t, ok)

	// All listings reach the queue, split into MaxBatchSize batches.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(persisted) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestRunnerRejectsInvalidInput(t *testing.T) {
	logger := logrus.New()
	runner := NewRunner(runnerConfig(), &fakeScraper{}, enrichment.NewEnricher(), &fakeHistoryStore{}, nil, logger)

	input := config.DefaultInput()
	input.Portals = nil

	_, _, err := runner.Run(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestRunnerHistoryLoadFailureAborts(t *testing.T) {
	logger := logrus.New()
	store := &fakeHistoryStore{loadErr: errors.New("disk gone")}
	runner := NewRunner(runnerConfig(), &fakeScraper{listings: sampleListings()}, enrichment.NewEnricher(), store, nil, logger)

	_, _, err := runner.Run(context.Background(), config.DefaultInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load history")
}

func TestRunnerHistorySaveFailureIsRunFailure(t *testing.T) {
	logger := logrus.New()
	store := &fakeHistoryStore{saveErr: errors.New("disk full")}
	runner := NewRunner(runnerConfig(), &fakeScraper{listings: sampleListings()}, enrichment.NewEnricher(), store, nil, logger)

	_, _, err := runner.Run(context.Background(), config.DefaultInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save history")
}

func TestRunnerEmptyScrapeStillSavesHistory(t *testing.T) {
	logger := logrus.New()
	now := time.Now().UTC()
	store := &fakeHistoryStore{history: models.HistoryStore{
		"old": {Price: intPtr(1), FirstSeenAt: now},
	}}
	runner := NewRunner(runnerConfig(), &fakeScraper{}, enrichment.NewEnricher(), store, nil, logger)

	enriched, stats, err := runner.Run(context.Background(), config.DefaultInput())
	require.NoError(t, err)
	assert.Empty(t, enriched)
	assert.Equal(t, 0, stats.Total)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.saved, 1, "prior entries survive an empty run")
}
