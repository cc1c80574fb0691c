package scraping

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"czreality/server/config"
	"czreality/server/internal/models"
	"czreality/server/internal/portals"
)

// Paginator walks one portal through every (category, offer type,
// region) combination. Combinations fan out concurrently up to a
// ceiling; pages within one combination are fetched strictly in
// sequence, separated by a politeness delay.
type Paginator struct {
	adapter        portals.Adapter
	logger         *logrus.Logger
	pageDelay      time.Duration
	maxConcurrency int
}

func NewPaginator(adapter portals.Adapter, logger *logrus.Logger, pageDelay time.Duration, maxConcurrency int) *Paginator {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Paginator{
		adapter:        adapter,
		logger:         logger,
		pageDelay:      pageDelay,
		maxConcurrency: maxConcurrency,
	}
}

type combination struct {
	category  models.Category
	offerType models.OfferType
	region    string
}

// Collect fetches up to maxListings filtered listings for this portal.
// A page failure ends only its own combination; whatever that
// combination already collected is kept.
func (p *Paginator) Collect(ctx context.Context, input config.Input, maxListings int) []models.Listing {
	if maxListings <= 0 {
		return nil
	}

	regions, ok := p.resolveRegions(input.Regions)
	if !ok {
		return nil
	}

	var combos []combination
	for _, category := range input.Categories {
		for _, offerType := range input.OfferType.Expand() {
			for _, region := range regions {
				combos = append(combos, combination{category, offerType, region})
			}
		}
	}

	collector := &quotaCollector{limit: maxListings}
	semaphore := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for _, combo := range combos {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(combo combination) {
			defer wg.Done()
			defer func() { <-semaphore }()
			p.collectCombination(ctx, input, combo, collector)
		}(combo)
	}
	wg.Wait()

	return collector.listings
}

// resolveRegions maps input regions to portal-native values, warning
// once per adapter about every unknown name. All-invalid input matches
// nothing; an empty filter matches everything.
func (p *Paginator) resolveRegions(regions []string) ([]string, bool) {
	if len(regions) == 0 {
		return []string{""}, true
	}

	resolved, invalid := p.adapter.ResolveRegions(regions)
	if len(invalid) > 0 {
		p.logger.WithFields(logrus.Fields{
			"portal":  p.adapter.Name(),
			"regions": strings.Join(invalid, ", "),
		}).Warn("Ignoring unknown regions")
	}
	if len(resolved) == 0 {
		p.logger.WithField("portal", p.adapter.Name()).
			Warn("All provided regions are invalid — nothing to fetch")
		return nil, false
	}
	return resolved, true
}

func (p *Paginator) collectCombination(ctx context.Context, input config.Input, combo combination, collector *quotaCollector) {
	logger := p.logger.WithFields(logrus.Fields{
		"portal":     p.adapter.Name(),
		"category":   combo.category,
		"offer_type": combo.offerType,
		"region":     regionLabel(combo.region),
	})

	fetched := 0
	for page := 0; ; page++ {
		if collector.full() || ctx.Err() != nil {
			return
		}
		if page > 0 {
			time.Sleep(p.pageDelay)
		}

		logger.WithField("page", page).Info("Fetching page")
		result, err := p.adapter.FetchPage(ctx, portals.PageQuery{
			Category:  combo.category,
			OfferType: combo.offerType,
			Region:    combo.region,
			Page:      page,
			MaxPrice:  input.MaxPrice,
			MinArea:   input.MinArea,
		})
		if err != nil {
			// Recoverable: this combination stops, siblings continue.
			logger.WithError(err).WithField("page", page).Error("Page fetch failed, stopping combination")
			return
		}

		if page == 0 {
			logger.WithField("total_available", result.TotalAvailable).Info("Combination size known")
		}

		fetched += len(result.Listings)
		for _, listing := range result.Listings {
			if !matchesFilters(listing, input.MaxPrice, input.MinArea) {
				continue
			}
			if !collector.add(listing) {
				return
			}
		}

		if !result.HasMore || result.TotalAvailable <= fetched {
			return
		}
	}
}

// matchesFilters is the controller-side safety net for the price
// ceiling and area floor; adapters push these into the provider query
// when the API supports it.
func matchesFilters(listing models.Listing, maxPrice *int, minArea *float64) bool {
	if maxPrice != nil && listing.Price != nil && *listing.Price > *maxPrice {
		return false
	}
	if minArea != nil && *minArea > 0 {
		if listing.FloorArea == nil || *listing.FloorArea < *minArea {
			return false
		}
	}
	return true
}

func regionLabel(region string) string {
	if region == "" {
		return "all"
	}
	return region
}

// quotaCollector accumulates listings up to a hard limit across
// concurrently running combinations.
type quotaCollector struct {
	mu       sync.Mutex
	listings []models.Listing
	limit    int
}

func (c *quotaCollector) add(listing models.Listing) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.listings) >= c.limit {
		return false
	}
	c.listings = append(c.listings, listing)
	return true
}

func (c *quotaCollector) full() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listings) >= c.limit
}
