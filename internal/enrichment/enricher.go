package enrichment

import (
	"math"
	"sort"
	"time"

	"czreality/server/internal/models"
)

const dayMs = 86_400_000

// Enricher computes the cross-run tracking fields for a scraped batch.
// The clock is injected so day arithmetic is testable.
type Enricher struct {
	now func() time.Time
}

func NewEnricher() *Enricher {
	return &Enricher{now: time.Now}
}

func NewEnricherWithClock(now func() time.Time) *Enricher {
	return &Enricher{now: now}
}

// Enrich derives new/price-changed/best-deal/days-tracked fields for
// every listing against the prior history, and returns the refreshed
// history. It must run exactly once per run over the full batch: the
// median has to reflect the whole run's population, not one portal's.
func (e *Enricher) Enrich(listings []models.Listing, history models.HistoryStore, bestDealThreshold float64) ([]models.EnrichedListing, models.HistoryStore) {
	now := e.now()

	updated := make(models.HistoryStore, len(history)+len(listings))
	for id, entry := range history {
		updated[id] = entry
	}

	median := medianPricePerSqm(listings)

	enriched := make([]models.EnrichedListing, 0, len(listings))
	for _, listing := range listings {
		prev, seenBefore := history[listing.ID]

		firstSeenAt := now
		if seenBefore {
			firstSeenAt = prev.FirstSeenAt
		}
		updated[listing.ID] = models.HistoryEntry{
			Price:       listing.Price,
			FirstSeenAt: firstSeenAt,
		}

		priceChanged := seenBefore && !intPtrEqual(prev.Price, listing.Price)
		var previousPrice *int
		if priceChanged {
			previousPrice = prev.Price
		}

		enriched = append(enriched, models.EnrichedListing{
			Listing:       listing,
			IsNew:         !seenBefore,
			PriceChanged:  priceChanged,
			PreviousPrice: previousPrice,
			DaysTracked:   int(now.Sub(firstSeenAt).Milliseconds() / dayMs),
			IsBestDeal:    isBestDeal(listing.PricePerSqm, median, bestDealThreshold),
		})
	}

	return enriched, updated
}

// medianPricePerSqm picks the element at index floor(n/2) of the
// ascending non-nil values: the upper median for even-length input.
// This tie-break is deliberate and covered by tests.
func medianPricePerSqm(listings []models.Listing) *int {
	var values []int
	for _, listing := range listings {
		if listing.PricePerSqm != nil {
			values = append(values, *listing.PricePerSqm)
		}
	}
	if len(values) == 0 {
		return nil
	}
	sort.Ints(values)
	median := values[len(values)/2]
	return &median
}

func isBestDeal(pricePerSqm, median *int, threshold float64) bool {
	if pricePerSqm == nil || median == nil {
		return false
	}
	return float64(*pricePerSqm) <= float64(*median)*threshold
}

// MedianRatio is the listing's price per m² relative to the run
// median, rounded to two decimals. Nil when either side is unknown.
func MedianRatio(pricePerSqm, median *int) *float64 {
	if pricePerSqm == nil || median == nil || *median == 0 {
		return nil
	}
	ratio := math.Round(float64(*pricePerSqm)/float64(*median)*100) / 100
	return &ratio
}

// Stats summarizes an enriched batch for run reporting.
func (e *Enricher) Stats(enriched []models.EnrichedListing, listings []models.Listing) models.EnrichStats {
	stats := models.EnrichStats{
		Total:             len(enriched),
		MedianPricePerSqm: medianPricePerSqm(listings),
	}
	for _, listing := range enriched {
		if listing.IsNew {
			stats.NewListings++
		}
		if listing.PriceChanged && listing.PreviousPrice != nil && listing.Price != nil &&
			*listing.Price < *listing.PreviousPrice {
			stats.PriceDrops++
		}
		if listing.IsBestDeal {
			stats.BestDeals++
		}
	}
	return stats
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
