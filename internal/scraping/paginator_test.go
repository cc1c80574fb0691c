package scraping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"czreality/server/config"
	"czreality/server/internal/models"
	"czreality/server/internal/portals"
)

// fakeAdapter serves synthetic pages of pageSize listings per
// combination, up to total, optionally failing at a given page.
type fakeAdapter struct {
	name      models.Portal
	regionMap map[string]string
	total     int
	pageSize  int
	failPage  int // -1 = never fail
	prices    []int

	mu        sync.Mutex
	pageCalls []portals.PageQuery
}

func newFakeAdapter(total, pageSize int) *fakeAdapter {
	return &fakeAdapter{
		name:      models.PortalSreality,
		regionMap: map[string]string{"Praha": "10", "Jihočeský": "31"},
		total:     total,
		pageSize:  pageSize,
		failPage:  -1,
	}
}

func (f *fakeAdapter) Name() models.Portal { return f.name }

func (f *fakeAdapter) ResolveRegions(names []string) ([]string, []string) {
	var resolved, invalid []string
	for _, name := range names {
		if v, ok := f.regionMap[name]; ok {
			resolved = append(resolved, v)
		} else {
			invalid = append(invalid, name)
		}
	}
	return resolved, invalid
}

func (f *fakeAdapter) FetchPage(_ context.Context, query portals.PageQuery) (portals.PageResult, error) {
	f.mu.Lock()
	f.pageCalls = append(f.pageCalls, query)
	f.mu.Unlock()

	if query.Page == f.failPage {
		return portals.PageResult{}, errors.New("boom")
	}

	start := query.Page * f.pageSize
	var listings []models.Listing
	for i := start; i < start+f.pageSize && i < f.total; i++ {
		price := 1000000
		if len(f.prices) > 0 {
			price = f.prices[i%len(f.prices)]
		}
		p := price
		listings = append(listings, models.Listing{
			ID:       models.ListingID(f.name, query.Category, fmt.Sprintf("%s-%s-%d", query.Region, query.OfferType, i)),
			Source:   f.name,
			Category: query.Category,
			Price:    &p,
		})
	}

	return portals.PageResult{
		Listings:       listings,
		TotalAvailable: f.total,
		HasMore:        start+f.pageSize < f.total,
	}, nil
}

func testInput() config.Input {
	in := config.DefaultInput()
	in.MaxItems = nil
	return in
}

func newTestPaginator(adapter portals.Adapter) (*Paginator, *logrustest.Hook) {
	logger, hook := logrustest.NewNullLogger()
	return NewPaginator(adapter, logger, 0, 2), hook
}

func TestPaginatorStopsAtQuota(t *testing.T) {
	adapter := newFakeAdapter(100, 10)
	paginator, _ := newTestPaginator(adapter)

	listings := paginator.Collect(context.Background(), testInput(), 25)

	assert.Len(t, listings, 25)
	// 3 pages cover 25 listings; the quota guard stops further fetches.
	assert.LessOrEqual(t, len(adapter.pageCalls), 3)
}

func TestPaginatorStopsWhenExhausted(t *testing.T) {
	adapter := newFakeAdapter(13, 10)
	paginator, _ := newTestPaginator(adapter)

	listings := paginator.Collect(context.Background(), testInput(), 1000)

	assert.Len(t, listings, 13)
	assert.Len(t, adapter.pageCalls, 2)
}

func TestPaginatorPagesAreSequentialWithinCombination(t *testing.T) {
	adapter := newFakeAdapter(30, 10)
	paginator, _ := newTestPaginator(adapter)

	paginator.Collect(context.Background(), testInput(), 1000)

	require.Len(t, adapter.pageCalls, 3)
	for i, call := range adapter.pageCalls {
		assert.Equal(t, i, call.Page)
	}
}

func TestPaginatorErrorKeepsCollectedListings(t *testing.T) {
	adapter := newFakeAdapter(100, 10)
	adapter.failPage = 1
	paginator, hook := newTestPaginator(adapter)

	listings := paginator.Collect(context.Background(), testInput(), 1000)

	assert.Len(t, listings, 10, "page 0 listings survive the page 1 failure")
	foundError := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			foundError = true
		}
	}
	assert.True(t, foundError, "the failure is observable in the log")
}

func TestPaginatorFiltersBeforeCountingQuota(t *testing.T) {
	adapter := newFakeAdapter(20, 10)
	adapter.prices = []int{500000, 2000000} // alternating under/over the ceiling
	paginator, _ := newTestPaginator(adapter)

	input := testInput()
	maxPrice := 1000000
	input.MaxPrice = &maxPrice

	listings := paginator.Collect(context.Background(), input, 10)

	assert.Len(t, listings, 10, "over-priced listings do not consume quota")
	for _, listing := range listings {
		require.NotNil(t, listing.Price)
		assert.LessOrEqual(t, *listing.Price, maxPrice)
	}
}

func TestPaginatorMinAreaFiltersUnknownArea(t *testing.T) {
	adapter := newFakeAdapter(10, 10)
	paginator, _ := newTestPaginator(adapter)

	input := testInput()
	minArea := 50.0
	input.MinArea = &minArea

	// Fake listings carry no floor area, so the area floor drops all.
	listings := paginator.Collect(context.Background(), input, 100)
	assert.Empty(t, listings)
}

func TestPaginatorInvalidRegionsWarnedOnce(t *testing.T) {
	adapter := newFakeAdapter(10, 10)
	paginator, hook := newTestPaginator(adapter)

	input := testInput()
	input.Regions = []string{"Praha", "Narnia", "Mordor"}

	listings := paginator.Collect(context.Background(), input, 100)
	assert.Len(t, listings, 10)

	var warnings []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, fmt.Sprint(entry.Data["regions"]))
		}
	}
	require.Len(t, warnings, 1, "one aggregated warning per adapter")
	assert.Equal(t, "Narnia, Mordor", warnings[0])
}

func TestPaginatorAllRegionsInvalidFetchesNothing(t *testing.T) {
	adapter := newFakeAdapter(10, 10)
	paginator, _ := newTestPaginator(adapter)

	input := testInput()
	input.Regions = []string{"Narnia"}

	listings := paginator.Collect(context.Background(), input, 100)
	assert.Empty(t, listings)
	assert.Empty(t, adapter.pageCalls, "an all-invalid filter matches nothing, not everything")
}

func TestPaginatorExpandsOfferTypesAndRegions(t *testing.T) {
	adapter := newFakeAdapter(1, 10)
	paginator, _ := newTestPaginator(adapter)

	input := testInput()
	input.OfferType = models.OfferAll
	input.Regions = []string{"Praha", "Jihočeský"}

	listings := paginator.Collect(context.Background(), input, 100)

	// 1 category × 2 offer types × 2 regions = 4 combinations of 1 listing.
	assert.Len(t, listings, 4)
	assert.Len(t, adapter.pageCalls, 4)
}
