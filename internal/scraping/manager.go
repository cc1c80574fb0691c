package scraping

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"czreality/server/config"
	"czreality/server/internal/models"
	"czreality/server/internal/portals"
	"czreality/server/internal/quota"
)

// Manager orchestrates a scrape run across the requested portals: it
// derives each portal's cap from the quota allocator, shrinks the
// remaining global budget as portals complete and enforces the hard
// global cap.
type Manager struct {
	logger     *logrus.Logger
	cfg        *config.Config
	newAdapter func(models.Portal) (portals.Adapter, error)
}

func NewManager(cfg *config.Config, logger *logrus.Logger) *Manager {
	client := portals.NewHTTPClient(time.Duration(cfg.Scraping.RequestTimeoutSec) * time.Second)
	return &Manager{
		logger: logger,
		cfg:    cfg,
		newAdapter: func(portal models.Portal) (portals.Adapter, error) {
			return portals.ForPortal(portal, client, logger)
		},
	}
}

// ScrapeAll runs the pagination controller for every requested portal
// in sequence and returns the combined normalized feed.
func (m *Manager) ScrapeAll(ctx context.Context, input config.Input) []models.Listing {
	perPortal := quota.PerPortal(input.MaxItems, len(input.Portals))

	remaining := quota.Unlimited
	if input.MaxItems != nil {
		remaining = *input.MaxItems
	}

	var all []models.Listing
	for _, portal := range input.Portals {
		if remaining <= 0 {
			break
		}

		adapter, err := m.newAdapter(portal)
		if err != nil {
			m.logger.WithError(err).WithField("portal", portal).Error("Skipping portal without adapter")
			continue
		}

		portalCap := perPortal
		if remaining < portalCap {
			portalCap = remaining
		}

		paginator := NewPaginator(
			adapter,
			m.logger,
			time.Duration(m.cfg.Scraping.PageDelayMs)*time.Millisecond,
			m.cfg.Scraping.MaxConcurrency,
		)

		listings := paginator.Collect(ctx, input, portalCap)
		m.logger.WithFields(logrus.Fields{
			"portal": portal,
			"count":  len(listings),
		}).Info("Portal scrape finished")

		all = append(all, listings...)
		if remaining != quota.Unlimited {
			remaining -= len(listings)
		}
	}

	m.logger.WithField("total", len(all)).Info("Total listings scraped")
	return all
}
