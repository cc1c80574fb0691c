package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"czreality/server/internal/database"
)

// RunTrigger starts a scrape run out of band, typically the scheduler.
type RunTrigger interface {
	TriggerRun() error
}

type Handler struct {
	db      *database.Database
	logger  *logrus.Logger
	trigger RunTrigger
}

func NewHandler(db *database.Database, trigger RunTrigger, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:      db,
		logger:  logger,
		trigger: trigger,
	}
}

// listingFilterFromQuery reads the optional feed filters off the request.
func listingFilterFromQuery(c *gin.Context) database.ListingFilter {
	filter := database.ListingFilter{
		Source:   c.Query("source"),
		Category: c.Query("category"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if daysStr := c.Query("maxDaysTracked"); daysStr != "" {
		if days, err := strconv.Atoi(daysStr); err == nil && days >= 0 {
			filter.MaxDaysTracked = &days
		}
	}
	return filter
}

func (h *Handler) GetListings(c *gin.Context) {
	filter := listingFilterFromQuery(c)

	listings, err := h.db.GetListings(filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listings"})
		return
	}

	c.JSON(http.StatusOK, listings)
}

func (h *Handler) GetBestDeals(c *gin.Context) {
	filter := listingFilterFromQuery(c)
	filter.BestDealsOnly = true

	listings, err := h.db.GetListings(filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get best deals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get best deals"})
		return
	}

	c.JSON(http.StatusOK, listings)
}

func (h *Handler) GetFeedStats(c *gin.Context) {
	stats, err := h.db.GetFeedStats()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get feed stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get feed stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) RunScrape(c *gin.Context) {
	if h.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scraping is not available"})
		return
	}

	if err := h.trigger.TriggerRun(); err != nil {
		h.logger.WithError(err).Error("Failed to trigger scrape run")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Scrape run started",
	})
}
