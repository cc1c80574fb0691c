package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"czreality/server/internal/models"
)

// ListingRecord is the persisted form of an enriched listing, one row
// per listing id, refreshed on every run.
type ListingRecord struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Source        string    `gorm:"index" json:"source"`
	Category      string    `gorm:"index" json:"category"`
	Name          string    `json:"name"`
	Price         *int      `json:"price"`
	PricePerSqm   *int      `json:"pricePerSqm"`
	Locality      string    `json:"locality"`
	Layout        *string   `json:"layout"`
	FloorArea     *float64  `json:"floorArea"`
	LandArea      *float64  `json:"landArea"`
	Latitude      *float64  `json:"lat"`
	Longitude     *float64  `json:"lon"`
	ImageURL      *string   `json:"imageUrl"`
	URL           string    `json:"url"`
	IsNew         bool      `json:"isNew"`
	PriceChanged  bool      `json:"priceChanged"`
	PreviousPrice *int      `json:"previousPrice"`
	DaysTracked   int       `json:"daysTracked"`
	IsBestDeal    bool      `gorm:"index" json:"isBestDeal"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RecordFromEnriched flattens an enriched listing into its stored row.
func RecordFromEnriched(listing models.EnrichedListing) ListingRecord {
	return ListingRecord{
		ID:            listing.ID,
		Source:        string(listing.Source),
		Category:      string(listing.Category),
		Name:          listing.Name,
		Price:         listing.Price,
		PricePerSqm:   listing.PricePerSqm,
		Locality:      listing.Locality,
		Layout:        listing.Layout,
		FloorArea:     listing.FloorArea,
		LandArea:      listing.LandArea,
		Latitude:      listing.Latitude,
		Longitude:     listing.Longitude,
		ImageURL:      listing.ImageURL,
		URL:           listing.URL,
		IsNew:         listing.IsNew,
		PriceChanged:  listing.PriceChanged,
		PreviousPrice: listing.PreviousPrice,
		DaysTracked:   listing.DaysTracked,
		IsBestDeal:    listing.IsBestDeal,
	}
}

// ListingFilter narrows feed queries from the API.
type ListingFilter struct {
	Source         string
	Category       string
	BestDealsOnly  bool
	MaxDaysTracked *int
	Limit          int
}

// FeedStats summarizes the stored feed.
type FeedStats struct {
	TotalListings int64 `json:"total_listings"`
	NewListings   int64 `json:"new_listings"`
	BestDeals     int64 `json:"best_deals"`
	PriceChanges  int64 `json:"price_changes"`
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// RunMigrations creates or updates the listings schema.
func (d *Database) RunMigrations() error {
	return d.db.AutoMigrate(&ListingRecord{})
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB exposes the underlying gorm handle for transactional writers.
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// UpsertListings inserts the batch, replacing existing rows by id.
func UpsertListings(tx *gorm.DB, batch []ListingRecord) error {
	if len(batch) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&batch).Error
}

// GetListings returns stored listings matching the filter, newest first.
func (d *Database) GetListings(filter ListingFilter) ([]ListingRecord, error) {
	query := d.db.Model(&ListingRecord{}).Order("updated_at DESC")

	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.BestDealsOnly {
		query = query.Where("is_best_deal = ?", true)
	}
	if filter.MaxDaysTracked != nil {
		query = query.Where("days_tracked <= ?", *filter.MaxDaysTracked)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []ListingRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetFeedStats aggregates the stored feed counters.
func (d *Database) GetFeedStats() (FeedStats, error) {
	var stats FeedStats
	model := d.db.Model(&ListingRecord{})

	if err := model.Count(&stats.TotalListings).Error; err != nil {
		return stats, err
	}
	if err := d.db.Model(&ListingRecord{}).Where("is_new = ?", true).Count(&stats.NewListings).Error; err != nil {
		return stats, err
	}
	if err := d.db.Model(&ListingRecord{}).Where("is_best_deal = ?", true).Count(&stats.BestDeals).Error; err != nil {
		return stats, err
	}
	if err := d.db.Model(&ListingRecord{}).Where("price_changed = ?", true).Count(&stats.PriceChanges).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
