package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"czreality/server/internal/models"
)

// Input is the per-run scrape request: which portals to query, what to
// filter on and how many listings to collect. Nil limits mean unbounded.
type Input struct {
	Portals           []models.Portal    `json:"portals"`
	Categories        []models.Category  `json:"categories"`
	OfferType         models.OfferType   `json:"offerType"`
	Regions           []string           `json:"regions"`
	MaxPrice          *int               `json:"maxPrice"`
	MinArea           *float64           `json:"minArea"`
	MaxItems          *int               `json:"maxItems"`
	BestDealThreshold float64            `json:"bestDealThreshold"`
}

// DefaultInput mirrors the defaults applied to absent input fields.
func DefaultInput() Input {
	maxItems := 100
	return Input{
		Portals:           []models.Portal{models.PortalSreality},
		Categories:        []models.Category{models.CategoryHouses},
		OfferType:         models.OfferSale,
		Regions:           nil,
		MaxItems:          &maxItems,
		BestDealThreshold: 0.85,
	}
}

// LoadInput reads the scrape input from a JSON file, filling absent
// fields with defaults. A missing file yields the defaults.
func LoadInput(path string) (Input, error) {
	input := DefaultInput()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return input, fmt.Errorf("failed to get absolute path: %v", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return input, nil
		}
		return input, fmt.Errorf("failed to read input file: %v", err)
	}

	var raw struct {
		Portals           []models.Portal   `json:"portals"`
		Categories        []models.Category `json:"categories"`
		OfferType         *models.OfferType `json:"offerType"`
		Regions           []string          `json:"regions"`
		MaxPrice          *int              `json:"maxPrice"`
		MinArea           *float64          `json:"minArea"`
		MaxItems          *int              `json:"maxItems"`
		BestDealThreshold *float64          `json:"bestDealThreshold"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return input, fmt.Errorf("failed to parse input file: %v", err)
	}

	if raw.Portals != nil {
		input.Portals = raw.Portals
	}
	if raw.Categories != nil {
		input.Categories = raw.Categories
	}
	if raw.OfferType != nil {
		input.OfferType = *raw.OfferType
	}
	input.Regions = NormalizeRegions(raw.Regions)
	input.MaxPrice = raw.MaxPrice
	input.MinArea = raw.MinArea
	if raw.MaxItems != nil {
		input.MaxItems = raw.MaxItems
	}
	if raw.BestDealThreshold != nil {
		input.BestDealThreshold = *raw.BestDealThreshold
	}

	return input, nil
}

// Validate rejects inputs that must abort the run before any network
// activity: empty portal/category sets and unknown enum values.
func (in Input) Validate() error {
	if len(in.Portals) == 0 {
		return fmt.Errorf(`"portals" must contain at least one portal`)
	}
	for _, portal := range in.Portals {
		if !portal.Valid() {
			return fmt.Errorf("unknown portal %q", portal)
		}
	}
	if len(in.Categories) == 0 {
		return fmt.Errorf(`"categories" must contain at least one category`)
	}
	for _, category := range in.Categories {
		if !category.Valid() {
			return fmt.Errorf("unknown category %q", category)
		}
	}
	if !in.OfferType.Valid() {
		return fmt.Errorf("unknown offer type %q", in.OfferType)
	}
	if in.BestDealThreshold <= 0 || in.BestDealThreshold >= 1 {
		return fmt.Errorf("bestDealThreshold must be between 0 and 1, got %v", in.BestDealThreshold)
	}
	if in.MaxItems != nil && *in.MaxItems < 0 {
		return fmt.Errorf("maxItems must not be negative, got %d", *in.MaxItems)
	}
	return nil
}
