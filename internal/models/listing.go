package models

import (
	"fmt"
	"math"
	"time"
)

// Portal identifies a supported listing source.
type Portal string

const (
	PortalSreality    Portal = "sreality"
	PortalBezrealitky Portal = "bezrealitky"
)

// Category is the property category, using the portals' Czech terms.
type Category string

const (
	CategoryHouses     Category = "domy"
	CategoryApartments Category = "byty"
	CategoryLand       Category = "pozemky"
)

// OfferType is the transaction type. OfferAll expands to sale + rent.
type OfferType string

const (
	OfferSale OfferType = "prodej"
	OfferRent OfferType = "pronajem"
	OfferAll  OfferType = "vse"
)

// AllPortals lists every supported portal.
var AllPortals = []Portal{PortalSreality, PortalBezrealitky}

// AllCategories lists every supported category.
var AllCategories = []Category{CategoryHouses, CategoryApartments, CategoryLand}

// Valid reports whether the portal is a known value.
func (p Portal) Valid() bool {
	return p == PortalSreality || p == PortalBezrealitky
}

// Valid reports whether the category is a known value.
func (c Category) Valid() bool {
	return c == CategoryHouses || c == CategoryApartments || c == CategoryLand
}

// Valid reports whether the offer type is a known value.
func (o OfferType) Valid() bool {
	return o == OfferSale || o == OfferRent || o == OfferAll
}

// Expand resolves OfferAll into the concrete offer types.
func (o OfferType) Expand() []OfferType {
	if o == OfferAll {
		return []OfferType{OfferSale, OfferRent}
	}
	return []OfferType{o}
}

// Listing is one normalized property record from a portal.
type Listing struct {
	ID          string   `json:"id"`
	Source      Portal   `json:"source"`
	Category    Category `json:"category"`
	Name        string   `json:"name"`
	Price       *int     `json:"price"`
	PricePerSqm *int     `json:"pricePerSqm"`
	Locality    string   `json:"locality"`
	Layout      *string  `json:"layout"`
	FloorArea   *float64 `json:"floorArea"`
	LandArea    *float64 `json:"landArea"`
	Latitude    *float64 `json:"lat"`
	Longitude   *float64 `json:"lon"`
	ImageURL    *string  `json:"imageUrl"`
	URL         string   `json:"url"`
}

// ListingID builds the cross-run stable identifier for a portal-native id.
func ListingID(source Portal, category Category, nativeID any) string {
	return fmt.Sprintf("%s_%s_%v", source, category, nativeID)
}

// CalcPricePerSqm derives the price per m², rounded to whole units.
// Returns nil unless both price and a positive floor area are known.
func CalcPricePerSqm(price *int, floorArea *float64) *int {
	if price == nil || floorArea == nil || *floorArea <= 0 {
		return nil
	}
	v := int(math.Round(float64(*price) / *floorArea))
	return &v
}

// EnrichedListing is the durable output record: a Listing plus the
// run-over-run tracking fields computed against the history store.
type EnrichedListing struct {
	Listing
	IsNew         bool `json:"isNew"`
	PriceChanged  bool `json:"priceChanged"`
	PreviousPrice *int `json:"previousPrice"`
	DaysTracked   int  `json:"daysTracked"`
	IsBestDeal    bool `json:"isBestDeal"`
}

// HistoryEntry is the persisted per-listing state. FirstSeenAt is set on
// first observation and never updated afterwards.
type HistoryEntry struct {
	Price       *int      `json:"price"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
}

// HistoryStore maps listing id to its history entry. Entries are never
// deleted; listings absent from a run keep their prior entry.
type HistoryStore map[string]HistoryEntry

// EnrichStats summarizes one enrichment run.
type EnrichStats struct {
	Total             int  `json:"total"`
	NewListings       int  `json:"new_listings"`
	PriceDrops        int  `json:"price_drops"`
	BestDeals         int  `json:"best_deals"`
	MedianPricePerSqm *int `json:"median_price_per_sqm"`
}
