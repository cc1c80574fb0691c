package portals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"czreality/server/config"
	"czreality/server/internal/geometry"
	"czreality/server/internal/models"
)

const (
	srealityAPI     = "https://www.sreality.cz/api/cs/v2/estates"
	srealityPerPage = 20
	// Upper bound for the usable_area filter, large enough for any land plot.
	srealityAreaMax = 1_000_000
)

var srealityCategoryMain = map[models.Category]int{
	models.CategoryApartments: 1,
	models.CategoryHouses:     2,
	models.CategoryLand:       3,
}

var srealityCategoryType = map[models.OfferType]int{
	models.OfferSale: 1,
	models.OfferRent: 2,
}

var srealityCategorySlug = map[models.Category]string{
	models.CategoryApartments: "byt",
	models.CategoryHouses:     "dum",
	models.CategoryLand:       "pozemek",
}

var srealityRegionIDs = config.BuildRegionLookup(map[string]int{
	"Praha":           10,
	"Středočeský":     20,
	"Jihočeský":       31,
	"Plzeňský":        32,
	"Karlovarský":     41,
	"Ústecký":         42,
	"Liberecký":       51,
	"Královéhradecký": 52,
	"Pardubický":      53,
	"Vysočina":        63,
	"Jihomoravský":    64,
	"Olomoucký":       71,
	"Zlínský":         72,
	"Moravskoslezský": 80,
})

// SrealityAdapter scrapes the sreality.cz JSON estates API. Listing
// pages carry price and GPS; layout and areas come from a per-listing
// detail endpoint resolved through a bounded worker pool.
type SrealityAdapter struct {
	client  *http.Client
	logger  *logrus.Logger
	pool    *WorkerPool
	baseURL string
}

func NewSrealityAdapter(client *http.Client, logger *logrus.Logger) *SrealityAdapter {
	return &SrealityAdapter{
		client:  client,
		logger:  logger,
		pool:    NewWorkerPool(4, 100*time.Millisecond),
		baseURL: srealityAPI,
	}
}

func (a *SrealityAdapter) Name() models.Portal {
	return models.PortalSreality
}

func (a *SrealityAdapter) ResolveRegions(names []string) ([]string, []string) {
	var resolved, invalid []string
	for _, name := range names {
		if id, ok := srealityRegionIDs[name]; ok {
			resolved = append(resolved, strconv.Itoa(id))
		} else {
			invalid = append(invalid, name)
		}
	}
	return resolved, invalid
}

func (a *SrealityAdapter) buildPageURL(query PageQuery) string {
	params := url.Values{}
	params.Set("category_main_cb", strconv.Itoa(srealityCategoryMain[query.Category]))
	params.Set("per_page", strconv.Itoa(srealityPerPage))
	params.Set("page", strconv.Itoa(query.Page))
	if typeCb, ok := srealityCategoryType[query.OfferType]; ok {
		params.Set("category_type_cb", strconv.Itoa(typeCb))
	}
	if query.MaxPrice != nil {
		params.Set("czk_price_summary_order2", "0|"+strconv.Itoa(*query.MaxPrice))
	}
	if query.MinArea != nil {
		params.Set("usable_area", strconv.Itoa(int(*query.MinArea))+"|"+strconv.Itoa(srealityAreaMax))
	}
	if query.Region != "" {
		params.Set("locality_region_id", query.Region)
	}
	return a.baseURL + "?" + params.Encode()
}

type srealityEstate struct {
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Locality string `json:"locality"`
	HashID   int64  `json:"hash_id"`
	GPS      *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"gps"`
	Links struct {
		Images []struct {
			Href string `json:"href"`
		} `json:"images"`
	} `json:"_links"`
}

type srealityResponse struct {
	Embedded struct {
		Estates []srealityEstate `json:"estates"`
	} `json:"_embedded"`
	ResultSize int `json:"result_size"`
}

type srealityDetail struct {
	layout    *string
	floorArea *float64
	landArea  *float64
}

func (a *SrealityAdapter) FetchPage(ctx context.Context, query PageQuery) (PageResult, error) {
	pageURL := a.buildPageURL(query)

	var data srealityResponse
	if err := getJSON(ctx, a.client, pageURL, &data); err != nil {
		return PageResult{}, err
	}

	estates := data.Embedded.Estates
	if len(estates) == 0 {
		a.logger.WithFields(logrus.Fields{
			"portal":      a.Name(),
			"page":        query.Page,
			"result_size": data.ResultSize,
		}).Warn("Empty estates page")
		return PageResult{TotalAvailable: data.ResultSize}, nil
	}

	// Detail lookups are independent per listing; fan them out.
	details := make([]srealityDetail, len(estates))
	var wg sync.WaitGroup
	for i, estate := range estates {
		wg.Add(1)
		hashID := estate.HashID
		idx := i
		a.pool.Submit(func() {
			defer wg.Done()
			details[idx] = a.fetchDetail(ctx, hashID)
		})
	}
	wg.Wait()

	listings := make([]models.Listing, 0, len(estates))
	for i, estate := range estates {
		listings = append(listings, a.toListing(estate, details[i], query))
	}

	return PageResult{
		Listings:       listings,
		TotalAvailable: data.ResultSize,
		HasMore:        data.ResultSize > (query.Page+1)*srealityPerPage,
	}, nil
}

func (a *SrealityAdapter) toListing(estate srealityEstate, detail srealityDetail, query PageQuery) models.Listing {
	var price *int
	if estate.Price > 0 {
		p := estate.Price
		price = &p
	}

	var lat, lon *float64
	if estate.GPS != nil {
		lat, lon = geometry.SanitizeCoordinates(&estate.GPS.Lat, &estate.GPS.Lon)
	}

	var imageURL *string
	if len(estate.Links.Images) > 0 && estate.Links.Images[0].Href != "" {
		href := estate.Links.Images[0].Href
		imageURL = &href
	}

	return models.Listing{
		ID:          models.ListingID(a.Name(), query.Category, estate.HashID),
		Source:      a.Name(),
		Category:    query.Category,
		Name:        estate.Name,
		Price:       price,
		PricePerSqm: models.CalcPricePerSqm(price, detail.floorArea),
		Locality:    estate.Locality,
		Layout:      detail.layout,
		FloorArea:   detail.floorArea,
		LandArea:    detail.landArea,
		Latitude:    lat,
		Longitude:   lon,
		ImageURL:    imageURL,
		URL: "https://www.sreality.cz/detail/" + string(query.OfferType) + "/" +
			srealityCategorySlug[query.Category] + "/" + strconv.FormatInt(estate.HashID, 10),
	}
}

type srealityDetailItem struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// fetchDetail resolves layout and areas from the detail endpoint. A
// failed lookup is recoverable: the listing keeps nil fields.
func (a *SrealityAdapter) fetchDetail(ctx context.Context, hashID int64) srealityDetail {
	var payload struct {
		Items json.RawMessage `json:"items"`
	}
	detailURL := a.baseURL + "/" + strconv.FormatInt(hashID, 10)
	if err := getJSON(ctx, a.client, detailURL, &payload); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"portal":  a.Name(),
			"hash_id": hashID,
		}).Warn("Failed to fetch listing detail")
		return srealityDetail{}
	}

	var detail srealityDetail
	for _, item := range flattenDetailItems(payload.Items) {
		nameLower := strings.ToLower(item.Name)
		switch {
		case nameLower == "dispozice":
			layout := stringValue(item.Value)
			if layout != "" {
				detail.layout = &layout
			}
		case strings.Contains(nameLower, "pozemku"):
			detail.landArea = positiveArea(ParseArea(item.Value))
		case strings.Contains(nameLower, "plocha"):
			detail.floorArea = positiveArea(ParseArea(item.Value))
		}
	}
	return detail
}

// flattenDetailItems accepts both the flat and the grouped shapes the
// detail endpoint has been observed to return.
func flattenDetailItems(raw json.RawMessage) []srealityDetailItem {
	if len(raw) == 0 {
		return nil
	}

	var flat []srealityDetailItem
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}

	var grouped [][]srealityDetailItem
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return nil
	}
	var items []srealityDetailItem
	for _, group := range grouped {
		items = append(items, group...)
	}
	return items
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
