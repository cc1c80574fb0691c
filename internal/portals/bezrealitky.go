package portals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"czreality/server/config"
	"czreality/server/internal/geometry"
	"czreality/server/internal/models"
)

// Bezrealitky.cz is a Next.js SSR app. Listing data is embedded in the
// <script id="__NEXT_DATA__"> tag as an Apollo cache JSON, so a plain
// HTML fetch plus goquery is enough.
const (
	bezrealitkyBase     = "https://www.bezrealitky.cz"
	bezrealitkyPageSize = 15
	bezrealitkyListPath = "/vypis/nabidka-"
)

var bezrealitkyEstateType = map[models.Category]string{
	models.CategoryHouses:     "dum",
	models.CategoryApartments: "byt",
	models.CategoryLand:       "pozemek",
}

var bezrealitkyOfferSlug = map[models.OfferType]string{
	models.OfferSale: "prodej",
	models.OfferRent: "pronajem",
}

var bezrealitkyRegionSlugs = config.BuildRegionLookup(map[string]string{
	"Praha":           "praha",
	"Středočeský":     "stredocesky-kraj",
	"Jihočeský":       "jihocesky-kraj",
	"Plzeňský":        "plzensky-kraj",
	"Karlovarský":     "karlovarsky-kraj",
	"Ústecký":         "ustecky-kraj",
	"Liberecký":       "liberecky-kraj",
	"Královéhradecký": "kralovehradecky-kraj",
	"Pardubický":      "pardubicky-kraj",
	"Vysočina":        "kraj-vysocina",
	"Jihomoravský":    "jihomoravsky-kraj",
	"Olomoucký":       "olomoucky-kraj",
	"Zlínský":         "zlinsky-kraj",
	"Moravskoslezský": "moravskoslezsky-kraj",
})

var bezrealitkyDispositions = map[string]string{
	"DISP_1_KK": "1+kk",
	"DISP_1_1":  "1+1",
	"DISP_2_KK": "2+kk",
	"DISP_2_1":  "2+1",
	"DISP_3_KK": "3+kk",
	"DISP_3_1":  "3+1",
	"DISP_4_KK": "4+kk",
	"DISP_4_1":  "4+1",
	"DISP_5_KK": "5+kk",
	"DISP_5_1":  "5+1",
	"DISP_6":    "6+",
	"DISP_ROOM": "Pokoj",
}

// BezrealitkyAdapter scrapes bezrealitky.cz server-rendered listing pages.
type BezrealitkyAdapter struct {
	client  *http.Client
	logger  *logrus.Logger
	baseURL string
}

func NewBezrealitkyAdapter(client *http.Client, logger *logrus.Logger) *BezrealitkyAdapter {
	return &BezrealitkyAdapter{
		client:  client,
		logger:  logger,
		baseURL: bezrealitkyBase,
	}
}

func (a *BezrealitkyAdapter) Name() models.Portal {
	return models.PortalBezrealitky
}

func (a *BezrealitkyAdapter) ResolveRegions(names []string) ([]string, []string) {
	var resolved, invalid []string
	for _, name := range names {
		if slug, ok := bezrealitkyRegionSlugs[name]; ok {
			resolved = append(resolved, slug)
		} else {
			invalid = append(invalid, name)
		}
	}
	return resolved, invalid
}

func (a *BezrealitkyAdapter) listingPath(query PageQuery) string {
	path := bezrealitkyListPath + bezrealitkyOfferSlug[query.OfferType] + "/" + bezrealitkyEstateType[query.Category]
	if query.Region != "" {
		path += "/" + query.Region
	}
	return path
}

func (a *BezrealitkyAdapter) FetchPage(ctx context.Context, query PageQuery) (PageResult, error) {
	// The site paginates from 1; PageQuery.Page is zero-based.
	page := query.Page + 1
	pageURL := a.baseURL + a.listingPath(query) + "?page=" + strconv.Itoa(page)

	body, err := getBody(ctx, a.client, pageURL, "text/html")
	if err != nil {
		return PageResult{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageResult{}, fmt.Errorf("failed to parse listing page: %w", err)
	}

	nextDataRaw := doc.Find(`script#__NEXT_DATA__`).Text()
	if nextDataRaw == "" {
		return PageResult{}, fmt.Errorf("__NEXT_DATA__ not found in %s", pageURL)
	}

	pageData, err := parseNextData([]byte(nextDataRaw))
	if err != nil {
		return PageResult{}, err
	}

	listings := make([]models.Listing, 0, len(pageData.refs))
	for _, ref := range pageData.refs {
		advert, ok := pageData.apolloState[ref]
		if !ok {
			continue
		}
		listing, err := a.toListing(advert, pageData.apolloState, ref, query)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"portal": a.Name(),
				"ref":    ref,
			}).Warn("Skipping unparsable advert")
			continue
		}
		listings = append(listings, listing)
	}

	return PageResult{
		Listings:       listings,
		TotalAvailable: pageData.totalCount,
		HasMore:        pageData.totalCount > page*bezrealitkyPageSize,
	}, nil
}

type bezrealitkyPageData struct {
	apolloState map[string]json.RawMessage
	refs        []string
	totalCount  int
}

func parseNextData(raw []byte) (*bezrealitkyPageData, error) {
	var nextData struct {
		Props struct {
			PageProps map[string]json.RawMessage `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(raw, &nextData); err != nil {
		return nil, fmt.Errorf("failed to parse __NEXT_DATA__ JSON: %w", err)
	}

	// The Apollo cache key has drifted across site releases.
	var cacheRaw json.RawMessage
	for _, key := range []string{"apolloCache", "apolloState", "initialApolloState"} {
		if v, ok := nextData.Props.PageProps[key]; ok {
			cacheRaw = v
			break
		}
	}
	if cacheRaw == nil {
		return nil, fmt.Errorf("apollo state not found in __NEXT_DATA__")
	}

	var apolloState map[string]json.RawMessage
	if err := json.Unmarshal(cacheRaw, &apolloState); err != nil {
		return nil, fmt.Errorf("failed to parse apollo state: %w", err)
	}

	var rootQuery map[string]json.RawMessage
	if rootRaw, ok := apolloState["ROOT_QUERY"]; ok {
		if err := json.Unmarshal(rootRaw, &rootQuery); err != nil {
			return nil, fmt.Errorf("failed to parse ROOT_QUERY: %w", err)
		}
	}

	listRaw := findByPrefix(rootQuery, "listAdverts")
	if listRaw == nil {
		return nil, fmt.Errorf("listAdverts not found in ROOT_QUERY")
	}

	var listAdverts struct {
		List []struct {
			Ref string `json:"__ref"`
		} `json:"list"`
		TotalCount int `json:"totalCount"`
	}
	if err := json.Unmarshal(listRaw, &listAdverts); err != nil {
		return nil, fmt.Errorf("failed to parse listAdverts: %w", err)
	}

	refs := make([]string, 0, len(listAdverts.List))
	for _, item := range listAdverts.List {
		if item.Ref != "" {
			refs = append(refs, item.Ref)
		}
	}

	return &bezrealitkyPageData{
		apolloState: apolloState,
		refs:        refs,
		totalCount:  listAdverts.TotalCount,
	}, nil
}

func findByPrefix(obj map[string]json.RawMessage, prefix string) json.RawMessage {
	for key, value := range obj {
		if strings.HasPrefix(key, prefix) {
			return value
		}
	}
	return nil
}

type bezrealitkyAdvert struct {
	ID          *int64  `json:"id"`
	Price       *int    `json:"price"`
	Surface     *float64 `json:"surface"`
	SurfaceLand *float64 `json:"surfaceLand"`
	Disposition string  `json:"disposition"`
	URI         string  `json:"uri"`
	GPS         *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"gps"`
	MainImage *struct {
		Ref string `json:"__ref"`
	} `json:"mainImage"`
}

func (a *BezrealitkyAdapter) toListing(raw json.RawMessage, apolloState map[string]json.RawMessage, refKey string, query PageQuery) (models.Listing, error) {
	var advert bezrealitkyAdvert
	if err := json.Unmarshal(raw, &advert); err != nil {
		return models.Listing{}, fmt.Errorf("failed to parse advert: %w", err)
	}

	nativeID := strings.TrimPrefix(refKey, "Advert:")
	if advert.ID != nil {
		nativeID = strconv.FormatInt(*advert.ID, 10)
	}

	floorArea := positiveArea(advert.Surface)
	landArea := positiveArea(advert.SurfaceLand)

	var layout *string
	if advert.Disposition != "" {
		name, ok := bezrealitkyDispositions[advert.Disposition]
		if !ok {
			name = advert.Disposition
		}
		layout = &name
	}

	var lat, lon *float64
	if advert.GPS != nil {
		lat, lon = geometry.SanitizeCoordinates(&advert.GPS.Lat, &advert.GPS.Lng)
	}

	// The address field key carries Apollo arguments; match by prefix.
	locality := ""
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		if addrRaw := findByPrefix(fields, "address"); addrRaw != nil {
			_ = json.Unmarshal(addrRaw, &locality)
		}
	}

	listingURL := a.baseURL + a.listingPath(query)
	if advert.URI != "" {
		listingURL = a.baseURL + "/" + advert.URI
	}

	return models.Listing{
		ID:          models.ListingID(a.Name(), query.Category, nativeID),
		Source:      a.Name(),
		Category:    query.Category,
		Name:        locality,
		Price:       advert.Price,
		PricePerSqm: models.CalcPricePerSqm(advert.Price, floorArea),
		Locality:    locality,
		Layout:      layout,
		FloorArea:   floorArea,
		LandArea:    landArea,
		Latitude:    lat,
		Longitude:   lon,
		ImageURL:    resolveImage(advert.MainImage, apolloState),
		URL:         listingURL,
	}, nil
}

// resolveImage follows the mainImage __ref into the Apollo cache and
// picks the RECORD_MAIN variant URL.
func resolveImage(mainImage *struct {
	Ref string `json:"__ref"`
}, apolloState map[string]json.RawMessage) *string {
	if mainImage == nil || mainImage.Ref == "" {
		return nil
	}
	imageRaw, ok := apolloState[mainImage.Ref]
	if !ok {
		return nil
	}
	var imageObj map[string]json.RawMessage
	if err := json.Unmarshal(imageRaw, &imageObj); err != nil {
		return nil
	}
	for key, value := range imageObj {
		if strings.HasPrefix(key, "url") && strings.Contains(key, "RECORD_MAIN") {
			var u string
			if err := json.Unmarshal(value, &u); err == nil && u != "" {
				return &u
			}
		}
	}
	return nil
}
