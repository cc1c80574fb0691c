package portals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"czreality/server/internal/models"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; CZRealityBot/1.0)"

// PageQuery identifies one page of one (category, offer type, region)
// combination, together with the filters the portal may apply natively.
// Page is zero-based; adapters translate to their own numbering.
type PageQuery struct {
	Category  models.Category
	OfferType models.OfferType
	Region    string // portal-native region value, empty = no filter
	Page      int
	MaxPrice  *int
	MinArea   *float64
}

// PageResult is one fetched page of normalized listings.
type PageResult struct {
	Listings       []models.Listing
	TotalAvailable int
	HasMore        bool
}

// Adapter is the seam at which new portals are added: it builds the
// provider query, parses the native response into canonical listings
// and signals exhaustion.
type Adapter interface {
	Name() models.Portal

	// ResolveRegions maps canonical region names to portal-native
	// values. Unknown names are returned separately, in input order,
	// for the caller to warn about.
	ResolveRegions(names []string) (resolved []string, invalid []string)

	FetchPage(ctx context.Context, query PageQuery) (PageResult, error)
}

// ForPortal returns the adapter for a portal. The switch is exhaustive
// over the portal enum, so adding a portal is a compile-time extension.
func ForPortal(portal models.Portal, client *http.Client, logger *logrus.Logger) (Adapter, error) {
	switch portal {
	case models.PortalSreality:
		return NewSrealityAdapter(client, logger), nil
	case models.PortalBezrealitky:
		return NewBezrealitkyAdapter(client, logger), nil
	default:
		return nil, fmt.Errorf("no adapter for portal %q", portal)
	}
}

// NewHTTPClient builds the shared client for portal requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func getBody(ctx context.Context, client *http.Client, url string, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	body, err := getBody(ctx, client, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", url, err)
	}
	return nil
}

var nonNumericPattern = regexp.MustCompile(`[^\d.]`)

// ParseArea extracts a numeric area from heterogeneous portal values:
// plain numbers, or localized strings like "288 m²" and "1,5".
func ParseArea(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		cleaned := nonNumericPattern.ReplaceAllString(strings.ReplaceAll(v, ",", "."), "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func positiveArea(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
