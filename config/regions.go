package config

import "strings"

// RegionAll is the input sentinel meaning "no region filter".
const RegionAll = "all"

// SupportedRegions is the canonical list of Czech regions accepted in
// scrape input. Portal adapters map these to their native identifiers.
var SupportedRegions = []string{
	"Praha",
	"Středočeský",
	"Jihočeský",
	"Plzeňský",
	"Karlovarský",
	"Ústecký",
	"Liberecký",
	"Královéhradecký",
	"Pardubický",
	"Vysočina",
	"Jihomoravský",
	"Olomoucký",
	"Zlínský",
	"Moravskoslezský",
}

// BuildRegionLookup expands a canonical-name table with the long
// "kraj"-suffixed spellings, so "Středočeský" and "Středočeský kraj"
// resolve to the same portal-native value.
func BuildRegionLookup[T any](canonical map[string]T) map[string]T {
	lookup := make(map[string]T, len(canonical)*2)
	for name, value := range canonical {
		lookup[name] = value
		lookup[name+" kraj"] = value
	}
	return lookup
}

// NormalizeRegions trims the requested region names and resolves the
// "all" sentinel to an empty filter.
func NormalizeRegions(regions []string) []string {
	normalized := make([]string, 0, len(regions))
	for _, region := range regions {
		region = strings.TrimSpace(region)
		if region == "" {
			continue
		}
		if strings.EqualFold(region, RegionAll) {
			return nil
		}
		normalized = append(normalized, region)
	}
	return normalized
}
