package geometry

import "github.com/paulmach/orb"

// czechiaBound is a loose bounding box around the Czech Republic.
// Portal GPS data is best effort; points far outside the country are
// treated as junk rather than passed downstream.
var czechiaBound = orb.Bound{
	Min: orb.Point{12.0, 48.5},
	Max: orb.Point{19.0, 51.1},
}

// InCzechia reports whether the coordinate pair falls inside the
// Czechia bounding box.
func InCzechia(lat, lon float64) bool {
	return czechiaBound.Contains(orb.Point{lon, lat})
}

// SanitizeCoordinates returns the coordinates unchanged when plausible,
// or nils when either is missing or the point is outside Czechia.
func SanitizeCoordinates(lat, lon *float64) (*float64, *float64) {
	if lat == nil || lon == nil {
		return nil, nil
	}
	if !InCzechia(*lat, *lon) {
		return nil, nil
	}
	return lat, lon
}
