// Package features is the Feature Engine: for each event, reads/updates
// per-entity state in the external store and derives a complete
// FeatureVector, degrading individual fields to documented defaults on
// state-store error rather than ever dropping the event (spec.md §4.2,
// §7's degraded-feature failure category).
package features

import "math"

const earthRadiusKM = 6371.0

// Haversine returns the great-circle distance in km between two
// (lat, lon) points, used for the usual-location distance feature
// (spec.md §4.2).
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}
