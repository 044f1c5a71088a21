// Package geo resolves an image's GPS coordinates to the nearest known
// city using a great-circle distance search over a latitude-sorted index,
// standing in for a spatial index at the scale this module targets.
package geo

import (
	"math"
	"sort"

	"github.com/your-org/photovault/internal/models"
)

const earthRadiusMiles = 3958.8

// Method tags how a Match's coordinates were obtained.
type Method string

const (
	MethodEXIFGPS      Method = models.GeoMethodEXIFGPS
	MethodManual       Method = models.GeoMethodManual
	MethodClosestMatch Method = models.GeoMethodClosestMatch
)

// Distance bands, in miles, the Geolocator uses to assign confidence to a
// resolved city. Distances at or beyond maxRadiusMiles are not linked at
// all.
const (
	bandExactMiles    = 1.0
	bandNearbyMiles   = 5.0
	bandRegionalMiles = 15.0
	maxRadiusMiles    = 25.0
)

// Index is a latitude-sorted slice of cities supporting a bounded-window
// nearest-neighbor search.
type Index struct {
	cities []models.GeoCity
}

// NewIndex builds a latitude-sorted Index over cities.
func NewIndex(cities []models.GeoCity) *Index {
	sorted := make([]models.GeoCity, len(cities))
	copy(sorted, cities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Latitude < sorted[j].Latitude })
	return &Index{cities: sorted}
}

// Match is the Geolocator's verdict for a single coordinate pair. Matched
// is false when no city fell within maxRadiusMiles, in which case City,
// DistanceMiles, and Confidence are zero values.
type Match struct {
	City          models.GeoCity
	DistanceMiles float64
	Confidence    float64 // 0..1
	Method        Method
	Matched       bool
}

// Resolve finds the nearest city to (lat, lon) within maxRadiusMiles and
// assigns a confidence in [0,1] per the distance bands above. method
// records how the caller obtained the coordinates, so the resulting link
// can be tagged EXIF_GPS, MANUAL, or CLOSEST_MATCH. Re-resolving the same
// coordinates against the same index is idempotent: it always returns the
// same city, distance, and confidence.
func (idx *Index) Resolve(lat, lon float64, method Method) Match {
	if len(idx.cities) == 0 {
		return Match{}
	}

	// latDegreePerMile is an upper bound used to window candidates before
	// computing exact haversine distance, avoiding an O(N) full scan when
	// the reference table is large.
	const latDegreePerMile = 1.0 / 69.0
	windowDeg := maxRadiusMiles * latDegreePerMile

	lo := sort.Search(len(idx.cities), func(i int) bool { return idx.cities[i].Latitude >= lat-windowDeg })
	hi := sort.Search(len(idx.cities), func(i int) bool { return idx.cities[i].Latitude > lat+windowDeg })

	bestIdx := -1
	bestDist := math.Inf(1)
	for i, c := range idx.cities[lo:hi] {
		d := HaversineMiles(lat, lon, c.Latitude, c.Longitude)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestDist >= maxRadiusMiles {
		return Match{}
	}

	return Match{
		City:          idx.cities[lo:hi][bestIdx],
		DistanceMiles: bestDist,
		Confidence:    confidenceForDistance(bestDist),
		Method:        method,
		Matched:       true,
	}
}

// confidenceForDistance maps a distance in miles to a confidence in
// [0,1], linearly interpolated within each band so confidence strictly
// decreases as distance increases and is continuous at the band edges.
func confidenceForDistance(miles float64) float64 {
	switch {
	case miles < bandExactMiles:
		return lerp(miles, 0, bandExactMiles, 1.00, 0.95)
	case miles < bandNearbyMiles:
		return lerp(miles, bandExactMiles, bandNearbyMiles, 0.95, 0.85)
	case miles < bandRegionalMiles:
		return lerp(miles, bandNearbyMiles, bandRegionalMiles, 0.85, 0.70)
	case miles < maxRadiusMiles:
		return lerp(miles, bandRegionalMiles, maxRadiusMiles, 0.70, 0.50)
	default:
		return 0
	}
}

func lerp(x, xLo, xHi, yLo, yHi float64) float64 {
	if xHi == xLo {
		return yLo
	}
	t := (x - xLo) / (xHi - xLo)
	return yLo + t*(yHi-yLo)
}

// HaversineMiles returns the great-circle distance in miles between two
// latitude/longitude points.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}
