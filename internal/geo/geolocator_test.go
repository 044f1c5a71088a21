package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/photovault/internal/models"
)

func TestHaversineMiles_SamePointIsZero(t *testing.T) {
	d := HaversineMiles(40.7128, -74.0060, 40.7128, -74.0060)
	assert.InDelta(t, 0, d, 0.001)
}

func TestHaversineMiles_KnownDistance(t *testing.T) {
	// New York to London, roughly 3460 miles.
	d := HaversineMiles(40.7128, -74.0060, 51.5074, -0.1278)
	assert.InDelta(t, 3460, d, 40)
}

func TestIndex_Resolve_EmptyIndex(t *testing.T) {
	idx := NewIndex(nil)
	m := idx.Resolve(40.0, -74.0, MethodEXIFGPS)
	assert.False(t, m.Matched)
}

func TestIndex_Resolve_ExactMatchHighConfidence(t *testing.T) {
	cities := []models.GeoCity{
		{Name: "New York", Latitude: 40.7128, Longitude: -74.0060},
		{Name: "Los Angeles", Latitude: 34.0522, Longitude: -118.2437},
	}
	idx := NewIndex(cities)

	m := idx.Resolve(40.7130, -74.0061, MethodEXIFGPS)
	assert.True(t, m.Matched)
	assert.Equal(t, "New York", m.City.Name)
	assert.Less(t, m.DistanceMiles, 1.0)
	assert.GreaterOrEqual(t, m.Confidence, 0.95)
	assert.Equal(t, MethodEXIFGPS, m.Method)
}

func TestIndex_Resolve_TooFarIsUnmatched(t *testing.T) {
	cities := []models.GeoCity{
		{Name: "New York", Latitude: 40.7128, Longitude: -74.0060},
	}
	idx := NewIndex(cities)

	m := idx.Resolve(-33.8688, 151.2093, MethodClosestMatch) // Sydney
	assert.False(t, m.Matched)
}

func TestIndex_Resolve_ConfidenceDecreasesWithDistance(t *testing.T) {
	cities := []models.GeoCity{
		{Name: "Newark", Latitude: 40.735, Longitude: -74.1724},
	}
	idx := NewIndex(cities)

	near := idx.Resolve(40.735, -74.1724, MethodClosestMatch)
	far := idx.Resolve(40.9, -74.3, MethodClosestMatch)

	assert.True(t, near.Matched)
	assert.True(t, far.Matched)
	assert.Greater(t, far.DistanceMiles, near.DistanceMiles)
	assert.Less(t, far.Confidence, near.Confidence)
}

func TestConfidenceForDistance_Bands(t *testing.T) {
	assert.InDelta(t, 1.00, confidenceForDistance(0), 0.001)
	assert.InDelta(t, 0.95, confidenceForDistance(bandExactMiles), 0.001)
	assert.InDelta(t, 0.85, confidenceForDistance(bandNearbyMiles), 0.001)
	assert.InDelta(t, 0.70, confidenceForDistance(bandRegionalMiles), 0.001)
	assert.Equal(t, 0.0, confidenceForDistance(maxRadiusMiles))
	assert.Equal(t, 0.0, confidenceForDistance(100))

	for _, d := range []float64{0, 0.5, 1, 3, 5, 10, 15, 20, 24.9} {
		c := confidenceForDistance(d)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
}
