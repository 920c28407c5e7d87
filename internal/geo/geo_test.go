package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// about 1.11 m per 0.00001 degree of latitude
const metersPerMicroDegree = 0.111195

func TestDistance(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Point
		want  float64
		delta float64
	}{
		{"same point", Point{10.7769, 106.7009}, Point{10.7769, 106.7009}, 0, 1e-9},
		{"one degree latitude", Point{0, 0}, Point{1, 0}, 111195, 1},
		{"hanoi to saigon", Point{21.0285, 105.8542}, Point{10.8231, 106.6297}, 1137000, 5000},
		{"100 m north", Point{10, 106}, Point{10.0009, 106}, 100.08, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, tt.delta)
			assert.InDelta(t, got, Distance(tt.b, tt.a), 1e-6)
		})
	}
}

func TestFilterSamples(t *testing.T) {
	room := Point{10.7769, 106.7009}
	near := func(dLat float64, acc float64) Sample {
		return Sample{Point: Point{room.Latitude + dLat, room.Longitude}, Accuracy: acc}
	}

	t.Run("no samples", func(t *testing.T) {
		_, err := FilterSamples(nil, FilterOptions{})
		assert.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("drops inaccurate readings", func(t *testing.T) {
		kept, err := FilterSamples([]Sample{near(0, 10), near(0.00001, 15), near(0, 150)}, FilterOptions{})
		require.NoError(t, err)
		assert.Len(t, kept, 2)
		for _, s := range kept {
			assert.LessOrEqual(t, s.Accuracy, DefaultMaxAccuracy)
		}
	})

	t.Run("drops outliers far from centroid", func(t *testing.T) {
		samples := []Sample{
			near(0, 10), near(0.00002, 10), near(-0.00002, 10), near(0.00001, 10),
			near(0.002, 10), // ~220 m away
		}
		kept, err := FilterSamples(samples, FilterOptions{})
		require.NoError(t, err)
		assert.Len(t, kept, 4)
	})

	t.Run("keeps most accurate when all inaccurate", func(t *testing.T) {
		kept, err := FilterSamples([]Sample{near(0, 300), near(0.001, 120), near(0, 500)}, FilterOptions{})
		require.NoError(t, err)
		require.Len(t, kept, 1)
		assert.Equal(t, 120.0, kept[0].Accuracy)
	})

	t.Run("keeps most accurate when all are outliers", func(t *testing.T) {
		kept, err := FilterSamples([]Sample{near(0, 30), near(0.01, 5)}, FilterOptions{})
		require.NoError(t, err)
		require.Len(t, kept, 1)
		assert.Equal(t, 5.0, kept[0].Accuracy)
	})

	t.Run("custom thresholds", func(t *testing.T) {
		kept, err := FilterSamples([]Sample{near(0, 10), near(0, 40)}, FilterOptions{MaxAccuracy: 20})
		require.NoError(t, err)
		assert.Len(t, kept, 1)
	})
}

func TestAverage(t *testing.T) {
	_, err := Average(nil)
	assert.ErrorIs(t, err, ErrNoSamples)

	fix, err := Average([]Sample{
		{Point: Point{10, 106}, Accuracy: 10},
		{Point: Point{10.0002, 106}, Accuracy: 20},
	})
	require.NoError(t, err)
	assert.InDelta(t, 10.0001, fix.Latitude, 1e-9)
	assert.InDelta(t, 106, fix.Longitude, 1e-9)
	assert.Equal(t, 15.0, fix.Accuracy)
	assert.Equal(t, 2, fix.Samples)
	assert.InDelta(t, 10*metersPerMicroDegree*10, fix.Spread, 0.2)
}

func TestGeofenceContains(t *testing.T) {
	fence := Geofence{Center: Point{10, 106}, Radius: 50}

	inside, d := fence.Contains(Point{10.0003, 106})
	assert.True(t, inside)
	assert.InDelta(t, 33.4, d, 0.5)

	inside, d = fence.Contains(Point{10.0006, 106})
	assert.False(t, inside)
	assert.InDelta(t, 66.7, d, 0.5)

	inside, _ = fence.Contains(fence.Center)
	assert.True(t, inside)
}

func TestResolve(t *testing.T) {
	fix, kept, err := Resolve([]Sample{
		{Point: Point{10, 106}, Accuracy: 8},
		{Point: Point{10.00001, 106}, Accuracy: 12},
		{Point: Point{10, 106}, Accuracy: 400},
	}, FilterOptions{})
	require.NoError(t, err)
	assert.Len(t, kept, 2)
	assert.Equal(t, 2, fix.Samples)
	assert.Equal(t, 10.0, fix.Accuracy)
}
