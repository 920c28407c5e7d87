// Package geo implements the location math used to validate check-ins:
// great-circle distance, GPS sample filtering and circular geofences.
package geo

import (
	"errors"
	"math"
	"sort"
)

// EarthRadiusMeters is the mean earth radius used by Distance
const EarthRadiusMeters = 6371000.0

const (
	DefaultMaxAccuracy     = 100.0
	DefaultOutlierDistance = 50.0
)

var ErrNoSamples = errors.New("no GPS samples")

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sample is one browser geolocation reading; Accuracy is the reported radius in meters
type Sample struct {
	Point
	Accuracy float64 `json:"accuracy"`
}

// Fix is the averaged position derived from accepted samples
type Fix struct {
	Point
	Accuracy float64 `json:"accuracy"`
	Samples  int     `json:"samples"`
	Spread   float64 `json:"spread"` // max distance of any sample from the mean
}

// Distance returns the Haversine distance between a and b in meters
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

type FilterOptions struct {
	MaxAccuracy     float64
	OutlierDistance float64
}

func (o FilterOptions) withDefaults() FilterOptions {
	if o.MaxAccuracy <= 0 {
		o.MaxAccuracy = DefaultMaxAccuracy
	}
	if o.OutlierDistance <= 0 {
		o.OutlierDistance = DefaultOutlierDistance
	}
	return o
}

// FilterSamples drops inaccurate readings, then readings too far from the
// centroid of the remaining ones. When nothing survives, the single most
// accurate input sample is kept.
func FilterSamples(samples []Sample, opts FilterOptions) ([]Sample, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	opts = opts.withDefaults()

	accurate := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Accuracy <= opts.MaxAccuracy {
			accurate = append(accurate, s)
		}
	}
	if len(accurate) == 0 {
		return []Sample{mostAccurate(samples)}, nil
	}

	center := centroid(accurate)
	kept := make([]Sample, 0, len(accurate))
	for _, s := range accurate {
		if Distance(center, s.Point) <= opts.OutlierDistance {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return []Sample{mostAccurate(accurate)}, nil
	}

	return kept, nil
}

// Average returns the mean position of samples
func Average(samples []Sample) (Fix, error) {
	if len(samples) == 0 {
		return Fix{}, ErrNoSamples
	}

	center := centroid(samples)
	var accuracy, spread float64
	for _, s := range samples {
		accuracy += s.Accuracy
		if d := Distance(center, s.Point); d > spread {
			spread = d
		}
	}

	return Fix{
		Point:    center,
		Accuracy: accuracy / float64(len(samples)),
		Samples:  len(samples),
		Spread:   spread,
	}, nil
}

// Resolve filters samples and averages the survivors
func Resolve(samples []Sample, opts FilterOptions) (Fix, []Sample, error) {
	kept, err := FilterSamples(samples, opts)
	if err != nil {
		return Fix{}, nil, err
	}
	fix, err := Average(kept)
	return fix, kept, err
}

// Geofence is a circular area around a registered room
type Geofence struct {
	Center Point
	Radius float64 // meters
}

// Contains reports whether fix lies within the fence and its distance to the center
func (g Geofence) Contains(p Point) (bool, float64) {
	d := Distance(g.Center, p)
	return d <= g.Radius, d
}

func centroid(samples []Sample) Point {
	var lat, lng float64
	for _, s := range samples {
		lat += s.Latitude
		lng += s.Longitude
	}
	n := float64(len(samples))
	return Point{Latitude: lat / n, Longitude: lng / n}
}

func mostAccurate(samples []Sample) Sample {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Accuracy < sorted[j].Accuracy
	})
	return sorted[0]
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
