// Package face compares face descriptors computed by the browser model.
package face

import (
	"errors"
	"fmt"
	"math"
)

// DefaultThreshold is the largest Euclidean distance still treated as the same person
const DefaultThreshold = 0.6

var (
	ErrLengthMismatch = errors.New("descriptor length mismatch")
	ErrNoCandidates   = errors.New("no candidate descriptors")
)

// Candidate is a stored descriptor with its owner
type Candidate struct {
	UserID       string
	DescriptorID uint
	Values       []float64
}

type Match struct {
	UserID       string  `json:"user_id"`
	DescriptorID uint    `json:"descriptor_id"`
	Distance     float64 `json:"distance"`
	Confidence   float64 `json:"confidence"`
	Matched      bool    `json:"matched"`
}

// Distance returns the Euclidean distance between a and b
func Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Confidence maps a distance to [0, 1]
func Confidence(distance float64) float64 {
	return math.Max(0, math.Min(1, 1-distance))
}

// Matcher decides whether a probe descriptor belongs to one of the candidates
type Matcher struct {
	threshold float64
}

func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// BestMatch returns the candidate closest to probe. Candidates with a
// different length are skipped; if none is comparable ErrNoCandidates is returned.
func (m *Matcher) BestMatch(probe []float64, candidates []Candidate) (Match, error) {
	best := Match{Distance: math.Inf(1)}
	found := false

	for _, c := range candidates {
		d, err := Distance(probe, c.Values)
		if err != nil {
			continue
		}
		if d < best.Distance {
			best = Match{UserID: c.UserID, DescriptorID: c.DescriptorID, Distance: d}
			found = true
		}
	}

	if !found {
		return Match{}, ErrNoCandidates
	}

	best.Confidence = Confidence(best.Distance)
	best.Matched = best.Distance <= m.threshold
	return best, nil
}
