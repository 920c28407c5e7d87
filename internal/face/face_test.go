package face

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(fill float64, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestDistance(t *testing.T) {
	d, err := Distance([]float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 5.0, d)

	d, err = Distance(vec(0.1, 128), vec(0.1, 128))
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = Distance(vec(0, 128), vec(0, 127))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, Confidence(0))
	assert.InDelta(t, 0.6, Confidence(0.4), 1e-9)
	assert.Equal(t, 0.0, Confidence(1.7))
}

func TestMatcher_BestMatch(t *testing.T) {
	probe := vec(0, 128)

	// distance of vec(x, 128) from zero is x * sqrt(128)
	at := func(distance float64) []float64 { return vec(distance/math.Sqrt(128), 128) }

	tests := []struct {
		name       string
		threshold  float64
		candidates []Candidate
		wantUser   string
		wantMatch  bool
		wantErr    error
	}{
		{
			name:      "closest candidate under threshold",
			threshold: 0.6,
			candidates: []Candidate{
				{UserID: "a", DescriptorID: 1, Values: at(0.7)},
				{UserID: "b", DescriptorID: 2, Values: at(0.3)},
				{UserID: "c", DescriptorID: 3, Values: at(0.5)},
			},
			wantUser:  "b",
			wantMatch: true,
		},
		{
			name:       "closest candidate over threshold",
			threshold:  0.6,
			candidates: []Candidate{{UserID: "a", Values: at(0.65)}},
			wantUser:   "a",
			wantMatch:  false,
		},
		{
			name:       "stricter threshold",
			threshold:  0.4,
			candidates: []Candidate{{UserID: "a", Values: at(0.5)}},
			wantUser:   "a",
			wantMatch:  false,
		},
		{
			name:       "mismatched lengths skipped",
			threshold:  0.6,
			candidates: []Candidate{{UserID: "x", Values: vec(0, 64)}, {UserID: "a", Values: at(0.2)}},
			wantUser:   "a",
			wantMatch:  true,
		},
		{
			name:      "no candidates",
			threshold: 0.6,
			wantErr:   ErrNoCandidates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.threshold)
			got, err := m.BestMatch(probe, tt.candidates)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, got.UserID)
			assert.Equal(t, tt.wantMatch, got.Matched)
			assert.InDelta(t, 1-got.Distance, got.Confidence, 1e-9)
		})
	}
}

func TestNewMatcher_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewMatcher(0).Threshold())
	assert.Equal(t, 0.45, NewMatcher(0.45).Threshold())
}
