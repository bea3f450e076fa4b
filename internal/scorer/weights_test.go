package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWeights(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		weights Weights
		wantErr string
	}{
		{"exactly 100", Weights{"A": 50, "B": 50}, ""},
		{"101 is within tolerance", Weights{"A": 40, "B": 30, "C": 31}, ""},
		{"99 is within tolerance", Weights{"A": 33, "B": 33, "C": 33}, ""},
		{"95 is invalid", Weights{"A": 40, "B": 30, "C": 25}, "sum to 100, got 95"},
		{"102 is invalid", Weights{"A": 51, "B": 51}, "sum to 100, got 102"},
		{"negative weight", Weights{"A": -1, "B": 101}, "between 0 and 100"},
		{"weight over 100", Weights{"A": 120}, "between 0 and 100"},
		{"empty", Weights{}, "got 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.weights)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvenWeights(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n       int
		share   int
		wantSum int
	}{
		{1, 100, 100},
		{3, 33, 99},
		{4, 25, 100},
		{6, 17, 102},
		{7, 14, 98},
		{8, 12, 96},
	}

	for _, tt := range tests {
		names := make([]string, tt.n)
		for i := range names {
			names[i] = string(rune('A' + i))
		}
		w := EvenWeights(names)
		assert.Len(t, w, tt.n)
		assert.Equal(t, tt.share, w["A"])
		assert.Equal(t, tt.wantSum, w.Sum())
	}

	assert.Empty(t, EvenWeights(nil))
}

func TestParseWeights(t *testing.T) {
	t.Parallel()

	w, err := ParseWeights([]string{"Zero-Vehicle Households (%)=40", " Vehicle Miles Traveled = 60 "})
	require.NoError(t, err)
	assert.Equal(t, Weights{"Zero-Vehicle Households (%)": 40, "Vehicle Miles Traveled": 60}, w)
	assert.Equal(t, []string{"Vehicle Miles Traveled", "Zero-Vehicle Households (%)"}, w.Names())

	_, err = ParseWeights([]string{"novalue"})
	assert.Error(t, err)

	_, err = ParseWeights([]string{"A=forty"})
	assert.Error(t, err)
}
