package prediction

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binary = []int{0, 1}

func TestFromLabels(t *testing.T) {
	p, err := FromLabels(binary, []float32{0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []float64{0, 1, 1}, p.PositiveProba())
	assert.Equal(t, []int{0, 1, 1}, p.LabelIndex())
	assert.Equal(t, []int{0, 1, 2}, p.ValidIndexes())

	_, err = FromLabels(binary, []float32{0, 2})
	assert.True(t, errors.Is(err, ErrUnknownLabel), "got %v", err)
}

func TestFromPositiveProba(t *testing.T) {
	p, err := FromPositiveProba(binary, []float64{0.25, math.NaN(), 0.9})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, p.ValidIndexes())
	assert.Equal(t, []int{0, -1, 1}, p.LabelIndex())
	assert.InDelta(t, 0.75, p.Proba.At(0, 0), 1e-12)

	_, err = FromPositiveProba(binary, []float64{1.5})
	assert.Error(t, err)
	_, err = FromPositiveProba([]int{0, 1, 2}, []float64{0.5})
	assert.Error(t, err)
}

func TestPlaceAndSubset(t *testing.T) {
	full := New(binary, 4)
	assert.Empty(t, full.ValidIndexes())

	sub, err := FromPositiveProba(binary, []float64{0.1, 0.8})
	require.NoError(t, err)
	require.NoError(t, full.Place([]int{3, 1}, sub))
	assert.Equal(t, []int{1, 3}, full.ValidIndexes())

	back := full.Subset([]int{3, 1})
	assert.Equal(t, []float64{0.1, 0.8}, back.PositiveProba())

	assert.True(t, errors.Is(full.Place([]int{0}, sub), ErrShape))
}

// TestCombine averages two fold predictions with disjoint and overlapping
// rows, ignoring rows a fold did not predict.
func TestCombine(t *testing.T) {
	a, err := FromPositiveProba(binary, []float64{0.2, 0.4, math.NaN()})
	require.NoError(t, err)
	b, err := FromPositiveProba(binary, []float64{0.6, math.NaN(), math.NaN()})
	require.NoError(t, err)

	c, err := Combine([]*Predictions{a, b})
	require.NoError(t, err)
	got := c.PositiveProba()
	assert.InDelta(t, 0.4, got[0], 1e-12)
	assert.InDelta(t, 0.4, got[1], 1e-12)
	assert.True(t, math.IsNaN(got[2]))

	_, err = Combine([]*Predictions{a, New(binary, 2)})
	assert.True(t, errors.Is(err, ErrShape))
	_, err = Combine(nil)
	assert.Error(t, err)
}
