package datasets

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranspose(t *testing.T) {
	// source laid out as (lat=2, ens=2, time=3)
	shape := []int{2, 2, 3}
	src := make([]float64, 12)
	for la := range 2 {
		for e := range 2 {
			for ti := range 3 {
				src[la*6+e*3+ti] = float64(100*la + 10*e + ti)
			}
		}
	}

	// reorder to (ens, time, lat)
	got := transpose(src, shape, []int{1, 2, 0})
	want := []float32{0, 100, 1, 101, 2, 102, 10, 110, 11, 111, 12, 112}
	assert.Equal(t, want, got)
}

func TestFlattenNumeric(t *testing.T) {
	values, shape, err := flattenNumeric([][]int16{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, values)

	_, _, err = flattenNumeric([][]float32{{1, 2}, {3}})
	assert.Error(t, err)

	_, _, err = flattenNumeric([]string{"a"})
	assert.Error(t, err)
}

func gridVar(name string, ens, times, lat, lon int) *GridVariable {
	data := make([]float32, ens*times*lat*lon)
	for i := range data {
		data[i] = float32(i)
	}
	return &GridVariable{
		Name: name, Data: data,
		Ensembles: ens, Times: times, Samples: ens * times,
		Lat: lat, Lon: lon,
	}
}

// TestMergeGrids_FullExtent checks the extent of the real California files:
// three members of 385 time steps on a 32x64 grid give 1155 samples.
func TestMergeGrids_FullExtent(t *testing.T) {
	g, err := MergeGrids(
		gridVar("TS", 3, 385, 32, 64),
		gridVar("PSL", 3, 385, 32, 64),
		gridVar("TMQ", 3, 385, 32, 64),
	)
	require.NoError(t, err)
	assert.Equal(t, 1155, g.Samples)
	assert.Equal(t, 1155, g.Len())
	assert.Equal(t, 0, g.Member(384))
	assert.Equal(t, 1, g.Member(385))
	assert.Equal(t, 2, g.Member(1154))
}

func TestMergeGrids_Mismatch(t *testing.T) {
	_, err := MergeGrids(gridVar("TS", 2, 3, 4, 5), gridVar("PSL", 2, 3, 4, 6))
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)

	_, err = MergeGrids(gridVar("TS", 2, 3, 4, 5), gridVar("PSL", 3, 2, 4, 5))
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)

	a, b := gridVar("TS", 1, 1, 2, 2), gridVar("PSL", 1, 1, 2, 2)
	a.Latitudes = []float64{10, 20}
	b.Latitudes = []float64{10, 25}
	_, err = MergeGrids(a, b)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)

	_, err = MergeGrids(a, gridVar("TS", 1, 1, 2, 2))
	assert.Error(t, err)
}

func TestGridStack_SampleAndTensor(t *testing.T) {
	ts := gridVar("TS", 1, 2, 2, 2)
	psl := gridVar("PSL", 1, 2, 2, 2)
	for i := range psl.Data {
		psl.Data[i] = -psl.Data[i]
	}
	g, err := MergeGrids(ts, psl)
	require.NoError(t, err)

	s, err := g.Sample(1)
	require.NoError(t, err)
	// cells of sample 1 are values 4..7, interleaved with their negation
	assert.Equal(t, []float32{4, -4, 5, -5, 6, -6, 7, -7}, s)

	_, err = g.Sample(2)
	assert.Error(t, err)

	tensor, err := g.ToGomlxTensor()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2}, tensor.Shape().Dimensions)
}

func TestGridStack_Checksum(t *testing.T) {
	merge := func() *GridStack {
		g, err := MergeGrids(gridVar("TS", 1, 2, 2, 2), gridVar("PSL", 1, 2, 2, 2))
		require.NoError(t, err)
		return g
	}
	a, b := merge(), merge()
	assert.Equal(t, a.Checksum(), b.Checksum())

	b.Vars["PSL"].Data[7] = -1
	assert.NotEqual(t, a.Checksum(), b.Checksum())

	c := merge()
	c.Names = []string{"PSL", "TS"}
	assert.NotEqual(t, a.Checksum(), c.Checksum(), "variable order is part of the data")
}
