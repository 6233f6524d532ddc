package datasets

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/hdf5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ncVar struct {
	name   string
	values any
	dims   []string
	attrs  []attr
}

// writeNC writes vars to a NetCDF classic file as given, without the
// reordering WriteGridFile applies.
func writeNC(t *testing.T, path string, vars ...ncVar) {
	t.Helper()
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	for _, v := range vars {
		if err := addVar(cw, v.name, v.values, v.dims, v.attrs...); err != nil {
			cw.Close()
			t.Fatalf("%s: %v", v.name, err)
		}
	}
	require.NoError(t, cw.Close())
}

func TestReadGridVariable_PackedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packed.nc")
	writeNC(t, path, ncVar{
		name:   "TS",
		values: [][][][]int16{{{{100, 200, -999, -1}}}},
		dims:   []string{"ens", "time", "lat", "lon"},
		attrs: []attr{
			{attrScaleFactor, 0.5},
			{attrAddOffset, 250.0},
			{attrFillValue, int16(-999)},
			{attrMissingValue, int16(-1)},
		},
	})

	v, err := ReadGridVariable(path, "TS", DefaultDims())
	require.NoError(t, err)
	require.Len(t, v.Data, 4)
	assert.Equal(t, []float32{300, 350}, v.Data[:2])
	assert.True(t, math.IsNaN(float64(v.Data[2])), "fill value decoded to %v", v.Data[2])
	assert.True(t, math.IsNaN(float64(v.Data[3])), "missing value decoded to %v", v.Data[3])
}

func TestReadGridVariable_BadEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nc")
	writeNC(t, path, ncVar{
		name:   "TS",
		values: [][][][]float32{{{{1, 2}}}},
		dims:   []string{"ens", "time", "lat", "lon"},
		attrs:  []attr{{attrScaleFactor, "half"}},
	})

	_, err := ReadGridVariable(path, "TS", DefaultDims())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingVariable), "got %v", err)
	assert.Contains(t, err.Error(), attrScaleFactor)
}

// TestReadGridVariable_PermutedDims reads a file stored as (lat, lon, ens,
// time) and expects the canonical (ens, time, lat, lon) sample layout.
func TestReadGridVariable_PermutedDims(t *testing.T) {
	const ens, times, lat, lon = 2, 2, 2, 3
	value := func(e, ti, la, lo int) float32 {
		return float32(1000*e + 100*ti + 10*la + lo)
	}
	stored := make([][][][]float32, lat)
	for la := range stored {
		stored[la] = make([][][]float32, lon)
		for lo := range stored[la] {
			stored[la][lo] = make([][]float32, ens)
			for e := range stored[la][lo] {
				stored[la][lo][e] = make([]float32, times)
				for ti := range stored[la][lo][e] {
					stored[la][lo][e][ti] = value(e, ti, la, lo)
				}
			}
		}
	}

	path := filepath.Join(t.TempDir(), "permuted.nc")
	writeNC(t, path,
		ncVar{name: "PSL", values: stored, dims: []string{"lat", "lon", "ens", "time"}},
		ncVar{name: "lat", values: []float64{30, 40}, dims: []string{"lat"}},
		ncVar{name: "ens", values: []int32{7, 8}, dims: []string{"ens"}},
	)

	v, err := ReadGridVariable(path, "PSL", DefaultDims())
	require.NoError(t, err)
	assert.Equal(t, ens, v.Ensembles)
	assert.Equal(t, times, v.Times)
	assert.Equal(t, ens*times, v.Samples)
	assert.Equal(t, lat, v.Lat)
	assert.Equal(t, lon, v.Lon)
	assert.Equal(t, []float64{30, 40}, v.Latitudes)
	assert.Nil(t, v.Longitudes)
	assert.Equal(t, []string{"7", "8"}, v.EnsembleIDs)

	for e := range ens {
		for ti := range times {
			field := v.Field(e*times + ti)
			for la := range lat {
				for lo := range lon {
					assert.Equal(t, value(e, ti, la, lo), field[la*lon+lo], "ens=%d time=%d lat=%d lon=%d", e, ti, la, lo)
				}
			}
		}
	}
}

func TestReadGridVariable_CharEnsembleCoord(t *testing.T) {
	l := DefaultLoader()
	v := gridVar("TS", 2, 3, 2, 2)
	v.EnsembleIDs = []string{"m1", "m2"}
	path := filepath.Join(t.TempDir(), "named.nc")
	require.NoError(t, WriteGridFile(path, v, l.Dims))

	got, err := ReadGridVariable(path, "TS", l.Dims)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, got.EnsembleIDs)
	assert.Equal(t, v.Data, got.Data)
}

func TestReadGridVariable_MissingVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ts.nc")
	require.NoError(t, WriteGridFile(path, gridVar("TS", 1, 2, 2, 2), DefaultDims()))

	_, err := ReadGridVariable(path, "PRECT", DefaultDims())
	assert.True(t, errors.Is(err, ErrMissingVariable), "got %v", err)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(cdf.ErrNotFound))
	assert.True(t, isNotFound(errors.Wrap(hdf5.ErrNotFound, "group")))
	assert.False(t, isNotFound(cdf.ErrCorruptedFile))
	assert.False(t, isNotFound(nil))
}
