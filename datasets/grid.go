package datasets

import (
	"os"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/hdf5"
	"github.com/pkg/errors"
)

// GridVariable is one climate field with (ens, time) stacked into a single
// sample axis. Data is row-major [sample][lat][lon] where
// sample = ens*Times + time.
type GridVariable struct {
	Name string
	Data []float32

	Ensembles int
	Times     int
	Samples   int
	Lat       int
	Lon       int

	// Coordinate vectors, nil when the file has no coordinate variable for
	// the dimension.
	EnsembleIDs []string
	Latitudes   []float64
	Longitudes  []float64
}

// Field returns the lat*lon values of sample i. The slice aliases Data.
func (v *GridVariable) Field(i int) []float32 {
	n := v.Lat * v.Lon
	return v.Data[i*n : (i+1)*n]
}

// ReadGridVariable opens a NetCDF file, reads variable name, reorders its
// dimensions to (ens, time, lat, lon) and stacks (ens, time) into samples.
// Packed values are decoded with the CF scale_factor and add_offset
// attributes, and _FillValue or missing_value entries become NaN.
// The file is closed before returning.
func ReadGridVariable(path, name string, dims Dims) (*GridVariable, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer nc.Close()

	vr, err := nc.GetVariable(name)
	switch {
	case isNotFound(err) || (err == nil && vr == nil):
		return nil, errors.Wrapf(ErrMissingVariable, "%s: variable %q", path, name)
	case err != nil:
		return nil, errors.Wrapf(err, "%s: reading %q", path, name)
	}

	values, shape, err := flattenNumeric(vr.Values)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: reading %q", path, name)
	}
	enc, err := readEncoding(vr.Attributes)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: decoding %q", path, name)
	}
	enc.decode(values)
	if len(vr.Dimensions) != 4 || len(shape) != 4 {
		return nil, errors.Wrapf(ErrShapeMismatch, "%s: variable %q has dimensions %v, want 4",
			path, name, vr.Dimensions)
	}

	want := []string{dims.Ensemble, dims.Time, dims.Lat, dims.Lon}
	axes := make([]int, len(want))
	for i, d := range want {
		axes[i] = -1
		for j, have := range vr.Dimensions {
			if have == d {
				axes[i] = j
				break
			}
		}
		if axes[i] < 0 {
			return nil, errors.Wrapf(ErrMissingVariable, "%s: variable %q has no dimension %q (has %v)",
				path, name, d, vr.Dimensions)
		}
	}

	v := &GridVariable{
		Name:      name,
		Data:      transpose(values, shape, axes),
		Ensembles: shape[axes[0]],
		Times:     shape[axes[1]],
		Lat:       shape[axes[2]],
		Lon:       shape[axes[3]],
	}
	v.Samples = v.Ensembles * v.Times

	if v.EnsembleIDs, err = readEnsembleIDs(nc, dims.Ensemble, v.Ensembles); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if v.Latitudes, err = readCoord(nc, dims.Lat, v.Lat); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if v.Longitudes, err = readCoord(nc, dims.Lon, v.Lon); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return v, nil
}

// isNotFound reports whether err is the reader's error for a variable the
// file does not hold.
func isNotFound(err error) bool {
	return errors.Is(err, cdf.ErrNotFound) || errors.Is(err, hdf5.ErrNotFound)
}

// coordVariable returns the coordinate variable named like a dimension, or
// nil when the file has none.
func coordVariable(nc api.Group, name string) (*api.Variable, error) {
	vr, err := nc.GetVariable(name)
	switch {
	case isNotFound(err):
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "coordinate %q", name)
	}
	return vr, nil
}

// readCoord reads the 1-D numeric coordinate variable named like a
// dimension. A file without one yields nil.
func readCoord(nc api.Group, name string, n int) ([]float64, error) {
	vr, err := coordVariable(nc, name)
	if vr == nil || err != nil {
		return nil, err
	}
	values, shape, err := flattenNumeric(vr.Values)
	if err != nil {
		return nil, errors.Wrapf(err, "coordinate %q", name)
	}
	if len(shape) != 1 || shape[0] != n {
		return nil, errors.Wrapf(ErrShapeMismatch, "coordinate %q has shape %v, dimension length is %d",
			name, shape, n)
	}
	return values, nil
}

// readEnsembleIDs reads the ensemble coordinate as member names. Character
// coordinates are used as stored; numeric ones are formatted the way label
// column headers spell them.
func readEnsembleIDs(nc api.Group, name string, n int) ([]string, error) {
	vr, err := coordVariable(nc, name)
	if vr == nil || err != nil {
		return nil, err
	}

	var ids []string
	switch vals := vr.Values.(type) {
	case []string:
		ids = make([]string, len(vals))
		for i, s := range vals {
			ids[i] = trimChar(s)
		}
	case string:
		ids = []string{trimChar(vals)}
	default:
		values, shape, err := flattenNumeric(vr.Values)
		if err != nil {
			return nil, errors.Wrapf(err, "coordinate %q", name)
		}
		if len(shape) != 1 {
			return nil, errors.Wrapf(ErrShapeMismatch, "coordinate %q has shape %v, want 1-D", name, shape)
		}
		ids = make([]string, len(values))
		for i, f := range values {
			ids[i] = formatCoord(f)
		}
	}
	if len(ids) != n {
		return nil, errors.Wrapf(ErrShapeMismatch, "coordinate %q has %d values, dimension length is %d",
			name, len(ids), n)
	}
	return ids, nil
}

// trimChar drops the NUL and blank padding of a fixed-width char value.
func trimChar(s string) string {
	return strings.TrimRight(s, "\x00 ")
}

// transpose copies src, laid out row-major with the given shape, into a new
// float32 buffer whose axis i is src axis axes[i].
func transpose(src []float64, shape, axes []int) []float32 {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	outShape := make([]int, len(axes))
	outStrides := make([]int, len(axes))
	for i, a := range axes {
		outShape[i] = shape[a]
		outStrides[i] = strides[a]
	}

	out := make([]float32, len(src))
	idx := make([]int, len(axes))
	for o := range out {
		off := 0
		for i, k := range idx {
			off += k * outStrides[i]
		}
		out[o] = float32(src[off])

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < outShape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out
}
