package datasets

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/pkg/errors"
)

// WriteGridFile writes v as a NetCDF classic file holding one variable over
// (ens, time, lat, lon) plus whichever coordinate variables v carries.
// Numeric ensemble ids are stored as doubles, any others as chars. It is
// the inverse of ReadGridVariable and exists for synthetic data sets and
// fixtures.
func WriteGridFile(path string, v *GridVariable, dims Dims) error {
	if len(v.Data) != v.Ensembles*v.Times*v.Lat*v.Lon {
		return errors.Wrapf(ErrShapeMismatch, "%s holds %d values for (ens=%d, time=%d, lat=%d, lon=%d)",
			v.Name, len(v.Data), v.Ensembles, v.Times, v.Lat, v.Lon)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}

	values := make([][][][]float32, v.Ensembles)
	idx := 0
	for e := range values {
		values[e] = make([][][]float32, v.Times)
		for t := range values[e] {
			values[e][t] = make([][]float32, v.Lat)
			for la := range values[e][t] {
				values[e][t][la] = v.Data[idx : idx+v.Lon]
				idx += v.Lon
			}
		}
	}

	if err := addVar(cw, v.Name, values, []string{dims.Ensemble, dims.Time, dims.Lat, dims.Lon}); err != nil {
		cw.Close()
		return errors.Wrapf(err, "%s", path)
	}

	if v.EnsembleIDs != nil {
		if err := addVar(cw, dims.Ensemble, ensembleCoord(v.EnsembleIDs), []string{dims.Ensemble}); err != nil {
			cw.Close()
			return errors.Wrapf(err, "%s", path)
		}
	}
	if v.Latitudes != nil {
		if err := addVar(cw, dims.Lat, v.Latitudes, []string{dims.Lat}); err != nil {
			cw.Close()
			return errors.Wrapf(err, "%s", path)
		}
	}
	if v.Longitudes != nil {
		if err := addVar(cw, dims.Lon, v.Longitudes, []string{dims.Lon}); err != nil {
			cw.Close()
			return errors.Wrapf(err, "%s", path)
		}
	}

	if err := cw.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}
	return nil
}

// ensembleCoord returns ids as float64 values when all of them parse as
// numbers and as strings otherwise.
func ensembleCoord(ids []string) any {
	nums := make([]float64, len(ids))
	for i, s := range ids {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ids
		}
		nums[i] = f
	}
	return nums
}

// attr is an extra variable attribute written after long_name.
type attr struct {
	name  string
	value any
}

func addVar(cw *cdf.CDFWriter, name string, values any, dims []string, extra ...attr) error {
	keys := []string{"long_name"}
	vals := map[string]any{"long_name": name}
	for _, a := range extra {
		keys = append(keys, a.name)
		vals[a.name] = a.value
	}
	attrs, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return errors.Wrapf(err, "attributes of %q", name)
	}
	err = cw.AddVar(name, api.Variable{
		Values:     values,
		Dimensions: dims,
		Attributes: attrs,
	})
	return errors.Wrapf(err, "adding variable %q", name)
}
