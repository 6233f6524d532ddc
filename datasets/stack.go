package datasets

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// GridStack is the merged set of gridded variables keyed by name. All
// variables share the same sample, latitude and longitude extents.
type GridStack struct {
	// Names keeps the variable order used for features and tensors.
	Names []string
	Vars  map[string]*GridVariable

	Ensembles int
	Times     int
	Samples   int
	Lat       int
	Lon       int

	EnsembleIDs []string
	Latitudes   []float64
	Longitudes  []float64
}

// MergeGrids combines variables into one GridStack, failing with
// ErrShapeMismatch when their extents or coordinates disagree.
func MergeGrids(vars ...*GridVariable) (*GridStack, error) {
	if len(vars) == 0 {
		return nil, errors.New("no variables to merge")
	}
	first := vars[0]
	g := &GridStack{
		Names:       make([]string, 0, len(vars)),
		Vars:        make(map[string]*GridVariable, len(vars)),
		Ensembles:   first.Ensembles,
		Times:       first.Times,
		Samples:     first.Samples,
		Lat:         first.Lat,
		Lon:         first.Lon,
		EnsembleIDs: first.EnsembleIDs,
		Latitudes:   first.Latitudes,
		Longitudes:  first.Longitudes,
	}
	for _, v := range vars {
		if _, dup := g.Vars[v.Name]; dup {
			return nil, errors.Errorf("variable %q given twice", v.Name)
		}
		if v.Ensembles != g.Ensembles || v.Times != g.Times || v.Lat != g.Lat || v.Lon != g.Lon {
			return nil, errors.Wrapf(ErrShapeMismatch, "%s is (ens=%d, time=%d, lat=%d, lon=%d), %s is (ens=%d, time=%d, lat=%d, lon=%d)",
				v.Name, v.Ensembles, v.Times, v.Lat, v.Lon,
				first.Name, g.Ensembles, g.Times, g.Lat, g.Lon)
		}
		if len(v.Data) != v.Samples*v.Lat*v.Lon {
			return nil, errors.Wrapf(ErrShapeMismatch, "%s holds %d values for %d samples of %dx%d",
				v.Name, len(v.Data), v.Samples, v.Lat, v.Lon)
		}

		var err error
		if g.EnsembleIDs, err = mergeCoord(g.EnsembleIDs, v.EnsembleIDs, v.Name, "ensemble"); err != nil {
			return nil, err
		}
		if g.Latitudes, err = mergeCoord(g.Latitudes, v.Latitudes, v.Name, "latitude"); err != nil {
			return nil, err
		}
		if g.Longitudes, err = mergeCoord(g.Longitudes, v.Longitudes, v.Name, "longitude"); err != nil {
			return nil, err
		}

		g.Names = append(g.Names, v.Name)
		g.Vars[v.Name] = v
	}
	return g, nil
}

func mergeCoord[T comparable](have, got []T, name, what string) ([]T, error) {
	switch {
	case got == nil:
		return have, nil
	case have == nil:
		return got, nil
	case !slices.Equal(have, got):
		return nil, errors.Wrapf(ErrShapeMismatch, "%s %s coordinate differs", name, what)
	}
	return have, nil
}

// Variable returns the named variable.
func (g *GridStack) Variable(name string) (*GridVariable, bool) {
	v, ok := g.Vars[name]
	return v, ok
}

// Len returns the number of samples.
func (g *GridStack) Len() int {
	return g.Samples
}

// Member returns the ensemble member index of sample i.
func (g *GridStack) Member(i int) int {
	if g.Times == 0 {
		return 0
	}
	return i / g.Times
}

// Sample returns the channel-last values of sample i: lat*lon*len(Names)
// floats, variables interleaved per grid cell.
func (g *GridStack) Sample(i int) ([]float32, error) {
	if i < 0 || i >= g.Samples {
		return nil, errors.Errorf("sample %d out of range [0, %d)", i, g.Samples)
	}
	channels := len(g.Names)
	cells := g.Lat * g.Lon
	out := make([]float32, cells*channels)
	for c, name := range g.Names {
		field := g.Vars[name].Field(i)
		for k, val := range field {
			out[k*channels+c] = val
		}
	}
	return out, nil
}

// ToGomlxTensor returns the whole stack as a float32 tensor shaped
// [sample, lat, lon, variable].
func (g *GridStack) ToGomlxTensor() (*tensors.Tensor, error) {
	channels := len(g.Names)
	if g.Samples == 0 || g.Lat == 0 || g.Lon == 0 || channels == 0 {
		return nil, errors.New("empty grid stack")
	}
	per := g.Lat * g.Lon * channels
	flat := make([]float32, g.Samples*per)
	for i := range g.Samples {
		s, err := g.Sample(i)
		if err != nil {
			return nil, err
		}
		copy(flat[i*per:], s)
	}
	return tensors.FromFlatDataAndDimensions(flat, g.Samples, g.Lat, g.Lon, channels), nil
}

// Checksum hashes the variable names, extents and values of g. Two stacks
// with the same checksum hold the same data for every practical purpose.
func (g *GridStack) Checksum() uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 1<<14)
	for _, n := range []int{g.Samples, g.Lat, g.Lon} {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(n))
	}
	for _, name := range g.Names {
		buf = append(buf, name...)
		buf = append(buf, 0)
		for _, f := range g.Vars[name].Data {
			if len(buf)+4 > cap(buf) {
				_, _ = d.Write(buf)
				buf = buf[:0]
			}
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	_, _ = d.Write(buf)
	return d.Sum64()
}
