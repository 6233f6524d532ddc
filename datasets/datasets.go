package datasets

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// This file provides the loader for the California winter extreme rainfall
// problem. A data set is split into one NetCDF file per climate variable and
// one CSV file holding the precipitation-extreme labels:
//
//	<path>/data/<prefix>_TS.nc
//	<path>/data/<prefix>_PSL.nc
//	<path>/data/<prefix>_TMQ.nc
//	<path>/data/<prefix>_precip_90.csv
//
// Each NetCDF file holds one variable over (ens, time, lat, lon). The loader
// collapses (ens, time) into a single sample axis, ensemble-major, and merges
// the variables into a GridStack. The label CSV has a "Year" index column and
// one column per ensemble member; the columns are concatenated in file order
// so that label i belongs to grid sample i.
//
// Everything is read fully into memory; a full training set is a few hundred
// MB at most.

// Default names used by the California rainfall data files.
const (
	DefaultDataDir     = "data"
	DefaultLabelSuffix = "precip_90"
	DefaultIndexColumn = "Year"

	TrainPrefix = "train"
	TestPrefix  = "test"
)

// DefaultVariables lists the climate fields read for every sample, in the
// order they are stacked: surface temperature, sea-level pressure and total
// precipitable water.
var DefaultVariables = []string{"TS", "PSL", "TMQ"}

// Dims names the four dimensions of a gridded variable file.
type Dims struct {
	Ensemble string
	Time     string
	Lat      string
	Lon      string
}

// DefaultDims returns the dimension names used by the CESM large ensemble
// extracts.
func DefaultDims() Dims {
	return Dims{Ensemble: "ens", Time: "time", Lat: "lat", Lon: "lon"}
}

// Loader reads one prefix ("train" or "test") of a data set. The zero value is
// not usable; start from DefaultLoader.
type Loader struct {
	// DataDir is the sub-directory of the root path holding the files.
	DataDir string

	// Variables are the NetCDF variables to read, one file each.
	Variables []string

	// Dims are the dimension names inside every NetCDF file.
	Dims Dims

	// LabelSuffix and IndexColumn locate and parse the label CSV.
	LabelSuffix string
	IndexColumn string

	// EnsembleIDs, when set, is the ensemble order both sources must declare:
	// the label column names and the grid ensemble coordinate (if the files
	// carry one) are each compared against it.
	EnsembleIDs []string
}

// DefaultLoader returns the loader configuration of the California rainfall
// problem.
func DefaultLoader() Loader {
	return Loader{
		DataDir:     DefaultDataDir,
		Variables:   append([]string(nil), DefaultVariables...),
		Dims:        DefaultDims(),
		LabelSuffix: DefaultLabelSuffix,
		IndexColumn: DefaultIndexColumn,
	}
}

// GridPath returns the NetCDF file path of variable for the given root and
// prefix.
func (l Loader) GridPath(path, prefix, variable string) string {
	return filepath.Join(path, l.DataDir, fmt.Sprintf("%s_%s.nc", prefix, variable))
}

// LabelPath returns the label CSV path for the given root and prefix.
func (l Loader) LabelPath(path, prefix string) string {
	return filepath.Join(path, l.DataDir, fmt.Sprintf("%s_%s.csv", prefix, l.LabelSuffix))
}

// Read loads every variable file and the label file of prefix under path.
// Variable files are opened one at a time and released before the next one is
// read. The returned labels are checked against the grid: one label column per
// ensemble member and one label per sample.
func (l Loader) Read(path, prefix string) (*GridStack, *Labels, error) {
	if len(l.Variables) == 0 {
		return nil, nil, errors.New("loader has no variables configured")
	}

	vars := make([]*GridVariable, 0, len(l.Variables))
	for _, name := range l.Variables {
		ncFile := l.GridPath(path, prefix, name)
		klog.Info(ncFile)
		v, err := ReadGridVariable(ncFile, name, l.Dims)
		if err != nil {
			return nil, nil, err
		}
		vars = append(vars, v)
	}

	grid, err := MergeGrids(vars...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "merging %s variables", prefix)
	}

	labels, err := ReadLabels(l.LabelPath(path, prefix), l.IndexColumn)
	if err != nil {
		return nil, nil, err
	}

	if err := l.checkAlignment(grid, labels); err != nil {
		return nil, nil, err
	}
	return grid, labels, nil
}

// checkAlignment makes the ensemble ordering contract between the grid files
// and the label table explicit.
func (l Loader) checkAlignment(grid *GridStack, labels *Labels) error {
	if len(labels.Columns) != grid.Ensembles {
		return errors.Wrapf(ErrEnsembleMismatch, "label table has %d member columns, grid has %d ensemble members",
			len(labels.Columns), grid.Ensembles)
	}
	if len(labels.Values) != grid.Samples {
		return errors.Wrapf(ErrEnsembleMismatch, "label vector has %d values, grid has %d samples",
			len(labels.Values), grid.Samples)
	}
	if len(l.EnsembleIDs) == 0 {
		return nil
	}
	if !slices.Equal(labels.Columns, l.EnsembleIDs) {
		return errors.Wrapf(ErrEnsembleMismatch, "label columns %v do not match ensemble ids %v",
			labels.Columns, l.EnsembleIDs)
	}
	if grid.EnsembleIDs != nil && !slices.Equal(grid.EnsembleIDs, l.EnsembleIDs) {
		return errors.Wrapf(ErrEnsembleMismatch, "grid ensemble coordinate %v does not match ensemble ids %v",
			grid.EnsembleIDs, l.EnsembleIDs)
	}
	return nil
}

// ReadData reads the data set of prefix under path with the default loader,
// returning the gridded variables and the flat label vector.
func ReadData(path, prefix string) (*GridStack, []float32, error) {
	grid, labels, err := DefaultLoader().Read(path, prefix)
	if err != nil {
		return nil, nil, err
	}
	return grid, labels.Values, nil
}

// TrainData reads the training set. An empty path means the current
// directory.
func TrainData(path string) (*GridStack, []float32, error) {
	if path == "" {
		path = "./"
	}
	return ReadData(path, TrainPrefix)
}

// TestData reads the held-out test set. An empty path means "./data".
func TestData(path string) (*GridStack, []float32, error) {
	if path == "" {
		path = "./data"
	}
	return ReadData(path, TestPrefix)
}
