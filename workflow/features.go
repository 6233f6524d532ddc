package workflow

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/djgagne/california-rainfall-test/datasets"
)

// Region is a latitude/longitude box, bounds inclusive.
type Region struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

func (r Region) String() string {
	return fmt.Sprintf("%g:%g,%g:%g", r.LatMin, r.LatMax, r.LonMin, r.LonMax)
}

// cells returns the flat lat*lon offsets inside the region.
func (r Region) cells(grid *datasets.GridStack) ([]int, error) {
	if len(grid.Latitudes) != grid.Lat || len(grid.Longitudes) != grid.Lon {
		return nil, errors.New("region selection needs lat and lon coordinates")
	}
	var out []int
	for i, lat := range grid.Latitudes {
		if lat < r.LatMin || lat > r.LatMax {
			continue
		}
		for j, lon := range grid.Longitudes {
			if lon >= r.LonMin && lon <= r.LonMax {
				out = append(out, i*grid.Lon+j)
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.Errorf("region %s holds no grid cells", r)
	}
	return out, nil
}

func variables(grid *datasets.GridStack, names []string) ([]*datasets.GridVariable, error) {
	if len(names) == 0 {
		names = grid.Names
	}
	out := make([]*datasets.GridVariable, len(names))
	for k, name := range names {
		v, ok := grid.Variable(name)
		if !ok {
			return nil, errors.Wrapf(datasets.ErrMissingVariable, "%q", name)
		}
		out[k] = v
	}
	return out, nil
}

// FieldStats summarizes each variable by the mean and standard deviation
// of its field, giving two features per variable.
type FieldStats struct {
	// Variables selects and orders the fields; empty means all.
	Variables []string
	// Region restricts the statistics to a box; nil means the whole grid.
	Region *Region
}

// Name implements FeatureExtractor.
func (f FieldStats) Name() string {
	name := "field_stats"
	if len(f.Variables) > 0 {
		name += "[" + strings.Join(f.Variables, ",") + "]"
	}
	if f.Region != nil {
		name += "@" + f.Region.String()
	}
	return name
}

// Transform implements FeatureExtractor.
func (f FieldStats) Transform(grid *datasets.GridStack, indices []int) ([][]float32, error) {
	vars, err := variables(grid, f.Variables)
	if err != nil {
		return nil, err
	}
	var cells []int
	if f.Region != nil {
		if cells, err = f.Region.cells(grid); err != nil {
			return nil, err
		}
	}

	n := grid.Lat * grid.Lon
	if cells != nil {
		n = len(cells)
	}
	buf := make([]float64, n)
	out := make([][]float32, len(indices))
	for k, i := range indices {
		if i < 0 || i >= grid.Len() {
			return nil, errors.Errorf("sample %d out of range [0, %d)", i, grid.Len())
		}
		row := make([]float32, 0, 2*len(vars))
		for _, v := range vars {
			field := v.Field(i)
			if cells == nil {
				for c, val := range field {
					buf[c] = float64(val)
				}
			} else {
				for c, off := range cells {
					buf[c] = float64(field[off])
				}
			}
			mean, std := stat.PopMeanStdDev(buf, nil)
			row = append(row, float32(mean), float32(std))
		}
		out[k] = row
	}
	return out, nil
}

// Coarsen block-averages each field over Factor x Factor cells and
// concatenates the pooled fields. Trailing rows and columns that do not fill
// a block are dropped.
type Coarsen struct {
	Factor    int
	Variables []string
}

// Name implements FeatureExtractor.
func (c Coarsen) Name() string {
	name := fmt.Sprintf("coarsen_%d", c.Factor)
	if len(c.Variables) > 0 {
		name += "[" + strings.Join(c.Variables, ",") + "]"
	}
	return name
}

// Transform implements FeatureExtractor.
func (c Coarsen) Transform(grid *datasets.GridStack, indices []int) ([][]float32, error) {
	if c.Factor < 1 {
		return nil, errors.Errorf("coarsening factor must be positive, got %d", c.Factor)
	}
	vars, err := variables(grid, c.Variables)
	if err != nil {
		return nil, err
	}
	rows, cols := grid.Lat/c.Factor, grid.Lon/c.Factor
	if rows == 0 || cols == 0 {
		return nil, errors.Errorf("factor %d exceeds the %dx%d grid", c.Factor, grid.Lat, grid.Lon)
	}
	inv := 1 / float32(c.Factor*c.Factor)

	out := make([][]float32, len(indices))
	for k, i := range indices {
		if i < 0 || i >= grid.Len() {
			return nil, errors.Errorf("sample %d out of range [0, %d)", i, grid.Len())
		}
		row := make([]float32, 0, len(vars)*rows*cols)
		for _, v := range vars {
			field := v.Field(i)
			for br := range rows {
				for bc := range cols {
					var sum float32
					for r := br * c.Factor; r < (br+1)*c.Factor; r++ {
						for q := bc * c.Factor; q < (bc+1)*c.Factor; q++ {
							sum += field[r*grid.Lon+q]
						}
					}
					row = append(row, sum*inv)
				}
			}
		}
		out[k] = row
	}
	return out, nil
}
