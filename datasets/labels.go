package datasets

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// Labels is the flattened precipitation-extreme label table. Values holds
// every member column concatenated in file order, so Values[m*len(Index)+t]
// is member Columns[m] at row Index[t].
type Labels struct {
	Values  []float32
	Columns []string
	Index   []string
}

// PerMember returns the number of labels in each member column.
func (l *Labels) PerMember() int {
	return len(l.Index)
}

// Positives counts labels equal to 1.
func (l *Labels) Positives() int {
	n := 0
	for _, v := range l.Values {
		if v == 1 {
			n++
		}
	}
	return n
}

// ReadLabels reads a label CSV with an index column and one 0/1 column per
// ensemble member.
func ReadLabels(path, indexCol string) (*Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.HasHeader(true), dataframe.DetectTypes(true))
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "parsing %s", path)
	}

	names := df.Names()
	hasIndex := false
	for _, n := range names {
		if n == indexCol {
			hasIndex = true
			break
		}
	}
	if !hasIndex {
		return nil, errors.Wrapf(ErrMissingVariable, "%s: index column %q not found in %v", path, indexCol, names)
	}

	labels := &Labels{
		Index: df.Col(indexCol).Records(),
	}
	members := df.Drop(indexCol)
	if members.Err != nil {
		return nil, errors.Wrapf(members.Err, "%s: dropping index column", path)
	}

	labels.Columns = members.Names()
	labels.Values = make([]float32, 0, members.Nrow()*members.Ncol())
	for _, name := range labels.Columns {
		for row, v := range members.Col(name).Float() {
			if v != 0 && v != 1 {
				return nil, errors.Wrapf(ErrInvalidLabel, "%s: column %q row %d has value %v",
					path, name, row, v)
			}
			labels.Values = append(labels.Values, float32(v))
		}
	}
	return labels, nil
}

// WriteLabelCSV writes a label table in the layout ReadLabels expects: the
// index column first, then one column per member with values[m] holding that
// member's labels.
func WriteLabelCSV(path, indexCol string, index []int, columns []string, values [][]int) error {
	if len(columns) != len(values) {
		return errors.Errorf("%d column names for %d columns", len(columns), len(values))
	}
	cols := make([]series.Series, 0, len(columns)+1)
	cols = append(cols, series.New(index, series.Int, indexCol))
	for m, name := range columns {
		if len(values[m]) != len(index) {
			return errors.Errorf("column %q has %d rows, index has %d", name, len(values[m]), len(index))
		}
		cols = append(cols, series.New(values[m], series.Int, name))
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return errors.Wrap(df.Err, "building label table")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}

// MemberColumns returns the column names "1".."n", the naming used by the
// CESM ensemble label extracts.
func MemberColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = strconv.Itoa(i + 1)
	}
	return cols
}
