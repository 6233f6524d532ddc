package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() SyntheticConfig {
	cfg := DefaultSyntheticConfig()
	cfg.Times = 7
	cfg.Lat = 4
	cfg.Lon = 5
	return cfg
}

// TestReadData_RoundTrip writes a synthetic training set and verifies that the
// loader stacks (ens, time) into samples and concatenates label columns.
func TestReadData_RoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := smallConfig()
	require.NoError(t, DefaultLoader().WriteSynthetic(root, TrainPrefix, cfg))

	grid, y, err := TrainData(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"TS", "PSL", "TMQ"}, grid.Names)
	assert.Equal(t, cfg.Ensembles*cfg.Times, grid.Samples)
	assert.Equal(t, cfg.Lat, grid.Lat)
	assert.Equal(t, cfg.Lon, grid.Lon)
	assert.Len(t, y, grid.Samples)
	assert.Equal(t, []string{"1", "2", "3"}, grid.EnsembleIDs)

	vars, labels, err := Synthesize(cfg)
	require.NoError(t, err)
	for _, v := range vars {
		got, ok := grid.Variable(v.Name)
		require.True(t, ok, v.Name)
		if diff := cmp.Diff(v.Data, got.Data); diff != "" {
			t.Fatalf("%s data mismatch (-want +got):\n%s", v.Name, diff)
		}
	}

	want := make([]float32, 0, len(y))
	for _, col := range labels {
		for _, v := range col {
			want = append(want, float32(v))
		}
	}
	assert.Equal(t, want, y)
}

func TestReadData_Idempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, DefaultLoader().WriteSynthetic(root, TestPrefix, smallConfig()))

	g1, y1, err := TestData(root)
	require.NoError(t, err)
	g2, y2, err := TestData(root)
	require.NoError(t, err)

	assert.Equal(t, y1, y2)
	for _, name := range g1.Names {
		assert.Equal(t, g1.Vars[name].Data, g2.Vars[name].Data, name)
	}
}

func TestReadData_MissingFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, DefaultLoader().WriteSynthetic(root, TrainPrefix, smallConfig()))
	require.NoError(t, os.Remove(DefaultLoader().GridPath(root, TrainPrefix, "PSL")))

	_, _, err := ReadData(root, TrainPrefix)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	_, _, err = ReadData(root, "nope")
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestReadData_ShapeMismatch(t *testing.T) {
	root := t.TempDir()
	l := DefaultLoader()
	require.NoError(t, l.WriteSynthetic(root, TrainPrefix, smallConfig()))

	// overwrite TMQ with a file on a coarser grid
	other := smallConfig()
	other.Lon = 3
	vars, _, err := Synthesize(other)
	require.NoError(t, err)
	require.NoError(t, WriteGridFile(l.GridPath(root, TrainPrefix, "TMQ"), vars[2], l.Dims))

	_, _, err = l.Read(root, TrainPrefix)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
}

func TestLoader_EnsembleIDs(t *testing.T) {
	root := t.TempDir()
	l := DefaultLoader()
	require.NoError(t, l.WriteSynthetic(root, TrainPrefix, smallConfig()))

	l.EnsembleIDs = []string{"1", "2", "3"}
	_, labels, err := l.Read(root, TrainPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, labels.Columns)

	l.EnsembleIDs = []string{"2", "1", "3"}
	_, _, err = l.Read(root, TrainPrefix)
	assert.True(t, errors.Is(err, ErrEnsembleMismatch), "got %v", err)
}

func TestLoader_LabelLengthMismatch(t *testing.T) {
	root := t.TempDir()
	l := DefaultLoader()
	require.NoError(t, l.WriteSynthetic(root, TrainPrefix, smallConfig()))

	// two member columns for a three member grid
	require.NoError(t, WriteLabelCSV(l.LabelPath(root, TrainPrefix), l.IndexColumn,
		[]int{1, 2, 3, 4, 5, 6, 7}, []string{"1", "2"},
		[][]int{{0, 0, 1, 0, 0, 0, 0}, {1, 0, 0, 0, 0, 0, 0}}))

	_, _, err := l.Read(root, TrainPrefix)
	assert.True(t, errors.Is(err, ErrEnsembleMismatch), "got %v", err)
}

func TestReadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	require.NoError(t, os.WriteFile(path, []byte("Year,a,b\n1920,0,1\n1921,1,0\n1922,0,0\n"), 0644))

	labels, err := ReadLabels(path, "Year")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, labels.Columns)
	assert.Equal(t, []string{"1920", "1921", "1922"}, labels.Index)
	assert.Equal(t, []float32{0, 1, 0, 1, 0, 0}, labels.Values)
	assert.Equal(t, 3, labels.PerMember())
	assert.Equal(t, 2, labels.Positives())

	_, err = ReadLabels(path, "year")
	assert.True(t, errors.Is(err, ErrMissingVariable), "got %v", err)
}

func TestReadLabels_NonBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	require.NoError(t, os.WriteFile(path, []byte("Year,a\n1920,0\n1921,2\n"), 0644))

	_, err := ReadLabels(path, "Year")
	assert.True(t, errors.Is(err, ErrInvalidLabel), "got %v", err)
}
