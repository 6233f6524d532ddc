package problem

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djgagne/california-rainfall-test/crossval"
	"github.com/djgagne/california-rainfall-test/datasets"
	"github.com/djgagne/california-rainfall-test/workflow"
)

const testTimes = 60

// writeData writes a small synthetic train set (3 members) and test set
// (2 members) under one root.
func writeData(t *testing.T, p *Problem) string {
	t.Helper()
	root := t.TempDir()
	cfg := datasets.SyntheticConfig{Ensembles: 3, Times: testTimes, Lat: 4, Lon: 8, FirstYear: 1920, Seed: 3, Threshold: 1}
	require.NoError(t, p.Loader.WriteSynthetic(root, datasets.TrainPrefix, cfg))
	cfg.Ensembles, cfg.Seed = 2, 4
	require.NoError(t, p.Loader.WriteSynthetic(root, datasets.TestPrefix, cfg))
	return root
}

func smallProblem() *Problem {
	p := California()
	p.CV.BlockSize = testTimes
	return p
}

func TestCalifornia(t *testing.T) {
	p := California()
	assert.Equal(t, "California Winter Extreme Rainfall Prediction", p.Title)
	assert.Equal(t, []int{0, 1}, p.LabelNames)
	assert.Equal(t, []string{"BSS", "BS", "BS Rel", "BS Res", "AUC"}, p.ScoreNames())
	assert.Equal(t, crossval.Blocked{BlockSize: 1155, Remainder: crossval.MergeRemainder}, p.CV)
	assert.Equal(t, []string{"TS", "PSL", "TMQ"}, p.Loader.Variables)
	require.NotNil(t, p.Workflow)
	assert.True(t, p.Workflow.Standardize)

	st, ok := p.ScoreType("AUC")
	require.True(t, ok)
	assert.Equal(t, 3, st.Precision())
	_, ok = p.ScoreType("RMSE")
	assert.False(t, ok)

	for _, name := range Classifiers {
		wf, err := NewWorkflow(name, workflow.FieldStats{})
		require.NoError(t, err, name)
		clf, err := wf.NewClassifier()
		require.NoError(t, err, name)
		assert.NotNil(t, clf)
	}
	_, err := NewWorkflow("forest", workflow.FieldStats{})
	assert.Error(t, err)
	assert.NotNil(t, p.Workflow)
	assert.Panics(t, func() { mustWorkflow("forest", workflow.FieldStats{}) })
}

func TestFolds(t *testing.T) {
	p := California()
	_, n, err := p.Folds(make([]float32, 3465))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, n, err = p.Folds(make([]float32, 1000))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEvaluate(t *testing.T) {
	p := smallProblem()
	root := writeData(t, p)

	grid, y, err := p.TrainData(root)
	require.NoError(t, err)
	require.Equal(t, 3*testTimes, grid.Len())
	testGrid, testY, err := p.TestData(root)
	require.NoError(t, err)
	require.Equal(t, 2*testTimes, testGrid.Len())

	train := &Data{Grid: grid, Y: y}
	test := &Data{Grid: testGrid, Y: testY}
	cache := filepath.Join(t.TempDir(), "train.gob")
	r, err := p.Evaluate(context.Background(), train, test, EvalOptions{Workers: 3, TrainCache: cache})
	require.NoError(t, err)
	_, err = os.Stat(cache)
	assert.NoError(t, err)

	require.Len(t, r.Folds, 3)
	for k, f := range r.Folds {
		assert.Equal(t, k, f.Group)
		assert.Equal(t, 2*testTimes, f.NTrain)
		assert.Equal(t, testTimes, f.NValid)
		assert.Len(t, f.Valid, 5)
		assert.Len(t, f.Test, 5)
	}
	assert.Len(t, r.OutOfFold.ValidIndexes(), 3*testTimes, "every sample is held out once")
	assert.Len(t, r.BaggedTest.ValidIndexes(), 2*testTimes)

	require.Len(t, r.Valid, 5)
	bs := r.Valid[1]
	assert.True(t, bs.Mean >= 0 && bs.Mean <= 1, "BS %v", bs.Mean)
	assert.False(t, math.IsNaN(bs.Std))
	auc := r.Bagged[4]
	assert.Greater(t, auc, 0.6, "bagged test AUC")

	// fold results do not depend on how many run at once
	r1, err := p.Evaluate(context.Background(), train, test, EvalOptions{Workers: 1, TrainCache: cache})
	require.NoError(t, err)
	if diff := cmp.Diff(r.Folds, r1.Folds, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("fold results differ by worker count (-3 +1):\n%s", diff)
	}
}

func TestEvaluateErrors(t *testing.T) {
	p := smallProblem()
	root := writeData(t, p)
	grid, y, err := p.TrainData(root)
	require.NoError(t, err)
	train := &Data{Grid: grid, Y: y}

	big := smallProblem()
	big.CV.BlockSize = 1000
	_, err = big.Evaluate(context.Background(), train, nil, EvalOptions{})
	assert.True(t, errors.Is(err, ErrNoFolds), "got %v", err)

	// 180 samples in blocks of 120 form a single group with the remainder
	// merged in, which leaves no training samples for its fold
	single := smallProblem()
	single.CV.BlockSize = 120
	_, err = single.Evaluate(context.Background(), train, nil, EvalOptions{})
	assert.True(t, errors.Is(err, ErrNoFolds), "got %v", err)
	assert.Contains(t, err.Error(), "1 group(s)")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Evaluate(ctx, train, nil, EvalOptions{Workers: 1})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	_, err = p.Evaluate(context.Background(), &Data{Grid: grid, Y: y[:10]}, nil, EvalOptions{})
	assert.Error(t, err)

	_, _, err = p.TrainData(filepath.Join(root, "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestEvaluateWithoutTest(t *testing.T) {
	p := smallProblem()
	p.Workflow = mustWorkflow("analog", workflow.Coarsen{Factor: 2})
	root := writeData(t, p)
	grid, y, err := p.TrainData(root)
	require.NoError(t, err)

	r, err := p.Evaluate(context.Background(), &Data{Grid: grid, Y: y}, nil, EvalOptions{Workers: 2})
	require.NoError(t, err)
	assert.Nil(t, r.Test)
	assert.Nil(t, r.Bagged)
	assert.Nil(t, r.BaggedTest)
	for _, f := range r.Folds {
		assert.Nil(t, f.Test)
	}
}
