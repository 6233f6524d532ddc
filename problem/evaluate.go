package problem

import (
	"context"
	"math"
	"runtime"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"

	"github.com/djgagne/california-rainfall-test/crossval"
	"github.com/djgagne/california-rainfall-test/datasets"
	"github.com/djgagne/california-rainfall-test/prediction"
	"github.com/djgagne/california-rainfall-test/scores"
)

// ErrNoFolds is returned when the training set holds fewer than two fold
// groups: leaving the only group out would leave nothing to train on.
var ErrNoFolds = errors.New("not enough cross-validation folds")

// Data is a loaded data set.
type Data struct {
	Grid *datasets.GridStack
	Y    []float32
}

// EvalOptions tune Evaluate.
type EvalOptions struct {
	// Workers bounds the folds trained at once; zero means
	// runtime.NumCPU().
	Workers int
	// TrainCache and TestCache are feature cache files; empty disables
	// caching.
	TrainCache string
	TestCache  string
}

// FoldResult holds the scores of one fold, indexed like Problem.ScoreTypes.
type FoldResult struct {
	Group  int
	NTrain int
	NValid int
	Train  []float64
	Valid  []float64
	// Test is nil without test data.
	Test []float64
}

// Summary is the mean and standard deviation of a score over folds.
type Summary struct {
	Mean, Std float64
}

// Report is the outcome of Evaluate.
type Report struct {
	ScoreNames []string
	Folds      []FoldResult

	Train []Summary
	Valid []Summary
	Test  []Summary

	// Bagged scores the test predictions averaged over every fold model.
	// Nil without test data.
	Bagged []float64

	// Truth is the one-hot training ground truth.
	Truth *prediction.Predictions
	// OutOfFold holds every training sample's prediction from the fold
	// that held it out.
	OutOfFold *prediction.Predictions
	// TestTruth and BaggedTest are nil without test data.
	TestTruth  *prediction.Predictions
	BaggedTest *prediction.Predictions
}

type foldOutput struct {
	result FoldResult
	valid  *prediction.Predictions
	test   *prediction.Predictions
}

// Evaluate trains the workflow on every fold of train and scores the
// training, validation and, when test is not nil, test predictions.
func (p *Problem) Evaluate(ctx context.Context, train *Data, test *Data, opts EvalOptions) (*Report, error) {
	if train == nil || train.Grid == nil {
		return nil, errors.New("no training data")
	}
	if train.Grid.Len() != len(train.Y) {
		return nil, errors.Errorf("%d training samples for %d labels", train.Grid.Len(), len(train.Y))
	}
	seq, n, err := p.Folds(train.Y)
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, errors.Wrapf(ErrNoFolds, "%d samples make %d group(s) of block size %d, need at least 2",
			len(train.Y), n, p.CV.BlockSize)
	}
	folds := slices.Collect(seq)

	truth, err := prediction.FromLabels(p.LabelNames, train.Y)
	if err != nil {
		return nil, errors.Wrap(err, "training labels")
	}
	X, err := p.Workflow.CachedFeatures(train.Grid, opts.TrainCache)
	if err != nil {
		return nil, err
	}

	var (
		testTruth *prediction.Predictions
		testX     [][]float32
		testAll   []int
	)
	if test != nil {
		if test.Grid == nil || test.Grid.Len() != len(test.Y) {
			return nil, errors.New("test grid and labels do not match")
		}
		if testTruth, err = prediction.FromLabels(p.LabelNames, test.Y); err != nil {
			return nil, errors.Wrap(err, "test labels")
		}
		if testX, err = p.Workflow.CachedFeatures(test.Grid, opts.TestCache); err != nil {
			return nil, err
		}
		testAll = make([]int, len(test.Y))
		for i := range testAll {
			testAll[i] = i
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]foldOutput, len(folds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for k, fold := range folds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			klog.Infof("fold %d/%d (group %d): %d train, %d valid", k+1, len(folds), fold.Group, len(fold.Train), len(fold.Test))
			fo, err := p.runFold(fold, X, train.Y, truth, testX, testTruth, testAll)
			if err != nil {
				return errors.Wrapf(err, "fold %d", fold.Group)
			}
			klog.V(1).Infof("fold %d valid scores %v", fold.Group, fo.result.Valid)
			out[k] = fo
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := &Report{
		ScoreNames: p.ScoreNames(),
		Truth:      truth,
		OutOfFold:  prediction.New(p.LabelNames, len(train.Y)),
		TestTruth:  testTruth,
	}
	for k, fo := range out {
		r.Folds = append(r.Folds, fo.result)
		if err := r.OutOfFold.Place(folds[k].Test, fo.valid); err != nil {
			return nil, err
		}
	}
	r.Train = p.summarize(r.Folds, func(f FoldResult) []float64 { return f.Train })
	r.Valid = p.summarize(r.Folds, func(f FoldResult) []float64 { return f.Valid })

	if test != nil {
		r.Test = p.summarize(r.Folds, func(f FoldResult) []float64 { return f.Test })
		tests := make([]*prediction.Predictions, len(out))
		for k, fo := range out {
			tests[k] = fo.test
		}
		if r.BaggedTest, err = prediction.Combine(tests); err != nil {
			return nil, errors.Wrap(err, "bagging test predictions")
		}
		if r.Bagged, err = p.scoreAll(testTruth, r.BaggedTest); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (p *Problem) runFold(fold crossval.Fold, X [][]float32, y []float32, truth *prediction.Predictions,
	testX [][]float32, testTruth *prediction.Predictions, testAll []int) (foldOutput, error) {
	trained, err := p.Workflow.TrainFeatures(X, y, fold.Train)
	if err != nil {
		return foldOutput{}, err
	}

	fo := foldOutput{result: FoldResult{Group: fold.Group, NTrain: len(fold.Train), NValid: len(fold.Test)}}

	predict := func(X [][]float32, indices []int) (*prediction.Predictions, error) {
		proba, err := trained.PredictFeatures(X, indices)
		if err != nil {
			return nil, err
		}
		return prediction.FromPositiveProba(p.LabelNames, proba)
	}

	trainPred, err := predict(X, fold.Train)
	if err != nil {
		return fo, err
	}
	if fo.result.Train, err = p.scoreAll(truth.Subset(fold.Train), trainPred); err != nil {
		return fo, err
	}
	if fo.valid, err = predict(X, fold.Test); err != nil {
		return fo, err
	}
	if fo.result.Valid, err = p.scoreAll(truth.Subset(fold.Test), fo.valid); err != nil {
		return fo, err
	}
	if testX != nil {
		if fo.test, err = predict(testX, testAll); err != nil {
			return fo, err
		}
		if fo.result.Test, err = p.scoreAll(testTruth, fo.test); err != nil {
			return fo, err
		}
	}
	return fo, nil
}

func (p *Problem) scoreAll(truth, pred *prediction.Predictions) ([]float64, error) {
	out := make([]float64, len(p.ScoreTypes))
	for i, st := range p.ScoreTypes {
		v, err := scores.Score(st, truth, pred)
		if err != nil {
			return nil, errors.Wrapf(err, "score %s", st.Name())
		}
		out[i] = v
	}
	return out, nil
}

// summarize returns the mean and sample standard deviation of each score
// over folds, skipping undefined (NaN) fold scores.
func (p *Problem) summarize(folds []FoldResult, pick func(FoldResult) []float64) []Summary {
	out := make([]Summary, len(p.ScoreTypes))
	for i := range out {
		var vals []float64
		for _, f := range folds {
			if v := pick(f); v != nil && !math.IsNaN(v[i]) {
				vals = append(vals, v[i])
			}
		}
		switch len(vals) {
		case 0:
			out[i] = Summary{Mean: math.NaN(), Std: math.NaN()}
		case 1:
			out[i] = Summary{Mean: vals[0]}
		default:
			m, s := stat.MeanStdDev(vals, nil)
			out[i] = Summary{Mean: m, Std: s}
		}
	}
	return out
}
