// Package workflow couples a feature extractor over gridded climate fields
// with a binary classifier, the shape of a submission to the rainfall
// problem.
package workflow

import (
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/djgagne/california-rainfall-test/datasets"
)

// FeatureExtractor turns grid samples into flat feature rows.
type FeatureExtractor interface {
	// Name identifies the extractor and its parameters. It keys feature
	// caches, so two extractors producing different rows must not share it.
	Name() string
	// Transform returns one feature row per index, in order.
	Transform(grid *datasets.GridStack, indices []int) ([][]float32, error)
}

// Classifier is a binary classifier over feature rows.
type Classifier interface {
	Fit(X [][]float32, y []float32) error
	// PredictProba returns the probability of the positive class per row.
	PredictProba(X [][]float32) ([]float64, error)
}

// GridFeatureExtractorClassifier is the workflow of the rainfall problem:
// features from Extractor, optionally standardized, fed to a fresh
// classifier from NewClassifier on every Train.
type GridFeatureExtractorClassifier struct {
	Extractor     FeatureExtractor
	NewClassifier func() (Classifier, error)
	// Standardize rescales every feature to zero mean and unit variance
	// using the training rows only.
	Standardize bool
}

// Trained is a fitted workflow.
type Trained struct {
	extractor FeatureExtractor
	scaler    *Scaler
	clf       Classifier
}

func (w *GridFeatureExtractorClassifier) validate() error {
	if w.Extractor == nil {
		return errors.New("workflow has no feature extractor")
	}
	if w.NewClassifier == nil {
		return errors.New("workflow has no classifier")
	}
	return nil
}

// Features extracts the rows of every sample in grid.
func (w *GridFeatureExtractorClassifier) Features(grid *datasets.GridStack) ([][]float32, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	all := make([]int, grid.Len())
	for i := range all {
		all[i] = i
	}
	X, err := w.Extractor.Transform(grid, all)
	if err != nil {
		return nil, errors.Wrapf(err, "extract %s features", w.Extractor.Name())
	}
	return X, nil
}

// Train extracts the features of the samples at indices and fits a new
// classifier on them against y[indices].
func (w *GridFeatureExtractorClassifier) Train(grid *datasets.GridStack, y []float32, indices []int) (*Trained, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	X, err := w.Extractor.Transform(grid, indices)
	if err != nil {
		return nil, errors.Wrapf(err, "extract %s features", w.Extractor.Name())
	}
	return w.fit(X, take(y, indices))
}

// TrainFeatures fits a new classifier on precomputed rows X[indices]
// (usually from Features or a feature cache) against y[indices].
func (w *GridFeatureExtractorClassifier) TrainFeatures(X [][]float32, y []float32, indices []int) (*Trained, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if len(X) != len(y) {
		return nil, errors.Errorf("%d feature rows for %d labels", len(X), len(y))
	}
	return w.fit(take(X, indices), take(y, indices))
}

func (w *GridFeatureExtractorClassifier) fit(X [][]float32, y []float32) (*Trained, error) {
	if len(X) == 0 {
		return nil, errors.New("no training samples")
	}
	t := &Trained{extractor: w.Extractor}
	if w.Standardize {
		t.scaler = FitScaler(X)
		X = t.scaler.Transform(X)
	}
	clf, err := w.NewClassifier()
	if err != nil {
		return nil, errors.Wrap(err, "new classifier")
	}
	klog.V(2).Infof("fitting on %d samples of %d features", len(X), len(X[0]))
	if err := clf.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "fit classifier")
	}
	t.clf = clf
	return t, nil
}

// Predict returns the positive-class probabilities of the samples at
// indices.
func (t *Trained) Predict(grid *datasets.GridStack, indices []int) ([]float64, error) {
	X, err := t.extractor.Transform(grid, indices)
	if err != nil {
		return nil, errors.Wrapf(err, "extract %s features", t.extractor.Name())
	}
	return t.predict(X)
}

// PredictFeatures returns the positive-class probabilities of rows
// X[indices].
func (t *Trained) PredictFeatures(X [][]float32, indices []int) ([]float64, error) {
	return t.predict(take(X, indices))
}

func (t *Trained) predict(X [][]float32) ([]float64, error) {
	if t.scaler != nil {
		X = t.scaler.Transform(X)
	}
	p, err := t.clf.PredictProba(X)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	if len(p) != len(X) {
		return nil, errors.Errorf("classifier returned %d probabilities for %d rows", len(p), len(X))
	}
	for i, v := range p {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, errors.Errorf("probability %v of row %d is outside [0, 1]", v, i)
		}
	}
	return p, nil
}

func take[T any](s []T, indices []int) []T {
	out := make([]T, len(indices))
	for k, i := range indices {
		out[k] = s[i]
	}
	return out
}
