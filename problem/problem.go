// Package problem declares the California winter extreme rainfall
// prediction problem: how its data is loaded, how folds are cut, which
// workflow is trained and how predictions are scored.
package problem

import (
	"iter"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/djgagne/california-rainfall-test/analog"
	"github.com/djgagne/california-rainfall-test/crossval"
	"github.com/djgagne/california-rainfall-test/datasets"
	"github.com/djgagne/california-rainfall-test/scores"
	"github.com/djgagne/california-rainfall-test/simple"
	"github.com/djgagne/california-rainfall-test/workflow"
)

// Title of the problem.
const Title = "California Winter Extreme Rainfall Prediction"

// Problem is the full problem configuration. Build it once with California
// and pass it to whatever evaluates submissions.
type Problem struct {
	Title      string
	LabelNames []int
	Workflow   *workflow.GridFeatureExtractorClassifier
	ScoreTypes []scores.ScoreType
	CV         crossval.Blocked
	Loader     datasets.Loader
}

// California returns the problem with its default workflow: standardized
// whole-grid field statistics fed to a logistic regression.
func California() *Problem {
	return &Problem{
		Title:      Title,
		LabelNames: []int{0, 1},
		Workflow:   mustWorkflow("logistic", workflow.FieldStats{}),
		ScoreTypes: scores.Defaults(),
		CV:         crossval.Default(),
		Loader:     datasets.DefaultLoader(),
	}
}

// mustWorkflow is NewWorkflow for built-in classifier names; it panics on
// an unknown one.
func mustWorkflow(classifier string, extractor workflow.FeatureExtractor) *workflow.GridFeatureExtractorClassifier {
	wf, err := NewWorkflow(classifier, extractor)
	if err != nil {
		panic(err)
	}
	return wf
}

// Classifiers lists the names accepted by NewWorkflow.
var Classifiers = []string{"logistic", "mlp", "analog"}

// NewWorkflow returns a standardized workflow over extractor with the named
// classifier.
func NewWorkflow(classifier string, extractor workflow.FeatureExtractor) (*workflow.GridFeatureExtractorClassifier, error) {
	var factory func() (workflow.Classifier, error)
	switch classifier {
	case "logistic":
		factory = func() (workflow.Classifier, error) {
			return simple.NewModel(simple.Config{Linear: true, LearningRate: 0.05, Epochs: 30, Seed: 1, PositiveWeight: 2})
		}
	case "mlp":
		factory = func() (workflow.Classifier, error) {
			return simple.NewModel(simple.Config{HiddenSizes: []int{32}, LearningRate: 0.02, Epochs: 30, Seed: 1, L2: 1e-4})
		}
	case "analog":
		factory = func() (workflow.Classifier, error) {
			return analog.New(25, true)
		}
	default:
		return nil, errors.Errorf("unknown classifier %q, want one of %s", classifier, strings.Join(Classifiers, ", "))
	}
	return &workflow.GridFeatureExtractorClassifier{
		Extractor:     extractor,
		NewClassifier: factory,
		Standardize:   true,
	}, nil
}

// TrainData reads the training set under path ("./" when empty).
func (p *Problem) TrainData(path string) (*datasets.GridStack, []float32, error) {
	if path == "" {
		path = "./"
	}
	grid, labels, err := p.Loader.Read(path, datasets.TrainPrefix)
	if err != nil {
		return nil, nil, err
	}
	return grid, labels.Values, nil
}

// TestData reads the test set under path ("./data" when empty).
func (p *Problem) TestData(path string) (*datasets.GridStack, []float32, error) {
	if path == "" {
		path = "./data"
	}
	grid, labels, err := p.Loader.Read(path, datasets.TestPrefix)
	if err != nil {
		return nil, nil, err
	}
	return grid, labels.Values, nil
}

// Folds returns the cross-validation folds of the label vector y.
func (p *Problem) Folds(y []float32) (iter.Seq[crossval.Fold], int, error) {
	return p.CV.Folds(len(y))
}

// ScoreNames returns the score type names in report order.
func (p *Problem) ScoreNames() []string {
	names := make([]string, len(p.ScoreTypes))
	for i, st := range p.ScoreTypes {
		names[i] = st.Name()
	}
	return names
}

// ScoreType returns the score type called name.
func (p *Problem) ScoreType(name string) (scores.ScoreType, bool) {
	i := slices.IndexFunc(p.ScoreTypes, func(st scores.ScoreType) bool { return st.Name() == name })
	if i < 0 {
		return nil, false
	}
	return p.ScoreTypes[i], true
}
