package scores

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ROCAUC is the area under the receiver operating characteristic curve.
type ROCAUC struct{ meta }

// NewROCAUC returns an ROC-AUC score type.
func NewROCAUC(name string, precision int) *ROCAUC {
	return &ROCAUC{meta{name: name, precision: precision, lowerIsBetter: false, minimum: 0, maximum: 1}}
}

// Score implements ScoreType. The area is NaN unless both classes occur.
func (s *ROCAUC) Score(yTrue, yProba []float64) float64 {
	fpr, tpr := ROCCurve(yTrue, yProba)
	if fpr == nil {
		return math.NaN()
	}
	area := 0.0
	for i := 1; i < len(fpr); i++ {
		area += (fpr[i] - fpr[i-1]) * (tpr[i] + tpr[i-1]) / 2
	}
	return area
}

// ROCCurve returns the false and true positive rates over every distinct
// forecast threshold, from (0, 0) to (1, 1). Both are nil when yTrue holds
// a single class.
func ROCCurve(yTrue, yProba []float64) (fpr, tpr []float64) {
	if len(yTrue) == 0 || len(yTrue) != len(yProba) {
		return nil, nil
	}
	y := make([]float64, len(yProba))
	copy(y, yProba)
	classes := make([]bool, len(yTrue))
	var pos, neg int
	for i, v := range yTrue {
		classes[i] = v == 1
		if classes[i] {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, nil
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ = stat.ROC(nil, y, classes, nil)
	return fpr, tpr
}
