// Package scores implements the probabilistic-forecast metrics used to rank
// submissions: the Brier score, its skill score and reliability/resolution
// decomposition, and the area under the ROC curve.
//
// Every score type consumes the observed binary outcomes and the forecast
// probability of the positive class and returns a scalar.
package scores

import (
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/djgagne/california-rainfall-test/prediction"
)

// ScoreType is a named metric with display metadata.
type ScoreType interface {
	Name() string
	// Precision is the number of decimals shown in reports.
	Precision() int
	LowerIsBetter() bool
	Minimum() float64
	Maximum() float64
	// Score returns the metric of forecast probabilities yProba against
	// binary outcomes yTrue. It returns NaN when the metric is undefined for
	// the input (e.g. no samples).
	Score(yTrue, yProba []float64) float64
}

type meta struct {
	name          string
	precision     int
	lowerIsBetter bool
	minimum       float64
	maximum       float64
}

func (m meta) Name() string        { return m.name }
func (m meta) Precision() int      { return m.precision }
func (m meta) LowerIsBetter() bool { return m.lowerIsBetter }
func (m meta) Minimum() float64    { return m.minimum }
func (m meta) Maximum() float64    { return m.maximum }

// Format renders v with the score's precision.
func Format(st ScoreType, v float64) string {
	return strconv.FormatFloat(v, 'f', st.Precision(), 64)
}

// Round rounds v to the score's precision.
func Round(st ScoreType, v float64) float64 {
	p := math.Pow(10, float64(st.Precision()))
	return math.Round(v*p) / p
}

// Score applies st to the rows predicted in both truth and pred.
func Score(st ScoreType, truth, pred *prediction.Predictions) (float64, error) {
	if truth.Len() != pred.Len() {
		return math.NaN(), errors.Wrapf(prediction.ErrShape, "%d ground truth rows, %d predicted rows",
			truth.Len(), pred.Len())
	}
	yTrue := truth.PositiveProba()
	yProba := pred.PositiveProba()
	valid := pred.ValidIndexes()
	t := make([]float64, 0, len(valid))
	p := make([]float64, 0, len(valid))
	for _, i := range valid {
		if math.IsNaN(yTrue[i]) {
			continue
		}
		t = append(t, yTrue[i])
		p = append(p, yProba[i])
	}
	return st.Score(t, p), nil
}

// Defaults returns the score types of the California rainfall problem in
// report order.
func Defaults() []ScoreType {
	return []ScoreType{
		NewBrierSkillScore("BSS", 3),
		NewBrierScore("BS", 3),
		NewBrierScoreReliability("BS Rel", 3),
		NewBrierScoreResolution("BS Res", 3),
		NewROCAUC("AUC", 3),
	}
}
