// Package prediction holds multiclass probability predictions: one row per
// sample, one column per label. Rows that were not predicted are NaN so that
// predictions from different folds can be placed into one matrix and
// averaged.
package prediction

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownLabel is returned when a ground-truth value is not one of the
	// label names.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrShape is returned when predictions of different sizes are combined.
	ErrShape = errors.New("prediction shape mismatch")
)

// Predictions is an n x len(LabelNames) matrix of class probabilities.
type Predictions struct {
	LabelNames []int
	Proba      *mat.Dense
}

// New returns n unpredicted (NaN) rows.
func New(labelNames []int, n int) *Predictions {
	p := &Predictions{LabelNames: labelNames}
	if n == 0 {
		return p
	}
	data := make([]float64, n*len(labelNames))
	for i := range data {
		data[i] = math.NaN()
	}
	p.Proba = mat.NewDense(n, len(labelNames), data)
	return p
}

// FromLabels one-hot encodes ground truth values.
func FromLabels(labelNames []int, y []float32) (*Predictions, error) {
	p := New(labelNames, len(y))
	for i, v := range y {
		col := -1
		for j, name := range labelNames {
			if float32(name) == v {
				col = j
				break
			}
		}
		if col < 0 {
			return nil, errors.Wrapf(ErrUnknownLabel, "sample %d has label %v, want one of %v", i, v, labelNames)
		}
		for j := range labelNames {
			p.Proba.Set(i, j, 0)
		}
		p.Proba.Set(i, col, 1)
	}
	return p, nil
}

// FromPositiveProba builds binary predictions from the probability of the
// second label. NaN inputs stay unpredicted.
func FromPositiveProba(labelNames []int, proba []float64) (*Predictions, error) {
	if len(labelNames) != 2 {
		return nil, errors.Errorf("positive-class probabilities need 2 labels, have %v", labelNames)
	}
	p := New(labelNames, len(proba))
	for i, v := range proba {
		if math.IsNaN(v) {
			continue
		}
		if v < 0 || v > 1 {
			return nil, errors.Errorf("sample %d has probability %v outside [0, 1]", i, v)
		}
		p.Proba.Set(i, 0, 1-v)
		p.Proba.Set(i, 1, v)
	}
	return p, nil
}

// Len returns the number of rows.
func (p *Predictions) Len() int {
	if p.Proba == nil {
		return 0
	}
	r, _ := p.Proba.Dims()
	return r
}

// PositiveProba returns the probability column of the last label, the
// positive class of a binary problem.
func (p *Predictions) PositiveProba() []float64 {
	n := p.Len()
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	return mat.Col(out, len(p.LabelNames)-1, p.Proba)
}

// LabelIndex returns the arg-max column of every row, -1 for unpredicted
// rows.
func (p *Predictions) LabelIndex() []int {
	n := p.Len()
	out := make([]int, n)
	for i := range n {
		row := p.Proba.RawRowView(i)
		best := -1
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if best < 0 || v > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// ValidIndexes returns the rows that hold a prediction.
func (p *Predictions) ValidIndexes() []int {
	var out []int
	for i := range p.Len() {
		if !math.IsNaN(p.Proba.At(i, 0)) {
			out = append(out, i)
		}
	}
	return out
}

// Subset returns the given rows as new predictions.
func (p *Predictions) Subset(indices []int) *Predictions {
	out := New(p.LabelNames, len(indices))
	for k, i := range indices {
		out.Proba.SetRow(k, p.Proba.RawRowView(i))
	}
	return out
}

// Place writes sub, predicted for rows indices, into p.
func (p *Predictions) Place(indices []int, sub *Predictions) error {
	if sub.Len() != len(indices) {
		return errors.Wrapf(ErrShape, "%d rows for %d indices", sub.Len(), len(indices))
	}
	for k, i := range indices {
		if i < 0 || i >= p.Len() {
			return errors.Errorf("row %d out of range [0, %d)", i, p.Len())
		}
		p.Proba.SetRow(i, sub.Proba.RawRowView(k))
	}
	return nil
}

// Combine averages predictions element-wise, ignoring NaN entries. A cell
// with no prediction in any input stays NaN.
func Combine(preds []*Predictions) (*Predictions, error) {
	if len(preds) == 0 {
		return nil, errors.New("nothing to combine")
	}
	first := preds[0]
	n := first.Len()
	out := New(first.LabelNames, n)
	if n == 0 {
		return out, nil
	}
	cols := len(first.LabelNames)
	for _, p := range preds[1:] {
		if p.Len() != n || len(p.LabelNames) != cols {
			return nil, errors.Wrapf(ErrShape, "combining %d rows with %d rows", n, p.Len())
		}
	}
	for i := range n {
		for j := range cols {
			sum, cnt := 0.0, 0
			for _, p := range preds {
				v := p.Proba.At(i, j)
				if math.IsNaN(v) {
					continue
				}
				sum += v
				cnt++
			}
			if cnt > 0 {
				out.Proba.Set(i, j, sum/float64(cnt))
			}
		}
	}
	return out, nil
}
