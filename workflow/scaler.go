package workflow

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes feature columns with fixed means and deviations.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes the column means and standard deviations of X.
// Constant columns keep a deviation of 1 so they map to 0.
func FitScaler(X [][]float32) *Scaler {
	if len(X) == 0 {
		return &Scaler{}
	}
	d := len(X[0])
	s := &Scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, len(X))
	for j := range d {
		for i, row := range X {
			col[i] = float64(row[j])
		}
		m, sd := stat.PopMeanStdDev(col, nil)
		if sd == 0 || len(X) < 2 {
			sd = 1
		}
		s.Mean[j], s.Std[j] = m, sd
	}
	return s
}

// Transform returns standardized copies of the rows of X.
func (s *Scaler) Transform(X [][]float32) [][]float32 {
	out := make([][]float32, len(X))
	for i, row := range X {
		r := make([]float32, len(row))
		for j, v := range row {
			if j < len(s.Mean) {
				r[j] = float32((float64(v) - s.Mean[j]) / s.Std[j])
			} else {
				r[j] = v
			}
		}
		out[i] = r
	}
	return out
}
