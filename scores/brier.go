package scores

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BrierScore is the mean squared error of the forecast probabilities.
type BrierScore struct{ meta }

// NewBrierScore returns a Brier score type.
func NewBrierScore(name string, precision int) *BrierScore {
	return &BrierScore{meta{name: name, precision: precision, lowerIsBetter: true, minimum: 0, maximum: 1}}
}

// Score implements ScoreType.
func (s *BrierScore) Score(yTrue, yProba []float64) float64 {
	return brier(yTrue, yProba)
}

func brier(yTrue, yProba []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yProba) {
		return math.NaN()
	}
	sum := 0.0
	for i := range yTrue {
		d := yProba[i] - yTrue[i]
		sum += d * d
	}
	return sum / float64(len(yTrue))
}

// BrierSkillScore compares the Brier score to that of the climatological
// forecast, the observed base rate issued for every sample:
// 1 - BS/BS_climo. It is undefined when every outcome is the same.
type BrierSkillScore struct{ meta }

// NewBrierSkillScore returns a Brier skill score type.
func NewBrierSkillScore(name string, precision int) *BrierSkillScore {
	return &BrierSkillScore{meta{name: name, precision: precision, lowerIsBetter: false, minimum: -1, maximum: 1}}
}

// Score implements ScoreType.
func (s *BrierSkillScore) Score(yTrue, yProba []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	climo := make([]float64, len(yTrue))
	floats.AddConst(stat.Mean(yTrue, nil), climo)
	bsc := brier(yTrue, climo)
	if bsc == 0 {
		return math.NaN()
	}
	return 1 - brier(yTrue, yProba)/bsc
}

// DefaultBins are the probability bin edges of the reliability and
// resolution terms: 0, 0.1, ..., 1.1. The last bin only holds forecasts of
// exactly 1.
func DefaultBins() []float64 {
	return floats.Span(make([]float64, 12), 0, 1.1)
}

// Bin is one forecast-probability bin of a reliability diagram.
type Bin struct {
	Lower, Upper float64
	Center       float64
	// Count is the number of forecasts in the bin.
	Count float64
	// ObservedFreq is the fraction of those forecasts whose event occurred,
	// NaN for an empty bin.
	ObservedFreq float64
}

// ReliabilityCurve bins the forecasts by probability and reports the observed
// event frequency per bin.
func ReliabilityCurve(yTrue, yProba []float64, edges []float64) []Bin {
	if len(edges) < 2 {
		edges = DefaultBins()
	}
	lo, hi := edges[0], edges[len(edges)-1]

	// stat.Histogram wants sorted values inside [lo, hi)
	all := make([]float64, 0, len(yProba))
	pos := make([]float64, 0, len(yProba))
	for i, p := range yProba {
		p = math.Min(math.Max(p, lo), math.Nextafter(hi, lo))
		all = append(all, p)
		if yTrue[i] == 1 {
			pos = append(pos, p)
		}
	}
	slices.Sort(all)
	slices.Sort(pos)
	forecast := stat.Histogram(nil, edges, all, nil)
	observed := stat.Histogram(nil, edges, pos, nil)

	bins := make([]Bin, len(forecast))
	for k := range bins {
		bins[k] = Bin{
			Lower:        edges[k],
			Upper:        edges[k+1],
			Center:       (edges[k] + edges[k+1]) / 2,
			Count:        forecast[k],
			ObservedFreq: math.NaN(),
		}
		if forecast[k] > 0 {
			bins[k].ObservedFreq = observed[k] / forecast[k]
		}
	}
	return bins
}

// BrierScoreReliability is the reliability term of the Brier score
// decomposition: the count-weighted squared gap between each bin's centre and
// its observed frequency.
type BrierScoreReliability struct {
	meta
	Bins []float64
}

// NewBrierScoreReliability returns a reliability score type over
// DefaultBins.
func NewBrierScoreReliability(name string, precision int) *BrierScoreReliability {
	return &BrierScoreReliability{
		meta: meta{name: name, precision: precision, lowerIsBetter: true, minimum: 0, maximum: 1},
		Bins: DefaultBins(),
	}
}

// Score implements ScoreType.
func (s *BrierScoreReliability) Score(yTrue, yProba []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yProba) {
		return math.NaN()
	}
	sum := 0.0
	for _, b := range ReliabilityCurve(yTrue, yProba, s.Bins) {
		if b.Count == 0 {
			continue
		}
		d := b.Center - b.ObservedFreq
		sum += b.Count * d * d
	}
	return sum / float64(len(yProba))
}

// BrierScoreResolution is the resolution term of the Brier score
// decomposition: how far the observed frequencies of the bins spread from
// the base rate. Higher is better.
type BrierScoreResolution struct {
	meta
	Bins []float64
}

// NewBrierScoreResolution returns a resolution score type over DefaultBins.
func NewBrierScoreResolution(name string, precision int) *BrierScoreResolution {
	return &BrierScoreResolution{
		meta: meta{name: name, precision: precision, lowerIsBetter: false, minimum: 0, maximum: 1},
		Bins: DefaultBins(),
	}
}

// Score implements ScoreType.
func (s *BrierScoreResolution) Score(yTrue, yProba []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yProba) {
		return math.NaN()
	}
	climo := stat.Mean(yTrue, nil)
	sum := 0.0
	for _, b := range ReliabilityCurve(yTrue, yProba, s.Bins) {
		if b.Count == 0 {
			continue
		}
		d := b.ObservedFreq - climo
		sum += b.Count * d * d
	}
	return sum / float64(len(yProba))
}
