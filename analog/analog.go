// Package analog forecasts extremes by analogs: the training samples
// closest to a query in feature space vote on its outcome.
package analog

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Classifier is a k-nearest-neighbour binary classifier. The probability
// of a query is the fraction of positive labels among its K nearest
// training rows, each weighted by inverse distance when Weighted is set.
type Classifier struct {
	K        int
	Weighted bool
	// Workers bounds the goroutines searching neighbours; zero means
	// runtime.NumCPU().
	Workers int

	inputs [][]float32
	labels []float32
}

// New returns a Classifier with k neighbours.
func New(k int, weighted bool) (*Classifier, error) {
	if k < 1 {
		return nil, errors.Errorf("k must be >= 1, got %d", k)
	}
	return &Classifier{K: k, Weighted: weighted}, nil
}

// Fit memorizes the training rows.
func (c *Classifier) Fit(X [][]float32, y []float32) error {
	if len(X) != len(y) {
		return errors.Errorf("%d rows for %d labels", len(X), len(y))
	}
	if len(X) == 0 {
		return errors.New("no training rows")
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return errors.Errorf("row %d has %d features, row 0 has %d", i, len(row), width)
		}
	}
	c.inputs, c.labels = X, y
	return nil
}

// neighbor holds a training row candidate.
type neighbor struct {
	idx      int
	distance float64
}

// PredictProba returns the analog probability of every row of X.
func (c *Classifier) PredictProba(X [][]float32) ([]float64, error) {
	if len(c.inputs) == 0 {
		return nil, errors.New("classifier is not fitted")
	}
	if c.K < 1 {
		return nil, errors.Errorf("k must be >= 1, got %d", c.K)
	}
	width := len(c.inputs[0])
	for i, row := range X {
		if len(row) != width {
			return nil, errors.Errorf("row %d has %d features, model expects %d", i, len(row), width)
		}
	}

	out := make([]float64, len(X))
	if len(X) == 0 {
		return out, nil
	}

	// Use a worker pool over the query rows; each worker owns its slot in out.
	jobs := make(chan int, len(X))
	workerCount := c.Workers
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	workerCount = min(workerCount, len(X))

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = c.vote(c.neighbors(X[i]))
			}
		}()
	}
	for i := range X {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out, nil
}

// neighbors scans every training row and returns the K closest, sorted by
// increasing distance. Ties keep training order.
func (c *Classifier) neighbors(query []float32) []neighbor {
	candidates := make([]neighbor, len(c.inputs))
	for i, row := range c.inputs {
		candidates[i] = neighbor{idx: i, distance: math.Sqrt(euclideanDistanceSquared(query, row))}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	k := min(c.K, len(candidates))
	return candidates[:k]
}

// vote returns the (weighted) positive fraction of nbs. An exact match
// under weighting dominates: all zero-distance neighbours vote equally and
// the rest are ignored.
func (c *Classifier) vote(nbs []neighbor) float64 {
	if !c.Weighted {
		pos := 0.0
		for _, nb := range nbs {
			pos += float64(c.labels[nb.idx])
		}
		return pos / float64(len(nbs))
	}
	var exact, exactPos int
	for _, nb := range nbs {
		if nb.distance == 0 {
			exact++
			exactPos += int(c.labels[nb.idx])
		}
	}
	if exact > 0 {
		return float64(exactPos) / float64(exact)
	}
	var sum, pos float64
	for _, nb := range nbs {
		w := 1 / nb.distance
		sum += w
		pos += w * float64(c.labels[nb.idx])
	}
	return pos / sum
}

// euclideanDistanceSquared computes squared Euclidean distance between two equal-length float32 slices.
func euclideanDistanceSquared(a, b []float32) float64 {
	sum := 0.0
	for i := 0; i < len(a) && i < len(b); i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
