package datasets

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SyntheticConfig sizes a synthetic data set. A hidden moisture-transport
// index drives all three fields and the extreme-precipitation label, so
// classifiers trained on it have signal to find.
type SyntheticConfig struct {
	Ensembles int
	Times     int
	Lat       int
	Lon       int
	FirstYear int
	Seed      int64

	// Threshold on the latent index above which a sample is an extreme.
	// The default 1.2816 marks roughly the 90th percentile.
	Threshold float64
}

// DefaultSyntheticConfig matches the extent of the real training files for a
// three member ensemble: 3*385 samples of a 32x64 grid.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Ensembles: 3,
		Times:     385,
		Lat:       32,
		Lon:       64,
		FirstYear: 1920,
		Seed:      1,
		Threshold: 1.2816,
	}
}

// Synthesize builds the TS, PSL and TMQ variables and the per-member labels
// of a synthetic data set.
func Synthesize(cfg SyntheticConfig) ([]*GridVariable, [][]int, error) {
	if cfg.Ensembles <= 0 || cfg.Times <= 0 || cfg.Lat <= 0 || cfg.Lon <= 0 {
		return nil, nil, errors.Errorf("invalid synthetic extent (ens=%d, time=%d, lat=%d, lon=%d)",
			cfg.Ensembles, cfg.Times, cfg.Lat, cfg.Lon)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 1.2816
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	lats := make([]float64, cfg.Lat)
	for i := range lats {
		lats[i] = 20 + 30*float64(i)/float64(max(cfg.Lat-1, 1))
	}
	lons := make([]float64, cfg.Lon)
	for i := range lons {
		lons[i] = 180 + 70*float64(i)/float64(max(cfg.Lon-1, 1))
	}

	samples := cfg.Ensembles * cfg.Times
	cells := cfg.Lat * cfg.Lon
	ts := make([]float32, samples*cells)
	psl := make([]float32, samples*cells)
	tmq := make([]float32, samples*cells)
	labels := make([][]int, cfg.Ensembles)

	for e := range cfg.Ensembles {
		labels[e] = make([]int, cfg.Times)
		for t := range cfg.Times {
			s := e*cfg.Times + t
			z := rng.NormFloat64()
			if z+0.3*rng.NormFloat64() > cfg.Threshold {
				labels[e][t] = 1
			}
			for la := range cfg.Lat {
				// the anomaly peaks towards the southern edge of the domain
				weight := 1 - float64(la)/float64(max(cfg.Lat, 1))
				for lo := range cfg.Lon {
					k := s*cells + la*cfg.Lon + lo
					ts[k] = float32(300 - 0.6*(lats[la]-20) + 1.5*z*weight + rng.NormFloat64())
					psl[k] = float32(101300 - 400*z*weight + 150*rng.NormFloat64())
					tmq[k] = float32(math.Max(0, 25-0.5*(lats[la]-20)+8*z*weight+2*rng.NormFloat64()))
				}
			}
		}
	}

	ids := MemberColumns(cfg.Ensembles)
	mk := func(name string, data []float32) *GridVariable {
		return &GridVariable{
			Name:        name,
			Data:        data,
			Ensembles:   cfg.Ensembles,
			Times:       cfg.Times,
			Samples:     samples,
			Lat:         cfg.Lat,
			Lon:         cfg.Lon,
			EnsembleIDs: ids,
			Latitudes:   lats,
			Longitudes:  lons,
		}
	}
	return []*GridVariable{mk("TS", ts), mk("PSL", psl), mk("TMQ", tmq)}, labels, nil
}

// WriteSynthetic writes a synthetic data set for prefix under root using the
// loader's file layout.
func (l Loader) WriteSynthetic(root, prefix string, cfg SyntheticConfig) error {
	vars, labels, err := Synthesize(cfg)
	if err != nil {
		return err
	}
	for _, v := range vars {
		path := l.GridPath(root, prefix, v.Name)
		klog.V(1).Infof("writing %s", path)
		if err := WriteGridFile(path, v, l.Dims); err != nil {
			return err
		}
	}

	// every member column shares the same index
	index := make([]int, cfg.Times)
	for t := range index {
		index[t] = cfg.FirstYear + t
	}
	path := l.LabelPath(root, prefix)
	klog.V(1).Infof("writing %s", path)
	return WriteLabelCSV(path, l.IndexColumn, index, MemberColumns(cfg.Ensembles), labels)
}
