package workflow

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/djgagne/california-rainfall-test/datasets"
)

// featureCacheVersion is bumped whenever featureCache changes shape.
const featureCacheVersion = 2

// ErrCacheMismatch is returned by LoadFeatureCache when the file was built
// for different data or a different extractor.
var ErrCacheMismatch = errors.New("feature cache does not match")

// CacheKey identifies what a feature cache was built from.
type CacheKey struct {
	Extractor string
	Variables []string
	Samples   int

	// Checksum is the GridStack.Checksum of the source data.
	Checksum uint64
}

// NewCacheKey returns the key of the features extractor builds from grid.
func NewCacheKey(extractor FeatureExtractor, grid *datasets.GridStack) CacheKey {
	return CacheKey{
		Extractor: extractor.Name(),
		Variables: grid.Names,
		Samples:   grid.Len(),
		Checksum:  grid.Checksum(),
	}
}

type featureCache struct {
	Version   int
	Key       CacheKey
	CreatedAt int64
	Rows      [][]float32
}

// SaveFeatureCache writes rows with their key to path. The file is written
// to a temporary sibling and renamed into place.
func SaveFeatureCache(path string, key CacheKey, rows [][]float32) error {
	if path == "" {
		return errors.New("empty cache path")
	}
	if len(rows) != key.Samples {
		return errors.Errorf("%d rows for a key of %d samples", len(rows), key.Samples)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrap(err, "create temp cache file")
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		_ = os.Remove(tmpName)
	}()

	fc := featureCache{
		Version:   featureCacheVersion,
		Key:       key,
		CreatedAt: time.Now().Unix(),
		Rows:      rows,
	}
	if err := gob.NewEncoder(tmp).Encode(&fc); err != nil {
		return errors.Wrap(err, "encode feature cache")
	}
	if err := tmp.Sync(); err != nil {
		klog.Warningf("sync temp cache file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp cache file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "rename temp cache into place")
	}
	return nil
}

// LoadFeatureCache reads the rows stored at path, failing with
// ErrCacheMismatch unless the stored key equals key.
func LoadFeatureCache(path string, key CacheKey) ([][]float32, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open feature cache %s", path)
	}
	defer fh.Close()

	var fc featureCache
	if err := gob.NewDecoder(fh).Decode(&fc); err != nil {
		return nil, errors.Wrapf(err, "decode feature cache %s", path)
	}
	switch {
	case fc.Version != featureCacheVersion:
		return nil, errors.Wrapf(ErrCacheMismatch, "version %d, want %d", fc.Version, featureCacheVersion)
	case fc.Key.Extractor != key.Extractor:
		return nil, errors.Wrapf(ErrCacheMismatch, "extractor %q, want %q", fc.Key.Extractor, key.Extractor)
	case fc.Key.Samples != key.Samples:
		return nil, errors.Wrapf(ErrCacheMismatch, "%d samples, want %d", fc.Key.Samples, key.Samples)
	case !slices.Equal(fc.Key.Variables, key.Variables):
		return nil, errors.Wrapf(ErrCacheMismatch, "variables %v, want %v", fc.Key.Variables, key.Variables)
	case fc.Key.Checksum != key.Checksum:
		return nil, errors.Wrapf(ErrCacheMismatch, "data checksum %x, want %x", fc.Key.Checksum, key.Checksum)
	case len(fc.Rows) != key.Samples:
		return nil, errors.Wrapf(ErrCacheMismatch, "%d rows, want %d", len(fc.Rows), key.Samples)
	}
	return fc.Rows, nil
}

// CachedFeatures returns the features of every sample in grid, reading
// them from path when a matching cache exists and writing it otherwise.
// An empty path disables caching.
func (w *GridFeatureExtractorClassifier) CachedFeatures(grid *datasets.GridStack, path string) ([][]float32, error) {
	if path == "" {
		return w.Features(grid)
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	key := NewCacheKey(w.Extractor, grid)
	rows, err := LoadFeatureCache(path, key)
	if err == nil {
		klog.Infof("loaded %d feature rows from %s", len(rows), path)
		return rows, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		klog.Warningf("feature cache %s unusable, rebuilding: %v", path, err)
	}
	rows, err = w.Features(grid)
	if err != nil {
		return nil, err
	}
	if err := SaveFeatureCache(path, key, rows); err != nil {
		klog.Warningf("saving feature cache %s: %v", path, err)
	} else {
		klog.Infof("saved %d feature rows to %s", len(rows), path)
	}
	return rows, nil
}
