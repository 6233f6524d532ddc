package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djgagne/california-rainfall-test/datasets"
)

func TestSynth(t *testing.T) {
	out := t.TempDir()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--out", out, "--ens", "2", "--times", "12", "--lat", "3", "--lon", "5", "--test-ens", "1"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "train: 24 samples, tensor [24 3 5 3]")
	assert.Contains(t, buf.String(), "test: 12 samples, tensor [12 3 5 3]")
	for _, name := range []string{"train_TS.nc", "train_precip_90.csv", "test_TMQ.nc", "test_precip_90.csv"} {
		_, err := os.Stat(filepath.Join(out, datasets.DefaultDataDir, name))
		assert.NoError(t, err, name)
	}

	grid, y, err := datasets.TrainData(out)
	require.NoError(t, err)
	assert.Equal(t, 24, grid.Len())
	assert.Len(t, y, 24)
}

func TestSynthRejectsEmptyExtent(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--out", t.TempDir(), "--times", "0", "--no-test"})
	assert.Error(t, cmd.Execute())
}
