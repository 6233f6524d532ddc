// Command synth writes a synthetic California rainfall data set with the
// file layout of the real one, then reads it back with the loader and
// prints what it wrote.
//
// Usage:
//
//	go run ./cmd/synth --out /tmp/rainfall --times 385
//	go run ./cmd/rainfall evaluate --path /tmp/rainfall --test-path /tmp/rainfall --block-size 385
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/djgagne/california-rainfall-test/datasets"
)

type options struct {
	out       string
	train     datasets.SyntheticConfig
	testEns   int
	testSeed  int64
	skipTest  bool
	threshold float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func newRootCmd() *cobra.Command {
	opts := options{train: datasets.DefaultSyntheticConfig()}

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic California rainfall data set",
		Long: `Write TS, PSL and TMQ NetCDF files and a precip_90 label table for a
train and a test set. A latent anomaly drives both the fields and the
extreme-rainfall label, so a working workflow scores well above chance.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), opts)
		},
	}

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	f := cmd.Flags()
	f.StringVar(&opts.out, "out", ".", "Data root; files go to <out>/data")
	f.IntVar(&opts.train.Ensembles, "ens", opts.train.Ensembles, "Training ensemble members")
	f.IntVar(&opts.train.Times, "times", opts.train.Times, "Time steps per member")
	f.IntVar(&opts.train.Lat, "lat", opts.train.Lat, "Latitude points")
	f.IntVar(&opts.train.Lon, "lon", opts.train.Lon, "Longitude points")
	f.IntVar(&opts.train.FirstYear, "first-year", opts.train.FirstYear, "Year of the first time step")
	f.Int64Var(&opts.train.Seed, "seed", opts.train.Seed, "Random seed of the training set")
	f.Float64Var(&opts.threshold, "threshold", opts.train.Threshold, "Latent anomaly above which a sample is extreme")
	f.IntVar(&opts.testEns, "test-ens", 1, "Test ensemble members")
	f.Int64Var(&opts.testSeed, "test-seed", 2, "Random seed of the test set")
	f.BoolVar(&opts.skipTest, "no-test", false, "Only write the training set")
	return cmd
}

type dataSet struct {
	prefix string
	cfg    datasets.SyntheticConfig
}

func run(w io.Writer, opts options) error {
	l := datasets.DefaultLoader()
	opts.train.Threshold = opts.threshold

	sets := []dataSet{{datasets.TrainPrefix, opts.train}}
	if !opts.skipTest {
		test := opts.train
		test.Ensembles, test.Seed = opts.testEns, opts.testSeed
		sets = append(sets, dataSet{datasets.TestPrefix, test})
	}

	for _, s := range sets {
		klog.Infof("writing %s set: %d members x %d times on %dx%d", s.prefix, s.cfg.Ensembles, s.cfg.Times, s.cfg.Lat, s.cfg.Lon)
		if err := l.WriteSynthetic(opts.out, s.prefix, s.cfg); err != nil {
			return errors.Wrapf(err, "writing %s set", s.prefix)
		}

		// read back through the loader so the files are known to be usable
		grid, labels, err := l.Read(opts.out, s.prefix)
		if err != nil {
			return errors.Wrapf(err, "reading back %s set", s.prefix)
		}
		t, err := grid.ToGomlxTensor()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d samples, tensor %v, %d extremes\n",
			s.prefix, grid.Len(), t.Shape().Dimensions, labels.Positives())
		for _, name := range l.Variables {
			fmt.Fprintf(w, "  %s\n", l.GridPath(opts.out, s.prefix, name))
		}
		fmt.Fprintf(w, "  %s\n", l.LabelPath(opts.out, s.prefix))
	}
	return nil
}
