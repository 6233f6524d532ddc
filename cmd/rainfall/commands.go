package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/djgagne/california-rainfall-test/crossval"
	"github.com/djgagne/california-rainfall-test/datasets"
	"github.com/djgagne/california-rainfall-test/problem"
	"github.com/djgagne/california-rainfall-test/workflow"
)

// cvFlags are the fold flags shared by folds and evaluate.
type cvFlags struct {
	blockSize int
	remainder string
}

func (f *cvFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.blockSize, "block-size", crossval.DefaultBlockSize, "Samples per cross-validation group")
	cmd.Flags().StringVar(&f.remainder, "remainder", "merge", "Samples past the last full block: merge|reject")
}

func (f *cvFlags) apply(p *problem.Problem) error {
	policy, err := crossval.ParseRemainderPolicy(f.remainder)
	if err != nil {
		return err
	}
	p.CV = crossval.Blocked{BlockSize: f.blockSize, Remainder: policy}
	return nil
}

func newInspectCmd(env envConfig) *cobra.Command {
	var path, testPath string
	var withTest bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load the data sets and print their extents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := problem.California()
			var rows [][]string
			grid, y, err := p.TrainData(path)
			if err != nil {
				return errors.Wrap(err, "loading training data")
			}
			if rows, err = appendInspectRow(rows, datasets.TrainPrefix, grid, y); err != nil {
				return err
			}
			if withTest {
				grid, y, err := p.TestData(testPath)
				if err != nil {
					return errors.Wrap(err, "loading test data")
				}
				if rows, err = appendInspectRow(rows, datasets.TestPrefix, grid, y); err != nil {
					return err
				}
			}
			return renderTable(cmd.OutOrStdout(),
				[]string{"set", "samples", "ens", "time", "lat", "lon", "tensor", "positives", "base rate"}, rows)
		},
	}
	cmd.Flags().StringVar(&path, "path", env.Path, "Training data root")
	cmd.Flags().StringVar(&testPath, "test-path", env.TestPath, "Test data root")
	cmd.Flags().BoolVar(&withTest, "test", false, "Also load the test set")
	return cmd
}

func appendInspectRow(rows [][]string, name string, grid *datasets.GridStack, y []float32) ([][]string, error) {
	t, err := grid.ToGomlxTensor()
	if err != nil {
		return nil, err
	}
	pos := 0
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	rate := 0.0
	if len(y) > 0 {
		rate = float64(pos) / float64(len(y))
	}
	return append(rows, []string{
		name,
		strconv.Itoa(grid.Len()),
		strconv.Itoa(grid.Ensembles),
		strconv.Itoa(grid.Times),
		strconv.Itoa(grid.Lat),
		strconv.Itoa(grid.Lon),
		fmt.Sprint(t.Shape().Dimensions),
		strconv.Itoa(pos),
		strconv.FormatFloat(rate, 'f', 3, 64),
	}), nil
}

func newFoldsCmd(env envConfig) *cobra.Command {
	var path string
	var cv cvFlags

	cmd := &cobra.Command{
		Use:   "folds",
		Short: "List the cross-validation folds of the training set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := problem.California()
			if err := cv.apply(p); err != nil {
				return err
			}
			_, y, err := p.TrainData(path)
			if err != nil {
				return errors.Wrap(err, "loading training data")
			}
			seq, n, err := p.Folds(y)
			if err != nil {
				return err
			}
			klog.Infof("%d samples, %d folds", len(y), n)
			var rows [][]string
			for f := range seq {
				rows = append(rows, foldRow(f))
			}
			return renderTable(cmd.OutOrStdout(), []string{"group", "train", "test", "test range"}, rows)
		},
	}
	cmd.Flags().StringVar(&path, "path", env.Path, "Training data root")
	cv.register(cmd)
	return cmd
}

func foldRow(f crossval.Fold) []string {
	span := "-"
	if len(f.Test) > 0 {
		span = fmt.Sprintf("%d-%d", f.Test[0], f.Test[len(f.Test)-1])
	}
	return []string{strconv.Itoa(f.Group), strconv.Itoa(len(f.Train)), strconv.Itoa(len(f.Test)), span}
}

func newEvaluateCmd(env envConfig) *cobra.Command {
	var (
		path, testPath        string
		noTest                bool
		classifier, features  string
		factor                int
		region                string
		workers               int
		trainCache, testCache string
		plotDir               string
		cv                    cvFlags
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Cross-validate a workflow and score it on the test set",
		Long: `Train the workflow on every fold of the training set and report the
training, validation and test scores of each fold, their mean and standard
deviation, and the scores of the test predictions bagged over folds.

Example: rainfall evaluate --classifier analog --features coarsen --coarsen-factor 8 --plots output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := problem.California()
			if err := cv.apply(p); err != nil {
				return err
			}
			extractor, err := newExtractor(features, factor, region)
			if err != nil {
				return err
			}
			if p.Workflow, err = problem.NewWorkflow(classifier, extractor); err != nil {
				return err
			}

			grid, y, err := p.TrainData(path)
			if err != nil {
				return errors.Wrap(err, "loading training data")
			}
			train := &problem.Data{Grid: grid, Y: y}
			var test *problem.Data
			if !noTest {
				grid, y, err := p.TestData(testPath)
				if err != nil {
					return errors.Wrap(err, "loading test data")
				}
				test = &problem.Data{Grid: grid, Y: y}
			}

			report, err := p.Evaluate(cmd.Context(), train, test, problem.EvalOptions{
				Workers:    workers,
				TrainCache: trainCache,
				TestCache:  testCache,
			})
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), p, report); err != nil {
				return err
			}
			if plotDir != "" {
				if err := writePlots(plotDir, report); err != nil {
					return errors.Wrap(err, "plotting")
				}
				klog.Infof("wrote plots to %s", plotDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", env.Path, "Training data root")
	cmd.Flags().StringVar(&testPath, "test-path", env.TestPath, "Test data root")
	cmd.Flags().BoolVar(&noTest, "no-test", false, "Skip the test set")
	cmd.Flags().StringVar(&classifier, "classifier", "logistic", "Classifier: logistic|mlp|analog")
	cmd.Flags().StringVar(&features, "features", "field-stats", "Feature extractor: field-stats|coarsen")
	cmd.Flags().IntVar(&factor, "coarsen-factor", 8, "Block size of the coarsen extractor")
	cmd.Flags().StringVar(&region, "region", "", "Field-stats region as latmin:latmax,lonmin:lonmax")
	cmd.Flags().IntVar(&workers, "workers", env.Workers, "Folds trained at once (0 = one per CPU)")
	cmd.Flags().StringVar(&trainCache, "train-cache", "", "Gob file caching the training features")
	cmd.Flags().StringVar(&testCache, "test-cache", "", "Gob file caching the test features")
	cmd.Flags().StringVar(&plotDir, "plots", "", "Directory for reliability and ROC plots")
	cv.register(cmd)
	return cmd
}

func newExtractor(name string, factor int, region string) (workflow.FeatureExtractor, error) {
	switch name {
	case "field-stats":
		fs := workflow.FieldStats{}
		if region != "" {
			r, err := parseRegion(region)
			if err != nil {
				return nil, err
			}
			fs.Region = &r
		}
		return fs, nil
	case "coarsen":
		if region != "" {
			return nil, errors.New("--region only applies to field-stats")
		}
		return workflow.Coarsen{Factor: factor}, nil
	}
	return nil, errors.Errorf("unknown feature extractor %q", name)
}

func parseRegion(s string) (workflow.Region, error) {
	var r workflow.Region
	if _, err := fmt.Sscanf(s, "%g:%g,%g:%g", &r.LatMin, &r.LatMax, &r.LonMin, &r.LonMax); err != nil {
		return r, errors.Wrapf(err, "parsing region %q", s)
	}
	if r.LatMin > r.LatMax || r.LonMin > r.LonMax {
		return r, errors.Errorf("region %q has inverted bounds", s)
	}
	return r, nil
}
