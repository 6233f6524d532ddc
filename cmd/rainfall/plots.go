package main

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/djgagne/california-rainfall-test/prediction"
	"github.com/djgagne/california-rainfall-test/problem"
	"github.com/djgagne/california-rainfall-test/scores"
)

// curve is one labelled set of forecasts to plot.
type curve struct {
	name  string
	truth []float64
	proba []float64
	color color.RGBA
}

var (
	validColor = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	testColor  = color.RGBA{R: 200, G: 30, B: 30, A: 220}
	refColor   = color.RGBA{R: 120, G: 120, B: 120, A: 180}
)

// writePlots saves reliability.png and roc.png for the out-of-fold and,
// when present, the bagged test predictions.
func writePlots(outDir string, r *problem.Report) error {
	curves := []curve{validCurve("out-of-fold", r.Truth, r.OutOfFold, validColor)}
	if r.BaggedTest != nil {
		curves = append(curves, validCurve("bagged test", r.TestTruth, r.BaggedTest, testColor))
	}
	if err := ensureDir(outDir); err != nil {
		return err
	}
	if err := plotReliability(filepath.Join(outDir, "reliability.png"), curves); err != nil {
		return err
	}
	return plotROC(filepath.Join(outDir, "roc.png"), curves)
}

// validCurve keeps the predicted rows of pred.
func validCurve(name string, truth, pred *prediction.Predictions, c color.RGBA) curve {
	t, p := truth.PositiveProba(), pred.PositiveProba()
	out := curve{name: name, color: c}
	for _, i := range pred.ValidIndexes() {
		out.truth = append(out.truth, t[i])
		out.proba = append(out.proba, p[i])
	}
	return out
}

func diagonal(p *plot.Plot) error {
	ref, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	ref.Color = refColor
	ref.Width = vg.Points(0.8)
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(ref)
	p.Legend.Add("reference", ref)
	return nil
}

func plotReliability(outPath string, curves []curve) error {
	p := plot.New()
	p.Title.Text = "Reliability"
	p.X.Label.Text = "forecast probability"
	p.Y.Label.Text = "observed frequency"
	p.Add(plotter.NewGrid())
	if err := diagonal(p); err != nil {
		return err
	}

	for _, c := range curves {
		var xys plotter.XYs
		for _, b := range scores.ReliabilityCurve(c.truth, c.proba, nil) {
			if b.Count == 0 {
				continue
			}
			// forecasts of exactly 1 sit in the last bin, centred past 1
			xys = append(xys, plotter.XY{X: math.Min(b.Center, 1), Y: b.ObservedFreq})
		}
		if len(xys) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return err
		}
		line.Color = c.color
		line.Width = vg.Points(1.2)
		points.Shape = draw.CircleGlyph{}
		points.Color = c.color
		points.Radius = vg.Points(2.5)
		p.Add(line, points)
		p.Legend.Add(c.name, line, points)
	}

	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = autoRange(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	p.Legend.Top = true
	p.Legend.Left = true
	return p.Save(6*vg.Inch, 6*vg.Inch, outPath)
}

func plotROC(outPath string, curves []curve) error {
	p := plot.New()
	p.Title.Text = "ROC"
	p.X.Label.Text = "false positive rate"
	p.Y.Label.Text = "true positive rate"
	p.Add(plotter.NewGrid())
	if err := diagonal(p); err != nil {
		return err
	}

	auc := scores.NewROCAUC("AUC", 3)
	for _, c := range curves {
		fpr, tpr := scores.ROCCurve(c.truth, c.proba)
		if fpr == nil {
			continue
		}
		xys := make(plotter.XYs, len(fpr))
		for i := range fpr {
			xys[i] = plotter.XY{X: fpr[i], Y: tpr[i]}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = c.color
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(c.name+" (AUC "+scores.Format(auc, auc.Score(c.truth, c.proba))+")", line)
	}

	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = autoRange(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	p.Legend.Top = false
	return p.Save(6*vg.Inch, 6*vg.Inch, outPath)
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xs plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xs) == 0 {
		return -1, 1, -1, 1
	}
	xmin = math.Inf(1)
	xmax = math.Inf(-1)
	ymin = math.Inf(1)
	ymax = math.Inf(-1)
	for _, p := range xs {
		xmin = math.Min(xmin, p.X)
		xmax = math.Max(xmax, p.X)
		ymin = math.Min(ymin, p.Y)
		ymax = math.Max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.04
	pady := (ymax - ymin) * 0.04
	if padx == 0 {
		padx = 1.0
	}
	if pady == 0 {
		pady = 1.0
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
