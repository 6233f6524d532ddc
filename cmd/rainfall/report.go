package main

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/djgagne/california-rainfall-test/problem"
	"github.com/djgagne/california-rainfall-test/scores"
)

// newTable creates a markdown table writer.
func newTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := newTable(headers, w)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// writeReport prints the per-fold validation scores followed by the score
// summary.
func writeReport(w io.Writer, p *problem.Problem, r *problem.Report) error {
	fmt.Fprintf(w, "## %s\n\n", p.Title)

	headers := []string{"fold", "train", "valid"}
	headers = append(headers, r.ScoreNames...)
	var rows [][]string
	for _, f := range r.Folds {
		row := []string{strconv.Itoa(f.Group), strconv.Itoa(f.NTrain), strconv.Itoa(f.NValid)}
		for i, st := range p.ScoreTypes {
			row = append(row, formatScore(st, f.Valid[i]))
		}
		rows = append(rows, row)
	}
	if err := renderTable(w, headers, rows); err != nil {
		return err
	}
	fmt.Fprintln(w)

	headers = []string{"score", "train", "valid"}
	if r.Test != nil {
		headers = append(headers, "test", "bagged test")
	}
	rows = nil
	for i, st := range p.ScoreTypes {
		row := []string{st.Name(), formatSummary(st, r.Train[i]), formatSummary(st, r.Valid[i])}
		if r.Test != nil {
			row = append(row, formatSummary(st, r.Test[i]), formatScore(st, r.Bagged[i]))
		}
		rows = append(rows, row)
	}
	return renderTable(w, headers, rows)
}

func formatScore(st scores.ScoreType, v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return scores.Format(st, v)
}

func formatSummary(st scores.ScoreType, s problem.Summary) string {
	if math.IsNaN(s.Mean) {
		return "nan"
	}
	return scores.Format(st, s.Mean) + " ± " + scores.Format(st, s.Std)
}
