// Package report renders charts of ensemble builds.
package report

import (
	"fmt"
	"image/color"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/numclass/classifier"
	"github.com/YuminosukeSato/numclass/model_selection"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

var (
	scoreColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	selectedColor = color.RGBA{R: 30, G: 120, B: 200, A: 255}
)

// PlotScores draws the mean cross-validation accuracy of each kind as a
// bar chart, with fold standard deviation as error bars. Selected kinds
// are highlighted. The file format follows the extension of path.
func PlotScores(evals []classifier.Evaluation, path string) error {
	if len(evals) == 0 {
		return errors.NewModelError("PlotScores", "empty data", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Y.Label.Text = "mean CV accuracy"
	p.Y.Min, p.Y.Max = 0, 1.05

	names := make([]string, len(evals))
	all := make(plotter.Values, len(evals))
	chosen := make(plotter.Values, len(evals))
	errs := make(plotter.YErrors, len(evals))
	var selected []string
	for i, ev := range evals {
		names[i] = ev.Kind.String()
		all[i] = ev.Score
		std := model_selection.Scores(ev.FoldScores).Std()
		errs[i].Low, errs[i].High = std, std
		if ev.Selected {
			chosen[i] = ev.Score
			selected = append(selected, ev.Kind.String())
		}
	}
	p.Title.Text = fmt.Sprintf("Cross-validation scores (kept: %s)", strings.Join(selected, ", "))

	width := vg.Points(20)
	bars, err := plotter.NewBarChart(all, width)
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	bars.Color = scoreColor
	bars.LineStyle.Width = 0

	highlight, err := plotter.NewBarChart(chosen, width)
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	highlight.Color = selectedColor
	highlight.LineStyle.Width = 0

	spread, err := plotter.NewYErrorBars(struct {
		plotter.XYer
		plotter.YErrorer
	}{centers(all), errs})
	if err != nil {
		return errors.Wrap(err, "failed to build error bars")
	}

	p.Add(bars, highlight, spread)
	p.NominalX(names...)

	if err := p.Save(vg.Length(len(evals))*1.2*vg.Inch+2*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save chart to %s", path)
	}
	return nil
}

// centers places one point on top of each bar.
func centers(values plotter.Values) plotter.XYs {
	out := make(plotter.XYs, len(values))
	for i, v := range values {
		out[i] = plotter.XY{X: float64(i), Y: v}
	}
	return out
}
