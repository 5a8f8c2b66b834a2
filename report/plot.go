// Package report renders charts of finished runs.
package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/SvenDH/go-pixel-evolution/ai"
)

var ErrNoStats = errors.New("no generations to plot")

// PlotFitness draws the mean best fitness and the perfect-match ratio per
// generation, both scaled to [0, 1], and saves the chart to path. The image
// format follows the file extension (png, svg, pdf, ...).
func PlotFitness(stats []ai.GenerationStats, title, path string) error {
	if len(stats) == 0 {
		return ErrNoStats
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fraction"
	p.Y.Min = 0
	p.Y.Max = 1

	fitPts := make(plotter.XYs, len(stats))
	minPts := make(plotter.XYs, len(stats))
	perfectPts := make(plotter.XYs, len(stats))
	for i, s := range stats {
		x := float64(s.Generation)
		fitPts[i] = plotter.XY{X: x, Y: s.MeanFitness / ai.MaxFitness}
		minPts[i] = plotter.XY{X: x, Y: float64(s.MinFitness) / ai.MaxFitness}
		perfectPts[i] = plotter.XY{X: x, Y: s.PerfectRatio()}
	}

	fitLine, err := plotter.NewLine(fitPts)
	if err != nil {
		return err
	}
	fitLine.LineStyle.Color = color.RGBA{R: 200, G: 50, B: 10, A: 255}
	minLine, err := plotter.NewLine(minPts)
	if err != nil {
		return err
	}
	minLine.LineStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	minLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	perfectLine, err := plotter.NewLine(perfectPts)
	if err != nil {
		return err
	}
	perfectLine.LineStyle.Color = color.RGBA{R: 20, G: 90, B: 200, A: 255}

	p.Add(plotter.NewGrid(), fitLine, minLine, perfectLine)
	p.Legend.Add("mean best fitness", fitLine)
	p.Legend.Add("worst pixel fitness", minLine)
	p.Legend.Add("perfect matches", perfectLine)
	p.Legend.Top = false
	p.Legend.Left = false

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}
