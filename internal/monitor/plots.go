// Package monitor renders diagnostic plots and reports for calibration
// runs: focal-plane overviews as PNG and interactive offset reports as
// HTML. Rendering is best-effort diagnostics and never gates a pipeline
// run.
package monitor

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/focalplane-data/fpmeter/internal/circles"
	"github.com/focalplane-data/fpmeter/internal/spots"
)

var (
	measuredColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	expectedColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	centreColor   = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// SaveSpotPlot writes a focal-plane overview PNG: measured spot positions
// with the metrology expectation of each matched spot overlaid.
func SaveSpotPlot(path string, table []spots.Spot) error {
	p := plot.New()
	p.Title.Text = "Focal Plane Spots"
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"

	measured := make(plotter.XYs, 0, len(table))
	expected := make(plotter.XYs, 0, len(table))
	for i := range table {
		s := &table[i]
		measured = append(measured, plotter.XY{X: s.XFP, Y: s.YFP})
		if s.Matched() {
			expected = append(expected, plotter.XY{X: s.XFPExp, Y: s.YFPExp})
		}
	}

	if len(measured) > 0 {
		sc, err := plotter.NewScatter(measured)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = measuredColor
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("measured", sc)
	}
	if len(expected) > 0 {
		sc, err := plotter.NewScatter(expected)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = expectedColor
		sc.GlyphStyle.Radius = vg.Points(1)
		p.Add(sc)
		p.Legend.Add("expected", sc)
	}
	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 10*vg.Inch, path); err != nil {
		return fmt.Errorf("save spot plot: %w", err)
	}
	return nil
}

// SaveCirclePlot writes a PNG of the accumulated per-device traces with
// each accepted fitted centre marked.
func SaveCirclePlot(path string, exposures [][]spots.Spot, fits []circles.DeviceFit) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Positioner Traces (%d devices accepted)", len(fits))
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"

	var trace plotter.XYs
	for _, table := range exposures {
		for i := range table {
			s := &table[i]
			if s.Location > 0 && s.XFP != 0 {
				trace = append(trace, plotter.XY{X: s.XFP, Y: s.YFP})
			}
		}
	}
	if len(trace) > 0 {
		sc, err := plotter.NewScatter(trace)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = measuredColor
		sc.GlyphStyle.Radius = vg.Points(1)
		p.Add(sc)
		p.Legend.Add("observations", sc)
	}

	centres := make(plotter.XYs, 0, len(fits))
	for _, f := range fits {
		centres = append(centres, plotter.XY{X: f.XFP, Y: f.YFP})
	}
	if len(centres) > 0 {
		sc, err := plotter.NewScatter(centres)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = centreColor
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("fitted centres", sc)
	}
	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 10*vg.Inch, path); err != nil {
		return fmt.Errorf("save circle plot: %w", err)
	}
	return nil
}
