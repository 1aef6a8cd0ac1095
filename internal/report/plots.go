package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tellurium-labs/assay.report/internal/align"
)

// WriteScatterPNG plots candidate values against original values for each
// aligned pair, with a y=x identity line for reference.
func WriteScatterPNG(w io.Writer, res *align.Result) error {
	p := plot.New()
	p.Title.Text = "Candidate vs original"
	p.X.Label.Text = "original"
	p.Y.Label.Text = "candidate"

	pts := make(plotter.XYs, 0, res.Len())
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, pair := range res.Pairs {
		pts = append(pts, plotter.XY{X: pair.Orig, Y: pair.Cand})
		minV = math.Min(minV, math.Min(pair.Orig, pair.Cand))
		maxV = math.Max(maxV, math.Max(pair.Orig, pair.Cand))
	}
	if len(pts) == 0 {
		minV, maxV = 0, 1
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	scatter.GlyphStyle.Color = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}
	p.Add(scatter)

	identity, err := plotter.NewLine(plotter.XYs{{X: minV, Y: minV}, {X: maxV, Y: maxV}})
	if err != nil {
		return fmt.Errorf("failed to build identity line: %w", err)
	}
	identity.Width = vg.Points(1)
	identity.Color = color.RGBA{R: 0xaa, G: 0xaa, B: 0xaa, A: 0xff}
	p.Add(identity)
	p.Legend.Add("y = x", identity)

	return writePNG(w, p, 8*vg.Inch, 8*vg.Inch)
}

// WriteResidualHistogramPNG plots the distribution of pair residuals.
func WriteResidualHistogramPNG(w io.Writer, res *align.Result) error {
	p := plot.New()
	p.Title.Text = "Residuals (candidate - original)"
	p.X.Label.Text = "residual"
	p.Y.Label.Text = "count"

	vals := make(plotter.Values, 0, res.Len())
	for _, pair := range res.Pairs {
		if !math.IsNaN(pair.Residual) && !math.IsInf(pair.Residual, 0) {
			vals = append(vals, pair.Residual)
		}
	}
	if len(vals) == 0 {
		vals = plotter.Values{0}
	}

	bins := 20
	if len(vals) < 40 {
		bins = 10
	}
	hist, err := plotter.NewHist(vals, bins)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	hist.FillColor = color.RGBA{R: 0x35, G: 0xb7, B: 0x79, A: 0xff}
	p.Add(hist)

	return writePNG(w, p, 10*vg.Inch, 6*vg.Inch)
}

func writePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to prepare png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
