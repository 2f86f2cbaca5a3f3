// Package calplot renders the calibration diagnostic figure: standards with
// the fitted line on top and fit residuals underneath.
package calplot

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// Default figure size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 7 * vg.Inch
)

var (
	colorStandards = color.RGBA{B: 200, A: 255}
	colorFit       = color.RGBA{R: 200, A: 255}
	colorSample    = color.RGBA{G: 150, A: 255}
	colorZero      = color.Gray{Y: 128}
)

// SamplePoint marks a measured sample on the curve plot.
type SamplePoint struct {
	C float64
	A float64
}

// Options controls the rendered figure. Zero values use the defaults.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	Sample *SamplePoint
}

// Build returns the curve plot and the residual plot.
func Build(curve *spectro.CalibrationCurve, points []spectro.StandardsPoint, opts Options) (*plot.Plot, *plot.Plot, error) {
	if !curve.Valid() {
		return nil, nil, spectro.Errorf(spectro.ErrValidation, "calplot", "curve slope must be finite and non-zero")
	}
	lo, hi := concentrationSpan(curve, points, opts.Sample)

	top := plot.New()
	top.Title.Text = opts.Title
	if top.Title.Text == "" {
		top.Title.Text = curveTitle(curve)
	}
	top.X.Label.Text = "Concentration"
	top.Y.Label.Text = "Absorbance"
	top.Add(plotter.NewGrid())

	fit, err := plotter.NewLine(plotter.XYs{
		{X: lo, Y: curve.M*lo + curve.B},
		{X: hi, Y: curve.M*hi + curve.B},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create fit line: %w", err)
	}
	fit.Color = colorFit
	fit.LineStyle.Width = vg.Points(1.5)
	top.Add(fit)
	top.Legend.Add(fmt.Sprintf("A = %.4g·C %+.4g", curve.M, curve.B), fit)

	bottom := plot.New()
	bottom.X.Label.Text = "Concentration"
	bottom.Y.Label.Text = "Residual (A)"
	bottom.Add(plotter.NewGrid())

	zero, err := plotter.NewLine(plotter.XYs{{X: lo, Y: 0}, {X: hi, Y: 0}})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create zero line: %w", err)
	}
	zero.Color = colorZero
	zero.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	bottom.Add(zero)

	if len(points) > 0 {
		std := make(plotter.XYs, len(points))
		res := make(plotter.XYs, len(points))
		for i, p := range points {
			std[i] = plotter.XY{X: p.C, Y: p.AMean}
			res[i] = plotter.XY{X: p.C, Y: p.AMean - (curve.M*p.C + curve.B)}
		}

		scatter, err := plotter.NewScatter(std)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create standards scatter: %w", err)
		}
		scatter.GlyphStyle.Color = colorStandards
		scatter.GlyphStyle.Radius = vg.Points(3)
		top.Add(scatter)
		top.Legend.Add("standards", scatter)

		resScatter, err := plotter.NewScatter(res)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create residual scatter: %w", err)
		}
		resScatter.GlyphStyle.Color = colorStandards
		resScatter.GlyphStyle.Radius = vg.Points(3)
		bottom.Add(resScatter)
	}

	if s := opts.Sample; s != nil && finite(s.C) && finite(s.A) {
		marker, err := plotter.NewScatter(plotter.XYs{{X: s.C, Y: s.A}})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create sample marker: %w", err)
		}
		marker.GlyphStyle.Color = colorSample
		marker.GlyphStyle.Radius = vg.Points(4)
		marker.GlyphStyle.Shape = draw.CrossGlyph{}
		top.Add(marker)
		top.Legend.Add("sample", marker)
	}

	top.Legend.Top = true
	top.Legend.Left = true
	top.X.Min, top.X.Max = lo, hi
	bottom.X.Min, bottom.X.Max = lo, hi
	return top, bottom, nil
}

// RenderPNG draws both plots stacked vertically and returns PNG bytes.
func RenderPNG(curve *spectro.CalibrationCurve, points []spectro.StandardsPoint, opts Options) ([]byte, error) {
	top, bottom, err := Build(curve, points, opts)
	if err != nil {
		return nil, err
	}
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}

	img := vgimg.New(w, h)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8)}
	canvases := plot.Align([][]*plot.Plot{{top}, {bottom}}, tiles, dc)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func curveTitle(c *spectro.CalibrationCurve) string {
	title := "Calibration curve"
	if c.LambdaNm > 0 {
		title = fmt.Sprintf("Calibration curve at %.1f nm", c.LambdaNm)
	}
	if c.R2 != nil {
		title += fmt.Sprintf(" (R² = %.4f)", *c.R2)
	}
	return title
}

// concentrationSpan covers zero, every standard, the validated range and the
// sample, with a small margin on each side.
func concentrationSpan(c *spectro.CalibrationCurve, points []spectro.StandardsPoint, s *SamplePoint) (float64, float64) {
	lo, hi := 0.0, 0.0
	extend := func(v float64) {
		if !finite(v) {
			return
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for _, p := range points {
		extend(p.C)
	}
	if c.Range != nil {
		extend(c.Range.CMin)
		extend(c.Range.CMax)
	}
	if s != nil {
		extend(s.C)
	}
	if hi-lo <= 0 {
		hi = lo + 1
	}
	margin := 0.05 * (hi - lo)
	return lo - margin, hi + margin
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
