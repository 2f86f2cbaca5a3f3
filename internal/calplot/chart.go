package calplot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// ChartAssetsHost serves the ECharts javascript for RenderHTML pages.
const ChartAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// RenderHTML writes an interactive page with the same two panels as
// RenderPNG: the curve with its standards, then the fit residuals.
func RenderHTML(w io.Writer, curve *spectro.CalibrationCurve, points []spectro.StandardsPoint, o Options) error {
	if !curve.Valid() {
		return spectro.Errorf(spectro.ErrValidation, "calplot", "curve slope must be finite and non-zero")
	}
	title := o.Title
	if title == "" {
		title = curveTitle(curve)
	}
	lo, hi := concentrationSpan(curve, points, o.Sample)

	fit := charts.NewLine()
	fit.AddSeries("fit", []opts.LineData{
		{Value: []interface{}{lo, curve.M*lo + curve.B}},
		{Value: []interface{}{hi, curve.M*hi + curve.B}},
	}, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	standards := make([]opts.ScatterData, 0, len(points))
	residuals := make([]opts.ScatterData, 0, len(points))
	for _, p := range points {
		if !finite(p.C) || !finite(p.AMean) {
			continue
		}
		standards = append(standards, opts.ScatterData{Value: []interface{}{p.C, p.AMean}})
		residuals = append(residuals, opts.ScatterData{Value: []interface{}{p.C, p.AMean - (curve.M*p.C + curve.B)}})
	}

	top := charts.NewScatter()
	top.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "520px", AssetsHost: ChartAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("A = %.4g·C + %.4g", curve.M, curve.B)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: lo, Max: hi, Name: "Concentration", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Absorbance", NameLocation: "middle", NameGap: 40}),
	)
	top.AddSeries("standards", standards, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	if s := o.Sample; s != nil && finite(s.C) && finite(s.A) {
		top.AddSeries("sample", []opts.ScatterData{{Value: []interface{}{s.C, s.A}, Symbol: "diamond", SymbolSize: 12}})
	}
	top.Overlap(fit)

	bottom := charts.NewScatter()
	bottom.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "280px", AssetsHost: ChartAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Residuals"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: lo, Max: hi, Name: "Concentration", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "A − fit", NameLocation: "middle", NameGap: 40}),
	)
	bottom.AddSeries("residuals", residuals, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	page := components.NewPage()
	page.SetAssetsHost(ChartAssetsHost)
	page.PageTitle = title
	page.AddCharts(top, bottom)
	return page.Render(w)
}
