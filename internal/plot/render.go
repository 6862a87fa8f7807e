package plot

import (
	"html"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// PageTitle is the <title> of the rendered page.
const PageTitle = "vectorize"

// tooltipFormatter shows title, URL and preview. The metadata travels as
// trailing value dimensions after the coordinates.
const tooltipFormatter = `function (p) {
  var v = p.value, n = v.length;
  return '<b>' + v[n - 3] + '</b><br/>' + v[n - 2] + '<br/><br/>' + v[n - 1];
}`

// RenderHTML writes one HTML page containing every figure.
func RenderHTML(w io.Writer, figs ...*Figure) error {
	page := components.NewPage()
	page.PageTitle = PageTitle
	for _, f := range figs {
		if f == nil {
			continue
		}
		if f.Dims == 3 {
			page.AddCharts(scatter3D(f))
		} else {
			page.AddCharts(scatter2D(f))
		}
	}
	return page.Render(w)
}

func globalOpts(f *Figure) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: PageTitle,
			Width:     "900px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{Title: f.Title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      opts.Bool(true),
			Trigger:   "item",
			Formatter: opts.FuncOpts(tooltipFormatter),
		}),
	}
}

func scatter2D(f *Figure) *charts.Scatter {
	chart := charts.NewScatter()
	chart.SetGlobalOptions(globalOpts(f)...)

	data := make([]opts.ScatterData, 0, len(f.Points))
	for _, p := range f.Points {
		data = append(data, opts.ScatterData{
			Name:       escape(p.Title),
			Value:      []any{p.X, p.Y, escape(p.Title), escape(p.URL), escape(p.Preview)},
			SymbolSize: f.MarkerSize,
		})
	}
	chart.AddSeries(f.Method.String(), data)
	return chart
}

func scatter3D(f *Figure) *charts.Scatter3D {
	chart := charts.NewScatter3D()
	chart.SetGlobalOptions(globalOpts(f)...)

	data := make([]opts.Chart3DData, 0, len(f.Points))
	for _, p := range f.Points {
		data = append(data, opts.Chart3DData{
			Name:  escape(p.Title),
			Value: []any{p.X, p.Y, p.Z, escape(p.Title), escape(p.URL), escape(p.Preview)},
		})
	}
	chart.AddSeries(f.Method.String(), data, func(s *charts.SingleSeries) {
		s.SymbolSize = f.MarkerSize
	})
	return chart
}

// escape keeps page text from being interpreted as tooltip markup.
func escape(s string) string {
	return html.EscapeString(s)
}
