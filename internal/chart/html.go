package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/event"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartID is the element ID of the rendered chart. The page script exposes
// the echarts instance as goecharts_progress.
const ChartID = "progress"

// HTMLOption customizes RenderHTML.
type HTMLOption func(*htmlConfig)

type htmlConfig struct {
	width      string
	height     string
	assetsHost string
	selectURL  string
}

// WithSize sets the CSS size of the chart.
func WithSize(width, height string) HTMLOption {
	return func(c *htmlConfig) {
		c.width, c.height = width, height
	}
}

// WithAssetsHost serves the echarts scripts from host instead of the CDN.
func WithAssetsHost(host string) HTMLOption {
	return func(c *htmlConfig) {
		c.assetsHost = host
	}
}

// WithSelectURL posts to prefix + "<generation>/select" when a point is
// clicked.
func WithSelectURL(prefix string) HTMLOption {
	return func(c *htmlConfig) {
		c.selectURL = prefix
	}
}

// RenderHTML writes a standalone HTML page with the best-distance line chart.
func (c *Chart) RenderHTML(w io.Writer, options ...HTMLOption) error {
	cfg := htmlConfig{width: "900px", height: "400px"}
	for _, o := range options {
		o(&cfg)
	}

	series := c.Series()
	summary := Summarize(series.Generations, series.Distances)

	x := make([]string, len(series.Generations))
	y := make([]opts.LineData, len(series.Distances))
	for i, g := range series.Generations {
		x[i] = fmt.Sprintf("%d", g)
		y[i] = opts.LineData{Value: series.Distances[i]}
	}

	init := opts.Initialization{
		PageTitle: "Route optimization progress",
		ChartID:   ChartID,
		Width:     cfg.width,
		Height:    cfg.height,
	}
	if cfg.assetsHost != "" {
		init.AssetsHost = cfg.assetsHost
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{
			Title:    "Best Distance",
			Subtitle: fmt.Sprintf("generations=%d best=%.4f", summary.Count, summary.Min),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Generation", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Best Distance", NameLocation: "middle", NameGap: 40}),
	)
	if cfg.selectURL != "" {
		line.SetGlobalOptions(charts.WithEventListeners(event.Listener{
			EventName: "click",
			Handler: opts.FuncOpts(fmt.Sprintf(
				`(params) => fetch(%q + params.name + "/select", {method: "POST"})`, cfg.selectURL)),
		}))
	}

	line.SetXAxis(x).AddSeries("Best Distance", y,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(true)}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}),
	)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
