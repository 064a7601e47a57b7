package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var seriesColor = color.RGBA{0x34, 0x98, 0xdb, 0xff}

// RenderPNG writes the series as a PNG line plot. Width and height are in
// points.
func (c *Chart) RenderPNG(w io.Writer, width, height float64) error {
	series := c.Series()

	p := plot.New()
	p.Title.Text = "Best Distance"
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Best Distance"
	p.Add(plotter.NewGrid())

	if len(series.Generations) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	} else {
		pts := make(plotter.XYs, len(series.Generations))
		for i, g := range series.Generations {
			pts[i] = plotter.XY{X: float64(g), Y: series.Distances[i]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create line: %w", err)
		}
		line.Color = seriesColor
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add("Best Distance", line)
		p.Legend.Top = true
	}

	wt, err := p.WriterTo(vg.Length(width), vg.Length(height), "png")
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}
