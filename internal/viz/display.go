// Package viz connects a run to its visual outputs: the canvas with points
// and routes, and the progress chart.
package viz

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cwbudde/routeviz/internal/chart"
	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/render"
	"github.com/cwbudde/routeviz/internal/session"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600

	chartWidth  = 800
	chartHeight = 400

	previewSide = 256
)

// Output file names written on completion.
const (
	FinalImage   = "final.png"
	ProgressHTML = "progress.html"
	ProgressPNG  = "progress.png"
)

// Display draws a run as it progresses. It implements session.Listener.
type Display struct {
	renderer *render.Renderer
	chart    *chart.Chart
	width    int
	height   int
	outDir   string

	mu    sync.Mutex
	final []byte
}

// Option configures a Display.
type Option func(*Display)

// WithOutputDir makes the display write its final outputs into dir.
func WithOutputDir(dir string) Option {
	return func(d *Display) { d.outDir = dir }
}

// WithSize sets the canvas size in pixels.
func WithSize(width, height int) Option {
	return func(d *Display) {
		d.width = width
		d.height = height
	}
}

// New creates a display drawing the points of src onto a raster canvas.
// Chart selections are resolved against h.
func New(src render.PointSource, h chart.HistorySource, opts ...Option) *Display {
	d := &Display{width: DefaultWidth, height: DefaultHeight}
	for _, opt := range opts {
		opt(d)
	}
	d.renderer = render.NewRenderer(src, render.NewCanvas(d.width, d.height), render.DefaultStyle())
	d.chart = chart.New(h, d.renderer)
	return d
}

// Renderer returns the renderer drawing the canvas.
func (d *Display) Renderer() *render.Renderer { return d.renderer }

// Chart returns the progress chart.
func (d *Display) Chart() *chart.Chart { return d.chart }

// Size returns the canvas size in pixels.
func (d *Display) Size() (int, int) { return d.width, d.height }

// StateChanged resets the chart and draws the point layer when a run starts.
func (d *Display) StateChanged(from, to session.State) {
	if to != session.StateRunning {
		return
	}
	d.mu.Lock()
	d.final = nil
	d.mu.Unlock()

	d.chart.Reset()
	d.renderer.DrawPoints()
}

// GenerationAppended plots the result and draws its route as the live route.
func (d *Display) GenerationAppended(result, best history.GenerationResult) {
	d.chart.Append(result.Generation, result.Distance)
	if err := d.renderer.DrawLiveRoute(result.Route); err != nil {
		slog.Warn("Failed to draw live route", "generation", result.Generation, "error", err)
	}
}

// Completed draws the best route with labels and keeps the image.
func (d *Display) Completed(summary session.Summary) {
	if _, err := d.renderer.DrawSolution(summary.Best.Route); err != nil {
		slog.Warn("Failed to draw final route", "run_id", summary.RunID, "error", err)
		return
	}
	data, err := d.renderer.SnapshotPNG()
	if err != nil {
		slog.Warn("Failed to export final route", "run_id", summary.RunID, "error", err)
		return
	}

	d.mu.Lock()
	d.final = data
	d.mu.Unlock()

	if d.outDir == "" {
		return
	}
	if err := d.WriteOutputs(d.outDir); err != nil {
		slog.Error("Failed to write run outputs", "run_id", summary.RunID, "dir", d.outDir, "error", err)
		return
	}
	slog.Info("Run outputs written", "run_id", summary.RunID, "dir", d.outDir)
}

// Failed logs start failures.
func (d *Display) Failed(err error) {
	slog.Warn("Run failed to start", "error", err)
}

// FinalPNG returns the image kept from the last completed run.
func (d *Display) FinalPNG() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.final, d.final != nil
}

// CanvasPNG returns the current canvas as PNG.
func (d *Display) CanvasPNG() ([]byte, error) {
	return d.renderer.SnapshotPNG()
}

// Select redraws the route recorded for generation g.
func (d *Display) Select(g int) (history.GenerationResult, bool) {
	return d.chart.OnPointSelected(g)
}

// RoutePNG renders route on a fresh canvas of the display's size without
// touching the live canvas.
func (d *Display) RoutePNG(src render.PointSource, route []int) ([]byte, error) {
	cv, err := render.RenderRoute(src, route, d.width, d.height)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := cv.WritePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Preview renders a small image of the best route of summary. It is meant
// as a session.PreviewFunc for the archiver.
func (d *Display) Preview(summary session.Summary) ([]byte, error) {
	cv, err := render.RenderRoute(render.Static(summary.Points), summary.Best.Route, d.width, d.height)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, render.Scale(cv.Image(), previewSide)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteOutputs writes the final image and both chart views into dir.
func (d *Display) WriteOutputs(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	final, ok := d.FinalPNG()
	if !ok {
		var err error
		if final, err = d.CanvasPNG(); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(dir, FinalImage), final, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", FinalImage, err)
	}

	if err := writeWith(filepath.Join(dir, ProgressHTML), func(f *os.File) error {
		return d.chart.RenderHTML(f)
	}); err != nil {
		return err
	}
	return writeWith(filepath.Join(dir, ProgressPNG), func(f *os.File) error {
		return d.chart.RenderPNG(f, chartWidth, chartHeight)
	})
}

func writeWith(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

var _ session.Listener = (*Display)(nil)
