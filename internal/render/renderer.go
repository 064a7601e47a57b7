// Package render draws point sets and routes onto a Surface and exports
// them as PNG.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"
	"sync"

	"golang.org/x/image/draw"

	"github.com/cwbudde/routeviz/internal/points"
)

var (
	// ErrInvalidRoute is returned when a route references a missing point.
	ErrInvalidRoute = errors.New("route references a point outside the set")
	// ErrNotRaster is returned when exporting from a surface without pixels.
	ErrNotRaster = errors.New("surface has no raster image")
)

// PointSource supplies the point set to draw.
type PointSource interface {
	Snapshot() points.Snapshot
}

// Static adapts a fixed snapshot, such as an archived run's points, to
// PointSource.
type Static points.Snapshot

func (s Static) Snapshot() points.Snapshot { return points.Snapshot(s) }

// Style holds colors and sizes used by the Renderer.
type Style struct {
	Background  color.Color
	StartColor  color.Color
	FinalColor  color.Color
	PointColor  color.Color
	LabelColor  color.Color
	RouteColor  color.Color
	LiveColor   color.Color
	PointRadius float64
	LabelSize   float64
	LabelOffset Vec
	LineWidth   float64
	ArrowLength float64
	ArrowAngle  float64
	OrderSize   float64
	OrderOffset float64
}

// DefaultStyle returns the standard colors and sizes.
func DefaultStyle() Style {
	return Style{
		Background:  color.White,
		StartColor:  color.RGBA{0x27, 0xae, 0x60, 0xff},
		FinalColor:  color.RGBA{0xe6, 0x7e, 0x22, 0xff},
		PointColor:  color.RGBA{0x66, 0x66, 0x66, 0xff},
		LabelColor:  color.Black,
		RouteColor:  color.RGBA{0x00, 0x7b, 0xff, 0xff},
		LiveColor:   color.RGBA{0x34, 0x98, 0xdb, 0xff},
		PointRadius: 8,
		LabelSize:   14,
		LabelOffset: Vec{X: 10, Y: -10},
		LineWidth:   2,
		ArrowLength: 10,
		ArrowAngle:  math.Pi / 6,
		OrderSize:   12,
		OrderOffset: 12,
	}
}

// Renderer draws the current point set and routes over it. All drawing calls
// are serialized.
type Renderer struct {
	mu      sync.Mutex
	src     PointSource
	surface Surface
	style   Style
}

// NewRenderer creates a renderer drawing src onto surface.
func NewRenderer(src PointSource, surface Surface, style Style) *Renderer {
	return &Renderer{src: src, surface: surface, style: style}
}

// Surface returns the drawing target.
func (r *Renderer) Surface() Surface {
	return r.surface
}

// DrawPoints clears the surface and draws every point with its label.
func (r *Renderer) DrawPoints() {
	snap := r.src.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawPoints(snap)
}

// DrawRoute overlays route as directed, numbered segments. Closed tours get an
// extra segment from the last point back to the first. It returns the number
// of segments drawn. Nothing is drawn when an index is out of range.
func (r *Renderer) DrawRoute(route []int) (int, error) {
	snap := r.src.Snapshot()
	if err := checkRoute(snap, route); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawRoute(snap, route), nil
}

// DrawSolution redraws the points and the labelled route in one step.
func (r *Renderer) DrawSolution(route []int) (int, error) {
	snap := r.src.Snapshot()
	if err := checkRoute(snap, route); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawPoints(snap)
	return r.drawRoute(snap, route), nil
}

// DrawLiveRoute redraws the points with route as a single polyline.
func (r *Renderer) DrawLiveRoute(route []int) error {
	snap := r.src.Snapshot()
	if err := checkRoute(snap, route); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.drawPoints(snap)
	if len(route) < 2 {
		return nil
	}
	pts := make([]Vec, len(route))
	for i, idx := range route {
		pts[i] = r.project(snap.Points[idx])
	}
	r.surface.StrokePolyline(pts, snap.Closed(), r.style.LineWidth, r.style.LiveColor)
	return nil
}

// ExportSnapshot writes the current surface as PNG.
func (r *Renderer) ExportSnapshot(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cv, ok := r.surface.(*Canvas); ok {
		if err := cv.WritePNG(w); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return nil
	}
	ras, ok := r.surface.(Rasterizer)
	if !ok {
		return ErrNotRaster
	}
	if err := png.Encode(w, ras.Image()); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// SnapshotPNG returns the current surface as PNG bytes.
func (r *Renderer) SnapshotPNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.ExportSnapshot(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Thumbnail returns the surface scaled so its longer side is maxSide pixels.
func (r *Renderer) Thumbnail(maxSide int) (image.Image, error) {
	r.mu.Lock()
	ras, ok := r.surface.(Rasterizer)
	var src image.Image
	if ok {
		src = cloneImage(ras.Image())
	}
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotRaster
	}
	return Scale(src, maxSide), nil
}

// Scale resizes img so its longer side is maxSide, keeping the aspect ratio.
// Images already within bounds are returned unchanged.
func Scale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	var tw, th int
	if w >= h {
		tw = maxSide
		th = int(math.Max(1, math.Round(float64(h)*float64(maxSide)/float64(w))))
	} else {
		th = maxSide
		tw = int(math.Max(1, math.Round(float64(w)*float64(maxSide)/float64(h))))
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func cloneImage(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// RenderRoute draws src and route with labelled arrows on a fresh canvas and
// returns the canvas.
func RenderRoute(src PointSource, route []int, width, height int) (*Canvas, error) {
	cv := NewCanvas(width, height)
	r := NewRenderer(src, cv, DefaultStyle())
	if _, err := r.DrawSolution(route); err != nil {
		return nil, err
	}
	return cv, nil
}

func (r *Renderer) project(p points.Point) Vec {
	w, h := r.surface.Size()
	return Vec{X: p.X * w, Y: p.Y * h}
}

func (r *Renderer) drawPoints(snap points.Snapshot) {
	s := r.style
	r.surface.Clear(s.Background)

	for i, p := range snap.Points {
		c := s.PointColor
		switch {
		case i == snap.Start:
			c = s.StartColor
		case i == snap.Final && snap.Final != snap.Start:
			c = s.FinalColor
		}
		pos := r.project(p)
		r.surface.FillCircle(pos, s.PointRadius, c)
		r.surface.Text(Vec{X: pos.X + s.LabelOffset.X, Y: pos.Y + s.LabelOffset.Y}, s.LabelSize, p.Label, s.LabelColor)
	}
}

func (r *Renderer) drawRoute(snap points.Snapshot, route []int) int {
	segments := 0
	for i := 0; i+1 < len(route); i++ {
		r.drawArrow(r.project(snap.Points[route[i]]), r.project(snap.Points[route[i+1]]), i+1)
		segments++
	}
	if snap.Closed() && len(route) > 0 {
		last := snap.Points[route[len(route)-1]]
		first := snap.Points[route[0]]
		r.drawArrow(r.project(last), r.project(first), len(route))
		segments++
	}
	return segments
}

// drawArrow draws a segment with a filled arrow head at its midpoint and the
// segment order above it.
func (r *Renderer) drawArrow(from, to Vec, order int) {
	s := r.style
	mid := Vec{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2}
	angle := math.Atan2(to.Y-from.Y, to.X-from.X)

	r.surface.StrokeLine(from, to, s.LineWidth, s.RouteColor)
	r.surface.FillPolygon([]Vec{
		mid,
		{X: mid.X - s.ArrowLength*math.Cos(angle-s.ArrowAngle), Y: mid.Y - s.ArrowLength*math.Sin(angle-s.ArrowAngle)},
		{X: mid.X - s.ArrowLength*math.Cos(angle+s.ArrowAngle), Y: mid.Y - s.ArrowLength*math.Sin(angle+s.ArrowAngle)},
	}, s.RouteColor)
	r.surface.Text(Vec{X: mid.X, Y: mid.Y - s.OrderOffset}, s.OrderSize, strconv.Itoa(order), s.LabelColor)
}

func checkRoute(snap points.Snapshot, route []int) error {
	for _, idx := range route {
		if idx < 0 || idx >= snap.Len() {
			return fmt.Errorf("%w: index %d, %d points", ErrInvalidRoute, idx, snap.Len())
		}
	}
	return nil
}
