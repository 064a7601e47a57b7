package render

import (
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
)

var registerFonts sync.Once

// labelFont is the typeface used for point and order labels.
var labelFont = font.Font{Typeface: "Liberation", Variant: "Sans"}

// Canvas is a raster Surface backed by a gonum/plot vgimg canvas. It is
// rendered at 72 DPI so one vg point equals one pixel.
type Canvas struct {
	c      *vgimg.Canvas
	width  float64
	height float64
}

// NewCanvas creates a white canvas of the given pixel size.
func NewCanvas(width, height int) *Canvas {
	registerFonts.Do(func() {
		font.DefaultCache.Add(liberation.Collection())
	})

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(width), vg.Length(height)),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(color.White),
	)
	return &Canvas{c: c, width: float64(width), height: float64(height)}
}

// pt converts top-left pixel coordinates to the bottom-left vg space.
func (cv *Canvas) pt(v Vec) vg.Point {
	return vg.Point{X: vg.Length(v.X), Y: vg.Length(cv.height - v.Y)}
}

func (cv *Canvas) Size() (float64, float64) {
	return cv.width, cv.height
}

func (cv *Canvas) Clear(c color.Color) {
	cv.FillPolygon([]Vec{{0, 0}, {cv.width, 0}, {cv.width, cv.height}, {0, cv.height}}, c)
}

func (cv *Canvas) FillCircle(center Vec, radius float64, c color.Color) {
	p := cv.pt(center)
	r := vg.Length(radius)

	var path vg.Path
	path.Move(vg.Point{X: p.X + r, Y: p.Y})
	path.Arc(p, r, 0, 2*math.Pi)
	path.Close()

	cv.c.SetColor(c)
	cv.c.Fill(path)
}

func (cv *Canvas) StrokeLine(from, to Vec, width float64, c color.Color) {
	var path vg.Path
	path.Move(cv.pt(from))
	path.Line(cv.pt(to))

	cv.c.SetLineWidth(vg.Length(width))
	cv.c.SetColor(c)
	cv.c.Stroke(path)
}

func (cv *Canvas) StrokePolyline(pts []Vec, closed bool, width float64, c color.Color) {
	if len(pts) < 2 {
		return
	}
	var path vg.Path
	path.Move(cv.pt(pts[0]))
	for _, v := range pts[1:] {
		path.Line(cv.pt(v))
	}
	if closed {
		path.Close()
	}

	cv.c.SetLineWidth(vg.Length(width))
	cv.c.SetColor(c)
	cv.c.Stroke(path)
}

func (cv *Canvas) FillPolygon(pts []Vec, c color.Color) {
	if len(pts) < 3 {
		return
	}
	var path vg.Path
	path.Move(cv.pt(pts[0]))
	for _, v := range pts[1:] {
		path.Line(cv.pt(v))
	}
	path.Close()

	cv.c.SetColor(c)
	cv.c.Fill(path)
}

func (cv *Canvas) Text(pos Vec, size float64, s string, c color.Color) {
	face := font.DefaultCache.Lookup(labelFont, vg.Length(size))
	cv.c.SetColor(c)
	cv.c.FillString(face, cv.pt(pos), s)
}

// Image returns the backing raster.
func (cv *Canvas) Image() image.Image {
	return cv.c.Image()
}

// WritePNG encodes the canvas as PNG.
func (cv *Canvas) WritePNG(w io.Writer) error {
	_, err := vgimg.PngCanvas{Canvas: cv.c}.WriteTo(w)
	return err
}
