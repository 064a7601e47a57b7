package render

import (
	"image"
	"image/color"
)

// Vec is a pixel position with the origin at the top-left corner.
type Vec struct {
	X, Y float64
}

// Surface is a 2D drawing target
type Surface interface {
	// Size returns the drawable area in pixels
	Size() (width, height float64)

	// Clear fills the whole surface with c
	Clear(c color.Color)

	FillCircle(center Vec, radius float64, c color.Color)
	StrokeLine(from, to Vec, width float64, c color.Color)

	// StrokePolyline draws connected segments, joining the last point back to
	// the first when closed is set
	StrokePolyline(pts []Vec, closed bool, width float64, c color.Color)

	FillPolygon(pts []Vec, c color.Color)

	// Text draws s with its baseline-left corner at pos
	Text(pos Vec, size float64, s string, c color.Color)
}

// Rasterizer is implemented by surfaces backed by a pixel buffer
type Rasterizer interface {
	Image() image.Image
}
