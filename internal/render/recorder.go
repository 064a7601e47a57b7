package render

import (
	"image/color"
	"sync"
)

// OpKind names a recorded drawing primitive.
type OpKind string

const (
	OpClear    OpKind = "clear"
	OpCircle   OpKind = "circle"
	OpLine     OpKind = "line"
	OpPolyline OpKind = "polyline"
	OpPolygon  OpKind = "polygon"
	OpText     OpKind = "text"
)

// Op is one recorded primitive.
type Op struct {
	Kind   OpKind
	Points []Vec
	Radius float64
	Width  float64
	Size   float64
	Closed bool
	Text   string
	Color  color.Color
}

// Recorder is a Surface that records primitives instead of drawing them.
// Clear drops everything recorded before it.
type Recorder struct {
	mu     sync.Mutex
	width  float64
	height float64
	ops    []Op
}

// NewRecorder creates a recorder reporting the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{width: float64(width), height: float64(height)}
}

func (r *Recorder) record(op Op) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

func (r *Recorder) Size() (float64, float64) {
	return r.width, r.height
}

func (r *Recorder) Clear(c color.Color) {
	r.mu.Lock()
	r.ops = []Op{{Kind: OpClear, Color: c}}
	r.mu.Unlock()
}

func (r *Recorder) FillCircle(center Vec, radius float64, c color.Color) {
	r.record(Op{Kind: OpCircle, Points: []Vec{center}, Radius: radius, Color: c})
}

func (r *Recorder) StrokeLine(from, to Vec, width float64, c color.Color) {
	r.record(Op{Kind: OpLine, Points: []Vec{from, to}, Width: width, Color: c})
}

func (r *Recorder) StrokePolyline(pts []Vec, closed bool, width float64, c color.Color) {
	cp := make([]Vec, len(pts))
	copy(cp, pts)
	r.record(Op{Kind: OpPolyline, Points: cp, Closed: closed, Width: width, Color: c})
}

func (r *Recorder) FillPolygon(pts []Vec, c color.Color) {
	cp := make([]Vec, len(pts))
	copy(cp, pts)
	r.record(Op{Kind: OpPolygon, Points: cp, Color: c})
}

func (r *Recorder) Text(pos Vec, size float64, s string, c color.Color) {
	r.record(Op{Kind: OpText, Points: []Vec{pos}, Size: size, Text: s, Color: c})
}

// Ops returns a copy of the recorded primitives.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Count returns how many primitives of kind were recorded.
func (r *Recorder) Count(kind OpKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Texts returns the recorded strings in draw order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, op := range r.ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}
