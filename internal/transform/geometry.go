package transform

import (
	"errors"
	"math"
)

// ErrDegenerate is returned when the destination quadrilateral cannot carry a
// perspective mapping: zero-size bounds, coincident or collinear corners.
var ErrDegenerate = errors.New("transform: degenerate destination quadrilateral")

// Point is a 2D pixel coordinate.
type Point struct {
	X, Y float64
}

// Quad is four corners in topLeft, topRight, bottomRight, bottomLeft order.
type Quad [4]Point

// SourceQuad returns the corners of a w×h frame.
func SourceQuad(w, h int) Quad {
	fw, fh := float64(w), float64(h)
	return Quad{{0, 0}, {fw, 0}, {fw, fh}, {0, fh}}
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Size returns the integer canvas size covering the box.
func (r Rect) Size() (w, h int) {
	return int(math.Round(r.Width())), int(math.Round(r.Height()))
}

// Bounds returns the bounding box of q.
func (q Quad) Bounds() Rect {
	r := Rect{MinX: q[0].X, MinY: q[0].Y, MaxX: q[0].X, MaxY: q[0].Y}
	for _, p := range q[1:] {
		r.MinX = math.Min(r.MinX, p.X)
		r.MinY = math.Min(r.MinY, p.Y)
		r.MaxX = math.Max(r.MaxX, p.X)
		r.MaxY = math.Max(r.MaxY, p.Y)
	}
	return r
}

// Translate returns q shifted by (dx, dy).
func (q Quad) Translate(dx, dy float64) Quad {
	var out Quad
	for i, p := range q {
		out[i] = Point{p.X + dx, p.Y + dy}
	}
	return out
}

// Degenerate reports whether any three corners of q are collinear (which
// includes coincident corners). Such a quad has no projective preimage of a
// rectangle.
func (q Quad) Degenerate() bool {
	r := q.Bounds()
	scale := math.Max(r.Width(), r.Height())
	if scale == 0 {
		return true
	}
	eps := 1e-9 * scale * scale
	for i := 0; i < 4; i++ {
		a, b, c := q[i], q[(i+1)%4], q[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
		if math.Abs(cross) <= eps {
			return true
		}
	}
	return false
}

// Matrix is a 3×3 homogeneous transform in row-major order.
type Matrix [3][3]float64

// Project maps p through m. ok is false when p lands on the line at infinity.
func (m Matrix) Project(p Point) (Point, bool) {
	w := m[2][0]*p.X + m[2][1]*p.Y + m[2][2]
	if math.Abs(w) < 1e-12 {
		return Point{}, false
	}
	return Point{
		X: (m[0][0]*p.X + m[0][1]*p.Y + m[0][2]) / w,
		Y: (m[1][0]*p.X + m[1][1]*p.Y + m[1][2]) / w,
	}, true
}

// Homography solves for the perspective transform taking src[i] to dst[i].
// The bottom-right element is fixed at 1, leaving eight unknowns.
func Homography(src, dst Quad) (Matrix, error) {
	if src.Degenerate() || dst.Degenerate() {
		return Matrix{}, ErrDegenerate
	}

	var a [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a[2*i] = [9]float64{x, y, 1, 0, 0, 0, -x * u, -y * u, u}
		a[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -x * v, -y * v, v}
	}

	// Gaussian elimination with partial pivoting on the augmented system.
	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return Matrix{}, ErrDegenerate
		}
		a[col], a[pivot] = a[pivot], a[col]

		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			f := a[row][col] / a[col][col]
			if f == 0 {
				continue
			}
			for k := col; k < 9; k++ {
				a[row][k] -= f * a[col][k]
			}
		}
	}

	var h [8]float64
	for i := range h {
		h[i] = a[i][8] / a[i][i]
	}
	return Matrix{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], 1},
	}, nil
}
