// Package transform maps a decoded frame onto the configured destination
// quadrilateral, applies brightness/contrast, rotates the result and encodes
// it as JPEG.
package transform

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/AlverezYari/warpframe/internal/frameslot"
	"github.com/AlverezYari/warpframe/internal/settings"
)

// DefaultJPEGQuality matches OpenCV's default for IMEncode.
const DefaultJPEGQuality = 95

// Plan is the geometry derived from one settings snapshot for a w×h frame.
type Plan struct {
	Matrix Matrix
	Width  int
	Height int
}

// NewPlan computes the output canvas and the perspective matrix. It is
// recomputed for every frame since settings may change between frames.
func NewPlan(w, h int, s settings.Settings) (Plan, error) {
	var dst Quad
	for i, c := range s.Corners() {
		dst[i] = Point{c.X, c.Y}
	}

	bounds := dst.Bounds()
	outW, outH := bounds.Size()
	if outW <= 0 || outH <= 0 {
		return Plan{}, fmt.Errorf("%w: output size %dx%d", ErrDegenerate, outW, outH)
	}

	m, err := Homography(SourceQuad(w, h), dst.Translate(-bounds.MinX, -bounds.MinY))
	if err != nil {
		return Plan{}, err
	}
	return Plan{Matrix: m, Width: outW, Height: outH}, nil
}

// Apply runs the full transform on src. The caller owns the returned Mat,
// which is empty when err is set.
func Apply(src gocv.Mat, s settings.Settings) (gocv.Mat, error) {
	plan, err := NewPlan(src.Cols(), src.Rows(), s)
	if err != nil {
		return gocv.NewMat(), err
	}

	warped, err := warp(src, plan)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer warped.Close()

	colored, err := adjustColor(warped, s.Brightness, s.Contrast)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer colored.Close()

	out, err := rotate(colored, s.Rotation)
	if err != nil {
		return gocv.NewMat(), err
	}
	return out, nil
}

// Each stage below returns a new Mat owned by the caller. On error the stage
// releases what it allocated and the returned Mat must not be used.

func warp(src gocv.Mat, plan Plan) (gocv.Mat, error) {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, plan.Matrix[r][c])
		}
	}

	dst := gocv.NewMat()
	if err := gocv.WarpPerspective(src, &dst, m, image.Pt(plan.Width, plan.Height)); err != nil {
		dst.Close()
		return gocv.Mat{}, fmt.Errorf("error warping frame to %dx%d: %w", plan.Width, plan.Height, err)
	}
	return dst, nil
}

// adjustColor computes saturate(src*contrast/100 + brightness-100) per channel.
func adjustColor(src gocv.Mat, brightness, contrast float64) (gocv.Mat, error) {
	alpha := contrast / 100
	beta := brightness - 100
	if alpha == 1 && beta == 0 {
		return src.Clone(), nil
	}

	dst := gocv.NewMat()
	if err := gocv.AddWeighted(src, alpha, src, 0, beta, &dst); err != nil {
		dst.Close()
		return gocv.Mat{}, fmt.Errorf("error adjusting brightness/contrast: %w", err)
	}
	return dst, nil
}

// rotate turns src by degrees about its own center at unit scale. The canvas
// keeps its size; corners rotated outside it are clipped.
func rotate(src gocv.Mat, degrees float64) (gocv.Mat, error) {
	if math.Mod(degrees, 360) == 0 {
		return src.Clone(), nil
	}

	w, h := src.Cols(), src.Rows()
	m := gocv.GetRotationMatrix2D(image.Pt(w/2, h/2), degrees, 1)
	defer m.Close()

	dst := gocv.NewMat()
	if err := gocv.WarpAffine(src, &dst, m, image.Pt(w, h)); err != nil {
		dst.Close()
		return gocv.Mat{}, fmt.Errorf("error rotating frame by %g degrees: %w", degrees, err)
	}
	return dst, nil
}

// Renderer turns slot frames into JPEG images.
type Renderer struct {
	Quality int
}

// NewRenderer returns a Renderer encoding at quality (1-100). Zero selects
// DefaultJPEGQuality.
func NewRenderer(quality int) *Renderer {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Renderer{Quality: quality}
}

// Render transforms f with s and encodes the result.
func (r *Renderer) Render(f *frameslot.Frame, s settings.Settings) ([]byte, error) {
	if len(f.Data) != f.Width*f.Height*3 {
		return nil, fmt.Errorf("frame %d: %d bytes for %dx%d", f.Seq, len(f.Data), f.Width, f.Height)
	}

	src, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return nil, fmt.Errorf("error wrapping frame: %w", err)
	}
	defer src.Close()

	out, err := Apply(src, s)
	defer out.Close()
	if err != nil {
		return nil, err
	}

	return r.Encode(out)
}

// Encode compresses img as JPEG.
func (r *Renderer) Encode(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, r.Quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}
