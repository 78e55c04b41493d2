package transform

import (
	"errors"
	"math"
	"testing"
)

func near(a, b Point, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

func TestBounds(t *testing.T) {
	q := Quad{{10, 5}, {90, 0}, {100, 70}, {-4, 60}}
	r := q.Bounds()
	if r != (Rect{MinX: -4, MinY: 0, MaxX: 100, MaxY: 70}) {
		t.Errorf("Bounds() = %+v", r)
	}
	w, h := r.Size()
	if w != 104 || h != 70 {
		t.Errorf("Size() = %dx%d, want 104x70", w, h)
	}
}

func TestHomographyMapsCorners(t *testing.T) {
	tests := []struct {
		name string
		dst  Quad
	}{
		{"identity", SourceQuad(640, 480)},
		{"scaled", Quad{{0, 0}, {320, 0}, {320, 240}, {0, 240}}},
		{"keystone", Quad{{50, 50}, {350, 50}, {400, 260}, {0, 250}}},
		{"non-convex", Quad{{0, 0}, {300, 0}, {60, 40}, {0, 200}}},
		{"mirrored", Quad{{300, 0}, {0, 0}, {0, 200}, {300, 200}}},
	}

	src := SourceQuad(640, 480)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Homography(src, tt.dst)
			if err != nil {
				t.Fatalf("Homography() failed: %v", err)
			}
			for i := range src {
				got, ok := m.Project(src[i])
				if !ok {
					t.Fatalf("corner %d projected to infinity", i)
				}
				if !near(got, tt.dst[i], 1e-6) {
					t.Errorf("corner %d: got %+v, want %+v", i, got, tt.dst[i])
				}
			}
		})
	}
}

func TestHomographyIdentity(t *testing.T) {
	m, err := Homography(SourceQuad(64, 48), SourceQuad(64, 48))
	if err != nil {
		t.Fatalf("Homography() failed: %v", err)
	}
	want := Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if math.Abs(m[r][c]-want[r][c]) > 1e-9 {
				t.Fatalf("Homography() = %v, want identity", m)
			}
		}
	}
}

func TestHomographyDegenerate(t *testing.T) {
	tests := []struct {
		name string
		dst  Quad
	}{
		{"all on horizontal line", Quad{{0, 10}, {100, 10}, {200, 10}, {300, 10}}},
		{"all on diagonal", Quad{{0, 0}, {10, 10}, {20, 20}, {30, 30}}},
		{"coincident", Quad{{5, 5}, {5, 5}, {5, 5}, {5, 5}}},
		{"three collinear", Quad{{0, 0}, {50, 0}, {100, 0}, {0, 100}}},
		{"two coincident", Quad{{0, 0}, {0, 0}, {100, 100}, {0, 100}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.dst.Degenerate() {
				t.Error("Degenerate() = false")
			}
			_, err := Homography(SourceQuad(64, 48), tt.dst)
			if !errors.Is(err, ErrDegenerate) {
				t.Errorf("Homography() error = %v, want ErrDegenerate", err)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	q := Quad{{10, 20}, {30, 20}, {30, 40}, {10, 40}}.Translate(-10, -20)
	want := Quad{{0, 0}, {20, 0}, {20, 20}, {0, 20}}
	if q != want {
		t.Errorf("Translate() = %v, want %v", q, want)
	}
}
