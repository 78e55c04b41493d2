package settings

import (
	"errors"
	"strings"
	"testing"
)

const validDoc = `{
	"videoSource": "clip.mov",
	"topLeft": {"x": 10, "y": 20},
	"topRight": {"x": 310.5, "y": 20},
	"bottomRight": {"x": 300, "y": 220},
	"bottomLeft": {"x": 0, "y": 230},
	"brightness": 250,
	"contrast": -40,
	"saturation": 80,
	"rotation": 725
}`

func TestDecode(t *testing.T) {
	s, err := Decode(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	want := Settings{
		VideoSource: "clip.mov",
		TopLeft:     CornerPoint{10, 20},
		TopRight:    CornerPoint{310.5, 20},
		BottomRight: CornerPoint{300, 220},
		BottomLeft:  CornerPoint{0, 230},
		Brightness:  250,
		Contrast:    -40,
		Saturation:  80,
		Rotation:    725,
	}
	if s != want {
		t.Errorf("Decode() = %+v, want %+v", s, want)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `nope`},
		{"empty object", `{}`},
		{"wrong type", strings.Replace(validDoc, `"brightness": 250`, `"brightness": "bright"`, 1)},
		{"point not object", strings.Replace(validDoc, `"topLeft": {"x": 10, "y": 20}`, `"topLeft": [10, 20]`, 1)},
		{"missing point coordinate", strings.Replace(validDoc, `"bottomLeft": {"x": 0, "y": 230}`, `"bottomLeft": {"x": 0}`, 1)},
		{"missing rotation", strings.Replace(validDoc, `"rotation": 725`, `"rotationDeg": 725`, 1)},
		{"source not string", strings.Replace(validDoc, `"videoSource": "clip.mov"`, `"videoSource": 3`, 1)},
		{"trailing garbage", validDoc + ` {"garbage`},
		{"second document", validDoc + validDoc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecodeAllowsTrailingWhitespace(t *testing.T) {
	if _, err := Decode(strings.NewReader(validDoc + "\n\t \n")); err != nil {
		t.Errorf("Decode() failed: %v", err)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	doc := strings.Replace(validDoc, `"rotation": 725`, `"rotation": 725, "scale": 100`, 1)
	if _, err := Decode(strings.NewReader(doc)); err != nil {
		t.Errorf("Decode() with extra field failed: %v", err)
	}
}

func TestCornersOrder(t *testing.T) {
	s := Default("a.mp4")
	c := s.Corners()
	if c[0] != s.TopLeft || c[1] != s.TopRight || c[2] != s.BottomRight || c[3] != s.BottomLeft {
		t.Errorf("Corners() = %v, wrong order", c)
	}
}
