// internal/settings/settings.go

// Package settings holds the single live transform configuration.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is returned when a settings document does not have the expected shape.
var ErrMalformed = errors.New("malformed settings")

// CornerPoint is a destination pixel coordinate.
type CornerPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Settings is the transform configuration. It is a plain value: copying it
// yields a self-consistent snapshot.
type Settings struct {
	VideoSource string      `json:"videoSource"`
	TopLeft     CornerPoint `json:"topLeft"`
	TopRight    CornerPoint `json:"topRight"`
	BottomRight CornerPoint `json:"bottomRight"`
	BottomLeft  CornerPoint `json:"bottomLeft"`
	Brightness  float64     `json:"brightness"`
	Contrast    float64     `json:"contrast"`
	// Saturation is accepted and stored but not applied to frames.
	Saturation float64 `json:"saturation"`
	Rotation   float64 `json:"rotation"`
}

// Default returns the startup settings used when nothing has been persisted.
func Default(videoSource string) Settings {
	return Settings{
		VideoSource: videoSource,
		TopLeft:     CornerPoint{X: 50, Y: 50},
		TopRight:    CornerPoint{X: 350, Y: 50},
		BottomRight: CornerPoint{X: 350, Y: 250},
		BottomLeft:  CornerPoint{X: 50, Y: 250},
		Brightness:  100,
		Contrast:    100,
		Saturation:  100,
		Rotation:    0,
	}
}

// Corners returns the destination points in topLeft, topRight, bottomRight,
// bottomLeft order.
func (s Settings) Corners() [4]CornerPoint {
	return [4]CornerPoint{s.TopLeft, s.TopRight, s.BottomRight, s.BottomLeft}
}

type pointPayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type payload struct {
	VideoSource *string       `json:"videoSource"`
	TopLeft     *pointPayload `json:"topLeft"`
	TopRight    *pointPayload `json:"topRight"`
	BottomRight *pointPayload `json:"bottomRight"`
	BottomLeft  *pointPayload `json:"bottomLeft"`
	Brightness  *float64      `json:"brightness"`
	Contrast    *float64      `json:"contrast"`
	Saturation  *float64      `json:"saturation"`
	Rotation    *float64      `json:"rotation"`
}

// Decode reads one complete settings document. Every field is required and
// must have the right JSON type; values are not range checked.
func Decode(r io.Reader) (Settings, error) {
	var p payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	// The body must hold exactly one document; only whitespace may follow.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Settings{}, fmt.Errorf("%w: unexpected data after settings document", ErrMalformed)
	}

	var missing []string
	need := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	point := func(name string, pp *pointPayload) CornerPoint {
		if pp == nil {
			missing = append(missing, name)
			return CornerPoint{}
		}
		need(name+".x", pp.X != nil)
		need(name+".y", pp.Y != nil)
		if pp.X == nil || pp.Y == nil {
			return CornerPoint{}
		}
		return CornerPoint{X: *pp.X, Y: *pp.Y}
	}

	need("videoSource", p.VideoSource != nil)
	tl := point("topLeft", p.TopLeft)
	tr := point("topRight", p.TopRight)
	br := point("bottomRight", p.BottomRight)
	bl := point("bottomLeft", p.BottomLeft)
	need("brightness", p.Brightness != nil)
	need("contrast", p.Contrast != nil)
	need("saturation", p.Saturation != nil)
	need("rotation", p.Rotation != nil)

	if len(missing) > 0 {
		return Settings{}, fmt.Errorf("%w: missing fields: %s", ErrMalformed, strings.Join(missing, ", "))
	}

	return Settings{
		VideoSource: *p.VideoSource,
		TopLeft:     tl,
		TopRight:    tr,
		BottomRight: br,
		BottomLeft:  bl,
		Brightness:  *p.Brightness,
		Contrast:    *p.Contrast,
		Saturation:  *p.Saturation,
		Rotation:    *p.Rotation,
	}, nil
}
