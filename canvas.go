package flow

import (
	"fmt"
	"math"
)

// ScreenPoint is a pointer or viewport position in screen pixels.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the on-screen box of the canvas element.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the pan offset (in screen pixels) and zoom of the canvas.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Transform is everything needed to map between screen and canvas space.
// A nil Bounds means the canvas is not mounted yet.
type Transform struct {
	Viewport Viewport `json:"viewport"`
	Bounds   *Rect    `json:"bounds"`
}

func (t Transform) check() error {
	b := t.Bounds
	if b == nil {
		return fmt.Errorf("%w: canvas not mounted", ErrViewportUnmeasured)
	}
	if !(b.Width > 0) || !(b.Height > 0) || math.IsInf(b.Width, 0) || math.IsInf(b.Height, 0) {
		return fmt.Errorf("%w: canvas size %gx%g", ErrViewportUnmeasured, b.Width, b.Height)
	}
	z := t.Viewport.Zoom
	if !(z > 0) || math.IsInf(z, 0) {
		return fmt.Errorf("%w: zoom %g", ErrViewportUnmeasured, z)
	}
	return nil
}

// Center returns the screen position of the middle of the visible canvas.
func (t Transform) Center() (ScreenPoint, error) {
	if err := t.check(); err != nil {
		return ScreenPoint{}, err
	}
	return ScreenPoint{
		X: t.Bounds.Left + t.Bounds.Width/2,
		Y: t.Bounds.Top + t.Bounds.Height/2,
	}, nil
}

// ToCanvasPosition maps a screen point to canvas space.
func ToCanvasPosition(p ScreenPoint, t Transform) (Position, error) {
	if err := t.check(); err != nil {
		return Position{}, err
	}
	vp := t.Viewport
	return Position{
		X: (p.X - t.Bounds.Left - vp.X) / vp.Zoom,
		Y: (p.Y - t.Bounds.Top - vp.Y) / vp.Zoom,
	}, nil
}

// ToScreenPosition maps a canvas position back to screen space.
func ToScreenPosition(p Position, t Transform) (ScreenPoint, error) {
	if err := t.check(); err != nil {
		return ScreenPoint{}, err
	}
	vp := t.Viewport
	return ScreenPoint{
		X: p.X*vp.Zoom + vp.X + t.Bounds.Left,
		Y: p.Y*vp.Zoom + vp.Y + t.Bounds.Top,
	}, nil
}
