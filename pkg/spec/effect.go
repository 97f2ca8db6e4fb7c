package spec

import (
	"fmt"
	"math"
)

// Effect is one entry of a scene's effect list. The set of implementations is
// closed: AccelDecel, Fade, Scroll, Slide and Zoom.
type Effect interface {
	// Type returns the discriminator used in spec files, e.g. "fade-in".
	Type() string
	// HasProgressTransform reports whether the effect reshapes the normalized
	// time coordinate seen by per-frame renderers.
	HasProgressTransform() bool
	effect()
}

// ProgressTransformer is implemented by effects that remap linear progress.
type ProgressTransformer interface {
	Effect
	TransformProgress(t float64) float64
}

// Direction selects whether an entrance or exit effect is meant.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Side is an edge of the canvas.
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideTop    Side = "top"
	SideBottom Side = "bottom"
)

// Rect is a rectangle in percent of the canvas: [x, y, width, height].
type Rect struct {
	X, Y, W, H float64
}

// FullFrame covers the whole canvas.
var FullFrame = Rect{X: 0, Y: 0, W: 100, H: 100}

// Lerp interpolates between r and to at progress p in [0,1].
func (r Rect) Lerp(to Rect, p float64) Rect {
	return Rect{
		X: r.X + (to.X-r.X)*p,
		Y: r.Y + (to.Y-r.Y)*p,
		W: r.W + (to.W-r.W)*p,
		H: r.H + (to.H-r.H)*p,
	}
}

// Point is a coordinate in percent of the canvas.
type Point struct {
	X, Y float64
}

// AccelDecel eases playback speed: slow-fast-slow for positive abruptness,
// fast-slow-fast for negative. Soonness above 1 moves the fast part later,
// below 1 earlier. Duration is the length the clip is retimed to when the
// effect is applied as a post-process.
type AccelDecel struct {
	Duration   float64
	Abruptness float64
	Soonness   float64
	MinSpeed   float64
}

func (AccelDecel) Type() string               { return "accel-decel" }
func (AccelDecel) HasProgressTransform() bool { return true }
func (AccelDecel) effect()                    {}

// TransformProgress maps linear progress t in [0,1] onto the eased curve,
// blended with linear motion by MinSpeed so playback never stalls. A zero
// Soonness counts as 1.
func (a AccelDecel) TransformProgress(t float64) float64 {
	x := t
	if a.Soonness > 0 && a.Soonness != 1 {
		x = math.Pow(t, a.Soonness)
	}
	if a.Abruptness == 0 {
		return x*(1-a.MinSpeed) + t*a.MinSpeed
	}
	p := math.Abs(a.Abruptness)
	var e float64
	if a.Abruptness > 0 {
		if x < 0.5 {
			e = math.Pow(2*x, p) / 2
		} else {
			e = 1 - math.Pow(-2*x+2, p)/2
		}
	} else {
		if x < 0.5 {
			e = (1 - math.Pow(1-2*x, p)) / 2
		} else {
			e = math.Pow(2*x-1, p)/2 + 0.5
		}
	}
	return e*(1-a.MinSpeed) + t*a.MinSpeed
}

// Fade fades the clip from or to black.
type Fade struct {
	Direction Direction
	Duration  float64
}

func (f Fade) Type() string             { return "fade-" + string(f.Direction) }
func (Fade) HasProgressTransform() bool { return false }
func (Fade) effect()                    {}

// Scroll pans a W x H window across the clip at a constant speed in pixels
// per second. Zero W or H means the clip's own size.
type Scroll struct {
	Duration       float64
	W, H           int
	XSpeed, YSpeed float64
	XStart, YStart float64
}

func (Scroll) Type() string               { return "scroll" }
func (Scroll) HasProgressTransform() bool { return false }
func (Scroll) effect()                    {}

// Slide moves the clip in from, or out towards, one side of the canvas.
type Slide struct {
	Direction Direction
	Duration  float64
	Side      Side
}

func (s Slide) Type() string             { return "slide-" + string(s.Direction) }
func (Slide) HasProgressTransform() bool { return false }
func (Slide) effect()                    {}

// Zoom crops from Start to End, interpolated linearly over Duration (or the
// whole clip when Duration is zero), and scales the crop back to the canvas.
type Zoom struct {
	Duration   float64
	Start, End Rect
}

func (Zoom) Type() string               { return "zoom" }
func (Zoom) HasProgressTransform() bool { return false }
func (Zoom) effect()                    {}

// checkZoomAspect requires both rectangles to have the same width:height
// ratio in percent, so one zoom factor moves between them.
func checkZoomAspect(f fields, z Zoom) error {
	a, b := z.Start.W*z.End.H, z.End.W*z.Start.H
	if math.Abs(a-b) > 1e-9*math.Max(a, b) {
		return f.errorf("end_rect", "must keep the width:height ratio of start_rect (%g:%g)", z.Start.W, z.Start.H)
	}
	return nil
}

// SplitProgress partitions effects into progress transforms and the rest,
// preserving order within each part.
func SplitProgress(effects []Effect) (progress, other []Effect) {
	for _, e := range effects {
		if e.HasProgressTransform() {
			progress = append(progress, e)
		} else {
			other = append(other, e)
		}
	}
	return progress, other
}

func decodeEffects(f fields) ([]Effect, error) {
	items, err := f.list("effects")
	if err != nil {
		return nil, err
	}
	out := make([]Effect, 0, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, f.errorf(fmt.Sprintf("effects[%d]", i), "expected a mapping")
		}
		e, err := decodeEffect(f.sub(fmt.Sprintf("effects[%d]", i), m))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeEffect(f fields) (Effect, error) {
	typ, err := f.requiredStr("type")
	if err != nil {
		return nil, err
	}
	switch typ {
	case "accel-decel":
		d, err := f.float("duration")
		if err != nil {
			return nil, err
		}
		if d == nil || *d <= 0 {
			return nil, f.errorf("duration", "accel-decel requires a positive duration")
		}
		a := AccelDecel{Duration: *d}
		if a.Abruptness, err = f.floatDefault("abruptness", 1.5); err != nil {
			return nil, err
		}
		if a.Soonness, err = f.floatDefault("soonness", 1.0); err != nil {
			return nil, err
		}
		if a.Soonness <= 0 {
			return nil, f.errorf("soonness", "soonness must be positive")
		}
		ms, err := f.floatDefault("min_speed", 0)
		if err != nil {
			return nil, err
		}
		a.MinSpeed = math.Min(1, math.Max(0, ms))
		return a, nil

	case "fade-in", "fade-out":
		d, err := f.float("duration")
		if err != nil {
			return nil, err
		}
		if d == nil || *d <= 0 {
			return nil, f.errorf("duration", "%s requires a positive duration", typ)
		}
		dir := In
		if typ == "fade-out" {
			dir = Out
		}
		return Fade{Direction: dir, Duration: *d}, nil

	case "scroll":
		s := Scroll{}
		if s.Duration, err = f.floatDefault("duration", 0); err != nil {
			return nil, err
		}
		w, err := f.integer("w")
		if err != nil {
			return nil, err
		}
		h, err := f.integer("h")
		if err != nil {
			return nil, err
		}
		if w != nil {
			s.W = *w
		}
		if h != nil {
			s.H = *h
		}
		if s.XSpeed, err = f.floatDefault("x_speed", 0); err != nil {
			return nil, err
		}
		if s.YSpeed, err = f.floatDefault("y_speed", 0); err != nil {
			return nil, err
		}
		if s.XStart, err = f.floatDefault("x_start", 0); err != nil {
			return nil, err
		}
		if s.YStart, err = f.floatDefault("y_start", 0); err != nil {
			return nil, err
		}
		if s.Duration < 0 || s.W < 0 || s.H < 0 {
			return nil, f.errorf("scroll", "duration and window size cannot be negative")
		}
		return s, nil

	case "slide-in", "slide-out":
		d, err := f.float("duration")
		if err != nil {
			return nil, err
		}
		if d == nil || *d <= 0 {
			return nil, f.errorf("duration", "%s requires a positive duration", typ)
		}
		side, err := f.strDefault("side", string(SideLeft))
		if err != nil {
			return nil, err
		}
		switch Side(side) {
		case SideLeft, SideRight, SideTop, SideBottom:
		default:
			return nil, f.errorf("side", "must be one of left, right, top, bottom; got %q", side)
		}
		dir := In
		if typ == "slide-out" {
			dir = Out
		}
		return Slide{Direction: dir, Duration: *d, Side: Side(side)}, nil

	case "zoom":
		z := Zoom{}
		if z.Duration, err = f.floatDefault("duration", 0); err != nil {
			return nil, err
		}
		if z.Start, err = f.rect("start_rect", FullFrame); err != nil {
			return nil, err
		}
		if z.End, err = f.rect("end_rect", FullFrame); err != nil {
			return nil, err
		}
		if z.Duration < 0 {
			return nil, f.errorf("duration", "cannot be negative")
		}
		if err := checkZoomAspect(f, z); err != nil {
			return nil, err
		}
		return z, nil
	}
	return nil, unknownType(f, "effect", typ)
}
