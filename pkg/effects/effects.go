// Package effects applies scene effects to clips.
//
// Every effect can post-process a finished clip through [Apply]. Effects with
// a progress transform (accel-decel) can instead reshape the normalized time
// seen by per-frame renderers; a [Pass] records which ones a renderer used so
// they are not applied a second time as post-processing on the same render.
package effects

import (
	"fmt"
	"math"
	"strings"

	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Pass is the effect list of one render of one scene. Passes are not shared
// between renders, so consumption never leaks into the scene value.
type Pass struct {
	effects  []spec.Effect
	consumed []bool
}

// NewPass starts a render pass over a copy of effects.
func NewPass(effects []spec.Effect) *Pass {
	return &Pass{
		effects:  append([]spec.Effect(nil), effects...),
		consumed: make([]bool, len(effects)),
	}
}

// Effects returns the pass's effect list.
func (p *Pass) Effects() []spec.Effect {
	return p.effects
}

// HasProgress reports whether any effect in the pass reshapes progress.
func (p *Pass) HasProgress() bool {
	for _, e := range p.effects {
		if e.HasProgressTransform() {
			return true
		}
	}
	return false
}

// TransformProgress runs t through every progress transform in order and
// marks them consumed.
func (p *Pass) TransformProgress(t float64) float64 {
	for i, e := range p.effects {
		if pt, ok := e.(spec.ProgressTransformer); ok {
			t = pt.TransformProgress(t)
			p.consumed[i] = true
		}
	}
	return t
}

// Consumed reports whether the i-th effect was used as a progress transform.
func (p *Pass) Consumed(i int) bool {
	return p.consumed[i]
}

// Remaining returns the effects not consumed, in order.
func (p *Pass) Remaining() []spec.Effect {
	var out []spec.Effect
	for i, e := range p.effects {
		if !p.consumed[i] {
			out = append(out, e)
		}
	}
	return out
}

// PostProcess applies every unconsumed effect to c in order.
func (p *Pass) PostProcess(c *clip.Clip) (*clip.Clip, error) {
	return ApplyAll(c, p.Remaining())
}

// ApplyAll applies effects to c in order.
func ApplyAll(c *clip.Clip, effects []spec.Effect) (*clip.Clip, error) {
	var err error
	for _, e := range effects {
		if c, err = Apply(e, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Apply post-processes c with e and returns the new clip.
func Apply(e spec.Effect, c *clip.Clip) (*clip.Clip, error) {
	switch e := e.(type) {
	case spec.AccelDecel:
		// the clip keeps its length: a longer retime is cut, a shorter one
		// holds its last frame
		return c.WithFilter("setpts='(" + WarpExpr(e, c.Duration) + ")/TB'"), nil
	case spec.Fade:
		return applyFade(e, c), nil
	case spec.Scroll:
		return applyScroll(e, c), nil
	case spec.Slide:
		return applySlide(e, c), nil
	case spec.Zoom:
		return applyZoom(e, c), nil
	}
	return nil, fmt.Errorf("effects: unsupported effect %T", e)
}

func applyFade(f spec.Fade, c *clip.Clip) *clip.Clip {
	d := math.Min(f.Duration, c.Duration)
	if f.Direction == spec.In {
		return c.WithFilter(fmt.Sprintf("fade=t=in:st=0:d=%s", num(d)))
	}
	return c.WithFilter(fmt.Sprintf("fade=t=out:st=%s:d=%s", num(c.Duration-d), num(d)))
}

// applySlide moves the clip's overlay position. Entrances travel from the
// side to the origin over the first Duration seconds; exits leave during the
// last Duration seconds.
func applySlide(s spec.Slide, c *clip.Clip) *clip.Clip {
	d := math.Min(s.Duration, c.Duration)
	var remaining string
	if s.Direction == spec.In {
		remaining = fmt.Sprintf("(1-min(t/%s,1))", num(d))
	} else {
		remaining = fmt.Sprintf("min(max(t-%s,0)/%s,1)", num(c.Duration-d), num(d))
	}
	switch s.Side {
	case spec.SideLeft:
		return c.WithOffset(fmt.Sprintf("-%d*%s", c.Width, remaining), "")
	case spec.SideRight:
		return c.WithOffset(fmt.Sprintf("%d*%s", c.Width, remaining), "")
	case spec.SideTop:
		return c.WithOffset("", fmt.Sprintf("-%d*%s", c.Height, remaining))
	default:
		return c.WithOffset("", fmt.Sprintf("%d*%s", c.Height, remaining))
	}
}

// applyZoom crops from Start to End and scales back to the clip size. The
// rectangles are percentages; progress is the output frame number over the
// zoom's frame count.
func applyZoom(z spec.Zoom, c *clip.Clip) *clip.Clip {
	d := z.Duration
	if d <= 0 || d > c.Duration {
		d = c.Duration
	}
	frames := math.Max(1, d*float64(c.FPS))
	p := fmt.Sprintf("min(on/%s,1)", num(frames))
	lerp := func(a, b float64) string {
		if a == b {
			return num(a)
		}
		return fmt.Sprintf("(%s+(%s)*%s)", num(a), num(b-a), p)
	}
	// zoompan crops the same fraction of both axes, so a rect that is wider
	// (or taller) in percent is matched by padding the other axis.
	r := z.Start.W / z.Start.H
	padW, padH := math.Max(1, r), math.Max(1, 1/r)
	zoom := fmt.Sprintf("100/%s", lerp(z.Start.W, z.End.W))
	if r > 1 {
		zoom = fmt.Sprintf("100/%s", lerp(z.Start.H, z.End.H))
	}
	x := fmt.Sprintf("iw*%s/100", lerp(z.Start.X, z.End.X))
	y := fmt.Sprintf("ih*%s/100", lerp(z.Start.Y, z.End.Y))
	if r != 1 {
		c = c.WithFilter(fmt.Sprintf("pad=w=ceil(iw*%s/2)*2:h=ceil(ih*%s/2)*2:x=0:y=0", num(padW), num(padH)))
		x = fmt.Sprintf("iw/%s*%s/100", num(padW), lerp(z.Start.X, z.End.X))
		y = fmt.Sprintf("ih/%s*%s/100", num(padH), lerp(z.Start.Y, z.End.Y))
	}
	return c.WithFilter(fmt.Sprintf("zoompan=z='%s':x='%s':y='%s':d=1:s=%dx%d:fps=%d",
		zoom, x, y, c.Width, c.Height, c.FPS))
}

// applyScroll pans a window across the clip at constant speed. Movement stops
// after Duration seconds when one is set.
func applyScroll(s spec.Scroll, c *clip.Clip) *clip.Clip {
	w, h := s.W, s.H
	if w == 0 {
		w = c.Width
	}
	if h == 0 {
		h = c.Height
	}
	t := "t"
	if s.Duration > 0 {
		t = fmt.Sprintf("min(t,%s)", num(s.Duration))
	}
	x := fmt.Sprintf("max(0,min(%s+%s*%s,iw-%d))", num(s.XStart), num(s.XSpeed), t, w)
	y := fmt.Sprintf("max(0,min(%s+%s*%s,ih-%d))", num(s.YStart), num(s.YSpeed), t, h)
	out := c.WithFilter(fmt.Sprintf("crop=w=%d:h=%d:x='%s':y='%s'", w, h, x, y))
	out.Width, out.Height = w, h
	return out
}

// num formats f compactly for ffmpeg expressions.
func num(f float64) string {
	s := fmt.Sprintf("%.6f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
