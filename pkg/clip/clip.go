// Package clip describes renderable video clips.
//
// A Clip is a value describing how to produce frames: a source, an ordered
// chain of ffmpeg filters, transparency masks, overlaid layers, sequenced
// segments and audio. Operations return modified copies, so a clip handed to
// one consumer is never changed underneath another. The ffmpeg package turns
// clips into encoded files.
package clip

import (
	"fmt"
	"image"
	"image/color"

	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// SourceKind identifies what feeds a clip's frames.
type SourceKind int

const (
	// SourceColor is a solid, possibly transparent, color.
	SourceColor SourceKind = iota
	// SourceImage is a still image shown for the whole clip.
	SourceImage
	// SourceVideo is a video file, trimmed to the clip duration.
	SourceVideo
	// SourceFrames is a printf-style numbered image sequence, e.g. frame_%06d.png.
	SourceFrames
)

func (k SourceKind) String() string {
	switch k {
	case SourceColor:
		return "color"
	case SourceImage:
		return "image"
	case SourceVideo:
		return "video"
	case SourceFrames:
		return "frames"
	}
	return fmt.Sprintf("SourceKind(%d)", int(k))
}

// Source feeds a clip's frames.
type Source struct {
	Kind  SourceKind
	Path  string
	Color color.RGBA
	// FPS is the frame rate of a SourceFrames sequence.
	FPS int
}

// Audio is a track mixed into a clip.
type Audio struct {
	Path    string
	Shift   float64
	Volume  float64
	FadeIn  float64
	FadeOut float64
}

// Segment is one entry of a sequenced clip. Transition blends it into the
// next segment.
type Segment struct {
	Clip       *Clip
	Transition *spec.Transition
}

// Clip is a renderable description of a piece of video.
type Clip struct {
	// Label names the clip in logs and filter graphs, usually the scene id.
	Label string

	Width, Height int
	Duration      float64
	FPS           int

	// Source is nil for clips made only of segments.
	Source *Source
	// Alpha is the static transparency of the source content; nil is opaque.
	Alpha *image.Alpha
	// Filters are ffmpeg video filters applied in order.
	Filters []string
	// X and Y are ffmpeg overlay position expressions; empty means 0.
	X, Y string
	// Masks are applied to the clip's transparency in order.
	Masks []MaskOp
	// Layers are overlaid on top of this clip in order.
	Layers []*Clip
	// Segments, when set, play one after another instead of Source.
	Segments []Segment
	Audio    []Audio
}

// New returns a clip of the given size, duration and frame rate fed by src.
func New(label string, width, height int, duration float64, fps int, src *Source) *Clip {
	return &Clip{Label: label, Width: width, Height: height, Duration: duration, FPS: fps, Source: src}
}

// Solid returns a clip of a single color. Fully transparent colors produce a
// clip with a fully transparent alpha.
func Solid(label string, width, height int, duration float64, fps int, c color.RGBA) *Clip {
	cl := New(label, width, height, duration, fps, &Source{Kind: SourceColor, Color: c})
	if c.A != 0xff {
		a := image.NewAlpha(image.Rect(0, 0, width, height))
		for i := range a.Pix {
			a.Pix[i] = c.A
		}
		cl.Alpha = a
	}
	return cl
}

// Clone returns a copy whose slices can be modified independently.
func (c *Clip) Clone() *Clip {
	out := *c
	out.Filters = append([]string(nil), c.Filters...)
	out.Masks = append([]MaskOp(nil), c.Masks...)
	out.Layers = append([]*Clip(nil), c.Layers...)
	out.Segments = append([]Segment(nil), c.Segments...)
	out.Audio = append([]Audio(nil), c.Audio...)
	return &out
}

// WithDuration returns a copy lasting d seconds.
func (c *Clip) WithDuration(d float64) *Clip {
	out := c.Clone()
	out.Duration = d
	return out
}

// WithFilter returns a copy with f appended to the filter chain.
func (c *Clip) WithFilter(f string) *Clip {
	out := c.Clone()
	out.Filters = append(out.Filters, f)
	return out
}

// WithOffset returns a copy whose overlay position is shifted by the given
// expressions. Empty expressions leave an axis unchanged.
func (c *Clip) WithOffset(dx, dy string) *Clip {
	out := c.Clone()
	out.X = addExpr(out.X, dx)
	out.Y = addExpr(out.Y, dy)
	return out
}

func addExpr(a, b string) string {
	switch {
	case b == "":
		return a
	case a == "":
		return b
	}
	return "(" + a + ")+(" + b + ")"
}

// WithAudio returns a copy with tracks appended.
func (c *Clip) WithAudio(tracks ...Audio) *Clip {
	out := c.Clone()
	out.Audio = append(out.Audio, tracks...)
	return out
}

// Composite overlays clips[1:] on clips[0]. The first clip is the background
// and fixes the size and duration of the result.
func Composite(clips ...*Clip) *Clip {
	if len(clips) == 0 {
		return nil
	}
	if len(clips) == 1 {
		return clips[0]
	}
	out := clips[0].Clone()
	out.Layers = append(out.Layers, clips[1:]...)
	return out
}

// Sequence plays segments one after another. Each segment's transition
// overlaps it with the following one; the last segment's transition is
// ignored. Size and frame rate come from the first segment.
func Sequence(label string, segments []Segment) *Clip {
	if len(segments) == 0 {
		return nil
	}
	first := segments[0].Clip
	out := &Clip{Label: label, Width: first.Width, Height: first.Height, FPS: first.FPS}
	out.Segments = append([]Segment(nil), segments...)
	out.Segments[len(out.Segments)-1].Transition = nil
	for i, s := range out.Segments {
		out.Duration += s.Clip.Duration
		if i+1 < len(out.Segments) && s.Transition != nil {
			out.Duration -= s.Transition.Duration
		}
	}
	return out
}

// IsSequence reports whether c plays segments rather than a source.
func (c *Clip) IsSequence() bool {
	return len(c.Segments) > 0
}

// Size returns the frame size.
func (c *Clip) Size() (int, int) {
	return c.Width, c.Height
}

func (c *Clip) String() string {
	return fmt.Sprintf("clip %s %dx%d %.3fs", c.Label, c.Width, c.Height, c.Duration)
}
