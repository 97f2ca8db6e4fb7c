package clip

import (
	"image"

	"golang.org/x/image/draw"
)

// MaskMode selects how a mask source changes a clip's transparency.
type MaskMode int

const (
	// MaskReplace makes the source's alpha the clip's transparency.
	MaskReplace MaskMode = iota
	// MaskExclude removes the source's opaque region from the clip.
	MaskExclude
)

func (m MaskMode) String() string {
	if m == MaskExclude {
		return "exclude"
	}
	return "replace"
}

// MaskOp applies Source's alpha to a clip.
type MaskOp struct {
	Mode   MaskMode
	Source *Clip
}

// WithMask returns a copy with op appended to the mask chain.
func (c *Clip) WithMask(op MaskOp) *Clip {
	out := c.Clone()
	out.Masks = append(out.Masks, op)
	return out
}

// Exclude punches src's opaque region out of c.
func (c *Clip) Exclude(src *Clip) *Clip {
	return c.WithMask(MaskOp{Mode: MaskExclude, Source: src})
}

// Mask replaces c's transparency with src's alpha.
func (c *Clip) Mask(src *Clip) *Clip {
	return c.WithMask(MaskOp{Mode: MaskReplace, Source: src})
}

// HasTransparency reports whether the clip may contain non-opaque pixels.
func (c *Clip) HasTransparency() bool {
	return c.Alpha != nil || len(c.Masks) > 0
}

// StaticMask evaluates the clip's transparency from the static alphas of its
// source and mask sources, at the clip's size. A nil result means fully
// opaque. Exclusion multiplies by the inverted stencil, which on binary masks
// is the boolean AND of the current mask with NOT stencil.
//
// Rendering never calls it: the ffmpeg graph applies Masks with alphamerge
// and blend filters. StaticMask is the in-memory model of that graph, so
// mask ordering and scaling can be checked without running ffmpeg.
func (c *Clip) StaticMask() *image.Alpha {
	cur := scaleAlpha(c.Alpha, c.Width, c.Height)
	for _, op := range c.Masks {
		src := scaleAlpha(op.Source.StaticMask(), c.Width, c.Height)
		switch op.Mode {
		case MaskReplace:
			cur = src
		case MaskExclude:
			if cur == nil {
				cur = Opaque(c.Width, c.Height)
			}
			cur = subtract(cur, src)
		}
	}
	return cur
}

// Opaque returns a fully opaque alpha of the given size.
func Opaque(w, h int) *image.Alpha {
	a := image.NewAlpha(image.Rect(0, 0, w, h))
	for i := range a.Pix {
		a.Pix[i] = 0xff
	}
	return a
}

// subtract returns cur * (1 - stencil). A nil stencil is fully opaque.
func subtract(cur, stencil *image.Alpha) *image.Alpha {
	out := image.NewAlpha(cur.Rect)
	if stencil == nil {
		return out
	}
	for i, v := range cur.Pix {
		out.Pix[i] = uint8(uint16(v) * uint16(0xff-stencil.Pix[i]) / 0xff)
	}
	return out
}

// scaleAlpha returns a at w x h with origin (0,0), or nil for nil.
func scaleAlpha(a *image.Alpha, w, h int) *image.Alpha {
	if a == nil {
		return nil
	}
	b := a.Bounds()
	if b.Min == (image.Point{}) && b.Dx() == w && b.Dy() == h {
		return a
	}
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(out, out.Rect, a, b, draw.Src, nil)
	return out
}
