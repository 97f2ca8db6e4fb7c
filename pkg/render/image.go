package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/effects"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

func (b *Builtin) image(s *spec.ImageScene, d float64, settings spec.Settings) (*clip.Clip, error) {
	path, err := b.Assets.Resolve(s.Image, s.Dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: image", s.ID)
	}
	src, err := decodeImage(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q", s.ID)
	}

	w, h := settings.Width, settings.Height
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(s.BgColor), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, placement(s, src.Bounds().Size(), w, h), src, src.Bounds(), draw.Over, nil)

	if err := annotate(canvas, s.Annotations, settings.Font); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: annotations", s.ID)
	}

	frame, err := b.writePNG(s.ID, canvas)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: write frame", s.ID)
	}
	c := clip.New(s.ID, w, h, d, settings.FPS, &clip.Source{Kind: clip.SourceImage, Path: frame})
	c.Alpha = alphaOf(canvas)

	if s.Zoom != nil {
		if c, err = effects.Apply(*s.Zoom, c); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: zoom", s.ID)
		}
	}
	return c, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// placement returns where an image of size src lands on a w x h canvas.
// Stretched images fill the canvas. Otherwise the image keeps its aspect
// ratio: it is sized by the width or height percentage when one is given,
// else shown at natural size shrunk to fit, and anchored by Position.
func placement(s *spec.ImageScene, src image.Point, w, h int) image.Rectangle {
	if s.Stretch || src.X == 0 || src.Y == 0 {
		return image.Rect(0, 0, w, h)
	}
	iw, ih := float64(src.X), float64(src.Y)
	var tw, th float64
	switch {
	case s.Width != nil:
		tw = float64(w) * *s.Width / 100
		th = tw * ih / iw
	case s.Height != nil:
		th = float64(h) * *s.Height / 100
		tw = th * iw / ih
	default:
		scale := min(1, float64(w)/iw, float64(h)/ih)
		tw, th = iw*scale, ih*scale
	}
	rw, rh := int(tw+0.5), int(th+0.5)

	x, y := (w-rw)/2, (h-rh)/2
	switch s.Position {
	case spec.PositionTop:
		y = 0
	case spec.PositionBottom:
		y = h - rh
	case spec.PositionLeft:
		x = 0
	case spec.PositionRight:
		x = w - rw
	}
	return image.Rect(x, y, x+rw, y+rh)
}

// alphaOf returns the alpha channel of img, or nil when it is fully opaque.
func alphaOf(img *image.RGBA) *image.Alpha {
	opaque := true
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			opaque = false
			break
		}
	}
	if opaque {
		return nil
	}
	a := image.NewAlpha(img.Bounds())
	draw.Draw(a, a.Bounds(), img, img.Bounds().Min, draw.Src)
	return a
}

// fill paints c over r with the given opacity.
func fill(dst draw.Image, r image.Rectangle, c color.RGBA, opacity float64) {
	mask := image.NewUniform(color.Alpha{A: uint8(clamp01(opacity)*255 + 0.5)})
	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
