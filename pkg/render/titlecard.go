package render

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/fonts"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Title and subtitle sizes relative to the canvas height.
const (
	titleScale    = 0.09
	subtitleScale = 0.045
)

func (b *Builtin) titleCard(s *spec.TitleCardScene, d float64, settings spec.Settings) (*clip.Clip, error) {
	w, h := settings.Width, settings.Height
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(s.BgColor), image.Point{}, draw.Src)

	title, err := fonts.Face(fonts.Bold(s.Font), float64(h)*titleScale)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q", s.ID)
	}
	defer title.Close()

	lines := []struct {
		face font.Face
		text string
	}{{title, s.Title}}
	if s.Subtitle != "" {
		sub, err := fonts.Face(s.Font, float64(h)*subtitleScale)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q", s.ID)
		}
		defer sub.Close()
		lines = append(lines, struct {
			face font.Face
			text string
		}{sub, s.Subtitle})
	}

	// the block of lines is centered vertically, each line horizontally
	gap := int(float64(h) * 0.02)
	total := -gap
	for _, l := range lines {
		total += l.face.Metrics().Height.Ceil() + gap
	}
	y := (h - total) / 2
	src := image.NewUniform(s.Color)
	for _, l := range lines {
		m := l.face.Metrics()
		x := (w - font.MeasureString(l.face, l.text).Ceil()) / 2
		dr := &font.Drawer{Dst: canvas, Src: src, Face: l.face, Dot: fixed.P(x, y+m.Ascent.Ceil())}
		dr.DrawString(l.text)
		y += m.Height.Ceil() + gap
	}

	frame, err := b.writePNG(s.ID, canvas)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: write frame", s.ID)
	}
	c := clip.New(s.ID, w, h, d, settings.FPS, &clip.Source{Kind: clip.SourceImage, Path: frame})
	c.Alpha = alphaOf(canvas)
	return c, nil
}
