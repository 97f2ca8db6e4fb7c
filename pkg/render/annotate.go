package render

import (
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/matzehuels/sceneweaver/pkg/fonts"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// textMargin is the distance of anchored captions from the canvas edge, in
// percent of the canvas height.
const textMargin = 5.0

// annotate draws anns over dst in order. Coordinates are percentages of the
// canvas.
func annotate(dst *image.RGBA, anns []spec.Annotation, fontName string) error {
	for i, a := range anns {
		var err error
		switch a := a.(type) {
		case spec.Highlight:
			fill(dst, pixelRect(a.Rect, dst.Bounds()), a.Color, a.Opacity)
		case spec.Text:
			err = drawText(dst, a, fontName)
		case spec.Arrow:
			drawArrow(dst, a)
		default:
			err = fmt.Errorf("unsupported annotation %T", a)
		}
		if err != nil {
			return fmt.Errorf("annotations[%d]: %w", i, err)
		}
	}
	return nil
}

func pixelRect(r spec.Rect, b image.Rectangle) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())
	return image.Rect(
		int(r.X*w/100+0.5), int(r.Y*h/100+0.5),
		int((r.X+r.W)*w/100+0.5), int((r.Y+r.H)*h/100+0.5),
	).Intersect(b)
}

func pixelPoint(p spec.Point, b image.Rectangle) (float64, float64) {
	return p.X * float64(b.Dx()) / 100, p.Y * float64(b.Dy()) / 100
}

// drawText draws a caption on a padded background box. A Position is the
// center of the box; a Location anchors it horizontally centered at the top,
// bottom or middle of the canvas.
func drawText(dst *image.RGBA, t spec.Text, fontName string) error {
	face, err := fonts.Face(fontName, t.FontSize)
	if err != nil {
		return err
	}
	defer face.Close()

	lines := strings.Split(t.Content, "\n")
	m := face.Metrics()
	lineH := m.Height.Ceil()
	var textW int
	for _, l := range lines {
		textW = max(textW, font.MeasureString(face, l).Ceil())
	}
	textH := lineH * len(lines)
	pad := int(t.FontSize*0.3 + 0.5)
	boxW, boxH := textW+2*pad, textH+2*pad

	b := dst.Bounds()
	var cx, cy float64
	if t.Position != nil {
		cx, cy = pixelPoint(*t.Position, b)
	} else {
		cx = float64(b.Dx()) / 2
		margin := textMargin * float64(b.Dy()) / 100
		switch t.Location {
		case spec.LocationTop:
			cy = margin + float64(boxH)/2
		case spec.LocationCenter:
			cy = float64(b.Dy()) / 2
		default:
			cy = float64(b.Dy()) - margin - float64(boxH)/2
		}
	}
	box := image.Rect(0, 0, boxW, boxH).Add(image.Pt(int(cx)-boxW/2, int(cy)-boxH/2))
	if t.BgOpacity > 0 {
		fill(dst, box.Intersect(b), t.BgColor, t.BgOpacity)
	}

	d := &font.Drawer{Dst: dst, Src: image.NewUniform(t.Color), Face: face}
	for i, l := range lines {
		lw := font.MeasureString(face, l).Ceil()
		x := box.Min.X + pad + (textW-lw)/2
		y := box.Min.Y + pad + i*lineH + m.Ascent.Ceil()
		d.Dot = fixed.P(x, y)
		d.DrawString(l)
	}
	return nil
}

// drawArrow draws a straight shaft ending in a triangular head at To.
func drawArrow(dst *image.RGBA, a spec.Arrow) {
	b := dst.Bounds()
	x0, y0 := pixelPoint(a.From, b)
	x1, y1 := pixelPoint(a.To, b)
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 || a.Width <= 0 {
		return
	}
	ux, uy := dx/length, dy/length // direction
	nx, ny := -uy, ux              // normal

	head := math.Min(a.Width*3, length)
	half := a.Width / 2
	sx, sy := x1-ux*head, y1-uy*head

	z := vector.NewRasterizer(b.Dx(), b.Dy())
	poly(z,
		x0+nx*half, y0+ny*half,
		sx+nx*half, sy+ny*half,
		sx-nx*half, sy-ny*half,
		x0-nx*half, y0-ny*half,
	)
	hw := a.Width * 1.5
	poly(z,
		x1, y1,
		sx+nx*hw, sy+ny*hw,
		sx-nx*hw, sy-ny*hw,
	)
	z.Draw(dst, b, image.NewUniform(a.Color), image.Point{})
}

func poly(z *vector.Rasterizer, xy ...float64) {
	z.MoveTo(float32(xy[0]), float32(xy[1]))
	for i := 2; i+1 < len(xy); i += 2 {
		z.LineTo(float32(xy[i]), float32(xy[i+1]))
	}
	z.ClosePath()
}
