package spec

import (
	"fmt"
	"image/color"
)

// Annotation is an overlay drawn on top of an image scene. Implementations:
// Highlight, Text and Arrow.
type Annotation interface {
	AnnotationType() string
	annotation()
}

// Highlight tints a rectangle of the canvas.
type Highlight struct {
	Rect    Rect
	Color   color.RGBA
	Opacity float64
}

// TextLocation anchors text along the canvas instead of at a point.
type TextLocation string

const (
	LocationTop    TextLocation = "top"
	LocationBottom TextLocation = "bottom"
	LocationCenter TextLocation = "center"
)

// Text draws a caption either at Position or anchored at Location.
type Text struct {
	Content   string
	Position  *Point
	Location  TextLocation
	FontSize  float64
	Color     color.RGBA
	BgColor   color.RGBA
	BgOpacity float64
}

// Arrow draws a line with a head at To.
type Arrow struct {
	From, To Point
	Color    color.RGBA
	Width    float64
}

func (Highlight) AnnotationType() string { return "highlight" }
func (Highlight) annotation()            {}
func (Text) AnnotationType() string      { return "text" }
func (Text) annotation()                 {}
func (Arrow) AnnotationType() string     { return "arrow" }
func (Arrow) annotation()                {}

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.RGBA{A: 255}
	red   = color.RGBA{R: 255, A: 255}
	gold  = color.RGBA{R: 255, G: 215, A: 255}
)

func decodeAnnotations(f fields) ([]Annotation, error) {
	items, err := f.list("annotations")
	if err != nil {
		return nil, err
	}
	out := make([]Annotation, 0, len(items))
	for i, item := range items {
		where := fmt.Sprintf("annotations[%d]", i)
		m, ok := asMap(item)
		if !ok {
			return nil, f.errorf(where, "expected a mapping")
		}
		a, err := decodeAnnotation(f.sub(where, m))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAnnotation(f fields) (Annotation, error) {
	typ, err := f.requiredStr("type")
	if err != nil {
		return nil, err
	}
	switch typ {
	case "highlight":
		if !f.present("rect") {
			return nil, f.errorf("rect", "missing required field")
		}
		h := Highlight{}
		if h.Rect, err = f.rect("rect", FullFrame); err != nil {
			return nil, err
		}
		if h.Color, err = f.color("color", gold); err != nil {
			return nil, err
		}
		if h.Opacity, err = f.floatDefault("opacity", 0.4); err != nil {
			return nil, err
		}
		if h.Opacity < 0 || h.Opacity > 1 {
			return nil, f.errorf("opacity", "must be between 0 and 1")
		}
		return h, nil

	case "text":
		t := Text{}
		content, _, err := f.str("content")
		if err != nil {
			return nil, err
		}
		if content == "" {
			if content, _, err = f.str("caption"); err != nil {
				return nil, err
			}
		}
		if content == "" {
			return nil, f.errorf("content", "text annotation requires content or caption")
		}
		t.Content = content
		if t.Position, err = f.point("position"); err != nil {
			return nil, err
		}
		loc, hasLoc, err := f.str("location")
		if err != nil {
			return nil, err
		}
		switch {
		case t.Position == nil && !hasLoc:
			return nil, f.errorf("position", "text annotation requires position or location")
		case t.Position != nil && hasLoc:
			return nil, f.errorf("location", "cannot be combined with position")
		}
		if hasLoc {
			switch TextLocation(loc) {
			case LocationTop, LocationBottom, LocationCenter:
				t.Location = TextLocation(loc)
			default:
				return nil, f.errorf("location", "must be top, bottom or center; got %q", loc)
			}
		}
		if t.FontSize, err = f.floatDefault("fontsize", 36); err != nil {
			return nil, err
		}
		if t.Color, err = f.color("color", white); err != nil {
			return nil, err
		}
		if t.BgColor, err = f.color("bg_color", black); err != nil {
			return nil, err
		}
		if t.BgOpacity, err = f.floatDefault("bg_opacity", 0.7); err != nil {
			return nil, err
		}
		if t.FontSize <= 0 {
			return nil, f.errorf("fontsize", "must be positive")
		}
		return t, nil

	case "arrow":
		from, err := f.point("from")
		if err != nil {
			return nil, err
		}
		to, err := f.point("to")
		if err != nil {
			return nil, err
		}
		if from == nil || to == nil {
			return nil, f.errorf("from", "arrow requires from and to")
		}
		a := Arrow{From: *from, To: *to}
		if a.Color, err = f.color("color", red); err != nil {
			return nil, err
		}
		if a.Width, err = f.floatDefault("width", 8); err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, unknownType(f, "annotation", typ)
}
