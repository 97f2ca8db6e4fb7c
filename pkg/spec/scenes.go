package spec

import (
	"fmt"
	"image/color"
	"strings"
)

// Position places a non-stretched image on the canvas.
type Position string

const (
	PositionCenter Position = "center"
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
)

// Arrange selects how a composite plays its children.
type Arrange string

const (
	// ArrangeLayers stacks children into compositing groups.
	ArrangeLayers Arrange = "layers"
	// ArrangeSequence plays children one after another.
	ArrangeSequence Arrange = "sequence"
)

// ColorScene is a solid color frame.
type ColorScene struct {
	Base
	Color color.RGBA
}

// ImageScene shows a still image, optionally annotated and zoomed.
type ImageScene struct {
	Base
	Image    string
	Stretch  bool
	Position Position
	// Width and Height are percentages of the canvas.
	Width, Height *float64
	BgColor       color.RGBA
	Annotations   []Annotation
	Zoom          *Zoom
}

// SvgScene renders an SVG template once per frame. The template sees Params,
// the ImageParams files embedded as data URIs, and the frame's progress.
type SvgScene struct {
	Base
	Template    string
	Params      map[string]any
	ImageParams map[string]string
	// CompositeOn is the background; nil keeps the SVG's transparency.
	CompositeOn *color.RGBA
}

// VideoScene plays a video file, trimmed to the scene duration if one is set.
type VideoScene struct {
	Base
	File string
}

// VideoImagesScene plays the files matching a glob as frames at FPS.
type VideoImagesScene struct {
	Base
	Pattern string
	FPS     int
}

// CompositeScene owns child scenes and composites or sequences them.
type CompositeScene struct {
	Base
	Scenes  []Scene
	Arrange Arrange
}

// TitleCardScene is a centered title and optional subtitle.
type TitleCardScene struct {
	Base
	Title    string
	Subtitle string
	Color    color.RGBA
	BgColor  color.RGBA
	Font     string
}

func (*ColorScene) Kind() Kind       { return KindColor }
func (*ImageScene) Kind() Kind       { return KindImage }
func (*SvgScene) Kind() Kind         { return KindSvg }
func (*VideoScene) Kind() Kind       { return KindVideo }
func (*VideoImagesScene) Kind() Kind { return KindVideoImages }
func (*CompositeScene) Kind() Kind   { return KindComposite }
func (*TitleCardScene) Kind() Kind   { return KindTitleCard }

func (c *CompositeScene) Children() ([]Scene, error) { return c.Scenes, nil }
func (c *CompositeScene) Sequential() bool           { return c.Arrange == ArrangeSequence }

func decodeColor(f fields, b Base) (Scene, error) {
	if !f.present("color") {
		return nil, f.errorf("color", "missing required field")
	}
	c, err := f.color("color", black)
	if err != nil {
		return nil, err
	}
	return &ColorScene{Base: b, Color: c}, nil
}

func decodeImage(f fields, b Base) (Scene, error) {
	s := &ImageScene{Base: b}
	var err error
	if s.Image, err = f.requiredStr("image"); err != nil {
		return nil, err
	}
	if b.Timing.IsZero() && len(b.Audio) == 0 {
		return nil, f.errorf("duration", "image scenes require duration or frames")
	}
	if s.Stretch, err = f.boolean("stretch", true); err != nil {
		return nil, err
	}
	pos, err := f.strDefault("position", string(PositionCenter))
	if err != nil {
		return nil, err
	}
	switch Position(pos) {
	case PositionCenter, PositionTop, PositionBottom, PositionLeft, PositionRight:
		s.Position = Position(pos)
	default:
		return nil, f.errorf("position", "must be center, top, bottom, left or right; got %q", pos)
	}
	if s.Width, err = f.float("width"); err != nil {
		return nil, err
	}
	if s.Height, err = f.float("height"); err != nil {
		return nil, err
	}
	for key, v := range map[string]*float64{"width": s.Width, "height": s.Height} {
		if v != nil && (*v <= 0 || *v > 100) {
			return nil, f.errorf(key, "must be a percentage in (0, 100]")
		}
	}
	if !s.Stretch && s.Width != nil && s.Height != nil {
		return nil, f.errorf("width", "cannot set both width and height when stretch is false")
	}
	if s.BgColor, err = f.color("bg_color", black); err != nil {
		return nil, err
	}
	if s.Annotations, err = decodeAnnotations(f); err != nil {
		return nil, err
	}
	zm, err := f.mapping("zoom")
	if err != nil {
		return nil, err
	}
	if zm != nil {
		zf := f.sub("zoom", zm)
		z := &Zoom{}
		if z.Start, err = zf.rect("start_rect", FullFrame); err != nil {
			return nil, err
		}
		if z.End, err = zf.rect("end_rect", FullFrame); err != nil {
			return nil, err
		}
		if err := checkZoomAspect(zf, *z); err != nil {
			return nil, err
		}
		s.Zoom = z
	}
	return s, nil
}

func decodeSvg(f fields, b Base) (Scene, error) {
	s := &SvgScene{Base: b}
	var err error
	if s.Template, err = f.requiredStr("template"); err != nil {
		return nil, err
	}
	if s.Params, err = f.mapping("params"); err != nil {
		return nil, err
	}
	if s.Params == nil {
		s.Params = map[string]any{}
	}
	ip, err := f.mapping("image_params")
	if err != nil {
		return nil, err
	}
	s.ImageParams = make(map[string]string, len(ip))
	for k, v := range ip {
		p, ok := v.(string)
		if !ok {
			// non-path values pass straight through to the template
			s.Params[k] = v
			continue
		}
		s.ImageParams[k] = p
	}
	on, ok, err := f.str("composite_on")
	if err != nil {
		return nil, err
	}
	if !ok && !f.has("composite_on") {
		on = "black"
	}
	if on != "" && strings.ToLower(on) != "none" {
		c, err := ParseColor(on)
		if err != nil {
			return nil, f.errorf("composite_on", "%v", err)
		}
		s.CompositeOn = &c
	}
	return s, nil
}

func decodeVideo(f fields, b Base) (Scene, error) {
	file, err := f.requiredStr("file")
	if err != nil {
		return nil, err
	}
	return &VideoScene{Base: b, File: file}, nil
}

func decodeVideoImages(f fields, b Base) (Scene, error) {
	pattern, err := f.requiredStr("file")
	if err != nil {
		return nil, err
	}
	fps, err := f.integer("fps")
	if err != nil {
		return nil, err
	}
	if fps == nil || *fps <= 0 {
		return nil, f.errorf("fps", "video-images scenes require a positive fps")
	}
	return &VideoImagesScene{Base: b, Pattern: pattern, FPS: *fps}, nil
}

func decodeComposite(f fields, b Base, opts DecodeOptions) (Scene, error) {
	items, err := f.list("scenes")
	if err != nil {
		return nil, err
	}
	if !f.present("scenes") {
		return nil, f.errorf("scenes", "missing required field")
	}
	arrange, err := f.strDefault("arrange", string(ArrangeLayers))
	if err != nil {
		return nil, err
	}
	switch Arrange(arrange) {
	case ArrangeLayers, ArrangeSequence:
	default:
		return nil, f.errorf("arrange", "must be layers or sequence; got %q", arrange)
	}
	s := &CompositeScene{Base: b, Arrange: Arrange(arrange)}
	// children do not inherit scene defaults
	childOpts := opts
	childOpts.Defaults = nil
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, f.errorf(fmt.Sprintf("scenes[%d]", i), "expected a mapping")
		}
		child, err := Decode(m, childOpts)
		if err != nil {
			return nil, err
		}
		s.Scenes = append(s.Scenes, child)
	}
	return s, nil
}

func decodeTitleCard(f fields, b Base, opts DecodeOptions) (Scene, error) {
	s := &TitleCardScene{Base: b}
	var err error
	if s.Title, err = f.requiredStr("title"); err != nil {
		return nil, err
	}
	if b.Timing.IsZero() && len(b.Audio) == 0 {
		return nil, f.errorf("duration", "title cards require duration or frames")
	}
	if s.Subtitle, err = f.strDefault("subtitle", ""); err != nil {
		return nil, err
	}
	if s.Color, err = f.color("color", white); err != nil {
		return nil, err
	}
	if s.BgColor, err = f.color("bg_color", black); err != nil {
		return nil, err
	}
	font := ""
	if opts.Settings != nil {
		font = opts.Settings.Font
	}
	if s.Font, err = f.strDefault("font", font); err != nil {
		return nil, err
	}
	return s, nil
}
