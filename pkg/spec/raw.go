package spec

import (
	"fmt"
	"image/color"
	"maps"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"

	"github.com/matzehuels/sceneweaver/pkg/errors"
)

// fields reads typed values out of one raw configuration block and builds
// validation errors that name the owning scene and the offending key.
type fields struct {
	scene string // owning scene id, for messages
	where string // optional sub-location, e.g. "effects[1]"
	m     map[string]any
}

func newFields(scene string, m map[string]any) fields {
	return fields{scene: scene, m: m}
}

func (f fields) sub(where string, m map[string]any) fields {
	if f.where != "" {
		where = f.where + "." + where
	}
	return fields{scene: f.scene, where: where, m: m}
}

func (f fields) errorf(key, format string, args ...any) error {
	loc := key
	if f.where != "" {
		loc = f.where + "." + key
	}
	msg := fmt.Sprintf(format, args...)
	if f.scene == "" {
		return errors.New(errors.ErrCodeValidation, "field %q: %s", loc, msg)
	}
	return errors.New(errors.ErrCodeValidation, "scene %q: field %q: %s", f.scene, loc, msg)
}

func (f fields) has(key string) bool {
	_, ok := f.m[key]
	return ok
}

// present reports whether key is set to a non-null value.
func (f fields) present(key string) bool {
	v, ok := f.m[key]
	return ok && v != nil
}

func (f fields) str(key string) (string, bool, error) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch s := v.(type) {
	case string:
		return s, true, nil
	case int, int64, float64:
		return fmt.Sprint(s), true, nil
	}
	return "", false, f.errorf(key, "expected a string, got %T", v)
}

func (f fields) requiredStr(key string) (string, error) {
	s, ok, err := f.str(key)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(s) == "" {
		return "", f.errorf(key, "missing required field")
	}
	return s, nil
}

func (f fields) strDefault(key, def string) (string, error) {
	s, ok, err := f.str(key)
	if err != nil || !ok {
		return def, err
	}
	return s, nil
}

func (f fields) float(key string) (*float64, error) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := toFloat(v)
	if !ok {
		return nil, f.errorf(key, "expected a number, got %T", v)
	}
	return &n, nil
}

func (f fields) floatDefault(key string, def float64) (float64, error) {
	n, err := f.float(key)
	if err != nil || n == nil {
		return def, err
	}
	return *n, nil
}

func (f fields) integer(key string) (*int, error) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := toFloat(v)
	if !ok || n != float64(int(n)) {
		return nil, f.errorf(key, "expected an integer, got %v", v)
	}
	i := int(n)
	return &i, nil
}

func (f fields) boolean(key string, def bool) (bool, error) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, f.errorf(key, "expected true or false, got %v", v)
	}
	return b, nil
}

func (f fields) mapping(key string) (map[string]any, error) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil, f.errorf(key, "expected a mapping, got %T", v)
	}
	return m, nil
}

// list returns the value at key as a list. A single mapping or string is
// accepted as a one-element list, which is how audio tracks are commonly
// written.
func (f fields) list(key string) ([]any, error) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch l := v.(type) {
	case []any:
		return l, nil
	case map[string]any, string:
		return []any{l}, nil
	}
	return nil, f.errorf(key, "expected a list, got %T", v)
}

func (f fields) color(key string, def color.RGBA) (color.RGBA, error) {
	s, ok, err := f.str(key)
	if err != nil || !ok {
		return def, err
	}
	c, err := ParseColor(s)
	if err != nil {
		return def, f.errorf(key, "%v", err)
	}
	return c, nil
}

func (f fields) rect(key string, def Rect) (Rect, error) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return def, nil
	}
	l, ok := v.([]any)
	if !ok || len(l) != 4 {
		return def, f.errorf(key, "expected [x, y, width, height] in percent")
	}
	var vals [4]float64
	for i, item := range l {
		n, ok := toFloat(item)
		if !ok {
			return def, f.errorf(key, "element %d is not a number", i)
		}
		vals[i] = n
	}
	r := Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if r.W <= 0 || r.H <= 0 {
		return def, f.errorf(key, "width and height must be positive")
	}
	return r, nil
}

func (f fields) point(key string) (*Point, error) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok || len(l) != 2 {
		return nil, f.errorf(key, "expected [x, y] in percent")
	}
	x, okx := toFloat(l[0])
	y, oky := toFloat(l[1])
	if !okx || !oky {
		return nil, f.errorf(key, "expected numeric coordinates")
	}
	return &Point{X: x, Y: y}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// merge returns a new map holding base overlaid with each layer in order.
func merge(base map[string]any, layers ...map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	maps.Copy(out, base)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// ParseColor accepts "#rgb", "#rrggbb", "#rrggbbaa" and SVG color names.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "transparent" {
		return color.RGBA{}, nil
	}
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// HexColor formats c as "#rrggbb", the form ffmpeg filters accept.
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
