package spec

import (
	"github.com/matzehuels/sceneweaver/pkg/errors"
)

// Expander turns a template name and parameter context into the raw scene
// data of its internal spec, plus the directory that data's relative paths
// resolve against. The raw value is a scene list, a single scene mapping, or
// a mapping with `scenes` and optional partial `settings`.
type Expander interface {
	Expand(name string, params map[string]any) (raw any, dir string, err error)
}

// DecodeOptions carries everything scene construction depends on. Nothing is
// read from package state.
type DecodeOptions struct {
	// Dir is the directory relative asset references resolve against.
	Dir string
	// Defaults are merged beneath the scene's own keys.
	Defaults map[string]any
	// Expander expands template scenes. Decoding a template without one
	// succeeds, but expanding it fails.
	Expander Expander
	// Settings are the owning spec's settings, when known.
	Settings *Settings
}

// commonKeys are handled by Base and never forwarded as template overrides.
var commonKeys = map[string]bool{
	"type": true, "id": true, "cache": true, "effects": true, "transition": true,
	"audio": true, "composite_mode": true, "duration": true, "frames": true,
}

// Decode builds one scene from raw configuration. The result is fully
// validated; on error no scene is returned.
func Decode(raw map[string]any, opts DecodeOptions) (Scene, error) {
	// template blocks pass defaults on to their internal scenes instead
	if len(opts.Defaults) > 0 && raw["type"] != string(KindTemplate) {
		raw = merge(opts.Defaults, raw)
	}
	id, _, err := fields{m: raw}.str("id")
	if err != nil {
		return nil, err
	}
	f := newFields(id, raw)
	typ, err := f.requiredStr("type")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New(errors.ErrCodeValidation, "scene of type %q is missing a required id", typ)
	}
	if err := errors.ValidateSceneID(id); err != nil {
		return nil, err
	}
	b, err := decodeBase(f, opts)
	if err != nil {
		return nil, err
	}

	switch Kind(typ) {
	case KindColor:
		return decodeColor(f, b)
	case KindImage:
		return decodeImage(f, b)
	case KindSvg:
		return decodeSvg(f, b)
	case KindVideo:
		return decodeVideo(f, b)
	case KindVideoImages:
		return decodeVideoImages(f, b)
	case KindComposite:
		return decodeComposite(f, b, opts)
	case KindTemplate:
		return decodeTemplate(f, b, opts)
	case KindTitleCard:
		return decodeTitleCard(f, b, opts)
	}
	return nil, unknownType(f, "scene", typ)
}

func decodeBase(f fields, opts DecodeOptions) (Base, error) {
	b := Base{ID: f.scene, Dir: opts.Dir, Config: f.m}
	var err error
	if b.Cache, err = decodeCachePolicy(f); err != nil {
		return b, err
	}
	if b.Effects, err = decodeEffects(f); err != nil {
		return b, err
	}
	if b.Transition, err = decodeTransition(f); err != nil {
		return b, err
	}
	if b.Audio, err = decodeAudio(f); err != nil {
		return b, err
	}
	mode, err := f.strDefault("composite_mode", string(ModeLayer))
	if err != nil {
		return b, err
	}
	switch CompositeMode(mode) {
	case ModeLayer, ModeMask, ModeExclude:
		b.Mode = CompositeMode(mode)
	default:
		return b, f.errorf("composite_mode", "must be layer, mask or exclude; got %q", mode)
	}
	if b.Timing, err = decodeTiming(f); err != nil {
		return b, err
	}
	return b, nil
}

func decodeTiming(f fields) (Timing, error) {
	var t Timing
	d, err := f.float("duration")
	if err != nil {
		return t, err
	}
	n, err := f.integer("frames")
	if err != nil {
		return t, err
	}
	if d != nil && n != nil {
		return t, f.errorf("duration", "cannot be combined with frames")
	}
	if d != nil && *d <= 0 {
		return t, f.errorf("duration", "must be positive")
	}
	if n != nil && *n <= 0 {
		return t, f.errorf("frames", "must be positive")
	}
	t.Duration, t.Frames = d, n
	return t, nil
}

func unknownType(f fields, what, typ string) error {
	if f.scene == "" {
		return errors.New(errors.ErrCodeUnknownType, "unknown %s type %q", what, typ)
	}
	return errors.New(errors.ErrCodeUnknownType, "scene %q: unknown %s type %q", f.scene, what, typ)
}
