package spec

import (
	"fmt"
	"maps"
	"sync"

	"github.com/matzehuels/sceneweaver/pkg/errors"
)

// TemplateScene expands a named template package into an internal spec. The
// expansion runs once, on first use.
type TemplateScene struct {
	Base
	Name string
	With map[string]any
	// Overrides are the scene's non-common keys, merged into the first
	// internal scene.
	Overrides map[string]any

	opts     DecodeOptions
	once     sync.Once
	internal *VideoSpec
	err      error
}

func (*TemplateScene) Kind() Kind { return KindTemplate }

func decodeTemplate(f fields, b Base, opts DecodeOptions) (Scene, error) {
	name, err := f.requiredStr("name")
	if err != nil {
		return nil, err
	}
	if err := errors.ValidateTemplateName(name); err != nil {
		return nil, f.errorf("name", "%s", errors.UserMessage(err))
	}
	with, err := f.mapping("with")
	if err != nil {
		return nil, err
	}
	s := &TemplateScene{Base: b, Name: name, With: with, Overrides: map[string]any{}, opts: opts}
	for k, v := range f.m {
		if commonKeys[k] || k == "name" || k == "with" {
			continue
		}
		s.Overrides[k] = v
	}
	return s, nil
}

// Internal returns the expanded internal spec.
func (t *TemplateScene) Internal() (*VideoSpec, error) {
	t.once.Do(func() {
		t.internal, t.err = t.expand()
	})
	return t.internal, t.err
}

// Children returns the internal spec's scenes.
func (t *TemplateScene) Children() ([]Scene, error) {
	in, err := t.Internal()
	if err != nil {
		return nil, err
	}
	return in.Scenes, nil
}

// Sequential reports false when the internal scenes form compositing groups,
// i.e. any of them masks or excludes its predecessor.
func (t *TemplateScene) Sequential() bool {
	children, err := t.Children()
	if err != nil {
		return true
	}
	for _, c := range children {
		if c.Common().Mode != ModeLayer {
			return false
		}
	}
	return true
}

func (t *TemplateScene) expand() (*VideoSpec, error) {
	if t.opts.Expander == nil {
		return nil, errors.New(errors.ErrCodeInternal, "scene %q: no template expander configured", t.ID)
	}
	params := map[string]any{}
	settings := Settings{}
	if t.opts.Settings != nil {
		settings = *t.opts.Settings
		params["font"] = settings.Font
	}
	maps.Copy(params, t.With)

	raw, dir, err := t.opts.Expander.Expand(t.Name, params)
	if err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeValidation, err, "scene %q: expanding template %q", t.ID, t.Name)
	}

	var items []any
	switch v := raw.(type) {
	case nil:
	case []any:
		items = v
	default:
		m, ok := asMap(v)
		if !ok {
			return nil, errors.New(errors.ErrCodeValidation, "scene %q: template %q must produce a scene list or mapping", t.ID, t.Name)
		}
		if sc, ok := m["scenes"]; ok {
			l, ok := sc.([]any)
			if !ok {
				return nil, errors.New(errors.ErrCodeValidation, "scene %q: template %q: scenes must be a list", t.ID, t.Name)
			}
			items = l
			if sm, ok := asMap(m["settings"]); ok {
				if err := overlaySettings(&settings, sm); err != nil {
					return nil, errors.Wrap(errors.ErrCodeValidation, err, "scene %q: template %q", t.ID, t.Name)
				}
			}
		} else {
			items = []any{m}
		}
	}

	opts := DecodeOptions{Dir: dir, Defaults: settings.SceneDefaults, Expander: t.opts.Expander, Settings: &settings}
	in := &VideoSpec{Dir: dir, Settings: settings}
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, errors.New(errors.ErrCodeValidation, "scene %q: template %q: scenes[%d] is not a mapping", t.ID, t.Name, i)
		}
		if i == 0 && len(t.Overrides) > 0 {
			m = merge(m, t.Overrides)
		}
		s, err := Decode(m, opts)
		if err != nil {
			code := errors.GetCode(err)
			if code == "" {
				code = errors.ErrCodeValidation
			}
			return nil, errors.Wrap(code, err, "scene %q: template %q", t.ID, t.Name)
		}
		in.Scenes = append(in.Scenes, s)
	}
	if err := checkDuplicates(in.Scenes, fmt.Sprintf("template %q", t.Name)); err != nil {
		return nil, err
	}
	for _, s := range in.Scenes {
		if err := validateNested(s); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// overlaySettings applies the keys present in raw on top of s.
func overlaySettings(s *Settings, raw map[string]any) error {
	o, err := DecodeSettings(raw)
	if err != nil {
		return err
	}
	if _, ok := raw["width"]; ok {
		s.Width = o.Width
	}
	if _, ok := raw["height"]; ok {
		s.Height = o.Height
	}
	if _, ok := raw["fps"]; ok {
		s.FPS = o.FPS
	}
	if _, ok := raw["font"]; ok {
		s.Font = o.Font
	}
	if o.SceneDefaults != nil {
		s.SceneDefaults = merge(s.SceneDefaults, o.SceneDefaults)
	}
	return nil
}
