package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/sceneweaver/pkg/errors"
)

// VideoSpec is a loaded spec file: settings plus the ordered top-level scenes.
type VideoSpec struct {
	// Path is the spec file, empty for specs built in memory.
	Path     string
	Dir      string
	Settings Settings
	Scenes   []Scene
}

// Load reads and validates the YAML spec at path. Template scenes are
// expanded with exp during validation.
func Load(path string, exp Expander) (*VideoSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "spec file %s", path)
		}
		return nil, fmt.Errorf("read spec: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeValidation, err, "parse %s", filepath.Base(path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	v, err := FromMap(raw, filepath.Dir(abs), exp)
	if err != nil {
		return nil, err
	}
	v.Path = abs
	return v, nil
}

// FromMap builds and validates a spec from decoded YAML. Relative paths in
// scenes resolve against dir.
func FromMap(raw map[string]any, dir string, exp Expander) (*VideoSpec, error) {
	f := fields{m: raw}
	sm, err := f.mapping("settings")
	if err != nil {
		return nil, err
	}
	if sm == nil {
		return nil, errors.New(errors.ErrCodeValidation, "spec is missing a settings block")
	}
	settings, err := DecodeSettings(sm)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	items, err := f.list("scenes")
	if err != nil {
		return nil, err
	}

	v := &VideoSpec{Dir: dir, Settings: settings}
	opts := DecodeOptions{Dir: dir, Defaults: settings.SceneDefaults, Expander: exp, Settings: &v.Settings}
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, errors.New(errors.ErrCodeValidation, "scenes[%d]: expected a mapping", i)
		}
		s, err := Decode(m, opts)
		if err != nil {
			return nil, err
		}
		v.Scenes = append(v.Scenes, s)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks the settings, scene id uniqueness and every nested scene.
// Template scenes are expanded so their errors surface before rendering.
func (v *VideoSpec) Validate() error {
	if err := v.Settings.Validate(); err != nil {
		return err
	}
	if len(v.Scenes) == 0 {
		return errors.New(errors.ErrCodeValidation, "spec must have at least one scene")
	}
	if err := checkDuplicates(v.Scenes, "spec"); err != nil {
		return err
	}
	for _, s := range v.Scenes {
		if err := validateNested(s); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the top-level scene with the given id.
func (v *VideoSpec) Find(id string) (Scene, error) {
	for _, s := range v.Scenes {
		if s.Common().ID == id {
			return s, nil
		}
	}
	ids := make([]string, len(v.Scenes))
	for i, s := range v.Scenes {
		ids[i] = s.Common().ID
	}
	return nil, errors.New(errors.ErrCodeSceneNotFound, "scene %q not found (available: %s)", id, strings.Join(ids, ", "))
}

// Walk calls fn for every scene in pre-order, descending into composites and
// expanded templates. depth is 0 for the given scenes.
func Walk(scenes []Scene, fn func(s Scene, depth int) error) error {
	return walk(scenes, 0, fn)
}

func walk(scenes []Scene, depth int, fn func(Scene, int) error) error {
	for _, s := range scenes {
		if err := fn(s, depth); err != nil {
			return err
		}
		p, ok := s.(Parent)
		if !ok {
			continue
		}
		children, err := p.Children()
		if err != nil {
			return err
		}
		if err := walk(children, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// checkDuplicates reports the first id used twice within scenes and their
// composite descendants. Template internals are separate scopes.
func checkDuplicates(scenes []Scene, scope string) error {
	seen := map[string]string{}
	var visit func(list []Scene, prefix string) error
	visit = func(list []Scene, prefix string) error {
		for i, s := range list {
			loc := fmt.Sprintf("%sscenes[%d]", prefix, i)
			id := s.Common().ID
			if first, ok := seen[id]; ok {
				return errors.New(errors.ErrCodeDuplicateID,
					"%s: duplicate scene id %q at %s and %s", scope, id, first, loc)
			}
			seen[id] = loc
			if c, ok := s.(*CompositeScene); ok {
				if err := visit(c.Scenes, loc+"."); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return visit(scenes, "")
}

func validateNested(s Scene) error {
	switch s := s.(type) {
	case *TemplateScene:
		in, err := s.Internal()
		if err != nil {
			return err
		}
		if !s.Sequential() {
			return CheckGroups(s.ID, in.Scenes)
		}
	case *CompositeScene:
		check := CheckGroups
		if s.Sequential() {
			check = checkSequence
		}
		if err := check(s.ID, s.Scenes); err != nil {
			return err
		}
		for _, c := range s.Scenes {
			if err := validateNested(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckGroups reports an INVALID_GROUP error unless layered scenes open with a
// layer scene, which every mask and exclude scene after it belongs to.
func CheckGroups(label string, scenes []Scene) error {
	if len(scenes) == 0 {
		return nil
	}
	if b := scenes[0].Common(); b.Mode != ModeLayer {
		return errors.New(errors.ErrCodeInvalidGroup,
			"scene %q: a composition group must start with a layer scene, but %q has mode %q",
			label, b.ID, b.Mode)
	}
	return nil
}

// checkSequence rejects mask and exclude scenes in a sequence, where there is
// no base for them to cut.
func checkSequence(label string, scenes []Scene) error {
	for _, s := range scenes {
		if b := s.Common(); b.Mode != ModeLayer {
			return errors.New(errors.ErrCodeInvalidGroup,
				"scene %q: %q has mode %q, but scenes in a sequence cannot mask each other",
				label, b.ID, b.Mode)
		}
	}
	return nil
}

// SplitTarget splits "spec.yaml:scene_id" into the file and scene id. A colon
// that belongs to a Windows drive letter is not a separator.
func SplitTarget(arg string) (path, sceneID string) {
	i := strings.LastIndex(arg, ":")
	if i <= 1 || strings.ContainsAny(arg[i+1:], `/\`) {
		return arg, ""
	}
	return arg[:i], arg[i+1:]
}
