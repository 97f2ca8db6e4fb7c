package assets

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// TemplateFile is the definition file inside a template package.
const TemplateFile = "template.yaml"

// Collect returns every input file s depends on, including those of its
// descendants, without duplicates and in first-seen order. Missing files fail
// with NOT_FOUND naming the scene.
func (r Resolver) Collect(s spec.Scene) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	err := spec.Walk([]spec.Scene{s}, func(sc spec.Scene, _ int) error {
		paths, err := r.sceneFiles(sc)
		if err != nil {
			return errors.Wrap(errors.ErrCodeNotFound, err, "scene %q", spec.ID(sc))
		}
		for _, p := range paths {
			add(p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r Resolver) sceneFiles(s spec.Scene) ([]string, error) {
	b := s.Common()
	var refs []string
	var files []string

	for _, a := range b.Audio {
		refs = append(refs, a.File)
	}
	switch s := s.(type) {
	case *spec.ImageScene:
		refs = append(refs, s.Image)
	case *spec.VideoScene:
		refs = append(refs, s.File)
	case *spec.SvgScene:
		refs = append(refs, s.Template)
		// image params may be relative to the working directory or the scene
		cwd, _ := os.Getwd()
		for _, k := range slices.Sorted(maps.Keys(s.ImageParams)) {
			abs, err := r.Resolve(s.ImageParams[k], cwd, b.Dir)
			if err != nil {
				return nil, err
			}
			files = append(files, abs)
		}
	case *spec.VideoImagesScene:
		frames, err := r.Glob(s.Pattern, b.Dir)
		if err != nil {
			return nil, err
		}
		files = append(files, frames...)
	case *spec.TemplateScene:
		in, err := s.Internal()
		if err != nil {
			return nil, err
		}
		def := filepath.Join(in.Dir, TemplateFile)
		if _, err := os.Stat(def); err == nil {
			files = append(files, def)
		}
	}

	for _, ref := range refs {
		abs, err := r.Resolve(ref, b.Dir)
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}
	return files, nil
}
