package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/sceneweaver/pkg/observability"
	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/templates"
)

// Load reads and validates the spec named by opts, expanding template scenes
// from the spec's templates directory, opts.TemplatePaths and the user data
// directory.
func (r *Runner) Load(ctx context.Context, opts Options) (*spec.VideoSpec, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := time.Now()
	v, err := LoadSpec(opts.Spec, opts.TemplatePaths)
	n := 0
	if v != nil {
		n = len(v.Scenes)
	}
	observability.Pipeline().OnLoadComplete(ctx, opts.Spec, n, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("loaded spec", "spec", v.Path, "scenes", n, "duration", time.Since(start))
	return v, nil
}

// LoadSpec loads path with a template engine rooted at the spec's directory.
func LoadSpec(path string, templatePaths []string) (*spec.VideoSpec, error) {
	engine := templates.NewEngine(templates.NewResolver(specDir(path), templatePaths...))
	return spec.Load(path, engine)
}

// Targets returns the top-level scenes a run renders: all of them, or the
// one named id.
func Targets(v *spec.VideoSpec, id string) ([]spec.Scene, error) {
	if id == "" {
		return v.Scenes, nil
	}
	s, err := v.Find(id)
	if err != nil {
		return nil, err
	}
	return []spec.Scene{s}, nil
}
