package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/sceneweaver/pkg/observability"
	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

// Resolve gives every scene of v a concrete duration and returns the total
// length of the top-level sequence.
func (r *Runner) Resolve(ctx context.Context, v *spec.VideoSpec) (float64, error) {
	start := time.Now()
	res := timeline.NewResolver(r.Media)
	res.Assets = r.Assets
	res.Logger = r.Logger
	err := res.ResolveSpec(ctx, v)
	var total float64
	if err == nil {
		total, err = timeline.Total(v.Scenes)
	}
	observability.Pipeline().OnResolveComplete(ctx, total, time.Since(start), err)
	if err != nil {
		return 0, err
	}
	r.Logger.Debug("resolved durations", "total", total, "duration", time.Since(start))
	return total, nil
}

// Timeline loads and resolves the spec named by opts and lays out the
// targeted scenes.
func (r *Runner) Timeline(ctx context.Context, opts Options) (*spec.VideoSpec, []timeline.Entry, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	v, err := r.Load(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	if _, err := r.Resolve(ctx, v); err != nil {
		return nil, nil, err
	}
	targets, err := Targets(v, opts.SceneID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := timeline.Layout(targets)
	if err != nil {
		return nil, nil, err
	}
	return v, entries, nil
}

// OutputPath returns where the final video of v is written. An override is
// taken relative to the working directory, the spec's output_file relative
// to the spec's directory.
func OutputPath(v *spec.VideoSpec, override string) (string, error) {
	if override != "" {
		return filepath.Abs(expandHome(override))
	}
	out := expandHome(v.Settings.OutputFile)
	if !filepath.IsAbs(out) {
		out = filepath.Join(v.Dir, out)
	}
	return filepath.Abs(out)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

func specDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Dir(path)
	}
	return filepath.Dir(abs)
}
