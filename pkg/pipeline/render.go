package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/matzehuels/sceneweaver/pkg/assets"
	"github.com/matzehuels/sceneweaver/pkg/cache"
	"github.com/matzehuels/sceneweaver/pkg/compose"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/observability"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// errNoOutput marks a scene whose composition produced no clip.
var errNoOutput = stderrors.New("scene produced no output")

// settingsKey holds the settings that change a scene's pixels.
type settingsKey struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FPS    int    `json:"fps"`
	Font   string `json:"font,omitempty"`
}

// SceneKey returns the cache key of the top-level scene s: its merged
// configuration, the video settings, its resolved duration and the content
// hashes of every file it reads.
func (r *Runner) SceneKey(v *spec.VideoSpec, s spec.Scene) (cache.Key, error) {
	b := s.Common()
	d, ok := b.Resolved.Seconds()
	if !ok {
		return cache.Key{}, errors.New(errors.ErrCodeInternal, "scene %q rendered before resolution", b.ID)
	}
	files, err := r.Assets.Collect(s)
	if err != nil {
		return cache.Key{}, err
	}
	hashes, err := assets.HashFiles(files)
	if err != nil {
		return cache.Key{}, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: hash assets", b.ID)
	}
	st := v.Settings
	return cache.Key{
		Spec:     v.Path,
		Scene:    b.ID,
		Config:   b.Config,
		Settings: settingsKey{Width: st.Width, Height: st.Height, FPS: st.FPS, Font: st.Font},
		Duration: d,
		Assets:   hashes,
	}, nil
}

// renderScene produces the encoded segment of one top-level scene. It
// returns nil when the scene produced nothing.
func (r *Runner) renderScene(ctx context.Context, v *spec.VideoSpec, s spec.Scene, index int, work string, opts Options) (*SceneResult, error) {
	id := s.Common().ID
	start := time.Now()
	observability.Pipeline().OnSceneStart(ctx, id)
	res, err := r.sceneArtifact(ctx, v, s, index, work, opts)
	cached := res != nil && res.Cached
	observability.Pipeline().OnSceneComplete(ctx, id, cached, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if res == nil {
		r.Logger.Warn("skipping scene, nothing was rendered", "scene", id)
		return nil, nil
	}
	r.Logger.Info("rendered scene",
		"scene", id,
		"duration", res.Duration,
		"cached", res.Cached,
		"took", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (r *Runner) sceneArtifact(ctx context.Context, v *spec.VideoSpec, s spec.Scene, index int, work string, opts Options) (*SceneResult, error) {
	b := s.Common()
	policy := b.Cache
	if opts.NoCache || r.Cache == nil {
		policy = nil
	}

	var fp string
	if policy != nil {
		key, err := r.SceneKey(v, s)
		if err != nil {
			return nil, err
		}
		if fp, err = key.Fingerprint(); err != nil {
			return nil, err
		}
	}

	build := func(ctx context.Context) (string, cache.Meta, error) {
		engine := compose.New(r.leaf(work))
		engine.Logger = r.Logger
		c, err := engine.Render(ctx, s, v.Settings)
		if err != nil {
			return "", cache.Meta{}, err
		}
		if c == nil {
			return "", cache.Meta{}, errNoOutput
		}
		out := filepath.Join(work, fmt.Sprintf("scene_%03d.mp4", index))
		if err := r.Encoder.EncodeClip(ctx, c, out); err != nil {
			return "", cache.Meta{}, errors.Wrap(errors.ErrCodeRender, err, "scene %q: encode", b.ID)
		}
		return out, cache.Meta{Scene: b.ID, Width: c.Width, Height: c.Height, Duration: c.Duration}, nil
	}

	if policy == nil {
		path, meta, err := build(ctx)
		if stderrors.Is(err, errNoOutput) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &SceneResult{ID: b.ID, Path: path, Duration: meta.Duration}, nil
	}
	a, err := r.Cache.Do(ctx, fp, policy, opts.Force, build)
	if stderrors.Is(err, errNoOutput) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &SceneResult{ID: b.ID, Path: a.Path, Duration: a.Duration, Cached: a.Cached}, nil
}

// leaf returns the leaf renderer writing intermediate frames below work.
func (r *Runner) leaf(work string) compose.Renderer {
	if r.NewLeaf != nil {
		return r.NewLeaf(work)
	}
	return defaultLeaf(work, r)
}
