package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/sceneweaver/pkg/assets"
	"github.com/matzehuels/sceneweaver/pkg/cache"
	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/compose"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/ffmpeg"
	"github.com/matzehuels/sceneweaver/pkg/observability"
	"github.com/matzehuels/sceneweaver/pkg/render"
	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

// Encoder writes clips to video files and joins them.
type Encoder interface {
	EncodeClip(ctx context.Context, c *clip.Clip, out string) error
	Concat(ctx context.Context, parts []ffmpeg.Part, out string, fps int) error
	Probe(ctx context.Context, path string) (ffmpeg.Info, error)
}

// Runner encapsulates pipeline execution with caching.
// Both the CLI and the preview server use it.
//
// The Runner is stateless except for its collaborators - it doesn't store
// results. Multiple goroutines can safely use the same Runner with different
// options.
type Runner struct {
	// Cache stores rendered scenes. Nil disables caching.
	Cache   *cache.Manager
	Encoder Encoder
	// Media probes media lengths during duration resolution.
	Media  timeline.MediaInfo
	Assets assets.Resolver
	// NewLeaf builds the leaf renderer for a run's work directory. Nil uses
	// the built-in renderer.
	NewLeaf func(workDir string) compose.Renderer
	// Rasterizer converts SVG frames for the built-in renderer.
	Rasterizer render.Rasterizer
	Logger     *log.Logger
}

// NewRunner creates a runner encoding with enc. If enc can also probe media
// lengths it is used for duration resolution.
// If c is nil, caching is disabled.
func NewRunner(c *cache.Manager, enc Encoder, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{Cache: c, Encoder: enc, Logger: logger}
	if m, ok := enc.(timeline.MediaInfo); ok {
		r.Media = m
	}
	return r
}

func defaultLeaf(work string, r *Runner) compose.Renderer {
	b := render.NewBuiltin(work)
	b.Assets = r.Assets
	b.Logger = r.Logger
	if r.Rasterizer != nil {
		b.Rasterizer = r.Rasterizer
	}
	return b
}

// Generate runs the complete load → resolve → render → assemble pipeline.
// The output file is only written once every targeted scene has rendered,
// and the scratch directory is removed on every path.
func (r *Runner) Generate(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if r.Encoder == nil {
		return nil, errors.New(errors.ErrCodeInternal, "pipeline has no encoder")
	}
	result := &Result{}

	// Stage 1: Load
	loadStart := time.Now()
	v, err := r.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	targets, err := Targets(v, opts.SceneID)
	if err != nil {
		return nil, err
	}
	result.Stats.LoadTime = time.Since(loadStart)
	if opts.SceneID != "" {
		r.Logger.Info("targeting scene", "scene", opts.SceneID)
	}

	// Stage 2: Resolve
	resolveStart := time.Now()
	if _, err := r.Resolve(ctx, v); err != nil {
		return nil, err
	}
	result.Stats.ResolveTime = time.Since(resolveStart)
	total, err := timeline.Total(targets)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("resolved timeline",
		"scenes", len(targets),
		"length", total,
		"duration", result.Stats.ResolveTime)

	out, err := OutputPath(v, opts.Output)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "output path")
	}
	work, err := os.MkdirTemp(opts.WorkDir, "sceneweaver-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(work)

	// Stage 3: Render
	renderStart := time.Now()
	scenes := make([]*SceneResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, s := range targets {
		g.Go(func() error {
			res, err := r.renderScene(gctx, v, s, i, work, opts)
			scenes[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Stats.RenderTime = time.Since(renderStart)

	var parts []ffmpeg.Part
	for i, res := range scenes {
		if res == nil {
			continue
		}
		parts = append(parts, ffmpeg.Part{Path: res.Path, Duration: res.Duration, Transition: targets[i].Common().Transition})
		result.Scenes = append(result.Scenes, *res)
		if res.Cached {
			result.Stats.CacheHits++
		}
	}
	result.Stats.SceneCount = len(result.Scenes)
	if len(parts) == 0 {
		return nil, errors.New(errors.ErrCodeRender, "no scene produced any output")
	}
	// the last part has nothing to blend into
	parts[len(parts)-1].Transition = nil

	// Stage 4: Assemble
	assembleStart := time.Now()
	err = r.assemble(ctx, parts, out, v.Settings.FPS)
	result.Stats.AssembleTime = time.Since(assembleStart)
	observability.Pipeline().OnAssembleComplete(ctx, out, result.Stats.AssembleTime, err)
	if err != nil {
		return nil, err
	}

	info, err := r.Encoder.Probe(ctx, out)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "probe %s", out)
	}
	result.Output = out
	result.Duration = info.Duration
	result.Width, result.Height = info.Width, info.Height
	if result.Timeline, err = timeline.Layout(targets); err != nil {
		return nil, err
	}
	markCached(result.Timeline, result.Scenes)

	r.Logger.Info("wrote video",
		"output", out,
		"length", result.Duration,
		"cache_hits", result.Stats.CacheHits,
		"duration", result.Stats.AssembleTime)
	return result, nil
}

func (r *Runner) assemble(ctx context.Context, parts []ffmpeg.Part, out string, fps int) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "output directory")
	}
	if err := r.Encoder.Concat(ctx, parts, out, fps); err != nil {
		return errors.Wrap(errors.ErrCodeRender, err, "assemble %s", filepath.Base(out))
	}
	return nil
}

// markCached flags top-level timeline entries served from the cache.
func markCached(entries []timeline.Entry, scenes []SceneResult) {
	cached := map[string]bool{}
	for _, s := range scenes {
		cached[s.ID] = s.Cached
	}
	for i := range entries {
		if entries[i].Depth == 0 {
			entries[i].Cached = cached[entries[i].ID]
		}
	}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
