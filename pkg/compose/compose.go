// Package compose renders resolved scene trees into clips.
//
// Leaf scenes are produced by a [Renderer]. Composite and template scenes are
// assembled here: sequential children are joined with their transitions, and
// layered children are partitioned into compositing groups. A group starts at
// a layer-mode scene; the following mask and exclude scenes shape its
// transparency. Progress effects of a group's base are also handed to its
// masks so that masks move in step with the base.
package compose

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sceneweaver/pkg/assets"
	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/effects"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Renderer produces the clip of a leaf scene. Per-frame renderers reshape
// their time coordinate with pass.TransformProgress; every effect they do not
// consume is applied afterwards by the Engine. A nil clip means the scene
// produced nothing.
type Renderer interface {
	Render(ctx context.Context, s spec.Scene, pass *effects.Pass, settings spec.Settings) (*clip.Clip, error)
}

// Engine renders scenes. It never modifies the scene tree.
type Engine struct {
	Renderer Renderer
	Assets   assets.Resolver
	Logger   *log.Logger
}

// New returns an Engine using r for leaf scenes.
func New(r Renderer) *Engine {
	return &Engine{Renderer: r, Logger: log.Default()}
}

// Render renders s with its own effects. The scene and its descendants must
// have resolved durations. A nil clip with a nil error means s produced
// nothing.
func (e *Engine) Render(ctx context.Context, s spec.Scene, settings spec.Settings) (*clip.Clip, error) {
	return e.render(ctx, s, s.Common().Effects, settings)
}

// render renders s with effectList in place of the scene's stored effects.
func (e *Engine) render(ctx context.Context, s spec.Scene, effectList []spec.Effect, settings spec.Settings) (*clip.Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := s.Common()
	if !b.Resolved.IsResolved() {
		return nil, errors.New(errors.ErrCodeInternal, "scene %q rendered before its duration was resolved", b.ID)
	}
	pass := effects.NewPass(effectList)

	var c *clip.Clip
	var err error
	if p, ok := s.(spec.Parent); ok {
		c, err = e.renderParent(ctx, p, settings)
	} else {
		c, err = e.Renderer.Render(ctx, s, pass, settings)
		if err != nil && errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeRender, err, "scene %q", b.ID)
		}
	}
	if err != nil || c == nil {
		return nil, err
	}
	if c.Label == "" {
		c.Label = b.ID
	}

	if c, err = pass.PostProcess(c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: effects", b.ID)
	}
	return e.attachAudio(c, b)
}

func (e *Engine) renderParent(ctx context.Context, p spec.Parent, settings spec.Settings) (*clip.Clip, error) {
	children, err := p.Children()
	if err != nil {
		return nil, err
	}
	if t, ok := p.(*spec.TemplateScene); ok {
		in, err := t.Internal()
		if err != nil {
			return nil, err
		}
		settings = in.Settings
	}
	if len(children) == 0 {
		return nil, nil
	}
	if p.Sequential() {
		return e.Sequence(ctx, p.Common().ID, children, settings)
	}
	c, err := e.Layers(ctx, p.Common().ID, children, settings)
	if err != nil || c == nil {
		return nil, err
	}
	// the background decides the length of a composite; pin it to the scene
	return c.WithDuration(p.Common().Resolved.MustSeconds()), nil
}

// Sequence renders scenes one after another, joined by their transitions.
func (e *Engine) Sequence(ctx context.Context, label string, scenes []spec.Scene, settings spec.Settings) (*clip.Clip, error) {
	var segments []clip.Segment
	for _, s := range scenes {
		c, err := e.Render(ctx, s, settings)
		if err != nil {
			return nil, err
		}
		if c == nil {
			e.logger().Warn("scene produced nothing", "scene", s.Common().ID)
			continue
		}
		segments = append(segments, clip.Segment{Clip: c, Transition: s.Common().Transition})
	}
	return clip.Sequence(label, segments), nil
}

// Group is a layer-mode base and the mask scenes that follow it.
type Group struct {
	Base  spec.Scene
	Masks []spec.Scene
}

// Groups partitions scenes into compositing groups. The first scene must be
// in layer mode.
func Groups(label string, scenes []spec.Scene) ([]Group, error) {
	if err := spec.CheckGroups(label, scenes); err != nil {
		return nil, err
	}
	var groups []Group
	for _, s := range scenes {
		if s.Common().Mode == spec.ModeLayer {
			groups = append(groups, Group{Base: s})
			continue
		}
		g := &groups[len(groups)-1]
		g.Masks = append(g.Masks, s)
	}
	return groups, nil
}

// Layers composites scenes group by group, the first group being the
// background.
func (e *Engine) Layers(ctx context.Context, label string, scenes []spec.Scene, settings spec.Settings) (*clip.Clip, error) {
	groups, err := Groups(label, scenes)
	if err != nil {
		return nil, err
	}
	var out []*clip.Clip
	for _, g := range groups {
		c, err := e.renderGroup(ctx, g, settings)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return clip.Composite(out...), nil
}

func (e *Engine) renderGroup(ctx context.Context, g Group, settings spec.Settings) (*clip.Clip, error) {
	progress, other := spec.SplitProgress(g.Base.Common().Effects)

	base, err := e.render(ctx, g.Base, progress, settings)
	if err != nil || base == nil {
		return nil, err
	}

	for _, m := range g.Masks {
		mb := m.Common()
		// a fresh slice: the stored effect list of m is never touched
		synced := make([]spec.Effect, 0, len(mb.Effects)+len(progress))
		synced = append(synced, mb.Effects...)
		synced = append(synced, progress...)

		mc, err := e.render(ctx, m, synced, settings)
		if err != nil {
			return nil, err
		}
		if mc == nil {
			continue
		}
		mc = mc.WithDuration(base.Duration)
		// a stencil contributes only its alpha
		mc.Audio = nil

		switch mb.Mode {
		case spec.ModeExclude:
			base = base.Exclude(mc)
		case spec.ModeMask:
			base = base.Mask(mc)
		}
		e.logger().Debug("applied mask", "base", g.Base.Common().ID, "mask", mb.ID, "mode", mb.Mode)
	}

	group, err := effects.ApplyAll(base, other)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: effects", g.Base.Common().ID)
	}
	return group, nil
}

// attachAudio mixes the scene's own tracks into c.
func (e *Engine) attachAudio(c *clip.Clip, b *spec.Base) (*clip.Clip, error) {
	if len(b.Audio) == 0 {
		return c, nil
	}
	tracks := make([]clip.Audio, 0, len(b.Audio))
	for _, a := range b.Audio {
		path, err := e.Assets.Resolve(a.File, b.Dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: audio", b.ID)
		}
		tracks = append(tracks, clip.Audio{
			Path: path, Shift: a.Shift, Volume: a.Volume, FadeIn: a.FadeIn, FadeOut: a.FadeOut,
		})
	}
	return c.WithAudio(tracks...), nil
}

func (e *Engine) logger() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}
