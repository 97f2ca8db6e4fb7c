// Package timeline assigns every scene of a spec a concrete duration and lays
// the resolved scenes out on a timeline.
//
// Resolution runs top-down first: a scene's own duration, its frame count, its
// longest audio track, the intrinsic length of its media, and finally the
// duration its parent offers as context. Composite and template scenes that
// still have no duration aggregate bottom-up from their children, then hand
// their duration down as context to children that are still unresolved.
package timeline

import (
	"context"
	stderrors "errors"
	"math"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sceneweaver/pkg/assets"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// MediaInfo probes the length of media files.
type MediaInfo interface {
	AudioDuration(ctx context.Context, path string) (float64, error)
	VideoDuration(ctx context.Context, path string) (float64, error)
}

// ErrRelative is the cause of resolution failures for scenes that only have a
// relative duration and were offered no context.
var ErrRelative = stderrors.New("relative duration with no context")

func relative(format string, args ...any) error {
	return errors.Wrap(errors.ErrCodeResolution, ErrRelative, format, args...)
}

// Resolver resolves scene durations.
type Resolver struct {
	Media  MediaInfo
	Assets assets.Resolver
	Logger *log.Logger
}

// NewResolver returns a Resolver probing media with m.
func NewResolver(m MediaInfo) *Resolver {
	return &Resolver{Media: m, Logger: log.Default()}
}

// ResolveSpec resolves every scene of v. Top-level scenes get no context.
func (r *Resolver) ResolveSpec(ctx context.Context, v *spec.VideoSpec) error {
	for _, s := range v.Scenes {
		if _, err := r.Resolve(ctx, s, nil, v.Settings); err != nil {
			return err
		}
	}
	return nil
}

// Resolve fixes the duration of s and all of its descendants and returns the
// duration of s. contextDuration is what the parent offers to scenes that do
// not determine their own length. Resolving an already resolved scene returns
// the stored value.
func (r *Resolver) Resolve(ctx context.Context, s spec.Scene, contextDuration *float64, settings spec.Settings) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b := s.Common()
	d, ok := b.Resolved.Seconds()
	if !ok {
		var err error
		d, ok, err = r.topDown(ctx, s, contextDuration, settings)
		if err != nil {
			return 0, err
		}
		aggregated := false
		if !ok {
			p, isParent := s.(spec.Parent)
			if !isParent {
				return 0, relative("scene %q", b.ID)
			}
			if d, err = r.aggregate(ctx, p, settings); err != nil {
				return 0, err
			}
			aggregated = true
		}
		d, _ = b.Resolved.Resolve(d)
		r.logger().Debug("resolved duration", "scene", b.ID, "duration", d, "aggregated", aggregated)
	}

	if p, isParent := s.(spec.Parent); isParent {
		if err := r.propagate(ctx, p, d, settings); err != nil {
			return 0, err
		}
	}
	return d, nil
}

// topDown tries the scene's own sources of length, then the context.
func (r *Resolver) topDown(ctx context.Context, s spec.Scene, contextDuration *float64, settings spec.Settings) (float64, bool, error) {
	b := s.Common()
	if d, ok := b.Timing.Explicit(settings.FPS); ok {
		return d, true, nil
	}
	if len(b.Audio) > 0 {
		d, err := r.audioLength(ctx, b)
		if err != nil {
			return 0, false, err
		}
		return d, true, nil
	}
	if d, ok, err := r.intrinsic(ctx, s); err != nil || ok {
		return d, ok, err
	}
	if contextDuration != nil {
		return *contextDuration, true, nil
	}
	return 0, false, nil
}

// audioLength returns the latest end time among the scene's audio tracks.
func (r *Resolver) audioLength(ctx context.Context, b *spec.Base) (float64, error) {
	if r.Media == nil {
		return 0, errors.New(errors.ErrCodeInternal, "scene %q: no media prober for audio tracks", b.ID)
	}
	var end float64
	for _, a := range b.Audio {
		path, err := r.Assets.Resolve(a.File, b.Dir)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: audio", b.ID)
		}
		d, err := r.Media.AudioDuration(ctx, path)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeResolution, err, "scene %q: probe audio %s", b.ID, a.File)
		}
		end = math.Max(end, a.Shift+d)
	}
	return end, nil
}

// intrinsic returns the natural length of media-backed scenes.
func (r *Resolver) intrinsic(ctx context.Context, s spec.Scene) (float64, bool, error) {
	switch s := s.(type) {
	case *spec.VideoScene:
		if r.Media == nil {
			return 0, false, nil
		}
		path, err := r.Assets.Resolve(s.File, s.Dir)
		if err != nil {
			return 0, false, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: video", s.ID)
		}
		d, err := r.Media.VideoDuration(ctx, path)
		if err != nil {
			return 0, false, errors.Wrap(errors.ErrCodeResolution, err, "scene %q: probe video %s", s.ID, s.File)
		}
		return d, d > 0, nil
	case *spec.VideoImagesScene:
		frames, err := r.Assets.Glob(s.Pattern, s.Dir)
		if err != nil {
			return 0, false, err
		}
		if len(frames) == 0 {
			return 0, false, nil
		}
		return float64(len(frames)) / float64(s.FPS), true, nil
	}
	return 0, false, nil
}

// aggregate derives a parent's duration from its children, each resolved
// without context. Sequences sum their children minus transition overlaps and
// require every child to resolve. Layers take the longest member; members
// that only have a relative duration are skipped here and receive the
// parent's duration afterwards.
func (r *Resolver) aggregate(ctx context.Context, p spec.Parent, settings spec.Settings) (float64, error) {
	id := p.Common().ID
	children, childSettings, err := childrenOf(p, settings)
	if err != nil {
		return 0, err
	}
	if len(children) == 0 {
		return 0, errors.New(errors.ErrCodeResolution, "scene %q: no children to derive a duration from", id)
	}

	if p.Sequential() {
		var total float64
		for _, c := range children {
			d, err := r.Resolve(ctx, c, nil, childSettings)
			if err != nil {
				if stderrors.Is(err, ErrRelative) {
					return 0, errors.Wrap(errors.ErrCodeResolution, err,
						"scene %q: children of a sequence must have their own duration", id)
				}
				return 0, err
			}
			total += d
		}
		total -= spec.TransitionOverlap(children)
		if total <= 0 {
			return 0, errors.New(errors.ErrCodeResolution,
				"scene %q: transitions are longer than the scenes they join", id)
		}
		return total, nil
	}

	longest, found := 0.0, false
	for _, c := range children {
		d, err := r.Resolve(ctx, c, nil, childSettings)
		if stderrors.Is(err, ErrRelative) {
			continue
		}
		if err != nil {
			return 0, err
		}
		longest, found = math.Max(longest, d), true
	}
	if !found {
		return 0, relative("scene %q: no layer has its own duration", id)
	}
	return longest, nil
}

// propagate resolves children that are still unresolved with the parent's
// duration as context.
func (r *Resolver) propagate(ctx context.Context, p spec.Parent, d float64, settings spec.Settings) error {
	children, childSettings, err := childrenOf(p, settings)
	if err != nil {
		return err
	}
	for _, c := range children {
		if _, err := r.Resolve(ctx, c, &d, childSettings); err != nil {
			return err
		}
	}
	if p.Sequential() && len(children) > 0 {
		var sum float64
		for _, c := range children {
			cd, _ := c.Common().Resolved.Seconds()
			sum += cd
		}
		sum -= spec.TransitionOverlap(children)
		if math.Abs(sum-d) > 1e-6 {
			r.logger().Warn("sequence length differs from scene duration",
				"scene", p.Common().ID, "duration", d, "children", sum)
		}
	}
	return nil
}

// childrenOf returns p's children and the settings they resolve under.
// Template internals carry their own settings.
func childrenOf(p spec.Parent, settings spec.Settings) ([]spec.Scene, spec.Settings, error) {
	children, err := p.Children()
	if err != nil {
		return nil, settings, err
	}
	if t, ok := p.(*spec.TemplateScene); ok {
		in, err := t.Internal()
		if err != nil {
			return nil, settings, err
		}
		return children, in.Settings, nil
	}
	return children, settings, nil
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}
