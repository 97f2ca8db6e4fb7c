package timeline

import (
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Entry places one resolved scene on the timeline.
type Entry struct {
	ID       string             `json:"id"`
	Kind     spec.Kind          `json:"kind"`
	Mode     spec.CompositeMode `json:"composite_mode"`
	Depth    int                `json:"depth"`
	Start    float64            `json:"start"`
	Duration float64            `json:"duration"`
	// Transition is the overlap with the next sibling, if any.
	Transition float64 `json:"transition,omitempty"`
	// Cacheable reports whether the scene has a cache policy; Cached whether
	// a run served it from the cache.
	Cacheable bool `json:"cacheable"`
	Cached    bool `json:"cached"`
}

// End returns the time the entry stops playing.
func (e Entry) End() float64 {
	return e.Start + e.Duration
}

// Layout lists every scene in pre-order with absolute start times. Siblings
// in a sequence start where the previous one ends minus its transition;
// layered siblings share their parent's start. Scenes must be resolved.
func Layout(scenes []spec.Scene) ([]Entry, error) {
	var out []Entry
	err := layout(scenes, true, 0, 0, &out)
	return out, err
}

// Total returns the length of the top-level sequence.
func Total(scenes []spec.Scene) (float64, error) {
	var total float64
	for _, s := range scenes {
		d, ok := s.Common().Resolved.Seconds()
		if !ok {
			return 0, unresolved(s)
		}
		total += d
	}
	return total - spec.TransitionOverlap(scenes), nil
}

func layout(scenes []spec.Scene, sequential bool, start float64, depth int, out *[]Entry) error {
	t := start
	for i, s := range scenes {
		b := s.Common()
		d, ok := b.Resolved.Seconds()
		if !ok {
			return unresolved(s)
		}
		e := Entry{ID: b.ID, Kind: s.Kind(), Mode: b.Mode, Depth: depth, Start: t, Duration: d, Cacheable: b.Cache != nil}
		if sequential && b.Transition != nil && i+1 < len(scenes) {
			e.Transition = b.Transition.Duration
		}
		*out = append(*out, e)

		if p, ok := s.(spec.Parent); ok {
			children, err := p.Children()
			if err != nil {
				return err
			}
			if err := layout(children, p.Sequential(), t, depth+1, out); err != nil {
				return err
			}
		}
		if sequential {
			t += d - e.Transition
		}
	}
	return nil
}

func unresolved(s spec.Scene) error {
	return errors.New(errors.ErrCodeInternal, "scene %q has no resolved duration", spec.ID(s))
}
