package spec

import (
	"slices"
	"strings"
)

// Transition blends a scene into its next sibling. The overlap shortens the
// combined length by Duration.
type Transition struct {
	// Kind is an ffmpeg xfade transition name.
	Kind     string
	Duration float64
}

var transitionKinds = []string{
	"fade", "fadeblack", "fadewhite", "dissolve",
	"wipeleft", "wiperight", "wipeup", "wipedown",
	"slideleft", "slideright", "slideup", "slidedown",
	"circleopen", "circleclose", "radial", "pixelize",
}

// transitionAliases maps friendlier names onto xfade names.
var transitionAliases = map[string]string{
	"cross-fade": "fade",
	"crossfade":  "fade",
	"fade-black": "fadeblack",
	"fade-white": "fadewhite",
}

func decodeTransition(f fields) (*Transition, error) {
	m, err := f.mapping("transition")
	if err != nil || m == nil {
		return nil, err
	}
	tf := f.sub("transition", m)
	typ, err := tf.strDefault("type", "fade")
	if err != nil {
		return nil, err
	}
	typ = strings.ToLower(typ)
	if alias, ok := transitionAliases[typ]; ok {
		typ = alias
	}
	if !slices.Contains(transitionKinds, typ) {
		return nil, tf.errorf("type", "unknown transition %q", typ)
	}
	d, err := tf.float("duration")
	if err != nil {
		return nil, err
	}
	if d == nil || *d <= 0 {
		return nil, tf.errorf("duration", "transition requires a positive duration")
	}
	return &Transition{Kind: typ, Duration: *d}, nil
}

// TransitionOverlap returns the time saved by transitions between consecutive
// scenes. The last scene's transition has no successor and does not count.
func TransitionOverlap(scenes []Scene) float64 {
	var total float64
	for i := 0; i+1 < len(scenes); i++ {
		if t := scenes[i].Common().Transition; t != nil {
			total += t.Duration
		}
	}
	return total
}
