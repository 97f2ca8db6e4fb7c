package spec

import "fmt"

// Timing is what a scene declares about its own length. At most one of
// Duration and Frames is set.
type Timing struct {
	Duration *float64
	Frames   *int
}

// Explicit returns the declared length in seconds, converting frames with fps.
func (t Timing) Explicit(fps int) (float64, bool) {
	switch {
	case t.Duration != nil:
		return *t.Duration, true
	case t.Frames != nil && fps > 0:
		return float64(*t.Frames) / float64(fps), true
	}
	return 0, false
}

// IsZero reports whether the scene declares no length of its own.
func (t Timing) IsZero() bool {
	return t.Duration == nil && t.Frames == nil
}

// Duration is the write-once resolved length of a scene.
//
// The zero value is Unresolved. The first call to Resolve moves it to
// Resolved(seconds); later calls keep the stored value. Resolution completes
// before rendering starts, so Duration is not guarded for concurrent writers.
type Duration struct {
	resolved bool
	seconds  float64
}

// Seconds returns the resolved length and whether it has been set.
func (d *Duration) Seconds() (float64, bool) {
	return d.seconds, d.resolved
}

// IsResolved reports whether the duration has been fixed.
func (d *Duration) IsResolved() bool {
	return d.resolved
}

// Resolve fixes the duration to seconds if it is still unresolved and
// returns the stored value. The second result is true only for the call that
// performed the transition.
func (d *Duration) Resolve(seconds float64) (float64, bool) {
	if d.resolved {
		return d.seconds, false
	}
	d.resolved = true
	d.seconds = seconds
	return d.seconds, true
}

// MustSeconds returns the resolved length or panics. It is meant for code
// that runs strictly after resolution, such as renderers.
func (d *Duration) MustSeconds() float64 {
	if !d.resolved {
		panic("spec: duration read before resolution")
	}
	return d.seconds
}

func (d Duration) String() string {
	if !d.resolved {
		return "unresolved"
	}
	return fmt.Sprintf("%.3fs", d.seconds)
}
