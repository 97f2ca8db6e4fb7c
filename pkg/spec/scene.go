package spec

// Kind is the scene discriminator written as `type` in spec files.
type Kind string

const (
	KindColor       Kind = "color"
	KindImage       Kind = "image"
	KindSvg         Kind = "svg"
	KindVideo       Kind = "video"
	KindVideoImages Kind = "video-images"
	KindComposite   Kind = "composite"
	KindTemplate    Kind = "template"
	KindTitleCard   Kind = "title_card"
)

// Kinds lists every scene kind in declaration order.
var Kinds = []Kind{
	KindColor, KindImage, KindSvg, KindVideo,
	KindVideoImages, KindComposite, KindTemplate, KindTitleCard,
}

// CompositeMode controls how a scene combines with the previous scene of its
// compositing group.
type CompositeMode string

const (
	// ModeLayer starts a new group.
	ModeLayer CompositeMode = "layer"
	// ModeMask replaces the group base's transparency with this scene's alpha.
	ModeMask CompositeMode = "mask"
	// ModeExclude punches this scene's alpha out of the group base.
	ModeExclude CompositeMode = "exclude"
)

// Scene is one timed unit of video content. The implementations are the
// pointer types declared in this package; the interface is sealed.
type Scene interface {
	// Common returns the attributes every scene carries.
	Common() *Base
	Kind() Kind
	sealed()
}

// Parent is implemented by scenes that own child scenes.
type Parent interface {
	Scene
	// Children returns the owned scenes in order. For templates this expands
	// the internal spec on first use.
	Children() ([]Scene, error)
	// Sequential reports whether the children play one after another rather
	// than stacked as layers.
	Sequential() bool
}

// Base holds the attributes shared by every scene variant.
type Base struct {
	ID         string
	Cache      *CachePolicy
	Effects    []Effect
	Transition *Transition
	Audio      []AudioTrack
	Mode       CompositeMode
	Timing     Timing

	// Dir is the directory relative asset references resolve against.
	Dir string
	// Config is the scene's merged raw configuration, used for fingerprints.
	Config map[string]any

	// Resolved is written once by the duration resolver.
	Resolved Duration
}

func (b *Base) Common() *Base { return b }
func (*Base) sealed()         {}

// ID returns the id of s, or "" for nil.
func ID(s Scene) string {
	if s == nil {
		return ""
	}
	return s.Common().ID
}
