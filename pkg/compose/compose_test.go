package compose

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/effects"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

var settings = spec.Settings{Width: 8, Height: 8, FPS: 30, OutputFile: "out.mp4"}

// fakeRenderer produces solid clips. Scenes whose id starts with "hole" get
// an alpha that is opaque in the top-left quarter only. When consume is set
// it plays the part of a per-frame renderer and uses progress effects.
type fakeRenderer struct {
	mu      sync.Mutex
	consume bool
	seen    map[string][]spec.Effect
	empty   map[string]bool
}

func (f *fakeRenderer) Render(_ context.Context, s spec.Scene, pass *effects.Pass, st spec.Settings) (*clip.Clip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := s.Common()
	if f.seen == nil {
		f.seen = map[string][]spec.Effect{}
	}
	f.seen[b.ID] = pass.Effects()
	if f.empty[b.ID] {
		return nil, nil
	}
	if f.consume {
		pass.TransformProgress(0.5)
	}
	c := clip.Solid(b.ID, st.Width, st.Height, b.Resolved.MustSeconds(), st.FPS, color.RGBA{A: 0xff})
	if len(b.ID) >= 4 && b.ID[:4] == "hole" {
		a := image.NewAlpha(image.Rect(0, 0, st.Width, st.Height))
		for y := 0; y < st.Height/2; y++ {
			for x := 0; x < st.Width/2; x++ {
				a.Pix[y*a.Stride+x] = 0xff
			}
		}
		c.Alpha = a
	}
	return c, nil
}

func resolved(t *testing.T, raw map[string]any, dir string) spec.Scene {
	t.Helper()
	s, err := spec.Decode(raw, spec.DecodeOptions{Dir: dir, Settings: &settings})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, err := timeline.NewResolver(nil).Resolve(context.Background(), s, nil, settings); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return s
}

func scene(id string, extra ...any) map[string]any {
	m := map[string]any{"type": "color", "id": id, "color": "white"}
	for i := 0; i+1 < len(extra); i += 2 {
		m[extra[i].(string)] = extra[i+1]
	}
	return m
}

func TestLayersExclude(t *testing.T) {
	ease := map[string]any{"type": "accel-decel", "duration": 2}
	fade := map[string]any{"type": "fade-in", "duration": 1}
	s := resolved(t, map[string]any{
		"type": "composite", "id": "stack",
		"scenes": []any{
			scene("base", "duration", 4, "effects", []any{ease, fade}),
			scene("hole", "composite_mode", "exclude", "effects", []any{map[string]any{"type": "fade-out", "duration": 1}}),
		},
	}, "")
	r := &fakeRenderer{consume: true}
	c, err := New(r).Render(context.Background(), s, settings)
	if err != nil {
		t.Fatal(err)
	}

	// base renders with progress effects only, the mask with its own plus progress
	if got := r.seen["base"]; len(got) != 1 || got[0].Type() != "accel-decel" {
		t.Errorf("base effects = %v, want [accel-decel]", got)
	}
	if got := r.seen["hole"]; len(got) != 2 || got[0].Type() != "fade-out" || got[1].Type() != "accel-decel" {
		t.Errorf("mask effects = %v, want [fade-out accel-decel]", got)
	}
	children, _ := s.(spec.Parent).Children()
	if stored := children[1].Common().Effects; len(stored) != 1 {
		t.Errorf("mask scene effects mutated: %v", stored)
	}

	if c.Duration != 4 {
		t.Errorf("Duration = %v, want 4", c.Duration)
	}
	mask := c.StaticMask()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := uint8(0xff)
			if x < 4 && y < 4 {
				want = 0
			}
			if got := mask.AlphaAt(x, y).A; got != want {
				t.Fatalf("alpha(%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
	// the fade is the base's other effect and applies to the whole group
	if len(c.Filters) != 1 || c.Filters[0] != "fade=t=in:st=0:d=1" {
		t.Errorf("group filters = %v", c.Filters)
	}
	// the mask's own fade-out stays on the mask clip
	if m := c.Masks[0].Source; len(m.Filters) != 1 || m.Duration != 4 {
		t.Errorf("mask clip filters=%v duration=%v", m.Filters, m.Duration)
	}
}

func TestLayersMaskDurationForced(t *testing.T) {
	s := resolved(t, map[string]any{
		"type": "composite", "id": "stack",
		"scenes": []any{
			scene("base", "duration", 3),
			scene("hole", "duration", 10, "composite_mode", "mask"),
		},
	}, "")
	c, err := New(&fakeRenderer{}).Render(context.Background(), s, settings)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Masks[0].Source.Duration; got != 3 {
		t.Errorf("mask duration = %v, want base duration 3", got)
	}
	if got := c.StaticMask().AlphaAt(7, 7).A; got != 0 {
		t.Errorf("mask mode should replace transparency, alpha(7,7) = %d", got)
	}
}

func TestLayersInvalidGroup(t *testing.T) {
	s := resolved(t, map[string]any{
		"type": "composite", "id": "bad", "duration": 2,
		"scenes": []any{scene("m", "composite_mode", "mask"), scene("b")},
	}, "")
	r := &fakeRenderer{}
	_, err := New(r).Render(context.Background(), s, settings)
	if !errors.Is(err, errors.ErrCodeInvalidGroup) {
		t.Fatalf("Render() error = %v, want INVALID_GROUP", err)
	}
	if len(r.seen) != 0 {
		t.Error("nothing should render for a malformed group")
	}
}

func TestMultipleGroupsFirstIsBackground(t *testing.T) {
	s := resolved(t, map[string]any{
		"type": "composite", "id": "stack",
		"scenes": []any{
			scene("bg", "duration", 5),
			scene("fg", "duration", 2),
			scene("hole", "composite_mode", "exclude"),
		},
	}, "")
	c, err := New(&fakeRenderer{}).Render(context.Background(), s, settings)
	if err != nil {
		t.Fatal(err)
	}
	if c.Label != "bg" || len(c.Layers) != 1 || c.Layers[0].Label != "fg" {
		t.Fatalf("composite = %v layers=%d", c, len(c.Layers))
	}
	if len(c.Layers[0].Masks) != 1 || len(c.Masks) != 0 {
		t.Error("exclude should only affect its own group")
	}
	if c.Duration != 5 {
		t.Errorf("Duration = %v, want 5", c.Duration)
	}
}

func TestEmptyOutputs(t *testing.T) {
	t.Run("base producing nothing skips its group", func(t *testing.T) {
		s := resolved(t, map[string]any{
			"type": "composite", "id": "stack",
			"scenes": []any{scene("gone", "duration", 2), scene("hole", "composite_mode", "exclude")},
		}, "")
		r := &fakeRenderer{empty: map[string]bool{"gone": true}}
		c, err := New(r).Render(context.Background(), s, settings)
		if err != nil || c != nil {
			t.Errorf("Render() = %v, %v, want nil, nil", c, err)
		}
		if _, rendered := r.seen["hole"]; rendered {
			t.Error("mask of an empty base should not render")
		}
	})

	t.Run("sequence skips empty children", func(t *testing.T) {
		s := resolved(t, map[string]any{
			"type": "composite", "id": "seq", "arrange": "sequence",
			"scenes": []any{scene("a", "duration", 2), scene("gone", "duration", 2), scene("b", "duration", 3)},
		}, "")
		c, err := New(&fakeRenderer{empty: map[string]bool{"gone": true}}).Render(context.Background(), s, settings)
		if err != nil {
			t.Fatal(err)
		}
		if len(c.Segments) != 2 || c.Duration != 5 {
			t.Errorf("segments=%d duration=%v", len(c.Segments), c.Duration)
		}
	})
}

func TestSequenceTransitions(t *testing.T) {
	s := resolved(t, map[string]any{
		"type": "composite", "id": "seq", "arrange": "sequence",
		"scenes": []any{
			scene("a", "duration", 4, "transition", map[string]any{"type": "dissolve", "duration": 1}),
			scene("b", "duration", 6),
		},
	}, "")
	c, err := New(&fakeRenderer{}).Render(context.Background(), s, settings)
	if err != nil {
		t.Fatal(err)
	}
	if c.Duration != 9 || s.Common().Resolved.MustSeconds() != 9 {
		t.Errorf("clip %v, resolved %v, want 9", c.Duration, s.Common().Resolved.MustSeconds())
	}
	if tr := c.Segments[0].Transition; tr == nil || tr.Kind != "dissolve" {
		t.Errorf("transition = %+v", tr)
	}
}

func TestAudioAttached(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "voice.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := resolved(t, scene("a", "duration", 2, "audio", []any{map[string]any{"file": "voice.wav", "shift": 0.5}}), dir)
	c, err := New(&fakeRenderer{}).Render(context.Background(), s, settings)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Audio) != 1 || c.Audio[0].Path != filepath.Join(dir, "voice.wav") || c.Audio[0].Shift != 0.5 {
		t.Errorf("Audio = %+v", c.Audio)
	}
}

func TestMaskAudioDropped(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"music.wav", "voice.wav"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s := resolved(t, map[string]any{
		"type": "composite", "id": "stack",
		"scenes": []any{
			scene("bg", "duration", 3, "audio", []any{map[string]any{"file": "music.wav"}}),
			scene("hole", "composite_mode", "exclude", "audio", []any{map[string]any{"file": "voice.wav"}}),
		},
	}, dir)
	c, err := New(&fakeRenderer{}).Render(context.Background(), s, settings)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Masks) != 1 {
		t.Fatalf("Masks = %d, want 1", len(c.Masks))
	}
	if a := c.Masks[0].Source.Audio; len(a) != 0 {
		t.Errorf("mask source Audio = %+v, want none", a)
	}
	if len(c.Audio) != 1 || c.Audio[0].Path != filepath.Join(dir, "music.wav") {
		t.Errorf("Audio = %+v, want the base track only", c.Audio)
	}
}

func TestConsumedProgressNotReapplied(t *testing.T) {
	raw := scene("a", "duration", 2, "effects", []any{map[string]any{"type": "accel-decel", "duration": 2}})

	c, err := New(&fakeRenderer{consume: true}).Render(context.Background(), resolved(t, raw, ""), settings)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Filters) != 0 {
		t.Errorf("consumed effect reapplied: %v", c.Filters)
	}

	c, err = New(&fakeRenderer{}).Render(context.Background(), resolved(t, raw, ""), settings)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Filters) != 1 {
		t.Errorf("unconsumed progress effect should post-process, filters = %v", c.Filters)
	}
}

func TestRenderUnresolved(t *testing.T) {
	s, err := spec.Decode(scene("a", "duration", 1), spec.DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(&fakeRenderer{}).Render(context.Background(), s, settings); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("Render() error = %v, want INTERNAL_ERROR", err)
	}
}
