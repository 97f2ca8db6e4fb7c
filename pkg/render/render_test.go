package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/effects"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

var settings = spec.Settings{Width: 16, Height: 9, FPS: 10, OutputFile: "out.mp4"}

// fakeRaster paints the whole frame in a gray derived from the SVG bytes, so
// identical documents yield identical PNGs.
type fakeRaster struct {
	mu    sync.Mutex
	calls int
	docs  map[string]bool
}

// distinct returns the different SVG documents rasterized so far.
func (f *fakeRaster) distinct() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs
}

func (f *fakeRaster) ToPNG(_ context.Context, svg []byte, w, h int, bg *color.RGBA) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	if f.docs == nil {
		f.docs = map[string]bool{}
	}
	f.docs[string(svg)] = true
	f.mu.Unlock()
	var sum byte
	for _, c := range svg {
		sum += c
	}
	a := uint8(0xff)
	if bg == nil {
		a = 0x80
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = sum, sum, sum, a
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(t *testing.T, raw map[string]any, dir string, d float64) spec.Scene {
	t.Helper()
	s, err := spec.Decode(raw, spec.DecodeOptions{Dir: dir, Settings: &settings})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	s.Common().Resolved.Resolve(d)
	return s
}

func newBuiltin(t *testing.T) (*Builtin, *fakeRaster) {
	t.Helper()
	r := &fakeRaster{}
	b := NewBuiltin(t.TempDir())
	b.Rasterizer = r
	return b, r
}

func writePNGFile(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func render(t *testing.T, b *Builtin, s spec.Scene) *clip.Clip {
	t.Helper()
	c, err := b.Render(context.Background(), s, effects.NewPass(s.Common().Effects), settings)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return c
}

func TestPlacement(t *testing.T) {
	pct := func(v float64) *float64 { return &v }
	tests := []struct {
		name string
		s    spec.ImageScene
		src  image.Point
		want image.Rectangle
	}{
		{"stretch", spec.ImageScene{Stretch: true}, image.Pt(4, 4), image.Rect(0, 0, 160, 90)},
		{"small stays natural", spec.ImageScene{}, image.Pt(40, 30), image.Rect(60, 30, 100, 60)},
		{"large shrinks to fit", spec.ImageScene{}, image.Pt(320, 90), image.Rect(0, 22, 160, 67)},
		{"width percent", spec.ImageScene{Width: pct(50)}, image.Pt(40, 20), image.Rect(40, 25, 120, 65)},
		{"height percent", spec.ImageScene{Height: pct(100)}, image.Pt(10, 10), image.Rect(35, 0, 125, 90)},
		{"top", spec.ImageScene{Position: spec.PositionTop}, image.Pt(40, 30), image.Rect(60, 0, 100, 30)},
		{"bottom", spec.ImageScene{Position: spec.PositionBottom}, image.Pt(40, 30), image.Rect(60, 60, 100, 90)},
		{"left", spec.ImageScene{Position: spec.PositionLeft}, image.Pt(40, 30), image.Rect(0, 30, 40, 60)},
		{"right", spec.ImageScene{Position: spec.PositionRight}, image.Pt(40, 30), image.Rect(120, 30, 160, 60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := placement(&tt.s, tt.src, 160, 90); got != tt.want {
				t.Errorf("placement() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderColor(t *testing.T) {
	b, _ := newBuiltin(t)
	c := render(t, b, decode(t, map[string]any{"type": "color", "id": "c", "color": "red"}, "", 2))
	if c.Source.Kind != clip.SourceColor || c.Duration != 2 || c.Width != 16 {
		t.Errorf("Render() = %v", c)
	}
	if c.Source.Color != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("color = %v", c.Source.Color)
	}
}

func TestRenderImage(t *testing.T) {
	dir := t.TempDir()
	writePNGFile(t, filepath.Join(dir, "pic.png"), 4, 4, color.RGBA{G: 255, A: 255})
	b, _ := newBuiltin(t)

	c := render(t, b, decode(t, map[string]any{
		"type": "image", "id": "pic", "image": "pic.png",
		"annotations": []any{map[string]any{"type": "highlight", "rect": []any{0, 0, 50, 50}, "color": "red", "opacity": 1}},
	}, dir, 3))
	if c.Source.Kind != clip.SourceImage || c.Duration != 3 {
		t.Fatalf("Render() = %v", c)
	}
	if c.Alpha != nil {
		t.Error("image on an opaque background should have no alpha")
	}
	img, err := decodeImage(c.Source.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA); got.R != 255 || got.G != 0 {
		t.Errorf("highlighted pixel = %v, want red", got)
	}
	if got := color.RGBAModel.Convert(img.At(15, 8)).(color.RGBA); got.G != 255 {
		t.Errorf("image pixel = %v, want green", got)
	}
}

func TestRenderImageMissing(t *testing.T) {
	b, _ := newBuiltin(t)
	_, err := b.Render(context.Background(),
		decode(t, map[string]any{"type": "image", "id": "pic", "image": "nope.png"}, t.TempDir(), 1),
		effects.NewPass(nil), settings)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Render() error = %v, want NOT_FOUND", err)
	}
}

func TestRenderSvg(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "still.svg"), []byte(`<svg width="{{.width}}"/>`), 0o644)
	os.WriteFile(filepath.Join(dir, "moving.svg"), []byte(`<svg x="{{.progress}}"/>`), 0o644)
	os.WriteFile(filepath.Join(dir, "pulse.svg"),
		[]byte(`<svg>{{if and (gt .progress 0.2) (lt .progress 0.8)}}<circle/>{{end}}</svg>`), 0o644)

	t.Run("static template is one image", func(t *testing.T) {
		b, r := newBuiltin(t)
		c := render(t, b, decode(t, map[string]any{"type": "svg", "id": "s", "template": "still.svg"}, dir, 2))
		if c.Source.Kind != clip.SourceImage {
			t.Errorf("Source.Kind = %v, want image", c.Source.Kind)
		}
		if r.calls != 1 {
			t.Errorf("rasterized %d frames, want 1", r.calls)
		}
	})

	t.Run("pulse that returns to its first frame is animated", func(t *testing.T) {
		b, r := newBuiltin(t)
		c := render(t, b, decode(t, map[string]any{"type": "svg", "id": "s", "template": "pulse.svg"}, dir, 2))
		if c.Source.Kind != clip.SourceFrames {
			t.Fatalf("Source.Kind = %v, want frames", c.Source.Kind)
		}
		if r.calls != 20 {
			t.Errorf("rasterized %d frames, want 20", r.calls)
		}
		if len(r.distinct()) < 2 {
			t.Error("pulse frames should differ somewhere in the middle")
		}
	})

	t.Run("animated template renders every frame", func(t *testing.T) {
		b, r := newBuiltin(t)
		ease := map[string]any{"type": "accel-decel", "duration": 2}
		s := decode(t, map[string]any{"type": "svg", "id": "s", "template": "moving.svg", "effects": []any{ease}}, dir, 2)
		pass := effects.NewPass(s.Common().Effects)
		c, err := b.Render(context.Background(), s, pass, settings)
		if err != nil {
			t.Fatal(err)
		}
		if c.Source.Kind != clip.SourceFrames || c.Source.FPS != 10 {
			t.Fatalf("Source = %+v", c.Source)
		}
		if r.calls != 20 {
			t.Errorf("rasterized %d frames, want 20", r.calls)
		}
		frames, _ := filepath.Glob(filepath.Join(filepath.Dir(c.Source.Path), "frame_*.png"))
		if len(frames) != 20 {
			t.Errorf("wrote %d frames, want 20", len(frames))
		}
		if !pass.Consumed(0) {
			t.Error("progress effect should be consumed by the svg renderer")
		}
	})

	t.Run("composite_on none keeps transparency", func(t *testing.T) {
		b, _ := newBuiltin(t)
		c := render(t, b, decode(t, map[string]any{"type": "svg", "id": "s", "template": "still.svg", "composite_on": "none"}, dir, 1))
		if c.Alpha == nil {
			t.Error("Alpha = nil, want the rasterized transparency")
		}
	})
}

func TestRenderTitleCard(t *testing.T) {
	b, _ := newBuiltin(t)
	wide := spec.Settings{Width: 320, Height: 180, FPS: 10}
	s := decode(t, map[string]any{
		"type": "title_card", "id": "title", "title": "Hello", "subtitle": "world",
		"duration": 2, "color": "white", "bg_color": "black",
	}, "", 2)
	c, err := b.Render(context.Background(), s, effects.NewPass(nil), wide)
	if err != nil {
		t.Fatal(err)
	}
	img, err := decodeImage(c.Source.Path)
	if err != nil {
		t.Fatal(err)
	}
	lit := 0
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r > 0x8000 {
				lit++
				if y < 30 || y > 150 {
					t.Fatalf("text pixel at (%d,%d) is outside the centered block", x, y)
				}
			}
		}
	}
	if lit == 0 {
		t.Error("no text was drawn")
	}
}

func TestRenderVideoImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"f10.png", "f2.png", "f1.png"} {
		writePNGFile(t, filepath.Join(dir, name), 2, 2, color.RGBA{A: 255})
	}
	b, _ := newBuiltin(t)
	c := render(t, b, decode(t, map[string]any{"type": "video-images", "id": "seq", "file": "f*.png", "fps": 5}, dir, 0.6))
	if c.Source.Kind != clip.SourceFrames || c.Source.FPS != 5 {
		t.Fatalf("Source = %+v", c.Source)
	}
	if !strings.HasSuffix(c.Source.Path, "frame_%06d.png") {
		t.Errorf("Source.Path = %q", c.Source.Path)
	}
	staged, _ := filepath.Glob(filepath.Join(filepath.Dir(c.Source.Path), "frame_*.png"))
	if len(staged) != 3 {
		t.Errorf("staged %d frames, want 3", len(staged))
	}
	if len(c.Filters) != 1 || !strings.HasPrefix(c.Filters[0], "scale=16:9") {
		t.Errorf("Filters = %v", c.Filters)
	}

	_, err := b.Render(context.Background(),
		decode(t, map[string]any{"type": "video-images", "id": "none", "file": "x*.png", "fps": 5}, dir, 1),
		effects.NewPass(nil), settings)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("empty glob error = %v, want NOT_FOUND", err)
	}
}

func TestRenderVideo(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("not really"), 0o644)
	b, _ := newBuiltin(t)
	c := render(t, b, decode(t, map[string]any{"type": "video", "id": "v", "file": "clip.mp4"}, dir, 4))
	if c.Source.Kind != clip.SourceVideo || c.Source.Path != filepath.Join(dir, "clip.mp4") {
		t.Errorf("Source = %+v", c.Source)
	}
}

func TestRenderRejectsParents(t *testing.T) {
	b, _ := newBuiltin(t)
	s := decode(t, map[string]any{
		"type": "composite", "id": "group",
		"scenes": []any{map[string]any{"type": "color", "id": "a", "color": "red", "duration": 1}},
	}, "", 1)
	if _, err := b.Render(context.Background(), s, effects.NewPass(nil), settings); err == nil {
		t.Error("Render() of a composite should fail")
	}
}

func TestRenderUnresolved(t *testing.T) {
	b, _ := newBuiltin(t)
	s, err := spec.Decode(map[string]any{"type": "color", "id": "c", "color": "red"}, spec.DecodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Render(context.Background(), s, effects.NewPass(nil), settings); err == nil {
		t.Error("Render() of an unresolved scene should fail")
	}
}
