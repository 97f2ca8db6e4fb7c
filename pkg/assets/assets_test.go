package assets

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	home := t.TempDir()
	writeFile(t, filepath.Join(dir, "img", "a.png"), "a")
	writeFile(t, filepath.Join(home, "b.png"), "b")
	r := Resolver{Home: home}

	tests := []struct {
		name     string
		ref      string
		want     string
		wantCode errors.Code
	}{
		{"relative", "img/a.png", filepath.Join(dir, "img", "a.png"), ""},
		{"home", "~/b.png", filepath.Join(home, "b.png"), ""},
		{"absolute", filepath.Join(dir, "img", "a.png"), filepath.Join(dir, "img", "a.png"), ""},
		{"missing", "img/none.png", "", errors.ErrCodeNotFound},
		{"directory", "img", "", errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.ref, dir)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Errorf("Resolve(%q) error = %v, want %v", tt.ref, err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestGlobNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"f10.png", "f2.png", "f1.png", "notes.txt"} {
		writeFile(t, filepath.Join(dir, "frames", name), name)
	}
	got, err := Resolver{}.Glob("frames/*.png", dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	if want := []string{"f1.png", "f2.png", "f10.png"}; !slices.Equal(names, want) {
		t.Errorf("Glob() = %v, want %v", names, want)
	}
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"img2", "img10", true},
		{"img10", "img2", false},
		{"A1", "a2", true},
		{"x007", "x7a", true},
		{"same", "same", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"<"+tt.b, func(t *testing.T) {
			if got := NaturalLess(tt.a, tt.b); got != tt.want {
				t.Errorf("NaturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestHashFileChangesWithContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	writeFile(t, path, "hello")
	h1, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, "hellp")
	h2, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("hash did not change after editing one byte")
	}
	if len(h1) != 64 {
		t.Errorf("len(hash) = %d, want 64", len(h1))
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bg.png"), "bg")
	writeFile(t, filepath.Join(dir, "voice.wav"), "voice")
	writeFile(t, filepath.Join(dir, "clip.mp4"), "clip")

	raw := map[string]any{
		"type": "composite", "id": "c",
		"audio": "voice.wav",
		"scenes": []any{
			map[string]any{"type": "image", "id": "i", "image": "bg.png", "duration": 1},
			map[string]any{"type": "video", "id": "v", "file": "clip.mp4"},
			map[string]any{"type": "image", "id": "i2", "image": "bg.png", "duration": 1},
		},
	}
	s, err := spec.Decode(raw, spec.DecodeOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Resolver{}.Collect(s)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "voice.wav"),
		filepath.Join(dir, "bg.png"),
		filepath.Join(dir, "clip.mp4"),
	}
	if !slices.Equal(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}

	t.Run("missing asset names the scene", func(t *testing.T) {
		bad, err := spec.Decode(map[string]any{"type": "video", "id": "gone", "file": "nope.mp4"}, spec.DecodeOptions{Dir: dir})
		if err != nil {
			t.Fatal(err)
		}
		_, err = Resolver{}.Collect(bad)
		if !errors.Is(err, errors.ErrCodeNotFound) {
			t.Fatalf("Collect() error = %v, want NOT_FOUND", err)
		}
		if msg := errors.UserMessage(err); !strings.Contains(msg, "gone") || !strings.Contains(msg, "nope.mp4") {
			t.Errorf("message %q should name scene and file", msg)
		}
	})
}
