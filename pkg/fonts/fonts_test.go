package fonts

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestFaceEmbedded(t *testing.T) {
	for _, name := range append(Names(), "", "GO") {
		t.Run(name, func(t *testing.T) {
			face, err := Face(name, 32)
			if err != nil {
				t.Fatalf("Face(%q) error = %v", name, err)
			}
			defer face.Close()
			if h := face.Metrics().Height.Ceil(); h < 32 {
				t.Errorf("line height = %d, want >= 32", h)
			}
		})
	}
}

func TestFaceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	face, err := Face(path, 20)
	if err != nil {
		t.Fatalf("Face(file) error = %v", err)
	}
	face.Close()
}

func TestFaceMissing(t *testing.T) {
	if _, err := Face("/no/such/font.ttf", 12); err == nil {
		t.Error("Face() should fail for a missing file")
	}
}

func TestBold(t *testing.T) {
	tests := map[string]string{"": "go-bold", "go": "go-bold", "/x/y.ttf": "/x/y.ttf"}
	for in, want := range tests {
		if got := Bold(in); got != want {
			t.Errorf("Bold(%q) = %q, want %q", in, got, want)
		}
	}
}
