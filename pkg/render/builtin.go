package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/sceneweaver/pkg/assets"
	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/effects"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Builtin renders every leaf scene kind.
type Builtin struct {
	// WorkDir receives intermediate frames. It must exist.
	WorkDir    string
	Assets     assets.Resolver
	Rasterizer Rasterizer
	Logger     *log.Logger
}

// NewBuiltin returns a renderer writing frames into workDir.
func NewBuiltin(workDir string) *Builtin {
	return &Builtin{WorkDir: workDir, Rasterizer: RSVG{}, Logger: log.Default()}
}

// Render produces the clip of a leaf scene. Parent scenes are rejected; the
// compose package assembles them.
func (b *Builtin) Render(ctx context.Context, s spec.Scene, pass *effects.Pass, settings spec.Settings) (*clip.Clip, error) {
	base := s.Common()
	d, ok := base.Resolved.Seconds()
	if !ok {
		return nil, fmt.Errorf("scene %q has no resolved duration", base.ID)
	}
	w, h, fps := settings.Width, settings.Height, settings.FPS

	switch s := s.(type) {
	case *spec.ColorScene:
		return clip.Solid(base.ID, w, h, d, fps, s.Color), nil
	case *spec.ImageScene:
		return b.image(s, d, settings)
	case *spec.SvgScene:
		return b.svg(ctx, s, pass, d, settings)
	case *spec.VideoScene:
		return b.video(s, d, settings)
	case *spec.VideoImagesScene:
		return b.videoImages(s, d, settings)
	case *spec.TitleCardScene:
		return b.titleCard(s, d, settings)
	}
	return nil, fmt.Errorf("scene %q: %s scenes are not rendered by the leaf renderer", base.ID, s.Kind())
}

// framePath returns a fresh file path in the work directory.
func (b *Builtin) framePath(id, ext string) string {
	return filepath.Join(b.WorkDir, fmt.Sprintf("%s-%s%s", safeName(id), uuid.NewString()[:8], ext))
}

// writePNG encodes img into a fresh file in the work directory.
func (b *Builtin) writePNG(id string, img image.Image) (string, error) {
	path := b.framePath(id, ".png")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func (b *Builtin) logger() *log.Logger {
	if b.Logger == nil {
		return log.Default()
	}
	return b.Logger
}

// safeName keeps ids usable as file name prefixes.
func safeName(id string) string {
	out := []rune(id)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "scene"
	}
	return string(out)
}
