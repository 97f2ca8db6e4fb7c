package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// fitFilter letterboxes footage of any size onto the canvas.
func fitFilter(w, h int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black@0,setsar=1",
		w, h, w, h)
}

func (b *Builtin) video(s *spec.VideoScene, d float64, settings spec.Settings) (*clip.Clip, error) {
	path, err := b.Assets.Resolve(s.File, s.Dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: video", s.ID)
	}
	c := clip.New(s.ID, settings.Width, settings.Height, d, settings.FPS, &clip.Source{Kind: clip.SourceVideo, Path: path})
	return c.WithFilter(fitFilter(settings.Width, settings.Height)), nil
}

// videoImages links the matched files into a numbered sequence in the work
// directory so ffmpeg can read them as one input.
func (b *Builtin) videoImages(s *spec.VideoImagesScene, d float64, settings spec.Settings) (*clip.Clip, error) {
	files, err := b.Assets.Glob(s.Pattern, s.Dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: frames", s.ID)
	}
	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "scene %q: no files match %q", s.ID, s.Pattern)
	}
	ext := strings.ToLower(filepath.Ext(files[0]))
	dir := b.framePath(s.ID, "-frames")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q", s.ID)
	}
	for i, f := range files {
		if e := strings.ToLower(filepath.Ext(f)); e != ext {
			return nil, errors.New(errors.ErrCodeValidation,
				"scene %q: frames must share one format, found %s and %s", s.ID, ext, e)
		}
		dst := filepath.Join(dir, fmt.Sprintf("frame_%06d%s", i, ext))
		if err := linkOrCopy(f, dst); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: stage frame", s.ID)
		}
	}

	fps := s.FPS
	if fps <= 0 {
		fps = settings.FPS
	}
	c := clip.New(s.ID, settings.Width, settings.Height, d, settings.FPS, &clip.Source{
		Kind: clip.SourceFrames,
		Path: filepath.Join(dir, "frame_%06d"+ext),
		FPS:  fps,
	})
	return c.WithFilter(fitFilter(settings.Width, settings.Height)), nil
}

func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
