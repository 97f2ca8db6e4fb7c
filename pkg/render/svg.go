package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"maps"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/sceneweaver/pkg/clip"
	"github.com/matzehuels/sceneweaver/pkg/effects"
	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/templates"
)

// FramePattern names the frames of a rendered sequence.
const FramePattern = "frame_%06d.png"

// svg renders an SVG template. The template sees its params, the image
// params as data URIs, and per frame: progress (0..1, reshaped by progress
// effects), t (seconds), frame, plus width, height, duration and fps.
// Templates that never read progress, t or frame are rendered once as a still.
func (b *Builtin) svg(ctx context.Context, s *spec.SvgScene, pass *effects.Pass, d float64, settings spec.Settings) (*clip.Clip, error) {
	path, err := b.Assets.Resolve(s.Template, s.Dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: svg template", s.ID)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: svg template", s.ID)
	}
	tmpl, err := templates.Parse(filepath.Base(path), string(src))
	if err != nil {
		return nil, err
	}
	data, err := b.svgParams(s, d, settings)
	if err != nil {
		return nil, err
	}

	r := svgFrames{tmpl: tmpl, data: data, raster: b.Rasterizer, w: settings.Width, h: settings.Height, bg: s.CompositeOn, d: d}
	n := max(1, settings.Frames(d))
	if n == 1 || !templates.References(tmpl, "progress", "t", "frame") {
		png, err := r.render(ctx, 0, 0)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q", s.ID)
		}
		alpha, err := pngAlpha(png)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: rasterized frame", s.ID)
		}
		frame := b.framePath(s.ID, ".png")
		if err := os.WriteFile(frame, png, 0o644); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: write frame", s.ID)
		}
		c := clip.New(s.ID, settings.Width, settings.Height, d, settings.FPS, &clip.Source{Kind: clip.SourceImage, Path: frame})
		c.Alpha = alpha
		return c, nil
	}

	// progress is computed up front: the pass is not safe for concurrent use
	progress := make([]float64, n)
	for i := range progress {
		progress[i] = pass.TransformProgress(float64(i) / float64(n-1))
	}

	dir := b.framePath(s.ID, "-frames")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q", s.ID)
	}
	var first []byte
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range progress {
		g.Go(func() error {
			png, err := r.render(gctx, i, p)
			if err != nil {
				return err
			}
			if i == 0 {
				first = png
			}
			return os.WriteFile(filepath.Join(dir, fmt.Sprintf(FramePattern, i)), png, 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: frames", s.ID)
	}
	alpha, err := pngAlpha(first)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: rasterized frame", s.ID)
	}
	b.logger().Debug("rendered svg frames", "scene", s.ID, "frames", n)

	c := clip.New(s.ID, settings.Width, settings.Height, d, settings.FPS,
		&clip.Source{Kind: clip.SourceFrames, Path: filepath.Join(dir, FramePattern), FPS: settings.FPS})
	c.Alpha = alpha
	return c, nil
}

func (b *Builtin) svgParams(s *spec.SvgScene, d float64, settings spec.Settings) (map[string]any, error) {
	data := maps.Clone(s.Params)
	if data == nil {
		data = map[string]any{}
	}
	cwd, _ := os.Getwd()
	for k, ref := range s.ImageParams {
		path, err := b.Assets.Resolve(ref, cwd, s.Dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scene %q: image param %q", s.ID, k)
		}
		uri, err := dataURI(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRender, err, "scene %q: image param %q", s.ID, k)
		}
		data[k] = uri
	}
	data["width"] = settings.Width
	data["height"] = settings.Height
	data["fps"] = settings.FPS
	data["duration"] = d
	return data, nil
}

type svgFrames struct {
	tmpl   *template.Template
	data   map[string]any
	raster Rasterizer
	w, h   int
	bg     *color.RGBA
	d      float64
}

func (r svgFrames) render(ctx context.Context, frame int, progress float64) ([]byte, error) {
	data := maps.Clone(r.data)
	data["frame"] = frame
	data["progress"] = progress
	data["t"] = progress * r.d
	svg, err := templates.Execute(r.tmpl, data)
	if err != nil {
		return nil, err
	}
	return r.raster.ToPNG(ctx, svg, r.w, r.h, r.bg)
}

func dataURI(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if typ == "" {
		typ = "application/octet-stream"
	}
	return "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// pngAlpha returns the alpha channel of an encoded image, nil when opaque.
func pngAlpha(data []byte) (*image.Alpha, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	return alphaOf(rgba), nil
}
