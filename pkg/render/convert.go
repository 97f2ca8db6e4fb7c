package render

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os/exec"
	"strconv"

	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Rasterizer converts SVG documents to PNG.
type Rasterizer interface {
	ToPNG(ctx context.Context, svg []byte, width, height int, background *color.RGBA) ([]byte, error)
}

// RSVG rasterizes with rsvg-convert.
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
type RSVG struct {
	// Binary defaults to "rsvg-convert".
	Binary string
}

// ToPNG renders svg at width x height. A nil background keeps transparency.
func (r RSVG) ToPNG(ctx context.Context, svg []byte, width, height int, background *color.RGBA) ([]byte, error) {
	args := []string{"-f", "png", "-w", strconv.Itoa(width), "-h", strconv.Itoa(height)}
	if background != nil {
		args = append(args, "-b", rgbaCSS(*background))
	}
	return r.convert(ctx, svg, args...)
}

// convert pipes svg through rsvg-convert.
func (r RSVG) convert(ctx context.Context, svg []byte, args ...string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "rsvg-convert"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("svg scenes require librsvg. Install with:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin")
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(svg)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rsvg-convert: %v: %s", err, errBuf.String())
	}
	return out.Bytes(), nil
}

func rgbaCSS(c color.RGBA) string {
	if c.A == 0xff {
		return spec.HexColor(c)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, strconv.FormatFloat(float64(c.A)/255, 'f', 3, 64))
}
