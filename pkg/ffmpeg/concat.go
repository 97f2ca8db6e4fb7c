package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// Part is one encoded scene file of the final video.
type Part struct {
	Path     string
	Duration float64
	// Transition blends this part into the next one.
	Transition *spec.Transition
}

// Concat joins parts into out. Without transitions the files are joined by
// the concat demuxer without re-encoding; otherwise video is cross-faded with
// xfade and audio with acrossfade.
func (e *Encoder) Concat(ctx context.Context, parts []Part, out string, fps int) error {
	if len(parts) == 0 {
		return fmt.Errorf("ffmpeg: nothing to concatenate")
	}
	if !hasTransitions(parts) {
		list, err := writeConcatList(parts, filepath.Dir(out))
		if err != nil {
			return err
		}
		defer os.Remove(list)
		if err := e.run(ctx, "-y", "-hide_banner", "-loglevel", "error",
			"-f", "concat", "-safe", "0", "-i", list, "-c", "copy", "-movflags", "+faststart", out); err != nil {
			return fmt.Errorf("concat: %w", err)
		}
		return nil
	}
	if err := e.run(ctx, e.ConcatArgs(ctx, parts, out, fps)...); err != nil {
		return fmt.Errorf("concat: %w", err)
	}
	return nil
}

func hasTransitions(parts []Part) bool {
	for _, p := range parts[:len(parts)-1] {
		if p.Transition != nil {
			return true
		}
	}
	return false
}

// ConcatArgs returns the re-encoding ffmpeg arguments joining parts.
func (e *Encoder) ConcatArgs(ctx context.Context, parts []Part, out string, fps int) []string {
	g := &graph{}
	for _, p := range parts {
		g.input("-i", p.Path)
	}
	v, a := "[0:v]", "[0:a]"
	var accDur float64
	for i, p := range parts {
		if i == 0 {
			accDur = p.Duration
			continue
		}
		nv, na := fmt.Sprintf("[%d:v]", i), fmt.Sprintf("[%d:a]", i)
		if t := parts[i-1].Transition; t != nil {
			v = g.chain(v+nv, fmt.Sprintf("xfade=transition=%s:duration=%s:offset=%s",
				t.Kind, num(t.Duration), num(accDur-t.Duration)), g.label("x"))
			a = g.chain(a+na, "acrossfade=d="+num(t.Duration), g.label("a"))
			accDur += p.Duration - t.Duration
			continue
		}
		v = g.chain(v+nv, "concat=n=2:v=1:a=0", g.label("c"))
		a = g.chain(a+na, "concat=n=2:v=0:a=1", g.label("a"))
		accDur += p.Duration
	}

	args := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, g.args()...)
	args = append(args, "-map", v, "-map", a, "-t", num(accDur))
	args = append(args, e.outputArgs(e.videoCodec(ctx), fps)...)
	return append(args, out)
}

func writeConcatList(parts []Part, dir string) (string, error) {
	f, err := os.CreateTemp(dir, ".concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("concat list: %w", err)
	}
	var b strings.Builder
	for _, p := range parts {
		abs, err := filepath.Abs(p.Path)
		if err != nil {
			abs = p.Path
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return "", fmt.Errorf("concat list: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("concat list: %w", err)
	}
	return f.Name(), nil
}
