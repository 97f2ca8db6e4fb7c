package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/sceneweaver/pkg/clip"
)

// sampleRate and channelLayout normalize every audio stream before mixing.
const (
	sampleRate    = 48000
	channelLayout = "stereo"
)

// graph accumulates the inputs and filter chains of one ffmpeg invocation.
type graph struct {
	inputs [][]string
	chains []string
	audio  []placedAudio
	n      int
}

// placedAudio is a track together with the window of the clip owning it, in
// seconds from the start of the output.
type placedAudio struct {
	track      clip.Audio
	start, end float64
}

func (g *graph) input(args ...string) int {
	g.inputs = append(g.inputs, args)
	return len(g.inputs) - 1
}

func (g *graph) label(prefix string) string {
	g.n++
	return fmt.Sprintf("[%s%d]", prefix, g.n)
}

// chain appends "in filters out" and returns out.
func (g *graph) chain(in, filters, out string) string {
	g.chains = append(g.chains, in+filters+out)
	return out
}

func (g *graph) args() []string {
	var args []string
	for _, in := range g.inputs {
		args = append(args, in...)
	}
	if len(g.chains) > 0 {
		args = append(args, "-filter_complex", strings.Join(g.chains, ";"))
	}
	return args
}

// video adds c to the graph and returns the label of a yuva420p stream of
// c.Width x c.Height lasting exactly c.Duration. offset is c's start in the
// output, used to place audio.
func (g *graph) video(c *clip.Clip, offset float64) (string, error) {
	var v string
	var err error
	switch {
	case c.IsSequence():
		v, err = g.sequence(c, offset)
	case c.Source != nil:
		v, err = g.source(c)
	default:
		err = fmt.Errorf("ffmpeg: clip %s has neither a source nor segments", c.Label)
	}
	if err != nil {
		return "", err
	}

	filters := []string{fmt.Sprintf("fps=%d", c.FPS), "format=yuva420p"}
	filters = append(filters, c.Filters...)
	filters = append(filters, "format=yuva420p", pad(c.Duration))
	v = g.chain(v, strings.Join(filters, ","), g.label("v"))

	for _, op := range c.Masks {
		if v, err = g.mask(v, c, op, offset); err != nil {
			return "", err
		}
	}

	for _, l := range c.Layers {
		lv, err := g.video(l, offset)
		if err != nil {
			return "", err
		}
		v = g.chain(v+lv, fmt.Sprintf("overlay=x='%s':y='%s':eval=frame:eof_action=pass:format=auto,%s",
			expr(l.X), expr(l.Y), pad(c.Duration)), g.label("v"))
	}

	for _, a := range c.Audio {
		g.audio = append(g.audio, placedAudio{track: a, start: offset, end: offset + c.Duration})
	}
	return v, nil
}

// pad holds the last frame of short inputs and cuts long ones.
func pad(d float64) string {
	return fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%s,trim=duration=%s,setpts=PTS-STARTPTS", num(d), num(d))
}

func (g *graph) source(c *clip.Clip) (string, error) {
	s := c.Source
	var idx int
	switch s.Kind {
	case clip.SourceColor:
		idx = g.input("-f", "lavfi", "-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s",
			colorArg(s.Color.R, s.Color.G, s.Color.B, s.Color.A), c.Width, c.Height, c.FPS, num(c.Duration)))
	case clip.SourceImage:
		idx = g.input("-loop", "1", "-framerate", strconv.Itoa(c.FPS), "-t", num(c.Duration), "-i", s.Path)
	case clip.SourceVideo:
		idx = g.input("-i", s.Path)
	case clip.SourceFrames:
		fps := s.FPS
		if fps <= 0 {
			fps = c.FPS
		}
		idx = g.input("-framerate", strconv.Itoa(fps), "-start_number", "0", "-i", s.Path)
	default:
		return "", fmt.Errorf("ffmpeg: clip %s: unsupported source %v", c.Label, s.Kind)
	}
	return fmt.Sprintf("[%d:v]", idx), nil
}

// sequence joins the segments of c. A segment with a transition cross-fades
// into the next one with xfade; other boundaries are hard cuts.
func (g *graph) sequence(c *clip.Clip, offset float64) (string, error) {
	var acc string
	var accDur float64
	for i, seg := range c.Segments {
		start := accDur
		var prev *clip.Segment
		if i > 0 {
			prev = &c.Segments[i-1]
			if prev.Transition != nil {
				start -= prev.Transition.Duration
			}
		}
		v, err := g.video(seg.Clip, offset+start)
		if err != nil {
			return "", err
		}
		v = g.place(v, seg.Clip, c.Width, c.Height)

		switch {
		case prev == nil:
			acc = v
		case prev.Transition != nil:
			t := prev.Transition
			acc = g.chain(acc+v, fmt.Sprintf("xfade=transition=%s:duration=%s:offset=%s",
				t.Kind, num(t.Duration), num(accDur-t.Duration)), g.label("x"))
		default:
			acc = g.chain(acc+v, "concat=n=2:v=1:a=0", g.label("c"))
		}
		accDur = start + seg.Clip.Duration
	}
	return acc, nil
}

// place draws v at the clip's position on a transparent w x h canvas. Clips
// that already cover the canvas at the origin are returned unchanged.
func (g *graph) place(v string, c *clip.Clip, w, h int) string {
	if c.X == "" && c.Y == "" && c.Width == w && c.Height == h {
		return v
	}
	idx := g.input("-f", "lavfi", "-i", fmt.Sprintf("color=c=black@0:s=%dx%d:r=%d:d=%s", w, h, c.FPS, num(c.Duration)))
	canvas := g.chain(fmt.Sprintf("[%d:v]", idx), "format=yuva420p", g.label("bg"))
	return g.chain(canvas+v, fmt.Sprintf("overlay=x='%s':y='%s':eval=frame:format=auto", expr(c.X), expr(c.Y)), g.label("p"))
}

// mask applies op to the stream v of c. The mask source's alpha, placed on
// c's canvas, either replaces v's alpha or is subtracted from it:
// alpha = a * (255 - m) / 255. Audio collected from the mask source is
// dropped.
func (g *graph) mask(v string, c *clip.Clip, op clip.MaskOp, offset float64) (string, error) {
	n := len(g.audio)
	m, err := g.video(op.Source, offset)
	if err != nil {
		return "", err
	}
	g.audio = g.audio[:n]
	m = g.place(m, op.Source, c.Width, c.Height)
	ma := g.chain(m, fmt.Sprintf("alphaextract,scale=%d:%d", c.Width, c.Height), g.label("m"))

	if op.Mode == clip.MaskReplace {
		return g.chain(v+ma, "alphamerge", g.label("v")), nil
	}
	v1, v2 := g.label("s"), g.label("s")
	g.chain(v, "split", v1+v2)
	a := g.chain(v1, "alphaextract", g.label("a"))
	na := g.chain(a+ma, "blend=all_expr='A*(255-B)/255'", g.label("a"))
	return g.chain(v2+na, "alphamerge", g.label("v")), nil
}

// mixAudio adds every collected track and returns the label of one stereo
// stream lasting total seconds. Without tracks the stream is silence.
func (g *graph) mixAudio(total float64) string {
	format := fmt.Sprintf("aformat=sample_rates=%d:channel_layouts=%s", sampleRate, channelLayout)
	if len(g.audio) == 0 {
		idx := g.input("-f", "lavfi", "-t", num(total), "-i", fmt.Sprintf("anullsrc=r=%d:cl=%s", sampleRate, channelLayout))
		return g.chain(fmt.Sprintf("[%d:a]", idx), format, g.label("a"))
	}

	var labels strings.Builder
	for _, p := range g.audio {
		idx := g.input("-i", p.track.Path)
		labels.WriteString(g.chain(fmt.Sprintf("[%d:a]", idx), format+","+audioFilters(p), g.label("a")))
	}
	return g.chain(labels.String(), fmt.Sprintf("amix=inputs=%d:duration=longest:normalize=0,apad,atrim=duration=%s",
		len(g.audio), num(total)), g.label("a"))
}

// audioFilters positions a track inside its clip's window. The track starts
// Shift seconds after the window opens and is cut when it closes; fades are
// relative to the audible part.
func audioFilters(p placedAudio) string {
	at := p.start + p.track.Shift
	trimStart := 0.0
	if at < p.start {
		trimStart = p.start - at
		at = p.start
	}
	length := p.end - at
	if length < 0 {
		length = 0
	}
	filters := []string{
		fmt.Sprintf("atrim=start=%s:duration=%s", num(trimStart), num(length)),
		"asetpts=PTS-STARTPTS",
	}
	if p.track.Volume != 1 {
		filters = append(filters, "volume="+num(p.track.Volume))
	}
	if p.track.FadeIn > 0 {
		filters = append(filters, "afade=t=in:st=0:d="+num(p.track.FadeIn))
	}
	if p.track.FadeOut > 0 {
		st := length - p.track.FadeOut
		if st < 0 {
			st = 0
		}
		filters = append(filters, fmt.Sprintf("afade=t=out:st=%s:d=%s", num(st), num(p.track.FadeOut)))
	}
	if ms := int64(at * 1000); ms > 0 {
		filters = append(filters, fmt.Sprintf("adelay=%d:all=1", ms))
	}
	return strings.Join(filters, ",")
}

// ClipArgs returns the ffmpeg arguments encoding c into out. The clip is
// flattened onto black at its own position.
func (e *Encoder) ClipArgs(ctx context.Context, c *clip.Clip, out string) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("ffmpeg: nil clip")
	}
	g := &graph{}
	v, err := g.video(c, 0)
	if err != nil {
		return nil, err
	}
	bg := g.input("-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%s", c.Width, c.Height, c.FPS, num(c.Duration)))
	vout := g.chain(fmt.Sprintf("[%d:v]", bg)+v, fmt.Sprintf("overlay=x='%s':y='%s':eval=frame:format=auto,format=yuv420p", expr(c.X), expr(c.Y)), "[vout]")
	aout := g.mixAudio(c.Duration)

	args := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, g.args()...)
	args = append(args, "-map", vout, "-map", aout, "-t", num(c.Duration))
	args = append(args, e.outputArgs(e.videoCodec(ctx), c.FPS)...)
	return append(args, out), nil
}

// EncodeClip encodes c into the mp4 file out.
func (e *Encoder) EncodeClip(ctx context.Context, c *clip.Clip, out string) error {
	args, err := e.ClipArgs(ctx, c, out)
	if err != nil {
		return err
	}
	if err := e.run(ctx, args...); err != nil {
		return fmt.Errorf("encode %s: %w", c.Label, err)
	}
	return nil
}

func expr(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func colorArg(r, g, b, a uint8) string {
	s := fmt.Sprintf("0x%02X%02X%02X", r, g, b)
	if a != 0xff {
		s += "@" + num(float64(a)/255)
	}
	return s
}

// num formats seconds and factors compactly for filter arguments.
func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e6)/1e6, 'f', -1, 64)
}
