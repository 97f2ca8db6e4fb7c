// Package ffmpeg encodes clips with the ffmpeg command line tools.
//
// A clip tree becomes a single ffmpeg invocation: every source is an input,
// and filters, masks, layers and sequences become one filter_complex graph.
// Encoded scene files are joined by [Encoder.Concat]. ffprobe answers media
// length queries for duration resolution.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Runner executes an external command and returns its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), 6))
	}
	return stdout.Bytes(), nil
}

// tail returns the last n lines of s; ffmpeg prints the cause of a failure
// at the end of its log.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Encoder drives ffmpeg and ffprobe.
type Encoder struct {
	FFmpeg  string
	FFprobe string
	// Codec is the H.264 encoder; "auto" picks a hardware encoder when ffmpeg
	// offers one.
	Codec string
	// Quality is the CRF for libx264 and the CQ for nvenc. VideoToolbox
	// takes Quality*100 kbit/s.
	Quality int
	Runner  Runner
	Logger  *log.Logger

	detect sync.Once
	codec  string
}

// New returns an Encoder using the ffmpeg and ffprobe on PATH.
func New() *Encoder {
	return &Encoder{
		FFmpeg:  "ffmpeg",
		FFprobe: "ffprobe",
		Codec:   "libx264",
		Quality: 20,
		Runner:  ExecRunner{},
		Logger:  log.Default(),
	}
}

func (e *Encoder) run(ctx context.Context, args ...string) error {
	e.logger().Debug("running ffmpeg", "args", strings.Join(args, " "))
	_, err := e.runner().Run(ctx, e.FFmpeg, args...)
	return err
}

func (e *Encoder) runner() Runner {
	if e.Runner == nil {
		return ExecRunner{}
	}
	return e.Runner
}

func (e *Encoder) logger() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}

// videoCodec resolves "auto" once by asking ffmpeg for its encoders.
func (e *Encoder) videoCodec(ctx context.Context) string {
	if e.Codec != "auto" {
		return e.Codec
	}
	e.detect.Do(func() {
		e.codec = "libx264"
		out, err := e.runner().Run(ctx, e.FFmpeg, "-hide_banner", "-encoders")
		if err != nil {
			return
		}
		for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
			if bytes.Contains(out, []byte(name)) {
				e.codec = name
				return
			}
		}
	})
	e.logger().Debug("selected encoder", "codec", e.codec)
	return e.codec
}

// outputArgs are the encoding arguments shared by every produced file.
func (e *Encoder) outputArgs(codec string, fps int) []string {
	args := []string{"-c:v", codec, "-pix_fmt", "yuv420p", "-r", fmt.Sprint(fps)}
	switch codec {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", e.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprint(e.Quality))
	default:
		args = append(args, "-crf", fmt.Sprint(e.Quality), "-preset", "medium")
	}
	return append(args, "-c:a", "aac", "-b:a", "192k", "-ar", fmt.Sprint(sampleRate), "-movflags", "+faststart")
}
