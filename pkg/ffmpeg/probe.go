package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Info describes a media file.
type Info struct {
	Width    int
	Height   int
	Duration float64
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the container duration and the size of the first video stream.
func (e *Encoder) Probe(ctx context.Context, path string) (Info, error) {
	out, err := e.runner().Run(ctx, e.FFprobe, "-v", "error",
		"-show_entries", "stream=codec_type,width,height:format=duration",
		"-of", "json", path)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}
	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return Info{}, fmt.Errorf("probe %s: decode ffprobe output: %w", path, err)
	}
	var info Info
	if p.Format.Duration != "" {
		if info.Duration, err = strconv.ParseFloat(p.Format.Duration, 64); err != nil {
			return Info{}, fmt.Errorf("probe %s: duration %q: %w", path, p.Format.Duration, err)
		}
	}
	for _, s := range p.Streams {
		if s.CodecType == "video" {
			info.Width, info.Height = s.Width, s.Height
			break
		}
	}
	return info, nil
}

// AudioDuration returns the length of an audio file in seconds.
func (e *Encoder) AudioDuration(ctx context.Context, path string) (float64, error) {
	return e.duration(ctx, path)
}

// VideoDuration returns the length of a video file in seconds.
func (e *Encoder) VideoDuration(ctx context.Context, path string) (float64, error) {
	return e.duration(ctx, path)
}

func (e *Encoder) duration(ctx context.Context, path string) (float64, error) {
	info, err := e.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if info.Duration <= 0 {
		return 0, fmt.Errorf("probe %s: no duration", path)
	}
	return info.Duration, nil
}
