package spec

import (
	"github.com/matzehuels/sceneweaver/pkg/errors"
)

// Settings are the video-wide parameters from the `settings` block.
type Settings struct {
	Width      int
	Height     int
	FPS        int
	OutputFile string
	Font       string

	// SceneDefaults are merged beneath every top-level scene's own keys.
	SceneDefaults map[string]any
	// AudioRecordingPath is where recorded narration is stored, if used.
	AudioRecordingPath string
}

// DecodeSettings reads the settings block. Required fields are checked by
// Validate so a partially filled block can still be inspected.
func DecodeSettings(raw map[string]any) (Settings, error) {
	f := fields{where: "settings", m: raw}
	var s Settings
	for _, it := range []struct {
		key string
		dst *int
	}{{"width", &s.Width}, {"height", &s.Height}, {"fps", &s.FPS}} {
		n, err := f.integer(it.key)
		if err != nil {
			return s, err
		}
		if n != nil {
			*it.dst = *n
		}
	}
	var err error
	if s.OutputFile, err = f.strDefault("output_file", ""); err != nil {
		return s, err
	}
	if s.Font, err = f.strDefault("font", ""); err != nil {
		return s, err
	}
	if s.AudioRecordingPath, err = f.strDefault("audio_recording_path", ""); err != nil {
		return s, err
	}
	if s.SceneDefaults, err = f.mapping("scene_defaults"); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks that width, height, fps and output_file are usable.
func (s Settings) Validate() error {
	switch {
	case s.Width <= 0:
		return errors.New(errors.ErrCodeValidation, "settings: width must be a positive integer")
	case s.Height <= 0:
		return errors.New(errors.ErrCodeValidation, "settings: height must be a positive integer")
	case s.FPS <= 0:
		return errors.New(errors.ErrCodeValidation, "settings: fps must be a positive integer")
	}
	if err := errors.ValidateOutputPath(s.OutputFile); err != nil {
		return errors.Wrap(errors.ErrCodeValidation, err, "settings: output_file")
	}
	return nil
}

// Frames converts seconds into a whole number of frames, rounding to nearest.
func (s Settings) Frames(seconds float64) int {
	return int(seconds*float64(s.FPS) + 0.5)
}
