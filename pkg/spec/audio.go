package spec

import "fmt"

// AudioTrack is an audio file mixed into a scene starting at Shift seconds.
type AudioTrack struct {
	File    string
	Shift   float64
	Volume  float64
	FadeIn  float64
	FadeOut float64
}

func decodeAudio(f fields) ([]AudioTrack, error) {
	items, err := f.list("audio")
	if err != nil {
		return nil, err
	}
	tracks := make([]AudioTrack, 0, len(items))
	for i, item := range items {
		where := fmt.Sprintf("audio[%d]", i)
		var af fields
		switch v := item.(type) {
		case string:
			af = f.sub(where, map[string]any{"file": v})
		default:
			m, ok := asMap(v)
			if !ok {
				return nil, f.errorf(where, "expected a file name or mapping")
			}
			af = f.sub(where, m)
		}
		t := AudioTrack{}
		if t.File, err = af.requiredStr("file"); err != nil {
			return nil, err
		}
		if t.Shift, err = af.floatDefault("shift", 0); err != nil {
			return nil, err
		}
		if t.Volume, err = af.floatDefault("volume", 1); err != nil {
			return nil, err
		}
		if t.FadeIn, err = af.floatDefault("fade_in", 0); err != nil {
			return nil, err
		}
		if t.FadeOut, err = af.floatDefault("fade_out", 0); err != nil {
			return nil, err
		}
		if t.Shift < 0 || t.Volume < 0 || t.FadeIn < 0 || t.FadeOut < 0 {
			return nil, af.errorf("audio", "shift, volume and fades cannot be negative")
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}
